// Package services provides application-level orchestration services
package services

import (
	"fmt"
	"time"

	"github.com/AtRiskMedia/cartloop-go/internal/domain/tracking"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/security"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/tenant"
	"github.com/AtRiskMedia/cartloop-go/pkg/config"
)

// SessionService handles session lifecycle: creation, liveness, identity,
// and dashboard flags.
type SessionService struct {
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewSessionService creates a new session service
func NewSessionService(logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *SessionService {
	return &SessionService{
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// Touch records activity for a session token, creating the session on first
// sight. Concurrent first-touches race on the token's UNIQUE constraint; the
// loser retries as an update. Returns the session's row id.
func (s *SessionService) Touch(tenantCtx *tenant.Context, sessionToken string, meta tracking.SessionMeta, at time.Time) (string, error) {
	if sessionToken == "" {
		return "", fmt.Errorf("%w: sessionId is required", tracking.ErrValidation)
	}

	marker := s.perfTracker.StartOperation("session_touch", tenantCtx.TenantID)
	defer marker.Complete()

	repo := tenantCtx.SessionRepo()

	// Hot path: hint cache maps the token straight to a row id.
	if sessionID, ok := tenantCtx.CacheManager.GetSessionHint(tenantCtx.TenantID, sessionToken); ok {
		session, err := repo.FindByID(sessionID)
		if err != nil {
			marker.SetError(err)
			return "", err
		}
		if session != nil {
			if err := s.applyTouch(repo, session, meta, at); err != nil {
				marker.SetError(err)
				return "", err
			}
			marker.SetSuccess(true)
			return session.ID, nil
		}
		tenantCtx.CacheManager.InvalidateSessionHint(tenantCtx.TenantID, sessionToken)
	}

	session, err := repo.FindByToken(sessionToken)
	if err != nil {
		marker.SetError(err)
		return "", err
	}

	if session == nil {
		session = &tracking.Session{
			ID:           security.GenerateULID(),
			SessionToken: sessionToken,
			StartedAt:    at,
			LastActiveAt: at,
			UserAgent:    meta.UserAgent,
			Device:       meta.Device,
			IPHint:       meta.IPHint,
		}

		if err := repo.Store(session); err != nil {
			if !database.IsUniqueConstraintError(err) {
				marker.SetError(err)
				return "", err
			}
			// Lost the insert race; the winner's row carries this token.
			session, err = repo.FindByToken(sessionToken)
			if err != nil {
				marker.SetError(err)
				return "", err
			}
			if session == nil {
				err = fmt.Errorf("session vanished after unique conflict for token")
				marker.SetError(err)
				return "", err
			}
			if err := s.applyTouch(repo, session, meta, at); err != nil {
				marker.SetError(err)
				return "", err
			}
		}
	} else {
		if err := s.applyTouch(repo, session, meta, at); err != nil {
			marker.SetError(err)
			return "", err
		}
	}

	tenantCtx.CacheManager.SetSessionHint(tenantCtx.TenantID, sessionToken, session.ID)
	marker.SetSuccess(true)
	return session.ID, nil
}

// applyTouch merges metadata and bumps activity. Activity only moves forward
// and a touch reopens a session the idle sweep had closed.
func (s *SessionService) applyTouch(repo tracking.SessionRepository, session *tracking.Session, meta tracking.SessionMeta, at time.Time) error {
	if at.After(session.LastActiveAt) {
		session.LastActiveAt = at
	}
	session.EndedAt = nil

	if session.UserAgent == "" && meta.UserAgent != "" {
		session.UserAgent = meta.UserAgent
	}
	if session.Device == "" && meta.Device != "" {
		session.Device = meta.Device
	}
	if session.IPHint == "" && meta.IPHint != "" {
		session.IPHint = meta.IPHint
	}

	return repo.Update(session)
}

// MarkEnded closes a session. Ending an already-ended session is a no-op.
func (s *SessionService) MarkEnded(tenantCtx *tenant.Context, sessionID string, at time.Time) error {
	repo := tenantCtx.SessionRepo()

	session, err := repo.FindByID(sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("%w: session %s", tracking.ErrNotFound, sessionID)
	}

	if session.EndedAt != nil {
		return nil
	}

	endedAt := at
	session.EndedAt = &endedAt
	if err := repo.Update(session); err != nil {
		return err
	}

	tenantCtx.CacheManager.InvalidateSessionHint(tenantCtx.TenantID, session.SessionToken)
	s.logger.Session().Info("Session ended",
		"tenantId", tenantCtx.TenantID, "sessionId", sessionID)
	return nil
}

// MarkEndedByToken closes a session identified by its client token, used by
// the unload beacon.
func (s *SessionService) MarkEndedByToken(tenantCtx *tenant.Context, sessionToken string, at time.Time) error {
	if sessionToken == "" {
		return fmt.Errorf("%w: sessionId is required", tracking.ErrValidation)
	}

	session, err := tenantCtx.SessionRepo().FindByToken(sessionToken)
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("%w: session token", tracking.ErrNotFound)
	}

	return s.MarkEnded(tenantCtx, session.ID, at)
}

// ListLive returns the sessions live as of the given instant. Pure read.
func (s *SessionService) ListLive(tenantCtx *tenant.Context, asOf time.Time) ([]*tracking.Session, error) {
	marker := s.perfTracker.StartOperation("session_list_live", tenantCtx.TenantID)
	defer marker.Complete()

	sessions, err := tenantCtx.SessionRepo().FindLive(asOf, config.LiveSessionWindow)
	if err != nil {
		marker.SetError(err)
		return nil, err
	}

	marker.SetMetadata("count", len(sessions))
	marker.SetSuccess(true)
	return sessions, nil
}

// Identify links a session to a durable visitor identity, creating the
// visitor on first sight. Concurrent identifies with the same token race on
// the UNIQUE constraint; the loser adopts the winner's visitor.
func (s *SessionService) Identify(tenantCtx *tenant.Context, sessionID, visitorToken, customLabel string, at time.Time) (*tracking.Visitor, error) {
	if visitorToken == "" {
		return nil, fmt.Errorf("%w: visitorToken is required", tracking.ErrValidation)
	}

	sessionRepo := tenantCtx.SessionRepo()
	session, err := sessionRepo.FindByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("%w: session %s", tracking.ErrNotFound, sessionID)
	}

	visitorRepo := tenantCtx.VisitorRepo()
	visitor, err := visitorRepo.FindByToken(visitorToken)
	if err != nil {
		return nil, err
	}

	if visitor == nil {
		visitor = &tracking.Visitor{
			ID:           security.GenerateULID(),
			VisitorToken: visitorToken,
			CustomLabel:  customLabel,
			FirstSeenAt:  at,
			LastSeenAt:   at,
		}
		if err := visitorRepo.Store(visitor); err != nil {
			if !database.IsUniqueConstraintError(err) {
				return nil, err
			}
			visitor, err = visitorRepo.FindByToken(visitorToken)
			if err != nil {
				return nil, err
			}
			if visitor == nil {
				return nil, fmt.Errorf("visitor vanished after unique conflict for token")
			}
		}
	}

	if at.After(visitor.LastSeenAt) {
		visitor.LastSeenAt = at
		if customLabel != "" && visitor.CustomLabel == "" {
			visitor.CustomLabel = customLabel
		}
		if err := visitorRepo.Update(visitor); err != nil {
			return nil, err
		}
	}

	session.VisitorID = &visitor.ID
	if err := sessionRepo.Update(session); err != nil {
		return nil, err
	}

	s.logger.Session().Info("Session identified",
		"tenantId", tenantCtx.TenantID, "sessionId", sessionID, "visitorId", visitor.ID)
	return visitor, nil
}

// SetFlags updates the VIP flag and admin notes on a session.
func (s *SessionService) SetFlags(tenantCtx *tenant.Context, sessionID string, isVIP *bool, adminNotes *string) error {
	repo := tenantCtx.SessionRepo()

	session, err := repo.FindByID(sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("%w: session %s", tracking.ErrNotFound, sessionID)
	}

	if isVIP != nil {
		session.IsVIP = *isVIP
	}
	if adminNotes != nil {
		session.AdminNotes = *adminNotes
	}

	return repo.Update(session)
}

// CloseIdleSessions ends open sessions idle past the end-of-session window.
// Returns the number of sessions closed.
func (s *SessionService) CloseIdleSessions(tenantCtx *tenant.Context, now time.Time) (int, error) {
	repo := tenantCtx.SessionRepo()

	idle, err := repo.FindIdleOpen(now.Add(-config.SessionEndAfter))
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, session := range idle {
		endedAt := now
		session.EndedAt = &endedAt
		if err := repo.Update(session); err != nil {
			s.logger.Session().Error("Failed to close idle session",
				"tenantId", tenantCtx.TenantID, "sessionId", session.ID, "error", err.Error())
			continue
		}
		tenantCtx.CacheManager.InvalidateSessionHint(tenantCtx.TenantID, session.SessionToken)
		closed++
	}

	if closed > 0 {
		s.logger.Session().Info("Closed idle sessions",
			"tenantId", tenantCtx.TenantID, "count", closed)
	}
	return closed, nil
}
