package tracking

import (
	"database/sql"
	"time"

	domain "github.com/AtRiskMedia/cartloop-go/internal/domain/tracking"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/persistence/database"
)

const sessionColumns = `id, session_token, visitor_id, started_at, last_active_at,
	ended_at, user_agent, device, ip_hint, is_vip, admin_notes, peak_value, peak_items`

// SQLSessionRepository is the SQL-based implementation of the SessionRepository.
type SQLSessionRepository struct {
	db *database.DB
}

// NewSQLSessionRepository creates a new instance of the repository.
func NewSQLSessionRepository(db *database.DB) *SQLSessionRepository {
	return &SQLSessionRepository{db: db}
}

// FindByID retrieves a Session by its unique identifier.
func (r *SQLSessionRepository) FindByID(id string) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`
	row := r.db.QueryRow(query, id)
	return r.scanSession(row)
}

// FindByToken retrieves a Session by its client token.
func (r *SQLSessionRepository) FindByToken(sessionToken string) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE session_token = ?`
	row := r.db.QueryRow(query, sessionToken)
	return r.scanSession(row)
}

// FindLive retrieves all sessions whose last activity falls inside the
// liveness window as of the given instant.
func (r *SQLSessionRepository) FindLive(asOf time.Time, window time.Duration) ([]*domain.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions
		WHERE ended_at IS NULL AND last_active_at > ?
		ORDER BY last_active_at DESC`

	rows, err := r.db.Query(query, formatTime(asOf.Add(-window)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.collectSessions(rows)
}

// FindIdleOpen retrieves open sessions idle since before the cutoff,
// candidates for the end-of-session sweep.
func (r *SQLSessionRepository) FindIdleOpen(cutoff time.Time) ([]*domain.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions
		WHERE ended_at IS NULL AND last_active_at <= ?`

	rows, err := r.db.Query(query, formatTime(cutoff))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.collectSessions(rows)
}

// CountOpen returns the number of sessions without an end marker.
func (r *SQLSessionRepository) CountOpen() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE ended_at IS NULL`).Scan(&count)
	return count, err
}

// Store persists a new Session.
func (r *SQLSessionRepository) Store(session *domain.Session) error {
	const query = `
		INSERT INTO sessions (id, session_token, visitor_id, started_at, last_active_at,
			ended_at, user_agent, device, ip_hint, is_vip, admin_notes, peak_value, peak_items)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.Exec(query,
		session.ID,
		session.SessionToken,
		session.VisitorID,
		formatTime(session.StartedAt),
		formatTime(session.LastActiveAt),
		formatNullableTime(session.EndedAt),
		session.UserAgent,
		session.Device,
		session.IPHint,
		session.IsVIP,
		session.AdminNotes,
		session.PeakValue.String(),
		session.PeakItems,
	)
	return err
}

// Update persists changes to an existing Session.
func (r *SQLSessionRepository) Update(session *domain.Session) error {
	const query = `
		UPDATE sessions
		SET visitor_id = ?, last_active_at = ?, ended_at = ?, user_agent = ?,
			device = ?, ip_hint = ?, is_vip = ?, admin_notes = ?, peak_value = ?, peak_items = ?
		WHERE id = ?`

	_, err := r.db.Exec(query,
		session.VisitorID,
		formatTime(session.LastActiveAt),
		formatNullableTime(session.EndedAt),
		session.UserAgent,
		session.Device,
		session.IPHint,
		session.IsVIP,
		session.AdminNotes,
		session.PeakValue.String(),
		session.PeakItems,
		session.ID,
	)
	return err
}

// scanSession is a helper function to scan a sql.Row into a Session struct.
func (r *SQLSessionRepository) scanSession(row *sql.Row) (*domain.Session, error) {
	var session domain.Session
	var visitorID, endedAt sql.NullString
	var startedStr, lastActiveStr, peakValueStr string

	err := row.Scan(
		&session.ID,
		&session.SessionToken,
		&visitorID,
		&startedStr,
		&lastActiveStr,
		&endedAt,
		&session.UserAgent,
		&session.Device,
		&session.IPHint,
		&session.IsVIP,
		&session.AdminNotes,
		&peakValueStr,
		&session.PeakItems,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, err
	}

	return r.finishSession(&session, visitorID, endedAt, startedStr, lastActiveStr, peakValueStr)
}

// collectSessions scans all rows into Session structs.
func (r *SQLSessionRepository) collectSessions(rows *sql.Rows) ([]*domain.Session, error) {
	var sessions []*domain.Session
	for rows.Next() {
		var session domain.Session
		var visitorID, endedAt sql.NullString
		var startedStr, lastActiveStr, peakValueStr string

		err := rows.Scan(
			&session.ID,
			&session.SessionToken,
			&visitorID,
			&startedStr,
			&lastActiveStr,
			&endedAt,
			&session.UserAgent,
			&session.Device,
			&session.IPHint,
			&session.IsVIP,
			&session.AdminNotes,
			&peakValueStr,
			&session.PeakItems,
		)
		if err != nil {
			return nil, err
		}

		scanned, err := r.finishSession(&session, visitorID, endedAt, startedStr, lastActiveStr, peakValueStr)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, scanned)
	}
	return sessions, rows.Err()
}

func (r *SQLSessionRepository) finishSession(session *domain.Session, visitorID, endedAt sql.NullString, startedStr, lastActiveStr, peakValueStr string) (*domain.Session, error) {
	var err error

	if visitorID.Valid {
		session.VisitorID = &visitorID.String
	}
	if session.EndedAt, err = parseNullableTimestamp(endedAt); err != nil {
		return nil, err
	}
	if session.StartedAt, err = parseTimestamp(startedStr); err != nil {
		return nil, err
	}
	if session.LastActiveAt, err = parseTimestamp(lastActiveStr); err != nil {
		return nil, err
	}
	if session.PeakValue, err = parseDecimal(peakValueStr); err != nil {
		return nil, err
	}

	return session, nil
}
