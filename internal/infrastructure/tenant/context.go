// Package tenant provides tenant context management for multi-tenant support.
package tenant

import (
	domain "github.com/AtRiskMedia/cartloop-go/internal/domain/tracking"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/caching/manager"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/persistence/database"
	persistence "github.com/AtRiskMedia/cartloop-go/internal/infrastructure/persistence/tracking"
)

// Context holds tenant-specific request context
type Context struct {
	TenantID     string
	Config       *Config
	Database     *Database
	Status       string
	CacheManager *manager.Manager
	Logger       *logging.ChanneledLogger
}

// Close cleans up the tenant context
func (ctx *Context) Close() error {
	if ctx.Database != nil {
		return ctx.Database.Close()
	}
	return nil
}

// GetTenantID returns the tenant ID for this context
func (ctx *Context) GetTenantID() string {
	return ctx.TenantID
}

// GetConfig returns the tenant configuration
func (ctx *Context) GetConfig() *Config {
	return ctx.Config
}

// GetDatabase returns the tenant database connection
func (ctx *Context) GetDatabase() *Database {
	return ctx.Database
}

// IsActive returns true if the tenant is active
func (ctx *Context) IsActive() bool {
	return ctx.Status == "active"
}

// GetDatabaseInfo returns database connection information for logging
func (ctx *Context) GetDatabaseInfo() string {
	if ctx.Database != nil {
		return ctx.Database.GetConnectionInfo()
	}
	return "no database connection"
}

// =============================================================================
// Repository Factory Methods
// =============================================================================

// VisitorRepo returns a visitor repository instance.
// It returns the interface type from the domain layer.
func (ctx *Context) VisitorRepo() domain.VisitorRepository {
	db := &database.DB{DB: ctx.Database.Conn}
	return persistence.NewSQLVisitorRepository(db)
}

// SessionRepo returns a session repository instance.
func (ctx *Context) SessionRepo() domain.SessionRepository {
	db := &database.DB{DB: ctx.Database.Conn}
	return persistence.NewSQLSessionRepository(db)
}

// SnapshotRepo returns a cart snapshot repository instance.
func (ctx *Context) SnapshotRepo() domain.SnapshotRepository {
	db := &database.DB{DB: ctx.Database.Conn}
	return persistence.NewSQLSnapshotRepository(db)
}

// CartRepo returns an abandoned cart repository instance.
func (ctx *Context) CartRepo() domain.CartRepository {
	db := &database.DB{DB: ctx.Database.Conn}
	return persistence.NewSQLCartRepository(db)
}
