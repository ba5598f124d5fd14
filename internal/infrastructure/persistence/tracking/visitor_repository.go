package tracking

import (
	"database/sql"

	domain "github.com/AtRiskMedia/cartloop-go/internal/domain/tracking"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/persistence/database"
)

// SQLVisitorRepository is the SQL-based implementation of the VisitorRepository.
type SQLVisitorRepository struct {
	db *database.DB
}

// NewSQLVisitorRepository creates a new instance of the repository.
func NewSQLVisitorRepository(db *database.DB) *SQLVisitorRepository {
	return &SQLVisitorRepository{db: db}
}

// FindByID retrieves a Visitor by its unique identifier.
func (r *SQLVisitorRepository) FindByID(id string) (*domain.Visitor, error) {
	const query = `
		SELECT id, visitor_token, custom_label, first_seen_at, last_seen_at
		FROM visitors
		WHERE id = ?`

	row := r.db.QueryRow(query, id)
	return r.scanVisitor(row)
}

// FindByToken retrieves a Visitor by its client token.
func (r *SQLVisitorRepository) FindByToken(visitorToken string) (*domain.Visitor, error) {
	const query = `
		SELECT id, visitor_token, custom_label, first_seen_at, last_seen_at
		FROM visitors
		WHERE visitor_token = ?`

	row := r.db.QueryRow(query, visitorToken)
	return r.scanVisitor(row)
}

// Store persists a new Visitor.
func (r *SQLVisitorRepository) Store(visitor *domain.Visitor) error {
	const query = `
		INSERT INTO visitors (id, visitor_token, custom_label, first_seen_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?)`

	_, err := r.db.Exec(query,
		visitor.ID,
		visitor.VisitorToken,
		visitor.CustomLabel,
		formatTime(visitor.FirstSeenAt),
		formatTime(visitor.LastSeenAt),
	)
	return err
}

// Update persists changes to an existing Visitor.
func (r *SQLVisitorRepository) Update(visitor *domain.Visitor) error {
	const query = `
		UPDATE visitors
		SET custom_label = ?, last_seen_at = ?
		WHERE id = ?`

	_, err := r.db.Exec(query,
		visitor.CustomLabel,
		formatTime(visitor.LastSeenAt),
		visitor.ID,
	)
	return err
}

// scanVisitor is a helper function to scan a sql.Row into a Visitor struct.
func (r *SQLVisitorRepository) scanVisitor(row *sql.Row) (*domain.Visitor, error) {
	var visitor domain.Visitor
	var firstSeenStr, lastSeenStr string

	err := row.Scan(
		&visitor.ID,
		&visitor.VisitorToken,
		&visitor.CustomLabel,
		&firstSeenStr,
		&lastSeenStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, err
	}

	if visitor.FirstSeenAt, err = parseTimestamp(firstSeenStr); err != nil {
		return nil, err
	}
	if visitor.LastSeenAt, err = parseTimestamp(lastSeenStr); err != nil {
		return nil, err
	}

	return &visitor, nil
}
