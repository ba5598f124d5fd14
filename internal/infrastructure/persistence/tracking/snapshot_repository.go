package tracking

import (
	domain "github.com/AtRiskMedia/cartloop-go/internal/domain/tracking"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/persistence/database"
)

// SQLSnapshotRepository is the SQL-based implementation of the append-only
// cart snapshot log.
type SQLSnapshotRepository struct {
	db *database.DB
}

// NewSQLSnapshotRepository creates a new instance of the repository.
func NewSQLSnapshotRepository(db *database.DB) *SQLSnapshotRepository {
	return &SQLSnapshotRepository{db: db}
}

// Store appends a new CartSnapshot. Snapshots are never updated or deleted.
func (r *SQLSnapshotRepository) Store(snapshot *domain.CartSnapshot) error {
	const query = `
		INSERT INTO cart_snapshots (id, session_id, items, total_value, items_count, action, taken_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	itemsJSON, err := marshalItems(snapshot.Items)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(query,
		snapshot.ID,
		snapshot.SessionID,
		itemsJSON,
		snapshot.TotalValue.String(),
		snapshot.ItemsCount,
		string(snapshot.Action),
		formatTime(snapshot.TakenAt),
	)
	return err
}

// FindBySessionID retrieves the most recent snapshots for a session.
func (r *SQLSnapshotRepository) FindBySessionID(sessionID string, limit int) ([]*domain.CartSnapshot, error) {
	const query = `
		SELECT id, session_id, items, total_value, items_count, action, taken_at
		FROM cart_snapshots
		WHERE session_id = ?
		ORDER BY taken_at DESC
		LIMIT ?`

	rows, err := r.db.Query(query, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []*domain.CartSnapshot
	for rows.Next() {
		var snapshot domain.CartSnapshot
		var itemsJSON, totalStr, actionStr, takenStr string

		err := rows.Scan(
			&snapshot.ID,
			&snapshot.SessionID,
			&itemsJSON,
			&totalStr,
			&snapshot.ItemsCount,
			&actionStr,
			&takenStr,
		)
		if err != nil {
			return nil, err
		}

		if snapshot.Items, err = unmarshalItems(itemsJSON); err != nil {
			return nil, err
		}
		if snapshot.TotalValue, err = parseDecimal(totalStr); err != nil {
			return nil, err
		}
		if snapshot.TakenAt, err = parseTimestamp(takenStr); err != nil {
			return nil, err
		}
		snapshot.Action = domain.SnapshotAction(actionStr)

		snapshots = append(snapshots, &snapshot)
	}
	return snapshots, rows.Err()
}
