// Package tracking provides the concrete SQL-based implementations of the
// visitor, session, snapshot, and abandoned cart repositories.
package tracking

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/AtRiskMedia/cartloop-go/internal/domain/tracking"
)

// Timestamps are stored as RFC3339 UTC strings so lexicographic comparison
// in SQL matches chronological order.
const timeFormat = time.RFC3339

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		// Try alternative timestamp format if RFC3339 fails
		t, err = time.Parse("2006-01-02 15:04:05", value)
		if err != nil {
			return time.Time{}, err
		}
	}
	return t, nil
}

func parseNullableTimestamp(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	t, err := parseTimestamp(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func marshalItems(items []domain.LineItem) (string, error) {
	if items == nil {
		items = []domain.LineItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to marshal line items: %w", err)
	}
	return string(data), nil
}

func unmarshalItems(data string) ([]domain.LineItem, error) {
	if data == "" {
		return []domain.LineItem{}, nil
	}
	var items []domain.LineItem
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal line items: %w", err)
	}
	return items, nil
}

func parseDecimal(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(value)
}
