package tracking

import (
	"database/sql"
	"time"

	domain "github.com/AtRiskMedia/cartloop-go/internal/domain/tracking"
	"github.com/AtRiskMedia/cartloop-go/internal/infrastructure/persistence/database"
)

const cartColumns = `id, checkout_id, email, cart_url, total_value, currency, items,
	items_count, is_recovered, recovery_sent, recovery_attempts, last_attempt_at,
	expired_at, coupon_code, coupon_value, coupon_expires_at, source,
	created_at, updated_at, last_enriched_at`

// SQLCartRepository is the SQL-based implementation of the CartRepository.
type SQLCartRepository struct {
	db *database.DB
}

// NewSQLCartRepository creates a new instance of the repository.
func NewSQLCartRepository(db *database.DB) *SQLCartRepository {
	return &SQLCartRepository{db: db}
}

// FindByID retrieves an AbandonedCart by its unique identifier.
func (r *SQLCartRepository) FindByID(id string) (*domain.AbandonedCart, error) {
	query := `SELECT ` + cartColumns + ` FROM abandoned_carts WHERE id = ?`
	row := r.db.QueryRow(query, id)
	return r.scanCart(row)
}

// FindByCheckoutID retrieves an AbandonedCart by its platform checkout id.
func (r *SQLCartRepository) FindByCheckoutID(checkoutID string) (*domain.AbandonedCart, error) {
	query := `SELECT ` + cartColumns + ` FROM abandoned_carts WHERE checkout_id = ?`
	row := r.db.QueryRow(query, checkoutID)
	return r.scanCart(row)
}

// FindAll retrieves abandoned carts ordered by recency, paginated.
func (r *SQLCartRepository) FindAll(limit, offset int) ([]*domain.AbandonedCart, error) {
	query := `SELECT ` + cartColumns + `
		FROM abandoned_carts
		ORDER BY updated_at DESC
		LIMIT ? OFFSET ?`

	rows, err := r.db.Query(query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.collectCarts(rows)
}

// FindStale retrieves recovery candidates: unrecovered, unclaimed, unexpired
// carts untouched since the cutoff with attempts still available.
func (r *SQLCartRepository) FindStale(cutoff time.Time, maxAttempts int) ([]*domain.AbandonedCart, error) {
	query := `SELECT ` + cartColumns + `
		FROM abandoned_carts
		WHERE is_recovered = 0
		  AND recovery_sent = 0
		  AND expired_at IS NULL
		  AND updated_at <= ?
		  AND recovery_attempts < ?
		ORDER BY updated_at ASC`

	rows, err := r.db.Query(query, formatTime(cutoff), maxAttempts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.collectCarts(rows)
}

// FindExpirable retrieves unresolved carts that have spent their retry
// budget or outlived the long-tail window. The attempts branch only matches
// released claims: a cart whose last attempt was actually delivered stays
// RECOVERY_SENT until the long-tail window runs out.
func (r *SQLCartRepository) FindExpirable(createdBefore time.Time, maxAttempts int) ([]*domain.AbandonedCart, error) {
	query := `SELECT ` + cartColumns + `
		FROM abandoned_carts
		WHERE is_recovered = 0
		  AND expired_at IS NULL
		  AND ((recovery_sent = 0 AND recovery_attempts >= ?) OR created_at <= ?)`

	rows, err := r.db.Query(query, maxAttempts, formatTime(createdBefore))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.collectCarts(rows)
}

// Store persists a new AbandonedCart. A UNIQUE violation on checkout_id
// signals a concurrent insert; callers re-read and merge.
func (r *SQLCartRepository) Store(cart *domain.AbandonedCart) error {
	const query = `
		INSERT INTO abandoned_carts (` + cartColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	itemsJSON, err := marshalItems(cart.Items)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(query,
		cart.ID,
		cart.CheckoutID,
		cart.Email,
		cart.CartURL,
		cart.TotalValue.String(),
		cart.Currency,
		itemsJSON,
		cart.ItemsCount,
		cart.IsRecovered,
		cart.RecoverySent,
		cart.RecoveryAttempts,
		formatNullableTime(cart.LastAttemptAt),
		formatNullableTime(cart.ExpiredAt),
		cart.CouponCode,
		cart.CouponValue,
		formatNullableTime(cart.CouponExpiresAt),
		cart.Source,
		formatTime(cart.CreatedAt),
		formatTime(cart.UpdatedAt),
		formatNullableTime(cart.LastEnrichedAt),
	)
	return err
}

// Update persists changes to an existing AbandonedCart.
func (r *SQLCartRepository) Update(cart *domain.AbandonedCart) error {
	const query = `
		UPDATE abandoned_carts
		SET email = ?, cart_url = ?, total_value = ?, currency = ?, items = ?,
			items_count = ?, is_recovered = ?, recovery_sent = ?, recovery_attempts = ?,
			last_attempt_at = ?, expired_at = ?, coupon_code = ?, coupon_value = ?,
			coupon_expires_at = ?, source = ?, updated_at = ?, last_enriched_at = ?
		WHERE id = ?`

	itemsJSON, err := marshalItems(cart.Items)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(query,
		cart.Email,
		cart.CartURL,
		cart.TotalValue.String(),
		cart.Currency,
		itemsJSON,
		cart.ItemsCount,
		cart.IsRecovered,
		cart.RecoverySent,
		cart.RecoveryAttempts,
		formatNullableTime(cart.LastAttemptAt),
		formatNullableTime(cart.ExpiredAt),
		cart.CouponCode,
		cart.CouponValue,
		formatNullableTime(cart.CouponExpiresAt),
		cart.Source,
		formatTime(cart.UpdatedAt),
		formatNullableTime(cart.LastEnrichedAt),
		cart.ID,
	)
	return err
}

// ClaimForDispatch atomically claims a cart for recovery dispatch. The
// staleness check rides inside the UPDATE so a beacon refreshing the cart
// between scan and claim defeats the claim.
func (r *SQLCartRepository) ClaimForDispatch(checkoutID string, cutoff, now time.Time) (bool, error) {
	const query = `
		UPDATE abandoned_carts
		SET recovery_sent = 1,
			recovery_attempts = recovery_attempts + 1,
			last_attempt_at = ?
		WHERE checkout_id = ?
		  AND recovery_sent = 0
		  AND is_recovered = 0
		  AND expired_at IS NULL
		  AND updated_at <= ?`

	result, err := r.db.Exec(query, formatTime(now), checkoutID, formatTime(cutoff))
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// ReleaseClaim reverses a dispatch claim after a failed send. The attempt
// counter is kept so the retry budget still shrinks.
func (r *SQLCartRepository) ReleaseClaim(checkoutID string) error {
	const query = `
		UPDATE abandoned_carts
		SET recovery_sent = 0
		WHERE checkout_id = ? AND recovery_sent = 1 AND is_recovered = 0`

	_, err := r.db.Exec(query, checkoutID)
	return err
}

// SetCoupon writes the minted coupon fields only. The claim columns and
// updated_at are left alone.
func (r *SQLCartRepository) SetCoupon(checkoutID, code string, value int, expiresAt time.Time) error {
	const query = `
		UPDATE abandoned_carts
		SET coupon_code = ?, coupon_value = ?, coupon_expires_at = ?
		WHERE checkout_id = ?`

	_, err := r.db.Exec(query, code, value, formatTime(expiresAt), checkoutID)
	return err
}

// MarkRecovered flips the recovered flag one-way. Returns false when the
// cart was already recovered.
func (r *SQLCartRepository) MarkRecovered(checkoutID string, now time.Time) (bool, error) {
	const query = `
		UPDATE abandoned_carts
		SET is_recovered = 1, updated_at = ?
		WHERE checkout_id = ? AND is_recovered = 0`

	result, err := r.db.Exec(query, formatTime(now), checkoutID)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// MarkExpired sets the expiry marker once; already-expired carts are left
// untouched.
func (r *SQLCartRepository) MarkExpired(checkoutID string, now time.Time) error {
	const query = `
		UPDATE abandoned_carts
		SET expired_at = ?
		WHERE checkout_id = ? AND expired_at IS NULL AND is_recovered = 0`

	_, err := r.db.Exec(query, formatTime(now), checkoutID)
	return err
}

// scanCart is a helper function to scan a sql.Row into an AbandonedCart struct.
func (r *SQLCartRepository) scanCart(row *sql.Row) (*domain.AbandonedCart, error) {
	var cart domain.AbandonedCart
	var itemsJSON, totalStr, createdStr, updatedStr string
	var lastAttempt, expiredAt, couponExpires, lastEnriched sql.NullString

	err := row.Scan(
		&cart.ID,
		&cart.CheckoutID,
		&cart.Email,
		&cart.CartURL,
		&totalStr,
		&cart.Currency,
		&itemsJSON,
		&cart.ItemsCount,
		&cart.IsRecovered,
		&cart.RecoverySent,
		&cart.RecoveryAttempts,
		&lastAttempt,
		&expiredAt,
		&cart.CouponCode,
		&cart.CouponValue,
		&couponExpires,
		&cart.Source,
		&createdStr,
		&updatedStr,
		&lastEnriched,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, err
	}

	return r.finishCart(&cart, itemsJSON, totalStr, createdStr, updatedStr,
		lastAttempt, expiredAt, couponExpires, lastEnriched)
}

// collectCarts scans all rows into AbandonedCart structs.
func (r *SQLCartRepository) collectCarts(rows *sql.Rows) ([]*domain.AbandonedCart, error) {
	var carts []*domain.AbandonedCart
	for rows.Next() {
		var cart domain.AbandonedCart
		var itemsJSON, totalStr, createdStr, updatedStr string
		var lastAttempt, expiredAt, couponExpires, lastEnriched sql.NullString

		err := rows.Scan(
			&cart.ID,
			&cart.CheckoutID,
			&cart.Email,
			&cart.CartURL,
			&totalStr,
			&cart.Currency,
			&itemsJSON,
			&cart.ItemsCount,
			&cart.IsRecovered,
			&cart.RecoverySent,
			&cart.RecoveryAttempts,
			&lastAttempt,
			&expiredAt,
			&cart.CouponCode,
			&cart.CouponValue,
			&couponExpires,
			&cart.Source,
			&createdStr,
			&updatedStr,
			&lastEnriched,
		)
		if err != nil {
			return nil, err
		}

		scanned, err := r.finishCart(&cart, itemsJSON, totalStr, createdStr, updatedStr,
			lastAttempt, expiredAt, couponExpires, lastEnriched)
		if err != nil {
			return nil, err
		}
		carts = append(carts, scanned)
	}
	return carts, rows.Err()
}

func (r *SQLCartRepository) finishCart(cart *domain.AbandonedCart, itemsJSON, totalStr, createdStr, updatedStr string, lastAttempt, expiredAt, couponExpires, lastEnriched sql.NullString) (*domain.AbandonedCart, error) {
	var err error

	if cart.Items, err = unmarshalItems(itemsJSON); err != nil {
		return nil, err
	}
	if cart.TotalValue, err = parseDecimal(totalStr); err != nil {
		return nil, err
	}
	if cart.CreatedAt, err = parseTimestamp(createdStr); err != nil {
		return nil, err
	}
	if cart.UpdatedAt, err = parseTimestamp(updatedStr); err != nil {
		return nil, err
	}
	if cart.LastAttemptAt, err = parseNullableTimestamp(lastAttempt); err != nil {
		return nil, err
	}
	if cart.ExpiredAt, err = parseNullableTimestamp(expiredAt); err != nil {
		return nil, err
	}
	if cart.CouponExpiresAt, err = parseNullableTimestamp(couponExpires); err != nil {
		return nil, err
	}
	if cart.LastEnrichedAt, err = parseNullableTimestamp(lastEnriched); err != nil {
		return nil, err
	}

	return cart, nil
}
