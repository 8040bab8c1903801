package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/tabletap/payqr/internal/payqr/domain"
	"github.com/tabletap/payqr/internal/payqr/store"
)

type credentialsRepo struct {
	db dbtx
}

const credentialColumns = `token_id, order_id, nonce, short_code, token_hash,
	issued_at, expires_at, used, used_by_user_id, used_by_device_id,
	used_at, superseded_at, created_at`

func (r *credentialsRepo) CreateCredential(ctx context.Context, c domain.Credential) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO credentials (`+credentialColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.TokenID,
		c.OrderID,
		c.Nonce,
		c.ShortCode,
		c.TokenHash,
		c.IssuedAt,
		c.ExpiresAt,
		c.Used,
		mapStringNull(c.UsedByUserID),
		mapStringNull(c.UsedByDeviceID),
		mapOptionalTime(c.UsedAt),
		mapOptionalTime(c.SupersededAt),
		c.CreatedAt,
	)
	return mapConstraint(err)
}

func (r *credentialsRepo) GetCredentialByTokenID(ctx context.Context, tokenID string) (domain.Credential, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+credentialColumns+`
		FROM credentials
		WHERE token_id = ?`,
		tokenID,
	)
	return scanCredential(row)
}

func (r *credentialsRepo) GetLatestCredentialByShortCode(ctx context.Context, shortCode string) (domain.Credential, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+credentialColumns+`
		FROM credentials
		WHERE short_code = ?
		ORDER BY issued_at DESC, token_id DESC
		LIMIT 1`,
		shortCode,
	)
	return scanCredential(row)
}

func (r *credentialsRepo) ShortCodeInUse(ctx context.Context, shortCode string, now time.Time) (bool, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(1)
		FROM credentials
		WHERE short_code = ?
		  AND used = 0
		  AND superseded_at IS NULL
		  AND expires_at > ?`,
		shortCode, now,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkCredentialUsed is the single conditional update enforcing the
// exactly-once consumption guarantee: the WHERE used = 0 clause means two
// racing confirms can never both see an affected row.
func (r *credentialsRepo) MarkCredentialUsed(ctx context.Context, tokenID, userID, deviceID string, usedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE credentials
		SET used = 1,
		    used_by_user_id = ?,
		    used_by_device_id = ?,
		    used_at = ?
		WHERE token_id = ?
		  AND used = 0`,
		mapStringNull(userID), mapStringNull(deviceID), usedAt, tokenID,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *credentialsRepo) SupersedeActiveCredentials(ctx context.Context, orderID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE credentials
		SET superseded_at = ?
		WHERE order_id = ?
		  AND used = 0
		  AND superseded_at IS NULL
		  AND expires_at > ?`,
		at, orderID, at,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *credentialsRepo) CountExpiredUnused(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(1)
		FROM credentials
		WHERE used = 0
		  AND expires_at <= ?`,
		now,
	).Scan(&n)
	return n, err
}

func scanCredential(row *sql.Row) (domain.Credential, error) {
	var (
		c            domain.Credential
		usedByUser   sql.NullString
		usedByDevice sql.NullString
		usedAt       sql.NullTime
		supersededAt sql.NullTime
	)

	err := row.Scan(
		&c.TokenID,
		&c.OrderID,
		&c.Nonce,
		&c.ShortCode,
		&c.TokenHash,
		&c.IssuedAt,
		&c.ExpiresAt,
		&c.Used,
		&usedByUser,
		&usedByDevice,
		&usedAt,
		&supersededAt,
		&c.CreatedAt,
	)
	if err != nil {
		return domain.Credential{}, mapNotFound(err)
	}

	c.UsedByUserID = mapNullString(usedByUser)
	c.UsedByDeviceID = mapNullString(usedByDevice)
	c.UsedAt = mapNullTimePtr(usedAt)
	c.SupersededAt = mapNullTimePtr(supersededAt)
	return c, nil
}
