package repositories

import (
	"context"

	"leads-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PrincipalRepository struct {
	DB *pgxpool.Pool
}

func NewPrincipalRepository(db *pgxpool.Pool) *PrincipalRepository {
	return &PrincipalRepository{DB: db}
}

const principalColumns = `id, username, name, email, phone, password_hash, role, is_active,
	totp_secret, totp_enabled, created_at, updated_at`

func scanPrincipal(row pgx.Row) (*models.Principal, error) {
	var p models.Principal
	err := row.Scan(&p.ID, &p.Username, &p.Name, &p.Email, &p.Phone, &p.PasswordHash, &p.Role, &p.IsActive,
		&p.TOTPSecret, &p.TOTPEnabled, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PrincipalRepository) Create(ctx context.Context, p *models.Principal) error {
	err := r.DB.QueryRow(ctx,
		`INSERT INTO principals(username, name, email, phone, password_hash, role, is_active)
         VALUES($1, $2, $3, $4, $5, $6, $7)
         RETURNING id, created_at, updated_at`,
		p.Username, p.Name, p.Email, p.Phone, p.PasswordHash, p.Role, p.IsActive,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return translate(err, "principal", p.Username)
}

func (r *PrincipalRepository) Get(ctx context.Context, id int) (*models.Principal, error) {
	p, err := scanPrincipal(r.DB.QueryRow(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE id=$1`, id))
	return p, translate(err, "principal", id)
}

func (r *PrincipalRepository) GetByUsername(ctx context.Context, username string) (*models.Principal, error) {
	p, err := scanPrincipal(r.DB.QueryRow(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE LOWER(username)=LOWER($1)`, username))
	return p, translate(err, "principal", username)
}

// GetByLogin accepts either the username or the email address
func (r *PrincipalRepository) GetByLogin(ctx context.Context, login string) (*models.Principal, error) {
	p, err := scanPrincipal(r.DB.QueryRow(ctx,
		`SELECT `+principalColumns+` FROM principals
         WHERE LOWER(username)=LOWER($1) OR (email <> '' AND LOWER(email)=LOWER($1))
         ORDER BY (LOWER(username)=LOWER($1)) DESC
         LIMIT 1`, login))
	return p, translate(err, "principal", login)
}

func (r *PrincipalRepository) List(ctx context.Context, includeRetired bool) ([]*models.Principal, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+principalColumns+` FROM principals
         WHERE is_active OR $1
         ORDER BY id`, includeRetired)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var principals []*models.Principal
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, err
		}
		principals = append(principals, p)
	}
	return principals, rows.Err()
}

func (r *PrincipalRepository) Update(ctx context.Context, p *models.Principal) error {
	err := r.DB.QueryRow(ctx,
		`UPDATE principals
         SET name=$2, email=$3, phone=$4, password_hash=$5, role=$6, is_active=$7, updated_at=NOW()
         WHERE id=$1
         RETURNING updated_at`,
		p.ID, p.Name, p.Email, p.Phone, p.PasswordHash, p.Role, p.IsActive,
	).Scan(&p.UpdatedAt)
	return translate(err, "principal", p.ID)
}

// Delete relies on the foreign keys: lead references are set to NULL
// (agent_name stays on the row) and dialer mappings cascade.
func (r *PrincipalRepository) Delete(ctx context.Context, id int) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM principals WHERE id=$1`, id)
	if err != nil {
		return translate(err, "principal", id)
	}
	if tag.RowsAffected() == 0 {
		return translate(pgx.ErrNoRows, "principal", id)
	}
	return nil
}

func (r *PrincipalRepository) CountLeadReferences(ctx context.Context, id int) (int, error) {
	var n int
	err := r.DB.QueryRow(ctx,
		`SELECT COUNT(*) FROM leads
         WHERE owning_agent_id=$1 OR field_sales_rep_id=$1 OR created_by_id=$1`, id).Scan(&n)
	return n, err
}

// SetTOTPSecret stores a fresh secret and disables 2FA until it is verified
func (r *PrincipalRepository) SetTOTPSecret(ctx context.Context, id int, secret string) error {
	return r.exec(ctx, id,
		`UPDATE principals SET totp_secret=$2, totp_enabled=false, updated_at=NOW() WHERE id=$1`, id, secret)
}

func (r *PrincipalRepository) EnableTOTP(ctx context.Context, id int) error {
	return r.exec(ctx, id,
		`UPDATE principals SET totp_enabled=true, updated_at=NOW() WHERE id=$1`, id)
}

func (r *PrincipalRepository) exec(ctx context.Context, id int, sql string, args ...any) error {
	tag, err := r.DB.Exec(ctx, sql, args...)
	if err != nil {
		return translate(err, "principal", id)
	}
	if tag.RowsAffected() == 0 {
		return translate(pgx.ErrNoRows, "principal", id)
	}
	return nil
}
