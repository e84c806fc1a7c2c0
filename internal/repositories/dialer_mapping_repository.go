package repositories

import (
	"context"

	"leads-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DialerMappingRepository struct {
	DB *pgxpool.Pool
}

func NewDialerMappingRepository(db *pgxpool.Pool) *DialerMappingRepository {
	return &DialerMappingRepository{DB: db}
}

func (r *DialerMappingRepository) GetByExternalID(ctx context.Context, externalUserID string) (*models.DialerMapping, error) {
	var m models.DialerMapping
	err := r.DB.QueryRow(ctx,
		`SELECT m.id, m.external_user_id, m.principal_id, p.name, m.created_at, m.updated_at
         FROM dialer_mappings m
         JOIN principals p ON p.id = m.principal_id
         WHERE m.external_user_id=$1`, externalUserID,
	).Scan(&m.ID, &m.ExternalUserID, &m.PrincipalID, &m.PrincipalName, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, translate(err, "dialer mapping", externalUserID)
	}
	return &m, nil
}

func (r *DialerMappingRepository) List(ctx context.Context) ([]*models.DialerMapping, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT m.id, m.external_user_id, m.principal_id, p.name, m.created_at, m.updated_at
         FROM dialer_mappings m
         JOIN principals p ON p.id = m.principal_id
         ORDER BY m.external_user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	mappings := []*models.DialerMapping{}
	for rows.Next() {
		var m models.DialerMapping
		if err := rows.Scan(&m.ID, &m.ExternalUserID, &m.PrincipalID, &m.PrincipalName, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		mappings = append(mappings, &m)
	}
	return mappings, rows.Err()
}

// Upsert rebinds an external id to a principal. The unique constraint on
// principal_id keeps the mapping one-to-one.
func (r *DialerMappingRepository) Upsert(ctx context.Context, m *models.DialerMapping) error {
	err := r.DB.QueryRow(ctx,
		`INSERT INTO dialer_mappings (external_user_id, principal_id)
         VALUES ($1, $2)
         ON CONFLICT (external_user_id)
         DO UPDATE SET principal_id = EXCLUDED.principal_id, updated_at = NOW()
         RETURNING id, created_at, updated_at`,
		m.ExternalUserID, m.PrincipalID,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	return translate(err, "dialer mapping", m.ExternalUserID)
}

func (r *DialerMappingRepository) Delete(ctx context.Context, externalUserID string) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM dialer_mappings WHERE external_user_id=$1`, externalUserID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return translate(pgx.ErrNoRows, "dialer mapping", externalUserID)
	}
	return nil
}
