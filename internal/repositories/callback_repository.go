package repositories

import (
	"context"
	"time"

	"leads-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CallbackRepository reads and closes callbacks. They are created inside
// the lead transaction that moves the lead to callback.
type CallbackRepository struct {
	DB *pgxpool.Pool
}

func NewCallbackRepository(db *pgxpool.Pool) *CallbackRepository {
	return &CallbackRepository{DB: db}
}

const callbackSelect = `SELECT c.id, c.lead_id, c.agent_id, c.scheduled_time, c.status, c.notes, c.created_by_id,
	c.completed_at, c.created_at, c.updated_at, COALESCE(NULLIF(l.full_name, ''), TRIM(CONCAT_WS(' ', NULLIF(l.first_name, ''), NULLIF(l.middle_name, ''), NULLIF(l.last_name, ''))))
FROM callbacks c
JOIN leads l ON l.id = c.lead_id`

func scanCallback(row pgx.Row) (*models.Callback, error) {
	var c models.Callback
	err := row.Scan(&c.ID, &c.LeadID, &c.AgentID, &c.ScheduledTime, &c.Status, &c.Notes, &c.CreatedByID,
		&c.CompletedAt, &c.CreatedAt, &c.UpdatedAt, &c.LeadName)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CallbackRepository) Get(ctx context.Context, id int) (*models.Callback, error) {
	c, err := scanCallback(r.DB.QueryRow(ctx, callbackSelect+` WHERE c.id=$1`, id))
	return c, translate(err, "callback", id)
}

// ListForAgent returns the agent's callbacks in schedule order. An empty
// statuses slice means every status.
func (r *CallbackRepository) ListForAgent(ctx context.Context, agentID int, statuses []string) ([]*models.Callback, error) {
	rows, err := r.DB.Query(ctx,
		callbackSelect+`
         WHERE c.agent_id=$1 AND (cardinality($2::text[]) = 0 OR c.status = ANY($2))
         ORDER BY c.scheduled_time, c.id`, agentID, statuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var callbacks []*models.Callback
	for rows.Next() {
		c, err := scanCallback(rows)
		if err != nil {
			return nil, err
		}
		callbacks = append(callbacks, c)
	}
	return callbacks, rows.Err()
}

// UpdateStatus keeps the stored notes when notes is empty
func (r *CallbackRepository) UpdateStatus(ctx context.Context, id int, status, notes string, completedAt *time.Time) error {
	tag, err := r.DB.Exec(ctx,
		`UPDATE callbacks
         SET status=$2, notes=COALESCE(NULLIF($3, ''), notes), completed_at=$4, updated_at=NOW()
         WHERE id=$1`, id, status, notes, completedAt)
	if err != nil {
		return translate(err, "callback", id)
	}
	if tag.RowsAffected() == 0 {
		return translate(pgx.ErrNoRows, "callback", id)
	}
	return nil
}
