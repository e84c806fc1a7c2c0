package repositories

import (
	"context"
	"sort"
	"time"

	"leads-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OutboxRepository serves the side-effect worker. Rows are inserted by the
// lead repository in the same transaction as the change that caused them.
type OutboxRepository struct {
	DB *pgxpool.Pool
}

func NewOutboxRepository(db *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{DB: db}
}

// ClaimDue leases due rows by pushing next_attempt_at past the lease, so a
// second worker skips them until the lease runs out.
func (r *OutboxRepository) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.OutboxEntry, error) {
	rows, err := r.DB.Query(ctx,
		`WITH due AS (
             SELECT id FROM lead_outbox
             WHERE status='pending' AND next_attempt_at <= $1
             ORDER BY seq
             LIMIT NULLIF($2, 0)
             FOR UPDATE SKIP LOCKED
         )
         UPDATE lead_outbox o SET next_attempt_at=$3
         FROM due WHERE o.id = due.id
         RETURNING o.id, o.lead_id, o.kind, o.payload, o.status, o.attempts, o.max_attempts,
                   o.last_error, o.next_attempt_at, o.created_at, o.done_at, o.seq`,
		now, limit, now.Add(lease))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type claimed struct {
		entry *models.OutboxEntry
		seq   int64
	}
	var out []claimed
	for rows.Next() {
		var e models.OutboxEntry
		var seq int64
		err := rows.Scan(&e.ID, &e.LeadID, &e.Kind, &e.Payload, &e.Status, &e.Attempts, &e.MaxAttempts,
			&e.LastError, &e.NextAttemptAt, &e.CreatedAt, &e.DoneAt, &seq)
		if err != nil {
			return nil, err
		}
		out = append(out, claimed{&e, seq})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// RETURNING does not keep the CTE order
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	entries := make([]*models.OutboxEntry, len(out))
	for i, c := range out {
		entries[i] = c.entry
	}
	return entries, nil
}

func (r *OutboxRepository) MarkDone(ctx context.Context, id string, attempts int, at time.Time) error {
	return r.exec(ctx, id,
		`UPDATE lead_outbox SET status='done', attempts=$2, last_error='', done_at=$3 WHERE id=$1`, id, attempts, at)
}

func (r *OutboxRepository) MarkRetry(ctx context.Context, id string, attempts int, lastErr string, next time.Time) error {
	return r.exec(ctx, id,
		`UPDATE lead_outbox SET attempts=$2, last_error=$3, next_attempt_at=$4 WHERE id=$1`, id, attempts, lastErr, next)
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, attempts int, lastErr string) error {
	return r.exec(ctx, id,
		`UPDATE lead_outbox SET status='failed', attempts=$2, last_error=$3 WHERE id=$1`, id, attempts, lastErr)
}

func (r *OutboxRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM lead_outbox WHERE status='pending'`).Scan(&n)
	return n, err
}

// PurgeDone removes finished rows older than before; failed rows stay for
// inspection.
func (r *OutboxRepository) PurgeDone(ctx context.Context, before time.Time) (int, error) {
	tag, err := r.DB.Exec(ctx, `DELETE FROM lead_outbox WHERE status='done' AND done_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *OutboxRepository) exec(ctx context.Context, id string, sql string, args ...any) error {
	tag, err := r.DB.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return translate(pgx.ErrNoRows, "outbox entry", id)
	}
	return nil
}
