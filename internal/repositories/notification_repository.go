package repositories

import (
	"context"

	"leads-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationRepository struct {
	DB *pgxpool.Pool
}

func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{DB: db}
}

// Create writes a notification outside a lead transaction
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	err := r.DB.QueryRow(ctx,
		`INSERT INTO notifications (recipient_id, sender_id, lead_id, message, type, created_at)
         VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))
         RETURNING id, created_at`,
		n.RecipientID, n.SenderID, n.LeadID, n.Message, n.Type, nullTime(n.CreatedAt),
	).Scan(&n.ID, &n.CreatedAt)
	return translate(err, "notification", n.LeadID)
}

// ListForRecipient returns newest first
func (r *NotificationRepository) ListForRecipient(ctx context.Context, recipientID int, unreadOnly bool) ([]*models.Notification, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT n.id, n.recipient_id, n.sender_id, n.lead_id, l.lead_number, n.message, n.type, n.is_read, n.created_at
         FROM notifications n
         JOIN leads l ON l.id = n.lead_id
         WHERE n.recipient_id=$1 AND (NOT $2 OR NOT n.is_read)
         ORDER BY n.created_at DESC, n.id DESC`, recipientID, unreadOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.SenderID, &n.LeadID, &n.LeadNumber, &n.Message, &n.Type, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

func (r *NotificationRepository) CountUnread(ctx context.Context, recipientID int) (int, error) {
	var n int
	err := r.DB.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id=$1 AND NOT is_read`, recipientID).Scan(&n)
	return n, err
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID int) error {
	tag, err := r.DB.Exec(ctx,
		`UPDATE notifications SET is_read=true WHERE id=$1 AND recipient_id=$2`, id, recipientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return translate(pgx.ErrNoRows, "notification", id)
	}
	return nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID int) (int, error) {
	tag, err := r.DB.Exec(ctx,
		`UPDATE notifications SET is_read=true WHERE recipient_id=$1 AND NOT is_read`, recipientID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *NotificationRepository) Delete(ctx context.Context, id, recipientID int) error {
	tag, err := r.DB.Exec(ctx,
		`DELETE FROM notifications WHERE id=$1 AND recipient_id=$2`, id, recipientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return translate(pgx.ErrNoRows, "notification", id)
	}
	return nil
}
