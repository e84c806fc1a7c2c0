package services

import (
	"context"
	"time"

	"leads-backend/internal/models"
)

// The services depend on these narrow store contracts. The pgx
// repositories implement them for production and internal/storetest
// implements them in memory for tests.

type PrincipalStore interface {
	Create(ctx context.Context, p *models.Principal) error
	Get(ctx context.Context, id int) (*models.Principal, error)
	GetByUsername(ctx context.Context, username string) (*models.Principal, error)
	GetByLogin(ctx context.Context, login string) (*models.Principal, error)
	List(ctx context.Context, includeRetired bool) ([]*models.Principal, error)
	Update(ctx context.Context, p *models.Principal) error
	// Delete nulls owning_agent_id on the principal's leads (agent_name
	// stays) and removes the row.
	Delete(ctx context.Context, id int) error
	CountLeadReferences(ctx context.Context, id int) (int, error)
	SetTOTPSecret(ctx context.Context, id int, secret string) error
	EnableTOTP(ctx context.Context, id int) error
}

type DialerMappingStore interface {
	GetByExternalID(ctx context.Context, externalUserID string) (*models.DialerMapping, error)
	List(ctx context.Context) ([]*models.DialerMapping, error)
	Upsert(ctx context.Context, m *models.DialerMapping) error
	Delete(ctx context.Context, externalUserID string) error
}

type SettingStore interface {
	Get(ctx context.Context, key string) (*models.SystemSetting, error)
	Upsert(ctx context.Context, key, value, description string, updatedBy *int) error
}

type LeadStore interface {
	// Get, GetByPhone and GetByDialerLeadID see soft-deleted rows too
	Get(ctx context.Context, id int) (*models.Lead, error)
	GetByPhone(ctx context.Context, phone string) (*models.Lead, error)
	GetByDialerLeadID(ctx context.Context, dialerLeadID string) (*models.Lead, error)
	List(ctx context.Context, q models.LeadQuery) ([]*models.Lead, error)
	Count(ctx context.Context, q models.LeadQuery) (int, error)
	// Create assigns ID, lead number and version, then writes every row the
	// mutation carries in one transaction.
	Create(ctx context.Context, m *models.LeadMutation) error
	// Update fails with apperr.ErrStale when Lead.Version is out of date.
	Update(ctx context.Context, m *models.LeadMutation) error
	// SetCalendarEventID swaps the event id only if it still equals expected
	SetCalendarEventID(ctx context.Context, leadID int, expected, eventID string) (bool, error)
	HardDeleteExpired(ctx context.Context, deletedBefore time.Time) (int, error)
	History(ctx context.Context, leadID int) ([]*models.LeadStatusChange, error)
	Stats(ctx context.Context) (*models.LeadStats, error)
}

type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	ListForRecipient(ctx context.Context, recipientID int, unreadOnly bool) ([]*models.Notification, error)
	CountUnread(ctx context.Context, recipientID int) (int, error)
	MarkRead(ctx context.Context, id, recipientID int) error
	MarkAllRead(ctx context.Context, recipientID int) (int, error)
	Delete(ctx context.Context, id, recipientID int) error
}

type CallbackStore interface {
	Get(ctx context.Context, id int) (*models.Callback, error)
	ListForAgent(ctx context.Context, agentID int, statuses []string) ([]*models.Callback, error)
	UpdateStatus(ctx context.Context, id int, status, notes string, completedAt *time.Time) error
}

type OutboxStore interface {
	// ClaimDue leases up to limit pending rows whose next attempt has come,
	// skipping rows another worker holds.
	ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.OutboxEntry, error)
	MarkDone(ctx context.Context, id string, attempts int, at time.Time) error
	MarkRetry(ctx context.Context, id string, attempts int, lastErr string, next time.Time) error
	MarkFailed(ctx context.Context, id string, attempts int, lastErr string) error
	CountPending(ctx context.Context) (int, error)
}

type FieldSubmissionStore interface {
	Get(ctx context.Context, id int) (*models.FieldSubmission, error)
	List(ctx context.Context, canvasserID *int) ([]*models.FieldSubmission, error)
	UpdateReview(ctx context.Context, fs *models.FieldSubmission) error
}
