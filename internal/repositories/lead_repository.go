package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"leads-backend/internal/apperr"
	"leads-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LeadRepository struct {
	DB *pgxpool.Pool
}

func NewLeadRepository(db *pgxpool.Pool) *LeadRepository {
	return &LeadRepository{DB: db}
}

// leadWriteColumns are written by both insert and update, in argument order
var leadWriteColumns = []string{
	"phone", "email", "dialer_lead_id",
	"full_name", "title", "first_name", "middle_name", "last_name",
	"address1", "address2", "address3", "city", "state", "province", "postal_code", "country_code",
	"status", "disposition",
	"owning_agent_id", "agent_name", "field_sales_rep_id", "sales_rep_name",
	"appointment_date", "calendar_event_id", "qualifier_callback_at",
	"sale_amount", "notes",
	"dialer", "script", "survey",
	"energy_bill_amount", "has_ev_charger", "day_night_rate", "has_previous_quotes", "previous_quotes_details",
	"source", "created_by_id",
	"is_deleted", "deleted_at", "deleted_by_id", "deletion_reason",
}

func leadWriteArgs(l *models.Lead) []any {
	return []any{
		l.Phone, l.Email, l.DialerLeadID,
		l.FullName, l.Title, l.FirstName, l.MiddleName, l.LastName,
		l.AddressLine1, l.AddressLine2, l.AddressLine3, l.City, l.State, l.Province, l.PostalCode, l.Country,
		l.Status, l.Disposition,
		l.OwningAgentID, l.AgentName, l.FieldSalesRepID, l.SalesRepName,
		l.AppointmentDate, l.CalendarEventID, l.QualifierCallbackAt,
		l.SaleAmount, l.Notes,
		l.Dialer, l.Script, l.Survey,
		l.Energy.EnergyBillAmount, l.Energy.HasEVCharger, l.Energy.DayNightRate, l.Energy.HasPreviousQuotes, l.Energy.PreviousQuotesDetails,
		l.Source, l.CreatedByID,
		l.IsDeleted, l.DeletedAt, l.DeletedByID, l.DeletionReason,
	}
}

var (
	insertLeadSQL string
	updateLeadSQL string
)

func init() {
	n := len(leadWriteColumns)
	placeholders := make([]string, n)
	sets := make([]string, n)
	for i, c := range leadWriteColumns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		sets[i] = fmt.Sprintf("%s=$%d", c, i+3)
	}
	// $n+1 lead number, $n+2 created_at, $n+3 updated_at
	insertLeadSQL = fmt.Sprintf(
		`INSERT INTO leads (%s, lead_number, created_at, updated_at)
         VALUES (%s, $%d, COALESCE($%d, NOW()), COALESCE($%d, $%d, NOW()))
         RETURNING id, created_at, updated_at, version`,
		strings.Join(leadWriteColumns, ", "), strings.Join(placeholders, ", "), n+1, n+2, n+3, n+2)
	// $1 id, $2 expected version, then the columns, then updated_at
	updateLeadSQL = fmt.Sprintf(
		`UPDATE leads SET %s, updated_at=COALESCE($%d, NOW()), version=version+1
         WHERE id=$1 AND version=$2
         RETURNING lead_number, created_at, updated_at, version`,
		strings.Join(sets, ", "), n+3)
}

const leadSelect = `SELECT l.id, l.lead_number, l.phone, l.email, l.dialer_lead_id,
	l.full_name, l.title, l.first_name, l.middle_name, l.last_name,
	l.address1, l.address2, l.address3, l.city, l.state, l.province, l.postal_code, l.country_code,
	l.status, l.disposition,
	l.owning_agent_id, l.agent_name, l.field_sales_rep_id, l.sales_rep_name,
	l.appointment_date, l.calendar_event_id, l.qualifier_callback_at,
	l.sale_amount, l.notes,
	l.dialer, l.script, l.survey,
	l.energy_bill_amount, l.has_ev_charger, l.day_night_rate, l.has_previous_quotes, l.previous_quotes_details,
	l.source, l.created_by_id, fs.id,
	l.is_deleted, l.deleted_at, l.deleted_by_id, l.deletion_reason,
	l.created_at, l.updated_at, l.version
FROM leads l
LEFT JOIN field_submissions fs ON fs.lead_id = l.id`

func scanLead(row pgx.Row) (*models.Lead, error) {
	var l models.Lead
	err := row.Scan(&l.ID, &l.LeadNumber, &l.Phone, &l.Email, &l.DialerLeadID,
		&l.FullName, &l.Title, &l.FirstName, &l.MiddleName, &l.LastName,
		&l.AddressLine1, &l.AddressLine2, &l.AddressLine3, &l.City, &l.State, &l.Province, &l.PostalCode, &l.Country,
		&l.Status, &l.Disposition,
		&l.OwningAgentID, &l.AgentName, &l.FieldSalesRepID, &l.SalesRepName,
		&l.AppointmentDate, &l.CalendarEventID, &l.QualifierCallbackAt,
		&l.SaleAmount, &l.Notes,
		&l.Dialer, &l.Script, &l.Survey,
		&l.Energy.EnergyBillAmount, &l.Energy.HasEVCharger, &l.Energy.DayNightRate, &l.Energy.HasPreviousQuotes, &l.Energy.PreviousQuotesDetails,
		&l.Source, &l.CreatedByID, &l.FieldSubmissionID,
		&l.IsDeleted, &l.DeletedAt, &l.DeletedByID, &l.DeletionReason,
		&l.CreatedAt, &l.UpdatedAt, &l.Version)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *LeadRepository) Get(ctx context.Context, id int) (*models.Lead, error) {
	l, err := scanLead(r.DB.QueryRow(ctx, leadSelect+` WHERE l.id=$1`, id))
	return l, translate(err, "lead", id)
}

func (r *LeadRepository) GetByPhone(ctx context.Context, phone string) (*models.Lead, error) {
	phone = models.NormalizePhone(phone)
	l, err := scanLead(r.DB.QueryRow(ctx, leadSelect+` WHERE l.phone=$1`, phone))
	return l, translate(err, "lead with phone", phone)
}

func (r *LeadRepository) GetByDialerLeadID(ctx context.Context, dialerLeadID string) (*models.Lead, error) {
	l, err := scanLead(r.DB.QueryRow(ctx, leadSelect+` WHERE l.dialer_lead_id=$1`, dialerLeadID))
	return l, translate(err, "lead with dialer id", dialerLeadID)
}

func (r *LeadRepository) getByNumber(ctx context.Context, number string) (*models.Lead, error) {
	l, err := scanLead(r.DB.QueryRow(ctx, leadSelect+` WHERE l.lead_number=$1`, number))
	return l, translate(err, "lead", number)
}

func (r *LeadRepository) List(ctx context.Context, q models.LeadQuery) ([]*models.Lead, error) {
	if q.Empty {
		return []*models.Lead{}, nil
	}
	where, args := leadFilter(q)
	sql := leadSelect + where + leadOrder(q.OrderBy)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		sql += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := []*models.Lead{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

func (r *LeadRepository) Count(ctx context.Context, q models.LeadQuery) (int, error) {
	if q.Empty {
		return 0, nil
	}
	where, args := leadFilter(q)
	var n int
	err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM leads l`+where, args...).Scan(&n)
	return n, err
}

// leadFilter renders LeadQuery.Matches as a WHERE clause
func leadFilter(q models.LeadQuery) (string, []any) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch {
	case q.OnlyDeleted:
		conds = append(conds, "l.is_deleted")
	case !q.IncludeDeleted:
		conds = append(conds, "NOT l.is_deleted")
	}
	if len(q.Statuses) > 0 {
		conds = append(conds, "l.status = ANY("+arg(q.Statuses)+")")
	}
	if q.OwningAgentID != nil {
		conds = append(conds, "l.owning_agent_id = "+arg(*q.OwningAgentID))
	}
	if q.FieldSalesRepID != nil {
		conds = append(conds, "l.field_sales_rep_id = "+arg(*q.FieldSalesRepID))
	}
	if q.CreatedByID != nil {
		conds = append(conds, "l.created_by_id = "+arg(*q.CreatedByID))
	}
	if q.Source != "" {
		conds = append(conds, "l.source = "+arg(q.Source))
	}
	if q.Search != "" {
		p := arg("%" + escapeLike(q.Search) + "%")
		conds = append(conds, fmt.Sprintf(
			"(l.full_name ILIKE %[1]s OR l.phone ILIKE %[1]s OR l.email ILIKE %[1]s OR l.lead_number ILIKE %[1]s)", p))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func leadOrder(orderBy string) string {
	dir := "DESC"
	col := "created_at"
	if orderBy != "" {
		if !strings.HasPrefix(orderBy, "-") {
			dir = "ASC"
		}
		if c, ok := models.LeadOrderings[strings.TrimPrefix(orderBy, "-")]; ok {
			col = c
		}
	}
	return fmt.Sprintf(" ORDER BY l.%s %s, l.id %s", col, dir, dir)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Create numbers the lead from its prefix sequence and writes it with every
// owned row in one transaction.
func (r *LeadRepository) Create(ctx context.Context, m *models.LeadMutation) error {
	l := m.Lead
	l.Phone = models.NormalizePhone(l.Phone)
	prefix := m.NumberPrefix
	if prefix == "" {
		prefix = models.LeadPrefixManual
	}

	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var seq int
	err = tx.QueryRow(ctx,
		`INSERT INTO lead_number_sequences (prefix, last_value) VALUES ($1, 1)
         ON CONFLICT (prefix) DO UPDATE SET last_value = lead_number_sequences.last_value + 1
         RETURNING last_value`, prefix).Scan(&seq)
	if err != nil {
		return err
	}
	l.LeadNumber = fmt.Sprintf("%s%03d", prefix, seq)

	args := append(leadWriteArgs(l), l.LeadNumber, nullTime(l.CreatedAt), nullTime(l.UpdatedAt))
	err = tx.QueryRow(ctx, insertLeadSQL, args...).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt, &l.Version)
	if err != nil {
		return r.writeError(ctx, err, l)
	}

	if err := writeOwned(ctx, tx, l, m); err != nil {
		return r.writeError(ctx, err, l)
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	return nil
}

// Update writes the lead only if its version is unchanged since the read
func (r *LeadRepository) Update(ctx context.Context, m *models.LeadMutation) error {
	l := m.Lead
	l.Phone = models.NormalizePhone(l.Phone)

	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	args := append([]any{l.ID, l.Version}, leadWriteArgs(l)...)
	args = append(args, nullTime(l.UpdatedAt))
	err = tx.QueryRow(ctx, updateLeadSQL, args...).Scan(&l.LeadNumber, &l.CreatedAt, &l.UpdatedAt, &l.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM leads WHERE id=$1)`, l.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return apperr.NotFound("lead", l.ID)
		}
		return apperr.ErrStale
	}
	if err != nil {
		return r.writeError(ctx, err, l)
	}

	if m.UnlinkSubmission {
		if _, err := tx.Exec(ctx, `UPDATE field_submissions SET lead_id=NULL, updated_at=NOW() WHERE lead_id=$1`, l.ID); err != nil {
			return err
		}
	}
	if err := writeOwned(ctx, tx, l, m); err != nil {
		return r.writeError(ctx, err, l)
	}
	return tx.Commit(ctx)
}

// writeOwned inserts the history row, notifications, callback, outbox
// intents and field submission a mutation carries.
func writeOwned(ctx context.Context, tx pgx.Tx, l *models.Lead, m *models.LeadMutation) error {
	if h := m.StatusChange; h != nil {
		h.LeadID = l.ID
		err := tx.QueryRow(ctx,
			`INSERT INTO lead_status_history (lead_id, from_status, to_status, operation, actor_id, reason, created_at)
             VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
             RETURNING id, created_at`,
			h.LeadID, h.FromStatus, h.ToStatus, h.Operation, h.ActorID, h.Reason, nullTime(h.CreatedAt),
		).Scan(&h.ID, &h.CreatedAt)
		if err != nil {
			return err
		}
	}

	for _, n := range m.Notifications {
		n.LeadID = l.ID
		if n.LeadNumber == "" {
			n.LeadNumber = l.LeadNumber
		}
		err := tx.QueryRow(ctx,
			`INSERT INTO notifications (recipient_id, sender_id, lead_id, message, type, created_at)
             VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))
             RETURNING id, created_at`,
			n.RecipientID, n.SenderID, n.LeadID, n.Message, n.Type, nullTime(n.CreatedAt),
		).Scan(&n.ID, &n.CreatedAt)
		if err != nil {
			return err
		}
	}

	if cb := m.Callback; cb != nil {
		cb.LeadID = l.ID
		if cb.Status == "" {
			cb.Status = models.CallbackScheduled
		}
		err := tx.QueryRow(ctx,
			`INSERT INTO callbacks (lead_id, agent_id, scheduled_time, status, notes, created_by_id)
             VALUES ($1, $2, $3, $4, $5, $6)
             RETURNING id, created_at, updated_at`,
			cb.LeadID, cb.AgentID, cb.ScheduledTime, cb.Status, cb.Notes, cb.CreatedByID,
		).Scan(&cb.ID, &cb.CreatedAt, &cb.UpdatedAt)
		if err != nil {
			return err
		}
	}

	if len(m.Outbox) > 0 {
		batch := &pgx.Batch{}
		for _, e := range m.Outbox {
			e.LeadID = l.ID
			if e.Status == "" {
				e.Status = models.OutboxPending
			}
			if e.CreatedAt.IsZero() {
				e.CreatedAt = time.Now()
			}
			payload := e.Payload
			if len(payload) == 0 {
				payload = json.RawMessage("{}")
			}
			batch.Queue(
				`INSERT INTO lead_outbox (id, lead_id, kind, payload, status, attempts, max_attempts, next_attempt_at, created_at)
                 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				e.ID, e.LeadID, e.Kind, payload, e.Status, e.Attempts, e.MaxAttempts, e.NextAttemptAt, e.CreatedAt)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}

	if fs := m.FieldSubmission; fs != nil {
		if err := writeSubmission(ctx, tx, l.ID, fs); err != nil {
			return err
		}
	}

	return tx.QueryRow(ctx, `SELECT (SELECT id FROM field_submissions WHERE lead_id=$1)`, l.ID).Scan(&l.FieldSubmissionID)
}

// writeSubmission inserts a new submission linked to the lead, or rewrites
// the assessment of an existing one. The review block is never touched here.
func writeSubmission(ctx context.Context, tx pgx.Tx, leadID int, fs *models.FieldSubmission) error {
	if fs.ID == 0 {
		if fs.ReviewStatus == "" {
			fs.ReviewStatus = models.ReviewPending
		}
		fs.LeadID = &leadID
		return tx.QueryRow(ctx,
			`INSERT INTO field_submissions (canvasser_id, lead_id, full_name, phone, email, address1, address2, city, postal_code,
                 property_type, property_ownership, roof_type, roof_orientation, shading, monthly_bill, notes, review_status)
             VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
             RETURNING id, created_at, updated_at`,
			fs.CanvasserID, fs.LeadID, fs.FullName, fs.Phone, fs.Email, fs.AddressLine1, fs.AddressLine2, fs.City, fs.PostalCode,
			fs.PropertyType, fs.PropertyOwnership, fs.RoofType, fs.RoofOrientation, fs.Shading, fs.MonthlyBill, fs.Notes, fs.ReviewStatus,
		).Scan(&fs.ID, &fs.CreatedAt, &fs.UpdatedAt)
	}
	return tx.QueryRow(ctx,
		`UPDATE field_submissions
         SET full_name=$2, phone=$3, email=$4, address1=$5, address2=$6, city=$7, postal_code=$8,
             property_type=$9, property_ownership=$10, roof_type=$11, roof_orientation=$12, shading=$13,
             monthly_bill=$14, notes=$15, updated_at=NOW()
         WHERE id=$1
         RETURNING review_status, reviewer_id, reviewed_at, reviewer_notes, created_at, updated_at`,
		fs.ID, fs.FullName, fs.Phone, fs.Email, fs.AddressLine1, fs.AddressLine2, fs.City, fs.PostalCode,
		fs.PropertyType, fs.PropertyOwnership, fs.RoofType, fs.RoofOrientation, fs.Shading,
		fs.MonthlyBill, fs.Notes,
	).Scan(&fs.ReviewStatus, &fs.ReviewerID, &fs.ReviewedAt, &fs.ReviewerNotes, &fs.CreatedAt, &fs.UpdatedAt)
}

// writeError turns a unique violation on the lead's natural keys into a
// DuplicateKey naming the row that already holds the value.
func (r *LeadRepository) writeError(ctx context.Context, err error, l *models.Lead) error {
	constraint, ok := uniqueViolation(err)
	if !ok {
		return translate(err, "lead", l.ID)
	}
	field := uniqueFields[constraint]

	var existing *models.Lead
	var lookupErr error
	switch constraint {
	case "leads_phone_key":
		existing, lookupErr = r.GetByPhone(ctx, l.Phone)
	case "leads_dialer_lead_id_key":
		if l.DialerLeadID == nil {
			return translate(err, "lead", l.ID)
		}
		existing, lookupErr = r.GetByDialerLeadID(ctx, *l.DialerLeadID)
	case "leads_lead_number_key":
		existing, lookupErr = r.getByNumber(ctx, l.LeadNumber)
	default:
		return translate(err, "lead", l.ID)
	}
	if lookupErr != nil {
		// the holder vanished between the failed write and the lookup
		return apperr.DuplicateKey(field, 0, "")
	}
	return apperr.DuplicateKey(field, existing.ID, existing.DisplayName())
}

// SetCalendarEventID is a compare-and-swap on the event id. It bumps the
// version so a concurrent read-modify-write retries on top of it.
func (r *LeadRepository) SetCalendarEventID(ctx context.Context, leadID int, expected, eventID string) (bool, error) {
	tag, err := r.DB.Exec(ctx,
		`UPDATE leads SET calendar_event_id=$3, version=version+1
         WHERE id=$1 AND calendar_event_id=$2`, leadID, expected, eventID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	var exists bool
	if err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM leads WHERE id=$1)`, leadID).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, apperr.NotFound("lead", leadID)
	}
	return false, nil
}

// HardDeleteExpired purges soft-deleted leads past retention. History,
// notifications, callbacks and outbox rows cascade; submissions are unlinked.
func (r *LeadRepository) HardDeleteExpired(ctx context.Context, deletedBefore time.Time) (int, error) {
	tag, err := r.DB.Exec(ctx,
		`DELETE FROM leads WHERE is_deleted AND deleted_at < $1`, deletedBefore)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *LeadRepository) History(ctx context.Context, leadID int) ([]*models.LeadStatusChange, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT id, lead_id, from_status, to_status, operation, actor_id, reason, created_at
         FROM lead_status_history
         WHERE lead_id=$1
         ORDER BY id`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []*models.LeadStatusChange
	for rows.Next() {
		var h models.LeadStatusChange
		if err := rows.Scan(&h.ID, &h.LeadID, &h.FromStatus, &h.ToStatus, &h.Operation, &h.ActorID, &h.Reason, &h.CreatedAt); err != nil {
			return nil, err
		}
		history = append(history, &h)
	}
	return history, rows.Err()
}

func (r *LeadRepository) Stats(ctx context.Context) (*models.LeadStats, error) {
	st := &models.LeadStats{ByStatus: map[string]int{}, ByAgent: map[string]int{}}

	err := r.DB.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE NOT is_deleted), COUNT(*) FILTER (WHERE is_deleted) FROM leads`,
	).Scan(&st.Total, &st.Deleted)
	if err != nil {
		return nil, err
	}

	if err := r.group(ctx, `SELECT status, COUNT(*) FROM leads WHERE NOT is_deleted GROUP BY status`, st.ByStatus); err != nil {
		return nil, err
	}
	err = r.group(ctx,
		`SELECT COALESCE(NULLIF(agent_name, ''), 'unassigned'), COUNT(*)
         FROM leads WHERE NOT is_deleted GROUP BY 1`, st.ByAgent)
	if err != nil {
		return nil, err
	}

	err = r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM lead_outbox WHERE status='pending'`).Scan(&st.OutboxBacklog)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (r *LeadRepository) group(ctx context.Context, sql string, into map[string]int) error {
	rows, err := r.DB.Query(ctx, sql)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		into[key] += n
	}
	return rows.Err()
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
