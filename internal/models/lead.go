package models

import (
	"strings"
	"time"
)

// Lead lifecycle states
const (
	StatusColdCall             = "cold_call"
	StatusInterested           = "interested"
	StatusNotInterested        = "not_interested"
	StatusTenant               = "tenant"
	StatusOtherDisposition     = "other_disposition"
	StatusSentToKelly          = "sent_to_kelly"
	StatusQualified            = "qualified"
	StatusAppointmentSet       = "appointment_set"
	StatusAppointmentCompleted = "appointment_completed"
	StatusSaleMade             = "sale_made"
	StatusSaleLost             = "sale_lost"
	StatusNoContact            = "no_contact"
	StatusBlowOut              = "blow_out"
	StatusCallback             = "callback"
	StatusPassBackToAgent      = "pass_back_to_agent"
)

// AllStatuses lists every lifecycle state in declaration order
var AllStatuses = []string{
	StatusColdCall, StatusInterested, StatusNotInterested, StatusTenant, StatusOtherDisposition,
	StatusSentToKelly, StatusQualified, StatusAppointmentSet, StatusAppointmentCompleted,
	StatusSaleMade, StatusSaleLost, StatusNoContact, StatusBlowOut, StatusCallback, StatusPassBackToAgent,
}

func ValidStatus(s string) bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Cold-call dispositions
const (
	DispositionNotInterested     = "not_interested"
	DispositionTenant            = "tenant"
	DispositionWrongNumber       = "wrong_number"
	DispositionNoAnswer          = "no_answer"
	DispositionCallbackRequested = "callback_requested"
	DispositionDoNotCall         = "do_not_call"
	DispositionOther             = "other"
)

func ValidDisposition(d string) bool {
	switch d {
	case DispositionNotInterested, DispositionTenant, DispositionWrongNumber, DispositionNoAnswer,
		DispositionCallbackRequested, DispositionDoNotCall, DispositionOther:
		return true
	}
	return false
}

// Lead sources
const (
	SourceDialer          = "dialer"
	SourceManual          = "manual"
	SourceImport          = "import"
	SourceFieldSubmission = "field_submission"
)

// Lead number prefixes, one sequence each
const (
	LeadPrefixManual = "ME"
	LeadPrefixImport = "MS"
	LeadPrefixDialer = "DL"
	LeadPrefixField  = "FS"
)

// Lead is the central record. Dialer echo, script payload and survey are typed
// sub-records persisted as JSONB; everything else is a real column.
type Lead struct {
	ID           int     `json:"id"`
	LeadNumber   string  `json:"lead_number"` // immutable once assigned
	Phone        string  `json:"phone"`
	Email        string  `json:"email,omitempty"`
	DialerLeadID *string `json:"dialer_lead_id,omitempty"`

	FullName     string `json:"full_name"`
	Title        string `json:"title,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	MiddleName   string `json:"middle_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	AddressLine1 string `json:"address1,omitempty"`
	AddressLine2 string `json:"address2,omitempty"`
	AddressLine3 string `json:"address3,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	Province     string `json:"province,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	Country      string `json:"country_code,omitempty"`

	Status      string `json:"status"`
	Disposition string `json:"disposition,omitempty"`

	OwningAgentID   *int   `json:"owning_agent_id"`
	AgentName       string `json:"agent_name"` // preserved when the principal goes away
	FieldSalesRepID *int   `json:"field_sales_rep_id"`
	SalesRepName    string `json:"sales_rep_name,omitempty"`

	AppointmentDate     *time.Time `json:"appointment_date"`
	CalendarEventID     string     `json:"calendar_event_id,omitempty"`
	QualifierCallbackAt *time.Time `json:"qualifier_callback_at,omitempty"`

	SaleAmount *float64 `json:"sale_amount,omitempty"`
	Notes      string   `json:"notes"`

	Dialer DialerEcho    `json:"dialer"`
	Script ScriptPayload `json:"script"`
	Survey Survey        `json:"survey"`
	Energy EnergyFields  `json:"energy"`

	Source            string `json:"source"`
	CreatedByID       *int   `json:"created_by_id,omitempty"`
	FieldSubmissionID *int   `json:"field_submission_id,omitempty"` // joined from field_submissions

	IsDeleted      bool       `json:"is_deleted"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	DeletedByID    *int       `json:"deleted_by_id,omitempty"`
	DeletionReason string     `json:"deletion_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"-"` // optimistic lock, bumped on every write
}

// DisplayName is what operators see in duplicate-key messages and audit rows
func (l *Lead) DisplayName() string {
	if strings.TrimSpace(l.FullName) != "" {
		return l.FullName
	}
	return JoinName(l.FirstName, l.MiddleName, l.LastName)
}

// Address renders the structured address on one line
func (l *Lead) Address() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{l.AddressLine1, l.AddressLine2, l.AddressLine3} {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

func (l *Lead) IsOwnedBy(principalID int) bool {
	return l.OwningAgentID != nil && *l.OwningAgentID == principalID
}

// Clone returns a deep copy so mutations can be staged without touching the
// caller's value.
func (l *Lead) Clone() *Lead {
	c := *l
	c.DialerLeadID = cloneString(l.DialerLeadID)
	c.OwningAgentID = cloneInt(l.OwningAgentID)
	c.FieldSalesRepID = cloneInt(l.FieldSalesRepID)
	c.AppointmentDate = cloneTime(l.AppointmentDate)
	c.QualifierCallbackAt = cloneTime(l.QualifierCallbackAt)
	c.SaleAmount = cloneFloat(l.SaleAmount)
	c.CreatedByID = cloneInt(l.CreatedByID)
	c.FieldSubmissionID = cloneInt(l.FieldSubmissionID)
	c.DeletedAt = cloneTime(l.DeletedAt)
	c.DeletedByID = cloneInt(l.DeletedByID)
	c.Energy.EnergyBillAmount = cloneFloat(l.Energy.EnergyBillAmount)
	c.Energy.HasEVCharger = cloneBool(l.Energy.HasEVCharger)
	c.Energy.HasPreviousQuotes = cloneBool(l.Energy.HasPreviousQuotes)
	return &c
}

// JoinName builds a full name from its parts, skipping blanks
func JoinName(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, " ")
}

// NormalizePhone strips formatting characters but keeps a leading '+'.
// Input without a single digit normalizes to "".
func NormalizePhone(phone string) string {
	var b strings.Builder
	digits := 0
	for i, r := range strings.TrimSpace(phone) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			digits++
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	if digits == 0 {
		return ""
	}
	return b.String()
}

// DialerEcho is the verbatim copy of what the dialer sent. Values are never
// parsed.
type DialerEcho struct {
	VendorID           string `json:"vendor_id,omitempty"`
	Campaign           string `json:"campaign,omitempty"`
	ListID             string `json:"list_id,omitempty"`
	Group              string `json:"group,omitempty"`
	ChannelGroup       string `json:"channel_group,omitempty"`
	AltPhone           string `json:"alt_phone,omitempty"`
	SecurityPhrase     string `json:"security_phrase,omitempty"`
	Gender             string `json:"gender,omitempty"`
	DateOfBirth        string `json:"date_of_birth,omitempty"`
	PhoneCode          string `json:"phone_code,omitempty"`
	DialedNumber       string `json:"dialed_number,omitempty"`
	DialedLabel        string `json:"dialed_label,omitempty"`
	CustomerZapChannel string `json:"customer_zap_channel,omitempty"`
	ServerIP           string `json:"server_ip,omitempty"`
	SIPExten           string `json:"sip_exten,omitempty"`
	SessionID          string `json:"session_id,omitempty"`
	UniqueID           string `json:"uniqueid,omitempty"`
	Epoch              string `json:"epoch,omitempty"`
	SQLDate            string `json:"sqldate,omitempty"`
	RecordingFile      string `json:"recording_file,omitempty"`
	Rank               string `json:"rank,omitempty"`
	Owner              string `json:"owner,omitempty"`
	DialerUserID       string `json:"dialer_user_id,omitempty"`
	DialerUsername     string `json:"dialer_username,omitempty"`
}

// ScriptPayload is the opaque script block the dialer attaches
type ScriptPayload struct {
	CampScript   string `json:"camp_script,omitempty"`
	InScript     string `json:"in_script,omitempty"`
	ScriptWidth  string `json:"script_width,omitempty"`
	ScriptHeight string `json:"script_height,omitempty"`
}

// Survey is the qualifier/property survey captured on the call
type Survey struct {
	PreferredContactTime          string `json:"preferred_contact_time,omitempty"`
	PropertyOwnership             string `json:"property_ownership,omitempty"`
	PropertyType                  string `json:"property_type,omitempty"`
	NumberOfBedrooms              string `json:"number_of_bedrooms,omitempty"`
	RoofType                      string `json:"roof_type,omitempty"`
	RoofMaterial                  string `json:"roof_material,omitempty"`
	AverageMonthlyElectricityBill string `json:"average_monthly_electricity_bill,omitempty"`
	CurrentEnergySupplier         string `json:"current_energy_supplier,omitempty"`
	ElectricHeatingAppliances     string `json:"electric_heating_appliances,omitempty"`
	EnergyDetails                 string `json:"energy_details,omitempty"`
	Timeframe                     string `json:"timeframe,omitempty"`
	MovingPropertiesNextFiveYears string `json:"moving_properties_next_five_years,omitempty"` // yes / no / unsure
	TimeframeDetails              string `json:"timeframe_details,omitempty"`
}

// Day/night tariff answers
const (
	DayNightYes    = "yes"
	DayNightNo     = "no"
	DayNightUnsure = "unsure"
)

// EnergyFields are the typed quick-fields kept as columns
type EnergyFields struct {
	EnergyBillAmount      *float64 `json:"energy_bill_amount,omitempty"`
	HasEVCharger          *bool    `json:"has_ev_charger,omitempty"`
	DayNightRate          string   `json:"day_night_rate,omitempty"`
	HasPreviousQuotes     *bool    `json:"has_previous_quotes,omitempty"`
	PreviousQuotesDetails string   `json:"previous_quotes_details,omitempty"`
}

// LeadQuery filters a Lead Store read. Scope fields are set by the visibility
// filter; the rest come from the caller.
type LeadQuery struct {
	Statuses            []string
	OwningAgentID       *int
	FieldSalesRepID     *int
	CreatedByID         *int
	Source              string
	OnlyDeleted         bool
	IncludeDeleted      bool
	Search              string
	OrderBy             string // one of LeadOrderings, "-" prefix for descending
	Limit               int
	Offset              int
	Empty               bool // scope resolved to nothing, skip the store
}

// Matches evaluates the filter against a single lead. The SQL repository
// builds the same predicate as a WHERE clause.
func (q LeadQuery) Matches(l *Lead) bool {
	if q.Empty {
		return false
	}
	switch {
	case q.OnlyDeleted:
		if !l.IsDeleted {
			return false
		}
	case !q.IncludeDeleted:
		if l.IsDeleted {
			return false
		}
	}
	if len(q.Statuses) > 0 {
		found := false
		for _, s := range q.Statuses {
			if s == l.Status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.OwningAgentID != nil && !l.IsOwnedBy(*q.OwningAgentID) {
		return false
	}
	if q.FieldSalesRepID != nil && (l.FieldSalesRepID == nil || *l.FieldSalesRepID != *q.FieldSalesRepID) {
		return false
	}
	if q.CreatedByID != nil && (l.CreatedByID == nil || *l.CreatedByID != *q.CreatedByID) {
		return false
	}
	if q.Source != "" && l.Source != q.Source {
		return false
	}
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		hay := strings.ToLower(strings.Join([]string{l.FullName, l.Phone, l.Email, l.LeadNumber}, " "))
		if !strings.Contains(hay, needle) {
			return false
		}
	}
	return true
}

// LeadOrderings maps accepted ordering keys onto columns
var LeadOrderings = map[string]string{
	"created_at":       "created_at",
	"updated_at":       "updated_at",
	"appointment_date": "appointment_date",
	"full_name":        "full_name",
	"lead_number":      "lead_number",
	"status":           "status",
}

// LeadStatusChange is one row of lead history
type LeadStatusChange struct {
	ID         int       `json:"id"`
	LeadID     int       `json:"lead_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Operation  string    `json:"operation"`
	ActorID    *int      `json:"actor_id,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// LeadMutation is everything one lead transaction writes: the row itself plus
// the rows it owns, the outbox intents and an optional field submission.
// Updates are guarded by Lead.Version.
type LeadMutation struct {
	Lead             *Lead
	NumberPrefix     string // create only
	StatusChange     *LeadStatusChange
	Notifications    []*Notification
	Callback         *Callback
	Outbox           []*OutboxEntry
	FieldSubmission  *FieldSubmission // inserted when ID is 0, else updated; linked to Lead
	UnlinkSubmission bool             // soft delete clears the submission's lead link
}

// LeadStats backs the admin statistics endpoint and `leadctl stats`
type LeadStats struct {
	Total         int            `json:"total"`
	Deleted       int            `json:"deleted"`
	ByStatus      map[string]int `json:"by_status"`
	ByAgent       map[string]int `json:"by_agent"`
	OutboxBacklog int            `json:"outbox_backlog"`
}

// CreateLeadRequest represents the request body for creating a lead by hand
type CreateLeadRequest struct {
	Phone        string        `json:"phone"`
	Email        string        `json:"email"`
	FullName     string        `json:"full_name"`
	Title        string        `json:"title"`
	FirstName    string        `json:"first_name"`
	MiddleName   string        `json:"middle_name"`
	LastName     string        `json:"last_name"`
	AddressLine1 string        `json:"address1"`
	AddressLine2 string        `json:"address2"`
	AddressLine3 string        `json:"address3"`
	City         string        `json:"city"`
	PostalCode   string        `json:"postal_code"`
	Country      string        `json:"country_code"`
	Status       string        `json:"status"`
	OwningAgent  *int          `json:"owning_agent_id"`
	Notes        string        `json:"notes"`
	Survey       *Survey       `json:"survey,omitempty"`
	Energy       *EnergyFields `json:"energy,omitempty"`
}

// UpdateLeadRequest is a partial update; nil fields are left alone. Status is
// not patchable here, it only moves through lifecycle operations.
type UpdateLeadRequest struct {
	Email           *string       `json:"email,omitempty"`
	FullName        *string       `json:"full_name,omitempty"`
	FirstName       *string       `json:"first_name,omitempty"`
	LastName        *string       `json:"last_name,omitempty"`
	AddressLine1    *string       `json:"address1,omitempty"`
	AddressLine2    *string       `json:"address2,omitempty"`
	AddressLine3    *string       `json:"address3,omitempty"`
	City            *string       `json:"city,omitempty"`
	PostalCode      *string       `json:"postal_code,omitempty"`
	Country         *string       `json:"country_code,omitempty"`
	Notes           *string       `json:"notes,omitempty"`
	OwningAgentID   *int          `json:"owning_agent_id,omitempty"`
	FieldSalesRepID *int          `json:"field_sales_rep_id,omitempty"`
	Survey          *Survey       `json:"survey,omitempty"`
	Energy          *EnergyFields `json:"energy,omitempty"`
}

type DispositionRequest struct {
	Disposition string `json:"disposition"`
	Status      string `json:"status,omitempty"` // derived from disposition when empty
	Notes       string `json:"notes,omitempty"`
}

type QualifyRequest struct {
	Status              string     `json:"status"`
	AppointmentDate     *time.Time `json:"appointment_date,omitempty"`
	FieldSalesRepID     *int       `json:"field_sales_rep_id,omitempty"`
	QualifierCallbackAt *time.Time `json:"qualifier_callback_at,omitempty"`
	Notes               string     `json:"notes,omitempty"`
}

type RescheduleRequest struct {
	AppointmentDate time.Time `json:"appointment_date"`
	FieldSalesRepID *int      `json:"field_sales_rep_id,omitempty"`
}

type CompleteAppointmentRequest struct {
	Status     string   `json:"status"`
	SaleAmount *float64 `json:"sale_amount,omitempty"`
	Notes      string   `json:"notes,omitempty"`
}

type SoftDeleteRequest struct {
	Reason string `json:"reason"`
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneBool(p *bool) *bool {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
