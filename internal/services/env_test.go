package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"leads-backend/internal/auditsink"
	"leads-backend/internal/auth"
	"leads-backend/internal/calendar"
	"leads-backend/internal/config"
	"leads-backend/internal/mailer"
	"leads-backend/internal/models"
	"leads-backend/internal/storetest"
)

// env wires every service over one in-memory database with mock adapters
type env struct {
	db       *storetest.DB
	cal      *calendar.MockProvider
	mail     *mailer.MockSender
	audit    *auditsink.MockSink
	pub      *recordingPublisher
	clock    *fakeClock
	dispatch *Dispatcher

	principals    *PrincipalService
	dialer        *DialerService
	notifications *NotificationService
	leads         *LeadService
	intake        *IntakeService
	callbacks     *CallbackService
	submissions   *FieldSubmissionService
	imports       *ImportService

	admin, agent, agent2, qualifier, salesrep, canvasser *models.Principal
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent map[int][]*models.Notification
}

func (p *recordingPublisher) Publish(recipientID int, n *models.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent[recipientID] = append(p.sent[recipientID], n)
}

func (p *recordingPublisher) For(recipientID int) []*models.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent[recipientID]
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		db:    storetest.New(),
		cal:   calendar.NewMockProvider(),
		mail:  mailer.NewMockSender(),
		audit: auditsink.NewMockSink(),
		pub:   &recordingPublisher{sent: map[int][]*models.Notification{}},
		clock: &fakeClock{t: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)},
	}

	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.Issuer = "leads-test"
	cfg.JWT.ExpirationHours = 1

	dcfg := DefaultDispatcherConfig()
	dcfg.InlineTimeout = 2 * time.Second
	e.dispatch = NewDispatcher(e.db.Outbox(), e.db.Leads(), e.db.Principals(), e.cal, e.mail, e.audit, dcfg)
	e.dispatch.now = e.clock.Now

	e.principals = NewPrincipalService(e.db.Principals(), auth.NewJWTManager(cfg))
	e.dialer = NewDialerService(e.db.DialerMappings(), e.db.Principals(), e.db.Settings())
	e.notifications = NewNotificationService(e.db.Notifications(), e.pub)
	e.leads = NewLeadService(e.db.Leads(), e.db.Principals(), e.dialer, e.dispatch, e.notifications, 30*24*time.Hour)
	e.leads.now = e.clock.Now
	e.intake = NewIntakeService(e.leads, e.dialer, "")
	e.callbacks = NewCallbackService(e.db.Callbacks(), e.leads, 15*time.Minute)
	e.callbacks.now = e.clock.Now
	e.submissions = NewFieldSubmissionService(e.db.FieldSubmissions(), e.leads, e.notifications)
	e.submissions.now = e.clock.Now
	e.imports = NewImportService(e.leads)

	e.admin = e.principal(t, "admin", "Ada Admin", models.RoleAdmin)
	e.agent = e.principal(t, "alice", "Alice Agent", models.RoleAgent)
	e.agent2 = e.principal(t, "bob", "Bob Agent", models.RoleAgent)
	e.qualifier = e.principal(t, "kelly", "Kelly Qualifier", models.RoleQualifier)
	e.salesrep = e.principal(t, "sam", "Sam Salesrep", models.RoleSalesRep)
	e.canvasser = e.principal(t, "carl", "Carl Canvasser", models.RoleCanvasser)
	return e
}

// principal inserts directly so tests do not pay for bcrypt
func (e *env) principal(t *testing.T, username, name, role string) *models.Principal {
	t.Helper()
	p := &models.Principal{Username: username, Name: name, Email: username + "@example.com", Role: role, IsActive: true}
	if err := e.db.Principals().Create(context.Background(), p); err != nil {
		t.Fatalf("create principal %s: %v", username, err)
	}
	return p
}

func (e *env) mapAgent(t *testing.T, ext string, p *models.Principal) {
	t.Helper()
	_, err := e.dialer.UpsertMapping(context.Background(), &models.UpsertDialerMappingRequest{ExternalUserID: ext, PrincipalID: p.ID})
	if err != nil {
		t.Fatalf("map %s: %v", ext, err)
	}
}

// interestedLead creates a dialer lead owned by agent
func (e *env) interestedLead(t *testing.T, phone string) *models.Lead {
	t.Helper()
	e.mapAgent(t, "ext-"+e.agent.Username, e.agent)
	res, err := e.intake.Intake(context.Background(), &models.DialerPayload{
		ExternalDialerUserID: str("ext-" + e.agent.Username),
		PhoneNumber:          str(phone),
		FirstName:            str("Jane"),
		LastName:             str("Doe"),
		Email:                str("jane@example.com"),
		Address1:             str("1 High Street"),
		City:                 str("Leeds"),
		PostalCode:           str("LS1 1AA"),
	})
	if err != nil {
		t.Fatalf("intake: %v", err)
	}
	return res.Lead
}

// sentToKelly walks a fresh lead through to the qualifier
func (e *env) sentToKelly(t *testing.T, phone string) *models.Lead {
	t.Helper()
	l := e.interestedLead(t, phone)
	res, err := e.leads.SendToKelly(context.Background(), e.agent.Actor(), l.ID)
	if err != nil {
		t.Fatalf("send to kelly: %v", err)
	}
	return res.Lead
}

// booked qualifies a lead into appointment_set with the salesrep assigned
func (e *env) booked(t *testing.T, phone string, at time.Time) *models.TransitionResult {
	t.Helper()
	l := e.sentToKelly(t, phone)
	res, err := e.leads.Qualify(context.Background(), e.qualifier.Actor(), l.ID, &models.QualifyRequest{
		Status:          models.StatusAppointmentSet,
		AppointmentDate: &at,
		FieldSalesRepID: &e.salesrep.ID,
	})
	if err != nil {
		t.Fatalf("qualify: %v", err)
	}
	return res
}

func str(s string) *string { return &s }

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func outboxByKind(entries []*models.OutboxEntry, leadID int) map[string]*models.OutboxEntry {
	out := map[string]*models.OutboxEntry{}
	for _, e := range entries {
		if e.LeadID == leadID {
			out[e.Kind] = e
		}
	}
	return out
}
