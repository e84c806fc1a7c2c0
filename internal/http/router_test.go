package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"leads-backend/internal/auditsink"
	"leads-backend/internal/auth"
	"leads-backend/internal/calendar"
	"leads-backend/internal/config"
	"leads-backend/internal/handlers"
	"leads-backend/internal/health"
	"leads-backend/internal/mailer"
	"leads-backend/internal/middleware"
	"leads-backend/internal/models"
	"leads-backend/internal/realtime"
	"leads-backend/internal/services"
	"leads-backend/internal/storetest"
)

const testAPIKey = "dialer-secret"

type okPinger struct{}

func (okPinger) Ping(ctx context.Context) error { return nil }

type server struct {
	t       *testing.T
	handler http.Handler
	jwt     *auth.JWTManager
	db      *storetest.DB

	admin, agent, qualifier *models.Principal
}

func newServer(t *testing.T) *server {
	t.Helper()
	cfg := &config.Config{}
	cfg.JWT.Secret = "router-test"
	cfg.JWT.Issuer = "leads-test"
	cfg.JWT.ExpirationHours = 1

	s := &server{t: t, db: storetest.New(), jwt: auth.NewJWTManager(cfg)}
	db := s.db

	dcfg := services.DefaultDispatcherConfig()
	dcfg.InlineTimeout = 2 * time.Second
	dispatcher := services.NewDispatcher(db.Outbox(), db.Leads(), db.Principals(),
		calendar.NewMockProvider(), mailer.NewMockSender(), auditsink.NewMockSink(), dcfg)
	hub := realtime.NewHub(nil)

	principalSvc := services.NewPrincipalService(db.Principals(), s.jwt)
	dialerSvc := services.NewDialerService(db.DialerMappings(), db.Principals(), db.Settings())
	notificationSvc := services.NewNotificationService(db.Notifications(), hub)
	leadSvc := services.NewLeadService(db.Leads(), db.Principals(), dialerSvc, dispatcher, notificationSvc, 30*24*time.Hour)

	s.handler = NewRouter(
		cfg,
		handlers.NewAuthHandler(principalSvc),
		handlers.NewPrincipalHandler(principalSvc),
		handlers.NewDialerHandler(services.NewIntakeService(leadSvc, dialerSvc, testAPIKey), dialerSvc),
		handlers.NewLeadHandler(leadSvc, services.NewReportService(leadSvc), services.NewImportService(leadSvc)),
		handlers.NewNotificationHandler(notificationSvc),
		handlers.NewCallbackHandler(services.NewCallbackService(db.Callbacks(), leadSvc, 15*time.Minute)),
		handlers.NewFieldSubmissionHandler(services.NewFieldSubmissionService(db.FieldSubmissions(), leadSvc, notificationSvc)),
		handlers.NewSystemSettingHandler(services.NewSystemSettingService(db.Settings(), dialerSvc)),
		handlers.NewHealthHandler(health.NewHealthChecker(okPinger{}, db.Outbox())),
		hub,
		middleware.NewAuthMiddleware(s.jwt, db.Principals()),
	)

	s.admin = s.principal("admin", models.RoleAdmin)
	s.agent = s.principal("alice", models.RoleAgent)
	s.qualifier = s.principal("kelly", models.RoleQualifier)

	if _, err := dialerSvc.UpsertMapping(context.Background(), &models.UpsertDialerMappingRequest{
		ExternalUserID: "1001", PrincipalID: s.agent.ID,
	}); err != nil {
		t.Fatalf("map agent: %v", err)
	}
	return s
}

func (s *server) principal(username, role string) *models.Principal {
	p := &models.Principal{Username: username, Name: username, Role: role, IsActive: true}
	if err := s.db.Principals().Create(context.Background(), p); err != nil {
		s.t.Fatalf("create %s: %v", username, err)
	}
	return p
}

// do sends body as JSON with p's token (no token when p is nil)
func (s *server) do(method, path string, p *models.Principal, body any, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if p != nil {
		token, err := s.jwt.GenerateToken(p)
		if err != nil {
			s.t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

type errorBody struct {
	Error struct {
		Kind       string `json:"kind"`
		Field      string `json:"field"`
		ExistingID int    `json:"existing_id"`
	} `json:"error"`
}

func TestHealthIsPublic(t *testing.T) {
	s := newServer(t)
	if rec := s.do("GET", "/health", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("health: %d", rec.Code)
	}
	if rec := s.do("GET", "/health/ready", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("ready: %d %s", rec.Code, rec.Body.String())
	}
}

func TestIntakeEndpoint(t *testing.T) {
	s := newServer(t)
	payload := map[string]string{
		"external_dialer_user_id": "1001",
		"phone_number":            "07700 900123",
		"first_name":              "Jane",
		"last_name":               "Doe",
	}

	if rec := s.do("POST", "/api/dialer/intake", nil, payload); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing key: expected 401, got %d", rec.Code)
	}

	rec := s.do("POST", "/api/dialer/intake", nil, payload, handlers.APIKeyHeader, testAPIKey)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first intake: %d %s", rec.Code, rec.Body.String())
	}
	first := decode[models.IntakeResult](t, rec)
	if first.CreatedVsUpdated != models.IntakeCreated || first.Lead.Status != models.StatusInterested {
		t.Fatalf("unexpected result %+v", first)
	}

	rec = s.do("POST", "/api/dialer/intake", nil, payload, handlers.APIKeyHeader, testAPIKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat intake: %d %s", rec.Code, rec.Body.String())
	}
	if again := decode[models.IntakeResult](t, rec); again.CreatedVsUpdated != models.IntakeUpdated || again.Lead.ID != first.Lead.ID {
		t.Fatalf("repeat should update lead %d, got %+v", first.Lead.ID, again)
	}

	payload["external_dialer_user_id"] = "9999"
	payload["phone_number"] = "07700 900999"
	rec = s.do("POST", "/api/dialer/intake", nil, payload, handlers.APIKeyHeader, testAPIKey)
	if body := decode[errorBody](t, rec); rec.Code != http.StatusNotFound || body.Error.Kind != "agent_mapping_missing" {
		t.Fatalf("unmapped agent: %d %s", rec.Code, rec.Body.String())
	}
}

func TestLeadRoutesRequireToken(t *testing.T) {
	s := newServer(t)
	if rec := s.do("GET", "/api/leads", nil, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestDuplicatePhoneNamesExistingLead(t *testing.T) {
	s := newServer(t)
	req := map[string]string{"phone": "07700 900555", "full_name": "Alice Brown"}

	rec := s.do("POST", "/api/leads", s.agent, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	created := decode[models.TransitionResult](t, rec)

	rec = s.do("POST", "/api/leads", s.agent, req)
	body := decode[errorBody](t, rec)
	if rec.Code != http.StatusConflict || body.Error.Kind != "duplicate_key" || body.Error.ExistingID != created.Lead.ID {
		t.Fatalf("duplicate: %d %s", rec.Code, rec.Body.String())
	}
}

func TestQualifierDecisionReachesAgentInbox(t *testing.T) {
	s := newServer(t)
	rec := s.do("POST", "/api/dialer/intake", nil, map[string]string{
		"external_dialer_user_id": "1001",
		"phone_number":            "07700 900777",
		"full_name":               "Sam Green",
	}, handlers.APIKeyHeader, testAPIKey)
	lead := decode[models.IntakeResult](t, rec).Lead

	rec = s.do("POST", fmt.Sprintf("/api/leads/%d/send-to-kelly", lead.ID), s.agent, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("send to kelly: %d %s", rec.Code, rec.Body.String())
	}

	// agents cannot qualify
	rec = s.do("POST", fmt.Sprintf("/api/leads/%d/qualify", lead.ID), s.agent, map[string]string{"status": models.StatusQualified})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("agent qualify: expected 403, got %d", rec.Code)
	}

	rec = s.do("POST", fmt.Sprintf("/api/leads/%d/qualify", lead.ID), s.qualifier, map[string]string{"status": models.StatusQualified})
	if rec.Code != http.StatusOK {
		t.Fatalf("qualify: %d %s", rec.Code, rec.Body.String())
	}
	if res := decode[models.TransitionResult](t, rec); res.Lead.Status != models.StatusQualified || !res.SideEffects.NotificationCreated {
		t.Fatalf("unexpected qualify result %+v", res)
	}

	rec = s.do("GET", "/api/notifications?unread=true", s.agent, nil)
	inbox := decode[models.NotificationList](t, rec)
	if inbox.Unread != 1 || len(inbox.Notifications) != 1 {
		t.Fatalf("agent inbox: %+v", inbox)
	}

	rec = s.do("POST", "/api/notifications/read-all", s.agent, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("read all: %d", rec.Code)
	}
	rec = s.do("GET", fmt.Sprintf("/api/leads/%d/history", lead.ID), s.agent, nil)
	if history := decode[[]models.LeadStatusChange](t, rec); len(history) != 3 {
		t.Fatalf("expected create, send and qualify in history, got %+v", history)
	}
}

func TestAdminOnlyRoutes(t *testing.T) {
	s := newServer(t)
	for _, path := range []string{"/api/stats", "/api/principals", "/api/dialer/mappings", "/api/settings"} {
		if rec := s.do("GET", path, s.agent, nil); rec.Code != http.StatusForbidden {
			t.Errorf("%s as agent: expected 403, got %d", path, rec.Code)
		}
		if rec := s.do("GET", path, s.admin, nil); rec.Code != http.StatusOK {
			t.Errorf("%s as admin: expected 200, got %d %s", path, rec.Code, rec.Body.String())
		}
	}
}

func TestDialerSwitchGatesColdCallList(t *testing.T) {
	s := newServer(t)
	if rec := s.do("POST", "/api/leads", s.agent, map[string]string{"phone": "07700 900321"}); rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}

	rec := s.do("GET", "/api/leads/cold-call", s.agent, nil)
	if leads := decode[[]models.Lead](t, rec); len(leads) != 0 {
		t.Fatalf("dialer off, got %d leads", len(leads))
	}

	if rec := s.do("PUT", "/api/dialer/status", s.agent, map[string]bool{"active": true}); rec.Code != http.StatusForbidden {
		t.Fatalf("agent toggled dialer: %d", rec.Code)
	}
	if rec := s.do("PUT", "/api/dialer/status", s.admin, map[string]bool{"active": true}); rec.Code != http.StatusOK {
		t.Fatalf("admin toggle: %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do("GET", "/api/leads/cold-call", s.agent, nil)
	if leads := decode[[]models.Lead](t, rec); len(leads) != 1 {
		t.Fatalf("dialer on, got %d leads", len(leads))
	}
}

func TestListRejectsUnknownOrdering(t *testing.T) {
	s := newServer(t)
	rec := s.do("GET", "/api/leads?ordering=password", s.admin, nil)
	if body := decode[errorBody](t, rec); rec.Code != http.StatusBadRequest || body.Error.Field != "ordering" {
		t.Fatalf("expected ordering validation error, got %d %s", rec.Code, rec.Body.String())
	}
}
