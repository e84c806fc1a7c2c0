package http

import (
	"net/http"

	"leads-backend/internal/config"
	"leads-backend/internal/handlers"
	"leads-backend/internal/middleware"
	"leads-backend/internal/models"
	"leads-backend/internal/realtime"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	principalHandler *handlers.PrincipalHandler,
	dialerHandler *handlers.DialerHandler,
	leadHandler *handlers.LeadHandler,
	notificationHandler *handlers.NotificationHandler,
	callbackHandler *handlers.CallbackHandler,
	fieldSubmissionHandler *handlers.FieldSubmissionHandler,
	systemSettingHandler *handlers.SystemSettingHandler,
	healthHandler *handlers.HealthHandler,
	hub *realtime.Hub,
	authMiddleware *middleware.AuthMiddleware,
) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.PanicRecovery)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.MetricsMiddleware)

	adminOnly := authMiddleware.RequireRole(models.RoleAdmin)

	// Health and metrics - no auth, scraped by the platform
	r.HandleFunc("/health", healthHandler.BasicHealth).Methods("GET")
	r.HandleFunc("/health/ready", healthHandler.ReadinessHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler())

	// Public API routes - Authentication
	r.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	// Dialer webhook, API key checked by the handler
	r.HandleFunc("/api/dialer/intake", dialerHandler.IntakeLead).Methods("POST")

	// Live inbox push; browsers pass the token as ?token=
	r.Handle("/ws/notifications", authMiddleware.Authenticate(http.HandlerFunc(hub.ServeWS)))

	api := r.PathPrefix("/api").Subrouter()
	api.Use(authMiddleware.Authenticate)
	api.HandleFunc("/me", authHandler.Me).Methods("GET")

	// Principals - TOTP is self-service, everything else admin
	api.HandleFunc("/principals/{id:[0-9]+}/totp/setup", principalHandler.SetupTOTP).Methods("POST")
	api.HandleFunc("/principals/{id:[0-9]+}/totp/enable", principalHandler.EnableTOTP).Methods("POST")
	principalsAPI := api.PathPrefix("/principals").Subrouter()
	principalsAPI.Use(adminOnly)
	principalsAPI.HandleFunc("", principalHandler.ListPrincipals).Methods("GET")
	principalsAPI.HandleFunc("", principalHandler.CreatePrincipal).Methods("POST")
	principalsAPI.HandleFunc("/{id:[0-9]+}", principalHandler.GetPrincipal).Methods("GET")
	principalsAPI.HandleFunc("/{id:[0-9]+}", principalHandler.UpdatePrincipal).Methods("PUT", "PATCH")
	principalsAPI.HandleFunc("/{id:[0-9]+}", principalHandler.DeletePrincipal).Methods("DELETE")

	// Dialer control
	api.HandleFunc("/dialer/status", dialerHandler.GetStatus).Methods("GET")
	dialerAPI := api.PathPrefix("/dialer").Subrouter()
	dialerAPI.Use(adminOnly)
	dialerAPI.HandleFunc("/status", dialerHandler.SetStatus).Methods("PUT")
	dialerAPI.HandleFunc("/mappings", dialerHandler.ListMappings).Methods("GET")
	dialerAPI.HandleFunc("/mappings", dialerHandler.UpsertMapping).Methods("POST")
	dialerAPI.HandleFunc("/mappings/{external_user_id}", dialerHandler.UpsertMapping).Methods("PUT")
	dialerAPI.HandleFunc("/mappings/{external_user_id}", dialerHandler.DeleteMapping).Methods("DELETE")

	// Leads - role and ownership rules live in the services
	api.HandleFunc("/leads", leadHandler.ListLeads).Methods("GET")
	api.HandleFunc("/leads", leadHandler.CreateLead).Methods("POST")
	api.HandleFunc("/leads/cold-call", leadHandler.ColdCallList).Methods("GET")
	api.HandleFunc("/leads/export", leadHandler.ExportCSV).Methods("GET")
	api.HandleFunc("/leads/{id:[0-9]+}", leadHandler.GetLead).Methods("GET")
	api.HandleFunc("/leads/{id:[0-9]+}", leadHandler.UpdateLead).Methods("PUT", "PATCH")
	api.HandleFunc("/leads/{id:[0-9]+}", leadHandler.DeleteLead).Methods("DELETE")
	api.HandleFunc("/leads/{id:[0-9]+}/restore", leadHandler.RestoreLead).Methods("POST")
	api.HandleFunc("/leads/{id:[0-9]+}/disposition", leadHandler.Disposition).Methods("POST")
	api.HandleFunc("/leads/{id:[0-9]+}/send-to-kelly", leadHandler.SendToKelly).Methods("POST")
	api.HandleFunc("/leads/{id:[0-9]+}/qualify", leadHandler.Qualify).Methods("POST")
	api.HandleFunc("/leads/{id:[0-9]+}/reschedule", leadHandler.Reschedule).Methods("POST")
	api.HandleFunc("/leads/{id:[0-9]+}/complete-appointment", leadHandler.CompleteAppointment).Methods("POST")
	api.HandleFunc("/leads/{id:[0-9]+}/history", leadHandler.History).Methods("GET")
	api.HandleFunc("/leads/{id:[0-9]+}/appointment-sheet", leadHandler.AppointmentSheet).Methods("GET")

	adminAPI := api.PathPrefix("").Subrouter()
	adminAPI.Use(adminOnly)
	adminAPI.HandleFunc("/leads/import", leadHandler.ImportLeads).Methods("POST")
	adminAPI.HandleFunc("/leads/cleanup", leadHandler.PurgeExpired).Methods("POST")
	adminAPI.HandleFunc("/stats", leadHandler.Stats).Methods("GET")
	adminAPI.HandleFunc("/health/detailed", healthHandler.DetailedHealth).Methods("GET")
	adminAPI.HandleFunc("/settings", systemSettingHandler.ListSettings).Methods("GET")
	adminAPI.HandleFunc("/settings/{key}", systemSettingHandler.GetSetting).Methods("GET")
	adminAPI.HandleFunc("/settings/{key}", systemSettingHandler.UpdateSetting).Methods("PUT")

	// Notifications
	api.HandleFunc("/notifications", notificationHandler.List).Methods("GET")
	api.HandleFunc("/notifications/read-all", notificationHandler.MarkAllRead).Methods("POST")
	api.HandleFunc("/notifications/{id:[0-9]+}/read", notificationHandler.MarkRead).Methods("POST")
	api.HandleFunc("/notifications/{id:[0-9]+}", notificationHandler.Delete).Methods("DELETE")

	// Callbacks
	api.HandleFunc("/callbacks", callbackHandler.Scheduled).Methods("GET")
	api.HandleFunc("/callbacks", callbackHandler.Create).Methods("POST")
	api.HandleFunc("/callbacks/due", callbackHandler.Due).Methods("GET")
	api.HandleFunc("/callbacks/upcoming", callbackHandler.Upcoming).Methods("GET")
	api.HandleFunc("/callbacks/{id:[0-9]+}/status", callbackHandler.UpdateStatus).Methods("PUT", "POST")

	// Field submissions
	api.HandleFunc("/field-submissions", fieldSubmissionHandler.List).Methods("GET")
	api.HandleFunc("/field-submissions", fieldSubmissionHandler.Submit).Methods("POST")
	api.HandleFunc("/field-submissions/{id:[0-9]+}", fieldSubmissionHandler.Get).Methods("GET")
	api.HandleFunc("/field-submissions/{id:[0-9]+}", fieldSubmissionHandler.Resave).Methods("PUT")
	api.HandleFunc("/field-submissions/{id:[0-9]+}/review", fieldSubmissionHandler.Review).Methods("POST")

	return middleware.NewCORS(cfg)(r)
}
