package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leads-backend/internal/auditsink"
	"leads-backend/internal/auth"
	"leads-backend/internal/cache"
	"leads-backend/internal/calendar"
	"leads-backend/internal/config"
	"leads-backend/internal/database"
	"leads-backend/internal/db"
	"leads-backend/internal/handlers"
	"leads-backend/internal/health"
	h "leads-backend/internal/http"
	"leads-backend/internal/mailer"
	"leads-backend/internal/middleware"
	"leads-backend/internal/realtime"
	"leads-backend/internal/repositories"
	"leads-backend/internal/services"
)

func main() {
	port := flag.Int("port", 0, "Server port (overrides config)")
	migrationsDir := flag.String("migrations", "migrations", "Directory holding the SQL migrations")
	flag.Parse()

	cfg := config.Load()
	if *port != 0 {
		cfg.Server.Port = *port
	}

	pool := db.Connect(cfg)
	defer pool.Close()
	log.Printf("Connected to database: %s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.NewMigrator(pool, *migrationsDir).RunMigrations(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	if cfg.Redis.Addr != "" {
		if err := cache.Init(cfg.Redis.Addr, cfg.Redis.Password); err != nil {
			log.Printf("[Redis] Cache unavailable: %v (mapping lookups go to the database)", err)
		}
	}

	// Repositories
	principalRepo := repositories.NewPrincipalRepository(pool)
	mappingRepo := repositories.NewDialerMappingRepository(pool)
	settingRepo := repositories.NewSystemSettingRepository(pool)
	leadRepo := repositories.NewLeadRepository(pool)
	notificationRepo := repositories.NewNotificationRepository(pool)
	callbackRepo := repositories.NewCallbackRepository(pool)
	outboxRepo := repositories.NewOutboxRepository(pool)
	submissionRepo := repositories.NewFieldSubmissionRepository(pool)

	// Side-effect adapters; a nil adapter disables its kind
	var cal calendar.Provider
	if cfg.Calendar.Enabled {
		g, err := calendar.NewGoogleProvider(ctx, calendar.GoogleConfig{
			CalendarID:   cfg.Calendar.CalendarID,
			ClientID:     cfg.Calendar.ClientID,
			ClientSecret: cfg.Calendar.ClientSecret,
			RefreshToken: cfg.Calendar.RefreshToken,
		})
		if err != nil {
			log.Printf("[Calendar] disabled: %v", err)
		} else {
			cal = g
		}
	}

	var mail mailer.Sender
	if cfg.SMTP.Enabled {
		mail = mailer.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, cfg.SMTP.From)
	}

	var audit auditsink.Sink = auditsink.LogSink{}
	if cfg.Audit.Enabled {
		sheets, err := auditsink.NewSheetsSink(ctx, cfg.Audit.SpreadsheetID, cfg.Audit.SheetName, cfg.Audit.CredentialsFile)
		if err != nil {
			log.Printf("[Audit] spreadsheet unavailable, logging rows instead: %v", err)
		} else {
			audit = auditsink.NewLimited(sheets, cfg.Audit.WritesPerMinute, cfg.Audit.MinInterval)
		}
	}

	dispatcherCfg := services.DefaultDispatcherConfig()
	if cfg.Outbox.PollInterval > 0 {
		dispatcherCfg.PollInterval = cfg.Outbox.PollInterval
	}
	if cfg.Outbox.BatchSize > 0 {
		dispatcherCfg.BatchSize = cfg.Outbox.BatchSize
	}
	if cfg.Outbox.Lease > 0 {
		dispatcherCfg.Lease = cfg.Outbox.Lease
	}
	if cfg.Audit.MaxAttempts > 0 {
		dispatcherCfg.AuditAttempts = cfg.Audit.MaxAttempts
	}

	// Services
	jwtManager := auth.NewJWTManager(cfg)
	hub := realtime.NewHub(cfg.Server.CorsAllowedOrigins)
	dispatcher := services.NewDispatcher(outboxRepo, leadRepo, principalRepo, cal, mail, audit, dispatcherCfg)
	principalService := services.NewPrincipalService(principalRepo, jwtManager)
	dialerService := services.NewDialerService(mappingRepo, principalRepo, settingRepo)
	notificationService := services.NewNotificationService(notificationRepo, hub)
	leadService := services.NewLeadService(leadRepo, principalRepo, dialerService, dispatcher, notificationService, cfg.Retention.SoftDeleteTTL)
	intakeService := services.NewIntakeService(leadService, dialerService, cfg.Dialer.APIKey)
	callbackService := services.NewCallbackService(callbackRepo, leadService, cfg.Callbacks.DueWindow)
	submissionService := services.NewFieldSubmissionService(submissionRepo, leadService, notificationService)
	reportService := services.NewReportService(leadService)
	importService := services.NewImportService(leadService)
	settingService := services.NewSystemSettingService(settingRepo, dialerService)

	// Handlers
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, principalRepo)
	router := h.NewRouter(
		cfg,
		handlers.NewAuthHandler(principalService),
		handlers.NewPrincipalHandler(principalService),
		handlers.NewDialerHandler(intakeService, dialerService),
		handlers.NewLeadHandler(leadService, reportService, importService),
		handlers.NewNotificationHandler(notificationService),
		handlers.NewCallbackHandler(callbackService),
		handlers.NewFieldSubmissionHandler(submissionService),
		handlers.NewSystemSettingHandler(settingService),
		handlers.NewHealthHandler(health.NewHealthChecker(pool, outboxRepo)),
		hub,
		authMiddleware,
	)

	go dispatcher.Run(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("Server running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
	cache.Close()
}
