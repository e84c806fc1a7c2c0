// Command leadctl runs out-of-band admin tasks against the leads database.
// Every write goes through the same services as the HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"leads-backend/internal/auth"
	"leads-backend/internal/cache"
	"leads-backend/internal/config"
	"leads-backend/internal/db"
	"leads-backend/internal/repositories"
	"leads-backend/internal/services"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var rootCtx context.Context

var rootCmd = &cobra.Command{
	Use:           "leadctl",
	Short:         "Admin commands for the leads backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// app is the slice of the server wiring the commands need. Side-effect
// adapters stay off: CLI writes reach the lead store only.
type app struct {
	cfg        *config.Config
	pool       *pgxpool.Pool
	principals *services.PrincipalService
	dialer     *services.DialerService
	leads      *services.LeadService
	imports    *services.ImportService
	outbox     *repositories.OutboxRepository
}

func openApp() *app {
	cfg := config.Load()
	pool := db.Connect(cfg)
	if cfg.Redis.Addr != "" {
		// mapping seeds must invalidate the server's cache
		if err := cache.Init(cfg.Redis.Addr, cfg.Redis.Password); err != nil {
			fmt.Fprintf(os.Stderr, "redis unavailable: %v\n", err)
		}
	}

	principalRepo := repositories.NewPrincipalRepository(pool)
	leadRepo := repositories.NewLeadRepository(pool)
	outboxRepo := repositories.NewOutboxRepository(pool)

	dispatcher := services.NewDispatcher(outboxRepo, leadRepo, principalRepo, nil, nil, nil, services.DefaultDispatcherConfig())
	dialer := services.NewDialerService(
		repositories.NewDialerMappingRepository(pool), principalRepo, repositories.NewSystemSettingRepository(pool))
	notifications := services.NewNotificationService(repositories.NewNotificationRepository(pool), nil)
	leads := services.NewLeadService(leadRepo, principalRepo, dialer, dispatcher, notifications, cfg.Retention.SoftDeleteTTL)

	return &app{
		cfg:        cfg,
		pool:       pool,
		principals: services.NewPrincipalService(principalRepo, auth.NewJWTManager(cfg)),
		dialer:     dialer,
		leads:      leads,
		imports:    services.NewImportService(leads),
		outbox:     outboxRepo,
	}
}

func (a *app) Close() {
	cache.Close()
	a.pool.Close()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rootCtx = ctx

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
