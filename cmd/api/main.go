package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/payrun-backend-go/internal/config"
	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/disbursement"
	"github.com/cmlabs-hris/payrun-backend-go/internal/fixtures"
	appHTTP "github.com/cmlabs-hris/payrun-backend-go/internal/handler/http"
	"github.com/cmlabs-hris/payrun-backend-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/payrun-backend-go/internal/pkg/cron"
	"github.com/cmlabs-hris/payrun-backend-go/internal/pkg/database"
	"github.com/cmlabs-hris/payrun-backend-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/payrun-backend-go/internal/pkg/sse"
	"github.com/cmlabs-hris/payrun-backend-go/internal/pkg/xendit"
	"github.com/cmlabs-hris/payrun-backend-go/internal/repository/postgresql"
	payrollService "github.com/cmlabs-hris/payrun-backend-go/internal/service/payroll"
	taxService "github.com/cmlabs-hris/payrun-backend-go/internal/service/tax"
	"github.com/cmlabs-hris/payrun-backend-go/migrations"
	"github.com/go-chi/httplog/v3"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	logFormat := httplog.SchemaECS.Concise(cfg.App.Env != "production")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       cfg.SlogLevel(),
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "payrun"),
		slog.String("version", "v1.0.0"),
		slog.String("env", cfg.App.Env),
	)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.PoolOptions{
		MaxConns: int32(cfg.Database.MaxConns),
		MinConns: int32(cfg.Database.MinConns),
	})
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}
	defer db.Close()

	if err := migrations.Apply(ctx, db); err != nil {
		return err
	}

	// Repositories
	runRepo := postgresql.NewPayrollRunRepository(db)
	employeeRepo := postgresql.NewEmployeeRepository(db)
	attendanceRepo := postgresql.NewAttendanceRepository(db)
	taxRepo := postgresql.NewTaxConfigurationRepository(db)
	disbursementRepo := postgresql.NewDisbursementRepository(db)

	if cfg.Payroll.SeedDefaultTax {
		year := time.Now().Year()
		created, err := taxRepo.EnsureDefault(ctx, fixtures.GetDefaultTaxConfiguration(year))
		if err != nil {
			return fmt.Errorf("failed to seed tax configuration: %w", err)
		}
		if created {
			slog.Info("Default tax configuration seeded", "financial_year", year)
		}
	}

	// Services
	catalog := taxService.NewCatalog(taxRepo)

	computer := payrollService.NewComputer(payrollService.Policy{
		OvertimeMultiplier:  cfg.Payroll.OvertimeMultiplier,
		LatePenaltyMode:     payrollService.LatePenaltyMode(cfg.Payroll.LatePenaltyMode),
		LatePenalty:         cfg.Payroll.LatePenalty,
		StandardHoursPerDay: cfg.Payroll.StandardHoursPerDay,
		Annualise:           cfg.Payroll.TaxAnnualise,
		Scale:               2,
	})

	capabilities, err := payrollService.ParseCapabilities(cfg.Payroll.Capabilities)
	if err != nil {
		return err
	}
	workflow, err := payrollService.NewWorkflow(payrollService.Variant(cfg.Payroll.WorkflowVariant), capabilities)
	if err != nil {
		return err
	}

	var gateway disbursement.Gateway
	switch cfg.Disbursement.Gateway {
	case "xendit":
		gateway = xendit.NewPayoutGateway(xendit.NewClient(cfg.Disbursement.XenditSecretKey), "PGK")
	default:
		gateway = payrollService.NewManualGateway()
	}
	disburser := payrollService.NewDisburser(disbursementRepo, gateway, cfg.Disbursement.Concurrency)

	hub := sse.NewHub(32)
	payrollSvc := payrollService.NewPayrollService(
		runRepo,
		employeeRepo,
		attendanceRepo,
		catalog,
		computer,
		workflow,
		disburser,
		hub,
		payrollService.Config{
			WorkerPoolSize:    cfg.Payroll.WorkerPoolSize,
			FortnightsPerYear: cfg.Payroll.FortnightsPerYear,
			ProcessingLease:   cfg.Payroll.ProcessingLease,
		},
	)

	// Background jobs
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	scheduler := cron.NewScheduler(ctx)
	cron.RegisterTaxConfigurationRefresh(scheduler, catalog, cfg.Cron.TaxRefreshInterval)
	cron.RegisterCleanup(scheduler, cron.JobRateLimiterCleanup, 5*time.Minute, rateLimiter.Cleanup)
	scheduler.Start()
	defer scheduler.Stop()

	// HTTP
	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	payrollHandler := appHTTP.NewPayrollHandler(payrollSvc)
	router := appHTTP.NewRouter(JWTService, payrollHandler, appHTTP.RouterOptions{
		Logger:         logger,
		AllowedOrigins: cfg.App.AllowedOrigins,
		RateLimiter:    rateLimiter,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Cancels open event streams on shutdown
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server running", "addr", server.Addr, "workflow", workflow.Variant())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
