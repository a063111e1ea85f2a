package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	almalead "github.com/phbpx/almalead"
	"github.com/phbpx/almalead/auth"
	"github.com/phbpx/almalead/handler"
	"github.com/phbpx/almalead/intake"
	"github.com/phbpx/almalead/leads"
	"github.com/phbpx/almalead/notify"
	"github.com/phbpx/almalead/postgres"
	"github.com/phbpx/almalead/storage"
	"github.com/riandyrn/otelchi"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {

	log, err := newLog("almalead-api")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if err := run("almalead-api", log); err != nil {
		log.Errorw("startup", "err", err)
		os.Exit(1)
	}
}

func run(serverName string, log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		Http struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:30s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			Host            string        `conf:"default:0.0.0.0:3000"`
		}
		DB struct {
			User         string `conf:"default:almalead"`
			Password     string `conf:"default:almalead,mask"`
			Host         string `conf:"default:localhost"`
			Name         string `conf:"default:almalead"`
			MaxIdleConns int    `conf:"default:0"`
			MaxOpenConns int    `conf:"default:0"`
			DisableTLS   bool   `conf:"default:true"`
		}
		Jaeger struct {
			ReporterURI string  `conf:"default:http://localhost:14268/api/traces"`
			ServiceName string  `conf:"default:almalead-api"`
			Probability float64 `conf:"default:0.5"`
		}
		Auth struct {
			Secret   string        `conf:"required,mask"`
			TokenTTL time.Duration `conf:"default:24h"`
		}
		Storage struct {
			Backend  string `conf:"default:s3,help:s3 or local"`
			MaxBytes int64  `conf:"default:10485760"`
			S3       struct {
				Endpoint   string `conf:"default:http://localhost:9000"`
				Region     string `conf:"default:us-east-1"`
				Bucket     string `conf:"default:resumes"`
				AccessKey  string `conf:"default:minioadmin"`
				SecretKey  string `conf:"default:minioadmin,mask"`
				PublicBase string `conf:"default:http://localhost:9000"`
			}
			Local struct {
				Dir        string `conf:"default:./data/resumes"`
				PublicBase string `conf:"default:http://localhost:3000/api/v1/files"`
			}
		}
		Mail struct {
			Provider      string `conf:"default:log,help:smtp ses or log"`
			From          string `conf:"default:noreply@almalead.com"`
			FromName      string `conf:"default:AlmaLead"`
			AttorneyEmail string `conf:"default:attorney@almalead.com"`
			SMTP          struct {
				Host     string `conf:"default:localhost"`
				Port     int    `conf:"default:587"`
				User     string
				Password string `conf:"mask"`
			}
			SES struct {
				Region string `conf:"default:us-east-1"`
			}
		}
		App struct {
			Name    string `conf:"default:AlmaLead"`
			Version string `conf:"default:1.0.0"`
		}
	}{}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	help, err := conf.Parse("LEAD", &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Database Support

	// Create connectivity to the database.
	log.Infow("startup", "status", "initializing database support", "host", cfg.DB.Host)

	db, err := postgres.Open(postgres.Config{
		User:         cfg.DB.User,
		Password:     cfg.DB.Password,
		Host:         cfg.DB.Host,
		Name:         cfg.DB.Name,
		MaxIdleConns: cfg.DB.MaxIdleConns,
		MaxOpenConns: cfg.DB.MaxOpenConns,
		DisableTLS:   cfg.DB.DisableTLS,
	})
	if err != nil {
		return fmt.Errorf("connecting to db: %w", err)
	}
	defer func() {
		log.Infow("shutdown", "status", "stopping database support", "host", cfg.DB.Host)
		db.Close()
	}()

	// =========================================================================
	// Update database schema

	log.Infow("startup", "status", "updating database schema", "database", cfg.DB.Name, "host", cfg.DB.Host)

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelMigrate()

	if err := postgres.Migrate(migrateCtx, db); err != nil {
		return fmt.Errorf("updating database schema: %w", err)
	}

	// =========================================================================
	// Start Tracing Support

	log.Infow("startup", "status", "initializing OT/Jaeger tracing support")

	traceProvider, err := startTracing(
		cfg.Jaeger.ServiceName,
		cfg.Jaeger.ReporterURI,
		cfg.Jaeger.Probability,
	)
	if err != nil {
		return fmt.Errorf("starting tracing: %w", err)
	}
	defer traceProvider.Shutdown(context.Background())

	// =========================================================================
	// Resume Storage

	log.Infow("startup", "status", "initializing resume storage", "backend", cfg.Storage.Backend)

	policy := storage.DefaultPolicy()
	policy.MaxBytes = cfg.Storage.MaxBytes

	var (
		store almalead.Storage
		files http.Handler
	)

	switch cfg.Storage.Backend {
	case "s3":
		s3Store, err := storage.NewS3Storage(context.Background(), storage.S3Config{
			Endpoint:   cfg.Storage.S3.Endpoint,
			Region:     cfg.Storage.S3.Region,
			Bucket:     cfg.Storage.S3.Bucket,
			AccessKey:  cfg.Storage.S3.AccessKey,
			SecretKey:  cfg.Storage.S3.SecretKey,
			PublicBase: cfg.Storage.S3.PublicBase,
		}, policy)
		if err != nil {
			return fmt.Errorf("creating s3 storage: %w", err)
		}

		// A missing bucket is not fatal; uploads fail until it exists.
		bucketCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := s3Store.EnsureBucket(bucketCtx); err != nil {
			log.Warnw("startup", "status", "could not ensure bucket", "bucket", cfg.Storage.S3.Bucket, "error", err)
		}
		cancel()
		store = s3Store

	case "local":
		local, err := storage.NewLocalStorage(cfg.Storage.Local.Dir, cfg.Storage.Local.PublicBase, policy)
		if err != nil {
			return fmt.Errorf("creating local storage: %w", err)
		}
		store = local
		files = http.FileServer(http.Dir(local.Root()))

	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	// =========================================================================
	// Notifications

	log.Infow("startup", "status", "initializing mailer", "provider", cfg.Mail.Provider)

	var mailer notify.Mailer
	switch cfg.Mail.Provider {
	case "smtp":
		mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.Mail.SMTP.Host,
			Port:     cfg.Mail.SMTP.Port,
			Username: cfg.Mail.SMTP.User,
			Password: cfg.Mail.SMTP.Password,
			From:     cfg.Mail.From,
			FromName: cfg.Mail.FromName,
		})
	case "ses":
		mailer, err = notify.NewSESMailer(context.Background(), cfg.Mail.SES.Region, cfg.Mail.From, cfg.Mail.FromName)
		if err != nil {
			return fmt.Errorf("creating ses mailer: %w", err)
		}
	case "log":
		mailer = notify.NewLogMailer(log)
	default:
		return fmt.Errorf("unknown mail provider %q", cfg.Mail.Provider)
	}

	dispatcher := notify.NewDispatcher(mailer, notify.Config{
		AttorneyEmail: cfg.Mail.AttorneyEmail,
		AppName:       cfg.App.Name,
	}, log)

	// =========================================================================
	// Create router

	log.Infow("startup", "status", "initializing router")

	guard, err := auth.NewGuard(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating access guard: %w", err)
	}

	otelLog := otelzap.New(log.Desugar(), otelzap.WithStackTrace(true)).Sugar()

	leadRepo := postgres.NewLeadRepository(db)
	userRepo := postgres.NewUserRepository(db)

	api := handler.API{
		Auth: handler.NewAuthHandler(auth.NewService(userRepo, guard, log), otelLog),
		Leads: handler.NewLeadHandler(
			intake.NewOrchestrator(store, leadRepo, dispatcher, policy, log),
			leads.NewService(leadRepo, store, log),
			policy.MaxBytes,
			otelLog,
		),
		Health: handler.NewHealthHandler(cfg.App.Name, cfg.App.Version, func(ctx context.Context) error {
			return statusCheck(ctx, db)
		}, otelLog),
		Files: files,
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(otelchi.Middleware(serverName, otelchi.WithChiRoutes(r)))

	api.Routes(r)

	// =========================================================================
	// Start API Server

	log.Infow("startup", "status", "initializing http server", "host", cfg.Http.Host)

	// The HTTP Server
	server := &http.Server{
		Addr:         cfg.Http.Host,
		Handler:      r,
		ReadTimeout:  cfg.Http.ReadTimeout,
		WriteTimeout: cfg.Http.WriteTimeout,
		IdleTimeout:  cfg.Http.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Server run context
	serverCtx, serverStopCtx := context.WithCancel(context.Background())

	// Listen for syscall signals for process to interrupt/quit
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		s := <-sig
		log.Infow("shutdown", "status", "shutdown started", "signal", s)

		// Shutdown signal with grace period
		shutdownCtx, cancel := context.WithTimeout(serverCtx, cfg.Http.ShutdownTimeout)
		defer cancel()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		// Trigger graceful shutdown
		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	// Run the server
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	// Wait for server context to be stopped
	<-serverCtx.Done()

	return nil
}

// statusCheck pings once. postgres.StatusCheck retries until ctx expires,
// which suits startup but not a health probe.
func statusCheck(ctx context.Context, db *sql.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return err
	}
	return postgres.StatusCheck(ctx, db)
}

func newLog(serviceName string) (*zap.SugaredLogger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stdout"}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true
	config.InitialFields = map[string]interface{}{
		"service": serviceName,
	}

	log, err := config.Build()
	if err != nil {
		return nil, err
	}

	return log.Sugar(), nil
}

func startTracing(serviceName, reporterURL string, probability float64) (*tracesdk.TracerProvider, error) {
	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(reporterURL)))
	if err != nil {
		return nil, fmt.Errorf("creating new exporter: %w", err)
	}

	tp := tracesdk.NewTracerProvider(
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.TraceIDRatioBased(probability))),
		// Always be sure to batch in production.
		tracesdk.WithBatcher(exp,
			tracesdk.WithMaxExportBatchSize(tracesdk.DefaultMaxExportBatchSize),
			tracesdk.WithBatchTimeout(tracesdk.DefaultScheduleDelay*time.Millisecond),
		),
		// Record information about this application in a Resource.
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			attribute.String("exporter", "jaeger"),
		)),
	)

	otel.SetTracerProvider(tp)
	return tp, nil
}
