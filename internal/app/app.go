package app

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/fierylion/pg-backups/internal/adapter/compressor"
	"github.com/fierylion/pg-backups/internal/adapter/engine"
	"github.com/fierylion/pg-backups/internal/adapter/notify"
	"github.com/fierylion/pg-backups/internal/adapter/storage"
	"github.com/fierylion/pg-backups/internal/config"
	"github.com/fierylion/pg-backups/internal/domain"
	"github.com/fierylion/pg-backups/internal/infrastructure/logger"
	"github.com/fierylion/pg-backups/internal/infrastructure/scheduler"
	"github.com/fierylion/pg-backups/internal/usecase"
)

// App is the backup daemon.
type App struct {
	config    *config.Config
	logger    *logger.Logger
	scheduler *scheduler.Scheduler
	producer  *usecase.Producer
	notifier  *notify.TelegramNotifier
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// Initialize logger
	log, err := logger.New(cfg.App.LogLevel, cfg.App.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	log.Infof("Starting %s", cfg.App.Name)

	// A bad schedule expression is rejected here, not at first fire.
	if err := scheduler.ValidateSpec(cfg.Backup.Schedule); err != nil {
		return nil, fmt.Errorf("invalid BACKUP_SCHEDULE %q: %w", cfg.Backup.Schedule, err)
	}

	comp := compressor.NewGzip()
	eng := engine.NewPostgres(&cfg.Postgres, comp)

	if err := eng.Preflight(); err != nil {
		return nil, fmt.Errorf("preflight failed: %w", err)
	}

	// Test connection
	if err := eng.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	log.Infof("✓ Connected to postgres at %s:%d", cfg.Postgres.Host, cfg.Postgres.Port)

	local, destinations, err := BuildBackends(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	pruner := usecase.NewPruner(log)
	producer := usecase.NewProducer(eng, local, destinations, pruner, log)

	// Initialize notifications
	var notifier *notify.TelegramNotifier
	if cfg.Telegram.Enabled {
		notifier, err = notify.NewTelegram(&cfg.Telegram)
		if err != nil {
			log.Errorf("Failed to initialize Telegram notifications: %v", err)
			notifier = nil
		} else {
			log.Infof("✓ Telegram notifications enabled")
		}
	}

	return &App{
		config:    cfg,
		logger:    log,
		scheduler: scheduler.New(ctx),
		producer:  producer,
		notifier:  notifier,
	}, nil
}

// BuildBackends constructs the local staging root plus every enabled
// destination. A destination that fails validation only disables itself.
func BuildBackends(ctx context.Context, cfg *config.Config, log *logger.Logger) (*storage.LocalBackend, []domain.Backend, error) {
	local, err := storage.NewLocal(cfg.Backup.Path, cfg.Backup.RetentionDays)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize local backup root: %w", err)
	}
	log.Infof("✓ Local destination at %s (retention: %d day(s))", local.Root(), cfg.Backup.RetentionDays)

	backends := []domain.Backend{local}

	if cfg.S3.Enabled {
		if err := cfg.S3.Validate(); err != nil {
			cfgErr := &domain.ConfigurationError{Subject: "s3", Reason: err.Error()}
			log.Errorf("Skipping S3 destination: %v", cfgErr)
		} else if s3, err := storage.NewS3(ctx, &cfg.S3); err != nil {
			log.Errorf("Failed to initialize S3 destination: %v", err)
		} else {
			backends = append(backends, s3)
			log.Infof("✓ S3 destination enabled (bucket: %s, retention: %d day(s))",
				cfg.S3.Bucket, cfg.S3.RetentionDays)
		}
	}

	if cfg.Rsync.Enabled {
		if err := cfg.Rsync.Validate(); err != nil {
			cfgErr := &domain.ConfigurationError{Subject: "rsync", Reason: err.Error()}
			log.Errorf("Skipping rsync destination: %v", cfgErr)
		} else if err := lookPathAll("rsync", "ssh"); err != nil {
			log.Errorf("Skipping rsync destination: %v", err)
		} else {
			backends = append(backends, storage.NewRsync(&cfg.Rsync))
			log.Infof("✓ Rsync destination enabled (%s@%s:%s, retention: %d day(s))",
				cfg.Rsync.User, cfg.Rsync.Host, cfg.Rsync.Path, cfg.Rsync.RetentionDays)
		}
	}

	return local, backends, nil
}

func lookPathAll(tools ...string) error {
	for _, tool := range tools {
		if _, err := exec.LookPath(tool); err != nil {
			return fmt.Errorf("%s not found in PATH: %w", tool, err)
		}
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("Scheduling backup cycles: %s", a.config.Backup.Schedule)

	if err := a.scheduler.AddJob(a.config.Backup.Schedule, a.runCycle); err != nil {
		return fmt.Errorf("failed to schedule backup cycles: %w", err)
	}

	a.scheduler.Start()
	a.logger.Infof("Scheduler started successfully")

	// Keep running until context is cancelled
	<-ctx.Done()
	return nil
}

func (a *App) runCycle(ctx context.Context) error {
	a.logger.Infof("=== Triggered scheduled backup cycle ===")

	report, err := a.producer.Execute(ctx)
	if err != nil {
		a.logger.Errorf("Backup cycle aborted: %v", err)
		return err
	}

	if a.notifier != nil {
		if err := a.notifier.NotifyCycle(report); err != nil {
			a.logger.Errorf("Failed to send cycle notification: %v", err)
		}
	}
	return nil
}

func (a *App) Shutdown() {
	a.logger.Infof("Shutting down application...")
	a.scheduler.Stop()
	a.logger.Close()
}
