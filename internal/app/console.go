package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fierylion/pg-backups/internal/adapter/compressor"
	"github.com/fierylion/pg-backups/internal/adapter/engine"
	"github.com/fierylion/pg-backups/internal/config"
	"github.com/fierylion/pg-backups/internal/domain"
	"github.com/fierylion/pg-backups/internal/infrastructure/logger"
	"github.com/fierylion/pg-backups/internal/usecase"
)

// Console is the restore tool. With the RESTORE_* parameters present it
// runs one restore unattended; otherwise it drives an interactive menu.
type Console struct {
	config   *config.Config
	logger   *logger.Logger
	engine   *engine.PostgresEngine
	backends []domain.Backend
	restorer *usecase.Restorer
	in       *bufio.Reader
	out      io.Writer
	workDir  string
}

func NewConsole(ctx context.Context, cfg *config.Config) (*Console, error) {
	log, err := logger.NewCLI(cfg.App.LogLevel, cfg.App.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	comp := compressor.NewGzip()
	eng := engine.NewPostgres(&cfg.Postgres, comp)

	if err := eng.Preflight(); err != nil {
		return nil, fmt.Errorf("preflight failed: %w", err)
	}

	_, backends, err := BuildBackends(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	// staging area for folders fetched from remote sources
	workDir, err := os.MkdirTemp("", "pg-restore-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	c := &Console{
		config:   cfg,
		logger:   log,
		engine:   eng,
		backends: backends,
		in:       bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		workDir:  workDir,
	}
	c.restorer = usecase.NewRestorer(eng, comp, c.confirm, workDir, log)
	return c, nil
}

// Run dispatches to automated or interactive mode.
func (c *Console) Run(ctx context.Context) error {
	request, ok, err := usecase.AutomatedRequest(
		c.config.Restore.Source,
		c.config.Restore.Folder,
		c.config.Restore.Type,
		c.config.Restore.Database,
	)
	if err != nil {
		return err
	}
	if ok {
		return c.runAutomated(ctx, request)
	}
	return c.runInteractive(ctx)
}

func (c *Console) runAutomated(ctx context.Context, request domain.RestoreRequest) error {
	c.logger.Infof("Automated restore: %s of folder %s from %s",
		request.Scope, request.FolderID, request.Source)

	catalog := usecase.NewCatalog(c.backends, c.logger)
	source, ok := catalog.Backend(request.Source)
	if !ok {
		return &domain.ConfigurationError{
			Subject: "restore",
			Reason:  fmt.Sprintf("source %s is not enabled", request.Source),
		}
	}

	if err := c.engine.Ping(ctx); err != nil {
		return fmt.Errorf("target server is unreachable: %w", err)
	}

	result := c.restorer.Execute(ctx, source, request)
	if result.Err != nil {
		return fmt.Errorf("restore failed at stage %s: %w", result.Stage, result.Err)
	}
	for _, warning := range result.Warnings {
		c.logger.Warnf("%s", warning)
	}
	return nil
}

func (c *Console) runInteractive(ctx context.Context) error {
	fmt.Fprintf(c.out, "PostgreSQL restore console. Target server: %s:%d\n",
		c.config.Postgres.Host, c.config.Postgres.Port)

	for {
		if ctx.Err() != nil {
			return nil
		}

		fmt.Fprintf(c.out, "\nMain menu:\n")
		for i, backend := range c.backends {
			fmt.Fprintf(c.out, "  %d. Restore from %s\n", i+1, backend.Name())
		}
		overviewIndex := len(c.backends) + 1
		pingIndex := len(c.backends) + 2
		exitIndex := len(c.backends) + 3
		fmt.Fprintf(c.out, "  %d. Show all sources\n", overviewIndex)
		fmt.Fprintf(c.out, "  %d. Test target connection\n", pingIndex)
		fmt.Fprintf(c.out, "  %d. Exit\n", exitIndex)

		choice, err := c.readChoice("Select an action", exitIndex)
		if err != nil {
			if errors.Is(err, usecase.ErrInvalidSelection) {
				fmt.Fprintf(c.out, "%v\n", err)
				continue
			}
			return err
		}

		switch {
		case choice <= len(c.backends):
			c.runRestoreAction(ctx, c.backends[choice-1])
		case choice == overviewIndex:
			c.showSources(ctx)
		case choice == pingIndex:
			c.testConnection(ctx)
		default:
			return nil
		}
	}
}

// Menu mistakes and cancellations land back on the main menu.
func (c *Console) runRestoreAction(ctx context.Context, source domain.Backend) {
	if err := c.restoreFrom(ctx, source); err != nil {
		switch {
		case errors.Is(err, usecase.ErrCancelled):
			fmt.Fprintf(c.out, "Cancelled.\n")
		case errors.Is(err, usecase.ErrInvalidSelection):
			fmt.Fprintf(c.out, "%v\n", err)
		default:
			c.logger.Errorf("%v", err)
		}
	}
}

func (c *Console) restoreFrom(ctx context.Context, source domain.Backend) error {
	// a fresh catalog per action keeps listings current
	catalog := usecase.NewCatalog(c.backends, c.logger)
	selector := usecase.NewSelector(catalog, c.in, c.out, c.logger)

	folder, err := selector.SelectFolder(ctx, source)
	if err != nil {
		return err
	}

	selection, err := selector.SelectScope(ctx, source, folder)
	if err != nil {
		return err
	}

	if selection.DryRun {
		selector.DryRun(folder, selection.Request)
		return nil
	}

	if err := c.engine.Ping(ctx); err != nil {
		return fmt.Errorf("target server is unreachable: %w", err)
	}

	c.printResult(c.restorer.Execute(ctx, source, selection.Request))
	return nil
}

func (c *Console) printResult(result *domain.RestoreResult) {
	switch {
	case errors.Is(result.Err, usecase.ErrCancelled):
		fmt.Fprintf(c.out, "\nCancelled, nothing was changed.\n")
	case result.Err != nil:
		fmt.Fprintf(c.out, "\nRestore failed at stage %s: %v\n", result.Stage, result.Err)
	default:
		fmt.Fprintf(c.out, "\nRestore complete.\n")
		for _, warning := range result.Warnings {
			fmt.Fprintf(c.out, "  warning: %s\n", warning)
		}
	}
}

func (c *Console) showSources(ctx context.Context) {
	catalog := usecase.NewCatalog(c.backends, c.logger)
	statuses := catalog.DescribeSources(ctx)

	fmt.Fprintf(c.out, "\nConfigured sources:\n")
	for _, status := range statuses {
		switch {
		case !status.Reachable:
			fmt.Fprintf(c.out, "  %-6s unreachable\n", status.Backend.Name())
		case status.FolderCount == 0:
			fmt.Fprintf(c.out, "  %-6s reachable, no backups\n", status.Backend.Name())
		default:
			fmt.Fprintf(c.out, "  %-6s reachable, %d backup(s), latest %s\n",
				status.Backend.Name(), status.FolderCount, status.LatestID)
		}
	}
}

func (c *Console) testConnection(ctx context.Context) {
	fmt.Fprintf(c.out, "\nTesting connection to %s:%d...\n",
		c.config.Postgres.Host, c.config.Postgres.Port)
	if err := c.engine.Ping(ctx); err != nil {
		fmt.Fprintf(c.out, "Connection failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Connection OK.\n")
}

func (c *Console) confirm(prompt string) bool {
	fmt.Fprintf(c.out, "%s [y/N]: ", prompt)

	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func (c *Console) readChoice(prompt string, max int) (int, error) {
	fmt.Fprintf(c.out, "%s [1-%d]: ", prompt, max)

	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return 0, fmt.Errorf("failed to read selection: %w", err)
	}

	choice, convErr := strconv.Atoi(strings.TrimSpace(line))
	if convErr != nil || choice < 1 || choice > max {
		return 0, fmt.Errorf("%w: %q is not between 1 and %d",
			usecase.ErrInvalidSelection, strings.TrimSpace(line), max)
	}
	return choice, nil
}

func (c *Console) Shutdown() {
	os.RemoveAll(c.workDir)
	c.logger.Close()
}
