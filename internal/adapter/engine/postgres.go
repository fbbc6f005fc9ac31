package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/fierylion/pg-backups/internal/config"
	"github.com/fierylion/pg-backups/internal/domain"
)

// PostgresEngine drives the PostgreSQL client tools. Dumps and restores
// are streamed through the compressor; no uncompressed SQL touches disk.
type PostgresEngine struct {
	cfg        *config.PostgresConfig
	compressor domain.Compressor
}

var _ domain.Engine = (*PostgresEngine)(nil)

func NewPostgres(cfg *config.PostgresConfig, comp domain.Compressor) *PostgresEngine {
	return &PostgresEngine{cfg: cfg, compressor: comp}
}

func (p *PostgresEngine) Preflight() error {
	for _, tool := range []string{"pg_dump", "pg_dumpall", "psql"} {
		if _, err := exec.LookPath(tool); err != nil {
			return fmt.Errorf("%s not found in PATH: %w", tool, err)
		}
	}
	return nil
}

func (p *PostgresEngine) connArgs() []string {
	return []string{
		fmt.Sprintf("--host=%s", p.cfg.Host),
		fmt.Sprintf("--port=%d", p.cfg.Port),
		fmt.Sprintf("--username=%s", p.cfg.User),
		"--no-password",
	}
}

func (p *PostgresEngine) env() []string {
	return append(os.Environ(), fmt.Sprintf("PGPASSWORD=%s", p.cfg.Password))
}

func (p *PostgresEngine) Ping(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "psql", append(p.connArgs(),
		"--dbname=postgres",
		"-tAc", "SELECT 1",
	)...)
	cmd.Env = p.env()

	if output, err := cmd.CombinedOutput(); err != nil {
		return &domain.ConnectionError{
			Host: p.cfg.Host,
			Err:  fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output))),
		}
	}
	return nil
}

func (p *PostgresEngine) DumpCluster(ctx context.Context, outputPath string) error {
	args := append(p.connArgs(), "--clean", "--if-exists")
	return p.dumpToArtifact(ctx, "pg_dumpall", args, outputPath)
}

func (p *PostgresEngine) DumpGlobals(ctx context.Context, outputPath string) error {
	args := append(p.connArgs(), "--globals-only", "--clean", "--if-exists")
	return p.dumpToArtifact(ctx, "pg_dumpall", args, outputPath)
}

func (p *PostgresEngine) DumpDatabase(ctx context.Context, database string, outputPath string) error {
	args := append(p.connArgs(),
		"--format=plain",
		"--clean",
		"--if-exists",
		database,
	)
	return p.dumpToArtifact(ctx, "pg_dump", args, outputPath)
}

// The artifact lands under its final name only on a clean tool exit.
func (p *PostgresEngine) dumpToArtifact(ctx context.Context, tool string, args []string, outputPath string) error {
	w, err := p.compressor.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to stage artifact: %w", err)
	}
	defer w.Abort()

	cmd := exec.CommandContext(ctx, tool, args...)
	cmd.Env = p.env()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return &domain.EngineError{Command: tool, Err: err}
	}

	_, copyErr := io.Copy(w, stdout)
	waitErr := cmd.Wait()

	if waitErr != nil {
		return &domain.EngineError{
			Command: tool,
			Detail:  strings.TrimSpace(stderr.String()),
			Err:     waitErr,
		}
	}
	if copyErr != nil {
		return fmt.Errorf("failed to write dump stream: %w", copyErr)
	}

	if err := w.Commit(); err != nil {
		return fmt.Errorf("failed to commit artifact: %w", err)
	}
	return nil
}

func (p *PostgresEngine) ListDatabases(ctx context.Context) ([]string, error) {
	const query = `SELECT datname FROM pg_database
		WHERE datistemplate = false AND datname <> 'postgres'
		ORDER BY datname`
	return p.queryLines(ctx, "postgres", query)
}

func (p *PostgresEngine) ListTables(ctx context.Context, database string) ([]string, error) {
	const query = `SELECT schemaname || '.' || tablename FROM pg_tables
		WHERE schemaname NOT IN ('pg_catalog', 'information_schema')
		ORDER BY 1`
	return p.queryLines(ctx, database, query)
}

func (p *PostgresEngine) ListRoles(ctx context.Context) ([]string, error) {
	const query = `SELECT rolname FROM pg_roles
		WHERE rolname NOT LIKE 'pg\_%'
		ORDER BY rolname`
	return p.queryLines(ctx, "postgres", query)
}

func (p *PostgresEngine) queryLines(ctx context.Context, database, query string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "psql", append(p.connArgs(),
		fmt.Sprintf("--dbname=%s", database),
		"-tAc", query,
	)...)
	cmd.Env = p.env()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &domain.EngineError{
			Command: "psql",
			Detail:  strings.TrimSpace(stderr.String()),
			Err:     err,
		}
	}

	var lines []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func (p *PostgresEngine) RestoreCluster(ctx context.Context, dumpPath string) error {
	return p.streamIntoServer(ctx, "postgres", dumpPath, false)
}

func (p *PostgresEngine) RestoreGlobals(ctx context.Context, dumpPath string) error {
	return p.streamIntoServer(ctx, "postgres", dumpPath, false)
}

func (p *PostgresEngine) RestoreDatabase(ctx context.Context, database string, dumpPath string) error {
	ident := quoteIdent(database)
	if err := p.execSQL(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s", ident)); err != nil {
		return err
	}
	if err := p.execSQL(ctx, fmt.Sprintf("CREATE DATABASE %s", ident)); err != nil {
		return err
	}
	return p.streamIntoServer(ctx, database, dumpPath, true)
}

// streamIntoServer decompresses the artifact and replays it through psql.
// Per-database dumps replay under ON_ERROR_STOP. Cluster and globals dumps
// must not: pg_dumpall --clean output drops every role including the
// connecting one, which the server rejects mid-replay.
func (p *PostgresEngine) streamIntoServer(ctx context.Context, database, dumpPath string, stopOnError bool) error {
	r, err := p.compressor.Open(dumpPath)
	if err != nil {
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	defer r.Close()

	args := append(p.connArgs(), fmt.Sprintf("--dbname=%s", database), "--quiet")
	if stopOnError {
		args = append(args, "-v", "ON_ERROR_STOP=1")
	}

	cmd := exec.CommandContext(ctx, "psql", args...)
	cmd.Env = p.env()
	cmd.Stdin = r

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &domain.EngineError{
			Command: "psql",
			Detail:  strings.TrimSpace(stderr.String()),
			Err:     err,
		}
	}
	return nil
}

func (p *PostgresEngine) execSQL(ctx context.Context, statement string) error {
	cmd := exec.CommandContext(ctx, "psql", append(p.connArgs(),
		"--dbname=postgres",
		"-v", "ON_ERROR_STOP=1",
		"-c", statement,
	)...)
	cmd.Env = p.env()

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &domain.EngineError{
			Command: "psql",
			Detail:  strings.TrimSpace(stderr.String()),
			Err:     err,
		}
	}
	return nil
}

// quoteIdent double-quotes an identifier for DROP/CREATE DATABASE.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
