package domain

import "context"

// Engine abstracts the PostgreSQL server the backups are taken from and
// restored into.
type Engine interface {
	Ping(ctx context.Context) error

	DumpCluster(ctx context.Context, outputPath string) error
	DumpGlobals(ctx context.Context, outputPath string) error
	DumpDatabase(ctx context.Context, database string, outputPath string) error

	// ListDatabases returns the user databases on the server, excluding
	// templates and the administrative postgres database.
	ListDatabases(ctx context.Context) ([]string, error)
	ListTables(ctx context.Context, database string) ([]string, error)
	ListRoles(ctx context.Context) ([]string, error)

	RestoreCluster(ctx context.Context, dumpPath string) error
	RestoreGlobals(ctx context.Context, dumpPath string) error
	// RestoreDatabase drops and recreates the database before replaying.
	RestoreDatabase(ctx context.Context, database string, dumpPath string) error
}
