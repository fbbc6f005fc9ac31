package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fierylion/pg-backups/internal/domain"
)

var (
	_ Logger         = (*fakeLogger)(nil)
	_ domain.Backend = (*fakeBackend)(nil)
	_ domain.Engine  = (*fakeEngine)(nil)
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type fakeLogger struct {
	infos  []string
	warns  []string
	errors []string
}

func (l *fakeLogger) Infof(template string, args ...interface{}) {
	l.infos = append(l.infos, fmt.Sprintf(template, args...))
}

func (l *fakeLogger) Warnf(template string, args ...interface{}) {
	l.warns = append(l.warns, fmt.Sprintf(template, args...))
}

func (l *fakeLogger) Errorf(template string, args ...interface{}) {
	l.errors = append(l.errors, fmt.Sprintf(template, args...))
}

// fakeBackend keeps folders in memory. Unlike the real backends it does not
// filter unparseable folder ids out of listings, so the guards above it can
// be exercised.
type fakeBackend struct {
	kind      domain.DestinationKind
	name      string
	retention int
	folders   map[string][]domain.Artifact
	reachable bool

	listErr   error
	pushErr   error
	fetchErr  error
	deleteErr error

	pushed            []string
	deleted           []string
	listArtifactCalls int
}

func newFakeBackend(name string, kind domain.DestinationKind, retention int) *fakeBackend {
	return &fakeBackend{
		kind:      kind,
		name:      name,
		retention: retention,
		folders:   map[string][]domain.Artifact{},
		reachable: true,
	}
}

func (b *fakeBackend) Kind() domain.DestinationKind { return b.kind }
func (b *fakeBackend) Name() string                 { return b.name }
func (b *fakeBackend) RetentionDays() int           { return b.retention }

func (b *fakeBackend) ListFolders(ctx context.Context) ([]string, error) {
	if b.listErr != nil {
		return nil, b.listErr
	}
	ids := make([]string, 0, len(b.folders))
	for id := range b.folders {
		ids = append(ids, id)
	}
	domain.SortFolderIDs(ids)
	return ids, nil
}

func (b *fakeBackend) ListArtifacts(ctx context.Context, folderID string) ([]domain.Artifact, error) {
	b.listArtifactCalls++
	artifacts, ok := b.folders[folderID]
	if !ok {
		return nil, fmt.Errorf("folder %s not found", folderID)
	}
	return artifacts, nil
}

func (b *fakeBackend) PushFolder(ctx context.Context, localPath string, folderID string) error {
	if b.pushErr != nil {
		return b.pushErr
	}
	entries, err := os.ReadDir(localPath)
	if err != nil {
		return err
	}
	var artifacts []domain.Artifact
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if artifact, ok := domain.ParseArtifact(entry.Name(), info.Size()); ok {
			artifacts = append(artifacts, artifact)
		}
	}
	b.folders[folderID] = artifacts
	b.pushed = append(b.pushed, folderID)
	return nil
}

func (b *fakeBackend) FetchFolder(ctx context.Context, folderID string, destRoot string) (string, error) {
	if b.fetchErr != nil {
		return "", b.fetchErr
	}
	if _, ok := b.folders[folderID]; !ok {
		return "", fmt.Errorf("folder %s not found", folderID)
	}
	dest := filepath.Join(destRoot, folderID)
	if err := os.MkdirAll(dest, 0755); err != nil {
		return "", err
	}
	return dest, nil
}

func (b *fakeBackend) DeleteFolder(ctx context.Context, folderID string) error {
	if b.deleteErr != nil {
		return b.deleteErr
	}
	delete(b.folders, folderID)
	b.deleted = append(b.deleted, folderID)
	return nil
}

func (b *fakeBackend) IsReachable(ctx context.Context) bool { return b.reachable }

// fakeEngine answers catalog queries from fixtures and records every
// mutation it is asked to perform.
type fakeEngine struct {
	databases []string
	tables    map[string][]string
	roles     []string

	pingErr        error
	clusterDumpErr error
	globalsDumpErr error
	dumpErrs       map[string]error
	listErr        error
	tablesErr      error
	rolesErr       error
	restoreErr     error

	dumpContent []byte
	dumped      []string
	restored    []string
}

func newFakeEngine(databases ...string) *fakeEngine {
	return &fakeEngine{
		databases:   databases,
		tables:      map[string][]string{},
		dumpErrs:    map[string]error{},
		dumpContent: []byte("-- dump\n"),
	}
}

func (e *fakeEngine) Ping(ctx context.Context) error { return e.pingErr }

func (e *fakeEngine) DumpCluster(ctx context.Context, outputPath string) error {
	return e.writeDump(outputPath, e.clusterDumpErr)
}

func (e *fakeEngine) DumpGlobals(ctx context.Context, outputPath string) error {
	return e.writeDump(outputPath, e.globalsDumpErr)
}

func (e *fakeEngine) DumpDatabase(ctx context.Context, database string, outputPath string) error {
	return e.writeDump(outputPath, e.dumpErrs[database])
}

func (e *fakeEngine) writeDump(outputPath string, fail error) error {
	if fail != nil {
		return fail
	}
	if err := os.WriteFile(outputPath, e.dumpContent, 0644); err != nil {
		return err
	}
	e.dumped = append(e.dumped, filepath.Base(outputPath))
	return nil
}

func (e *fakeEngine) ListDatabases(ctx context.Context) ([]string, error) {
	if e.listErr != nil {
		return nil, e.listErr
	}
	return append([]string(nil), e.databases...), nil
}

func (e *fakeEngine) ListTables(ctx context.Context, database string) ([]string, error) {
	if e.tablesErr != nil {
		return nil, e.tablesErr
	}
	return e.tables[database], nil
}

func (e *fakeEngine) ListRoles(ctx context.Context) ([]string, error) {
	if e.rolesErr != nil {
		return nil, e.rolesErr
	}
	return e.roles, nil
}

func (e *fakeEngine) RestoreCluster(ctx context.Context, dumpPath string) error {
	if e.restoreErr != nil {
		return e.restoreErr
	}
	e.restored = append(e.restored, "cluster")
	return nil
}

func (e *fakeEngine) RestoreGlobals(ctx context.Context, dumpPath string) error {
	if e.restoreErr != nil {
		return e.restoreErr
	}
	e.restored = append(e.restored, "globals")
	return nil
}

func (e *fakeEngine) RestoreDatabase(ctx context.Context, database string, dumpPath string) error {
	if e.restoreErr != nil {
		return e.restoreErr
	}
	e.restored = append(e.restored, "database:"+database)
	return nil
}

// mutations counts how many times the engine was asked to change the server.
func (e *fakeEngine) mutations() int { return len(e.restored) }
