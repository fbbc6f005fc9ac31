package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fierylion/pg-backups/internal/domain"
)

// Logger is the narrow logging surface the use cases need.
type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

// LocalRoot is the staging destination; dumps land in its folders.
type LocalRoot interface {
	domain.Backend
	CreateFolder(folderID string) (string, error)
	FolderPath(folderID string) string
}

// Producer runs one full backup cycle. A failed step is recorded in the
// cycle report and the cycle moves on.
type Producer struct {
	engine       domain.Engine
	local        LocalRoot
	destinations []domain.Backend
	pruner       *Pruner
	logger       Logger
	now          func() time.Time
}

func NewProducer(
	engine domain.Engine,
	local LocalRoot,
	destinations []domain.Backend,
	pruner *Pruner,
	logger Logger,
) *Producer {
	return &Producer{
		engine:       engine,
		local:        local,
		destinations: destinations,
		pruner:       pruner,
		logger:       logger,
		now:          time.Now,
	}
}

// Only failure to create the local folder aborts a cycle.
func (uc *Producer) Execute(ctx context.Context) (*domain.CycleReport, error) {
	start := uc.now()
	folderID := domain.FolderName(start)
	report := &domain.CycleReport{FolderID: folderID, StartedAt: start}

	uc.logger.Infof("[%s] Starting backup cycle...", folderID)

	folderPath, err := uc.local.CreateFolder(folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to create backup folder %s: %w", folderID, err)
	}

	uc.dumpAll(ctx, folderID, folderPath, report)
	uc.pushAll(ctx, folderID, folderPath, report)
	uc.pruneAll(ctx, report)

	report.FinishedAt = uc.now()
	if report.Succeeded() {
		uc.logger.Infof("[%s] Backup cycle completed in %s",
			folderID, report.Duration().Round(time.Second))
	} else {
		uc.logger.Warnf("[%s] Backup cycle completed with %d error(s) in %s",
			folderID, len(report.Errors()), report.Duration().Round(time.Second))
	}

	return report, nil
}

func (uc *Producer) dumpAll(ctx context.Context, folderID, folderPath string, report *domain.CycleReport) {
	cluster := domain.Artifact{Kind: domain.ArtifactCluster}
	report.Dumps = append(report.Dumps, uc.dump(folderID, folderPath, cluster, func(path string) error {
		return uc.engine.DumpCluster(ctx, path)
	}))

	globals := domain.Artifact{Kind: domain.ArtifactGlobals}
	report.Dumps = append(report.Dumps, uc.dump(folderID, folderPath, globals, func(path string) error {
		return uc.engine.DumpGlobals(ctx, path)
	}))

	databases, err := uc.engine.ListDatabases(ctx)
	if err != nil {
		uc.logger.Errorf("[%s] Failed to list databases, skipping per-database dumps: %v", folderID, err)
		report.Dumps = append(report.Dumps, domain.DumpResult{
			Artifact: domain.Artifact{Kind: domain.ArtifactDatabase},
			Err:      fmt.Errorf("failed to list databases: %w", err),
		})
		return
	}

	for _, database := range databases {
		artifact := domain.Artifact{Kind: domain.ArtifactDatabase, Database: database}
		report.Dumps = append(report.Dumps, uc.dump(folderID, folderPath, artifact, func(path string) error {
			return uc.engine.DumpDatabase(ctx, database, path)
		}))
	}
}

func (uc *Producer) dump(folderID, folderPath string, artifact domain.Artifact, run func(outputPath string) error) domain.DumpResult {
	start := uc.now()
	fileName := artifact.FileName()
	outputPath := filepath.Join(folderPath, fileName)

	uc.logger.Infof("[%s] Dumping %s...", folderID, fileName)

	result := domain.DumpResult{Artifact: artifact}
	if err := run(outputPath); err != nil {
		result.Err = err
		uc.logger.Errorf("[%s] Failed to dump %s: %v", folderID, fileName, err)
	} else {
		if info, err := os.Stat(outputPath); err == nil {
			result.Artifact.Size = info.Size()
		}
		uc.logger.Infof("[%s] Dumped %s, size: %.2f MB",
			folderID, fileName, float64(result.Artifact.Size)/(1024*1024))
	}
	result.Duration = uc.now().Sub(start)
	return result
}

func (uc *Producer) pushAll(ctx context.Context, folderID, folderPath string, report *domain.CycleReport) {
	for _, dest := range uc.destinations {
		start := uc.now()
		uc.logger.Infof("[%s] Replicating to %s...", folderID, dest.Name())

		result := domain.PushResult{Backend: dest.Name(), Kind: dest.Kind()}
		if err := dest.PushFolder(ctx, folderPath, folderID); err != nil {
			result.Err = &domain.TransferError{
				Backend:  dest.Name(),
				Op:       "push",
				FolderID: folderID,
				Err:      err,
			}
			uc.logger.Errorf("[%s] Failed to replicate to %s: %v", folderID, dest.Name(), err)
		} else {
			uc.logger.Infof("[%s] Replicated to %s", folderID, dest.Name())
		}
		result.Duration = uc.now().Sub(start)
		report.Pushes = append(report.Pushes, result)
	}
}

func (uc *Producer) pruneAll(ctx context.Context, report *domain.CycleReport) {
	for _, dest := range uc.destinations {
		report.Prunes = append(report.Prunes, uc.pruner.Prune(ctx, dest, uc.now()))
	}
}
