package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/fierylion/pg-backups/internal/domain"
)

// Pruner deletes folders older than a destination's retention window.
// Ids that do not parse as timestamps are never deleted.
type Pruner struct {
	logger Logger
}

func NewPruner(logger Logger) *Pruner {
	return &Pruner{logger: logger}
}

func (uc *Pruner) Prune(ctx context.Context, backend domain.Backend, now time.Time) domain.PruneResult {
	result := domain.PruneResult{Backend: backend.Name(), Kind: backend.Kind()}
	retention := backend.RetentionDays()
	cutoff := now.AddDate(0, 0, -retention)

	uc.logger.Infof("Pruning %s, retention: %d day(s)", backend.Name(), retention)

	folders, err := backend.ListFolders(ctx)
	if err != nil {
		result.Err = fmt.Errorf("failed to list folders on %s: %w", backend.Name(), err)
		return result
	}

	for _, folderID := range folders {
		folderTime, err := domain.ParseFolderTime(folderID)
		if err != nil {
			uc.logger.Warnf("Skipping %s on %s: %v", folderID, backend.Name(), err)
			continue
		}

		// A folder aged exactly at the threshold is retained.
		if !folderTime.Before(cutoff) {
			continue
		}

		uc.logger.Infof("Deleting expired folder from %s: %s", backend.Name(), folderID)
		if err := backend.DeleteFolder(ctx, folderID); err != nil {
			uc.logger.Errorf("Failed to delete %s from %s: %v", folderID, backend.Name(), err)
			continue
		}
		result.Deleted = append(result.Deleted, folderID)
	}

	uc.logger.Infof("Deleted %d expired folder(s) from %s", len(result.Deleted), backend.Name())
	return result
}
