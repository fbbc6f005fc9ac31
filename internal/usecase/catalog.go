package usecase

import (
	"context"
	"fmt"

	"github.com/fierylion/pg-backups/internal/domain"
)

// Catalog discovers which backup folders exist on the configured sources.
// Inspections are cached for its lifetime.
type Catalog struct {
	backends  []domain.Backend
	logger    Logger
	inspected map[string]*domain.Folder
}

type SourceStatus struct {
	Backend     domain.Backend
	Reachable   bool
	FolderCount int
	LatestID    string
}

func NewCatalog(backends []domain.Backend, logger Logger) *Catalog {
	return &Catalog{
		backends:  backends,
		logger:    logger,
		inspected: make(map[string]*domain.Folder),
	}
}

func (uc *Catalog) Backends() []domain.Backend {
	return uc.backends
}

func (uc *Catalog) Backend(kind domain.DestinationKind) (domain.Backend, bool) {
	for _, b := range uc.backends {
		if b.Kind() == kind {
			return b, true
		}
	}
	return nil, false
}

// Discover lists the folders a source currently holds, newest first.
// Remote folders stay uninspected until Inspect is called for them.
func (uc *Catalog) Discover(ctx context.Context, backend domain.Backend) ([]*domain.Folder, error) {
	ids, err := backend.ListFolders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders on %s: %w", backend.Name(), err)
	}

	folders := make([]*domain.Folder, 0, len(ids))
	for _, id := range ids {
		if cached, ok := uc.inspected[uc.cacheKey(backend, id)]; ok {
			folders = append(folders, cached)
			continue
		}

		folderTime, err := domain.ParseFolderTime(id)
		if err != nil {
			uc.logger.Warnf("Skipping %s on %s: %v", id, backend.Name(), err)
			continue
		}

		folder := &domain.Folder{ID: id, Time: folderTime}
		if backend.Kind() == domain.DestinationLocal {
			if err := uc.Inspect(ctx, backend, folder); err != nil {
				uc.logger.Warnf("Failed to inspect %s on %s: %v", id, backend.Name(), err)
			}
		}
		folders = append(folders, folder)
	}

	return folders, nil
}

func (uc *Catalog) Inspect(ctx context.Context, backend domain.Backend, folder *domain.Folder) error {
	if folder.Inspected {
		return nil
	}

	key := uc.cacheKey(backend, folder.ID)
	if cached, ok := uc.inspected[key]; ok {
		*folder = *cached
		return nil
	}

	artifacts, err := backend.ListArtifacts(ctx, folder.ID)
	if err != nil {
		return fmt.Errorf("failed to list artifacts of %s on %s: %w", folder.ID, backend.Name(), err)
	}

	folder.SetArtifacts(artifacts)
	uc.inspected[key] = folder
	return nil
}

// DescribeSources probes every source. An unreachable source is reported
// as such, never raised as an error.
func (uc *Catalog) DescribeSources(ctx context.Context) []SourceStatus {
	statuses := make([]SourceStatus, 0, len(uc.backends))
	for _, backend := range uc.backends {
		status := SourceStatus{Backend: backend}

		if !backend.IsReachable(ctx) {
			statuses = append(statuses, status)
			continue
		}
		status.Reachable = true

		ids, err := backend.ListFolders(ctx)
		if err != nil {
			uc.logger.Warnf("Failed to list folders on %s: %v", backend.Name(), err)
			statuses = append(statuses, status)
			continue
		}
		status.FolderCount = len(ids)
		status.LatestID = domain.LatestFolderID(ids)

		statuses = append(statuses, status)
	}
	return statuses
}

func (uc *Catalog) cacheKey(backend domain.Backend, folderID string) string {
	return backend.Name() + "/" + folderID
}
