package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fierylion/pg-backups/internal/domain"
)

type LocalBackend struct {
	root          string
	retentionDays int
}

var _ domain.Backend = (*LocalBackend)(nil)

func NewLocal(root string, retentionDays int) (*LocalBackend, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return &LocalBackend{root: root, retentionDays: retentionDays}, nil
}

func (l *LocalBackend) Kind() domain.DestinationKind { return domain.DestinationLocal }

func (l *LocalBackend) Name() string { return "local" }

func (l *LocalBackend) RetentionDays() int { return l.retentionDays }

func (l *LocalBackend) Root() string { return l.root }

func (l *LocalBackend) FolderPath(folderID string) string {
	return filepath.Join(l.root, folderID)
}

func (l *LocalBackend) CreateFolder(folderID string) (string, error) {
	path := l.FolderPath(folderID)
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup folder: %w", err)
	}
	return path, nil
}

func (l *LocalBackend) ListFolders(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var folders []string
	for _, entry := range entries {
		if entry.IsDir() && domain.IsFolderName(entry.Name()) {
			folders = append(folders, entry.Name())
		}
	}
	domain.SortFolderIDs(folders)
	return folders, nil
}

func (l *LocalBackend) ListArtifacts(ctx context.Context, folderID string) ([]domain.Artifact, error) {
	entries, err := os.ReadDir(l.FolderPath(folderID))
	if err != nil {
		return nil, fmt.Errorf("failed to read folder %s: %w", folderID, err)
	}

	var artifacts []domain.Artifact
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}
		if a, ok := domain.ParseArtifact(entry.Name(), info.Size()); ok {
			artifacts = append(artifacts, a)
		}
	}
	return artifacts, nil
}

// Pushing a folder that already lives at its destination is a no-op.
func (l *LocalBackend) PushFolder(ctx context.Context, localPath string, folderID string) error {
	destPath := l.FolderPath(folderID)
	if samePath(localPath, destPath) {
		return nil
	}

	if err := os.MkdirAll(destPath, 0755); err != nil {
		return fmt.Errorf("failed to create dest folder: %w", err)
	}

	entries, err := os.ReadDir(localPath)
	if err != nil {
		return fmt.Errorf("failed to read source folder: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := copyFile(filepath.Join(localPath, entry.Name()), filepath.Join(destPath, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (l *LocalBackend) FetchFolder(ctx context.Context, folderID string, destRoot string) (string, error) {
	if !domain.IsFolderName(folderID) {
		return "", fmt.Errorf("refusing to fetch %q: not a backup folder name", folderID)
	}
	path := l.FolderPath(folderID)
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("folder %s not found: %w", folderID, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("folder %s is not a directory", folderID)
	}
	return path, nil
}

func (l *LocalBackend) DeleteFolder(ctx context.Context, folderID string) error {
	// a bad id must never aim RemoveAll outside the root
	if !domain.IsFolderName(folderID) {
		return fmt.Errorf("refusing to delete %q: not a backup folder name", folderID)
	}
	if err := os.RemoveAll(l.FolderPath(folderID)); err != nil {
		return fmt.Errorf("failed to delete folder %s: %w", folderID, err)
	}
	return nil
}

func (l *LocalBackend) IsReachable(ctx context.Context) bool {
	info, err := os.Stat(l.root)
	return err == nil && info.IsDir()
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

func copyFile(sourcePath, destPath string) error {
	source, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer source.Close()

	dest, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create dest: %w", err)
	}
	defer dest.Close()

	if _, err := dest.ReadFrom(source); err != nil {
		return fmt.Errorf("failed to copy: %w", err)
	}
	return nil
}
