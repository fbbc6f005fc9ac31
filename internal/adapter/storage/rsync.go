package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	appconfig "github.com/fierylion/pg-backups/internal/config"
	"github.com/fierylion/pg-backups/internal/domain"
)

// RsyncBackend mirrors backup folders to a remote host over SSH.
// Authentication is key-based; BatchMode keeps it from ever prompting.
type RsyncBackend struct {
	host          string
	user          string
	port          int
	path          string
	retentionDays int
}

var _ domain.Backend = (*RsyncBackend)(nil)

func NewRsync(cfg *appconfig.RsyncConfig) *RsyncBackend {
	return &RsyncBackend{
		host:          cfg.Host,
		user:          cfg.User,
		port:          cfg.Port,
		path:          cfg.Path,
		retentionDays: cfg.RetentionDays,
	}
}

func (r *RsyncBackend) Kind() domain.DestinationKind { return domain.DestinationRemote }

func (r *RsyncBackend) Name() string { return "rsync" }

func (r *RsyncBackend) RetentionDays() int { return r.retentionDays }

func (r *RsyncBackend) target() string {
	return r.user + "@" + r.host
}

func (r *RsyncBackend) sshOptions() []string {
	return []string{
		"-p", strconv.Itoa(r.port),
		"-o", "BatchMode=yes",
		"-o", "StrictHostKeyChecking=accept-new",
		"-o", "ConnectTimeout=10",
	}
}

func (r *RsyncBackend) runRemote(ctx context.Context, remoteCmd ...string) (string, error) {
	args := append(r.sshOptions(), r.target(), "--")
	args = append(args, remoteCmd...)

	cmd := exec.CommandContext(ctx, "ssh", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("remote command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

func (r *RsyncBackend) runRsync(ctx context.Context, source, dest string) error {
	rsh := "ssh " + strings.Join(r.sshOptions(), " ")
	cmd := exec.CommandContext(ctx, "rsync",
		"--archive",
		"--compress",
		"--delete",
		"-e", rsh,
		source,
		dest,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("rsync failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (r *RsyncBackend) ListFolders(ctx context.Context) ([]string, error) {
	out, err := r.runRemote(ctx,
		"find", shellQuote(r.path), "-mindepth", "1", "-maxdepth", "1", "-type", "d", "-printf", `'%f\n'`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote folders: %w", err)
	}

	var folders []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" && domain.IsFolderName(line) {
			folders = append(folders, line)
		}
	}
	domain.SortFolderIDs(folders)
	return folders, nil
}

func (r *RsyncBackend) ListArtifacts(ctx context.Context, folderID string) ([]domain.Artifact, error) {
	remoteFolder := path.Join(r.path, folderID)
	out, err := r.runRemote(ctx,
		"find", shellQuote(remoteFolder), "-maxdepth", "1", "-type", "f", "-printf", `'%s\t%f\n'`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote folder %s: %w", folderID, err)
	}

	var artifacts []domain.Artifact
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sizeStr, name, found := strings.Cut(line, "\t")
		if !found {
			continue
		}
		size, err := strconv.ParseInt(sizeStr, 10, 64)
		if err != nil {
			continue
		}
		if a, ok := domain.ParseArtifact(name, size); ok {
			artifacts = append(artifacts, a)
		}
	}
	return artifacts, nil
}

// PushFolder mirrors the local folder to <remotePath>/<folderId>/. The
// trailing slash on the source makes rsync copy contents, not the folder.
func (r *RsyncBackend) PushFolder(ctx context.Context, localPath string, folderID string) error {
	remoteFolder := path.Join(r.path, folderID)
	if _, err := r.runRemote(ctx, "mkdir", "-p", shellQuote(remoteFolder)); err != nil {
		return fmt.Errorf("failed to create remote folder %s: %w", folderID, err)
	}

	source := strings.TrimSuffix(localPath, "/") + "/"
	dest := r.target() + ":" + remoteFolder + "/"
	if err := r.runRsync(ctx, source, dest); err != nil {
		return fmt.Errorf("failed to push folder %s: %w", folderID, err)
	}
	return nil
}

// FetchFolder mirrors the remote folder into destRoot/folderID.
func (r *RsyncBackend) FetchFolder(ctx context.Context, folderID string, destRoot string) (string, error) {
	if !domain.IsFolderName(folderID) {
		return "", fmt.Errorf("refusing to fetch %q: not a backup folder name", folderID)
	}
	remoteFolder := path.Join(r.path, folderID)
	if _, err := r.runRemote(ctx, "test", "-d", shellQuote(remoteFolder)); err != nil {
		return "", fmt.Errorf("folder %s not found on %s: %w", folderID, r.host, err)
	}

	destPath := filepath.Join(destRoot, folderID)
	if err := os.MkdirAll(destPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create dest folder: %w", err)
	}

	source := r.target() + ":" + remoteFolder + "/"
	if err := r.runRsync(ctx, source, destPath+"/"); err != nil {
		return "", fmt.Errorf("failed to fetch folder %s: %w", folderID, err)
	}
	return destPath, nil
}

func (r *RsyncBackend) DeleteFolder(ctx context.Context, folderID string) error {
	if !domain.IsFolderName(folderID) {
		return fmt.Errorf("refusing to delete %q: not a backup folder name", folderID)
	}
	remoteFolder := path.Join(r.path, folderID)
	if _, err := r.runRemote(ctx, "rm", "-rf", shellQuote(remoteFolder)); err != nil {
		return fmt.Errorf("failed to delete remote folder %s: %w", folderID, err)
	}
	return nil
}

func (r *RsyncBackend) IsReachable(ctx context.Context) bool {
	_, err := r.runRemote(ctx, "true")
	return err == nil
}

// shellQuote single-quotes an argument for the remote shell; ssh joins argv
// with spaces and hands the result to it.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
