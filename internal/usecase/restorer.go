package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fierylion/pg-backups/internal/domain"
)

// Confirmer asks the operator to approve a step. Automated restores never
// consult it.
type Confirmer func(prompt string) bool

// Restorer walks one restore through its stages. The first failing stage
// ends the restore; nothing is retried.
type Restorer struct {
	engine     domain.Engine
	compressor domain.Compressor
	confirm    Confirmer
	workDir    string
	logger     Logger
}

func NewRestorer(
	engine domain.Engine,
	compressor domain.Compressor,
	confirm Confirmer,
	workDir string,
	logger Logger,
) *Restorer {
	return &Restorer{
		engine:     engine,
		compressor: compressor,
		confirm:    confirm,
		workDir:    workDir,
		logger:     logger,
	}
}

func (uc *Restorer) Execute(ctx context.Context, source domain.Backend, request domain.RestoreRequest) *domain.RestoreResult {
	result := &domain.RestoreResult{Request: request, Stage: domain.StageRequested}

	localPath, err := uc.resolve(ctx, source, request.FolderID)
	if err != nil {
		result.Err = err
		return result
	}
	result.Stage = domain.StageResolved
	result.LocalPath = localPath

	if !uc.verify(localPath, request, result) {
		return result
	}
	result.Stage = domain.StageVerified

	artifactName := request.ScopeArtifact().FileName()
	artifactPath := filepath.Join(localPath, artifactName)
	if _, err := os.Stat(artifactPath); err != nil {
		result.Err = fmt.Errorf("artifact %s not found in folder %s", artifactName, request.FolderID)
		return result
	}

	if !request.Automated {
		prompt := fmt.Sprintf("This %s. Continue?", restoreConsequence(request))
		if !uc.confirm(prompt) {
			result.Err = ErrCancelled
			return result
		}
	}
	result.Stage = domain.StageConfirmed

	uc.logger.Infof("Restoring %s from folder %s...", request.Scope, request.FolderID)
	if err := uc.apply(ctx, request, artifactPath); err != nil {
		result.Err = err
		uc.logger.Errorf("Restore failed: %v", err)
		return result
	}
	result.Stage = domain.StageApplied
	uc.logger.Infof("Restore of %s from folder %s applied", request.Scope, request.FolderID)

	uc.postVerify(ctx, request, result)
	return result
}

func (uc *Restorer) resolve(ctx context.Context, source domain.Backend, folderID string) (string, error) {
	uc.logger.Infof("Resolving folder %s on %s...", folderID, source.Name())

	path, err := source.FetchFolder(ctx, folderID, uc.workDir)
	if err != nil {
		return "", &domain.TransferError{
			Backend:  source.Name(),
			Op:       "fetch",
			FolderID: folderID,
			Err:      err,
		}
	}
	return path, nil
}

// verify reports false when the restore must stop.
func (uc *Restorer) verify(localPath string, request domain.RestoreRequest, result *domain.RestoreResult) bool {
	corrupted, err := uc.VerifyFolder(localPath)
	if err != nil {
		result.Err = err
		return false
	}
	if len(corrupted) == 0 {
		return true
	}

	integrityErr := &domain.IntegrityError{FolderID: request.FolderID, Corrupted: corrupted}
	if request.Automated {
		result.Err = integrityErr
		return false
	}

	result.Warnings = append(result.Warnings, integrityErr.Error())
	uc.logger.Warnf("%v", integrityErr)
	if !uc.confirm(fmt.Sprintf("%d artifact(s) failed the integrity check. Continue anyway?", len(corrupted))) {
		result.Err = integrityErr
		return false
	}
	return true
}

// VerifyFolder returns the names of the artifacts that fail decompression.
func (uc *Restorer) VerifyFolder(folderPath string) ([]string, error) {
	entries, err := os.ReadDir(folderPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read folder %s: %w", folderPath, err)
	}

	var corrupted []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql.gz") {
			continue
		}

		path := filepath.Join(folderPath, entry.Name())
		if _, err := uc.compressor.Verify(path); err != nil {
			uc.logger.Errorf("Integrity check failed for %s: %v", entry.Name(), err)
			corrupted = append(corrupted, entry.Name())
		}
	}
	return corrupted, nil
}

func (uc *Restorer) apply(ctx context.Context, request domain.RestoreRequest, artifactPath string) error {
	switch request.Scope {
	case domain.ScopeCluster:
		return uc.engine.RestoreCluster(ctx, artifactPath)
	case domain.ScopeGlobals:
		return uc.engine.RestoreGlobals(ctx, artifactPath)
	case domain.ScopeDatabase:
		return uc.engine.RestoreDatabase(ctx, request.Database, artifactPath)
	default:
		return fmt.Errorf("unknown restore scope %d", request.Scope)
	}
}

// postVerify never invalidates an applied restore; failures are warnings.
func (uc *Restorer) postVerify(ctx context.Context, request domain.RestoreRequest, result *domain.RestoreResult) {
	var err error
	switch request.Scope {
	case domain.ScopeCluster:
		var databases []string
		if databases, err = uc.engine.ListDatabases(ctx); err == nil {
			uc.logger.Infof("Server now has %d user database(s)", len(databases))
		}
	case domain.ScopeGlobals:
		var roles []string
		if roles, err = uc.engine.ListRoles(ctx); err == nil {
			uc.logger.Infof("Server now has %d role(s)", len(roles))
		}
	case domain.ScopeDatabase:
		var tables []string
		if tables, err = uc.engine.ListTables(ctx, request.Database); err == nil {
			uc.logger.Infof("Database %q now has %d table(s)", request.Database, len(tables))
		}
	}

	if err != nil {
		warning := fmt.Sprintf("post-restore verification failed: %v", err)
		result.Warnings = append(result.Warnings, warning)
		uc.logger.Warnf("%s", warning)
		return
	}
	result.Stage = domain.StagePostVerified
}
