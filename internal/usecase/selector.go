package usecase

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/fierylion/pg-backups/internal/domain"
)

var (
	// ErrInvalidSelection reports menu input outside the offered numbers;
	// the caller re-prompts.
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrCancelled reports that the operator backed out of the current action.
	ErrCancelled = errors.New("cancelled")
)

type Selection struct {
	Request domain.RestoreRequest
	DryRun  bool
}

type Selector struct {
	catalog *Catalog
	in      *bufio.Reader
	out     io.Writer
	logger  Logger
}

func NewSelector(catalog *Catalog, in io.Reader, out io.Writer, logger Logger) *Selector {
	return &Selector{
		catalog: catalog,
		in:      bufio.NewReader(in),
		out:     out,
		logger:  logger,
	}
}

// SelectFolder presents the folders available on a source, newest first.
func (uc *Selector) SelectFolder(ctx context.Context, backend domain.Backend) (*domain.Folder, error) {
	folders, err := uc.catalog.Discover(ctx, backend)
	if err != nil {
		return nil, err
	}
	if len(folders) == 0 {
		return nil, fmt.Errorf("no backup folders found on %s", backend.Name())
	}

	fmt.Fprintf(uc.out, "\nBackups on %s:\n", backend.Name())
	for i, folder := range folders {
		fmt.Fprintf(uc.out, "  %d. %s\n", i+1, uc.describeFolder(folder))
	}
	fmt.Fprintf(uc.out, "  %d. Cancel\n", len(folders)+1)

	choice, err := uc.readIndex("Select a backup", len(folders)+1)
	if err != nil {
		return nil, err
	}
	if choice == len(folders)+1 {
		return nil, ErrCancelled
	}

	folder := folders[choice-1]
	if err := uc.catalog.Inspect(ctx, backend, folder); err != nil {
		return nil, err
	}
	return folder, nil
}

func (uc *Selector) describeFolder(folder *domain.Folder) string {
	if !folder.Inspected {
		return fmt.Sprintf("%s  (%s)", folder.ID, humanize.Time(folder.Time))
	}
	return fmt.Sprintf("%s  (%s, %s, %s)",
		folder.ID, humanize.Time(folder.Time),
		folder.Completeness, humanize.Bytes(uint64(folder.Size)))
}

// SelectScope presents what the chosen folder can restore. Picking dry-run
// asks for the scope a second time, describe-only.
func (uc *Selector) SelectScope(ctx context.Context, backend domain.Backend, folder *domain.Folder) (Selection, error) {
	if err := uc.catalog.Inspect(ctx, backend, folder); err != nil {
		return Selection{}, err
	}

	type option struct {
		label   string
		request domain.RestoreRequest
	}

	var options []option
	if _, ok := folder.FindArtifact(domain.ArtifactCluster, ""); ok {
		options = append(options, option{
			label: "Full cluster (all databases and roles)",
			request: domain.RestoreRequest{
				Source:   backend.Kind(),
				FolderID: folder.ID,
				Scope:    domain.ScopeCluster,
			},
		})
	}
	if _, ok := folder.FindArtifact(domain.ArtifactGlobals, ""); ok {
		options = append(options, option{
			label: "Globals only (roles and permissions)",
			request: domain.RestoreRequest{
				Source:   backend.Kind(),
				FolderID: folder.ID,
				Scope:    domain.ScopeGlobals,
			},
		})
	}
	for _, database := range folder.DatabaseNames() {
		options = append(options, option{
			label: fmt.Sprintf("Database %q", database),
			request: domain.RestoreRequest{
				Source:   backend.Kind(),
				FolderID: folder.ID,
				Scope:    domain.ScopeDatabase,
				Database: database,
			},
		})
	}
	if len(options) == 0 {
		return Selection{}, fmt.Errorf("folder %s has no restorable artifacts", folder.ID)
	}

	fmt.Fprintf(uc.out, "\nRestore options for %s:\n", folder.ID)
	for i, opt := range options {
		fmt.Fprintf(uc.out, "  %d. %s\n", i+1, opt.label)
	}
	dryRunIndex := len(options) + 1
	cancelIndex := len(options) + 2
	fmt.Fprintf(uc.out, "  %d. Dry-run (describe only)\n", dryRunIndex)
	fmt.Fprintf(uc.out, "  %d. Cancel\n", cancelIndex)

	choice, err := uc.readIndex("Select a restore option", cancelIndex)
	if err != nil {
		return Selection{}, err
	}
	switch choice {
	case cancelIndex:
		return Selection{}, ErrCancelled
	case dryRunIndex:
		pick, err := uc.readIndex(fmt.Sprintf("Dry-run which option (1-%d)", len(options)), len(options))
		if err != nil {
			return Selection{}, err
		}
		return Selection{Request: options[pick-1].request, DryRun: true}, nil
	default:
		return Selection{Request: options[choice-1].request}, nil
	}
}

// DryRun describes what applying the request would do.
func (uc *Selector) DryRun(folder *domain.Folder, request domain.RestoreRequest) {
	artifact, ok := folder.FindArtifact(request.ScopeArtifact().Kind, request.Database)
	if !ok {
		fmt.Fprintf(uc.out, "\nDry-run: artifact %s is missing from folder %s\n",
			request.ScopeArtifact().FileName(), folder.ID)
		return
	}

	fmt.Fprintf(uc.out, "\nDry-run for folder %s:\n", folder.ID)
	fmt.Fprintf(uc.out, "  Artifact:    %s (%s)\n", artifact.FileName(), humanize.Bytes(uint64(artifact.Size)))
	fmt.Fprintf(uc.out, "  Consequence: %s\n", restoreConsequence(request))
	fmt.Fprintf(uc.out, "  No changes were made.\n")
}

// readIndex reads one 1-based menu pick.
func (uc *Selector) readIndex(prompt string, max int) (int, error) {
	fmt.Fprintf(uc.out, "%s [1-%d]: ", prompt, max)

	line, err := uc.in.ReadString('\n')
	if err != nil && line == "" {
		return 0, fmt.Errorf("failed to read selection: %w", err)
	}

	choice, convErr := strconv.Atoi(strings.TrimSpace(line))
	if convErr != nil || choice < 1 || choice > max {
		return 0, fmt.Errorf("%w: %q is not between 1 and %d", ErrInvalidSelection, strings.TrimSpace(line), max)
	}
	return choice, nil
}

func restoreConsequence(request domain.RestoreRequest) string {
	switch request.Scope {
	case domain.ScopeCluster:
		return "replaces ALL databases and roles on the target server"
	case domain.ScopeGlobals:
		return "replaces roles and permissions only, database contents untouched"
	default:
		return fmt.Sprintf("drops and recreates database %q, then loads its dump", request.Database)
	}
}

// AutomatedRequest builds a restore request from the RESTORE_* parameters.
// ok is false when source, folder and type are not all present together;
// a present but unusable parameter set is an error, never a guess.
func AutomatedRequest(source, folderID, scope, database string) (domain.RestoreRequest, bool, error) {
	if source == "" || folderID == "" || scope == "" {
		return domain.RestoreRequest{}, false, nil
	}

	kind, ok := domain.ParseDestinationKind(source)
	if !ok {
		return domain.RestoreRequest{}, true, &domain.ConfigurationError{
			Subject: "restore",
			Reason:  fmt.Sprintf("unknown source %q, expected local, s3 or remote", source),
		}
	}

	parsedScope, ok := domain.ParseRestoreScope(scope)
	if !ok {
		return domain.RestoreRequest{}, true, &domain.ConfigurationError{
			Subject: "restore",
			Reason:  fmt.Sprintf("unknown type %q, expected cluster, globals or database", scope),
		}
	}

	if !domain.IsFolderName(folderID) {
		return domain.RestoreRequest{}, true, &domain.ConfigurationError{
			Subject: "restore",
			Reason:  fmt.Sprintf("folder %q is not a backup folder name", folderID),
		}
	}

	if parsedScope == domain.ScopeDatabase && database == "" {
		return domain.RestoreRequest{}, true, &domain.ConfigurationError{
			Subject: "restore",
			Reason:  "database type requires RESTORE_DATABASE",
		}
	}

	return domain.RestoreRequest{
		Source:    kind,
		FolderID:  folderID,
		Scope:     parsedScope,
		Database:  database,
		Automated: true,
	}, true, nil
}
