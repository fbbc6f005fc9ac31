package domain

// RestoreScope selects what a restore applies to the target server.
type RestoreScope int

const (
	ScopeCluster RestoreScope = iota
	ScopeGlobals
	ScopeDatabase
)

func (s RestoreScope) String() string {
	switch s {
	case ScopeCluster:
		return "cluster"
	case ScopeGlobals:
		return "globals"
	case ScopeDatabase:
		return "database"
	default:
		return "unknown"
	}
}

func ParseRestoreScope(s string) (RestoreScope, bool) {
	switch s {
	case "cluster":
		return ScopeCluster, true
	case "globals":
		return ScopeGlobals, true
	case "database":
		return ScopeDatabase, true
	default:
		return 0, false
	}
}

func ParseDestinationKind(s string) (DestinationKind, bool) {
	switch s {
	case "local":
		return DestinationLocal, true
	case "s3":
		return DestinationS3, true
	case "remote":
		return DestinationRemote, true
	default:
		return "", false
	}
}

type RestoreRequest struct {
	Source   DestinationKind
	FolderID string
	Scope    RestoreScope
	Database string // required when Scope is ScopeDatabase
	// Automated skips the confirmation gate and makes integrity failures
	// fatal instead of overridable.
	Automated bool
}

func (r RestoreRequest) ScopeArtifact() Artifact {
	switch r.Scope {
	case ScopeCluster:
		return Artifact{Kind: ArtifactCluster}
	case ScopeGlobals:
		return Artifact{Kind: ArtifactGlobals}
	default:
		return Artifact{Kind: ArtifactDatabase, Database: r.Database}
	}
}

// RestoreStage tracks progress through a restore. A restore advances one
// stage at a time and stops at the first failure.
type RestoreStage int

const (
	StageRequested RestoreStage = iota
	StageResolved
	StageVerified
	StageConfirmed
	StageApplied
	StagePostVerified
)

func (s RestoreStage) String() string {
	switch s {
	case StageRequested:
		return "requested"
	case StageResolved:
		return "resolved"
	case StageVerified:
		return "verified"
	case StageConfirmed:
		return "confirmed"
	case StageApplied:
		return "applied"
	case StagePostVerified:
		return "post-verified"
	default:
		return "unknown"
	}
}

type RestoreResult struct {
	Request   RestoreRequest
	Stage     RestoreStage
	LocalPath string
	Warnings  []string
	Err       error
}

// Succeeded reports whether the restore was applied to the server.
func (r *RestoreResult) Succeeded() bool {
	return r.Err == nil && r.Stage >= StageApplied
}
