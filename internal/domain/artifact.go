package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// FolderLayout is the timestamp layout used for backup folder names.
// Lexicographic order equals chronological order.
const FolderLayout = "20060102_150405"

const (
	clusterFileName = "postgres_cluster.sql.gz"
	globalsFileName = "postgres_globals.sql.gz"
	dbFilePrefix    = "postgres_db_"
	dbFileSuffix    = ".sql.gz"
)

// FolderName formats the cycle-start instant in the host's local timezone.
func FolderName(t time.Time) string {
	return t.Format(FolderLayout)
}

// ParseFolderTime is strict: the name must be exactly YYYYMMDD_HHMMSS with
// calendar-valid components.
func ParseFolderTime(id string) (time.Time, error) {
	if len(id) != len(FolderLayout) {
		return time.Time{}, fmt.Errorf("invalid folder name %q: expected %d characters", id, len(FolderLayout))
	}
	t, err := time.ParseInLocation(FolderLayout, id, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid folder name %q: %w", id, err)
	}
	if t.Format(FolderLayout) != id {
		return time.Time{}, fmt.Errorf("invalid folder name %q", id)
	}
	return t, nil
}

func IsFolderName(id string) bool {
	_, err := ParseFolderTime(id)
	return err == nil
}

type ArtifactKind int

const (
	ArtifactCluster ArtifactKind = iota
	ArtifactGlobals
	ArtifactDatabase
)

func (k ArtifactKind) String() string {
	switch k {
	case ArtifactCluster:
		return "cluster"
	case ArtifactGlobals:
		return "globals"
	case ArtifactDatabase:
		return "database"
	default:
		return "unknown"
	}
}

type Artifact struct {
	Kind     ArtifactKind
	Database string // set only for ArtifactDatabase
	Size     int64
}

// Database names are used literally; names containing path separators must
// be rejected upstream.
func (a Artifact) FileName() string {
	return ArtifactFileName(a.Kind, a.Database)
}

func ArtifactFileName(kind ArtifactKind, database string) string {
	switch kind {
	case ArtifactCluster:
		return clusterFileName
	case ArtifactGlobals:
		return globalsFileName
	default:
		return dbFilePrefix + database + dbFileSuffix
	}
}

func ParseDatabaseName(fileName string) (string, bool) {
	if !strings.HasPrefix(fileName, dbFilePrefix) || !strings.HasSuffix(fileName, dbFileSuffix) {
		return "", false
	}
	name := strings.TrimSuffix(strings.TrimPrefix(fileName, dbFilePrefix), dbFileSuffix)
	if name == "" {
		return "", false
	}
	return name, true
}

func ParseArtifact(fileName string, size int64) (Artifact, bool) {
	switch fileName {
	case clusterFileName:
		return Artifact{Kind: ArtifactCluster, Size: size}, true
	case globalsFileName:
		return Artifact{Kind: ArtifactGlobals, Size: size}, true
	}
	if name, ok := ParseDatabaseName(fileName); ok {
		return Artifact{Kind: ArtifactDatabase, Database: name, Size: size}, true
	}
	return Artifact{}, false
}

type Completeness int

const (
	CompletenessUnknown Completeness = iota
	CompletenessEmpty
	// CompletenessComplete: cluster and globals dumps both present.
	CompletenessComplete
	// CompletenessPartial: cluster dump present, globals missing.
	CompletenessPartial
	// CompletenessIncomplete: anything else (database or globals dumps only).
	CompletenessIncomplete
)

func (c Completeness) String() string {
	switch c {
	case CompletenessEmpty:
		return "empty"
	case CompletenessComplete:
		return "complete"
	case CompletenessPartial:
		return "partial"
	case CompletenessIncomplete:
		return "incomplete"
	default:
		return "unknown"
	}
}

func Classify(artifacts []Artifact) Completeness {
	if len(artifacts) == 0 {
		return CompletenessEmpty
	}
	var hasCluster, hasGlobals bool
	for _, a := range artifacts {
		switch a.Kind {
		case ArtifactCluster:
			hasCluster = true
		case ArtifactGlobals:
			hasGlobals = true
		}
	}
	switch {
	case hasCluster && hasGlobals:
		return CompletenessComplete
	case hasCluster:
		return CompletenessPartial
	default:
		return CompletenessIncomplete
	}
}

// Artifacts, Size and Completeness are filled by inspection.
type Folder struct {
	ID           string
	Time         time.Time
	Artifacts    []Artifact
	Size         int64
	Completeness Completeness
	Inspected    bool
}

func (f *Folder) SetArtifacts(artifacts []Artifact) {
	f.Artifacts = artifacts
	f.Size = 0
	for _, a := range artifacts {
		f.Size += a.Size
	}
	f.Completeness = Classify(artifacts)
	f.Inspected = true
}

func (f *Folder) FindArtifact(kind ArtifactKind, database string) (Artifact, bool) {
	for _, a := range f.Artifacts {
		if a.Kind != kind {
			continue
		}
		if kind == ArtifactDatabase && a.Database != database {
			continue
		}
		return a, true
	}
	return Artifact{}, false
}

func (f *Folder) DatabaseNames() []string {
	var names []string
	for _, a := range f.Artifacts {
		if a.Kind == ArtifactDatabase {
			names = append(names, a.Database)
		}
	}
	sort.Strings(names)
	return names
}

func (f *Folder) Age(now time.Time) time.Duration {
	return now.Sub(f.Time)
}
