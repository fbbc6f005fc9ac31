package domain

import (
	"context"
	"sort"
)

// DestinationKind identifies where a backend keeps its folders.
type DestinationKind string

const (
	DestinationLocal  DestinationKind = "local"
	DestinationS3     DestinationKind = "s3"
	DestinationRemote DestinationKind = "remote"
)

// Backend is a replication destination for backup folders. Folders are the
// unit of transfer: a folder is pushed, fetched or deleted whole.
type Backend interface {
	Kind() DestinationKind
	Name() string
	// ListFolders returns the ids of valid backup folders, newest first.
	// Entries that do not parse as folder names are ignored.
	ListFolders(ctx context.Context) ([]string, error)
	ListArtifacts(ctx context.Context, folderID string) ([]Artifact, error)
	PushFolder(ctx context.Context, localPath string, folderID string) error
	// FetchFolder makes a folder available locally and returns its path.
	FetchFolder(ctx context.Context, folderID string, destRoot string) (string, error)
	DeleteFolder(ctx context.Context, folderID string) error
	IsReachable(ctx context.Context) bool
	RetentionDays() int
}

// SortFolderIDs sorts folder ids newest first in place.
func SortFolderIDs(ids []string) {
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
}

func LatestFolderID(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	latest := ids[0]
	for _, id := range ids[1:] {
		if id > latest {
			latest = id
		}
	}
	return latest
}
