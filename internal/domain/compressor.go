package domain

import "io"

// ArtifactWriter receives one dump stream. The artifact appears under its
// final name only on Commit; Abort discards everything written so far and
// is a no-op after a successful Commit.
type ArtifactWriter interface {
	io.Writer
	Commit() error
	Abort() error
}

// Compressor wraps the compressed artifact encoding.
type Compressor interface {
	Create(path string) (ArtifactWriter, error)
	Open(path string) (io.ReadCloser, error)
	// Verify reads the whole file and reports the uncompressed size.
	Verify(path string) (int64, error)
}
