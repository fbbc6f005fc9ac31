package compressor

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fierylion/pg-backups/internal/domain"
)

// GzipCompressor streams dump data through a gzip encoding. Create stages
// the artifact in a temporary file and renames it into place on Commit.
type GzipCompressor struct{}

var _ domain.Compressor = (*GzipCompressor)(nil)

func NewGzip() *GzipCompressor {
	return &GzipCompressor{}
}

func (g *GzipCompressor) Create(path string) (domain.ArtifactWriter, error) {
	// the temp file must share the final path's filesystem for the rename
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.sql.gz")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	gzipWriter, err := gzip.NewWriterLevel(tmp, gzip.BestCompression)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}

	return &artifactWriter{
		gzip:  gzipWriter,
		file:  tmp,
		final: path,
	}, nil
}

func (g *GzipCompressor) Open(path string) (io.ReadCloser, error) {
	sourceFile, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}

	gzipReader, err := gzip.NewReader(sourceFile)
	if err != nil {
		sourceFile.Close()
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}

	return &artifactReader{gzip: gzipReader, file: sourceFile}, nil
}

// Verify decompresses the whole file, discarding the output; the gzip
// trailer CRC catches truncation and corruption.
func (g *GzipCompressor) Verify(path string) (int64, error) {
	r, err := g.Open(path)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return n, fmt.Errorf("failed to verify: %w", err)
	}
	return n, nil
}

type artifactWriter struct {
	gzip *gzip.Writer
	file *os.File
	// final is the destination path; emptied once the writer is finished.
	final string
}

func (w *artifactWriter) Write(p []byte) (int, error) {
	return w.gzip.Write(p)
}

func (w *artifactWriter) Commit() error {
	if w.final == "" {
		return fmt.Errorf("artifact writer already finished")
	}
	final := w.final
	w.final = ""

	if err := w.gzip.Close(); err != nil {
		w.file.Close()
		os.Remove(w.file.Name())
		return fmt.Errorf("failed to finalize gzip stream: %w", err)
	}
	if err := w.file.Close(); err != nil {
		os.Remove(w.file.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(w.file.Name(), final); err != nil {
		os.Remove(w.file.Name())
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return nil
}

func (w *artifactWriter) Abort() error {
	if w.final == "" {
		return nil
	}
	w.final = ""
	w.gzip.Close()
	w.file.Close()
	return os.Remove(w.file.Name())
}

type artifactReader struct {
	gzip *gzip.Reader
	file *os.File
}

func (r *artifactReader) Read(p []byte) (int, error) {
	return r.gzip.Read(p)
}

func (r *artifactReader) Close() error {
	gzErr := r.gzip.Close()
	fileErr := r.file.Close()
	if gzErr != nil {
		return gzErr
	}
	return fileErr
}
