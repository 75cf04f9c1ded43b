package vcf

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/biogo/hts/bgzf"
)

// Writer is an output VCF stream. Close flushes compression state and closes the file.
type Writer struct {
	io.Writer
	bgzf *bgzf.Writer
	file *os.File
}

// Create opens path for writing. Paths ending in ".gz" are BGZF-compressed so the
// result can be indexed; "-" writes plain text to stdout.
func Create(path string) (*Writer, error) {
	if path == "-" {
		return &Writer{Writer: os.Stdout}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}

	w := &Writer{Writer: f, file: f}
	if IsCompressedPath(path) {
		w.bgzf = bgzf.NewWriter(f, runtime.GOMAXPROCS(0))
		w.Writer = w.bgzf
	}
	return w, nil
}

// Close writes the BGZF EOF block, if any, and closes the underlying file.
func (w *Writer) Close() error {
	var err error
	if w.bgzf != nil {
		if cerr := w.bgzf.Close(); cerr != nil {
			err = fmt.Errorf("close bgzf stream: %w", cerr)
		}
	}
	if w.file != nil {
		if cerr := w.file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output file: %w", cerr)
		}
	}
	return err
}

// IsCompressedPath reports whether path names a gzip/BGZF file.
func IsCompressedPath(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".gz") || strings.HasSuffix(lower, ".bgz")
}
