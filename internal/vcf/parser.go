package vcf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/pgzip"
)

// Reader reads raw lines from a plain, gzipped or BGZF-compressed VCF stream.
type Reader struct {
	reader     *bufio.Reader
	file       *os.File
	gzipReader *pgzip.Reader
	lineNumber int
}

// Open opens the VCF at path for line reading. Use "-" for stdin.
// Compression is detected from the gzip magic bytes, not the file name.
func Open(path string) (*Reader, error) {
	if path == "-" {
		return NewReader(os.Stdin)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vcf file: %w", err)
	}

	r, err := NewReader(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	r.file = file
	return r, nil
}

// NewReader creates a Reader from an io.Reader, transparently decompressing gzip input.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	p := &Reader{reader: br}

	// Check for gzip magic number (0x1f, 0x8b)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read vcf header: %w", err)
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		p.gzipReader, err = pgzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		p.reader = bufio.NewReader(p.gzipReader)
	}

	return p, nil
}

// Next reads the next line, stripping the line terminator.
// Returns io.EOF when there are no more lines.
func (p *Reader) Next() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil {
		if err != io.EOF {
			return "", fmt.Errorf("read line %d: %w", p.lineNumber+1, err)
		}
		if line == "" {
			return "", io.EOF
		}
	}
	p.lineNumber++
	return strings.TrimRight(line, "\r\n"), nil
}

// LineNumber returns the current line number being processed.
func (p *Reader) LineNumber() int {
	return p.lineNumber
}

// Close closes the reader and underlying file.
func (p *Reader) Close() error {
	if p.gzipReader != nil {
		p.gzipReader.Close()
	}
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}

// ParseError represents an error during VCF parsing with line context.
type ParseError struct {
	Line    int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vcf parse error at line %d: %s: %v", e.Line, e.Message, e.Err)
	}
	return fmt.Sprintf("vcf parse error at line %d: %s", e.Line, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
