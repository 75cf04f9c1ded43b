// Package vcf provides VCF line reading, record parsing and output helpers.
package vcf

// LineReader is the interface for readers that yield raw VCF lines.
type LineReader interface {
	// Next returns the next line without its trailing newline.
	// Returns io.EOF when there are no more lines.
	Next() (string, error)

	// Close closes the reader and releases resources.
	Close() error

	// LineNumber returns the number of the line last returned by Next.
	LineNumber() int
}
