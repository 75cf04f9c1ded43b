package vcf

import (
	"fmt"
	"strconv"
	"strings"
)

// NumColumns is the column count of a tumor/normal VCF data line:
// the eight fixed columns, FORMAT, then the normal and tumor samples.
const NumColumns = 11

// VariantType classifies a record for read-count extraction.
type VariantType int

const (
	// SNV is a single-nucleotide variant: REF and ALT are both one base.
	SNV VariantType = iota
	// Indel is everything else (insertions, deletions, MNVs, multi-allelic ALT).
	Indel
)

func (t VariantType) String() string {
	switch t {
	case SNV:
		return "snv"
	case Indel:
		return "indel"
	default:
		return fmt.Sprintf("VariantType(%d)", int(t))
	}
}

// ClassifyVariant returns SNV when both alleles are exactly one character long.
func ClassifyVariant(ref, alt string) VariantType {
	if len(ref) == 1 && len(alt) == 1 {
		return SNV
	}
	return Indel
}

// Record represents a single tumor/normal VCF data line.
// All columns are kept as raw text so untouched fields round-trip byte for byte.
type Record struct {
	Chrom  string // Chromosome name (e.g., "12", "chr12")
	Pos    int64  // 1-based genomic position, 0 if POS is not numeric
	ID     string // Variant identifier
	Ref    string // Reference allele
	Alt    string // Alternate allele(s)
	Qual   string // Quality, as written
	Filter string // Filter status (PASS or filter names)
	Info   string // Raw INFO column
	Format string // Colon-delimited FORMAT keys
	Normal string // Normal sample values
	Tumor  string // Tumor sample values

	rawPos string
}

// ParseRecord splits a data line into a Record.
// lineNum is only used for error context.
func ParseRecord(lineNum int, line string) (*Record, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != NumColumns {
		return nil, &ParseError{
			Line:    lineNum,
			Message: fmt.Sprintf("expected %d columns, found %d", NumColumns, len(fields)),
		}
	}

	// POS is not validated; a non-numeric value is carried through untouched.
	pos, _ := strconv.ParseInt(fields[1], 10, 64)

	return &Record{
		Chrom:  fields[0],
		Pos:    pos,
		rawPos: fields[1],
		ID:     fields[2],
		Ref:    fields[3],
		Alt:    fields[4],
		Qual:   fields[5],
		Filter: fields[6],
		Info:   fields[7],
		Format: fields[8],
		Normal: fields[9],
		Tumor:  fields[10],
	}, nil
}

// Type returns the record's variant type.
func (r *Record) Type() VariantType {
	return ClassifyVariant(r.Ref, r.Alt)
}

// FormatKeys returns the FORMAT column split into its keys.
func (r *Record) FormatKeys() []string {
	return strings.Split(r.Format, ":")
}

// String reassembles the tab-delimited data line, without a trailing newline.
func (r *Record) String() string {
	pos := r.rawPos
	if pos == "" {
		pos = strconv.FormatInt(r.Pos, 10)
	}

	var b strings.Builder
	b.Grow(len(r.Chrom) + len(pos) + len(r.ID) + len(r.Ref) + len(r.Alt) + len(r.Qual) +
		len(r.Filter) + len(r.Info) + len(r.Format) + len(r.Normal) + len(r.Tumor) + NumColumns)
	for i, f := range [NumColumns]string{
		r.Chrom, pos, r.ID, r.Ref, r.Alt, r.Qual, r.Filter, r.Info, r.Format, r.Normal, r.Tumor,
	} {
		if i > 0 {
			b.WriteByte('\t')
		}
		b.WriteString(f)
	}
	return b.String()
}
