// Package annotate derives tumor/normal read-support statistics for Strelka2
// records and writes them back into INFO and FORMAT.
package annotate

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/vibe-strelka/internal/vcf"
)

// INFO keys appended to every record, in output order.
var InfoKeys = []string{
	"TUMREF", "TUMALT", "NORMREF", "NORMALT",
	"TUMVAF", "TUMVAF_TOTAL",
	"TUMVARFRACTION", "LOG_FISHER", "LOG_FISHER_TOTAL",
}

// FORMAT keys added to both samples, in output order.
var FormatKeys = []string{"AD", "DPVAF", "DPVAF_TOTAL", "VAF", "VAF_TOTAL"}

// Result is one annotated record together with the values written into it.
type Result struct {
	Record *vcf.Record
	Type   vcf.VariantType
	Normal SampleCounts
	Tumor  SampleCounts
	Stats  Stats
}

// Annotator annotates Strelka2 somatic records with read-support statistics.
// It keeps no per-record state and is safe for concurrent use.
type Annotator struct {
	logger *zap.Logger
}

// NewAnnotator creates a new annotator.
func NewAnnotator() *Annotator {
	return &Annotator{
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for debug messages.
func (a *Annotator) SetLogger(l *zap.Logger) {
	a.logger = l
}

// Annotate computes counts and statistics for rec and returns an annotated copy.
// rec itself is not modified.
func (a *Annotator) Annotate(rec *vcf.Record) (*Result, error) {
	vt := rec.Type()
	formatKeys := rec.FormatKeys()

	normal, err := ExtractCounts(formatKeys, rec.Normal, rec.Ref, rec.Alt, vt)
	if err != nil {
		return nil, fmt.Errorf("normal sample: %w", err)
	}
	tumor, err := ExtractCounts(formatKeys, rec.Tumor, rec.Ref, rec.Alt, vt)
	if err != nil {
		return nil, fmt.Errorf("tumor sample: %w", err)
	}

	stats, err := ComputeStats(normal, tumor)
	if err != nil {
		return nil, err
	}
	if stats.LogFisher == MaxLogFisher || stats.LogFisherTotal == MaxLogFisher {
		a.logger.Debug("fisher p-value underflow, score saturated",
			zap.String("chrom", rec.Chrom),
			zap.Int64("pos", rec.Pos))
	}

	out := *rec
	out.Info = appendInfo(rec.Info, normal, tumor, stats)

	outKeys := extendFormat(formatKeys)
	out.Format = strings.Join(outKeys, ":")
	if out.Normal, err = extendSample(formatKeys, outKeys, rec.Normal, sampleValues(normal, stats.NormalVAF, stats.NormalVAFTotal)); err != nil {
		return nil, fmt.Errorf("normal sample: %w", err)
	}
	if out.Tumor, err = extendSample(formatKeys, outKeys, rec.Tumor, sampleValues(tumor, stats.TumorVAF, stats.TumorVAFTotal)); err != nil {
		return nil, fmt.Errorf("tumor sample: %w", err)
	}

	return &Result{
		Record: &out,
		Type:   vt,
		Normal: normal,
		Tumor:  tumor,
		Stats:  stats,
	}, nil
}

// AnnotateLine parses and annotates a single data line.
// Errors are returned as *vcf.ParseError carrying lineNum.
func (a *Annotator) AnnotateLine(lineNum int, line string) (string, *Result, error) {
	rec, err := vcf.ParseRecord(lineNum, line)
	if err != nil {
		return "", nil, err
	}
	res, err := a.Annotate(rec)
	if err != nil {
		return "", nil, &vcf.ParseError{
			Line:    lineNum,
			Message: fmt.Sprintf("annotate %s:%s", rec.Chrom, strconv.FormatInt(rec.Pos, 10)),
			Err:     err,
		}
	}
	return res.Record.String(), res, nil
}

// appendInfo appends the INFO annotations, dropping values left by an earlier run.
func appendInfo(info string, normal, tumor SampleCounts, s Stats) string {
	values := []string{
		strconv.Itoa(tumor.Ref),
		strconv.Itoa(tumor.Alt),
		strconv.Itoa(normal.Ref),
		strconv.Itoa(normal.Alt),
		FormatStat(s.TumorVAF),
		FormatStat(s.TumorVAFTotal),
		FormatStat(s.TumorVarFraction),
		FormatStat(s.LogFisher),
		FormatStat(s.LogFisherTotal),
	}

	fields := keptInfoFields(info)
	for i, key := range InfoKeys {
		fields = append(fields, key+"="+values[i])
	}
	return strings.Join(fields, ";")
}

// keptInfoFields splits a raw INFO string into the fields to keep, dropping
// any of InfoKeys. Other fields, empty ones included, keep their bytes and order.
// A missing INFO (".") has no fields.
func keptInfoFields(info string) []string {
	if info == "" || info == "." {
		return nil
	}

	// Fast path: nothing from a previous run
	if !strings.Contains(info, "TUM") && !strings.Contains(info, "NORM") && !strings.Contains(info, "LOG_FISHER") {
		return []string{info}
	}

	fields := strings.Split(info, ";")
	kept := fields[:0]
	for _, field := range fields {
		key, _, _ := strings.Cut(field, "=")
		if !isInfoKey(key) {
			kept = append(kept, field)
		}
	}
	return kept
}

func isInfoKey(key string) bool {
	for _, k := range InfoKeys {
		if k == key {
			return true
		}
	}
	return false
}

// extendFormat appends the FORMAT keys that are not already present.
func extendFormat(keys []string) []string {
	out := make([]string, len(keys), len(keys)+len(FormatKeys))
	copy(out, keys)
	for _, tag := range FormatKeys {
		if indexOf(out, tag) < 0 {
			out = append(out, tag)
		}
	}
	return out
}

// sampleValues renders the per-sample FORMAT values in FormatKeys order.
func sampleValues(c SampleCounts, vaf, vafTotal float64) []string {
	return []string{
		strconv.Itoa(c.Ref) + "," + strconv.Itoa(c.Alt),
		strconv.Itoa(c.Depth()),
		strconv.Itoa(c.Total),
		FormatStat(vaf),
		FormatStat(vafTotal),
	}
}

// extendSample writes values into a sample column laid out by outKeys.
// Keys already in the input FORMAT are overwritten in place, new keys are
// appended, and a sample shorter than its FORMAT is padded with ".".
func extendSample(inKeys, outKeys []string, sample string, values []string) (string, error) {
	fields := strings.Split(sample, ":")
	if len(fields) > len(inKeys) {
		return "", fmt.Errorf("sample has %d values for %d FORMAT keys", len(fields), len(inKeys))
	}
	for len(fields) < len(inKeys) {
		fields = append(fields, ".")
	}

	for i, tag := range FormatKeys {
		idx := indexOf(outKeys, tag)
		if idx < len(fields) {
			fields[idx] = values[i]
		} else {
			fields = append(fields, values[i])
		}
	}
	return strings.Join(fields, ":"), nil
}

func indexOf(keys []string, key string) int {
	for i, k := range keys {
		if k == key {
			return i
		}
	}
	return -1
}
