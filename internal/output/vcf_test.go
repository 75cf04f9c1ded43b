package output

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/inodb/vibe-strelka/internal/annotate"
	"github.com/inodb/vibe-strelka/internal/vcf"
)

const (
	chromLine = "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tNORMAL\tTUMOR"
	snvRecord = "1\t100\t.\tA\tG\t.\tPASS\tSOMATIC\tAU:CU:GU:TU\t10,10:0,0:0,0:0,0\t2,2:0,0:8,8:0,0"
	indelRec  = "1\t200\t.\tAT\tA\t.\tPASS\tSOMATIC\tTAR:TIR\t5,5:0,0\t0,0:3,3"
)

var strelkaHeader = []string{
	"##fileformat=VCFv4.1",
	"##source=strelka",
	"##INFO=<ID=SOMATIC,Number=0,Type=Flag,Description=\"Somatic mutation\">",
	"##FORMAT=<ID=AU,Number=2,Type=Integer,Description=\"Number of 'A' alleles used in tiers 1,2\">",
	chromLine,
}

func vcfText(records ...string) string {
	return strings.Join(strelkaHeader, "\n") + "\n" + strings.Join(records, "\n") + "\n"
}

func rewrite(t *testing.T, rw *Rewriter, buf *bytes.Buffer, input string) error {
	t.Helper()
	r, err := vcf.NewReader(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	buf.Reset()
	return rw.Rewrite(context.Background(), r)
}

func TestRewriter_Header(t *testing.T) {
	var buf bytes.Buffer
	rw := NewRewriter(annotate.NewAnnotator(), &buf)
	if err := rewrite(t, rw, &buf, vcfText()); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != len(strelkaHeader)+14 {
		t.Fatalf("expected %d header lines, got %d", len(strelkaHeader)+14, len(lines))
	}

	// Original ## lines preserved, in order
	for i := 0; i < 4; i++ {
		if lines[i] != strelkaHeader[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], strelkaHeader[i])
		}
	}

	// Extension block directly before #CHROM: nine INFO lines, then five FORMAT lines
	block := lines[4:18]
	for i, line := range block {
		prefix := "##INFO=<ID="
		if i >= 9 {
			prefix = "##FORMAT=<ID="
		}
		if !strings.HasPrefix(line, prefix) {
			t.Errorf("block line %d = %q, want prefix %s", i, line, prefix)
		}
	}
	if !strings.HasPrefix(block[0], "##INFO=<ID=TUMREF,") {
		t.Errorf("first extension line = %q", block[0])
	}
	if !strings.HasPrefix(block[13], "##FORMAT=<ID=VAF_TOTAL,") {
		t.Errorf("last extension line = %q", block[13])
	}
	if lines[18] != chromLine {
		t.Errorf("#CHROM line = %q", lines[18])
	}

	s := rw.Summary()
	if s.HeaderLines != 19 || s.Records != 0 {
		t.Errorf("summary = %+v", s)
	}
}

func TestRewriter_Records(t *testing.T) {
	var buf bytes.Buffer
	rw := NewRewriter(annotate.NewAnnotator(), &buf)
	if err := rewrite(t, rw, &buf, vcfText(snvRecord, "", indelRec)); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	data := lines[19:]
	if len(data) != 2 {
		t.Fatalf("expected 2 data lines, got %d", len(data))
	}

	snv := strings.Split(data[0], "\t")
	if len(snv) != vcf.NumColumns {
		t.Fatalf("expected %d columns, got %d", vcf.NumColumns, len(snv))
	}
	if !strings.HasPrefix(snv[7], "SOMATIC;TUMREF=2;TUMALT=8;NORMREF=10;NORMALT=0;TUMVAF=0.8000;TUMVAF_TOTAL=0.8000;") {
		t.Errorf("INFO = %q", snv[7])
	}
	if snv[8] != "AU:CU:GU:TU:AD:DPVAF:DPVAF_TOTAL:VAF:VAF_TOTAL" {
		t.Errorf("FORMAT = %q", snv[8])
	}

	indel := strings.Split(data[1], "\t")
	if !strings.Contains(indel[7], "TUMVARFRACTION=1.0000") {
		t.Errorf("INFO = %q", indel[7])
	}

	s := rw.Summary()
	if s.Records != 2 || s.SNVs != 1 || s.Indels != 1 {
		t.Errorf("summary = %+v", s)
	}
}

func TestRewriter_RerunIsStable(t *testing.T) {
	var first, second bytes.Buffer
	rw := NewRewriter(annotate.NewAnnotator(), &first)
	if err := rewrite(t, rw, &first, vcfText(snvRecord, indelRec)); err != nil {
		t.Fatal(err)
	}

	rw2 := NewRewriter(annotate.NewAnnotator(), &second)
	if err := rewrite(t, rw2, &second, first.String()); err != nil {
		t.Fatal(err)
	}

	if first.String() != second.String() {
		t.Errorf("re-annotation changed output:\n%s\nvs\n%s", first.String(), second.String())
	}
	if rw2.Summary().Dropped != 14 {
		t.Errorf("Dropped = %d, want 14", rw2.Summary().Dropped)
	}
}

func TestRewriter_NoChromLine(t *testing.T) {
	var buf bytes.Buffer
	rw := NewRewriter(annotate.NewAnnotator(), &buf)

	err := rewrite(t, rw, &buf, "##fileformat=VCFv4.1\n")
	var pe *vcf.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *vcf.ParseError, got %v", err)
	}
	if !strings.Contains(pe.Message, "no #CHROM") {
		t.Errorf("message = %q", pe.Message)
	}
}

func TestRewriter_DataBeforeChromLine(t *testing.T) {
	var buf bytes.Buffer
	rw := NewRewriter(annotate.NewAnnotator(), &buf)

	err := rewrite(t, rw, &buf, "##fileformat=VCFv4.1\n"+snvRecord+"\n")
	var pe *vcf.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *vcf.ParseError, got %v", err)
	}
	if pe.Line != 2 {
		t.Errorf("Line = %d, want 2", pe.Line)
	}
}

func TestRewriter_MalformedRecord(t *testing.T) {
	bad := "1\t300\t.\tA\tG\t.\tPASS\t.\tAU:GU\tnope:1,1\t1,1:1,1"
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			var buf bytes.Buffer
			rw := NewRewriter(annotate.NewAnnotator(), &buf)
			rw.SetWorkers(workers)

			err := rewrite(t, rw, &buf, vcfText(snvRecord, bad, indelRec))
			if err == nil {
				t.Fatal("expected error")
			}
			if !IsMalformed(err) {
				t.Errorf("IsMalformed(%v) = false", err)
			}
			var pe *vcf.ParseError
			errors.As(err, &pe)
			if pe.Line != 7 {
				t.Errorf("Line = %d, want 7", pe.Line)
			}
		})
	}
}

func TestRewriter_ParallelMatchesSequential(t *testing.T) {
	var records []string
	for i := range 500 {
		if i%3 == 0 {
			records = append(records, fmt.Sprintf("2\t%d\t.\tAT\tA\t.\tPASS\t.\tTAR:TIR\t%d,%d:%d,%d\t%d,1:%d,1", i+1, i, i, i%4, i%4, i%7, i%11))
		} else {
			records = append(records, fmt.Sprintf("2\t%d\t.\tC\tT\t.\tPASS\t.\tAU:CU:GU:TU\t0,0:%d,0:0,0:%d,0\t1,0:%d,0:0,0:%d,0", i+1, i, i%5, i%9, i%13))
		}
	}
	input := vcfText(records...)

	var seq, par bytes.Buffer
	if err := rewrite(t, NewRewriter(annotate.NewAnnotator(), &seq), &seq, input); err != nil {
		t.Fatal(err)
	}
	rw := NewRewriter(annotate.NewAnnotator(), &par)
	rw.SetWorkers(8)
	if err := rewrite(t, rw, &par, input); err != nil {
		t.Fatal(err)
	}

	if seq.String() != par.String() {
		t.Error("parallel output differs from sequential output")
	}
	if rw.Summary().Records != 500 {
		t.Errorf("Records = %d, want 500", rw.Summary().Records)
	}
}

type memSink struct {
	batches [][]*annotate.Result
	fail    error
}

func (m *memSink) WriteResults(results []*annotate.Result) error {
	if m.fail != nil {
		return m.fail
	}
	m.batches = append(m.batches, append([]*annotate.Result(nil), results...))
	return nil
}

func TestRewriter_StatsSink(t *testing.T) {
	var buf bytes.Buffer
	sink := &memSink{}
	rw := NewRewriter(annotate.NewAnnotator(), &buf)
	rw.SetStatsSink(sink, 2)

	if err := rewrite(t, rw, &buf, vcfText(snvRecord, indelRec, snvRecord)); err != nil {
		t.Fatal(err)
	}

	if len(sink.batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(sink.batches))
	}
	if len(sink.batches[0]) != 2 || len(sink.batches[1]) != 1 {
		t.Errorf("batch sizes = %d, %d", len(sink.batches[0]), len(sink.batches[1]))
	}
	if got := sink.batches[0][1].Tumor.Alt; got != 3 {
		t.Errorf("indel tumor alt = %d, want 3", got)
	}
}

func TestRewriter_StatsSinkError(t *testing.T) {
	var buf bytes.Buffer
	rw := NewRewriter(annotate.NewAnnotator(), &buf)
	rw.SetStatsSink(&memSink{fail: errors.New("disk full")}, 0)

	err := rewrite(t, rw, &buf, vcfText(snvRecord))
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("expected sink error, got %v", err)
	}
}

func TestRewriter_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	r, _ := vcf.NewReader(strings.NewReader(vcfText(snvRecord)))
	err := NewRewriter(annotate.NewAnnotator(), &buf).Rewrite(ctx, r)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestIsExtensionDefinition(t *testing.T) {
	tests := map[string]bool{
		`##INFO=<ID=TUMREF,Number=1,Type=Integer,Description="x">`:  true,
		`##INFO=<ID=TUMREFX,Number=1,Type=Integer,Description="x">`: false,
		`##FORMAT=<ID=VAF,Number=A,Type=Float,Description="x">`:     true,
		`##FORMAT=<ID=VAF_TOTAL,Number=A,Type=Float,Description="">`: true,
		`##INFO=<ID=VAF,Number=A,Type=Float,Description="x">`:       false,
		`##FORMAT=<ID=AU,Number=2,Type=Integer,Description="x">`:    false,
		`##source=strelka`: false,
	}
	for line, want := range tests {
		if got := isExtensionDefinition(line); got != want {
			t.Errorf("isExtensionDefinition(%q) = %v, want %v", line, got, want)
		}
	}
}
