package vcf

import (
	"errors"
	"testing"
)

func TestClassifyVariant(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		alt  string
		want VariantType
	}{
		{"A to G", "A", "G", SNV},
		{"G to C", "G", "C", SNV},
		{"deletion", "AT", "A", Indel},
		{"insertion", "A", "AT", Indel},
		{"MNV", "AT", "GC", Indel},
		{"multi-allelic", "A", "G,T", Indel},
		{"missing alt", "A", ".", SNV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyVariant(tt.ref, tt.alt); got != tt.want {
				t.Errorf("ClassifyVariant(%q, %q) = %v, want %v", tt.ref, tt.alt, got, tt.want)
			}
			r := &Record{Ref: tt.ref, Alt: tt.alt}
			if got := r.Type(); got != tt.want {
				t.Errorf("Type() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVariantType_String(t *testing.T) {
	if SNV.String() != "snv" {
		t.Errorf("SNV.String() = %q", SNV.String())
	}
	if Indel.String() != "indel" {
		t.Errorf("Indel.String() = %q", Indel.String())
	}
	if got := VariantType(7).String(); got != "VariantType(7)" {
		t.Errorf("unknown type String() = %q", got)
	}
}

func TestParseRecord_RoundTrip(t *testing.T) {
	line := "chr1\t000123\t.\tA\tG\t.\tPASS\tSOMATIC;QSS=50\tAU:CU:GU:TU\t10,10:0,0:0,0:0,0\t2,2:0,0:8,8:0,0"

	r, err := ParseRecord(7, line)
	if err != nil {
		t.Fatalf("ParseRecord: %v", err)
	}
	if r.Chrom != "chr1" || r.Pos != 123 || r.Ref != "A" || r.Alt != "G" {
		t.Errorf("unexpected fixed fields: %+v", r)
	}
	if r.Info != "SOMATIC;QSS=50" {
		t.Errorf("Info = %q", r.Info)
	}
	if got := r.FormatKeys(); len(got) != 4 || got[0] != "AU" || got[3] != "TU" {
		t.Errorf("FormatKeys() = %v", got)
	}
	if r.Normal != "10,10:0,0:0,0:0,0" || r.Tumor != "2,2:0,0:8,8:0,0" {
		t.Errorf("samples = %q / %q", r.Normal, r.Tumor)
	}

	// Leading zeros in POS survive serialization.
	if got := r.String(); got != line {
		t.Errorf("String() =\n%q\nwant\n%q", got, line)
	}
}

func TestParseRecord_NonNumericPos(t *testing.T) {
	line := "1\tabc\t.\tA\tG\t.\tPASS\t.\tTAR:TIR\t1,1:0,0\t1,1:0,0"
	r, err := ParseRecord(1, line)
	if err != nil {
		t.Fatalf("ParseRecord: %v", err)
	}
	if r.Pos != 0 {
		t.Errorf("Pos = %d, want 0", r.Pos)
	}
	if r.String() != line {
		t.Errorf("String() = %q", r.String())
	}
}

func TestRecord_StringWithoutRawPos(t *testing.T) {
	r := &Record{
		Chrom: "2", Pos: 42, ID: ".", Ref: "AT", Alt: "A", Qual: ".", Filter: "PASS",
		Info: ".", Format: "TAR:TIR", Normal: "5,5:0,0", Tumor: "0,0:3,3",
	}
	want := "2\t42\t.\tAT\tA\t.\tPASS\t.\tTAR:TIR\t5,5:0,0\t0,0:3,3"
	if got := r.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestParseRecord_ColumnCount(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"sites only", "1\t100\t.\tA\tG\t.\tPASS\t."},
		{"single sample", "1\t100\t.\tA\tG\t.\tPASS\t.\tAU\t1,1"},
		{"three samples", "1\t100\t.\tA\tG\t.\tPASS\t.\tAU\t1,1\t1,1\t1,1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRecord(12, tt.line)
			if err == nil {
				t.Fatal("expected error")
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *ParseError, got %T", err)
			}
			if pe.Line != 12 {
				t.Errorf("Line = %d, want 12", pe.Line)
			}
		})
	}
}
