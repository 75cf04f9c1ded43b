package duckdb

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-strelka/internal/annotate"
	"github.com/inodb/vibe-strelka/internal/vcf"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func annotateLines(t *testing.T, lines ...string) []*annotate.Result {
	t.Helper()
	ann := annotate.NewAnnotator()
	var out []*annotate.Result
	for i, line := range lines {
		_, res, err := ann.AnnotateLine(i+1, line)
		require.NoError(t, err)
		out = append(out, res)
	}
	return out
}

const (
	snv   = "1\t100\t.\tA\tG\t.\tPASS\tSOMATIC\tAU:CU:GU:TU\t10,10:0,0:0,0:0,0\t2,2:0,0:8,8:0,0"
	indel = "2\t200\t.\tAT\tA\t.\tLowEVS\tSOMATIC\tTAR:TIR\t5,5:0,0\t0,0:3,3"
	noise = "3\t300\t.\tC\tT\t.\tPASS\tSOMATIC\tAU:CU:GU:TU\t0,0:10,10:0,0:1,1\t0,0:10,10:0,0:1,1"
)

func TestOpenClose(t *testing.T) {
	s := openInMemory(t)
	assert.Equal(t, "", s.Path())
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "stats.duckdb")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestWriteAndLookup(t *testing.T) {
	s := openInMemory(t)

	runID, err := s.BeginRun(FileFingerprint{Path: "in.vcf.gz", Size: 10, ModTime: time.Unix(1700000000, 0)})
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	require.NoError(t, s.Sink(runID).WriteResults(annotateLines(t, snv, indel, noise)))

	n, err := s.CountStats(runID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rows, err := s.LookupVariant("2", 200, "AT", "A")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, runID, r.RunID)
	assert.Equal(t, "LowEVS", r.Filter)
	assert.Equal(t, "indel", r.VariantType)
	assert.Equal(t, annotate.SampleCounts{Ref: 0, Alt: 3, Total: 3}, r.Tumor)
	assert.Equal(t, annotate.SampleCounts{Ref: 5, Alt: 0, Total: 5}, r.Normal)
	assert.Equal(t, 1.0, r.Stats.TumorVarFraction)
	assert.InDelta(t, 1.7482, r.Stats.LogFisher, 1e-4)

	rows, err = s.LookupVariant("2", 999, "AT", "A")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSearchSignificant(t *testing.T) {
	s := openInMemory(t)
	runID, err := s.BeginRun(FileFingerprint{Path: "-"})
	require.NoError(t, err)
	require.NoError(t, s.WriteResults(runID, annotateLines(t, indel, snv, noise)))

	rows, err := s.SearchSignificant(runID, 1.3)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	// SNV (3.146) ranks above the indel (1.748); the noise record (p=1) is excluded.
	assert.Equal(t, vcf.SNV.String(), rows[0].VariantType)
	assert.Equal(t, int64(100), rows[0].Pos)
	assert.Equal(t, int64(200), rows[1].Pos)
}

func TestClearRun(t *testing.T) {
	s := openInMemory(t)

	keep, err := s.BeginRun(FileFingerprint{Path: "a.vcf"})
	require.NoError(t, err)
	drop, err := s.BeginRun(FileFingerprint{Path: "b.vcf"})
	require.NoError(t, err)

	require.NoError(t, s.WriteResults(keep, annotateLines(t, snv)))
	require.NoError(t, s.WriteResults(drop, annotateLines(t, snv, indel)))

	require.NoError(t, s.ClearRun(drop))

	n, err := s.CountStats(drop)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = s.CountStats(keep)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	runs, err := s.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, keep, runs[0].ID)
	require.Len(t, runs[0].Inputs, 1)
	assert.Equal(t, "a.vcf", runs[0].Inputs[0].Path)
}

func TestBeginRun_MultipleInputs(t *testing.T) {
	s := openInMemory(t)
	mtime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	first, err := s.BeginRun(
		FileFingerprint{Path: "somatic.snvs.vcf.gz", Size: 100, ModTime: mtime},
		FileFingerprint{Path: "somatic.indels.vcf.gz", Size: 50, ModTime: mtime},
	)
	require.NoError(t, err)
	second, err := s.BeginRun(FileFingerprint{Path: "-"})
	require.NoError(t, err)

	runs, err := s.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 2)

	byID := map[string]Run{runs[0].ID: runs[0], runs[1].ID: runs[1]}
	require.Contains(t, byID, first)
	require.Contains(t, byID, second)

	in := byID[first].Inputs
	require.Len(t, in, 2)
	assert.Equal(t, "somatic.snvs.vcf.gz", in[0].Path)
	assert.Equal(t, int64(100), in[0].Size)
	assert.True(t, mtime.Equal(in[0].ModTime), in[0].ModTime)
	assert.Equal(t, "somatic.indels.vcf.gz", in[1].Path)

	stdin := byID[second].Inputs
	require.Len(t, stdin, 1)
	assert.Equal(t, "-", stdin[0].Path)
	assert.True(t, stdin[0].ModTime.IsZero())
}

func TestWriteResults_Empty(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.WriteResults("run", nil))
}

func TestStatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.vcf")
	require.NoError(t, os.WriteFile(path, []byte("##fileformat=VCFv4.1\n"), 0o644))

	fp, err := StatFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, fp.Path)
	assert.Equal(t, int64(21), fp.Size)
	assert.False(t, fp.ModTime.IsZero())

	_, err = StatFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
