package duckdb

import (
	"context"
	"database/sql/driver"
	"fmt"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-strelka/internal/annotate"
)

// StatsRow is one stored record: its identity, counts and derived statistics.
type StatsRow struct {
	RunID       string
	Chrom       string
	Pos         int64
	Ref         string
	Alt         string
	Filter      string
	VariantType string
	Tumor       annotate.SampleCounts
	Normal      annotate.SampleCounts
	Stats       annotate.Stats
}

const statsColumns = `run_id, chrom, pos, ref, alt, filter, variant_type,
	tum_ref, tum_alt, tum_total, norm_ref, norm_alt, norm_total,
	tum_vaf, norm_vaf, tum_vaf_total, norm_vaf_total,
	tum_var_fraction, log_fisher, log_fisher_total`

// WriteResults batch-inserts annotated records into DuckDB using the Appender API.
func (s *Store) WriteResults(runID string, results []*annotate.Result) error {
	if len(results) == 0 {
		return nil
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "somatic_stats")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, r := range results {
		rec, st := r.Record, r.Stats
		if err := appender.AppendRow(
			runID, rec.Chrom, rec.Pos, rec.Ref, rec.Alt, rec.Filter, r.Type.String(),
			int64(r.Tumor.Ref), int64(r.Tumor.Alt), int64(r.Tumor.Total),
			int64(r.Normal.Ref), int64(r.Normal.Alt), int64(r.Normal.Total),
			st.TumorVAF, st.NormalVAF, st.TumorVAFTotal, st.NormalVAFTotal,
			st.TumorVarFraction, st.LogFisher, st.LogFisherTotal,
		); err != nil {
			return fmt.Errorf("append somatic stats: %w", err)
		}
	}

	return appender.Flush()
}

// RunSink writes results for a single run. It satisfies output.StatsSink.
type RunSink struct {
	store *Store
	runID string
}

// Sink returns a RunSink bound to runID.
func (s *Store) Sink(runID string) *RunSink {
	return &RunSink{store: s, runID: runID}
}

// WriteResults stores results under the sink's run id.
func (rs *RunSink) WriteResults(results []*annotate.Result) error {
	return rs.store.WriteResults(rs.runID, results)
}

// CountStats returns the number of records stored for a run.
func (s *Store) CountStats(runID string) (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT count(*) FROM somatic_stats WHERE run_id=?`, runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count stats: %w", err)
	}
	return n, nil
}

// ClearRun removes a run and its records.
func (s *Store) ClearRun(runID string) error {
	if _, err := s.db.Exec(`DELETE FROM somatic_stats WHERE run_id=?`, runID); err != nil {
		return fmt.Errorf("delete stats: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM run_inputs WHERE run_id=?`, runID); err != nil {
		return fmt.Errorf("delete run inputs: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM runs WHERE run_id=?`, runID); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

// LookupVariant returns every stored row for a variant, across runs.
func (s *Store) LookupVariant(chrom string, pos int64, ref, alt string) ([]StatsRow, error) {
	rows, err := s.db.Query(`SELECT `+statsColumns+`
		FROM somatic_stats
		WHERE chrom=? AND pos=? AND ref=? AND alt=?
		ORDER BY run_id`,
		chrom, pos, ref, alt)
	if err != nil {
		return nil, fmt.Errorf("query variant: %w", err)
	}
	defer rows.Close()

	return scanStatsRows(rows)
}

// SearchSignificant returns rows of a run whose LOG_FISHER is at least minLogFisher,
// most significant first.
func (s *Store) SearchSignificant(runID string, minLogFisher float64) ([]StatsRow, error) {
	rows, err := s.db.Query(`SELECT `+statsColumns+`
		FROM somatic_stats
		WHERE run_id=? AND log_fisher >= ?
		ORDER BY log_fisher DESC, chrom, pos`,
		runID, minLogFisher)
	if err != nil {
		return nil, fmt.Errorf("query significant: %w", err)
	}
	defer rows.Close()

	return scanStatsRows(rows)
}

// scanStatsRows scans rows into StatsRow slices.
func scanStatsRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]StatsRow, error) {
	var out []StatsRow
	for rows.Next() {
		var r StatsRow
		if err := rows.Scan(
			&r.RunID, &r.Chrom, &r.Pos, &r.Ref, &r.Alt, &r.Filter, &r.VariantType,
			&r.Tumor.Ref, &r.Tumor.Alt, &r.Tumor.Total,
			&r.Normal.Ref, &r.Normal.Alt, &r.Normal.Total,
			&r.Stats.TumorVAF, &r.Stats.NormalVAF, &r.Stats.TumorVAFTotal, &r.Stats.NormalVAFTotal,
			&r.Stats.TumorVarFraction, &r.Stats.LogFisher, &r.Stats.LogFisherTotal,
		); err != nil {
			return nil, fmt.Errorf("scan somatic stats: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate somatic stats: %w", err)
	}
	return out, nil
}
