package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/inodb/vibe-strelka/internal/annotate"
	"github.com/inodb/vibe-strelka/internal/duckdb"
)

// defaultMinLogFisher is -log10(0.05).
const defaultMinLogFisher = 1.3

type inputView struct {
	Path    string `yaml:"path"`
	Size    int64  `yaml:"size,omitempty"`
	ModTime string `yaml:"mtime,omitempty"`
}

type runView struct {
	RunID     string      `yaml:"run_id"`
	StartedAt string      `yaml:"started_at"`
	Inputs    []inputView `yaml:"inputs"`
}

type countsView struct {
	Ref   int `yaml:"ref"`
	Alt   int `yaml:"alt"`
	Total int `yaml:"total"`
}

type statsRowView struct {
	RunID            string     `yaml:"run_id"`
	Chrom            string     `yaml:"chrom"`
	Pos              int64      `yaml:"pos"`
	Ref              string     `yaml:"ref"`
	Alt              string     `yaml:"alt"`
	Filter           string     `yaml:"filter"`
	Type             string     `yaml:"type"`
	Tumor            countsView `yaml:"tumor"`
	Normal           countsView `yaml:"normal"`
	TumorVAF         float64    `yaml:"tumor_vaf"`
	NormalVAF        float64    `yaml:"normal_vaf"`
	TumorVAFTotal    float64    `yaml:"tumor_vaf_total"`
	NormalVAFTotal   float64    `yaml:"normal_vaf_total"`
	TumorVarFraction float64    `yaml:"tumor_var_fraction"`
	LogFisher        float64    `yaml:"log_fisher"`
	LogFisherTotal   float64    `yaml:"log_fisher_total"`
}

func newStatsCmd(a *app) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Query statistics stored by 'annotate --stats-db'",
		Long: `Query the DuckDB statistics database written by 'annotate --stats-db'.
Results are printed as YAML. The database defaults to the stats-db config value.`,
		Example: `  vibe-strelka stats runs --db stats.duckdb
  vibe-strelka stats lookup 1 100 A G --db stats.duckdb
  vibe-strelka stats significant --run <run-id> --min-log-fisher 2`,
		Args: cobra.NoArgs,
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "Stats DuckDB file (default: stats-db config value)")

	open := func(cmd *cobra.Command) (*duckdb.Store, error) {
		return openStatsStore(cmd, dbPath, a.logger)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "runs",
			Short: "List recorded annotation runs",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := open(cmd)
				if err != nil {
					return err
				}
				defer store.Close()

				runs, err := store.Runs()
				if err != nil {
					return err
				}
				return printRuns(cmd.OutOrStdout(), runs)
			},
		},
		&cobra.Command{
			Use:   "lookup <chrom> <pos> <ref> <alt>",
			Short: "Show stored statistics for one variant across runs",
			Args:  cobra.ExactArgs(4),
			RunE: func(cmd *cobra.Command, args []string) error {
				pos, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil {
					return usageErrorf(cmd, "invalid position %q", args[1])
				}

				store, err := open(cmd)
				if err != nil {
					return err
				}
				defer store.Close()

				rows, err := store.LookupVariant(args[0], pos, args[2], args[3])
				if err != nil {
					return err
				}
				return printStatsRows(cmd.OutOrStdout(), rows)
			},
		},
		newStatsSignificantCmd(open),
	)

	return cmd
}

func newStatsSignificantCmd(open func(*cobra.Command) (*duckdb.Store, error)) *cobra.Command {
	var (
		runID        string
		minLogFisher float64
	)

	cmd := &cobra.Command{
		Use:   "significant",
		Short: "List records of a run with LOG_FISHER at or above a threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			if runID == "" {
				runs, err := store.Runs()
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					return errors.New("no runs recorded")
				}
				runID = runs[len(runs)-1].ID
			}

			rows, err := store.SearchSignificant(runID, minLogFisher)
			if err != nil {
				return err
			}
			return printStatsRows(cmd.OutOrStdout(), rows)
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Run id (default: latest run)")
	cmd.Flags().Float64Var(&minLogFisher, "min-log-fisher", defaultMinLogFisher, "Minimum LOG_FISHER (-log10 p)")

	return cmd
}

// openStatsStore opens an existing stats database named by flag or config.
func openStatsStore(cmd *cobra.Command, flagPath string, logger *zap.Logger) (*duckdb.Store, error) {
	path := flagPath
	if path == "" {
		path = viper.GetString("stats-db")
	}
	if path == "" {
		return nil, usageErrorf(cmd, "no stats database: pass --db or set stats-db")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stats db: %w", err)
	}

	store, err := duckdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stats db: %w", err)
	}
	logger.Debug("opened stats db", zap.String("path", store.Path()))
	return store, nil
}

func printRuns(w io.Writer, runs []duckdb.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "# no runs recorded")
		return nil
	}

	views := make([]runView, 0, len(runs))
	for _, r := range runs {
		v := runView{RunID: r.ID, StartedAt: r.StartedAt.UTC().Format(time.RFC3339)}
		for _, in := range r.Inputs {
			iv := inputView{Path: in.Path, Size: in.Size}
			if !in.ModTime.IsZero() {
				iv.ModTime = in.ModTime.UTC().Format(time.RFC3339)
			}
			v.Inputs = append(v.Inputs, iv)
		}
		views = append(views, v)
	}
	return writeYAML(w, views)
}

func printStatsRows(w io.Writer, rows []duckdb.StatsRow) error {
	if len(rows) == 0 {
		fmt.Fprintln(w, "# no matching records")
		return nil
	}

	views := make([]statsRowView, 0, len(rows))
	for _, r := range rows {
		views = append(views, statsRowView{
			RunID:            r.RunID,
			Chrom:            r.Chrom,
			Pos:              r.Pos,
			Ref:              r.Ref,
			Alt:              r.Alt,
			Filter:           r.Filter,
			Type:             r.VariantType,
			Tumor:            countsOf(r.Tumor),
			Normal:           countsOf(r.Normal),
			TumorVAF:         r.Stats.TumorVAF,
			NormalVAF:        r.Stats.NormalVAF,
			TumorVAFTotal:    r.Stats.TumorVAFTotal,
			NormalVAFTotal:   r.Stats.NormalVAFTotal,
			TumorVarFraction: r.Stats.TumorVarFraction,
			LogFisher:        r.Stats.LogFisher,
			LogFisherTotal:   r.Stats.LogFisherTotal,
		})
	}
	return writeYAML(w, views)
}

func countsOf(c annotate.SampleCounts) countsView {
	return countsView{Ref: c.Ref, Alt: c.Alt, Total: c.Total}
}

func writeYAML(w io.Writer, v any) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}
	_, err = w.Write(out)
	return err
}
