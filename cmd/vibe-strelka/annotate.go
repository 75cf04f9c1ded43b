package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-strelka/internal/annotate"
	"github.com/inodb/vibe-strelka/internal/bcftools"
	"github.com/inodb/vibe-strelka/internal/duckdb"
	"github.com/inodb/vibe-strelka/internal/output"
	"github.com/inodb/vibe-strelka/internal/vcf"
)

// vcfService is a bcftools.Service that owns temporary files.
type vcfService interface {
	bcftools.Service
	Cleanup() error
}

// app holds dependencies shared by commands.
type app struct {
	logger     *zap.Logger
	newService func(binary, tmpDir string, logger *zap.Logger) vcfService
}

func newApp() *app {
	return &app{
		logger: zap.NewNop(),
		newService: func(binary, tmpDir string, logger *zap.Logger) vcfService {
			r := bcftools.New(binary, tmpDir)
			r.SetLogger(logger)
			return r
		},
	}
}

type annotateOptions struct {
	Inputs      []string
	Output      string
	OnlyPass    bool
	IndexOutput bool
	Workers     int
	StatsDB     string
}

func newAnnotateCmd(a *app) *cobra.Command {
	var opts annotateOptions

	cmd := &cobra.Command{
		Use:   "annotate --input <vcf> [--input <vcf>...] --output <vcf>",
		Short: "Annotate Strelka2 VCF(s) with AD, VAF, total VAF and Fisher scores",
		Long: `Annotate Strelka2 somatic SNV and indel VCFs.

Multiple inputs are concatenated with bcftools before annotation. Output paths
ending in .gz are written as BGZF so they can be indexed.`,
		Example: `  vibe-strelka annotate --input somatic.snvs.vcf.gz --output annotated.vcf.gz
  vibe-strelka annotate -i somatic.snvs.vcf.gz -i somatic.indels.vcf.gz -o merged.vcf.gz --only-pass --index-output
  vibe-strelka annotate -i somatic.snvs.vcf -o - --stats-db stats.duckdb`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Workers = viper.GetInt("workers")
			opts.StatsDB = viper.GetString("stats-db")
			if err := opts.validate(cmd); err != nil {
				return err
			}

			svc := a.newService(viper.GetString("bcftools"), viper.GetString("tmpdir"), a.logger)
			defer func() {
				if err := svc.Cleanup(); err != nil {
					a.logger.Warn("could not remove temporary files", zap.Error(err))
				}
			}()

			return runAnnotate(cmd.Context(), opts, svc, a.logger)
		},
	}

	fs := cmd.Flags()
	fs.StringArrayVarP(&opts.Inputs, "input", "i", nil, "Input VCF(s), plain or gzipped; '-' for stdin (required, repeatable)")
	fs.StringVarP(&opts.Output, "output", "o", "", "Output VCF; .gz for BGZF, '-' for stdout (required)")
	fs.BoolVar(&opts.OnlyPass, "only-pass", false, "Keep only PASS records (bcftools view -f PASS)")
	fs.BoolVar(&opts.IndexOutput, "index-output", false, "Index the output with bcftools index")
	fs.Int("workers", 1, "Annotation workers (0 = one per CPU)")
	fs.String("stats-db", "", "Also store per-record statistics in this DuckDB file")
	fs.String("bcftools", "bcftools", "Path to the bcftools binary")
	fs.String("tmpdir", "", "Directory for intermediate files (default: system temp)")
	for _, key := range []string{"workers", "stats-db", "bcftools", "tmpdir"} {
		viper.BindPFlag(key, fs.Lookup(key))
	}

	return cmd
}

func (o *annotateOptions) validate(cmd *cobra.Command) error {
	if len(o.Inputs) == 0 {
		return usageErrorf(cmd, "at least one --input is required")
	}
	if o.Output == "" {
		return usageErrorf(cmd, "--output is required")
	}
	for _, in := range o.Inputs {
		if in == "-" && (len(o.Inputs) > 1 || o.OnlyPass) {
			return usageErrorf(cmd, "stdin input cannot be combined with other inputs or --only-pass")
		}
	}
	if o.IndexOutput && !vcf.IsCompressedPath(o.Output) {
		return usageErrorf(cmd, "--index-output requires a .gz output path, got %q", o.Output)
	}
	if o.Workers < 0 {
		return usageErrorf(cmd, "--workers must be >= 0")
	}
	return nil
}

// runAnnotate prepares the input with svc, rewrites it, and indexes the result.
// On failure the partially written output is removed.
func runAnnotate(ctx context.Context, opts annotateOptions, svc bcftools.Service, logger *zap.Logger) (err error) {
	start := time.Now()

	input := opts.Inputs[0]
	if len(opts.Inputs) > 1 {
		logger.Info("concatenating inputs", zap.Strings("inputs", opts.Inputs))
		if input, err = svc.Concat(ctx, opts.Inputs); err != nil {
			return fmt.Errorf("concatenate inputs: %w", err)
		}
	}
	if opts.OnlyPass {
		logger.Info("filtering to PASS records", zap.String("input", input))
		if input, err = svc.FilterPass(ctx, input); err != nil {
			return fmt.Errorf("filter PASS records: %w", err)
		}
	}

	reader, err := vcf.Open(input)
	if err != nil {
		return err
	}
	defer reader.Close()

	out, err := vcf.Create(opts.Output)
	if err != nil {
		return err
	}
	closed := false
	defer func() {
		if !closed {
			out.Close()
		}
		if err != nil && opts.Output != "-" {
			if rmErr := os.Remove(opts.Output); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				logger.Warn("could not remove partial output", zap.String("output", opts.Output), zap.Error(rmErr))
			}
		}
	}()

	ann := annotate.NewAnnotator()
	ann.SetLogger(logger)

	rw := output.NewRewriter(ann, out)
	rw.SetLogger(logger)
	rw.SetWorkers(opts.Workers)

	if opts.StatsDB != "" {
		var (
			store *duckdb.Store
			runID string
		)
		if store, runID, err = openStatsRun(opts.StatsDB, opts.Inputs); err != nil {
			return err
		}
		defer store.Close()
		defer func() {
			if err != nil {
				if clearErr := store.ClearRun(runID); clearErr != nil {
					logger.Warn("could not clear partial stats", zap.String("run_id", runID), zap.Error(clearErr))
				}
			}
		}()
		logger.Info("writing statistics", zap.String("stats_db", opts.StatsDB), zap.String("run_id", runID))
		rw.SetStatsSink(store.Sink(runID), output.DefaultStatsBatch)
	}

	if err = rw.Rewrite(ctx, reader); err != nil {
		if output.IsMalformed(err) {
			logger.Error("malformed input, no output written", zap.String("input", input))
		}
		return fmt.Errorf("annotate %s: %w", input, err)
	}
	closed = true
	if err = out.Close(); err != nil {
		return err
	}

	s := rw.Summary()
	logger.Info("annotation complete",
		zap.String("output", opts.Output),
		zap.Int("records", s.Records),
		zap.Int("snvs", s.SNVs),
		zap.Int("indels", s.Indels),
		zap.Duration("elapsed", time.Since(start)))
	if s.Records == 0 {
		logger.Info("0 records processed")
	}

	if opts.IndexOutput {
		if err = svc.Index(ctx, opts.Output); err != nil {
			return fmt.Errorf("index output: %w", err)
		}
		logger.Info("indexed output", zap.String("output", opts.Output))
	}

	return nil
}

// openStatsRun opens the stats store and registers a run over every input.
func openStatsRun(path string, inputs []string) (*duckdb.Store, string, error) {
	fps := make([]duckdb.FileFingerprint, 0, len(inputs))
	for _, in := range inputs {
		if in == "-" {
			fps = append(fps, duckdb.FileFingerprint{Path: in})
			continue
		}
		fp, err := duckdb.StatFile(in)
		if err != nil {
			return nil, "", fmt.Errorf("stat input: %w", err)
		}
		fps = append(fps, fp)
	}

	store, err := duckdb.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open stats db: %w", err)
	}

	runID, err := store.BeginRun(fps...)
	if err != nil {
		store.Close()
		return nil, "", err
	}
	return store, runID, nil
}
