// Package output writes annotated VCF streams.
package output

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/inodb/vibe-strelka/internal/annotate"
	"github.com/inodb/vibe-strelka/internal/vcf"
)

// DefaultStatsBatch is the number of results buffered before a StatsSink write.
const DefaultStatsBatch = 1000

// StatsSink receives the counts and statistics of every annotated record.
type StatsSink interface {
	WriteResults(results []*annotate.Result) error
}

// Summary counts what a Rewrite call processed.
type Summary struct {
	HeaderLines int // header lines written, including the extension block
	Dropped     int // stale extension definitions removed from the input header
	Records     int
	SNVs        int
	Indels      int
}

// Rewriter copies a VCF stream, inserting the extension header before #CHROM
// and annotating every data line.
type Rewriter struct {
	ann     *annotate.Annotator
	w       *bufio.Writer
	logger  *zap.Logger
	workers int

	sink      StatsSink
	batchSize int
	batch     []*annotate.Result

	summary Summary
}

// NewRewriter creates a Rewriter writing to w.
func NewRewriter(ann *annotate.Annotator, w io.Writer) *Rewriter {
	return &Rewriter{
		ann:     ann,
		w:       bufio.NewWriter(w),
		logger:  zap.NewNop(),
		workers: 1,
	}
}

// SetLogger sets the logger for progress and debug messages.
func (rw *Rewriter) SetLogger(l *zap.Logger) {
	rw.logger = l
}

// SetWorkers sets the number of annotation workers. 1 annotates inline;
// 0 uses one worker per CPU. Output order always matches input order.
func (rw *Rewriter) SetWorkers(n int) {
	rw.workers = n
}

// SetStatsSink registers a sink that receives results in batches of batchSize.
func (rw *Rewriter) SetStatsSink(sink StatsSink, batchSize int) {
	if batchSize <= 0 {
		batchSize = DefaultStatsBatch
	}
	rw.sink = sink
	rw.batchSize = batchSize
}

// Summary returns the counts from the last Rewrite.
func (rw *Rewriter) Summary() Summary {
	return rw.summary
}

// Rewrite reads every line from in and writes the annotated stream.
// It stops at the first malformed record.
// The input header is not copied verbatim: existing ##INFO/##FORMAT definitions
// of the keys this package writes are replaced by the extension block.
func (rw *Rewriter) Rewrite(ctx context.Context, in vcf.LineReader) error {
	rw.summary = Summary{}
	rw.batch = nil

	if err := rw.rewriteHeader(ctx, in); err != nil {
		return err
	}

	var err error
	if rw.workers == 1 {
		err = rw.rewriteSequential(ctx, in)
	} else {
		err = rw.rewriteParallel(ctx, in)
	}
	if err != nil {
		return err
	}

	if err := rw.flushStats(); err != nil {
		return err
	}
	if err := rw.w.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

// rewriteHeader copies meta lines and emits the extension block before #CHROM.
func (rw *Rewriter) rewriteHeader(ctx context.Context, in vcf.LineReader) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := in.Next()
		if err == io.EOF {
			return &vcf.ParseError{Line: in.LineNumber(), Message: "no #CHROM header line found"}
		}
		if err != nil {
			return err
		}

		switch {
		case strings.HasPrefix(line, "##"):
			if isExtensionDefinition(line) {
				rw.logger.Debug("dropping existing header definition", zap.String("line", line))
				rw.summary.Dropped++
				continue
			}
			if err := rw.writeLine(line); err != nil {
				return err
			}
			rw.summary.HeaderLines++
		case strings.HasPrefix(line, "#CHROM"):
			for _, h := range extensionHeader {
				if err := rw.writeLine(h); err != nil {
					return err
				}
			}
			if err := rw.writeLine(line); err != nil {
				return err
			}
			rw.summary.HeaderLines += len(extensionHeader) + 1
			return nil
		case line == "":
			continue
		default:
			return &vcf.ParseError{Line: in.LineNumber(), Message: "expected #CHROM header line"}
		}
	}
}

func (rw *Rewriter) rewriteSequential(ctx context.Context, in vcf.LineReader) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := in.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}

		out, res, err := rw.ann.AnnotateLine(in.LineNumber(), line)
		if err != nil {
			return err
		}
		if err := rw.emit(out, res); err != nil {
			return err
		}
	}
}

func (rw *Rewriter) rewriteParallel(ctx context.Context, in vcf.LineReader) error {
	items := make(chan annotate.WorkItem, 4*max(rw.workers, 1))
	stop := make(chan struct{})
	var stopOnce sync.Once
	halt := func() { stopOnce.Do(func() { close(stop) }) }

	var readErr error
	go func() {
		defer close(items)
		seq := 0
		for {
			line, err := in.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				readErr = err
				return
			}
			if line == "" {
				continue
			}
			select {
			case items <- annotate.WorkItem{Seq: seq, LineNum: in.LineNumber(), Line: line}:
				seq++
			case <-stop:
				return
			case <-ctx.Done():
				readErr = ctx.Err()
				return
			}
		}
	}()

	results := rw.ann.ParallelAnnotate(items, rw.workers)
	if err := annotate.OrderedCollect(results, func(r annotate.WorkResult) error {
		if r.Err != nil {
			halt()
			return r.Err
		}
		if err := rw.emit(r.Line, r.Result); err != nil {
			halt()
			return err
		}
		return nil
	}); err != nil {
		return err
	}

	return readErr
}

// emit writes one annotated line and records its statistics.
func (rw *Rewriter) emit(line string, res *annotate.Result) error {
	if err := rw.writeLine(line); err != nil {
		return err
	}

	rw.summary.Records++
	if res.Type == vcf.SNV {
		rw.summary.SNVs++
	} else {
		rw.summary.Indels++
	}

	if rw.sink == nil {
		return nil
	}
	rw.batch = append(rw.batch, res)
	if len(rw.batch) >= rw.batchSize {
		return rw.flushStats()
	}
	return nil
}

func (rw *Rewriter) flushStats() error {
	if rw.sink == nil || len(rw.batch) == 0 {
		return nil
	}
	if err := rw.sink.WriteResults(rw.batch); err != nil {
		return fmt.Errorf("write stats: %w", err)
	}
	rw.batch = rw.batch[:0]
	return nil
}

func (rw *Rewriter) writeLine(line string) error {
	if _, err := rw.w.WriteString(line); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := rw.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// IsMalformed reports whether err was caused by malformed input rather than IO.
func IsMalformed(err error) bool {
	var pe *vcf.ParseError
	return errors.As(err, &pe)
}
