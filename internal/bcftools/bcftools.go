// Package bcftools runs the external bcftools binary for PASS filtering,
// concatenation and indexing of VCF files.
package bcftools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Service is the set of VCF operations delegated to an external tool.
type Service interface {
	// FilterPass writes the PASS-only records of path to a new indexed
	// BGZF file and returns its path.
	FilterPass(ctx context.Context, path string) (string, error)

	// Concat concatenates paths, in order, into a new BGZF file and returns its path.
	Concat(ctx context.Context, paths []string) (string, error)

	// Index builds an index for path.
	Index(ctx context.Context, path string) error
}

// CommandError reports a bcftools invocation that could not start or exited non-zero.
type CommandError struct {
	Args     []string
	ExitCode int // -1 if the process did not run to completion
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s failed", strings.Join(e.Args, " "))
	if e.ExitCode >= 0 {
		msg += fmt.Sprintf(" with exit code %d", e.ExitCode)
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Runner implements Service by executing bcftools.
type Runner struct {
	binary string
	tmpDir string
	logger *zap.Logger

	mu    sync.Mutex
	temps []string
}

// New creates a Runner. An empty binary means "bcftools" on PATH; an empty
// tmpDir means os.TempDir().
func New(binary, tmpDir string) *Runner {
	if binary == "" {
		binary = "bcftools"
	}
	return &Runner{
		binary: binary,
		tmpDir: tmpDir,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for command tracing.
func (r *Runner) SetLogger(l *zap.Logger) {
	r.logger = l
}

// FilterPass implements Service.
func (r *Runner) FilterPass(ctx context.Context, path string) (string, error) {
	out, err := r.tempFile("pass-*.vcf.gz")
	if err != nil {
		return "", err
	}
	if err := r.run(ctx, "view", "-f", "PASS", "-O", "z", "-o", out, path); err != nil {
		return "", err
	}
	if err := r.Index(ctx, out); err != nil {
		return "", err
	}
	return out, nil
}

// Concat implements Service. Inputs must be indexed; overlapping records are
// allowed (-a).
func (r *Runner) Concat(ctx context.Context, paths []string) (string, error) {
	if len(paths) == 0 {
		return "", errors.New("concat: no input files")
	}
	out, err := r.tempFile("concat-*.vcf.gz")
	if err != nil {
		return "", err
	}
	args := append([]string{"concat", "-a", "-O", "z", "-o", out}, paths...)
	if err := r.run(ctx, args...); err != nil {
		return "", err
	}
	return out, nil
}

// Index implements Service.
func (r *Runner) Index(ctx context.Context, path string) error {
	return r.run(ctx, "index", "-f", path)
}

// Cleanup removes the temporary files created by FilterPass and Concat,
// together with any index written next to them.
func (r *Runner) Cleanup() error {
	r.mu.Lock()
	temps := r.temps
	r.temps = nil
	r.mu.Unlock()

	var errs []error
	for _, path := range temps {
		for _, p := range []string{path, path + ".csi", path + ".tbi"} {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) tempFile(pattern string) (string, error) {
	f, err := os.CreateTemp(r.tmpDir, pattern)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	name := f.Name()
	f.Close()

	r.mu.Lock()
	r.temps = append(r.temps, name)
	r.mu.Unlock()
	return name, nil
}

func (r *Runner) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, r.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	r.logger.Debug("running bcftools", zap.String("binary", r.binary), zap.Strings("args", args))

	if err := cmd.Run(); err != nil {
		cerr := &CommandError{
			Args:     append([]string{r.binary}, args...),
			ExitCode: -1,
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			cerr.ExitCode = exitErr.ExitCode()
		}
		return cerr
	}
	return nil
}
