// Package extract runs the document helper scripts (PDF text extraction,
// summarization, CV rewriting) as child processes.
//
// Scripts write newline-delimited JSON to stdout, one models.ScriptMessage
// per line. The process is killed when the request context ends and the
// uploaded PDF is always removed afterwards.
package extract

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Elyes-Bali/UniProfs-UI/app/logging"
	"github.com/Elyes-Bali/UniProfs-UI/app/metrics"
	"github.com/Elyes-Bali/UniProfs-UI/app/models"
)

// ErrProcess wraps failures reported by or about a helper script.
var ErrProcess = errors.New("document helper failed")

const (
	ScriptExtractText = "extract_pdf.py"
	ScriptSummarize   = "summarize_pdf.py"
	ScriptImproveCV   = "chat_api.py"

	maxLineBytes   = 16 << 20
	maxStderrBytes = 8 << 10
)

// Runner starts one helper process per call. It is safe for concurrent use.
type Runner struct {
	python    string
	scriptDir string
	tempDir   string
	timeout   time.Duration
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

// NewRunner runs scripts from scriptDir with the given interpreter. A zero
// timeout leaves runs bounded only by the caller's context.
func NewRunner(python, scriptDir string, timeout time.Duration) *Runner {
	return &Runner{
		python:    python,
		scriptDir: scriptDir,
		timeout:   timeout,
		logger:    logging.Component("extract"),
		metrics:   metrics.Get(),
	}
}

// ExtractText returns the plain text of a PDF.
func (r *Runner) ExtractText(ctx context.Context, pdf io.Reader) (string, error) {
	var text string
	err := r.withTempPDF(pdf, func(path string) error {
		return r.run(ctx, ScriptExtractText, []string{path}, func(msg models.ScriptMessage) error {
			if msg.Text != "" {
				text = msg.Text
			}
			return nil
		})
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: no text extracted", ErrProcess)
	}
	return text, nil
}

// Summarize returns the summary of a PDF, reporting progress percentages as
// the script emits them.
func (r *Runner) Summarize(ctx context.Context, pdf io.Reader, settings models.SummarizeSettings, onProgress func(int)) (string, error) {
	if settings.Focus == "" {
		settings.Focus = models.DefaultSummaryFocus
	}
	if settings.Language == "" {
		settings.Language = models.DefaultSummaryLanguage
	}
	rawSettings, err := json.Marshal(settings)
	if err != nil {
		return "", err
	}

	var summary string
	err = r.withTempPDF(pdf, func(path string) error {
		return r.run(ctx, ScriptSummarize, []string{path, string(rawSettings)}, func(msg models.ScriptMessage) error {
			if msg.Progress != nil && onProgress != nil {
				onProgress(*msg.Progress)
			}
			if msg.Summary != "" {
				summary = msg.Summary
			}
			return nil
		})
	})
	if err != nil {
		return "", err
	}
	if summary == "" {
		return "", fmt.Errorf("%w: no summary produced", ErrProcess)
	}
	return summary, nil
}

// ImproveCV returns the path of the rewritten CV. The caller owns the file
// and must remove it. When the run fails after the script reported a file,
// that file is removed here.
func (r *Runner) ImproveCV(ctx context.Context, pdf io.Reader) (string, error) {
	var out string
	err := r.withTempPDF(pdf, func(path string) error {
		return r.run(ctx, ScriptImproveCV, []string{path}, func(msg models.ScriptMessage) error {
			if msg.File != "" {
				out = msg.File
			}
			return nil
		})
	})
	if err != nil {
		if out != "" {
			r.removeArtifact(out)
		}
		return "", err
	}
	if out == "" {
		return "", fmt.Errorf("%w: no output file", ErrProcess)
	}
	return out, nil
}

// removeArtifact deletes a file the script reported before the run failed.
func (r *Runner) removeArtifact(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.logger.Warn().Err(err).Str("path", path).Msg("failed to remove helper output")
	}
}

func (r *Runner) withTempPDF(pdf io.Reader, fn func(path string) error) error {
	f, err := os.CreateTemp(r.tempDir, "upload-*.pdf")
	if err != nil {
		return fmt.Errorf("create temp pdf: %w", err)
	}
	path := f.Name()
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			r.logger.Warn().Err(err).Str("path", path).Msg("failed to remove temp pdf")
		}
	}()

	if _, err := io.Copy(f, pdf); err != nil {
		_ = f.Close()
		return fmt.Errorf("write temp pdf: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp pdf: %w", err)
	}
	return fn(path)
}

func (r *Runner) run(ctx context.Context, script string, args []string, handle func(models.ScriptMessage) error) (err error) {
	defer func() { r.metrics.RecordExtract(script, metrics.Outcome(err)) }()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	runCtx, kill := context.WithCancel(ctx)
	defer kill()

	cmdArgs := append([]string{filepath.Join(r.scriptDir, script)}, args...)
	cmd := exec.CommandContext(runCtx, r.python, cmdArgs...)
	var stderr bytes.Buffer
	cmd.Stderr = &limitedWriter{buf: &stderr, max: maxStderrBytes}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start %s: %v", ErrProcess, script, err)
	}

	scanErr := scanMessages(stdout, r.logger, handle)
	if scanErr != nil {
		kill()
	}
	waitErr := cmd.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		r.logger.Info().Str("script", script).Err(ctxErr).Msg("document helper stopped")
		return fmt.Errorf("%s: %w", script, ctxErr)
	}
	if scanErr != nil {
		return scanErr
	}
	if waitErr != nil {
		detail := strings.TrimSpace(stderr.String())
		r.logger.Error().Str("script", script).Err(waitErr).Str("stderr", detail).Msg("document helper exited with error")
		return fmt.Errorf("%w: %s: %v", ErrProcess, script, waitErr)
	}
	return nil
}

// scanMessages decodes one message per line. Lines that are not JSON are
// logged and skipped; an error message ends the scan.
func scanMessages(out io.Reader, logger zerolog.Logger, handle func(models.ScriptMessage) error) error {
	sc := bufio.NewScanner(out)
	sc.Buffer(make([]byte, 64<<10), maxLineBytes)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var msg models.ScriptMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			logger.Debug().Str("line", line).Msg("non-JSON helper output")
			continue
		}
		if msg.Error != "" {
			return fmt.Errorf("%w: %s", ErrProcess, msg.Error)
		}
		if err := handle(msg); err != nil {
			return err
		}
	}
	return sc.Err()
}

type limitedWriter struct {
	buf *bytes.Buffer
	max int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if room := w.max - w.buf.Len(); room > 0 {
		if len(p) > room {
			w.buf.Write(p[:room])
		} else {
			w.buf.Write(p)
		}
	}
	return len(p), nil
}
