package extract

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Elyes-Bali/UniProfs-UI/app/models"
)

// newShellRunner runs helper scripts with /bin/sh so tests do not need Python.
func newShellRunner(t *testing.T, scripts map[string]string) (*Runner, string) {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires /bin/sh")
	}
	dir := t.TempDir()
	for name, body := range scripts {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	r := NewRunner("/bin/sh", dir, 5*time.Second)
	r.tempDir = t.TempDir()
	return r, r.tempDir
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp pdf should be removed")
}

func TestScanMessages(t *testing.T) {
	input := strings.Join([]string{
		`{"progress": 10}`,
		`loading model...`,
		``,
		`{"progress": 90}`,
		`{"summary": "done"}`,
	}, "\n")

	var progress []int
	var summary string
	err := scanMessages(strings.NewReader(input), zerolog.Nop(), func(m models.ScriptMessage) error {
		if m.Progress != nil {
			progress = append(progress, *m.Progress)
		}
		if m.Summary != "" {
			summary = m.Summary
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{10, 90}, progress)
	assert.Equal(t, "done", summary)
}

func TestScanMessagesStopsOnError(t *testing.T) {
	input := "{\"progress\": 5}\n{\"error\": \"bad pdf\"}\n{\"summary\": \"late\"}\n"
	calls := 0
	err := scanMessages(strings.NewReader(input), zerolog.Nop(), func(models.ScriptMessage) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, ErrProcess)
	assert.Contains(t, err.Error(), "bad pdf")
	assert.Equal(t, 1, calls)
}

func TestSummarizePassesSettingsAndProgress(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "settings.json")
	r, tmp := newShellRunner(t, map[string]string{
		ScriptSummarize: `test -f "$1" || { echo '{"error":"missing pdf"}'; exit 0; }
printf '%s' "$2" > "` + argsFile + `"
echo '{"progress": 50}'
echo '{"summary": "short summary"}'
`,
	})

	var progress []int
	out, err := r.Summarize(context.Background(), strings.NewReader("PDFDATA"),
		models.SummarizeSettings{Language: "French"},
		func(p int) { progress = append(progress, p) })
	require.NoError(t, err)
	assert.Equal(t, []int{50}, progress)
	assert.Equal(t, "short summary", out)
	assertNoTempFiles(t, tmp)

	raw, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	var got models.SummarizeSettings
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, models.SummarizeSettings{Focus: models.DefaultSummaryFocus, Language: "French"}, got)
}

func TestExtractText(t *testing.T) {
	r, tmp := newShellRunner(t, map[string]string{
		ScriptExtractText: `echo '{"text": "chapter one"}'`,
	})
	text, err := r.ExtractText(context.Background(), strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "chapter one", text)
	assertNoTempFiles(t, tmp)
}

func TestImproveCVReturnsFile(t *testing.T) {
	outDir := t.TempDir()
	r, tmp := newShellRunner(t, map[string]string{
		"chat_api.py": `cp "$1" "` + outDir + `/improved.pdf" && echo '{"file": "` + outDir + `/improved.pdf"}'`,
	})
	path, err := r.ImproveCV(context.Background(), strings.NewReader("cv"))
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "cv", string(data))
	assertNoTempFiles(t, tmp)
}

func TestRunScriptErrorAndExitCode(t *testing.T) {
	r, tmp := newShellRunner(t, map[string]string{
		ScriptExtractText: `echo '{"error": "encrypted pdf"}'`,
		ScriptImproveCV:   `echo oops >&2; exit 3`,
	})

	_, err := r.ExtractText(context.Background(), strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrProcess)
	assert.Contains(t, err.Error(), "encrypted pdf")

	_, err = r.ImproveCV(context.Background(), strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrProcess)
	assertNoTempFiles(t, tmp)
}

func TestRunKilledOnCancel(t *testing.T) {
	r, tmp := newShellRunner(t, map[string]string{
		ScriptSummarize: `echo '{"progress": 1}'; exec sleep 30`,
	})

	ctx, cancel := context.WithCancel(context.Background())
	start := time.Now()
	_, err := r.Summarize(ctx, strings.NewReader("x"), models.SummarizeSettings{}, func(int) { cancel() })

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.Less(t, time.Since(start), 10*time.Second)
	assertNoTempFiles(t, tmp)
}

func TestImproveCVRemovesOutputOnCancel(t *testing.T) {
	outDir := t.TempDir()
	out := filepath.Join(outDir, "improved.pdf")
	reported := filepath.Join(outDir, "reported")
	r, tmp := newShellRunner(t, map[string]string{
		ScriptImproveCV: `cp "$1" "` + out + `" && echo '{"file": "` + out + `"}'
touch "` + reported + `"
exec sleep 30`,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for ctx.Err() == nil {
			if _, err := os.Stat(reported); err == nil {
				cancel()
				return
			}
			time.Sleep(20 * time.Millisecond)
		}
	}()
	defer cancel()

	_, err := r.ImproveCV(ctx, strings.NewReader("cv"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.NoFileExists(t, out)
	assertNoTempFiles(t, tmp)
}

func TestImproveCVRemovesOutputOnFailedExit(t *testing.T) {
	outDir := t.TempDir()
	out := filepath.Join(outDir, "improved.pdf")
	r, tmp := newShellRunner(t, map[string]string{
		ScriptImproveCV: `cp "$1" "` + out + `" && echo '{"file": "` + out + `"}'
exit 1`,
	})

	_, err := r.ImproveCV(context.Background(), strings.NewReader("cv"))
	assert.ErrorIs(t, err, ErrProcess)
	assert.NoFileExists(t, out)
	assertNoTempFiles(t, tmp)
}
