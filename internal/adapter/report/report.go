// Package report writes run reports as indented JSON files.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	domainrun "github.com/alanyang/nlq-bench/internal/domain/run"
)

// TimestampLayout is the file-name timestamp, e.g. 20240131_154502.
const TimestampLayout = "20060102_150405"

// filePrefixes names report files per task.
var filePrefixes = map[domainrun.Kind]string{
	domainrun.KindAmbiguity: "ambiguity_benchmark",
	domainrun.KindNLQSQL:    "nlq_sql_pipeline",
	domainrun.KindNLQ:       "nlq_benchmark",
	domainrun.KindSQL:       "sql_benchmark",
}

const comparisonPrefix = "multi_model_benchmark_summary"

// FileWriter implements port/report.Writer on a local directory, created on
// first write.
type FileWriter struct {
	dir         string
	now         func() time.Time
	maxAttempts int
}

func NewFileWriter(dir string) *FileWriter {
	return &FileWriter{dir: dir, now: time.Now, maxAttempts: 100}
}

func (w *FileWriter) WriteRun(_ context.Context, r domainrun.Run) (string, error) {
	prefix, ok := filePrefixes[r.Kind]
	if !ok {
		prefix = string(r.Kind) + "_benchmark"
	}
	return w.write(prefix, r)
}

func (w *FileWriter) WriteComparison(_ context.Context, c domainrun.Comparison) (string, error) {
	return w.write(comparisonPrefix, c)
}

// Dir is where reports are written.
func (w *FileWriter) Dir() string { return w.dir }

func (w *FileWriter) write(prefix string, v any) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	f, path, err := w.create(prefix)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return "", fmt.Errorf("write report %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close report %s: %w", path, err)
	}
	return path, nil
}

// create opens a new report file, appending a counter when earlier reports
// landed in the same second.
func (w *FileWriter) create(prefix string) (*os.File, string, error) {
	ts := w.now().Format(TimestampLayout)
	path := filepath.Join(w.dir, fmt.Sprintf("%s_%s.json", prefix, ts))
	for i := 2; i <= w.maxAttempts+1; i++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("create report: %w", err)
		}
		path = filepath.Join(w.dir, fmt.Sprintf("%s_%s_%d.json", prefix, ts, i))
	}
	return nil, "", fmt.Errorf("create report: %d files named %s_%s already exist", w.maxAttempts, prefix, ts)
}
