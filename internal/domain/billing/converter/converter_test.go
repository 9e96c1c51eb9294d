package converter

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

// writeStub creates an executable script that prints its body's output.
func writeStub(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "convert.sh")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestRunner(script string) *Runner {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewRunner("/bin/sh", script, decimal.NewFromFloat(1.0), logger)
}

func TestConvert_Success(t *testing.T) {
	script := writeStub(t, `cat <<'EOF'
{
  "success": true,
  "excel_filename": "out.xlsx",
  "tsv_filename": "out.tsv",
  "csv_total": 1500.50,
  "tsv_total": 1500.10,
  "total_rows": 120,
  "included_rows": 115,
  "billing_month": 3,
  "billing_year": 2025,
  "billing_period": "2025-03"
}
EOF`)

	result, err := newTestRunner(script).Convert(context.Background(), "in.csv", t.TempDir())
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	if result.ExcelFilename != "out.xlsx" || result.TSVFilename != "out.tsv" {
		t.Errorf("filenames = %q/%q", result.ExcelFilename, result.TSVFilename)
	}
	if !result.Difference.Equal(decimal.NewFromFloat(0.40)) {
		t.Errorf("difference = %s, want 0.40", result.Difference)
	}
	if !result.PerfectMatch {
		t.Error("gap of 0.40 under tolerance 1.0 should be a perfect match")
	}
	if result.BillingPeriod != "2025-03" {
		t.Errorf("billing period = %q", result.BillingPeriod)
	}
}

func TestConvert_ExcelTotalAlias(t *testing.T) {
	script := writeStub(t, `echo '{"success": true, "csv_total": 100, "excel_total": 99}'`)

	result, err := newTestRunner(script).Convert(context.Background(), "in.csv", t.TempDir())
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if !result.TSVTotal.Equal(decimal.NewFromInt(99)) {
		t.Errorf("tsv total = %s, want 99 via excel_total alias", result.TSVTotal)
	}
	if result.PerfectMatch {
		t.Error("gap of 1 at tolerance 1.0 must not be a perfect match")
	}
}

func TestConvert_ExplicitPerfectMatchWins(t *testing.T) {
	script := writeStub(t, `echo '{"success": true, "csv_total": 100, "tsv_total": 50, "perfect_match": true}'`)

	result, err := newTestRunner(script).Convert(context.Background(), "in.csv", t.TempDir())
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if !result.PerfectMatch {
		t.Error("collaborator's own perfect_match flag must be honored")
	}
}

func TestConvert_BusinessFailure(t *testing.T) {
	script := writeStub(t, `echo '{"success": false, "error": "unreadable encoding"}'`)

	_, err := newTestRunner(script).Convert(context.Background(), "in.csv", t.TempDir())
	var convErr *Error
	if !errors.As(err, &convErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if convErr.Stage != StageBusiness {
		t.Errorf("stage = %s, want %s", convErr.Stage, StageBusiness)
	}
	if convErr.Detail != "unreadable encoding" {
		t.Errorf("detail = %q", convErr.Detail)
	}
}

func TestConvert_NonZeroExit(t *testing.T) {
	script := writeStub(t, `echo "boom" >&2; exit 3`)

	_, err := newTestRunner(script).Convert(context.Background(), "in.csv", t.TempDir())
	var convErr *Error
	if !errors.As(err, &convErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if convErr.Stage != StageExit {
		t.Errorf("stage = %s, want %s", convErr.Stage, StageExit)
	}
	if convErr.Detail != "boom" {
		t.Errorf("detail = %q, want stderr content", convErr.Detail)
	}
}

func TestConvert_MalformedJSON(t *testing.T) {
	script := writeStub(t, `echo 'not json at all'`)

	_, err := newTestRunner(script).Convert(context.Background(), "in.csv", t.TempDir())
	var convErr *Error
	if !errors.As(err, &convErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if convErr.Stage != StageDecode {
		t.Errorf("stage = %s, want %s", convErr.Stage, StageDecode)
	}
}

func TestConvert_MissingSuccessField(t *testing.T) {
	script := writeStub(t, `echo '{}'`)

	_, err := newTestRunner(script).Convert(context.Background(), "in.csv", t.TempDir())
	var convErr *Error
	if !errors.As(err, &convErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if convErr.Stage != StageBusiness {
		t.Errorf("stage = %s, want %s", convErr.Stage, StageBusiness)
	}
}

func TestConvert_SpawnFailure(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	r := NewRunner("/nonexistent/interpreter", "script.py", decimal.NewFromInt(1), logger)

	_, err := r.Convert(context.Background(), "in.csv", t.TempDir())
	var convErr *Error
	if !errors.As(err, &convErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if convErr.Stage != StageSpawn {
		t.Errorf("stage = %s, want %s", convErr.Stage, StageSpawn)
	}
}
