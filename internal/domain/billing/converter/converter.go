// Package converter is the boundary to the external conversion collaborator:
// a script invoked as a subprocess with an input CSV path and an output
// directory, answering with a single JSON object on stdout.
package converter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/shopspring/decimal"
)

// Stage identifies where a conversion attempt failed.
type Stage string

const (
	StageSpawn    Stage = "spawn"    // process could not be started
	StageExit     Stage = "exit"     // non-zero exit code
	StageDecode   Stage = "decode"   // stdout was not valid JSON
	StageBusiness Stage = "business" // collaborator reported success=false
)

// Error is a failed conversion. All stages map to the same "processing
// failed" outcome upstream; Stage and Detail only differ in diagnostics.
type Error struct {
	Stage  Stage
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("conversion failed (%s): %s", e.Stage, e.Detail)
	}
	return fmt.Sprintf("conversion failed (%s)", e.Stage)
}

func (e *Error) Unwrap() error { return e.Err }

// SiteRecord is one per-site billing line item emitted by the collaborator.
type SiteRecord struct {
	SiteName           string          `json:"site_name"`
	SiteID             string          `json:"site_id"`
	MeterNumber        string          `json:"meter_number"`
	ContractNumber     string          `json:"contract_number"`
	TariffType         string          `json:"tariff_type"`
	PeriodStart        string          `json:"period_start"`
	PeriodEnd          string          `json:"period_end"`
	PeakConsumption    decimal.Decimal `json:"peak_consumption"`
	OffpeakConsumption decimal.Decimal `json:"offpeak_consumption"`
	TotalConsumption   decimal.Decimal `json:"total_consumption"`
	TotalCost          decimal.Decimal `json:"total_cost"`
	TotalCostVAT       decimal.Decimal `json:"total_cost_vat"`
	DocumentNumber     int64           `json:"document_number"`
}

// Result is the canonical, fully-defaulted conversion outcome. Absent
// JSON fields default rather than fail.
type Result struct {
	ExcelFilename string
	TSVFilename   string
	CSVTotal      decimal.Decimal
	TSVTotal      decimal.Decimal
	Difference    decimal.Decimal
	PerfectMatch  bool
	TotalRows     int
	IncludedRows  int
	BillingMonth  int
	BillingYear   int
	BillingPeriod string
	SiteRecords   []SiteRecord
}

// rawResult mirrors the collaborator's loose JSON shape. Every field is
// optional; excel_total is a legacy alias for tsv_total.
type rawResult struct {
	Success       *bool            `json:"success"`
	Error         string           `json:"error"`
	ExcelFilename string           `json:"excel_filename"`
	TSVFilename   string           `json:"tsv_filename"`
	CSVTotal      *decimal.Decimal `json:"csv_total"`
	TSVTotal      *decimal.Decimal `json:"tsv_total"`
	ExcelTotal    *decimal.Decimal `json:"excel_total"`
	Difference    *decimal.Decimal `json:"difference"`
	PerfectMatch  *bool            `json:"perfect_match"`
	TotalRows     *int             `json:"total_rows"`
	IncludedRows  *int             `json:"included_rows"`
	BillingMonth  *int             `json:"billing_month"`
	BillingYear   *int             `json:"billing_year"`
	BillingPeriod string           `json:"billing_period"`
	SiteRecords   []SiteRecord     `json:"site_records"`
}

// Runner invokes the conversion collaborator. It performs no retries and
// touches no shared state; status updates are the caller's job.
type Runner struct {
	interpreter string
	scriptPath  string
	tolerance   decimal.Decimal
	logger      *slog.Logger
}

// NewRunner creates a runner for the given interpreter and script path.
// tolerance bounds the gap still considered a perfect match when the
// collaborator omits its own perfect_match flag.
func NewRunner(interpreter, scriptPath string, tolerance decimal.Decimal, logger *slog.Logger) *Runner {
	return &Runner{
		interpreter: interpreter,
		scriptPath:  scriptPath,
		tolerance:   tolerance,
		logger:      logger,
	}
}

// Convert runs the collaborator against inputPath, writing artifacts into
// outputDir, and returns the decoded result or a staged *Error.
func (r *Runner) Convert(ctx context.Context, inputPath, outputDir string) (*Result, error) {
	cmd := exec.CommandContext(ctx, r.interpreter, r.scriptPath, inputPath, outputDir)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Info("invoking conversion script",
		slog.String("script", r.scriptPath),
		slog.String("input", inputPath),
	)

	if err := cmd.Start(); err != nil {
		return nil, &Error{Stage: StageSpawn, Detail: err.Error(), Err: err}
	}
	if err := cmd.Wait(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return nil, &Error{Stage: StageExit, Detail: detail, Err: err}
	}

	var raw rawResult
	if err := json.Unmarshal(stdout.Bytes(), &raw); err != nil {
		return nil, &Error{
			Stage:  StageDecode,
			Detail: strings.TrimSpace(stdout.String()),
			Err:    err,
		}
	}

	if raw.Success == nil || !*raw.Success {
		detail := raw.Error
		if detail == "" {
			detail = "conversion script reported failure"
		}
		return nil, &Error{Stage: StageBusiness, Detail: detail}
	}

	return r.normalize(&raw), nil
}

func (r *Runner) normalize(raw *rawResult) *Result {
	res := &Result{
		ExcelFilename: raw.ExcelFilename,
		TSVFilename:   raw.TSVFilename,
		BillingPeriod: raw.BillingPeriod,
		SiteRecords:   raw.SiteRecords,
	}
	if raw.CSVTotal != nil {
		res.CSVTotal = *raw.CSVTotal
	}
	switch {
	case raw.TSVTotal != nil:
		res.TSVTotal = *raw.TSVTotal
	case raw.ExcelTotal != nil:
		res.TSVTotal = *raw.ExcelTotal
	}
	if raw.Difference != nil {
		res.Difference = *raw.Difference
	} else {
		res.Difference = res.CSVTotal.Sub(res.TSVTotal).Abs()
	}
	if raw.PerfectMatch != nil {
		res.PerfectMatch = *raw.PerfectMatch
	} else {
		res.PerfectMatch = res.Difference.Abs().LessThan(r.tolerance)
	}
	if raw.TotalRows != nil {
		res.TotalRows = *raw.TotalRows
	}
	if raw.IncludedRows != nil {
		res.IncludedRows = *raw.IncludedRows
	}
	if raw.BillingMonth != nil {
		res.BillingMonth = *raw.BillingMonth
	}
	if raw.BillingYear != nil {
		res.BillingYear = *raw.BillingYear
	}
	return res
}
