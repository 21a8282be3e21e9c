// Package app orchestrates the fit pipeline: data acquisition, fitting and
// model selection, residual analysis, and reporting. It owns no numerics of
// its own.
package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"nscurve/adapters/excel"
	"nscurve/adapters/fit/selection"
	"nscurve/adapters/ingest"
	"nscurve/adapters/sample"
	"nscurve/domain/curve"
	"nscurve/internal/config"
	"nscurve/internal/logging"
	"nscurve/internal/report"
)

// FitService runs the end-to-end pipeline for one dataset.
type FitService struct {
	cfg *config.Config
	log *logging.Logger
}

// NewFitService creates a fit service bound to a validated configuration.
func NewFitService(cfg *config.Config) *FitService {
	return &FitService{
		cfg: cfg,
		log: logging.NewDefaultLogger("[FitService] "),
	}
}

// RunInput names the data source for one run. Exactly one of InputPath or
// Observations may be set; when both are empty a synthetic dataset is
// generated from the configured sample settings.
type RunInput struct {
	// InputPath is a CSV or xlsx bond list.
	InputPath string
	// Observations are pre-normalized points (the HTTP path).
	Observations []curve.Observation
	// ValueKind overrides value-column resolution for file input.
	ValueKind ingest.ValueKind
	// FitConfig overrides the service's configured fit settings for this
	// run. Nil means use the configured defaults.
	FitConfig *curve.FitConfig
}

// RunOutput is the complete result of one pipeline run.
type RunOutput struct {
	RunID     string               `json:"run_id"`
	ValueKind ingest.ValueKind     `json:"value_kind"`
	Selection *selection.Selection `json:"selection"`
	Residuals []curve.Residual     `json:"residuals"`
	Rankings  report.Rankings      `json:"rankings"`
	Stats     curve.DatasetStats   `json:"dataset"`
	RowErrors []ingest.RowError    `json:"row_errors,omitempty"`
	Summary   report.ResidualStats `json:"residual_stats"`
	Elapsed   time.Duration        `json:"-"`
	ElapsedMs int64                `json:"elapsed_ms"`
}

// Run executes acquisition, fitting, and analysis.
func (s *FitService) Run(ctx context.Context, input RunInput) (*RunOutput, error) {
	start := time.Now()
	runID := uuid.New().String()

	obs, valueKind, stats, rowErrors, err := s.acquire(input)
	if err != nil {
		return nil, err
	}
	s.log.Info("run %s: %d observations (%s), tenors %.2f-%.2fy",
		runID, stats.N, valueKind, stats.TenorMin, stats.TenorMax)

	fitCfg := s.cfg.Fit
	if input.FitConfig != nil {
		fitCfg = *input.FitConfig
	}
	// Front-end conditioning toward a level only makes sense for
	// spread-like quantities; auto mode is disabled for plain yields.
	if fitCfg.FrontEndMode == curve.FrontEndAuto && !valueKind.SpreadLike() {
		s.log.Warn("run %s: front_end_mode=auto ignored for value kind %q", runID, valueKind)
		fitCfg.FrontEndMode = curve.FrontEndOff
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sel, err := selection.FitAndSelect(obs, fitCfg)
	if err != nil {
		return nil, err
	}

	residuals, err := report.Residuals(sel.Best.Model, obs)
	if err != nil {
		return nil, err
	}
	rankings := report.RankResiduals(residuals, s.cfg.Export.TopN)

	elapsed := time.Since(start)
	s.log.Info("run %s: selected %s, RMSE %.4f, in %.1fms",
		runID, sel.Best.Model.DisplayName, sel.Best.Quality.RMSE,
		float64(elapsed.Nanoseconds())/1e6)

	return &RunOutput{
		RunID:     runID,
		ValueKind: valueKind,
		Selection: sel,
		Residuals: residuals,
		Rankings:  rankings,
		Stats:     stats,
		RowErrors: rowErrors,
		Summary:   report.SummarizeResiduals(residuals),
		Elapsed:   elapsed,
		ElapsedMs: elapsed.Milliseconds(),
	}, nil
}

func (s *FitService) acquire(input RunInput) ([]curve.Observation, ingest.ValueKind, curve.DatasetStats, []ingest.RowError, error) {
	switch {
	case len(input.Observations) > 0:
		// Inline observations get the same weight default as file input: an
		// omitted weight means 1, not "exclude this point".
		obs := make([]curve.Observation, len(input.Observations))
		copy(obs, input.Observations)
		for i := range obs {
			if obs[i].Weight == 0 {
				obs[i].Weight = 1
			}
		}
		stats, _ := ingest.ComputeStats(obs)
		kind := input.ValueKind
		if kind == "" {
			kind = ingest.ValueSpread
		}
		return obs, kind, stats, nil, nil

	case input.InputPath != "":
		opts := ingest.Options{
			ValueKind:  input.ValueKind,
			WeightMode: s.cfg.Fit.WeightMode,
			TenorMin:   s.cfg.Ingest.TenorMin,
			TenorMax:   s.cfg.Ingest.TenorMax,
		}
		var data *ingest.Data
		var err error
		if isXLSX(input.InputPath) {
			data, err = ingest.LoadXLSX(input.InputPath, opts)
		} else {
			data, err = ingest.LoadCSV(input.InputPath, opts)
		}
		if err != nil {
			return nil, "", curve.DatasetStats{}, nil, err
		}
		for _, re := range data.RowErrors {
			s.log.Warn("%s row %d (%s): %s", input.InputPath, re.Line, re.ID, re.Message)
		}
		return data.Points, data.ValueKind, data.Stats, data.RowErrors, nil

	default:
		obs, err := sample.Generate(sample.Options{
			Count:         s.cfg.Sample.Count,
			Seed:          s.cfg.Sample.Seed,
			TenorMin:      s.cfg.Sample.TenorMin,
			TenorMax:      s.cfg.Sample.TenorMax,
			Noise:         0.06,
			JumpProbWide:  s.cfg.Sample.JumpProbWide,
			JumpProbTight: s.cfg.Sample.JumpProbTight,
			JumpKWide:     s.cfg.Sample.JumpKWide,
			JumpKTight:    s.cfg.Sample.JumpKTight,
		})
		if err != nil {
			return nil, "", curve.DatasetStats{}, nil, err
		}
		stats, _ := ingest.ComputeStats(obs)
		return obs, ingest.ValueSpread, stats, nil, nil
	}
}

// Export writes the configured export artifacts for a completed run.
// Destinations with empty paths are skipped.
func (s *FitService) Export(out *RunOutput) error {
	exp := s.cfg.Export
	if exp.ResultsCSV == "" && exp.CurveJSON == "" && exp.WorkbookXLSX == "" {
		return nil
	}

	doc, err := excel.BuildCurveDoc(out.RunID, string(out.ValueKind), out.Selection, out.Stats, exp.CurveGridSize)
	if err != nil {
		return err
	}
	if exp.ResultsCSV != "" {
		if err := excel.WriteResultsCSV(exp.ResultsCSV, out.Residuals); err != nil {
			return err
		}
		s.log.Info("wrote %s", exp.ResultsCSV)
	}
	if exp.CurveJSON != "" {
		if err := excel.WriteCurveJSON(exp.CurveJSON, doc); err != nil {
			return err
		}
		s.log.Info("wrote %s", exp.CurveJSON)
	}
	if exp.WorkbookXLSX != "" {
		if err := excel.WriteWorkbook(exp.WorkbookXLSX, doc, out.Residuals, out.Rankings); err != nil {
			return err
		}
		s.log.Info("wrote %s", exp.WorkbookXLSX)
	}
	return nil
}

// SummaryText renders the terminal report for a run.
func (s *FitService) SummaryText(out *RunOutput) string {
	return report.FormatSummary(out.Selection, out.Stats, out.Rankings, out.ValueKind.UnitLabel())
}

func isXLSX(path string) bool {
	n := len(path)
	return n > 5 && path[n-5:] == ".xlsx"
}
