// Package excel writes fit outputs to files: a multi-sheet xlsx workbook,
// a per-bond results CSV, and a fitted-curve JSON document.
package excel

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/xuri/excelize/v2"

	"nscurve/adapters/fit/model"
	"nscurve/adapters/fit/selection"
	"nscurve/domain/curve"
	"nscurve/internal/errors"
	"nscurve/internal/report"
)

// CurveDoc is the JSON export shape: the chosen model plus a sampled grid
// of the fitted curve.
type CurveDoc struct {
	RunID     string             `json:"run_id"`
	ValueKind string             `json:"value_kind"`
	Best      curve.FitResult    `json:"best"`
	FrontEnd  *float64           `json:"front_end_value,omitempty"`
	Stats     curve.DatasetStats `json:"dataset"`
	Grid      []CurvePoint       `json:"grid"`
}

// CurvePoint is one sampled point of the fitted curve.
type CurvePoint struct {
	Tenor float64 `json:"tenor_years"`
	Value float64 `json:"value"`
}

// BuildCurveDoc samples the best fit over gridSize points. The grid starts
// at zero when a front-end constraint pinned y(0), otherwise at the
// shortest observed tenor, and always ends at the longest observed tenor.
func BuildCurveDoc(runID, valueKind string, sel *selection.Selection, ds curve.DatasetStats, gridSize int) (*CurveDoc, error) {
	if gridSize < 2 {
		return nil, errors.ExportError("curve grid needs at least 2 points", nil)
	}
	start := ds.TenorMin
	if sel.FrontEndValue != nil {
		start = 0
	}
	tenors, values := model.Grid(sel.Best.Model, start, ds.TenorMax, gridSize)

	grid := make([]CurvePoint, len(tenors))
	for i := range tenors {
		grid[i] = CurvePoint{Tenor: tenors[i], Value: values[i]}
	}
	return &CurveDoc{
		RunID:     runID,
		ValueKind: valueKind,
		Best:      sel.Best,
		FrontEnd:  sel.FrontEndValue,
		Stats:     ds,
		Grid:      grid,
	}, nil
}

// WriteCurveJSON writes the curve document as indented JSON.
func WriteCurveJSON(path string, doc *CurveDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode curve document")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write curve JSON %q", path)
	}
	return nil
}

var resultsHeader = []string{
	"id", "tenor_years", "observed", "fitted", "residual",
	"weight", "dv01", "issuer", "rating",
}

// WriteResultsCSV writes one row per bond with its fitted value and residual.
func WriteResultsCSV(path string, residuals []curve.Residual) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create results CSV %q", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(resultsHeader); err != nil {
		return errors.Wrap(err, "failed to write CSV header")
	}
	for _, r := range residuals {
		rec := []string{
			r.Point.ID,
			formatFloat(r.Point.Tenor),
			formatFloat(r.Point.Value),
			formatFloat(r.Fitted),
			formatFloat(r.Residual),
			formatFloat(r.Point.Weight),
			formatFloat(r.Point.DV01),
			r.Point.Issuer,
			r.Point.Rating,
		}
		if err := w.Write(rec); err != nil {
			return errors.Wrapf(err, "failed to write CSV row for %s", r.Point.ID)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "failed to flush results CSV")
	}
	return nil
}

// WriteWorkbook writes a three-sheet xlsx: Summary (model, parameters,
// diagnostics), Results (per-bond), and Curve (the sampled fitted grid).
func WriteWorkbook(path string, doc *CurveDoc, residuals []curve.Residual, rankings report.Rankings) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeSummarySheet(f, doc, rankings); err != nil {
		return err
	}
	if err := writeResultsSheet(f, residuals); err != nil {
		return err
	}
	if err := writeCurveSheet(f, doc.Grid); err != nil {
		return err
	}

	// The default sheet is replaced by Summary.
	f.DeleteSheet("Sheet1")
	if idx, err := f.GetSheetIndex("Summary"); err == nil {
		f.SetActiveSheet(idx)
	}

	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "failed to save workbook %q", path)
	}
	return nil
}

func writeSummarySheet(f *excelize.File, doc *CurveDoc, rankings report.Rankings) error {
	const sheet = "Summary"
	if _, err := f.NewSheet(sheet); err != nil {
		return errors.Wrap(err, "failed to create Summary sheet")
	}

	best := doc.Best
	rows := [][]interface{}{
		{"Run ID", doc.RunID},
		{"Value kind", doc.ValueKind},
		{"Model", best.Model.DisplayName},
		{"Betas", fmt.Sprintf("%v", best.Model.Betas)},
		{"Taus (years)", fmt.Sprintf("%v", best.Model.Taus)},
		{"N", best.Quality.N},
		{"Effective params", best.EffectiveParams},
		{"SSE", best.Quality.SSE},
		{"RMSE", best.Quality.RMSE},
		{"BIC", best.Quality.BIC},
	}
	if doc.FrontEnd != nil {
		rows = append(rows, []interface{}{"Front end y(0)", *doc.FrontEnd})
	}
	if best.MonotoneMode != curve.MonotoneNone && best.MonotoneMode != "" {
		rows = append(rows, []interface{}{"Short-end guardrail", string(best.MonotoneMode)},
			[]interface{}{"Guardrail applied", best.MonotoneApplied})
	}
	if best.RobustIters > 0 {
		rows = append(rows, []interface{}{"Robust reweight passes", best.RobustIters})
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrap(err, "failed to write Summary row")
		}
	}

	writeRankingRows(f, sheet, len(rows)+2, "Cheapest to curve", rankings.Cheap)
	writeRankingRows(f, sheet, len(rows)+4+len(rankings.Cheap), "Richest to curve", rankings.Rich)
	return nil
}

func writeRankingRows(f *excelize.File, sheet string, startRow int, title string, rows []curve.Residual) {
	if len(rows) == 0 {
		return
	}
	cell, _ := excelize.CoordinatesToCellName(1, startRow)
	header := []interface{}{title, "tenor_years", "observed", "fitted", "residual"}
	_ = f.SetSheetRow(sheet, cell, &header)
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, startRow+1+i)
		row := []interface{}{r.Point.ID, r.Point.Tenor, r.Point.Value, r.Fitted, r.Residual}
		_ = f.SetSheetRow(sheet, cell, &row)
	}
}

func writeResultsSheet(f *excelize.File, residuals []curve.Residual) error {
	const sheet = "Results"
	if _, err := f.NewSheet(sheet); err != nil {
		return errors.Wrap(err, "failed to create Results sheet")
	}

	header := make([]interface{}, len(resultsHeader))
	for i, h := range resultsHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return errors.Wrap(err, "failed to write Results header")
	}
	for i, r := range residuals {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{
			r.Point.ID, r.Point.Tenor, r.Point.Value, r.Fitted, r.Residual,
			r.Point.Weight, r.Point.DV01, r.Point.Issuer, r.Point.Rating,
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrapf(err, "failed to write Results row for %s", r.Point.ID)
		}
	}
	return nil
}

func writeCurveSheet(f *excelize.File, grid []CurvePoint) error {
	const sheet = "Curve"
	if _, err := f.NewSheet(sheet); err != nil {
		return errors.Wrap(err, "failed to create Curve sheet")
	}

	header := []interface{}{"tenor_years", "value"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return errors.Wrap(err, "failed to write Curve header")
	}
	for i, p := range grid {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{p.Tenor, p.Value}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrap(err, "failed to write Curve row")
		}
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
