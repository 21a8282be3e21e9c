// Package ingest turns heterogeneous bond-list files (CSV or xlsx) into a
// clean set of observations that are safe to fit.
//
// Design goals:
//   - strict schema for required fields, with clear errors
//   - row-level validation: bad rows are skipped but reported
//   - deterministic behavior, no hidden randomness
//   - no fitting logic here
package ingest

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"nscurve/domain/curve"
	"nscurve/internal/errors"
)

// ValueKind names the observed quantity being fitted.
type ValueKind string

const (
	ValueAuto   ValueKind = "auto"
	ValueOAS    ValueKind = "oas"
	ValueSpread ValueKind = "spread"
	ValueYield  ValueKind = "yield"
)

// UnitLabel returns the conventional display unit for the value kind.
func (v ValueKind) UnitLabel() string {
	switch v {
	case ValueOAS, ValueSpread:
		return "bp"
	default:
		return "decimal"
	}
}

// SpreadLike reports whether the value kind is a credit spread, where
// front-end conditioning toward zero is meaningful.
func (v ValueKind) SpreadLike() bool {
	return v == ValueOAS || v == ValueSpread
}

// Options controls ingestion and normalization.
type Options struct {
	ValueKind  ValueKind
	WeightMode curve.WeightMode

	// Tenor window filter (years). Rows outside are silently dropped.
	TenorMin float64
	TenorMax float64
}

// RowError is a row-level problem encountered during ingestion.
type RowError struct {
	Line    int    `json:"line"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

// Data is the ingestion output: normalized points plus diagnostics.
type Data struct {
	Points    []curve.Observation `json:"points"`
	ValueKind ValueKind           `json:"value_kind"`
	Stats     curve.DatasetStats  `json:"stats"`
	RowErrors []RowError          `json:"row_errors,omitempty"`
	RowsRead  int                 `json:"rows_read"`
	RowsUsed  int                 `json:"rows_used"`
}

// LoadCSV reads and normalizes a bond-list CSV.
func LoadCSV(path string, opts Options) (*Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open CSV %q", path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse CSV %q", path)
	}
	if len(records) == 0 {
		return nil, errors.IngestError("CSV file is empty")
	}
	return FromRecords(records[0], records[1:], opts)
}

// LoadXLSX reads and normalizes the first sheet of a bond-list workbook.
func LoadXLSX(path string, opts Options) (*Data, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open workbook %q", path)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.IngestError("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read sheet %q", sheets[0])
	}
	if len(rows) == 0 {
		return nil, errors.IngestError("workbook sheet is empty")
	}
	return FromRecords(rows[0], rows[1:], opts)
}

// FromRecords normalizes already-parsed tabular data. The header row is
// matched case-insensitively with a BOM-stripped first cell (Excel emits
// UTF-8 CSVs with a BOM prefix on the first header).
func FromRecords(header []string, rows [][]string, opts Options) (*Data, error) {
	cols := buildHeaderMap(header)

	kind, err := resolveValueKind(opts.ValueKind, cols)
	if err != nil {
		return nil, err
	}
	if err := ensureWeightColumns(opts.WeightMode, cols); err != nil {
		return nil, err
	}
	if _, ok := cols["id"]; !ok {
		return nil, errors.IngestError("missing required column: id")
	}
	if _, ok := cols["tenor_years"]; !ok {
		return nil, errors.IngestError("missing required column: tenor_years")
	}

	data := &Data{ValueKind: kind}
	for i, rec := range rows {
		line := i + 2 // 1-based, after the header row
		data.RowsRead++

		point, skip, rowErr := normalizeRow(rec, cols, kind, opts)
		if rowErr != "" {
			data.RowErrors = append(data.RowErrors, RowError{
				Line:    line,
				ID:      cell(rec, cols, "id"),
				Message: rowErr,
			})
			continue
		}
		if skip {
			continue
		}
		data.Points = append(data.Points, point)
	}

	data.RowsUsed = len(data.Points)
	if data.RowsUsed == 0 {
		return nil, errors.IngestError("no valid rows remain after normalization/filtering")
	}

	stats, ok := ComputeStats(data.Points)
	if !ok {
		return nil, errors.IngestError("no valid points remain after normalization/filtering")
	}
	data.Stats = stats
	return data, nil
}

func buildHeaderMap(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for idx, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF"))
		cols[strings.ToLower(name)] = idx
	}
	return cols
}

// resolveValueKind resolves "auto" from the columns that exist, preferring
// oas over spread over yield.
func resolveValueKind(kind ValueKind, cols map[string]int) (ValueKind, error) {
	if kind != "" && kind != ValueAuto {
		if _, ok := cols[string(kind)]; !ok {
			return "", errors.Newf(errors.CodeIngestError, "missing required column for value kind %q", kind)
		}
		return kind, nil
	}
	for _, k := range []ValueKind{ValueOAS, ValueSpread, ValueYield} {
		if _, ok := cols[string(k)]; ok {
			return k, nil
		}
	}
	return "", errors.IngestError("could not resolve value kind: none of oas, spread, or yield columns found")
}

func ensureWeightColumns(mode curve.WeightMode, cols map[string]int) error {
	switch mode {
	case curve.WeightDV01, curve.WeightDV01Weight:
		if _, ok := cols["dv01"]; !ok {
			return errors.Newf(errors.CodeIngestError, "weight mode %q requires a dv01 column", mode)
		}
	}
	return nil
}

func normalizeRow(rec []string, cols map[string]int, kind ValueKind, opts Options) (curve.Observation, bool, string) {
	id := cell(rec, cols, "id")
	if id == "" {
		return curve.Observation{}, false, "missing id"
	}

	tenor, ok := parseFloat(cell(rec, cols, "tenor_years"))
	if !ok || !(tenor > 0) || math.IsInf(tenor, 0) {
		return curve.Observation{}, false, "missing/invalid tenor_years (must be finite and > 0)"
	}

	value, ok := parseFloat(cell(rec, cols, string(kind)))
	if !ok || math.IsInf(value, 0) {
		return curve.Observation{}, false, fmt.Sprintf("missing/invalid %s value", kind)
	}

	weightCol, hasWeight := optFloat(rec, cols, "weight")
	dv01, hasDV01 := optFloat(rec, cols, "dv01")

	weight, werr := resolveWeight(opts.WeightMode, weightCol, hasWeight, dv01, hasDV01)
	if werr != "" {
		return curve.Observation{}, false, werr
	}

	// Tenor window filter: outside rows are dropped without error.
	if opts.TenorMax > 0 && (tenor < opts.TenorMin || tenor > opts.TenorMax) {
		return curve.Observation{}, true, ""
	}

	return curve.Observation{
		ID:     id,
		Tenor:  tenor,
		Value:  value,
		Weight: weight,
		DV01:   dv01,
		Issuer: cell(rec, cols, "issuer"),
		Rating: cell(rec, cols, "rating"),
	}, false, ""
}

// resolveWeight applies the configured weighting source. dv01-based modes
// square the sensitivity so large-DV01 bonds anchor the curve.
func resolveWeight(mode curve.WeightMode, weightCol float64, hasWeight bool, dv01 float64, hasDV01 bool) (float64, string) {
	validDV01 := func() (float64, string) {
		if !hasDV01 {
			return 0, "dv01 weight mode requires a dv01 value"
		}
		if !(dv01 > 0) || math.IsInf(dv01, 0) {
			return 0, "invalid dv01 (must be finite and > 0)"
		}
		return dv01 * dv01, ""
	}

	switch mode {
	case curve.WeightUniform:
		return 1, ""
	case curve.WeightColumn:
		if !hasWeight {
			return 1, ""
		}
		if weightCol < 0 || math.IsInf(weightCol, 0) {
			return 0, "invalid weight (must be finite and >= 0)"
		}
		return weightCol, ""
	case curve.WeightDV01:
		return validDV01()
	case curve.WeightDV01Weight:
		d2, werr := validDV01()
		if werr != "" {
			return 0, werr
		}
		w := 1.0
		if hasWeight {
			if weightCol < 0 || math.IsInf(weightCol, 0) {
				return 0, "invalid weight (must be finite and >= 0)"
			}
			w = weightCol
		}
		return d2 * w, ""
	default: // WeightAuto
		if hasDV01 && dv01 > 0 && !math.IsInf(dv01, 0) {
			return dv01 * dv01, ""
		}
		if hasWeight && weightCol >= 0 && !math.IsInf(weightCol, 0) {
			return weightCol, ""
		}
		return 1, ""
	}
}

// ComputeStats summarizes the tenor and value ranges of a point set.
func ComputeStats(points []curve.Observation) (curve.DatasetStats, bool) {
	if len(points) == 0 {
		return curve.DatasetStats{}, false
	}
	s := curve.DatasetStats{
		N:        len(points),
		TenorMin: points[0].Tenor,
		TenorMax: points[0].Tenor,
		ValueMin: points[0].Value,
		ValueMax: points[0].Value,
	}
	for _, p := range points[1:] {
		s.TenorMin = math.Min(s.TenorMin, p.Tenor)
		s.TenorMax = math.Max(s.TenorMax, p.Tenor)
		s.ValueMin = math.Min(s.ValueMin, p.Value)
		s.ValueMax = math.Max(s.ValueMax, p.Value)
	}
	return s, true
}

func cell(rec []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[idx])
}

func optFloat(rec []string, cols map[string]int, name string) (float64, bool) {
	raw := cell(rec, cols, name)
	if raw == "" {
		return 0, false
	}
	v, ok := parseFloat(raw)
	return v, ok
}

func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
