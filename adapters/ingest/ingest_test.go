package ingest

import (
	"math"
	"testing"

	"nscurve/domain/curve"
	"nscurve/internal/errors"
)

func header(names ...string) []string { return names }

func TestFromRecordsBasicCSVShape(t *testing.T) {
	data, err := FromRecords(
		header("id", "tenor_years", "oas", "weight"),
		[][]string{
			{"b1", "0.5", "80", "1"},
			{"b2", "2", "120", "2"},
			{"b3", "10", "150", ""},
		},
		Options{},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data.ValueKind != ValueOAS {
		t.Errorf("value kind = %q, want oas", data.ValueKind)
	}
	if data.RowsRead != 3 || data.RowsUsed != 3 {
		t.Errorf("rows read/used = %d/%d, want 3/3", data.RowsRead, data.RowsUsed)
	}
	if len(data.RowErrors) != 0 {
		t.Errorf("unexpected row errors: %v", data.RowErrors)
	}
	if data.Stats.TenorMin != 0.5 || data.Stats.TenorMax != 10 {
		t.Errorf("tenor stats = [%g, %g], want [0.5, 10]", data.Stats.TenorMin, data.Stats.TenorMax)
	}
}

func TestValueKindAutoPrefersOASOverSpreadOverYield(t *testing.T) {
	cases := []struct {
		cols []string
		want ValueKind
	}{
		{[]string{"id", "tenor_years", "yield", "spread", "oas"}, ValueOAS},
		{[]string{"id", "tenor_years", "yield", "spread"}, ValueSpread},
		{[]string{"id", "tenor_years", "yield"}, ValueYield},
	}
	for _, tc := range cases {
		row := make([]string, len(tc.cols))
		row[0], row[1] = "b1", "1"
		for i := 2; i < len(row); i++ {
			row[i] = "100"
		}
		data, err := FromRecords(tc.cols, [][]string{row, append([]string(nil), row...)}, Options{ValueKind: ValueAuto})
		if err != nil {
			t.Fatalf("%v: %v", tc.cols, err)
		}
		if data.ValueKind != tc.want {
			t.Errorf("cols %v resolved to %q, want %q", tc.cols, data.ValueKind, tc.want)
		}
	}
}

func TestExplicitValueKindMissingColumn(t *testing.T) {
	_, err := FromRecords(
		header("id", "tenor_years", "yield"),
		[][]string{{"b1", "1", "0.04"}},
		Options{ValueKind: ValueOAS},
	)
	if !errors.HasCode(err, errors.CodeIngestError) {
		t.Fatalf("expected INGEST_ERROR, got %v", err)
	}
}

func TestBOMStrippedHeader(t *testing.T) {
	data, err := FromRecords(
		header("\uFEFFID", "Tenor_Years", "OAS"),
		[][]string{{"b1", "1", "100"}, {"b2", "5", "140"}},
		Options{},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data.RowsUsed != 2 {
		t.Errorf("rows used = %d, want 2", data.RowsUsed)
	}
}

func TestRowErrorsCollectedNotFatal(t *testing.T) {
	data, err := FromRecords(
		header("id", "tenor_years", "spread"),
		[][]string{
			{"b1", "1", "100"},
			{"", "2", "110"},       // missing id
			{"b3", "-1", "120"},    // bad tenor
			{"b4", "3", "oops"},    // bad value
			{"b5", "4", "130"},
		},
		Options{},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data.RowsUsed != 2 {
		t.Errorf("rows used = %d, want 2", data.RowsUsed)
	}
	if len(data.RowErrors) != 3 {
		t.Fatalf("row errors = %d, want 3: %v", len(data.RowErrors), data.RowErrors)
	}
	if data.RowErrors[0].Line != 3 {
		t.Errorf("first row error line = %d, want 3", data.RowErrors[0].Line)
	}
	if data.RowErrors[1].ID != "b3" {
		t.Errorf("second row error id = %q, want b3", data.RowErrors[1].ID)
	}
}

func TestTenorWindowFilterDropsSilently(t *testing.T) {
	data, err := FromRecords(
		header("id", "tenor_years", "oas"),
		[][]string{
			{"short", "0.05", "50"},
			{"in1", "1", "100"},
			{"in2", "5", "130"},
			{"long", "40", "160"},
		},
		Options{TenorMin: 0.1, TenorMax: 30},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data.RowsUsed != 2 {
		t.Errorf("rows used = %d, want 2", data.RowsUsed)
	}
	if len(data.RowErrors) != 0 {
		t.Errorf("window filtering must not produce row errors: %v", data.RowErrors)
	}
}

func TestResolveWeightModes(t *testing.T) {
	cases := []struct {
		name      string
		mode      curve.WeightMode
		w         float64
		hasW      bool
		dv01      float64
		hasDV01   bool
		want      float64
		wantError bool
	}{
		{"uniform ignores columns", curve.WeightUniform, 5, true, 3, true, 1, false},
		{"weight column", curve.WeightColumn, 2.5, true, 0, false, 2.5, false},
		{"weight column absent defaults to 1", curve.WeightColumn, 0, false, 0, false, 1, false},
		{"dv01 squares", curve.WeightDV01, 0, false, 3, true, 9, false},
		{"dv01 missing errors", curve.WeightDV01, 0, false, 0, false, 0, true},
		{"dv01 non-positive errors", curve.WeightDV01, 0, false, 0, true, 0, true},
		{"dv01-weight multiplies", curve.WeightDV01Weight, 2, true, 3, true, 18, false},
		{"auto prefers dv01", curve.WeightAuto, 2, true, 3, true, 9, false},
		{"auto falls back to weight", curve.WeightAuto, 2, true, 0, false, 2, false},
		{"auto falls back to 1", curve.WeightAuto, 0, false, 0, false, 1, false},
	}
	for _, tc := range cases {
		got, msg := resolveWeight(tc.mode, tc.w, tc.hasW, tc.dv01, tc.hasDV01)
		if tc.wantError {
			if msg == "" {
				t.Errorf("%s: expected error", tc.name)
			}
			continue
		}
		if msg != "" {
			t.Errorf("%s: unexpected error %q", tc.name, msg)
			continue
		}
		if math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("%s: weight = %g, want %g", tc.name, got, tc.want)
		}
	}
}

func TestDV01ModeRequiresColumn(t *testing.T) {
	_, err := FromRecords(
		header("id", "tenor_years", "oas"),
		[][]string{{"b1", "1", "100"}},
		Options{WeightMode: curve.WeightDV01},
	)
	if !errors.HasCode(err, errors.CodeIngestError) {
		t.Fatalf("expected INGEST_ERROR for missing dv01 column, got %v", err)
	}
}

func TestAllRowsInvalidIsFatal(t *testing.T) {
	_, err := FromRecords(
		header("id", "tenor_years", "oas"),
		[][]string{{"b1", "bad", "100"}},
		Options{},
	)
	if !errors.HasCode(err, errors.CodeIngestError) {
		t.Fatalf("expected INGEST_ERROR when nothing survives, got %v", err)
	}
}

func TestMetadataCarriedThrough(t *testing.T) {
	data, err := FromRecords(
		header("id", "tenor_years", "oas", "dv01", "issuer", "rating"),
		[][]string{{"b1", "2", "110", "0.8", "ACME", "BBB"}, {"b2", "7", "140", "1.4", "ACME", "BBB-"}},
		Options{WeightMode: curve.WeightDV01},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := data.Points[0]
	if p.Issuer != "ACME" || p.Rating != "BBB" {
		t.Errorf("metadata lost: %+v", p)
	}
	if math.Abs(p.Weight-0.64) > 1e-12 {
		t.Errorf("dv01 weight = %g, want 0.64", p.Weight)
	}
}
