package excel

import (
	"encoding/csv"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"nscurve/adapters/fit/model"
	"nscurve/adapters/fit/selection"
	"nscurve/domain/curve"
	"nscurve/internal/report"
)

func testSelection(frontEnd *float64) *selection.Selection {
	return &selection.Selection{
		Best: curve.FitResult{
			Model: curve.CurveModel{
				Name:        curve.ModelNS,
				DisplayName: "NS",
				Betas:       []float64{100, -20, 50},
				Taus:        []float64{2.0},
			},
			Quality:         curve.FitQuality{SSE: 25, RMSE: 0.5, BIC: -100, N: 100},
			EffectiveParams: 4,
		},
		FrontEndValue: frontEnd,
	}
}

func testStats() curve.DatasetStats {
	return curve.DatasetStats{N: 100, TenorMin: 0.5, TenorMax: 30, ValueMin: 40, ValueMax: 200}
}

func TestBuildCurveDocGridBounds(t *testing.T) {
	doc, err := BuildCurveDoc("run-1", "oas", testSelection(nil), testStats(), 11)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Grid) != 11 {
		t.Fatalf("grid size = %d, want 11", len(doc.Grid))
	}
	if doc.Grid[0].Tenor != 0.5 {
		t.Errorf("grid start = %g, want shortest observed tenor 0.5", doc.Grid[0].Tenor)
	}
	if doc.Grid[len(doc.Grid)-1].Tenor != 30 {
		t.Errorf("grid end = %g, want 30", doc.Grid[len(doc.Grid)-1].Tenor)
	}

	want := model.PredictModel(doc.Best.Model, doc.Grid[3].Tenor)
	if math.Abs(doc.Grid[3].Value-want) > 1e-12 {
		t.Errorf("grid value %g != prediction %g", doc.Grid[3].Value, want)
	}
}

func TestBuildCurveDocStartsAtZeroWithFrontEnd(t *testing.T) {
	zero := 0.0
	doc, err := BuildCurveDoc("run-1", "oas", testSelection(&zero), testStats(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Grid[0].Tenor != 0 {
		t.Errorf("grid start = %g, want 0 when front end is pinned", doc.Grid[0].Tenor)
	}
}

func TestWriteCurveJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curve.json")
	doc, err := BuildCurveDoc("run-json", "spread", testSelection(nil), testStats(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteCurveJSON(path, doc); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var back CurveDoc
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if back.RunID != "run-json" || back.Best.Model.Name != curve.ModelNS {
		t.Errorf("round trip lost fields: %+v", back)
	}
	if len(back.Grid) != 5 {
		t.Errorf("grid size = %d, want 5", len(back.Grid))
	}
}

func sampleResiduals() []curve.Residual {
	return []curve.Residual{
		{Point: curve.Observation{ID: "b1", Tenor: 1, Value: 101, Weight: 1, DV01: 0.5, Issuer: "ACME", Rating: "BBB"}, Fitted: 100, Residual: 1},
		{Point: curve.Observation{ID: "b2", Tenor: 5, Value: 118, Weight: 2}, Fitted: 120, Residual: -2},
	}
}

func TestWriteResultsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	if err := WriteResultsCSV(path, sampleResiduals()); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(records))
	}
	if records[0][0] != "id" || records[1][0] != "b1" || records[2][4] != "-2" {
		t.Errorf("unexpected CSV content: %v", records)
	}
}

func TestWriteWorkbookSheets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fit.xlsx")
	doc, err := BuildCurveDoc("run-wb", "oas", testSelection(nil), testStats(), 4)
	if err != nil {
		t.Fatal(err)
	}
	rankings := report.Rankings{Cheap: sampleResiduals()[:1], Rich: sampleResiduals()[1:]}
	if err := WriteWorkbook(path, doc, sampleResiduals(), rankings); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	for _, sheet := range []string{"Summary", "Results", "Curve"} {
		if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
			t.Errorf("missing sheet %q", sheet)
		}
	}
	rows, err := f.GetRows("Results")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Errorf("Results rows = %d, want header + 2", len(rows))
	}
	curveRows, err := f.GetRows("Curve")
	if err != nil {
		t.Fatal(err)
	}
	if len(curveRows) != 5 {
		t.Errorf("Curve rows = %d, want header + 4", len(curveRows))
	}
}
