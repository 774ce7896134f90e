package csvio

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/navid-fn/barpipe/internal/model"
)

func TestExportCSV(t *testing.T) {
	im, store := testImporter(t)
	ctx := context.Background()

	path := writeCSV(t, t.TempDir(), "rb2401_1min.csv", sampleCSV)
	if _, err := im.ImportFile(ctx, path, "rb2401", "SHFE"); err != nil {
		t.Fatalf("ImportFile: %v", err)
	}

	var out strings.Builder
	n, err := ExportCSV(ctx, store, &out, "rb2401", "SHFE", model.IntervalMinute,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local),
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.Local))
	if err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	if n != 2 {
		t.Errorf("exported %d rows, want 2", n)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("output has %d lines, want header plus 2 rows:\n%s", len(lines), out.String())
	}
	if lines[0] != "symbol,exchange,datetime,open,high,low,close,volume,turnover,open_interest" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "rb2401,SHFE,2024-01-16 09:00:00,3890,3895,3888,3892,120,0,15000" {
		t.Errorf("first row = %q", lines[1])
	}
}

func TestExportCSVEmptyRange(t *testing.T) {
	_, store := testImporter(t)

	var out strings.Builder
	n, err := ExportCSV(context.Background(), store, &out, "rb2401", "SHFE", model.IntervalDaily,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local),
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.Local))
	if err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	if n != 0 {
		t.Errorf("exported %d rows, want 0", n)
	}
	if lines := strings.Split(strings.TrimSpace(out.String()), "\n"); len(lines) != 1 {
		t.Errorf("empty export should still write the header only, got %q", out.String())
	}
}
