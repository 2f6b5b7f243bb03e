package file

import (
	"UberFareAnalysis/src/config"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"
)

const sampleCSV = `,key,fare_amount,pickup_datetime,pickup_longitude,pickup_latitude,dropoff_longitude,dropoff_latitude,passenger_count
1,k1,7.5,2015-05-07 19:52:06 UTC,-73.999817,40.738354,-73.999512,40.723217,1
2,k2,7.7,2009-07-17 20:04:56 UTC,-73.994355,40.728225,-73.99471,40.750325,1
3,k3,12.9,2009-08-24 21:45:00 UTC,-74.005043,40.74077,-73.962565,40.772647,
4,k4,,2009-06-26 08:22:21 UTC,-73.976124,40.790844,-73.965316,40.803349,3
`

func defaultColumns() config.Columns {
	return config.DefaultDataConfig().Columns
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadCSV(t *testing.T) {
	path := writeTemp(t, "uber.csv", sampleCSV)

	df, err := Load(path, "", defaultColumns())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if df.Nrow() != 4 {
		t.Fatalf("Nrow = %d, want 4", df.Nrow())
	}
	if got := df.Col("fare_amount").Type(); got != series.Float {
		t.Errorf("fare_amount type = %v", got)
	}
	if got := df.Col("passenger_count").Type(); got != series.Int {
		t.Errorf("passenger_count type = %v", got)
	}
	if !df.Col("passenger_count").Elem(2).IsNA() {
		t.Error("empty passenger_count should be NA")
	}
	if !df.Col("fare_amount").Elem(3).IsNA() {
		t.Error("empty fare_amount should be NA")
	}
	// 空标题列沿用 pandas 的命名
	if names := df.Names(); names[0] != "Unnamed: 0" {
		t.Errorf("first column = %q, want \"Unnamed: 0\"", names[0])
	}
}

func TestReadCSVErrors(t *testing.T) {
	if _, err := ReadCSV(filepath.Join(t.TempDir(), "nope.csv"), defaultColumns()); err == nil {
		t.Fatal("expected error for missing file")
	}

	path := writeTemp(t, "partial.csv", "fare_amount,passenger_count\n1.5,1\n")
	_, err := ReadCSV(path, defaultColumns())
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}

	if _, err := Load(writeTemp(t, "trips.json", "{}"), "", defaultColumns()); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestReadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uber.xlsx")
	f := excelize.NewFile()
	rows := [][]interface{}{
		{"key", "fare_amount", "pickup_datetime", "pickup_longitude", "pickup_latitude", "dropoff_longitude", "dropoff_latitude", "passenger_count"},
		{"k1", 7.5, "2015-05-07 19:52:06 UTC", -73.999817, 40.738354, -73.999512, 40.723217, 1},
		{"k2", 16, 42000.5, -73.925023, 40.744085, -73.973082, 40.761247, 5},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	f.Close()

	df, err := Load(path, "Sheet1", defaultColumns())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if df.Nrow() != 2 {
		t.Fatalf("Nrow = %d, want 2", df.Nrow())
	}
	if got := df.Col("pickup_datetime").Elem(1).String(); got != "2014-12-27 12:00:00" {
		t.Errorf("excel serial converted to %q", got)
	}
	if v, _ := df.Col("passenger_count").Elem(1).Int(); v != 5 {
		t.Errorf("passenger_count = %d", v)
	}

	if _, err := Load(path, "Missing", defaultColumns()); err == nil {
		t.Fatal("expected error for missing sheet")
	}
}

func TestExcelToTime(t *testing.T) {
	cases := map[string]string{
		"42000":                   "2014-12-27 00:00:00",
		"42000.25":                "2014-12-27 06:00:00",
		"2015-05-07 19:52:06 UTC": "2015-05-07 19:52:06 UTC",
		"":                        "",
	}
	for in, want := range cases {
		if got := excelToTime(in); got != want {
			t.Errorf("excelToTime(%q) = %q, want %q", in, got, want)
		}
	}
}
