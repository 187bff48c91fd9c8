package agronomy

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// LoadCropTable reads crop curves from a .csv or .xlsx file and merges them into
// p. One row per crop; the header names the columns (see cropColumns).
func LoadCropTable(p Params, path string) (Params, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err = readXLSXRows(path)
	case ".csv":
		rows, err = readCSVRows(path)
	default:
		return p, fmt.Errorf("unsupported crop table format: %s", path)
	}
	if err != nil {
		return p, err
	}

	crops, err := parseCropRows(rows)
	if err != nil {
		return p, fmt.Errorf("crop table %s: %w", filepath.Base(path), err)
	}

	out := p.clone()
	for name, c := range crops {
		out.Crops[name] = c
	}
	return out, out.Validate()
}

func readCSVRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open crop table: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read crop table: %w", err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func readXLSXRows(path string) ([][]string, error) {
	x, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open crop workbook: %w", err)
	}
	defer x.Close()

	sheet := x.GetSheetName(0)
	if sheet == "" {
		return nil, errors.New("crop workbook has no sheets")
	}
	rows, err := x.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func normHeader(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "\uFEFF")
	s = strings.ToLower(s)
	return strings.NewReplacer(" ", "", "-", "", "_", "").Replace(s)
}

// cropColumns lists accepted header aliases per field.
var cropColumns = map[string][]string{
	"crop":     {"crop", "crop_type", "species"},
	"kc1":      {"kc_initial", "kc1", "kc_ini"},
	"kc2":      {"kc_development", "kc2", "kc_dev"},
	"kc3":      {"kc_mid", "kc3", "kc_mid_season"},
	"kc4":      {"kc_late", "kc4", "kc_end"},
	"d1":       {"stage1_days", "initial_days", "d1"},
	"d2":       {"stage2_days", "development_days", "d2"},
	"d3":       {"stage3_days", "mid_days", "d3"},
	"d4":       {"stage4_days", "late_days", "d4"},
	"temp":     {"sensitivity_temp", "temp_sensitivity"},
	"humidity": {"sensitivity_humidity", "humidity_sensitivity"},
	"max":      {"max_liters_per_m2", "max_lpd", "daily_cap"},
}

var requiredCropColumns = []string{"crop", "kc1", "kc2", "kc3", "kc4", "d1", "d2", "d3", "d4"}

func parseCropRows(rows [][]string) (map[Crop]CropParams, error) {
	if len(rows) == 0 {
		return nil, errors.New("empty table")
	}
	hmap := map[string]int{}
	for i, h := range rows[0] {
		hmap[normHeader(h)] = i
	}
	col := map[string]int{}
	for field, aliases := range cropColumns {
		col[field] = -1
		for _, a := range aliases {
			if idx, ok := hmap[normHeader(a)]; ok {
				col[field] = idx
				break
			}
		}
	}
	for _, field := range requiredCropColumns {
		if col[field] == -1 {
			return nil, fmt.Errorf("missing required column %q (found headers: %v)", field, rows[0])
		}
	}

	out := map[Crop]CropParams{}
	for n, rec := range rows[1:] {
		get := func(field string) string {
			idx := col[field]
			if idx < 0 || idx >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[idx])
		}
		num := func(field string, def float64) (float64, error) {
			s := get(field)
			if s == "" {
				return def, nil
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return 0, fmt.Errorf("row %d: %s: %w", n+2, field, err)
			}
			return v, nil
		}

		name := get("crop")
		if name == "" {
			continue
		}
		var c CropParams
		var err error
		vals := make([]float64, 0, 8)
		for _, field := range []string{"kc1", "kc2", "kc3", "kc4", "d1", "d2", "d3", "d4"} {
			v, perr := num(field, 0)
			if perr != nil {
				return nil, perr
			}
			vals = append(vals, v)
		}
		c.BaseKc = vals[:4]
		c.StageDays = vals[4:]
		if c.TempSensitivity, err = num("temp", 0.02); err != nil {
			return nil, err
		}
		if c.HumiditySensitivity, err = num("humidity", 0.01); err != nil {
			return nil, err
		}
		if c.MaxLitersPerM2, err = num("max", 1.5); err != nil {
			return nil, err
		}
		out[ParseCrop(name)] = c
	}
	return out, nil
}
