package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gutsdata/explorer_backend/models"
	"github.com/xuri/excelize/v2"
)

// WriteWorkbook writes every catalog to w as an xlsx workbook, one sheet
// per catalog. Columns are the sorted union of the records' keys.
func (r *Reader) WriteWorkbook(ctx context.Context, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, name := range Names {
		records, err := r.Records(ctx, name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return err
		}

		columns := columnsOf(records)
		header := make([]any, len(columns))
		for c, col := range columns {
			header[c] = col
		}
		if err := f.SetSheetRow(name, "A1", &header); err != nil {
			return err
		}
		for rowNo, rec := range records {
			row := make([]any, len(columns))
			for c, col := range columns {
				row[c] = cellValue(rec[col])
			}
			cell, err := excelize.CoordinatesToCellName(1, rowNo+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				return err
			}
		}
	}
	return f.Write(w)
}

func columnsOf(records []models.Record) []string {
	seen := map[string]bool{}
	var cols []string
	for _, rec := range records {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

// cellValue converts a decoded JSON value into something excelize renders.
func cellValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		// integers beyond int64 stay text so no digits are lost
		if strings.ContainsAny(t.String(), ".eE") {
			if f, err := t.Float64(); err == nil {
				return f
			}
		}
		return t.String()
	case string, bool:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
