package assemble

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/datasciencecampus/transport-network-performance/internal/model"
	"github.com/datasciencecampus/transport-network-performance/internal/urbancentre"
)

var tableHeader = []string{
	"cell_id", "row", "col", "centroid_x", "centroid_y",
	"population", "performance", "samples", "min", "max",
}

// tableRow is one record flattened for tabular export. Undefined
// performance stays as empty strings rather than zeros.
func tableRow(grid *model.Grid, rec model.PerformanceRecord) []string {
	cell := grid.Cell(rec.CellID)
	row := []string{
		strconv.Itoa(rec.CellID),
		strconv.Itoa(cell.Row),
		strconv.Itoa(cell.Col),
		formatFloat(cell.Centroid.X),
		formatFloat(cell.Centroid.Y),
		formatFloat(cell.Population),
	}
	if rec.Defined {
		row = append(row,
			formatFloat(rec.Value),
			strconv.Itoa(rec.Samples),
			formatFloat(rec.Min),
			formatFloat(rec.Max),
		)
	} else {
		row = append(row, "", strconv.Itoa(rec.Samples), "", "")
	}
	return row
}

// WriteCSV writes one row per record, restricted to cells in the mask.
func WriteCSV(w io.Writer, grid *model.Grid, mask *urbancentre.Mask, records []model.PerformanceRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tableHeader); err != nil {
		return eris.Wrap(err, "assemble: write csv header")
	}

	for _, rec := range records {
		if !mask.Contains(rec.CellID) {
			continue
		}
		if err := cw.Write(tableRow(grid, rec)); err != nil {
			return eris.Wrapf(err, "assemble: write csv row for cell %d", rec.CellID)
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "assemble: flush csv")
}

// WriteXLSX writes the same table as a spreadsheet, one sheet of records
// plus a summary sheet when stats are given.
func WriteXLSX(path string, grid *model.Grid, mask *urbancentre.Mask, records []model.PerformanceRecord, summary *model.RunSummary) error {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet("performance")
	if err != nil {
		return eris.Wrap(err, "assemble: add performance sheet")
	}

	hdr := sheet.AddRow()
	for _, h := range tableHeader {
		hdr.AddCell().SetString(h)
	}

	for _, rec := range records {
		if !mask.Contains(rec.CellID) {
			continue
		}
		row := sheet.AddRow()
		for _, v := range tableRow(grid, rec) {
			row.AddCell().SetString(v)
		}
	}

	if summary != nil {
		if err := addSummarySheet(f, summary); err != nil {
			return err
		}
	}

	return eris.Wrapf(f.Save(path), "assemble: save xlsx %s", path)
}

func addSummarySheet(f *xlsx.File, summary *model.RunSummary) error {
	sheet, err := f.AddSheet("summary")
	if err != nil {
		return eris.Wrap(err, "assemble: add summary sheet")
	}

	add := func(key string, value string) {
		row := sheet.AddRow()
		row.AddCell().SetString(key)
		row.AddCell().SetString(value)
	}

	add("cells", strconv.Itoa(summary.Cells))
	add("core_cells", strconv.Itoa(summary.CoreCells))
	add("defined_cells", strconv.Itoa(summary.DefinedCells))
	add("samples_requested", strconv.Itoa(summary.SamplesRequested))
	add("samples_used", strconv.Itoa(summary.SamplesUsed))
	add("samples_failed", strconv.Itoa(summary.SamplesFailed))
	add("min", formatFloat(summary.Min))
	add("median", formatFloat(summary.Median))
	add("max", formatFloat(summary.Max))
	return nil
}
