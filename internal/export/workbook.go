package export

import (
	"fmt"
	"math"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/repair-orders/internal/entity"
)

const (
	ReportSheet  = "Отчёт"
	JournalSheet = "Журнал"
)

// Columns is the accounting import layout. Order and labels are fixed.
var Columns = []string{"СТО", "Неделя", "Госномер/VIN", "Пробег", "Наименование работ", "Кол-во", "Цена", "Сумма"}

var journalColumns = []string{"Наименование работ", "Кол-во", "Цена", "Сумма"}

// JournalRows renders the write-back block for one batch: a header line,
// the column header, one line per item, a totals line and a blank line.
func JournalRows(b entity.OrderBatch) [][]any {
	id := b.Plate
	if id == "" {
		id = b.VIN
	}
	rows := [][]any{
		{fmt.Sprintf("Пакет #%d", b.ID), b.StationName, b.WeekLabel, id, b.Mileage},
		toAny(journalColumns),
	}
	for _, it := range b.Items {
		rows = append(rows, []any{it.WorkName, it.Quantity, it.Price, it.Total})
	}
	rows = append(rows, []any{"Итого", "", "", round2(b.Sum())}, []any{})
	return rows
}

// Workbook renders export rows into the report sheet and, when batches are
// given, their journal blocks into a second sheet.
func Workbook(rows []entity.ExportRow, batches []entity.OrderBatch) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", ReportSheet); err != nil {
		return nil, err
	}
	writeRow := func(sheet string, r int, values []any) error {
		cell, err := excelize.CoordinatesToCellName(1, r)
		if err != nil {
			return err
		}
		return f.SetSheetRow(sheet, cell, &values)
	}

	if err := writeRow(ReportSheet, 1, toAny(Columns)); err != nil {
		return nil, err
	}
	for i, r := range rows {
		values := []any{r.Station, r.WeekLabel, r.PlateVIN, r.Mileage, r.WorkName, r.Quantity, r.Price, r.Total}
		if err := writeRow(ReportSheet, i+2, values); err != nil {
			return nil, err
		}
	}
	_ = f.SetColWidth(ReportSheet, "A", "A", 22)
	_ = f.SetColWidth(ReportSheet, "B", "B", 10)
	_ = f.SetColWidth(ReportSheet, "C", "C", 26)
	_ = f.SetColWidth(ReportSheet, "D", "D", 10)
	_ = f.SetColWidth(ReportSheet, "E", "E", 40)
	_ = f.SetColWidth(ReportSheet, "F", "H", 12)

	if len(batches) > 0 {
		if _, err := f.NewSheet(JournalSheet); err != nil {
			return nil, err
		}
		r := 1
		for _, b := range batches {
			for _, line := range JournalRows(b) {
				if len(line) > 0 {
					if err := writeRow(JournalSheet, r, line); err != nil {
						return nil, err
					}
				}
				r++
			}
		}
		_ = f.SetColWidth(JournalSheet, "A", "A", 40)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
