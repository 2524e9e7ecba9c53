// Package report renders admin analytics as spreadsheet downloads.
package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/aryan0dhankhar/rentaladmin/internal/aggregate"
	"github.com/xuri/excelize/v2"
)

// Sheet names, in workbook order
const (
	SheetRevenue        = "Revenue"
	SheetBookings       = "Bookings"
	SheetUsers          = "Users"
	SheetPropertyStatus = "Property Status"
)

// ContentType is the MIME type of the generated workbook
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AnalyticsReport is the data exported by WriteAnalytics
type AnalyticsReport struct {
	Revenue            []aggregate.Point
	Bookings           []aggregate.Point
	Users              []aggregate.Point
	StatusDistribution map[string]int
	GeneratedAt        time.Time
}

// Filename is the suggested download name for the report
func (r AnalyticsReport) Filename() string {
	return fmt.Sprintf("analytics-%s.xlsx", r.GeneratedAt.UTC().Format("2006-01-02"))
}

// WriteAnalytics writes the report as an XLSX workbook to w
func WriteAnalytics(w io.Writer, r AnalyticsReport) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", SheetRevenue); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{SheetBookings, SheetUsers, SheetPropertyStatus} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("error creating sheet %s: %w", name, err)
		}
	}

	series := []struct {
		sheet  string
		column string
		points []aggregate.Point
	}{
		{SheetRevenue, "Revenue", r.Revenue},
		{SheetBookings, "Bookings", r.Bookings},
		{SheetUsers, "New users", r.Users},
	}
	for _, s := range series {
		if err := writeSeries(f, s.sheet, s.column, s.points, header); err != nil {
			return err
		}
	}
	if err := writeDistribution(f, r.StatusDistribution, header); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSeries(f *excelize.File, sheet, column string, points []aggregate.Point, header int) error {
	if err := writeHeader(f, sheet, header, "Month", column); err != nil {
		return err
	}

	var total float64
	for i, p := range points {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &[]any{p.Label, p.Value}); err != nil {
			return fmt.Errorf("failed to write %s row: %w", sheet, err)
		}
		total += p.Value
	}

	cell, _ := excelize.CoordinatesToCellName(1, len(points)+2)
	if err := f.SetSheetRow(sheet, cell, &[]any{"Total", total}); err != nil {
		return fmt.Errorf("failed to write %s total: %w", sheet, err)
	}
	return f.SetColWidth(sheet, "A", "B", 16)
}

func writeDistribution(f *excelize.File, distribution map[string]int, header int) error {
	if err := writeHeader(f, SheetPropertyStatus, header, "Status", "Properties"); err != nil {
		return err
	}

	statuses := make([]string, 0, len(distribution))
	for status := range distribution {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)

	for i, status := range statuses {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetPropertyStatus, cell, &[]any{status, distribution[status]}); err != nil {
			return fmt.Errorf("failed to write status row: %w", err)
		}
	}
	return f.SetColWidth(SheetPropertyStatus, "A", "B", 16)
}

func writeHeader(f *excelize.File, sheet string, style int, titles ...any) error {
	if err := f.SetSheetRow(sheet, "A1", &titles); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	last, _ := excelize.CoordinatesToCellName(len(titles), 1)
	return f.SetCellStyle(sheet, "A1", last, style)
}
