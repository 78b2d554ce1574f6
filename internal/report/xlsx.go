package report

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/Abrar11050/exam-conductor/internal/grading"
	"github.com/Abrar11050/exam-conductor/internal/model"
)

// XLSX streams rows into a "Grades" sheet and adds an "Exam" sheet with the
// exam metadata. The workbook is written to the destination on Complete.
// Text cells starting with a formula character are prefixed with a quote.
type XLSX struct {
	w     io.Writer
	opts  Options
	f     *excelize.File
	sw    *excelize.StreamWriter
	meta  grading.Meta
	count int
}

// NewXLSX creates an XLSX sink.
func NewXLSX(w io.Writer, opts Options) *XLSX {
	return &XLSX{w: w, opts: opts}
}

func (x *XLSX) Initiate(meta grading.Meta) error {
	l := x.opts.Labels
	x.meta = meta
	x.f = excelize.NewFile()
	if err := x.f.SetSheetName("Sheet1", l.Grades); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	sw, err := x.f.NewStreamWriter(l.Grades)
	if err != nil {
		return fmt.Errorf("create stream writer: %w", err)
	}
	x.sw = sw

	header := []interface{}{l.Serial, l.Name, l.Email}
	for i, p := range meta.Points {
		header = append(header, questionHeader(l, i, p))
	}
	header = append(header, totalHeader(l, meta.Grand))
	return x.sw.SetRow("A1", header)
}

func (x *XLSX) BatchDone(rows []grading.Row) error {
	for _, r := range rows {
		x.count++
		row := []interface{}{x.count, sanitizeForExcel(r.Name), sanitizeForExcel(r.Email)}
		for _, s := range r.Scores {
			row = append(row, s)
		}
		row = append(row, r.Total)

		cell, err := excelize.CoordinatesToCellName(1, x.count+1)
		if err != nil {
			return err
		}
		if err := x.sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write row %d: %w", x.count, err)
		}
	}
	return nil
}

func (x *XLSX) Failure(msg string) { logFailure(model.FormatXLSX, msg) }

func (x *XLSX) Complete() error {
	defer x.f.Close()
	if err := x.sw.Flush(); err != nil {
		return fmt.Errorf("flush rows: %w", err)
	}
	if err := x.writeExamSheet(); err != nil {
		return err
	}
	if err := x.f.Write(x.w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Abort discards the unfinished workbook and its temporary files.
func (x *XLSX) Abort() {
	if x.f == nil {
		return
	}
	if err := x.f.Close(); err != nil {
		slog.Warn("failed to discard workbook", "error", err)
	}
	x.f, x.sw = nil, nil
}

// Count returns the number of rows written.
func (x *XLSX) Count() int { return x.count }

func (x *XLSX) writeExamSheet() error {
	l := x.opts.Labels
	loc := x.opts.location()
	if _, err := x.f.NewSheet(l.Exam); err != nil {
		return fmt.Errorf("create exam sheet: %w", err)
	}
	pairs := [][2]string{
		{l.Title, sanitizeForExcel(x.meta.Title)},
		{l.StartTime, formatTime(x.meta.WindowStart, loc)},
		{l.EndTime, formatTime(x.meta.WindowEnd, loc)},
		{l.Duration, formatDuration(x.meta.Duration)},
	}
	for i, p := range pairs {
		if err := x.f.SetSheetRow(l.Exam, fmt.Sprintf("A%d", i+1), &[]interface{}{p[0], p[1]}); err != nil {
			return fmt.Errorf("write exam sheet: %w", err)
		}
	}
	return nil
}
