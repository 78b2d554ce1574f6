// Package report writes grading results as CSV, HTML or XLSX gradesheets.
package report

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/Abrar11050/exam-conductor/internal/grading"
	"github.com/Abrar11050/exam-conductor/internal/model"
)

// Labels are the human-readable texts printed in gradesheets.
type Labels struct {
	Serial    string
	Name      string
	Email     string
	Total     string
	Title     string
	StartTime string
	EndTime   string
	Duration  string
	Question  string // prefix of question columns, "Q" gives Q1, Q2, ...
	Grades    string // XLSX sheet names
	Exam      string
}

// DefaultLabels returns the English labels.
func DefaultLabels() Labels {
	return Labels{
		Serial:    "Serial",
		Name:      "Name",
		Email:     "Email",
		Total:     "Total",
		Title:     "Name",
		StartTime: "Start Time",
		EndTime:   "End Time",
		Duration:  "Duration",
		Question:  "Q",
		Grades:    "Grades",
		Exam:      "Exam",
	}
}

// LocalizedLabels builds labels from translate, which maps a message ID to
// its text. IDs that translate returns unchanged keep their English default.
func LocalizedLabels(translate func(id string) string) Labels {
	l := DefaultLabels()
	pick := func(dst *string, id string) {
		if s := translate(id); s != "" && s != id {
			*dst = s
		}
	}
	pick(&l.Serial, "ReportSerial")
	pick(&l.Name, "ReportName")
	pick(&l.Email, "ReportEmail")
	pick(&l.Total, "ReportTotal")
	pick(&l.Title, "ReportTitle")
	pick(&l.StartTime, "ReportStartTime")
	pick(&l.EndTime, "ReportEndTime")
	pick(&l.Duration, "ReportDuration")
	pick(&l.Question, "ReportQuestion")
	pick(&l.Grades, "ReportGradesSheet")
	pick(&l.Exam, "ReportExamSheet")
	return l
}

// Options configure a sink.
type Options struct {
	Labels   Labels
	Location *time.Location // zone for printed times, time.Local when nil
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.Local
	}
	return o.Location
}

// New returns a sink writing format to w. Zero labels mean DefaultLabels.
func New(format model.ExportFormat, w io.Writer, opts Options) (grading.Sink, error) {
	if opts.Labels == (Labels{}) {
		opts.Labels = DefaultLabels()
	}
	switch format {
	case model.FormatCSV:
		return NewCSV(w, opts), nil
	case model.FormatHTML:
		return NewHTML(w, opts), nil
	case model.FormatXLSX:
		return NewXLSX(w, opts), nil
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

func questionHeader(l Labels, i int, points float64) string {
	return fmt.Sprintf("%s%d (%s)", l.Question, i+1, formatNumber(points))
}

func totalHeader(l Labels, grand float64) string {
	return fmt.Sprintf("%s (%s)", l.Total, formatNumber(grand))
}

// formatNumber prints the shortest exact representation: 5, 0.375.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatDuration prints d as HH:MM:SS.
func formatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}

// formatTime prints t the en-GB way, 05/01/2026, 09:00:00.
func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format("02/01/2006, 15:04:05")
}

// sanitizeForExcel defuses cells a spreadsheet would read as formulas.
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}

func logFailure(format model.ExportFormat, msg string) {
	slog.Warn("gradesheet row skipped", "format", format, "reason", msg)
}
