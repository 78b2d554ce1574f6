package report

//go:generate templ generate

import (
	"context"
	"io"
	"strconv"

	"github.com/Abrar11050/exam-conductor/internal/grading"
	"github.com/Abrar11050/exam-conductor/internal/model"
)

// HTML writes a standalone gradesheet fragment: a style block, the exam
// metadata and a table with one row per graded submission. The metadata is
// written by Initiate; the table is held until Complete.
type HTML struct {
	w      io.Writer
	opts   Options
	header []string
	rows   [][]string
}

type metaLine struct {
	Label string
	Value string
}

// NewHTML creates an HTML sink.
func NewHTML(w io.Writer, opts Options) *HTML {
	return &HTML{w: w, opts: opts}
}

func (h *HTML) Initiate(meta grading.Meta) error {
	l := h.opts.Labels
	loc := h.opts.location()

	h.header = []string{l.Serial, l.Name, l.Email}
	for i, p := range meta.Points {
		h.header = append(h.header, questionHeader(l, i, p))
	}
	h.header = append(h.header, totalHeader(l, meta.Grand))

	lines := []metaLine{
		{l.Title, meta.Title},
		{l.StartTime, formatTime(meta.WindowStart, loc)},
		{l.EndTime, formatTime(meta.WindowEnd, loc)},
		{l.Duration, formatDuration(meta.Duration)},
	}
	return gradesheetMeta(lines).Render(context.Background(), h.w)
}

func (h *HTML) BatchDone(rows []grading.Row) error {
	for _, r := range rows {
		cells := []string{strconv.Itoa(len(h.rows) + 1), r.Name, r.Email}
		for _, s := range r.Scores {
			cells = append(cells, formatNumber(s))
		}
		cells = append(cells, formatNumber(r.Total))
		h.rows = append(h.rows, cells)
	}
	return nil
}

func (h *HTML) Failure(msg string) { logFailure(model.FormatHTML, msg) }

func (h *HTML) Complete() error {
	return gradesheetTable(h.header, h.rows).Render(context.Background(), h.w)
}

func (h *HTML) Abort() { h.rows = nil }

// Count returns the number of rows written.
func (h *HTML) Count() int { return len(h.rows) }
