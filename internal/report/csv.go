package report

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/Abrar11050/exam-conductor/internal/grading"
	"github.com/Abrar11050/exam-conductor/internal/model"
)

// CSV writes one line per graded submission. Name and email are always
// quoted and otherwise written as stored.
type CSV struct {
	w     *bufio.Writer
	opts  Options
	count int
}

// NewCSV creates a CSV sink.
func NewCSV(w io.Writer, opts Options) *CSV {
	return &CSV{w: bufio.NewWriter(w), opts: opts}
}

func (c *CSV) Initiate(meta grading.Meta) error {
	l := c.opts.Labels
	cols := []string{l.Serial, l.Name, l.Email}
	for i, p := range meta.Points {
		cols = append(cols, questionHeader(l, i, p))
	}
	cols = append(cols, totalHeader(l, meta.Grand))
	return c.line(cols)
}

func (c *CSV) BatchDone(rows []grading.Row) error {
	for _, r := range rows {
		c.count++
		cols := []string{strconv.Itoa(c.count), quote(r.Name), quote(r.Email)}
		for _, s := range r.Scores {
			cols = append(cols, formatNumber(s))
		}
		cols = append(cols, formatNumber(r.Total))
		if err := c.line(cols); err != nil {
			return err
		}
	}
	return c.w.Flush()
}

func (c *CSV) Failure(msg string) { logFailure(model.FormatCSV, msg) }

func (c *CSV) Complete() error { return c.w.Flush() }

func (c *CSV) Abort() {}

// Count returns the number of rows written.
func (c *CSV) Count() int { return c.count }

func (c *CSV) line(cols []string) error {
	if _, err := c.w.WriteString(strings.Join(cols, ",")); err != nil {
		return err
	}
	return c.w.WriteByte('\n')
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
