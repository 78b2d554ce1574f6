package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Abrar11050/exam-conductor/internal/grading"
	"github.com/Abrar11050/exam-conductor/internal/model"
)

func testMeta() grading.Meta {
	return grading.Meta{
		ExamID:      "e1",
		Title:       "Algebra <I>",
		WindowStart: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2026, 1, 5, 11, 30, 0, 0, time.UTC),
		Duration:    90*time.Minute + 5*time.Second,
		Points:      []float64{10, 2.5},
		Grand:       12.5,
	}
}

func testBatches() [][]grading.Row {
	return [][]grading.Row{
		{
			{Name: "Ada Lovelace", Email: "ada@example.com", Scores: []float64{5, 2.5}, Total: 7.5},
			{Name: `Bob "B" Jones`, Email: "=cmd", Scores: []float64{0, 0}, Total: 0},
		},
		{},
		{
			{Name: grading.UnknownName, Email: grading.UnknownEmail, Scores: []float64{3.75, 0}, Total: 3.75},
		},
	}
}

func feed(t *testing.T, s grading.Sink) {
	t.Helper()
	require.NoError(t, s.Initiate(testMeta()))
	for _, b := range testBatches() {
		require.NoError(t, s.BatchDone(b))
	}
	s.Failure("submission s9: out of sync")
	require.NoError(t, s.Complete())
}

func utcOptions() Options {
	return Options{Labels: DefaultLabels(), Location: time.UTC}
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	sink := NewCSV(&buf, utcOptions())
	feed(t, sink)

	want := strings.Join([]string{
		"Serial,Name,Email,Q1 (10),Q2 (2.5),Total (12.5)",
		`1,"Ada Lovelace","ada@example.com",5,2.5,7.5`,
		`2,"Bob ""B"" Jones","=cmd",0,0,0`,
		`3,"<Unknown Name>","<N/A>",3.75,0,3.75`,
	}, "\n") + "\n"
	assert.Equal(t, want, buf.String())
	assert.Equal(t, 3, sink.Count())
}

func TestHTML(t *testing.T) {
	var buf bytes.Buffer
	sink := NewHTML(&buf, utcOptions())
	feed(t, sink)
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, `<style type="text/css">div,table{font-family:arial,sans-serif}`))
	assert.Contains(t, out, "<p><b>Name: </b>Algebra &lt;I&gt;</p>")
	assert.Contains(t, out, "<p><b>Start Time: </b>05/01/2026, 09:00:00</p>")
	assert.Contains(t, out, "<p><b>End Time: </b>05/01/2026, 11:30:00</p>")
	assert.Contains(t, out, "<p><b>Duration: </b>01:30:05</p>")
	assert.Contains(t, out, "<th>Q2 (2.5)</th><th>Total (12.5)</th></tr>")
	assert.Contains(t, out, "<tr><td>1</td><td>Ada Lovelace</td><td>ada@example.com</td><td>5</td><td>2.5</td><td>7.5</td></tr>")
	assert.Contains(t, out, "<tr><td>3</td><td>&lt;Unknown Name&gt;</td>")
	assert.Contains(t, out, "<td>Bob &#34;B&#34; Jones</td>")
	assert.True(t, strings.HasSuffix(out, "</tr></table>"))
	assert.Equal(t, 3, strings.Count(out, "<tr><td>"))
	assert.Equal(t, 3, sink.Count())
}

func TestHTMLMetadataPrecedesTable(t *testing.T) {
	var buf bytes.Buffer
	sink := NewHTML(&buf, utcOptions())
	require.NoError(t, sink.Initiate(testMeta()))
	require.NoError(t, sink.BatchDone(testBatches()[0]))
	assert.True(t, strings.HasSuffix(buf.String(), "</div>"))
	assert.NotContains(t, buf.String(), "<table>")

	require.NoError(t, sink.Complete())
	assert.Contains(t, buf.String(), "</div><table><tr><th>Serial</th>")
}

func TestXLSXAbort(t *testing.T) {
	var buf bytes.Buffer
	sink := NewXLSX(&buf, utcOptions())
	sink.Abort()

	require.NoError(t, sink.Initiate(testMeta()))
	require.NoError(t, sink.BatchDone(testBatches()[0]))
	sink.Abort()
	assert.Nil(t, sink.f)
	assert.Zero(t, buf.Len())
	sink.Abort()
}

func TestXLSX(t *testing.T) {
	var buf bytes.Buffer
	sink := NewXLSX(&buf, utcOptions())
	feed(t, sink)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Grades")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Serial", "Name", "Email", "Q1 (10)", "Q2 (2.5)", "Total (12.5)"}, rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "Ada Lovelace", rows[1][1])
	assert.Equal(t, "'=cmd", rows[2][2])
	assert.Equal(t, "3", rows[3][0])

	meta, err := f.GetRows("Exam")
	require.NoError(t, err)
	require.Len(t, meta, 4)
	assert.Equal(t, []string{"Duration", "01:30:05"}, meta[3])
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New(model.ExportFormat("pdf"), &bytes.Buffer{}, utcOptions())
	assert.Error(t, err)

	for _, f := range []model.ExportFormat{model.FormatCSV, model.FormatHTML, model.FormatXLSX} {
		s, err := New(f, &bytes.Buffer{}, utcOptions())
		require.NoError(t, err)
		assert.NotNil(t, s)
	}
}

func TestLocalizedLabels(t *testing.T) {
	l := LocalizedLabels(func(id string) string {
		if id == "ReportSerial" {
			return "№"
		}
		return id
	})
	assert.Equal(t, "№", l.Serial)
	assert.Equal(t, "Email", l.Email)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "00:00:00", formatDuration(0))
	assert.Equal(t, "25:00:59", formatDuration(25*time.Hour+59*time.Second))
}
