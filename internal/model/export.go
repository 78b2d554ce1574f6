package model

import "time"

// ExportFormat is a gradesheet output format.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatHTML ExportFormat = "html"
	FormatXLSX ExportFormat = "xlsx"
)

// Valid reports whether f is a supported format.
func (f ExportFormat) Valid() bool {
	switch f {
	case FormatCSV, FormatHTML, FormatXLSX:
		return true
	}
	return false
}

// Ext returns the file extension for the format, without the dot.
func (f ExportFormat) Ext() string {
	return string(f)
}

// JobStatus is the lifecycle state of a gradesheet job.
type JobStatus string

const (
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobError   JobStatus = "error"
)

// JobDescriptor is the persisted status of a gradesheet job. Status moves
// from running to exactly one of done or error.
type JobDescriptor struct {
	Title     string       `json:"title"`
	OwnerID   string       `json:"ownerId"`
	ExamID    string       `json:"examId"`
	JobID     string       `json:"jobId"`
	Format    ExportFormat `json:"format"`
	CreatedAt time.Time    `json:"createdAt"`
	ElapsedMs int64        `json:"elapsedMs"`
	Status    JobStatus    `json:"status"`
	Error     *string      `json:"error"`
}

// Finish moves a running descriptor to its terminal state. An empty
// failure message means the job succeeded.
func (d *JobDescriptor) Finish(at time.Time, failure string) {
	d.ElapsedMs = at.Sub(d.CreatedAt).Milliseconds()
	if failure != "" {
		d.Status = JobError
		d.Error = &failure
		return
	}
	d.Status = JobDone
	d.Error = nil
}
