// Package jobs runs gradesheet generation off the request path. A single
// Worker goroutine owns its own store connection and handles Commands one at
// a time; a Dispatcher accepts jobs, persists their status descriptors and
// applies the Worker's Replies.
package jobs

import (
	"path/filepath"

	"github.com/Abrar11050/exam-conductor/internal/model"
)

// CommandKind identifies a worker command.
type CommandKind int

const (
	CmdConnectStore CommandKind = iota
	CmdConvert
)

func (k CommandKind) String() string {
	switch k {
	case CmdConnectStore:
		return "CONNECT_STORE"
	case CmdConvert:
		return "CONVERT"
	}
	return "UNKNOWN"
}

// Command is sent to the worker. Format, ExamID, JobID and OwnerID are only
// used by CmdConvert.
type Command struct {
	Kind    CommandKind
	Format  model.ExportFormat
	ExamID  string
	JobID   string
	OwnerID string
}

// ReplyKind identifies a worker reply.
type ReplyKind int

const (
	ReplyStoreConnected ReplyKind = iota
	ReplyStoreConnError
	ReplyConverted
	ReplyConvError
	ReplyNotImplemented
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyStoreConnected:
		return "STORE_CONNECTED"
	case ReplyStoreConnError:
		return "STORE_CONN_ERROR"
	case ReplyConverted:
		return "CONVERTED"
	case ReplyConvError:
		return "CONV_ERROR"
	case ReplyNotImplemented:
		return "NOT_IMPLEMENTED"
	}
	return "UNKNOWN"
}

// Reply is sent back by the worker.
type Reply struct {
	Kind    ReplyKind
	JobID   string
	OwnerID string
	Error   string
}

// ArtifactPath is where a job's gradesheet is written.
func ArtifactPath(root, ownerID string, format model.ExportFormat, jobID string) string {
	return filepath.Join(root, ownerID, string(format), jobID+"."+format.Ext())
}

// DescriptorPath is where the file status store keeps a job's descriptor.
func DescriptorPath(root, ownerID, jobID string) string {
	return filepath.Join(root, ownerID, "metadata", jobID+".json")
}
