package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/Abrar11050/exam-conductor/internal/model"
)

// StatusStore persists job descriptors outside the worker so that status
// survives worker restarts.
type StatusStore interface {
	Save(ctx context.Context, d model.JobDescriptor) error
	// Get returns (nil, nil) when the job is unknown.
	Get(ctx context.Context, ownerID, jobID string) (*model.JobDescriptor, error)
	// List returns the owner's jobs, newest first.
	List(ctx context.Context, ownerID string) ([]model.JobDescriptor, error)
	// Running returns every owner's jobs still marked running.
	Running(ctx context.Context) ([]model.JobDescriptor, error)
}

var descriptorName = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\.json$`)

// FileStatusStore keeps descriptors as JSON files next to the artifacts.
type FileStatusStore struct {
	root string
}

// NewFileStatusStore creates a store rooted at root.
func NewFileStatusStore(root string) *FileStatusStore {
	return &FileStatusStore{root: root}
}

func (s *FileStatusStore) Save(_ context.Context, d model.JobDescriptor) error {
	path := DescriptorPath(s.root, d.OwnerID, d.JobID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metadata directory: %w", err)
	}
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal descriptor: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write descriptor: %w", err)
	}
	return os.Rename(tmp, path)
}

func (s *FileStatusStore) Get(_ context.Context, ownerID, jobID string) (*model.JobDescriptor, error) {
	return readDescriptor(DescriptorPath(s.root, ownerID, jobID))
}

func (s *FileStatusStore) List(_ context.Context, ownerID string) ([]model.JobDescriptor, error) {
	dir := filepath.Join(s.root, ownerID, "metadata")
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata directory: %w", err)
	}

	var list []model.JobDescriptor
	for _, e := range entries {
		if e.IsDir() || !descriptorName.MatchString(e.Name()) {
			continue
		}
		d, err := readDescriptor(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if d != nil {
			list = append(list, *d)
		}
	}
	sortNewestFirst(list)
	return list, nil
}

func (s *FileStatusStore) Running(ctx context.Context) ([]model.JobDescriptor, error) {
	owners, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read status directory: %w", err)
	}

	var running []model.JobDescriptor
	for _, o := range owners {
		if !o.IsDir() {
			continue
		}
		list, err := s.List(ctx, o.Name())
		if err != nil {
			return nil, err
		}
		for _, d := range list {
			if d.Status == model.JobRunning {
				running = append(running, d)
			}
		}
	}
	return running, nil
}

func readDescriptor(path string) (*model.JobDescriptor, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}
	var d model.JobDescriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode descriptor %s: %w", filepath.Base(path), err)
	}
	return &d, nil
}

func sortNewestFirst(list []model.JobDescriptor) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}
