package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// DefaultFile is where FileStore keeps the schedule when no path is given.
const DefaultFile = "data/.schedule_config.json"

// Store persists the job list.
type Store interface {
	Load() ([]Job, error)
	Save(jobs []Job) error
}

// FileStore keeps jobs as a JSON object keyed by job name.
type FileStore struct {
	Path string
}

func (f FileStore) path() string {
	if f.Path == "" {
		return DefaultFile
	}
	return f.Path
}

// Load returns the stored jobs sorted by name. A missing file is an empty
// schedule.
func (f FileStore) Load() ([]Job, error) {
	b, err := os.ReadFile(f.path())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scheduler: read %s: %w", f.path(), err)
	}
	var m map[string]Job
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("scheduler: decode %s: %w", f.path(), err)
	}
	jobs := make([]Job, 0, len(m))
	for name, j := range m {
		j.Name = name
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(a, b int) bool { return jobs[a].Name < jobs[b].Name })
	return jobs, nil
}

// Save replaces the file atomically.
func (f FileStore) Save(jobs []Job) error {
	m := make(map[string]Job, len(jobs))
	for _, j := range jobs {
		m[j.Name] = j
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("scheduler: encode: %w", err)
	}
	p := f.path()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("scheduler: mkdir: %w", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("scheduler: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return fmt.Errorf("scheduler: rename %s: %w", p, err)
	}
	return nil
}

// MemStore keeps jobs in memory.
type MemStore struct {
	mu    sync.Mutex
	jobs  []Job
	Saves int
}

func (m *MemStore) Load() ([]Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Job(nil), m.jobs...), nil
}

func (m *MemStore) Save(jobs []Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append([]Job(nil), jobs...)
	m.Saves++
	return nil
}
