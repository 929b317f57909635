// Package tasklog accumulates per-task output for the duration of a run and
// persists it to disk for any task that fails, so a failed task's output
// survives past a "keep_order"/"replacing" router that would otherwise have
// discarded it once scrolled away.
//
// Grounded on the teacher's internal/log package (Store/reader split),
// generalized from a resource-kind+name key to a task (name, args) key and
// from "installation log" headers to task run metadata.
package tasklog

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FailedTask holds the accumulated output and error for one failed task.
type FailedTask struct {
	Name      string
	Args      []string
	ExitCode  int
	Err       error
	Output    string
}

type taskMeta struct {
	name string
	args []string
}

// Store accumulates task output for one run and flushes it for failed
// tasks only — successful tasks' buffers are discarded on completion.
type Store struct {
	baseDir    string
	sessionID  string
	sessionDir string

	mu       sync.Mutex
	buffers  map[string]*bytes.Buffer
	metadata map[string]*taskMeta
	failed   map[string]failure
}

type failure struct {
	err      error
	exitCode int
}

// NewStore creates a Store rooted at baseDir (typically
// rpath.Dirs.State/"logs"), starting a new timestamped session.
func NewStore(baseDir string) *Store {
	sessionID := time.Now().Format("20060102T150405")
	return &Store{
		baseDir:    baseDir,
		sessionID:  sessionID,
		sessionDir: filepath.Join(baseDir, sessionID),
		buffers:    make(map[string]*bytes.Buffer),
		metadata:   make(map[string]*taskMeta),
		failed:     make(map[string]failure),
	}
}

func taskKey(name string, args []string) string {
	return name + "\x00" + strings.Join(args, "\x00")
}

// RecordStart opens a fresh buffer for a task run.
func (s *Store) RecordStart(name string, args []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := taskKey(name, args)
	s.buffers[key] = &bytes.Buffer{}
	s.metadata[key] = &taskMeta{name: name, args: args}
}

// RecordOutput appends one line of output for a task.
func (s *Store) RecordOutput(name string, args []string, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := taskKey(name, args)
	if buf, ok := s.buffers[key]; ok {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
}

// RecordError marks a task as failed.
func (s *Store) RecordError(name string, args []string, exitCode int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failed[taskKey(name, args)] = failure{err: err, exitCode: exitCode}
}

// RecordComplete marks a task as successful, discarding its buffer.
func (s *Store) RecordComplete(name string, args []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := taskKey(name, args)
	delete(s.buffers, key)
	delete(s.metadata, key)
}

// FailedTasks returns every failed task's metadata and accumulated output,
// sorted by name for stable summary rendering.
func (s *Store) FailedTasks() []FailedTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []FailedTask
	for key, f := range s.failed {
		meta := s.metadata[key]
		if meta == nil {
			continue
		}
		output := ""
		if buf, ok := s.buffers[key]; ok {
			output = buf.String()
		}
		out = append(out, FailedTask{
			Name: meta.name, Args: meta.args,
			ExitCode: f.exitCode, Err: f.err, Output: output,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Flush writes a log file per failed task under the session directory.
// A run with no failures writes nothing (and SessionDir need not exist).
func (s *Store) Flush() error {
	failed := s.FailedTasks()
	if len(failed) == 0 {
		return nil
	}
	if err := os.MkdirAll(s.sessionDir, 0o755); err != nil {
		return fmt.Errorf("failed to create log session directory: %w", err)
	}

	var firstErr error
	for _, f := range failed {
		content := buildLogContent(f)
		filename := sanitizeFilename(f.Name) + ".log"
		path := filepath.Join(s.sessionDir, filename)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to write log for %s: %w", f.Name, err)
		}
	}
	return firstErr
}

// SessionDir returns this run's log directory.
func (s *Store) SessionDir() string { return s.sessionDir }

// Cleanup removes all but the keepSessions most recent session directories
// under baseDir.
func Cleanup(baseDir string, keepSessions int) error {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read log directory: %w", err)
	}

	var dirs []os.DirEntry
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e)
		}
	}
	if len(dirs) <= keepSessions {
		return nil
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Name() < dirs[j].Name() })

	for _, d := range dirs[:len(dirs)-keepSessions] {
		if err := os.RemoveAll(filepath.Join(baseDir, d.Name())); err != nil {
			return fmt.Errorf("failed to remove old log session %s: %w", d.Name(), err)
		}
	}
	return nil
}

func sanitizeFilename(name string) string {
	return strings.NewReplacer("/", "_", ":", "_", " ", "_").Replace(name)
}

func buildLogContent(f FailedTask) string {
	var b strings.Builder
	fmt.Fprintln(&b, "# rung task log")
	fmt.Fprintf(&b, "# Task: %s\n", f.Name)
	if len(f.Args) > 0 {
		fmt.Fprintf(&b, "# Args: %s\n", strings.Join(f.Args, " "))
	}
	fmt.Fprintf(&b, "# ExitCode: %d\n", f.ExitCode)
	fmt.Fprintf(&b, "# Timestamp: %s\n", time.Now().Format(time.RFC3339))
	if f.Err != nil {
		fmt.Fprintf(&b, "# Error: %v\n", f.Err)
	}
	b.WriteByte('\n')
	b.WriteString(f.Output)
	return b.String()
}
