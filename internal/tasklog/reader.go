package tasklog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Session describes one past run's log directory.
type Session struct {
	ID        string
	Timestamp time.Time
	Dir       string
}

// TaskLog holds one failed task's persisted log content.
type TaskLog struct {
	TaskName string
	Content  string
}

// ListSessions returns every session under baseDir, newest first.
func ListSessions(baseDir string) ([]Session, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read log directory: %w", err)
	}

	var sessions []Session
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		t, err := time.Parse("20060102T150405", e.Name())
		if err != nil {
			continue
		}
		sessions = append(sessions, Session{ID: e.Name(), Timestamp: t, Dir: filepath.Join(baseDir, e.Name())})
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Timestamp.After(sessions[j].Timestamp) })
	return sessions, nil
}

// ReadSession reads every task log file within a session directory.
func ReadSession(sessionDir string) ([]TaskLog, error) {
	entries, err := os.ReadDir(sessionDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read log session: %w", err)
	}

	var logs []TaskLog
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(sessionDir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read log file %s: %w", e.Name(), err)
		}
		logs = append(logs, TaskLog{
			TaskName: strings.TrimSuffix(e.Name(), ".log"),
			Content:  string(content),
		})
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].TaskName < logs[j].TaskName })
	return logs, nil
}
