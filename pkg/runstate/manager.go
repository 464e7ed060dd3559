// Package runstate persists the running worker's identity (pid, endpoint,
// database path) in the .novelassist/ directory so that separate vectord
// invocations — status, stop, logs — can find and manage a worker started by
// an earlier serve. Writes are atomic (temp file + rename) and guarded by an
// advisory file lock.
package runstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/novelassist/vectord/pkg/dotdir"
)

const (
	stateFileName = "worker.json"
	logFileName   = "worker.log"
	lockFileName  = "worker.lock"
	stateVersion  = 1
)

// State is the persisted record of a running (or last-run) worker.
type State struct {
	Version   int       `json:"version"`
	ServePID  int       `json:"serve_pid"`
	WorkerPID int       `json:"worker_pid"`
	Host      string    `json:"host"`
	Port      int       `json:"port"`
	DBPath    string    `json:"db_path"`
	APIURL    string    `json:"api_url"`
	LogPath   string    `json:"log_path"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Endpoint returns the worker's base URL recorded in the state.
func (s *State) Endpoint() string {
	return fmt.Sprintf("http://%s:%d", s.Host, s.Port)
}

type Manager struct {
	Dir       string
	StatePath string
	LogPath   string
	LockPath  string
}

func NewManager(configDir string) (*Manager, error) {
	ddm := dotdir.NewManager()
	dir, err := ddm.Target(configDir)
	if err != nil {
		return nil, err
	}

	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home dir: %w", err)
		}
		dir = filepath.Join(home, ".novelassist")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating novelassist dir: %w", err)
	}

	return &Manager{
		Dir:       dir,
		StatePath: filepath.Join(dir, stateFileName),
		LogPath:   filepath.Join(dir, logFileName),
		LockPath:  filepath.Join(dir, lockFileName),
	}, nil
}

// LoadState reads the persisted worker state. A missing file yields (nil, nil).
func (m *Manager) LoadState() (*State, error) {
	data, err := os.ReadFile(m.StatePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading worker state: %w", err)
	}

	state := &State{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing worker state: %w", err)
	}

	return state, nil
}

// SaveState persists state atomically.
func (m *Manager) SaveState(state *State) error {
	if state == nil {
		return errors.New("cannot save nil state")
	}
	if state.Version == 0 {
		state.Version = stateVersion
	}
	state.UpdatedAt = time.Now()
	if state.LogPath == "" {
		state.LogPath = m.LogPath
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling worker state: %w", err)
	}

	tmpFile, err := os.CreateTemp(m.Dir, "worker-state-*.json")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}

	if err := tmpFile.Chmod(0o600); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("chmod temp state file: %w", err)
	}

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("writing temp state file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp state file: %w", err)
	}

	if err := os.Rename(tmpFile.Name(), m.StatePath); err != nil {
		return fmt.Errorf("persisting state file: %w", err)
	}

	return nil
}

// ClearState removes the persisted state. Missing state is not an error.
func (m *Manager) ClearState() error {
	if err := os.Remove(m.StatePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing worker state: %w", err)
	}
	return nil
}
