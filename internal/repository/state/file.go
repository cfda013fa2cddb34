package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ControllerState is the durable record of the last applied action class,
// used by the control loop to suppress redundant re-actuation.
type ControllerState struct {
	// LastActionKey is the class key of the last executed plan.
	LastActionKey string `json:"last_action_key"`
	// LastActionTime is when that plan was executed.
	LastActionTime time.Time `json:"last_action_time"`
	// LastActionsOK records whether every action of that plan succeeded.
	LastActionsOK bool `json:"last_actions_ok"`
}

// Repository defines persistence operations for the controller state.
type Repository interface {
	Load(ctx context.Context) (ControllerState, error)
	Save(ctx context.Context, current ControllerState) error
}

// FileRepository persists the controller state to a JSON file on disk.
// A missing or unreadable file loads as the zero state: the controller
// treats absent history as "no prior action", never as an error.
type FileRepository struct {
	// path is the filesystem location of the JSON state file.
	path string
	// mu protects concurrent access to the state file.
	mu sync.Mutex
}

// statePermissions restricts the state file to the owning user.
const statePermissions = 0o600

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the state from disk. Missing, unreadable or corrupt files
// all yield the zero state without error so a damaged store can never
// stall the controller.
func (r *FileRepository) Load(_ context.Context) (ControllerState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		// Absent and unreadable collapse to the same answer: no prior action.
		return ControllerState{}, nil
	}

	var loaded ControllerState
	if err = json.Unmarshal(contents, &loaded); err != nil {
		return ControllerState{}, nil
	}

	return loaded, nil
}

// Save writes the state to disk as a whole-file atomic overwrite: the
// JSON is written to a temp file in the target directory and renamed over
// the old state, so a crash mid-write never leaves a torn file behind.
// The parent directory is created if absent.
func (r *FileRepository) Save(_ context.Context, current ControllerState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err = os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}

	tmpName := tmp.Name()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return fmt.Errorf("write state file: %w", err)
	}

	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("close state file: %w", err)
	}

	if err = os.Chmod(tmpName, statePermissions); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("chmod state file: %w", err)
	}

	if err = os.Rename(tmpName, r.path); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("replace state file: %w", err)
	}

	return nil
}
