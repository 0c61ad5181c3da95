package effect

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// ErrUnknownSession is returned when a session id is not registered.
var ErrUnknownSession = errors.New("unknown session")

// SessionHandle identifies an assistant conversation that successive calls
// continue.
type SessionHandle struct {
	ID        string    `yaml:"id"`
	Name      string    `yaml:"name"`
	CreatedAt time.Time `yaml:"created_at"`
	Used      bool      `yaml:"used"` // at least one call has run in it
}

type sessionFile struct {
	Active   string          `yaml:"active,omitempty"`
	Sessions []SessionHandle `yaml:"sessions"`
}

// SessionRegistry persists a task's assistant sessions in sessions.yaml.
type SessionRegistry struct {
	fs   afero.Fs
	path string
	now  func() time.Time
}

// NewSessionRegistry stores sessions in dir/sessions.yaml on fs.
func NewSessionRegistry(fs afero.Fs, dir string) *SessionRegistry {
	return &SessionRegistry{fs: fs, path: filepath.Join(dir, "sessions.yaml"), now: time.Now}
}

func (r *SessionRegistry) load() (*sessionFile, error) {
	data, err := afero.ReadFile(r.fs, r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &sessionFile{}, nil
		}
		return nil, fmt.Errorf("failed to read sessions file: %w", err)
	}

	var sf sessionFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("failed to parse sessions file: %w", err)
	}
	return &sf, nil
}

func (r *SessionRegistry) save(sf *sessionFile) error {
	if err := r.fs.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("failed to create sessions directory: %w", err)
	}
	data, err := yaml.Marshal(sf)
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}
	if err := afero.WriteFile(r.fs, r.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write sessions file: %w", err)
	}
	return nil
}

func (sf *sessionFile) find(id string) int {
	for i := range sf.Sessions {
		if sf.Sessions[i].ID == id {
			return i
		}
	}
	return -1
}

// Create registers a new session with a fresh UUID. A task runs one loop at
// a time, so the session that was active belongs to an abandoned run and is
// dropped.
func (r *SessionRegistry) Create(name string) (*SessionHandle, error) {
	sf, err := r.load()
	if err != nil {
		return nil, err
	}
	if i := sf.find(sf.Active); sf.Active != "" && i >= 0 {
		sf.Sessions = append(sf.Sessions[:i], sf.Sessions[i+1:]...)
	}
	sf.Active = ""

	h := SessionHandle{ID: uuid.NewString(), Name: name, CreatedAt: r.now().UTC()}
	sf.Sessions = append(sf.Sessions, h)
	if err := r.save(sf); err != nil {
		return nil, err
	}
	return &h, nil
}

// Activate makes id the session subsequent calls run in.
func (r *SessionRegistry) Activate(id string) error {
	sf, err := r.load()
	if err != nil {
		return err
	}
	if sf.find(id) < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	sf.Active = id
	return r.save(sf)
}

// Delete forgets id, clearing it as the active session if needed.
func (r *SessionRegistry) Delete(id string) error {
	sf, err := r.load()
	if err != nil {
		return err
	}
	i := sf.find(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	sf.Sessions = append(sf.Sessions[:i], sf.Sessions[i+1:]...)
	if sf.Active == id {
		sf.Active = ""
	}
	return r.save(sf)
}

// Active returns the active session, or nil when none is active.
func (r *SessionRegistry) Active() (*SessionHandle, error) {
	sf, err := r.load()
	if err != nil {
		return nil, err
	}
	if sf.Active == "" {
		return nil, nil
	}
	i := sf.find(sf.Active)
	if i < 0 {
		return nil, nil
	}
	h := sf.Sessions[i]
	return &h, nil
}

// MarkUsed records that a call has run in id, so later calls resume it.
func (r *SessionRegistry) MarkUsed(id string) error {
	sf, err := r.load()
	if err != nil {
		return err
	}
	i := sf.find(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	if sf.Sessions[i].Used {
		return nil
	}
	sf.Sessions[i].Used = true
	return r.save(sf)
}

// List returns every registered session.
func (r *SessionRegistry) List() ([]SessionHandle, error) {
	sf, err := r.load()
	if err != nil {
		return nil, err
	}
	return sf.Sessions, nil
}
