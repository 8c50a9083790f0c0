package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoPrefs is returned by Load when nothing usable has been saved.
var ErrNoPrefs = errors.New("no saved preferences")

// Prefs is the UI state remembered between launches.
type Prefs struct {
	Directory    string
	SelectedFile string // absolute; empty when nothing was selected
	Stdin        string
}

// prefsFile is the on-disk shape. The selection is stored relative to the
// directory so it can never point outside it.
type prefsFile struct {
	Directory string `json:"directory"`
	Selected  string `json:"selected,omitempty"`
	Stdin     string `json:"stdin,omitempty"`
}

// PrefsStore persists Prefs.
type PrefsStore interface {
	Save(p *Prefs) error
	// Load returns ErrNoPrefs when nothing was saved or the saved directory
	// no longer exists.
	Load() (*Prefs, error)
}

type diskStore struct {
	path string
}

// NewPrefsStore returns a PrefsStore kept in DataDir()/prefs.json.
func NewPrefsStore() (PrefsStore, error) {
	dir, err := DataDir()
	if err != nil {
		return nil, fmt.Errorf("resolving data directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &diskStore{path: filepath.Join(dir, "prefs.json")}, nil
}

// DataDir returns $XDG_DATA_HOME/codebattle, or ~/.local/share/codebattle.
func DataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "codebattle"), nil
}

func (d *diskStore) Save(p *Prefs) error {
	if p.Directory == "" {
		return errors.New("saving preferences: no directory")
	}
	f := prefsFile{Directory: filepath.Clean(p.Directory), Stdin: p.Stdin}
	if rel, ok := within(f.Directory, p.SelectedFile); ok {
		f.Selected = rel
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}
	if err := writeAtomic(d.path, data); err != nil {
		return fmt.Errorf("saving preferences: %w", err)
	}
	return nil
}

func (d *diskStore) Load() (*Prefs, error) {
	data, err := os.ReadFile(d.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoPrefs
	}
	if err != nil {
		return nil, fmt.Errorf("reading preferences: %w", err)
	}
	var f prefsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing preferences: %w", err)
	}

	if info, err := os.Stat(f.Directory); f.Directory == "" || err != nil || !info.IsDir() {
		if err := d.remove(); err != nil {
			return nil, err
		}
		return nil, ErrNoPrefs
	}

	p := &Prefs{Directory: f.Directory, Stdin: f.Stdin}
	if f.Selected != "" {
		if path := filepath.Join(f.Directory, f.Selected); fileExists(path) {
			if _, ok := within(f.Directory, path); ok {
				p.SelectedFile = path
			}
		}
	}
	return p, nil
}

// remove discards a prefs file that can no longer be restored.
func (d *diskStore) remove() error {
	if err := os.Remove(d.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing stale preferences: %w", err)
	}
	return nil
}

// within reports path relative to dir when path lies inside it.
func within(dir, path string) (string, bool) {
	if path == "" {
		return "", false
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// writeAtomic replaces path with data through a temp file in the same
// directory.
func writeAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
