package theme

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

// Key is the name the selected theme is stored under.
const Key = "kanban-theme"

const Default = "light"

// Themes lists every selectable theme.
var Themes = []string{
	"light", "dark", "cupcake", "bumblebee", "emerald", "corporate",
	"synthwave", "retro", "cyberpunk", "valentine", "halloween", "garden",
	"forest", "aqua", "lofi", "pastel", "fantasy", "wireframe", "black",
	"luxury", "dracula", "cmyk", "autumn", "business", "acid", "lemonade",
	"night", "coffee", "winter", "dim", "nord", "sunset",
}

var ErrUnknownTheme = errors.New("unknown theme")

const filePerms = 0o644

func Valid(name string) bool {
	return slices.Contains(Themes, name)
}

// Store keeps the selected theme in a small JSON file. Comments and trailing
// commas are allowed when the file is edited by hand.
type Store struct {
	Path string
}

// DefaultPath is the preferences file under the user's config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "taskboard", "preferences.json")
}

// Load returns the saved theme, or Default when nothing valid is stored.
// A missing file is not an error.
func (s Store) Load() (string, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return Default, nil
	}
	if err != nil {
		return Default, fmt.Errorf("failed to read preferences: %w", err)
	}

	prefs, err := parse(data)
	if err != nil {
		return Default, fmt.Errorf("invalid preferences %s: %w", s.Path, err)
	}
	name, _ := prefs[Key].(string)
	if !Valid(name) {
		return Default, nil
	}
	return name, nil
}

// Save stores name, keeping any other keys already in the file.
func (s Store) Save(name string) error {
	if !Valid(name) {
		return fmt.Errorf("%w: %q", ErrUnknownTheme, name)
	}

	prefs := map[string]any{}
	if data, err := os.ReadFile(s.Path); err == nil {
		if existing, err := parse(data); err == nil {
			prefs = existing
		}
	}
	prefs[Key] = name

	out, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return err
	}
	out = append(out, '\n')

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create preferences dir: %w", err)
	}
	if err := atomic.WriteFile(s.Path, bytes.NewReader(out)); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	// atomic.WriteFile leaves new files with the temp file's mode.
	if err := os.Chmod(s.Path, filePerms); err != nil {
		return fmt.Errorf("failed to set preferences permissions: %w", err)
	}
	return nil
}

func parse(data []byte) (map[string]any, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("invalid JSONC: %w", err)
	}
	prefs := map[string]any{}
	if err := json.Unmarshal(standardized, &prefs); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return prefs, nil
}
