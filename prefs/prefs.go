// Package prefs persists per-source audio preferences. Last write wins;
// anything invalid in the file is the UI's problem, not the store's.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
)

type Source string

const (
	SourceQuestion Source = "question"
	SourceGuidance Source = "guidance"
)

type Audio struct {
	Voice    string  `toml:"voice"`
	Speed    float64 `toml:"speed"`
	Autoplay bool    `toml:"autoplay"`
}

func defaults(src Source) Audio {
	switch src {
	case SourceGuidance:
		return Audio{Voice: "verse", Speed: 1.0, Autoplay: false}
	default:
		return Audio{Voice: "alloy", Speed: 1.0, Autoplay: true}
	}
}

type fileData struct {
	Question *Audio `toml:"question"`
	Guidance *Audio `toml:"guidance"`
}

type Store struct {
	path string
	data fileData
	mu   sync.Mutex
}

// DefaultPath resolves the preferences file under the XDG config home.
func DefaultPath() (string, error) {
	p, err := xdg.ConfigFile(filepath.Join("parley", "prefs.toml"))
	if err != nil {
		return "", fmt.Errorf("resolving prefs path: %w", err)
	}
	return p, nil
}

// Open loads the store from path. A missing or unreadable file is not an
// error: the store starts from defaults and writes on the first Set.
func Open(path string) *Store {
	s := &Store{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	// Corrupt prefs are discarded rather than surfaced.
	_ = toml.Unmarshal(data, &s.data)
	return s
}

func (s *Store) Get(src Source) Audio {
	s.mu.Lock()
	defer s.mu.Unlock()
	var p *Audio
	switch src {
	case SourceGuidance:
		p = s.data.Guidance
	default:
		p = s.data.Question
	}
	if p == nil {
		return defaults(src)
	}
	out := *p
	if out.Voice == "" {
		out.Voice = defaults(src).Voice
	}
	if out.Speed <= 0 {
		out.Speed = 1.0
	}
	return out
}

// Set replaces the record for src and persists before returning.
func (s *Store) Set(src Source, p Audio) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p
	switch src {
	case SourceGuidance:
		s.data.Guidance = &cp
	default:
		s.data.Question = &cp
	}
	return s.save()
}

func (s *Store) save() error {
	out, err := toml.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("encoding prefs: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating prefs dir: %w", err)
	}
	if err := os.WriteFile(s.path, out, 0o644); err != nil {
		return fmt.Errorf("writing prefs: %w", err)
	}
	return nil
}
