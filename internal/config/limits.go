package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/shorewatch/shorewatch/pkg/tiers"
)

// LoadLimits parses a tier limits override file. Tiers absent from the
// file keep their built-in limits.
func LoadLimits(path string) (func(tiers.Tier) tiers.Limits, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading limits file: %w", err)
	}

	var overrides map[string]tiers.Limits
	if err := json.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parsing limits file: %w", err)
	}

	table := make(map[tiers.Tier]tiers.Limits, len(overrides))
	for name, limits := range overrides {
		t, err := tiers.ParseTier(name)
		if err != nil {
			return nil, fmt.Errorf("limits file: %w", err)
		}
		table[t] = limits
	}

	return func(t tiers.Tier) tiers.Limits {
		if l, ok := table[t]; ok {
			return l
		}
		return tiers.LimitsFor(t)
	}, nil
}

// LimitsWatcher hot-reloads the limits file and pushes the new table
// through apply. A broken rewrite keeps the previous table in effect.
type LimitsWatcher struct {
	path    string
	apply   func(func(tiers.Tier) tiers.Limits)
	watcher *fsnotify.Watcher
}

func NewLimitsWatcher(path string, apply func(func(tiers.Tier) tiers.Limits)) (*LimitsWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors replace files on save, which drops
	// a watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}
	return &LimitsWatcher{path: path, apply: apply, watcher: watcher}, nil
}

// Run applies the current file, then reapplies on every write until the
// stop channel closes.
func (w *LimitsWatcher) Run(stop <-chan struct{}) {
	w.reload()

	var debounce *time.Timer
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			// Editors fire several events per save, collapse them.
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Limits file watcher error")

		case <-stop:
			w.watcher.Close()
			return
		}
	}
}

func (w *LimitsWatcher) reload() {
	lookup, err := LoadLimits(w.path)
	if err != nil {
		log.Error().Err(err).Str("file", w.path).Msg("Failed to reload tier limits, keeping previous table")
		return
	}
	w.apply(lookup)
	log.Info().Str("file", w.path).Msg("Tier limits reloaded")
}
