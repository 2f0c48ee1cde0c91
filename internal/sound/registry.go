// Package sound implements the playback engine: a registry of named
// audio assets and an engine that plays, loops, and fades them through a
// swappable backend (local mixer or networked speaker).
package sound

import (
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Info describes one registered audio asset. Immutable once created.
type Info struct {
	ID       string
	Path     string
	Category string
	Filename string
}

// supportedExtensions are the formats the backends can decode.
var supportedExtensions = map[string]bool{
	".mp3": true,
	".wav": true,
}

// Registry maps sound ids to assets. Safe for concurrent use.
type Registry struct {
	log *zap.SugaredLogger

	mu     sync.RWMutex
	sounds map[string]Info
}

// NewRegistry creates an empty sound registry.
func NewRegistry(log *zap.SugaredLogger) *Registry {
	return &Registry{
		log:    log,
		sounds: make(map[string]Info),
	}
}

// Register adds a sound under the given id. Returns false when the file
// does not exist or has an unsupported extension. Re-registering an id
// replaces the previous entry.
func (r *Registry) Register(id, path, category string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if !supportedExtensions[ext] {
		r.log.Warnw("sound rejected: unsupported extension", "id", id, "path", path)
		return false
	}
	if _, err := os.Stat(path); err != nil {
		r.log.Warnw("sound rejected: file not found", "id", id, "path", path)
		return false
	}

	r.mu.Lock()
	r.sounds[id] = Info{
		ID:       id,
		Path:     path,
		Category: category,
		Filename: filepath.Base(path),
	}
	r.mu.Unlock()

	r.log.Debugw("sound registered", "id", id, "category", category)
	return true
}

// Scan walks root recursively and registers every .mp3 found. The first
// path segment below root becomes the category, the filename stem the id.
// Returns the number of sounds registered.
func (r *Registry) Scan(root string) int {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if strings.ToLower(filepath.Ext(path)) != ".mp3" {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		category := "default"
		if parts := strings.Split(rel, string(filepath.Separator)); len(parts) > 1 {
			category = parts[0]
		}
		id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if r.Register(id, path, category) {
			count++
		}
		return nil
	})
	if err != nil {
		r.log.Errorw("sound scan failed", "root", root, "err", err)
	}
	r.log.Infow("sound scan complete", "root", root, "sounds", count)
	return count
}

// Get looks up a sound by id.
func (r *Registry) Get(id string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.sounds[id]
	return info, ok
}

// ByCategory returns all sounds in a category, sorted by id.
func (r *Registry) ByCategory(category string) []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Info
	for _, info := range r.sounds {
		if info.Category == category {
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Random picks a random sound from a category, for the rotating loading
// phrases. Returns false when the category is empty.
func (r *Registry) Random(category string) (Info, bool) {
	all := r.ByCategory(category)
	if len(all) == 0 {
		return Info{}, false
	}
	return all[rand.Intn(len(all))], true
}

// Len returns the number of registered sounds.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sounds)
}
