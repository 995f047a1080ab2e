package skills

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/singleflight"
)

const scriptsDir = "scripts"

// FS is a Registry backed by a directory of <skill>/SKILL.md documents. It is
// loaded once at construction and refreshed only by Reload, which Watch may
// call on filesystem changes.
type FS struct {
	root   string
	logger *slog.Logger
	group  singleflight.Group

	mu     sync.RWMutex
	byName map[string]Metadata
	names  []string
}

func NewFS(ctx context.Context, root string, logger *slog.Logger) (*FS, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &FS{
		root:   root,
		logger: logger,
		byName: map[string]Metadata{},
	}
	if err := r.Reload(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FS) ListAll() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return listSorted(r.byName, r.names)
}

func (r *FS) Get(name string) (Metadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lookup(r.byName, name)
}

// Reload rescans the root directory. Concurrent callers share one scan. A
// failed scan leaves the previous contents in place.
func (r *FS) Reload(ctx context.Context) error {
	_, err, _ := r.group.Do("reload", func() (any, error) {
		skills, err := r.scan(ctx)
		if err != nil {
			return nil, err
		}
		index, names, err := indexSkills(skills)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.byName = index
		r.names = names
		r.mu.Unlock()
		r.logger.Debug("skills reloaded", slog.String("root", r.root), slog.Int("count", len(names)))
		return nil, nil
	})
	return err
}

func (r *FS) scan(ctx context.Context) ([]Metadata, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan skills: root=%s: %w", r.root, err)
	}

	var skills []Metadata
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(r.root, entry.Name())
		path := filepath.Join(dir, DocumentName)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("scan skills: path=%s: %w", path, err)
		}
		skill, err := ParseDocument(path, data)
		if err != nil {
			r.logger.Warn("skipping skill document", slog.String("path", path), slog.Any("error", err))
			continue
		}
		if info, err := os.Stat(filepath.Join(dir, scriptsDir)); err == nil && info.IsDir() {
			skill.HasScripts = true
		}
		skills = append(skills, skill)
	}
	return skills, nil
}

// Watch reloads the registry whenever a skill directory changes. It blocks
// until ctx is done.
func (r *FS) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(r.root); err != nil {
		return fmt.Errorf("watch skills root=%s: %w", r.root, err)
	}
	for _, skill := range r.ListAll() {
		dir := filepath.Dir(skill.Path)
		if err := watcher.Add(dir); err != nil {
			r.logger.Warn("watch skill directory failed", slog.String("dir", dir), slog.Any("error", err))
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			r.logger.Debug("skills changed", slog.String("op", event.Op.String()), slog.String("file", event.Name))
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
			if err := r.Reload(ctx); err != nil {
				r.logger.Error("skills reload failed", slog.Any("error", err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Error("fsnotify error", slog.Any("error", err))
		}
	}
}
