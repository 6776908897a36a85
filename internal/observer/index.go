package observer

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/zjrosen/suiteloader/internal/loader"
	"github.com/zjrosen/suiteloader/internal/log"
	"github.com/zjrosen/suiteloader/internal/watcher"
)

// candidate is a file some factory could handle.
type candidate struct {
	factory loader.Factory
	path    string
	modTime time.Time
}

// maxExtractPasses bounds the restarts caused by nested archives.
const maxExtractPasses = 8

var errRestart = errors.New("archive extracted, restart walk")

// index walks dirs and returns every (factory, path) pair a factory could
// handle. Archives are extracted next to themselves and the walk restarts.
func (p *pathObserver) index(dirs []string, factories []loader.Factory) []candidate {
	for pass := 0; ; pass++ {
		var (
			found     []candidate
			extracted bool
		)
		for _, dir := range dirs {
			err := p.walk(dir, factories, pass < maxExtractPasses, &found)
			if errors.Is(err, errRestart) {
				extracted = true
				break
			}
			if err != nil {
				log.ErrorErr(log.CatObserver, "Indexing directory failed", err, "dir", dir)
			}
		}
		if !extracted {
			return found
		}
		log.Debug(log.CatObserver, "Restarting index after extraction", "root", p.root, "pass", pass)
	}
}

func (p *pathObserver) walk(dir string, factories []loader.Factory, extract bool, found *[]candidate) error {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			log.Warn(log.CatObserver, "Skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != p.root && watcher.IsHidden(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if isArchive(path) {
			if !extract {
				return nil
			}
			ok, err := p.extract(path)
			if err != nil {
				log.ErrorErr(log.CatObserver, "Extracting archive failed", err, "archive", path)
				return nil
			}
			if ok {
				return errRestart
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			// removed while walking
			return nil
		}
		for _, f := range factories {
			if f.CouldHandle(path) {
				*found = append(*found, candidate{factory: f, path: path, modTime: info.ModTime()})
			}
		}
		return nil
	})
	return err
}

// topmost keeps the directories below root that have no ancestor in dirs.
func topmost(root string, dirs []string) []string {
	sorted := slices.Clone(dirs)
	slices.Sort(sorted)
	var out []string
	for _, d := range sorted {
		d = filepath.Clean(d)
		if !within(root, d) {
			continue
		}
		covered := slices.ContainsFunc(out, func(parent string) bool {
			return within(parent, d)
		})
		if !covered {
			out = append(out, d)
		}
	}
	return out
}

// within reports whether path is dir or below it.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
