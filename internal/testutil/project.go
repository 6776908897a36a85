package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// Project writes metadata files into a temporary projects directory.
type Project struct {
	t    testing.TB
	Root string
}

// NewProject creates a project rooted in a fresh temp dir.
func NewProject(t testing.TB) *Project {
	t.Helper()
	return &Project{t: t, Root: t.TempDir()}
}

// Write writes doc as <kind>-<name>.yaml into the root and returns its path.
func (p *Project) Write(kind, name string, doc map[string]any) string {
	p.t.Helper()
	return p.WriteIn("", kind, name, doc)
}

// WriteIn writes doc as <kind>-<name>.yaml into dir below the root.
func (p *Project) WriteIn(dir, kind, name string, doc map[string]any) string {
	p.t.Helper()
	b, err := yaml.Marshal(doc)
	require.NoError(p.t, err)
	return p.WriteRaw(filepath.Join(dir, kind+"-"+name+".yaml"), string(b))
}

// WriteRaw writes content to rel below the root and returns the full path.
func (p *Project) WriteRaw(rel, content string) string {
	p.t.Helper()
	path := filepath.Join(p.Root, rel)
	require.NoError(p.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(p.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// Touch moves the modification time of path forward so a rescan sees a change.
func (p *Project) Touch(path string) {
	p.t.Helper()
	ts := time.Now().Add(time.Hour)
	require.NoError(p.t, os.Chtimes(path, ts, ts))
}

// Remove deletes path.
func (p *Project) Remove(path string) {
	p.t.Helper()
	require.NoError(p.t, os.Remove(path))
}
