package observer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTopmost(t *testing.T) {
	root := filepath.FromSlash("/p")
	dirs := []string{
		filepath.FromSlash("/p/a/b"),
		filepath.FromSlash("/p/a"),
		filepath.FromSlash("/p/ab"),
		filepath.FromSlash("/elsewhere"),
		filepath.FromSlash("/p/a/b/c"),
	}

	require.Equal(t, []string{filepath.FromSlash("/p/a"), filepath.FromSlash("/p/ab")}, topmost(root, dirs))
	require.Equal(t, []string{root}, topmost(root, append(dirs, root)))
}

func TestWithin(t *testing.T) {
	require.True(t, within("/p", "/p"))
	require.True(t, within("/p", "/p/a/b"))
	require.False(t, within("/p", "/pa"))
	require.False(t, within("/p/a", "/p"))
	require.True(t, within("/p", "/p/..a"))
}

func TestExtractTarget(t *testing.T) {
	require.Equal(t, filepath.FromSlash("/p/bundle"), extractTarget(filepath.FromSlash("/p/bundle.zip")))
	require.True(t, isArchive("x.ZIP"))
	require.False(t, isArchive("x.yaml"))
}
