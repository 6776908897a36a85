package log

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInitWriter_FormatsFields(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, LevelDebug)
	t.Cleanup(func() { setDefault(nil) })

	Info(CatRegistry, "registered", "id", "A", "orphan")

	out := buf.String()
	require.Contains(t, out, "[INFO] [registry] registered id=A orphan=<missing>")
}

func TestMinLevel_FiltersLowerLevels(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, LevelWarn)
	t.Cleanup(func() { setDefault(nil) })

	Debug(CatLoader, "hidden")
	Info(CatLoader, "hidden")
	ErrorErr(CatLoader, "shown", nil)

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "error=<nil>")
}

func TestSetEnabled_False(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, LevelDebug)
	t.Cleanup(func() { setDefault(nil) })

	SetEnabled(false)
	Error(CatStore, "dropped")
	require.Empty(t, buf.String())
}

func TestInit_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	cleanup, err := Init(path)
	require.NoError(t, err)
	t.Cleanup(func() { setDefault(nil) })

	Warn(CatWatcher, "event", "path", "/tmp/x")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "[WARN] [watcher] event path=/tmp/x")
}

func TestSubscribe_ReceivesEntries(t *testing.T) {
	InitWriter(nil, LevelDebug)
	t.Cleanup(func() { setDefault(nil) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := Subscribe(ctx)
	require.NotNil(t, ch)

	Info(CatCatalog, "hello")

	select {
	case ev := <-ch:
		require.Contains(t, ev.Payload, "hello")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for log event")
	}
}

func TestSubscribe_Uninitialized(t *testing.T) {
	setDefault(nil)
	require.Nil(t, Subscribe(context.Background()))
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, LevelWarn, ParseLevel("warning"))
	require.Equal(t, LevelError, ParseLevel("error"))
	require.Equal(t, LevelInfo, ParseLevel("whatever"))
}
