package sound

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkessler/juno/internal/logger"
)

func writeSound(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("ID3fake"), 0o644))
	return path
}

func TestRegistryRegisterAndGet(t *testing.T) {
	dir := t.TempDir()
	path := writeSound(t, dir, "chime.mp3")

	r := NewRegistry(logger.Nop())
	assert.True(t, r.Register("chime", path, "alerts"))

	info, ok := r.Get("chime")
	require.True(t, ok)
	assert.Equal(t, "chime", info.ID)
	assert.Equal(t, "alerts", info.Category)
	assert.Equal(t, path, info.Path)
}

func TestRegistryRejectsMissingAndUnsupported(t *testing.T) {
	dir := t.TempDir()
	path := writeSound(t, dir, "notes.txt")

	r := NewRegistry(logger.Nop())
	assert.False(t, r.Register("missing", filepath.Join(dir, "nope.mp3"), "x"))
	assert.False(t, r.Register("text", path, "x"))
	assert.Equal(t, 0, r.Len())
}

func TestRegistryScanCategories(t *testing.T) {
	dir := t.TempDir()
	writeSound(t, dir, "beep.mp3")
	writeSound(t, dir, filepath.Join("alarm", "bell.mp3"))
	writeSound(t, dir, filepath.Join("alarm", "horn.mp3"))
	writeSound(t, dir, filepath.Join("loading", "hmm.mp3"))
	writeSound(t, dir, "readme.txt")

	r := NewRegistry(logger.Nop())
	assert.Equal(t, 4, r.Scan(dir))

	info, ok := r.Get("beep")
	require.True(t, ok)
	assert.Equal(t, "default", info.Category)

	alarms := r.ByCategory("alarm")
	require.Len(t, alarms, 2)
	assert.Equal(t, "bell", alarms[0].ID)
	assert.Equal(t, "horn", alarms[1].ID)
}

func TestRegistryRandomFromCategory(t *testing.T) {
	dir := t.TempDir()
	writeSound(t, dir, filepath.Join("loading", "one.mp3"))
	writeSound(t, dir, filepath.Join("loading", "two.mp3"))

	r := NewRegistry(logger.Nop())
	r.Scan(dir)

	info, ok := r.Random("loading")
	require.True(t, ok)
	assert.Equal(t, "loading", info.Category)

	_, ok = r.Random("empty")
	assert.False(t, ok)
}
