package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTemplates = `default:
  system: "You only answer in haiku."
  description: "Haiku mode"
coding:
  system: "You are a senior Go engineer."
  description: "Code review helper"
`

func writeTemplates(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestMissingFileFallsBackToBuiltinDefault(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope.yaml"))

	assert.Equal(t, []string{"default"}, store.Keys())
	assert.NotEmpty(t, store.Get(DefaultKey).System)
}

func TestEmptyPathUsesBuiltinDefault(t *testing.T) {
	store := NewStore("")
	assert.True(t, store.Has(DefaultKey))
}

func TestFileTemplatesOverrideDefault(t *testing.T) {
	store := NewStore(writeTemplates(t, testTemplates))

	assert.Equal(t, []string{"coding", "default"}, store.Keys())
	assert.Equal(t, "You only answer in haiku.", store.Get(DefaultKey).System)
	assert.Equal(t, "Code review helper", store.Get("coding").Description)
}

func TestUnknownKeyFallsBackToDefault(t *testing.T) {
	store := NewStore(writeTemplates(t, testTemplates))

	assert.False(t, store.Has("nonexistent"))
	assert.Equal(t, "You only answer in haiku.", store.Get("nonexistent").System)
}

func TestFileWithoutDefaultKeepsBuiltin(t *testing.T) {
	store := NewStore(writeTemplates(t, "coding:\n  system: \"Go expert.\"\n  description: \"Coding\"\n"))

	assert.True(t, store.Has("coding"))
	assert.Equal(t, defaultTemplate().System, store.Get(DefaultKey).System)
}

func TestMalformedFileFallsBackToBuiltinDefault(t *testing.T) {
	store := NewStore(writeTemplates(t, "{{{not yaml"))

	assert.Equal(t, []string{"default"}, store.Keys())
	assert.Equal(t, defaultTemplate().System, store.Get(DefaultKey).System)
}

func TestReloadPicksUpChanges(t *testing.T) {
	path := writeTemplates(t, testTemplates)
	store := NewStore(path)
	require.True(t, store.Has("coding"))

	require.NoError(t, os.WriteFile(path, []byte("default:\n  system: \"Changed.\"\n  description: \"d\"\n"), 0o644))
	store.Reload()

	assert.False(t, store.Has("coding"))
	assert.Equal(t, "Changed.", store.Get(DefaultKey).System)
}
