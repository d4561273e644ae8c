package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleveque/restaurant-images/internal/model"
)

// isolate points storage at a temp dir and clears provider credentials so
// commands run offline.
func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	t.Setenv("RESTO_STORAGE_DATABASE_PATH", filepath.Join(dir, "cli.db"))
	t.Setenv("RESTO_STORAGE_THUMBNAIL_DIR", filepath.Join(dir, "thumbs"))
	t.Setenv("RESTO_QUEUE_SPACING", "0s")
	for _, env := range []string{
		"GOOGLE_API_KEY", "GOOGLE_SEARCH_API_KEY", "GOOGLE_CSE_ID", "GOOGLE_SEARCH_ENGINE_ID",
		"UNSPLASH_ACCESS_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY",
	} {
		t.Setenv(env, "")
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestResolveCommand(t *testing.T) {
	isolate(t)

	out, err := execute(t, "resolve", "Cosme", "New", "York", "--cuisine", "mexican", "--count", "4")
	require.NoError(t, err)

	var images []model.ImageResult
	require.NoError(t, json.Unmarshal([]byte(out), &images), out)
	require.Len(t, images, 4)
	for _, img := range images {
		assert.Equal(t, model.SourceFallback, img.Source)
	}
}

func TestResolveCommand_RequiresQuery(t *testing.T) {
	isolate(t)

	_, err := execute(t, "resolve")
	assert.Error(t, err)
}

func TestCacheCommands(t *testing.T) {
	isolate(t)

	out, err := execute(t, "cache", "prune")
	require.NoError(t, err)
	assert.Equal(t, "pruned 0 expired entries\n", out)

	out, err = execute(t, "cache", "stats")
	require.NoError(t, err)
	var stats map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &stats), out)
	assert.EqualValues(t, 0, stats["mirrored_entries"])
	assert.Equal(t, "24h0m0s", stats["cache_ttl"])

	out, err = execute(t, "cache", "purge", "--thumbnails")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "purged 0 entries"))
}

func TestRecommendCommand_Unconfigured(t *testing.T) {
	isolate(t)

	_, err := execute(t, "recommend", "somewhere", "for", "ramen")
	assert.ErrorContains(t, err, "no LLM providers configured")
}
