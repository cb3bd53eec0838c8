package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadQueryConfig_MissingPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadQueryConfig("")
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.BufferSize)
	assert.Equal(t, DefaultFiles(), cfg.Files)
}

func TestLoadQueryConfig_NonexistentFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadQueryConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultFiles(), cfg.Files)
}

func TestLoadQueryConfig_OverridesDefaultsFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "query.yaml")
	yaml := "buffer_size: 128\ntitle_lo: A\ntitle_hi: M\nfiles:\n  movies: custom_movies.bin\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadQueryConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 128, cfg.BufferSize)
	assert.Equal(t, "A", cfg.TitleLo)
	assert.Equal(t, "M", cfg.TitleHi)
	assert.Equal(t, "custom_movies.bin", cfg.Files.Movies)
	// Unset fields fall back to the defaults established before unmarshal.
	assert.Equal(t, "imdb_workedon.bin", cfg.Files.WorkedOn)
}

func TestLoadPreprocessConfig_OverridesDefaultsFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "preprocess.yaml")
	yaml := "buffer_size: 5000\nmovies_tsv: title.basics.tsv\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadPreprocessConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.BufferSize)
	assert.Equal(t, "title.basics.tsv", cfg.MoviesTSV)
	assert.Equal(t, DefaultFiles().People, cfg.Files.People)
}
