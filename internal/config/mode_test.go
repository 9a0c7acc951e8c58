package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMode(t *testing.T, dir, id, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".json"), []byte(body), 0o644))
}

func TestModeLoaderCycleFallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	writeMode(t, dir, "a", `{"id":"a","extends":"b"}`)
	writeMode(t, dir, "b", `{"id":"b","extends":"a"}`)

	loader := NewModeLoader(dir)
	mode := loader.Load("a")

	assert.Equal(t, DefaultModeID, mode.ID)
}

func TestModeLoaderInheritsParentFields(t *testing.T) {
	dir := t.TempDir()
	writeMode(t, dir, "base", `{"id":"base","observationTypes":["decision","bugfix"],"concepts":["auth"]}`)
	writeMode(t, dir, "child", `{"id":"child","extends":"base","concepts":["auth","payments"]}`)

	loader := NewModeLoader(dir)
	mode := loader.Load("child")

	assert.Equal(t, "child", mode.ID)
	assert.ElementsMatch(t, []string{"decision", "bugfix"}, mode.ObservationTypes)
	assert.ElementsMatch(t, []string{"auth", "payments"}, mode.Concepts)
}

func TestModeLoaderMissingFileFallsBackToDefault(t *testing.T) {
	loader := NewModeLoader(t.TempDir())
	mode := loader.Load("nonexistent")
	assert.Equal(t, DefaultModeID, mode.ID)
}
