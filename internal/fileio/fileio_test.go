package fileio

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSave_NextToDiffTarget(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "orig.go")
	require.NoError(t, os.WriteFile(target, []byte("package main\n"), 0644))
	saver := NewSaver(filepath.Join(dir, "unused"), nil)

	// A diff target forces a save even when saving is off; the diff tool
	// needs a file to compare against.
	path, err := saver.Save("new text", target, false)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "orig.response.go"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new text", string(data))
}

func TestSave_TimestampedInSaveDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "responses")
	saver := NewSaver(dir, nil)

	path, err := saver.Save("answer", "", true)
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(path))
	base := filepath.Base(path)
	assert.True(t, strings.HasPrefix(base, "response_"), "unexpected file name %s", base)
	assert.True(t, strings.HasSuffix(base, ".txt"), "unexpected file name %s", base)
	assert.FileExists(t, path)
}

func TestSave_OffWithoutTarget(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "responses")
	saver := NewSaver(dir, nil)

	path, err := saver.Save("answer", "", false)
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.NoDirExists(t, dir)
}

func writeFiles(t *testing.T, oldContent, newContent string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.txt")
	newPath := filepath.Join(dir, "new.txt")
	require.NoError(t, os.WriteFile(oldPath, []byte(oldContent), 0644))
	require.NoError(t, os.WriteFile(newPath, []byte(newContent), 0644))
	return oldPath, newPath
}

func TestLaunch_FallbackUnifiedDiff(t *testing.T) {
	oldPath, newPath := writeFiles(t, "a\nb\nc\n", "a\nx\nc\n")
	var out strings.Builder
	launcher := NewLauncher("", &out, nil)

	require.NoError(t, launcher.Launch(context.Background(), newPath, oldPath))

	got := out.String()
	assert.Contains(t, got, "--- "+oldPath)
	assert.Contains(t, got, "+++ "+newPath)
	assert.Contains(t, got, "-b\n")
	assert.Contains(t, got, "+x\n")
}

func TestLaunch_FallbackIdenticalFiles(t *testing.T) {
	oldPath, newPath := writeFiles(t, "same\n", "same\n")
	var out strings.Builder
	launcher := NewLauncher("", &out, nil)

	require.NoError(t, launcher.Launch(context.Background(), newPath, oldPath))
	assert.Contains(t, out.String(), "no differences")
}

func TestLaunch_FallbackMissingTarget(t *testing.T) {
	_, newPath := writeFiles(t, "", "x\n")
	launcher := NewLauncher("", &strings.Builder{}, nil)

	err := launcher.Launch(context.Background(), newPath, filepath.Join(t.TempDir(), "absent.txt"))
	assert.Error(t, err)
}

func TestLaunch_ExternalCommand(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not available")
	}
	oldPath, newPath := writeFiles(t, "a\n", "b\n")
	launcher := NewLauncher("true", nil, nil)

	assert.NoError(t, launcher.Launch(context.Background(), newPath, oldPath))
}

func TestLaunch_ExternalCommandFailure(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not available")
	}
	oldPath, newPath := writeFiles(t, "a\n", "b\n")
	launcher := NewLauncher("false", nil, nil)

	err := launcher.Launch(context.Background(), newPath, oldPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "false")
}
