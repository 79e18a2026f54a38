package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverwriteAllowed(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "existing")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0644))
	missing := filepath.Join(dir, "missing")

	noPrompt := func(t *testing.T) func(string) (bool, error) {
		return func(string) (bool, error) {
			t.Fatal("prompt should not run")
			return false, nil
		}
	}

	t.Run("missing file needs no prompt", func(t *testing.T) {
		ok, err := overwriteAllowed(missing, false, noPrompt(t))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("force skips the prompt", func(t *testing.T) {
		ok, err := overwriteAllowed(existing, true, noPrompt(t))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("prompt accepted", func(t *testing.T) {
		ok, err := overwriteAllowed(existing, false, func(string) (bool, error) {
			return true, nil
		})
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("prompt declined", func(t *testing.T) {
		ok, err := overwriteAllowed(existing, false, func(string) (bool, error) {
			return false, nil
		})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("prompt failure surfaces", func(t *testing.T) {
		promptErr := errors.New("no interactive terminal")
		ok, err := overwriteAllowed(existing, false, func(string) (bool, error) {
			return false, promptErr
		})
		assert.ErrorIs(t, err, promptErr)
		assert.False(t, ok)
	})
}
