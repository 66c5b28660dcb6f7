package identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuestIDPersistsAcrossResolves(t *testing.T) {
	dir := t.TempDir()

	first, err := Resolve(dir)
	require.NoError(t, err)
	assert.True(t, first.Guest)
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.Pro())

	second, err := Resolve(dir)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestSessionFileWinsOverGuestID(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, guestFile), []byte("guest-123\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, sessionFile),
		[]byte("user_id = \"u-42\"\nplan = \"pro\"\n"), 0o644))

	id, err := Resolve(dir)
	require.NoError(t, err)
	assert.Equal(t, "u-42", id.ID)
	assert.False(t, id.Guest)
	assert.True(t, id.Pro())
}

func TestSessionWithoutPlanDefaultsToFree(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, sessionFile),
		[]byte("user_id = \"u-7\"\n"), 0o644))

	id, err := Resolve(dir)
	require.NoError(t, err)
	assert.Equal(t, PlanFree, id.Plan)
	assert.False(t, id.Pro())
}

func TestCorruptSessionFallsBackToGuest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, sessionFile), []byte("{not toml"), 0o644))

	id, err := Resolve(dir)
	require.NoError(t, err)
	assert.True(t, id.Guest)
}
