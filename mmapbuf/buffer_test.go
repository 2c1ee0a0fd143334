package mmapbuf_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/TMac-wei/mylogger/mmapbuf"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesValidHeader(t *testing.T) {
	dir := t.TempDir()
	b, err := mmapbuf.Open(filepath.Join(dir, "master_cache"), mmapbuf.MinCapacity)
	require.NoError(t, err)
	defer b.Close()

	require.True(t, b.IsValid())
	require.Zero(t, b.Size())
	require.True(t, b.Empty())
	require.Equal(t, 0, b.Capacity()%4096)
	require.GreaterOrEqual(t, b.Capacity(), mmapbuf.MinCapacity-8)
}

func TestPushAndClear(t *testing.T) {
	dir := t.TempDir()
	b, err := mmapbuf.Open(filepath.Join(dir, "cache"), mmapbuf.MinCapacity)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Push([]byte("hello")))
	require.Equal(t, []byte("hello"), b.Data())
	require.Greater(t, b.Ratio(), 0.0)

	b.Clear()
	require.True(t, b.Empty())
}

func TestGrowBeyondInitialCapacity(t *testing.T) {
	dir := t.TempDir()
	b, err := mmapbuf.Open(filepath.Join(dir, "cache"), mmapbuf.MinCapacity)
	require.NoError(t, err)
	defer b.Close()

	big := make([]byte, mmapbuf.MinCapacity+1024)
	require.NoError(t, b.Push(big))
	require.Equal(t, len(big), b.Size())
	require.GreaterOrEqual(t, b.Capacity(), len(big))
}

func TestRecoveryPreservesPayloadAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache")

	b, err := mmapbuf.Open(path, mmapbuf.MinCapacity)
	require.NoError(t, err)
	require.NoError(t, b.Push([]byte("persisted")))
	require.NoError(t, b.Close())

	b2, err := mmapbuf.Open(path, mmapbuf.MinCapacity)
	require.NoError(t, err)
	defer b2.Close()
	require.True(t, b2.IsValid())
	require.Equal(t, []byte("persisted"), b2.Data())
}

func TestOpenDetectsCorruptHeaderOnExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache")

	garbage := make([]byte, mmapbuf.MinCapacity)
	for i := range garbage {
		garbage[i] = 0xAA
	}
	require.NoError(t, os.WriteFile(path, garbage, 0o644))

	b, err := mmapbuf.Open(path, mmapbuf.MinCapacity)
	require.NoError(t, err)
	defer b.Close()

	require.False(t, b.IsValid())
}
