package bytebuf_test

import (
	"testing"

	"github.com/TMac-wei/mylogger/bytebuf"
	"github.com/stretchr/testify/require"
)

func TestAppendGrows(t *testing.T) {
	b := bytebuf.New(4)
	b.Append([]byte("ab"))
	require.Equal(t, []byte("ab"), b.Data())

	b.Append([]byte("cdefgh"))
	require.Equal(t, []byte("abcdefgh"), b.Data())
	require.GreaterOrEqual(t, b.Capacity(), 8)
}

func TestResizePreservesPrefix(t *testing.T) {
	b := bytebuf.New(8)
	b.Append([]byte("hello"))

	b.Resize(3)
	require.Equal(t, []byte("hel"), b.Data())

	b.Resize(5)
	require.Equal(t, 5, b.Size())
	require.Equal(t, byte('h'), b.Data()[0])
}

func TestClear(t *testing.T) {
	b := bytebuf.New(4)
	b.Append([]byte("xy"))
	b.Clear()
	require.Equal(t, 0, b.Size())
	require.Equal(t, 4, b.Capacity())
}
