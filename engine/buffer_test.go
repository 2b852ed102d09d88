package engine

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferPool_DefaultSize(t *testing.T) {
	bp := NewBufferPool(0)
	require.Equal(t, DefaultBufferSize, bp.Size())

	buf := bp.Get()
	require.NotNil(t, buf)
	require.Len(t, *buf, DefaultBufferSize)
	bp.Put(buf)
}

func TestBufferPool_PutNil(t *testing.T) {
	bp := NewBufferPool(8192)
	bp.Put(nil)

	again := bp.Get()
	require.NotNil(t, again)
	require.Len(t, *again, 8192)
}

func TestBufferPool_Copy(t *testing.T) {
	data := strings.Repeat("ACGT", 5000)

	var out bytes.Buffer
	n, err := NewBufferPool(64).Copy(&out, strings.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), n)
	require.Equal(t, data, out.String())

	var nilPool *BufferPool
	out.Reset()
	n, err = nilPool.Copy(&out, strings.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), n)
	require.Zero(t, nilPool.Size())
}
