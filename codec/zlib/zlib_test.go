package zlib_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacoelho/partstore"
	"github.com/jacoelho/partstore/codec/zlib"
)

func install(t *testing.T) (*partstore.Store, zlib.DeflateService, zlib.InflateService) {
	t.Helper()
	s := new(partstore.Store)
	d, err := zlib.InstallDeflateService(s)
	require.NoError(t, err)
	i, err := zlib.InstallInflateService(s)
	require.NoError(t, err)
	return s, d, i
}

func TestInstallRegistersInterfaces(t *testing.T) {
	s, d, i := install(t)

	assert.Equal(t, d, partstore.MustGet[zlib.DeflateService](s))
	assert.Equal(t, i, partstore.MustGet[zlib.InflateService](s))

	_, err := zlib.InstallDeflateService(s)
	assert.ErrorIs(t, err, partstore.ErrDuplicateKey)
}

func TestRoundTrip(t *testing.T) {
	_, d, i := install(t)
	payload := bytes.Repeat([]byte("compress me "), 100)

	for _, level := range []int{zlib.HuffmanOnly, zlib.DefaultCompression, zlib.NoCompression, zlib.BestSpeed, zlib.BestCompression} {
		packed, err := d.Deflate(payload, level)
		require.NoError(t, err)

		// a second call reuses the pooled writer
		again, err := d.Deflate(payload, level)
		require.NoError(t, err)
		assert.Equal(t, packed, again)

		unpacked, err := i.Inflate(packed)
		require.NoError(t, err)
		assert.Equal(t, payload, unpacked)

		unpacked, err = i.Inflate(again)
		require.NoError(t, err)
		assert.Equal(t, payload, unpacked)
	}
}

func TestStreamWithDictionary(t *testing.T) {
	_, d, i := install(t)
	dict := []byte("partstore dictionary")
	payload := []byte("partstore dictionary partstore dictionary")

	var buf bytes.Buffer
	w, err := d.NewWriterDict(&buf, zlib.BestCompression, dict)
	require.NoError(t, err)
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := i.NewReaderDict(bytes.NewReader(buf.Bytes()), dict)
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, payload, got)
}

func TestInvalidInput(t *testing.T) {
	_, d, i := install(t)

	_, err := d.Deflate([]byte("x"), 42)
	assert.Error(t, err)

	_, err = i.Inflate([]byte("not zlib"))
	assert.Error(t, err)
}

func TestClosedByStore(t *testing.T) {
	s, d, i := install(t)
	require.NoError(t, s.Clear())

	_, err := d.Deflate([]byte("x"), zlib.DefaultCompression)
	assert.ErrorIs(t, err, zlib.ErrClosed)
	_, err = i.NewReader(bytes.NewReader(nil))
	assert.ErrorIs(t, err, zlib.ErrClosed)
}
