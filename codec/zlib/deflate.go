package zlib

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"

	"github.com/jacoelho/partstore"
)

// Compression levels accepted by DeflateService.
const (
	HuffmanOnly        = zlib.HuffmanOnly
	DefaultCompression = zlib.DefaultCompression
	NoCompression      = zlib.NoCompression
	BestSpeed          = zlib.BestSpeed
	BestCompression    = zlib.BestCompression
)

// ErrClosed is returned by a service used after its store was cleared.
var ErrClosed = errors.New("service closed")

// DeflateService produces zlib streams.
type DeflateService interface {
	// NewWriter returns a writer compressing into w at level.
	NewWriter(w io.Writer, level int) (io.WriteCloser, error)

	// NewWriterDict is like NewWriter with a preset dictionary.
	NewWriterDict(w io.Writer, level int, dict []byte) (io.WriteCloser, error)

	// Deflate compresses p in one call, reusing pooled writers.
	Deflate(p []byte, level int) ([]byte, error)
}

type deflateService struct {
	mu     sync.RWMutex
	closed bool
	pools  [BestCompression - HuffmanOnly + 1]sync.Pool
}

func newDeflateService(*partstore.Store) (*deflateService, error) {
	return &deflateService{}, nil
}

// KeyType registers the service under DeflateService.
func (*deflateService) KeyType() partstore.Keyer {
	return partstore.As[DeflateService]()
}

// InstallDeflateService adds a DeflateService to s.
func InstallDeflateService(s *partstore.Store) (DeflateService, error) {
	return partstore.Emplace(s, newDeflateService)
}

func (d *deflateService) NewWriter(w io.Writer, level int) (io.WriteCloser, error) {
	return d.NewWriterDict(w, level, nil)
}

func (d *deflateService) NewWriterDict(w io.Writer, level int, dict []byte) (io.WriteCloser, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	zw, err := zlib.NewWriterLevelDict(w, level, dict)
	if err != nil {
		return nil, fmt.Errorf("deflate level %d: %w", level, err)
	}
	return zw, nil
}

func (d *deflateService) Deflate(p []byte, level int) ([]byte, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	if level < HuffmanOnly || level > BestCompression {
		return nil, fmt.Errorf("deflate level %d: invalid compression level", level)
	}

	var buf bytes.Buffer
	pool := &d.pools[level-HuffmanOnly]
	zw, ok := pool.Get().(*zlib.Writer)
	if ok {
		zw.Reset(&buf)
	} else {
		var err error
		if zw, err = zlib.NewWriterLevel(&buf, level); err != nil {
			return nil, fmt.Errorf("deflate level %d: %w", level, err)
		}
	}
	defer pool.Put(zw)

	if _, err := zw.Write(p); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	return buf.Bytes(), nil
}

// Close marks the service closed; later calls fail with ErrClosed.
func (d *deflateService) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *deflateService) check() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return fmt.Errorf("deflate: %w", ErrClosed)
	}
	return nil
}
