package zlib

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"

	"github.com/jacoelho/partstore"
)

// InflateService reads zlib streams.
type InflateService interface {
	// NewReader returns a reader decompressing r.
	NewReader(r io.Reader) (io.ReadCloser, error)

	// NewReaderDict is like NewReader with a preset dictionary.
	NewReaderDict(r io.Reader, dict []byte) (io.ReadCloser, error)

	// Inflate decompresses p in one call, reusing pooled readers.
	Inflate(p []byte) ([]byte, error)
}

type inflateService struct {
	mu     sync.RWMutex
	closed bool
	pool   sync.Pool
}

func newInflateService(*partstore.Store) (*inflateService, error) {
	return &inflateService{}, nil
}

// KeyType registers the service under InflateService.
func (*inflateService) KeyType() partstore.Keyer {
	return partstore.As[InflateService]()
}

// InstallInflateService adds an InflateService to s.
func InstallInflateService(s *partstore.Store) (InflateService, error) {
	return partstore.Emplace(s, newInflateService)
}

func (i *inflateService) NewReader(r io.Reader) (io.ReadCloser, error) {
	return i.NewReaderDict(r, nil)
}

func (i *inflateService) NewReaderDict(r io.Reader, dict []byte) (io.ReadCloser, error) {
	if err := i.check(); err != nil {
		return nil, err
	}
	zr, err := zlib.NewReaderDict(r, dict)
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	return zr, nil
}

func (i *inflateService) Inflate(p []byte) ([]byte, error) {
	if err := i.check(); err != nil {
		return nil, err
	}

	src := bytes.NewReader(p)
	zr, ok := i.pool.Get().(io.ReadCloser)
	if ok {
		if err := zr.(zlib.Resetter).Reset(src, nil); err != nil {
			return nil, fmt.Errorf("inflate: %w", err)
		}
	} else {
		var err error
		if zr, err = zlib.NewReader(src); err != nil {
			return nil, fmt.Errorf("inflate: %w", err)
		}
	}
	defer i.pool.Put(zr)

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	if err := zr.Close(); err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	return out, nil
}

// Close marks the service closed; later calls fail with ErrClosed.
func (i *inflateService) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.closed = true
	return nil
}

func (i *inflateService) check() error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return fmt.Errorf("inflate: %w", ErrClosed)
	}
	return nil
}
