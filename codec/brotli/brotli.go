package brotli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/andybalholm/brotli"

	"github.com/jacoelho/partstore"
)

// Quality bounds accepted by EncodeService.
const (
	BestSpeed          = brotli.BestSpeed
	BestCompression    = brotli.BestCompression
	DefaultCompression = brotli.DefaultCompression
)

// ErrClosed is returned by a service used after its store was cleared.
var ErrClosed = errors.New("service closed")

// EncodeService produces brotli streams.
type EncodeService interface {
	// NewWriter returns a writer compressing into w at quality.
	NewWriter(w io.Writer, quality int) (io.WriteCloser, error)

	// Encode compresses p in one call.
	Encode(p []byte, quality int) ([]byte, error)
}

// DecodeService reads brotli streams.
type DecodeService interface {
	// NewReader returns a reader decompressing r.
	NewReader(r io.Reader) (io.Reader, error)

	// Decode decompresses p in one call.
	Decode(p []byte) ([]byte, error)
}

type service struct {
	mu     sync.RWMutex
	closed bool
}

func (s *service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *service) check(op string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("%s: %w", op, ErrClosed)
	}
	return nil
}

type encodeService struct {
	service
}

func newEncodeService(*partstore.Store) (*encodeService, error) {
	return &encodeService{}, nil
}

// KeyType registers the service under EncodeService.
func (*encodeService) KeyType() partstore.Keyer {
	return partstore.As[EncodeService]()
}

// InstallEncodeService adds an EncodeService to s.
func InstallEncodeService(s *partstore.Store) (EncodeService, error) {
	return partstore.Emplace(s, newEncodeService)
}

func (e *encodeService) NewWriter(w io.Writer, quality int) (io.WriteCloser, error) {
	if err := e.check("encode"); err != nil {
		return nil, err
	}
	if quality < BestSpeed || quality > BestCompression {
		return nil, fmt.Errorf("encode quality %d: out of range [%d, %d]", quality, BestSpeed, BestCompression)
	}
	return brotli.NewWriterLevel(w, quality), nil
}

func (e *encodeService) Encode(p []byte, quality int) ([]byte, error) {
	var buf bytes.Buffer
	bw, err := e.NewWriter(&buf, quality)
	if err != nil {
		return nil, err
	}
	if _, err := bw.Write(p); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	if err := bw.Close(); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}

type decodeService struct {
	service
}

func newDecodeService(*partstore.Store) (*decodeService, error) {
	return &decodeService{}, nil
}

// KeyType registers the service under DecodeService.
func (*decodeService) KeyType() partstore.Keyer {
	return partstore.As[DecodeService]()
}

// InstallDecodeService adds a DecodeService to s.
func InstallDecodeService(s *partstore.Store) (DecodeService, error) {
	return partstore.Emplace(s, newDecodeService)
}

func (d *decodeService) NewReader(r io.Reader) (io.Reader, error) {
	if err := d.check("decode"); err != nil {
		return nil, err
	}
	return brotli.NewReader(r), nil
}

func (d *decodeService) Decode(p []byte) ([]byte, error) {
	br, err := d.NewReader(bytes.NewReader(p))
	if err != nil {
		return nil, err
	}
	out, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return out, nil
}
