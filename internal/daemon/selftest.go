package daemon

import (
	"bytes"
	"context"
	"fmt"

	"github.com/jacoelho/partstore"
	"github.com/jacoelho/partstore/codec/brotli"
	"github.com/jacoelho/partstore/codec/zlib"
	"github.com/jacoelho/partstore/log"
)

var selfTestPayload = bytes.Repeat([]byte("partstore self test payload "), 64)

// SelfTest round-trips a payload through every installed codec when the
// application starts, failing the start if any codec disagrees.
type SelfTest struct {
	logger  log.Logger
	deflate partstore.Optional[zlib.DeflateService]
	inflate partstore.Optional[zlib.InflateService]
	encode  partstore.Optional[brotli.EncodeService]
	decode  partstore.Optional[brotli.DecodeService]

	level   int
	quality int
}

// newSelfTest resolves the codecs present in the store; missing ones are skipped.
func newSelfTest(level, quality int) func(*partstore.Store) (*SelfTest, error) {
	return func(s *partstore.Store) (*SelfTest, error) {
		out, err := partstore.Invoke(s, func(
			logger log.Logger,
			deflate partstore.Optional[zlib.DeflateService],
			inflate partstore.Optional[zlib.InflateService],
			encode partstore.Optional[brotli.EncodeService],
			decode partstore.Optional[brotli.DecodeService],
		) *SelfTest {
			return &SelfTest{
				logger:  logger,
				deflate: deflate,
				inflate: inflate,
				encode:  encode,
				decode:  decode,
				level:   level,
				quality: quality,
			}
		})
		if err != nil {
			return nil, err
		}
		return out[0].(*SelfTest), nil
	}
}

func (t *SelfTest) Start(context.Context) error {
	deflate, hasDeflate := t.deflate.Value()
	inflate, hasInflate := t.inflate.Value()
	if hasDeflate && hasInflate {
		if err := t.check("zlib", func(p []byte) ([]byte, error) {
			return deflate.Deflate(p, t.level)
		}, inflate.Inflate); err != nil {
			return err
		}
	}

	encode, hasEncode := t.encode.Value()
	decode, hasDecode := t.decode.Value()
	if hasEncode && hasDecode {
		if err := t.check("brotli", func(p []byte) ([]byte, error) {
			return encode.Encode(p, t.quality)
		}, decode.Decode); err != nil {
			return err
		}
	}
	return nil
}

func (t *SelfTest) check(codec string, compress, decompress func([]byte) ([]byte, error)) error {
	packed, err := compress(selfTestPayload)
	if err != nil {
		return fmt.Errorf("self test %s: %w", codec, err)
	}
	unpacked, err := decompress(packed)
	if err != nil {
		return fmt.Errorf("self test %s: %w", codec, err)
	}
	if !bytes.Equal(unpacked, selfTestPayload) {
		return fmt.Errorf("self test %s: round trip mismatch", codec)
	}

	t.logger.Debug("codec self test passed",
		log.String("codec", codec),
		log.Int("raw", len(selfTestPayload)),
		log.Int("packed", len(packed)),
	)
	return nil
}
