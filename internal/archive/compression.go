package archive

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// DefaultMinCompressSize keeps small bodies uncompressed.
const DefaultMinCompressSize = 1024

// compressor pools zstd encoders and decoders for archive bodies.
type compressor struct {
	minSize  int
	encoders sync.Pool
	decoders sync.Pool
}

func newCompressor(minSize, level int) (*compressor, error) {
	encLevel := zstd.EncoderLevelFromZstd(level)

	// Fail early on bad options rather than inside the pool.
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("creating decoder: %w", err)
	}

	c := &compressor{minSize: minSize}
	c.encoders.New = func() interface{} {
		e, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel), zstd.WithEncoderConcurrency(1))
		return e
	}
	c.decoders.New = func() interface{} {
		d, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		return d
	}
	c.encoders.Put(enc)
	c.decoders.Put(dec)
	return c, nil
}

// compress returns the stored form of body and whether it was compressed.
func (c *compressor) compress(body []byte) ([]byte, bool) {
	if len(body) < c.minSize {
		return body, false
	}

	enc := c.encoders.Get().(*zstd.Encoder)
	defer c.encoders.Put(enc)

	out := enc.EncodeAll(body, make([]byte, 0, len(body)/2))
	if len(out) >= len(body) {
		return body, false
	}
	return out, true
}

func (c *compressor) decompress(stored []byte) ([]byte, error) {
	if !bytes.HasPrefix(stored, zstdMagic) {
		return nil, fmt.Errorf("body is not zstd compressed")
	}

	dec := c.decoders.Get().(*zstd.Decoder)
	defer c.decoders.Put(dec)

	return dec.DecodeAll(stored, nil)
}
