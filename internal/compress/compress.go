// Package compress wraps save payloads in a zstd frame before upload and
// transparently passes through legacy uncompressed payloads on the way
// back, detected by the zstd magic number.
package compress

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// zstd frame magic number, little-endian 0xFD2FB528.
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// Codec compresses and decompresses payloads. Safe for concurrent use.
type Codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCodec builds a codec tuned for small JSON payloads.
func NewCodec() (*Codec, error) {
	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Codec{encoder: encoder, decoder: decoder}, nil
}

// Compress returns data wrapped in a zstd frame.
func (c *Codec) Compress(data []byte) []byte {
	return c.encoder.EncodeAll(data, make([]byte, 0, len(data)/2+64))
}

// Decompress unwraps a zstd frame. Payloads written before compression was
// enabled lack the magic number and are returned unchanged.
func (c *Codec) Decompress(data []byte) ([]byte, error) {
	if !IsCompressed(data) {
		return data, nil
	}
	out, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}
	return out, nil
}

// IsCompressed reports whether data begins with the zstd magic number.
func IsCompressed(data []byte) bool {
	if len(data) < len(zstdMagic) {
		return false
	}
	for i, b := range zstdMagic {
		if data[i] != b {
			return false
		}
	}
	return true
}

// Close releases encoder and decoder resources.
func (c *Codec) Close() {
	c.encoder.Close()
	c.decoder.Close()
}
