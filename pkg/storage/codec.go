package storage

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Codec transforms values on their way to and from a durable backend
type Codec interface {
	String() string
	Encode([]byte) ([]byte, error)
	Decode([]byte) ([]byte, error)
}

// RawCodec stores values as is
var RawCodec Codec = rawCodec{}

type rawCodec struct{}

func (rawCodec) String() string                    { return "raw" }
func (rawCodec) Encode(value []byte) ([]byte, error) { return value, nil }
func (rawCodec) Decode(value []byte) ([]byte, error) { return value, nil }

const (
	// compressed values are tagged with a leading byte, so small values may be stored verbatim
	tagRaw  byte = 0
	tagZstd byte = 1

	minCompressSize = 128
)

type zstdCodec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewZstdCodec builds a codec compressing values with zstd.
//
// Level ranges from 1 (fastest) to 4 (best compression). Values smaller than a few hundred bytes
// and values which do not compress are stored uncompressed.
func NewZstdCodec(level int) (Codec, error) {
	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevel(clampLevel(level))),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &zstdCodec{encoder: encoder, decoder: decoder}, nil
}

func clampLevel(level int) int {
	switch {
	case level < int(zstd.SpeedFastest):
		return int(zstd.SpeedDefault)
	case level > int(zstd.SpeedBestCompression):
		return int(zstd.SpeedBestCompression)
	default:
		return level
	}
}

func (c *zstdCodec) String() string { return "zstd" }

func (c *zstdCodec) Encode(value []byte) ([]byte, error) {
	out := make([]byte, 1, len(value)+1)
	if len(value) >= minCompressSize {
		out[0] = tagZstd
		out = c.encoder.EncodeAll(value, out)
		if len(out) < len(value)+1 {
			return out, nil
		}
		out = out[:1]
	}
	out[0] = tagRaw
	return append(out, value...), nil
}

func (c *zstdCodec) Decode(value []byte) ([]byte, error) {
	if len(value) == 0 {
		return nil, fmt.Errorf("zstd codec: empty value")
	}
	switch value[0] {
	case tagRaw:
		return value[1:], nil
	case tagZstd:
		out, err := c.decoder.DecodeAll(value[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("zstd codec: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("zstd codec: unknown value tag %d", value[0])
	}
}
