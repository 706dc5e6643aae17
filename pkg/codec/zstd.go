// Package codec compresses and decompresses archived feed payloads with
// a self-describing algorithm tag, so the archive can evolve to new
// compression schemes without breaking reads of old rows.
package codec

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Algo identifies a compression algorithm. Stored alongside the
// compressed bytes so decoding never has to guess.
type Algo string

const (
	// AlgoZstd is the only algorithm this package currently implements.
	AlgoZstd Algo = "zstd"
)

var (
	encoderOnce sync.Once
	encoder     *zstd.Encoder
	encoderErr  error

	decoderOnce sync.Once
	decoder     *zstd.Decoder
	decoderErr  error
)

func getEncoder() (*zstd.Encoder, error) {
	encoderOnce.Do(func() {
		encoder, encoderErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	return encoder, encoderErr
}

func getDecoder() (*zstd.Decoder, error) {
	decoderOnce.Do(func() {
		decoder, decoderErr = zstd.NewReader(nil)
	})
	return decoder, decoderErr
}

// Encoded is the stored form of a compressed payload.
type Encoded struct {
	Algo         Algo
	Compressed   []byte
	OriginalSize int
}

// Encode compresses raw bytes with the default algorithm (zstd, balanced
// speed/ratio level, tuned for JSON payloads).
func Encode(raw []byte) (Encoded, error) {
	enc, err := getEncoder()
	if err != nil {
		return Encoded{}, fmt.Errorf("codec: build encoder: %w", err)
	}
	compressed := enc.EncodeAll(raw, make([]byte, 0, len(raw)/2))
	return Encoded{
		Algo:         AlgoZstd,
		Compressed:   compressed,
		OriginalSize: len(raw),
	}, nil
}

// Decode decompresses bytes previously produced by Encode, dispatching
// on the stored algorithm tag. An unrecognized tag fails loudly rather
// than silently returning garbage.
func Decode(algo Algo, compressed []byte) ([]byte, error) {
	switch algo {
	case AlgoZstd:
		dec, err := getDecoder()
		if err != nil {
			return nil, fmt.Errorf("codec: build decoder: %w", err)
		}
		raw, err := dec.DecodeAll(compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("codec: zstd decode: %w", err)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("codec: unknown algorithm tag %q", algo)
	}
}
