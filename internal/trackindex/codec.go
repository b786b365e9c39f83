// Harmonia - Acoustic Corpus Ingestion and Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonia

package trackindex

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Value codec identifiers, stored as the first byte of every value so
// reads decode correctly regardless of the currently configured codec.
const (
	codecIdentity byte = 0
	codecZstd     byte = 1
)

// Codec compresses submission groups before storage. Compression is a
// space/CPU tradeoff, not a correctness requirement; decoding is
// transparent to callers either way.
type Codec interface {
	ID() byte
	Encode(src []byte) ([]byte, error)
	Decode(src []byte) ([]byte, error)
}

// identity is the no-op codec.
type identity struct{}

func (identity) ID() byte                          { return codecIdentity }
func (identity) Encode(src []byte) ([]byte, error) { return src, nil }
func (identity) Decode(src []byte) ([]byte, error) { return src, nil }

// zstdCodec compresses values with zstd. Encoder and decoder are
// stateless-mode instances, safe for concurrent EncodeAll/DecodeAll.
type zstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstdCodec() (*zstdCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &zstdCodec{enc: enc, dec: dec}, nil
}

func (c *zstdCodec) ID() byte { return codecZstd }

func (c *zstdCodec) Encode(src []byte) ([]byte, error) {
	return c.enc.EncodeAll(src, make([]byte, 0, len(src)/2)), nil
}

func (c *zstdCodec) Decode(src []byte) ([]byte, error) {
	out, err := c.dec.DecodeAll(src, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}

// encodeValue prefixes the encoded payload with the codec id.
func encodeValue(c Codec, payload []byte) ([]byte, error) {
	encoded, err := c.Encode(payload)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(encoded)+1)
	out = append(out, c.ID())
	return append(out, encoded...), nil
}

// decodeValue dispatches on the stored codec id, so groups written with
// compression on remain readable after it is switched off and vice versa.
func (ix *Index) decodeValue(value []byte) ([]byte, error) {
	if len(value) == 0 {
		return nil, fmt.Errorf("empty index value")
	}
	switch value[0] {
	case codecIdentity:
		return value[1:], nil
	case codecZstd:
		return ix.zstd.Decode(value[1:])
	default:
		return nil, fmt.Errorf("unknown value codec id %d", value[0])
	}
}
