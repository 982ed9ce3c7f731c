package cache

import (
	"context"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Compressed wraps a Store and zstd-encodes values at rest.
// Callers always see plain bodies.
type Compressed struct {
	inner Store
	enc   *zstd.Encoder
	dec   *zstd.Decoder
}

// NewCompressed wraps inner with zstd compression.
func NewCompressed(inner Store) *Compressed {
	if inner == nil {
		panic("inner store cannot be nil")
	}

	// A nil writer/reader is allowed when only EncodeAll/DecodeAll are used.
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(fmt.Sprintf("create zstd encoder: %v", err))
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("create zstd decoder: %v", err))
	}

	return &Compressed{inner: inner, enc: enc, dec: dec}
}

// Get returns the decompressed value stored under key.
func (c *Compressed) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	plain, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		CacheErrors.WithLabelValues("compressed", "decode").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return plain, nil
}

// Set compresses value and stores it under key.
func (c *Compressed) Set(ctx context.Context, key string, value []byte) error {
	return c.inner.Set(ctx, key, c.enc.EncodeAll(value, nil))
}
