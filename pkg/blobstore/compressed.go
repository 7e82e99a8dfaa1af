package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic opens every zstd frame.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

var (
	encoderOnce sync.Once
	encoder     *zstd.Encoder
	decoderOnce sync.Once
	decoder     *zstd.Decoder
)

// Encoder returns a shared zstd encoder. EncodeAll is safe for concurrent use.
func Encoder() *zstd.Encoder {
	encoderOnce.Do(func() {
		encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	return encoder
}

// Decoder returns a shared zstd decoder. DecodeAll is safe for concurrent use.
func Decoder() *zstd.Decoder {
	decoderOnce.Do(func() {
		decoder, _ = zstd.NewReader(nil)
	})
	return decoder
}

// Compress encodes data as a single zstd frame.
func Compress(data []byte) []byte {
	return Encoder().EncodeAll(data, make([]byte, 0, len(data)/2))
}

// Decompress decodes a zstd frame. Data without the zstd magic is returned
// unchanged so stores written before compression was enabled stay readable.
func Decompress(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, zstdMagic) {
		return data, nil
	}
	out, err := Decoder().DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress: %w", err)
	}
	return out, nil
}

// CompressedStore wraps a Store and transparently zstd-compresses blobs.
type CompressedStore struct {
	inner Store
}

// NewCompressedStore wraps inner.
func NewCompressedStore(inner Store) *CompressedStore {
	return &CompressedStore{inner: inner}
}

// Put compresses and stores data.
func (c *CompressedStore) Put(ctx context.Context, name string, data []byte) error {
	return c.inner.Put(ctx, name, Compress(data))
}

// Get fetches and decompresses a blob.
func (c *CompressedStore) Get(ctx context.Context, name string) ([]byte, error) {
	data, err := c.inner.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return Decompress(data)
}

// Delete removes a blob.
func (c *CompressedStore) Delete(ctx context.Context, name string) error {
	return c.inner.Delete(ctx, name)
}

// ComponentType implements introspection.Component.
func (c *CompressedStore) ComponentType() string {
	return "blobstore-zstd"
}
