package redis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic starts every zstd frame; plain JSON never does.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

func zstdCodecs() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if zstdErr != nil {
			return
		}
		zstdDecoder, zstdErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	})
	return zstdEncoder, zstdDecoder, zstdErr
}

// encodeValue marshals v to JSON and optionally compresses it.
func encodeValue(v any, compress bool) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cache marshal: %w", err)
	}
	if !compress {
		return data, nil
	}

	enc, _, err := zstdCodecs()
	if err != nil {
		return nil, fmt.Errorf("cache compressor: %w", err)
	}
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

// decodeValue reverses encodeValue. Compressed and plain payloads are both
// accepted so the compression setting can change without a flush. Numbers
// decode as json.Number to keep integer precision in untyped rows.
func decodeValue(data []byte, out any) error {
	if bytes.HasPrefix(data, zstdMagic) {
		_, dec, err := zstdCodecs()
		if err != nil {
			return fmt.Errorf("cache decompressor: %w", err)
		}
		data, err = dec.DecodeAll(data, nil)
		if err != nil {
			return fmt.Errorf("cache decompress: %w", err)
		}
	}

	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()
	if err := d.Decode(out); err != nil {
		return fmt.Errorf("cache unmarshal: %w", err)
	}
	return nil
}
