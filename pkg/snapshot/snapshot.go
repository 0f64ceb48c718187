// Package snapshot writes values to disk as a zstd-compressed gob stream.
package snapshot

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"
)

// SaveToFile encodes v into filename, replacing any existing file.
func SaveToFile(filename string, v any) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	enc, err := zstd.NewWriter(file, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("failed to create compressor: %w", err)
	}

	if err := gob.NewEncoder(enc).Encode(v); err != nil {
		enc.Close()
		return fmt.Errorf("failed to encode data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to flush compressor: %w", err)
	}

	return file.Sync()
}

// LoadFromFile decodes the content of filename into v, which must be a
// pointer.
func LoadFromFile(filename string, v any) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	dec, err := zstd.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to create decompressor: %w", err)
	}
	defer dec.Close()

	if err := gob.NewDecoder(dec).Decode(v); err != nil {
		return fmt.Errorf("failed to decode data: %w", err)
	}

	return nil
}
