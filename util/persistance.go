package util

import (
	"bytes"
	"fmt"
	"os"

	"github.com/golang/snappy"
	"github.com/natefinch/atomic"
	xdr "github.com/nullstyle/go-xdr/xdr3"
)

type persistOptions struct {
	atomic bool
}

type PersistOption func(*persistOptions)

// WithAtomicWrite writes to a temporary file and renames it over the target.
func WithAtomicWrite() PersistOption {
	return func(o *persistOptions) {
		o.atomic = true
	}
}

func Marshal(v any) ([]byte, error) {
	var w bytes.Buffer
	if _, err := xdr.Marshal(&w, v); err != nil {
		return nil, fmt.Errorf("serializing: %w", err)
	}
	return w.Bytes(), nil
}

func Unmarshal(data []byte, v any) error {
	if _, err := xdr.Unmarshal(bytes.NewReader(data), v); err != nil {
		return fmt.Errorf("deserializing: %w", err)
	}
	return nil
}

// Persist serializes v, compresses it into a length prefixed snappy block and writes it to filename.
// Without WithAtomicWrite the file is overwritten in place.
func Persist(filename string, v any, opts ...PersistOption) error {
	var options persistOptions
	for _, opt := range opts {
		opt(&options)
	}

	serialized, err := Marshal(v)
	if err != nil {
		return err
	}
	compressed := snappy.Encode(nil, serialized)

	if options.atomic {
		err = atomic.WriteFile(filename, bytes.NewReader(compressed))
	} else {
		err = os.WriteFile(filename, compressed, 0o600)
	}
	if err != nil {
		return fmt.Errorf("writing to disk: %w", err)
	}

	return nil
}

// Load reverses Persist. The returned error wraps fs.ErrNotExist when filename is missing.
func Load(filename string, v any) error {
	data, err := os.ReadFile(filename) //#nosec G304
	if err != nil {
		return fmt.Errorf("loading file: %w", err)
	}

	decompressed, err := snappy.Decode(nil, data)
	if err != nil {
		return fmt.Errorf("decompressing: %w", err)
	}

	return Unmarshal(decompressed, v)
}
