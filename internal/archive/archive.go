package archive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/storysize/storysize/pkg/estimation"
	"github.com/storysize/storysize/pkg/surface"
)

const (
	contentJSON     = "application/json"
	contentMarkdown = "text/markdown; charset=utf-8"
	contentZstd     = "application/zstd"
)

// Archiver writes an estimation as <id>.json and <id>.md to a Store,
// optionally zstd-compressed.
type Archiver struct {
	store    Store
	compress bool
	logger   *zap.Logger
}

// Option configures an Archiver.
type Option func(*Archiver)

// WithCompression stores every report zstd-compressed with a .zst suffix.
func WithCompression(on bool) Option {
	return func(a *Archiver) { a.compress = on }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Archiver) { a.logger = l }
}

// New creates an Archiver backed by store.
func New(store Store, opts ...Option) *Archiver {
	a := &Archiver{store: store, logger: zap.NewNop()}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Save renders est and writes both reports. It returns the location of
// the JSON report.
func (a *Archiver) Save(ctx context.Context, est *estimation.Estimation) (string, error) {
	if est.ID == "" {
		return "", fmt.Errorf("archive: estimation has no id")
	}

	var js bytes.Buffer
	if err := (&surface.JSONRenderer{}).Render(&js, est); err != nil {
		return "", fmt.Errorf("archive: render json: %w", err)
	}

	reports := []struct {
		key, contentType string
		data             []byte
	}{
		{est.ID + ".json", contentJSON, js.Bytes()},
		{est.ID + ".md", contentMarkdown, []byte(surface.BuildMarkdown(est))},
	}

	var first string
	for i, r := range reports {
		key, contentType, data := r.key, r.contentType, r.data
		if a.compress {
			var err error
			if data, err = Compress(data); err != nil {
				return "", fmt.Errorf("archive: compress %s: %w", key, err)
			}
			key += ".zst"
			contentType = contentZstd
		}
		if err := a.store.Put(ctx, key, data, contentType); err != nil {
			return "", fmt.Errorf("archive: %w", err)
		}
		loc := a.store.Location(key)
		a.logger.Debug("archived report", zap.String("location", loc), zap.Int("bytes", len(data)))
		if i == 0 {
			first = loc
		}
	}
	return first, nil
}

// Compress encodes data as a single zstd frame.
func Compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

// Decompress reverses Compress.
func Decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
