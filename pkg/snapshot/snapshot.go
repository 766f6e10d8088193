// Package snapshot persists pool layouts as self-describing files.
//
// A snapshot is a fixed 40-byte header followed by the JSON-encoded
// pool.Layout, compressed with the algorithm named in the header. The
// header carries a random ID, the uncompressed size and an xxhash64
// checksum of the compressed body, so corruption is detected before any
// payload is decoded.
//
//	info, err := snapshot.SavePool(ctx, "scene.gps", nodes, snapshot.Options{
//	    Algorithm: compression.Zstd,
//	})
//	restored, info, err := snapshot.LoadPool[Node](ctx, "scene.gps", snapshot.Options{})
//
// Files are written to a temporary sibling and renamed into place.
package snapshot

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/genpool/pkg/compression"
	"github.com/ajitpratap0/genpool/pkg/errors"
	"github.com/ajitpratap0/genpool/pkg/json"
	"github.com/ajitpratap0/genpool/pkg/logger"
	"github.com/ajitpratap0/genpool/pkg/pool"
)

// DefaultMaxRawSize bounds the decoded layout size accepted by Read.
const DefaultMaxRawSize = 1 << 30

// Options controls encoding and decoding.
type Options struct {
	// Algorithm compresses the body. Empty means zstd.
	Algorithm compression.Algorithm
	// Level is the compression level. Zero means compression.Default.
	Level compression.Level
	// MaxRawSize rejects snapshots whose layout is larger. Zero means
	// DefaultMaxRawSize.
	MaxRawSize int64
	// Logger receives save and load records. Nil uses the global logger.
	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	def := compression.DefaultConfig()
	if o.Algorithm == "" {
		o.Algorithm = def.Algorithm
	}
	if o.Level == 0 {
		o.Level = def.Level
	}
	if o.MaxRawSize <= 0 {
		o.MaxRawSize = DefaultMaxRawSize
	}
	if o.Logger == nil {
		o.Logger = logger.Get()
	}
	return o
}

// Info describes a snapshot.
type Info struct {
	Header
	// CompressedSize is the body length in bytes, excluding the header.
	CompressedSize int64 `json:"compressed_size"`
	// Records, Alive and Free summarize the layout.
	Records int `json:"records"`
	Alive   int `json:"alive"`
	Free    int `json:"free"`
}

func summarize[T any](info *Info, l pool.Layout[T]) {
	info.Records = len(l.Records)
	info.Free = len(l.FreeStack)
	info.Alive = 0
	for _, r := range l.Records {
		if r.Payload != nil {
			info.Alive++
		}
	}
}

// Write encodes l to w.
func Write[T any](ctx context.Context, w io.Writer, l pool.Layout[T], opts Options) (Info, error) {
	opts = opts.withDefaults()
	if err := ctx.Err(); err != nil {
		return Info{}, errors.Wrap(err, errors.ErrorTypeTimeout, "snapshot write cancelled")
	}
	if err := l.Validate(); err != nil {
		return Info{}, err
	}

	raw, err := json.MarshalToBuffer(l)
	if err != nil {
		return Info{}, errors.Wrap(err, errors.ErrorTypeData, "failed to encode pool layout")
	}
	defer json.PutBuffer(raw)

	comp, err := compression.NewCompressor(&compression.Config{Algorithm: opts.Algorithm, Level: opts.Level})
	if err != nil {
		return Info{}, err
	}
	body, err := comp.Compress(raw.Bytes())
	if err != nil {
		return Info{}, err
	}
	if err := ctx.Err(); err != nil {
		return Info{}, errors.Wrap(err, errors.ErrorTypeTimeout, "snapshot write cancelled")
	}

	info := Info{
		Header: Header{
			Version:   Version,
			Algorithm: comp.Algorithm(),
			ID:        uuid.New(),
			RawSize:   uint64(raw.Len()),
			Checksum:  xxhash.Sum64(body),
		},
		CompressedSize: int64(len(body)),
	}
	summarize(&info, l)

	header, err := info.Header.MarshalBinary()
	if err != nil {
		return Info{}, err
	}
	if _, err := w.Write(header); err != nil {
		return Info{}, errors.Wrap(err, errors.ErrorTypeFile, "failed to write snapshot header")
	}
	if _, err := w.Write(body); err != nil {
		return Info{}, errors.Wrap(err, errors.ErrorTypeFile, "failed to write snapshot body")
	}
	return info, nil
}

// Read decodes a layout from r and validates it.
func Read[T any](ctx context.Context, r io.Reader, opts Options) (pool.Layout[T], Info, error) {
	var l pool.Layout[T]
	info, raw, err := readBody(ctx, r, opts.withDefaults())
	if err != nil {
		return l, info, err
	}
	if err := json.UnmarshalStrict(bytes.NewReader(raw), &l); err != nil {
		return l, info, errors.Wrap(err, errors.ErrorTypeData, "failed to decode pool layout").
			WithDetail("snapshot_id", info.ID.String())
	}
	if err := l.Validate(); err != nil {
		return l, info, err
	}
	summarize(&info, l)
	return l, info, nil
}

func readBody(ctx context.Context, r io.Reader, opts Options) (Info, []byte, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, nil, errors.Wrap(err, errors.ErrorTypeTimeout, "snapshot read cancelled")
	}
	h, err := readHeader(r)
	if err != nil {
		return Info{}, nil, err
	}
	info := Info{Header: h}
	if h.RawSize > uint64(opts.MaxRawSize) {
		return info, nil, errors.Newf(errors.ErrorTypeData, "snapshot layout of %d bytes exceeds limit %d", h.RawSize, opts.MaxRawSize).
			WithDetail("snapshot_id", h.ID.String())
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return info, nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read snapshot body")
	}
	info.CompressedSize = int64(len(body))
	if sum := xxhash.Sum64(body); sum != h.Checksum {
		return info, nil, errors.New(errors.ErrorTypeData, "snapshot checksum mismatch").
			WithDetail("snapshot_id", h.ID.String()).
			WithDetail("expected", h.Checksum).
			WithDetail("actual", sum)
	}

	comp, err := compression.NewCompressor(&compression.Config{
		Algorithm:           h.Algorithm,
		MaxDecompressedSize: int64(h.RawSize),
	})
	if err != nil {
		return info, nil, err
	}
	raw, err := comp.Decompress(body)
	if err != nil {
		return info, nil, err
	}
	if uint64(len(raw)) != h.RawSize {
		return info, nil, errors.Newf(errors.ErrorTypeData, "snapshot layout is %d bytes, header says %d", len(raw), h.RawSize).
			WithDetail("snapshot_id", h.ID.String())
	}
	if err := ctx.Err(); err != nil {
		return info, nil, errors.Wrap(err, errors.ErrorTypeTimeout, "snapshot read cancelled")
	}
	return info, raw, nil
}

// Save writes l to path atomically.
func Save[T any](ctx context.Context, path string, l pool.Layout[T], opts Options) (Info, error) {
	opts = opts.withDefaults()

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return Info{}, errors.Wrap(err, errors.ErrorTypeFile, "failed to create snapshot file").
			WithDetail("path", path)
	}
	defer os.Remove(tmp.Name())

	info, err := Write(ctx, tmp, l, opts)
	if err != nil {
		tmp.Close()
		return Info{}, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return Info{}, errors.Wrap(err, errors.ErrorTypeFile, "failed to sync snapshot file").
			WithDetail("path", path)
	}
	if err := tmp.Close(); err != nil {
		return Info{}, errors.Wrap(err, errors.ErrorTypeFile, "failed to close snapshot file").
			WithDetail("path", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return Info{}, errors.Wrap(err, errors.ErrorTypeFile, "failed to move snapshot into place").
			WithDetail("path", path)
	}

	opts.Logger.Info("snapshot written",
		zap.String("path", path),
		zap.String("snapshot_id", info.ID.String()),
		zap.String("algorithm", string(info.Algorithm)),
		zap.Uint64("raw_bytes", info.RawSize),
		zap.Int64("compressed_bytes", info.CompressedSize),
		zap.Int("records", info.Records),
	)
	return info, nil
}

// Load reads a layout from path.
func Load[T any](ctx context.Context, path string, opts Options) (pool.Layout[T], Info, error) {
	opts = opts.withDefaults()

	f, err := os.Open(path)
	if err != nil {
		return pool.Layout[T]{}, Info{}, errors.Wrap(err, errors.ErrorTypeFile, "failed to open snapshot").
			WithDetail("path", path)
	}
	defer f.Close()

	l, info, err := Read[T](ctx, f, opts)
	if err != nil {
		if e, ok := err.(*errors.Error); ok {
			return l, info, e.WithDetail("path", path)
		}
		return l, info, err
	}

	opts.Logger.Debug("snapshot loaded",
		zap.String("path", path),
		zap.String("snapshot_id", info.ID.String()),
		zap.Int("records", info.Records),
		zap.Int("alive", info.Alive),
	)
	return l, info, nil
}

// SavePool writes the layout of p to path.
func SavePool[T any](ctx context.Context, path string, p *pool.Pool[T], opts Options) (Info, error) {
	return Save(ctx, path, p.Layout(), opts)
}

// LoadPool rebuilds a pool from the snapshot at path.
func LoadPool[T any](ctx context.Context, path string, opts Options, poolOpts ...pool.Option) (*pool.Pool[T], Info, error) {
	l, info, err := Load[T](ctx, path, opts)
	if err != nil {
		return nil, info, err
	}
	p, err := pool.FromLayout(l, poolOpts...)
	if err != nil {
		return nil, info, err
	}
	return p, info, nil
}

// Inspect verifies the snapshot at path and summarizes it without decoding
// payloads into a concrete type.
func Inspect(ctx context.Context, path string) (Info, error) {
	_, info, err := Load[gojson.RawMessage](ctx, path, Options{Logger: zap.NewNop()})
	return info, err
}

// Bytes is Write into memory.
func Bytes[T any](ctx context.Context, l pool.Layout[T], opts Options) ([]byte, Info, error) {
	var buf bytes.Buffer
	info, err := Write(ctx, &buf, l, opts)
	if err != nil {
		return nil, info, err
	}
	return buf.Bytes(), info, nil
}
