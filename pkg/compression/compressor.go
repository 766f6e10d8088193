// Package compression provides the codecs used for genpool snapshot frames,
// with multiple algorithms, configurable levels and bounded decompression.
//
// # Overview
//
// The compression package provides:
//   - Multiple compression algorithms (Gzip, Snappy, LZ4, Zstd, S2, Deflate)
//   - Configurable compression levels (Fastest, Default, Better, Best)
//   - Streaming writers and readers for encoding straight into a file
//   - A one-byte algorithm ID for self-describing file headers
//
// # Algorithm Selection
//
// Choose algorithms based on your requirements:
//   - Snappy/S2: Best for speed, moderate compression
//   - LZ4: Extremely fast, decent compression
//   - Zstd: Best compression ratio, good speed
//   - Gzip/Deflate: Wide compatibility
//
// # Basic Usage
//
//	comp, err := compression.NewCompressor(&compression.Config{
//	    Algorithm: compression.Zstd,
//	    Level:     compression.Better,
//	})
//	compressed, err := comp.Compress(data)
//	original, err := comp.Decompress(compressed)
//
// # Streaming
//
//	w, err := comp.NewWriter(file)
//	enc := json.NewEncoder(w)
//	err = enc.Encode(layout)
//	err = w.Close()
package compression

import (
	"bytes"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/genpool/pkg/errors"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents snappy framed compression
	Snappy Algorithm = "snappy"
	// LZ4 represents lz4 framed compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
	// Deflate represents raw deflate compression
	Deflate Algorithm = "deflate"
)

// algorithms is indexed by the on-disk algorithm ID. Append only.
var algorithms = []Algorithm{None, Gzip, Snappy, LZ4, Zstd, S2, Deflate}

// ID returns the one-byte identifier stored in file headers.
func (a Algorithm) ID() (byte, error) {
	for i, known := range algorithms {
		if known == a {
			return byte(i), nil
		}
	}
	return 0, errors.Newf(errors.ErrorTypeConfig, "unsupported compression algorithm: %s", a)
}

// AlgorithmFromID is the inverse of Algorithm.ID.
func AlgorithmFromID(id byte) (Algorithm, error) {
	if int(id) >= len(algorithms) {
		return "", errors.Newf(errors.ErrorTypeData, "unknown compression algorithm id %d", id)
	}
	return algorithms[id], nil
}

// ParseAlgorithm parses a case-insensitive algorithm name. The empty string
// means None.
func ParseAlgorithm(s string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	if a == "" {
		return None, nil
	}
	if _, err := a.ID(); err != nil {
		return "", err
	}
	return a, nil
}

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Better improves compression at cost of speed.
	Better Level = 7
	// Best maximizes compression ratio.
	Best Level = 9
)

// DefaultMaxDecompressedSize bounds Decompress when Config leaves it unset.
const DefaultMaxDecompressedSize = 1 << 30

// Compressor provides compression and decompression functionality.
// All implementations are safe for concurrent use.
type Compressor interface {
	// Compress compresses data and returns the compressed bytes.
	Compress(data []byte) ([]byte, error)

	// Decompress decompresses data. It fails when the output would exceed
	// the configured maximum size.
	Decompress(data []byte) ([]byte, error)

	// NewWriter returns a writer that compresses into dst. Close flushes
	// the stream but does not close dst.
	NewWriter(dst io.Writer) (io.WriteCloser, error)

	// NewReader returns a reader that decompresses src.
	NewReader(src io.Reader) (io.ReadCloser, error)

	// Algorithm returns the compression algorithm used.
	Algorithm() Algorithm

	// Level returns the compression level configured.
	Level() Level
}

// Config represents compressor configuration.
type Config struct {
	Algorithm           Algorithm // Compression algorithm to use
	Level               Level     // Compression level
	MaxDecompressedSize int64     // Upper bound for Decompress output, 0 = DefaultMaxDecompressedSize
}

// DefaultConfig returns a zstd configuration at the default level.
func DefaultConfig() *Config {
	return &Config{
		Algorithm:           Zstd,
		Level:               Default,
		MaxDecompressedSize: DefaultMaxDecompressedSize,
	}
}

// NewCompressor creates a compressor based on the provided configuration.
// If config is nil, default configuration is used.
func NewCompressor(config *Config) (Compressor, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Level == 0 {
		config = &Config{Algorithm: config.Algorithm, Level: Default, MaxDecompressedSize: config.MaxDecompressedSize}
	}
	limit := config.MaxDecompressedSize
	if limit <= 0 {
		limit = DefaultMaxDecompressedSize
	}

	c := &codec{algorithm: config.Algorithm, level: config.Level, limit: limit}
	switch config.Algorithm {
	case None, "":
		c.algorithm = None
		c.writer = func(dst io.Writer) (io.WriteCloser, error) { return nopWriteCloser{dst}, nil }
		c.reader = func(src io.Reader) (io.ReadCloser, error) { return io.NopCloser(src), nil }
	case Gzip:
		level := mapGzipLevel(config.Level)
		c.writer = func(dst io.Writer) (io.WriteCloser, error) { return gzip.NewWriterLevel(dst, level) }
		c.reader = func(src io.Reader) (io.ReadCloser, error) { return gzip.NewReader(src) }
	case Deflate:
		level := mapDeflateLevel(config.Level)
		c.writer = func(dst io.Writer) (io.WriteCloser, error) { return flate.NewWriter(dst, level) }
		c.reader = func(src io.Reader) (io.ReadCloser, error) { return flate.NewReader(src), nil }
	case Snappy:
		c.writer = func(dst io.Writer) (io.WriteCloser, error) { return snappy.NewBufferedWriter(dst), nil }
		c.reader = func(src io.Reader) (io.ReadCloser, error) { return io.NopCloser(snappy.NewReader(src)), nil }
	case S2:
		opts := mapS2Options(config.Level)
		c.writer = func(dst io.Writer) (io.WriteCloser, error) { return s2.NewWriter(dst, opts...), nil }
		c.reader = func(src io.Reader) (io.ReadCloser, error) { return io.NopCloser(s2.NewReader(src)), nil }
	case Zstd:
		level := mapZstdLevel(config.Level)
		c.writer = func(dst io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriter(dst, zstd.WithEncoderLevel(level))
		}
		c.reader = func(src io.Reader) (io.ReadCloser, error) {
			dec, err := zstd.NewReader(src)
			if err != nil {
				return nil, err
			}
			return dec.IOReadCloser(), nil
		}
	case LZ4:
		level := mapLZ4Level(config.Level)
		c.writer = func(dst io.Writer) (io.WriteCloser, error) {
			w := lz4.NewWriter(dst)
			if err := w.Apply(lz4.CompressionLevelOption(level)); err != nil {
				return nil, err
			}
			return w, nil
		}
		c.reader = func(src io.Reader) (io.ReadCloser, error) { return io.NopCloser(lz4.NewReader(src)), nil }
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported compression algorithm: %s", config.Algorithm)
	}
	return c, nil
}

var bufferPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

// codec adapts a pair of stream constructors to the Compressor interface.
type codec struct {
	algorithm Algorithm
	level     Level
	limit     int64
	writer    func(io.Writer) (io.WriteCloser, error)
	reader    func(io.Reader) (io.ReadCloser, error)
}

func (c *codec) Algorithm() Algorithm { return c.algorithm }

func (c *codec) Level() Level { return c.level }

func (c *codec) NewWriter(dst io.Writer) (io.WriteCloser, error) {
	w, err := c.writer(dst)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create "+string(c.algorithm)+" writer")
	}
	return w, nil
}

func (c *codec) NewReader(src io.Reader) (io.ReadCloser, error) {
	r, err := c.reader(src)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to open "+string(c.algorithm)+" stream")
	}
	return r, nil
}

func (c *codec) Compress(data []byte) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	w, err := c.NewWriter(buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "compression failed")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "compression failed")
	}

	// Create result slice with proper size
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}

func (c *codec) Decompress(data []byte) ([]byte, error) {
	r, err := c.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	n, err := io.Copy(buf, io.LimitReader(r, c.limit+1))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "decompression failed")
	}
	if n > c.limit {
		return nil, errors.Newf(errors.ErrorTypeData, "decompressed size exceeds %d bytes", c.limit).
			WithDetail("algorithm", string(c.algorithm))
	}

	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// Helper functions to map compression levels

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapDeflateLevel(level Level) int {
	switch level {
	case Fastest:
		return flate.BestSpeed
	case Best:
		return flate.BestCompression
	default:
		return flate.DefaultCompression
	}
}

func mapS2Options(level Level) []s2.WriterOption {
	switch level {
	case Better:
		return []s2.WriterOption{s2.WriterBetterCompression()}
	case Best:
		return []s2.WriterOption{s2.WriterBestCompression()}
	default:
		return nil
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}
