package compression

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/genpool/pkg/errors"
)

func testPayload() []byte {
	return []byte(strings.Repeat(`{"Records":[{"Generation":1,"Payload":{"Name":"node"}}],"FreeStack":[]}`, 200))
}

func TestCompressorRoundTrip(t *testing.T) {
	data := testPayload()
	for _, algo := range algorithms {
		for _, level := range []Level{Fastest, Default, Better, Best} {
			t.Run(string(algo), func(t *testing.T) {
				comp, err := NewCompressor(&Config{Algorithm: algo, Level: level})
				require.NoError(t, err)
				assert.Equal(t, algo, comp.Algorithm())
				assert.Equal(t, level, comp.Level())

				compressed, err := comp.Compress(data)
				require.NoError(t, err)
				if algo != None {
					assert.Less(t, len(compressed), len(data))
				}

				out, err := comp.Decompress(compressed)
				require.NoError(t, err)
				assert.Equal(t, data, out)
			})
		}
	}
}

func TestCompressorStreaming(t *testing.T) {
	data := testPayload()
	for _, algo := range algorithms {
		t.Run(string(algo), func(t *testing.T) {
			comp, err := NewCompressor(&Config{Algorithm: algo})
			require.NoError(t, err)

			var buf bytes.Buffer
			w, err := comp.NewWriter(&buf)
			require.NoError(t, err)
			_, err = w.Write(data[:100])
			require.NoError(t, err)
			_, err = w.Write(data[100:])
			require.NoError(t, err)
			require.NoError(t, w.Close())

			r, err := comp.NewReader(&buf)
			require.NoError(t, err)
			out, err := io.ReadAll(r)
			require.NoError(t, err)
			require.NoError(t, r.Close())
			assert.Equal(t, data, out)
		})
	}
}

func TestDecompressLimit(t *testing.T) {
	comp, err := NewCompressor(&Config{Algorithm: Zstd, Level: Default, MaxDecompressedSize: 64})
	require.NoError(t, err)

	compressed, err := comp.Compress(bytes.Repeat([]byte{'a'}, 65))
	require.NoError(t, err)
	_, err = comp.Decompress(compressed)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))

	compressed, err = comp.Compress(bytes.Repeat([]byte{'a'}, 64))
	require.NoError(t, err)
	out, err := comp.Decompress(compressed)
	require.NoError(t, err)
	assert.Len(t, out, 64)
}

func TestDecompressCorrupt(t *testing.T) {
	for _, algo := range []Algorithm{Gzip, Zstd, LZ4, S2} {
		comp, err := NewCompressor(&Config{Algorithm: algo})
		require.NoError(t, err)
		_, err = comp.Decompress([]byte("definitely not a compressed frame"))
		assert.Error(t, err, algo)
	}
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"", None, false},
		{"zstd", Zstd, false},
		{" GZIP ", Gzip, false},
		{"LZ4", LZ4, false},
		{"brotli", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.in)
			if tt.wantErr {
				assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAlgorithmIDs(t *testing.T) {
	for i, algo := range algorithms {
		id, err := algo.ID()
		require.NoError(t, err)
		assert.Equal(t, byte(i), id)

		back, err := AlgorithmFromID(id)
		require.NoError(t, err)
		assert.Equal(t, algo, back)
	}

	_, err := AlgorithmFromID(byte(len(algorithms)))
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
	_, err = NewCompressor(&Config{Algorithm: "brotli"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestNewCompressorDefaults(t *testing.T) {
	comp, err := NewCompressor(nil)
	require.NoError(t, err)
	assert.Equal(t, Zstd, comp.Algorithm())
	assert.Equal(t, Default, comp.Level())

	comp, err = NewCompressor(&Config{Algorithm: Snappy})
	require.NoError(t, err)
	assert.Equal(t, Default, comp.Level())
}

func BenchmarkCompress(b *testing.B) {
	data := testPayload()
	for _, algo := range []Algorithm{Snappy, S2, LZ4, Zstd, Gzip} {
		comp, err := NewCompressor(&Config{Algorithm: algo, Level: Default})
		if err != nil {
			b.Fatal(err)
		}
		b.Run(string(algo), func(b *testing.B) {
			b.SetBytes(int64(len(data)))
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := comp.Compress(data); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
