package snapshot

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/genpool/pkg/compression"
	"github.com/ajitpratap0/genpool/pkg/errors"
	"github.com/ajitpratap0/genpool/pkg/pool"
	"github.com/ajitpratap0/genpool/pkg/testutil"
)

type node struct {
	Name   string
	Parent pool.Handle[node]
}

func samplePool() (*pool.Pool[node], []pool.Handle[node]) {
	p := pool.New[node](pool.WithName("nodes"))
	root := p.Spawn(node{Name: "root"})
	a := p.Spawn(node{Name: "a", Parent: root})
	b := p.Spawn(node{Name: "b", Parent: root})
	p.Free(a)
	c := p.Spawn(node{Name: "c", Parent: b})
	d := p.Spawn(node{Name: "d", Parent: c})
	p.Free(d)
	return p, []pool.Handle[node]{root, a, b, c, d}
}

type SnapshotSuite struct {
	testutil.IntegrationTestSuite
}

func TestSnapshotSuite(t *testing.T) {
	suite.Run(t, new(SnapshotSuite))
}

func (s *SnapshotSuite) opts() Options {
	return Options{Algorithm: compression.Zstd, Logger: testutil.TestLogger(s.T())}
}

func (s *SnapshotSuite) TestSaveLoadPool() {
	p, hs := samplePool()
	path := s.Path("scene.gps")

	saved, err := SavePool(s.Context(), path, p, s.opts())
	s.Require().NoError(err)
	s.Equal(4, saved.Records)
	s.Equal(3, saved.Alive)
	s.Equal(1, saved.Free)
	s.NotEqual(uuid.Nil, saved.ID)

	restored, loaded, err := LoadPool[node](s.Context(), path, s.opts(), pool.WithName("restored"))
	s.Require().NoError(err)
	s.Equal(saved.ID, loaded.ID)
	s.Equal(saved.Checksum, loaded.Checksum)
	s.Equal(p.Layout(), restored.Layout())

	root, a, b, c, d := hs[0], hs[1], hs[2], hs[3], hs[4]
	s.False(restored.IsValidHandle(a))
	s.False(restored.IsValidHandle(d))
	s.Equal("c", restored.Borrow(c).Name)
	s.Equal(b, restored.Borrow(c).Parent)
	s.Equal(root, restored.Borrow(b).Parent)

	// the free-list survives, so the next spawn reuses d's slot
	next := restored.Spawn(node{Name: "e"})
	s.Equal(d.Index(), next.Index())
	s.Equal(d.Generation()+1, next.Generation())
}

func (s *SnapshotSuite) TestSaveReplacesAtomically() {
	p, _ := samplePool()
	path := s.CreateTempFile("existing.gps", []byte("stale"))

	_, err := SavePool(s.Context(), path, p, s.opts())
	s.Require().NoError(err)

	entries, err := os.ReadDir(s.TempDir())
	s.Require().NoError(err)
	for _, e := range entries {
		s.NotContains(e.Name(), ".existing.gps.", "temporary file left behind")
	}

	info, err := Inspect(s.Context(), path)
	s.Require().NoError(err)
	s.Equal(3, info.Alive)
}

func (s *SnapshotSuite) TestInspect() {
	p, _ := samplePool()
	path := s.Path("inspect.gps")
	saved, err := SavePool(s.Context(), path, p, Options{Algorithm: compression.LZ4, Logger: testutil.TestLogger(s.T())})
	s.Require().NoError(err)

	info, err := Inspect(s.Context(), path)
	s.Require().NoError(err)
	s.Equal(compression.LZ4, info.Algorithm)
	s.Equal(saved.RawSize, info.RawSize)
	s.Equal(saved.CompressedSize, info.CompressedSize)
	s.Equal(saved.Records, info.Records)
	s.Equal(saved.Alive, info.Alive)
	s.Equal(saved.Free, info.Free)
}

func (s *SnapshotSuite) TestCorruptBody() {
	p, _ := samplePool()
	path := s.Path("corrupt.gps")
	_, err := SavePool(s.Context(), path, p, s.opts())
	s.Require().NoError(err)

	data, err := os.ReadFile(path)
	s.Require().NoError(err)
	data[len(data)-1] ^= 0xff
	s.Require().NoError(os.WriteFile(path, data, 0o644))

	_, _, err = Load[node](s.Context(), path, s.opts())
	s.True(errors.IsType(err, errors.ErrorTypeData))
	s.Contains(err.Error(), "checksum mismatch")
}

func (s *SnapshotSuite) TestMissingFile() {
	_, _, err := Load[node](s.Context(), s.Path("missing.gps"), s.opts())
	s.True(errors.IsType(err, errors.ErrorTypeFile))
}

func TestRoundTripAllAlgorithms(t *testing.T) {
	ctx := testutil.TestContext(t)
	p, _ := samplePool()
	for _, algo := range []compression.Algorithm{
		compression.None, compression.Gzip, compression.Snappy, compression.LZ4,
		compression.Zstd, compression.S2, compression.Deflate,
	} {
		t.Run(string(algo), func(t *testing.T) {
			data, info, err := Bytes(ctx, p.Layout(), Options{Algorithm: algo, Logger: testutil.TestLogger(t)})
			require.NoError(t, err)
			assert.Equal(t, algo, info.Algorithm)
			assert.Equal(t, int64(len(data)-HeaderSize), info.CompressedSize)

			l, read, err := Read[node](ctx, bytes.NewReader(data), Options{})
			require.NoError(t, err)
			assert.Equal(t, p.Layout(), l)
			assert.Equal(t, info.ID, read.ID)
		})
	}
}

func TestEmptyLayout(t *testing.T) {
	ctx := testutil.TestContext(t)
	data, info, err := Bytes(ctx, pool.New[node]().Layout(), Options{Logger: testutil.TestLogger(t)})
	require.NoError(t, err)
	assert.Equal(t, compression.Zstd, info.Algorithm)
	assert.Zero(t, info.Records)

	l, _, err := Read[node](ctx, bytes.NewReader(data), Options{})
	require.NoError(t, err)
	assert.Empty(t, l.Records)
	assert.Empty(t, l.FreeStack)
}

type taggedNode struct {
	Name string
	Tag  string
}

func TestReadRejectsUnknownPayloadFields(t *testing.T) {
	ctx := testutil.TestContext(t)
	p := pool.New[taggedNode]()
	p.Spawn(taggedNode{Name: "root", Tag: "camera"})
	data, _, err := Bytes(ctx, p.Layout(), Options{Logger: testutil.TestLogger(t)})
	require.NoError(t, err)

	_, _, err = Read[node](ctx, bytes.NewReader(data), Options{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData), err)
	assert.Contains(t, err.Error(), "failed to decode pool layout")

	l, _, err := Read[taggedNode](ctx, bytes.NewReader(data), Options{})
	require.NoError(t, err)
	assert.Equal(t, "camera", l.Records[0].Payload.Tag)
}

func TestReadRejects(t *testing.T) {
	ctx := testutil.TestContext(t)
	p, _ := samplePool()
	data, _, err := Bytes(ctx, p.Layout(), Options{Algorithm: compression.S2, Logger: testutil.TestLogger(t)})
	require.NoError(t, err)

	badMagic := append([]byte(nil), data...)
	copy(badMagic, "NOPE")
	badVersion := append([]byte(nil), data...)
	badVersion[4] = 99
	badAlgo := append([]byte(nil), data...)
	badAlgo[5] = 200

	tests := []struct {
		name  string
		input []byte
		opts  Options
		want  string
	}{
		{"truncated header", data[:HeaderSize-1], Options{}, "header"},
		{"bad magic", badMagic, Options{}, "not a genpool snapshot"},
		{"bad version", badVersion, Options{}, "unsupported snapshot version"},
		{"bad algorithm", badAlgo, Options{}, "unknown compression algorithm"},
		{"truncated body", data[:len(data)-3], Options{}, "checksum mismatch"},
		{"too large", data, Options{MaxRawSize: 8}, "exceeds limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Read[node](ctx, bytes.NewReader(tt.input), tt.opts)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeData), err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestWriteRejectsInvalidLayout(t *testing.T) {
	l := pool.Layout[node]{
		Records:   []pool.LayoutRecord[node]{{Generation: 1, Payload: &node{Name: "x"}}},
		FreeStack: []uint32{0},
	}
	var buf bytes.Buffer
	_, err := Write(context.Background(), &buf, l, Options{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
	assert.Zero(t, buf.Len())
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, _ := samplePool()
	var buf bytes.Buffer
	_, err := Write(ctx, &buf, p.Layout(), Options{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout))

	_, _, err = Read[node](ctx, &buf, Options{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout))
}

func TestHeaderBinary(t *testing.T) {
	h := Header{
		Version:   Version,
		Algorithm: compression.Gzip,
		ID:        uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		RawSize:   1234,
		Checksum:  0xdeadbeef,
	}
	data, err := h.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, HeaderSize)
	assert.Equal(t, []byte("GPSN"), data[:4])

	var got Header
	require.NoError(t, got.UnmarshalBinary(data))
	assert.Equal(t, h, got)

	_, err = Header{Algorithm: "brotli"}.MarshalBinary()
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
