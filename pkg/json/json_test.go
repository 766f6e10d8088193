package json

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testReport struct {
	Pool  string  `json:"pool"`
	Ops   int     `json:"ops"`
	Rate  float64 `json:"rate"`
	Query string  `json:"query,omitempty"`
}

func TestMarshalNoHTMLEscape(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, MarshalToWriter(&buf, testReport{Pool: "a<b>", Ops: 1}))
	assert.Equal(t, `{"pool":"a<b>","ops":1,"rate":0}`+"\n", buf.String())
}

func TestMarshalToBuffer(t *testing.T) {
	buf, err := MarshalToBuffer(testReport{Pool: "p", Ops: 2, Rate: 1.5})
	require.NoError(t, err)
	defer PutBuffer(buf)

	var got testReport
	require.NoError(t, Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, testReport{Pool: "p", Ops: 2, Rate: 1.5}, got)
}

func TestUnmarshalStrict(t *testing.T) {
	var got testReport
	require.NoError(t, UnmarshalStrict(strings.NewReader(`{"pool":"p","ops":3}`), &got))
	assert.Equal(t, 3, got.Ops)

	err := UnmarshalStrict(strings.NewReader(`{"pool":"p","extra":true}`), &got)
	assert.Error(t, err)
}

func TestStreamingEncoder(t *testing.T) {
	reports := []testReport{{Pool: "a", Ops: 1}, {Pool: "b", Ops: 2}}

	var buf bytes.Buffer
	enc := NewStreamingEncoder(&buf)
	for _, r := range reports {
		require.NoError(t, enc.Encode(r))
	}
	require.NoError(t, enc.Close())
	assert.Equal(t, 2, enc.Count())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"pool":"b","ops":2,"rate":0}`, lines[1])
}

type failingWriter struct{ writes int }

func (w *failingWriter) Write(p []byte) (int, error) {
	w.writes++
	return 0, io.ErrClosedPipe
}

func TestStreamingEncoderStopsAfterWriteError(t *testing.T) {
	w := &failingWriter{}
	enc := NewStreamingEncoder(w)

	require.ErrorIs(t, enc.Encode(testReport{Pool: "a"}), io.ErrClosedPipe)
	require.ErrorIs(t, enc.Encode(testReport{Pool: "b"}), io.ErrClosedPipe)
	assert.ErrorIs(t, enc.Close(), io.ErrClosedPipe)
	assert.Equal(t, 0, enc.Count())
	assert.Equal(t, 1, w.writes)
}
