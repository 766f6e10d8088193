// Package json wraps goccy/go-json with buffer pooling and a streaming
// encoder for JSON lines and arrays.
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"
)

// maxPooledBuffer keeps very large buffers out of the pool
const maxPooledBuffer = 1 << 20

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// GetBuffer gets a pooled bytes.Buffer
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBuffer {
		return
	}
	bufferPool.Put(buf)
}

// Marshal is a drop-in replacement for encoding/json.Marshal
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is a drop-in replacement for encoding/json.Unmarshal
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// NewEncoder returns an encoder that does not escape HTML.
func NewEncoder(w io.Writer) *gojson.Encoder {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc
}

// MarshalToWriter encodes v to w followed by a newline.
func MarshalToWriter(w io.Writer, v interface{}) error {
	return NewEncoder(w).Encode(v)
}

// UnmarshalStrict decodes a single value from r, rejecting fields that v
// does not declare.
func UnmarshalStrict(r io.Reader, v interface{}) error {
	dec := gojson.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// MarshalToBuffer marshals v to a pooled buffer. Release it with PutBuffer.
func MarshalToBuffer(v interface{}) (*bytes.Buffer, error) {
	buf := GetBuffer()
	if err := NewEncoder(buf).Encode(v); err != nil {
		PutBuffer(buf)
		return nil, err
	}
	return buf, nil
}

// StreamingEncoder writes values as JSON lines.
type StreamingEncoder struct {
	encoder *gojson.Encoder
	count   int
	err     error
}

// NewStreamingEncoder creates a new streaming encoder
func NewStreamingEncoder(w io.Writer) *StreamingEncoder {
	return &StreamingEncoder{encoder: NewEncoder(w)}
}

// Encode writes v as one line. After a failed write every later call
// returns the same error.
func (se *StreamingEncoder) Encode(v interface{}) error {
	if se.err != nil {
		return se.err
	}
	if err := se.encoder.Encode(v); err != nil {
		se.err = err
		return err
	}
	se.count++
	return nil
}

// Count returns the number of values encoded so far
func (se *StreamingEncoder) Count() int {
	return se.count
}

// Close reports the first write error. It does not close the underlying
// writer.
func (se *StreamingEncoder) Close() error {
	return se.err
}
