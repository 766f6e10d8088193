package snapshot

import (
	"encoding/binary"
	"io"

	"github.com/google/uuid"

	"github.com/ajitpratap0/genpool/pkg/compression"
	"github.com/ajitpratap0/genpool/pkg/errors"
)

// Magic opens every snapshot file.
var Magic = [4]byte{'G', 'P', 'S', 'N'}

const (
	// Version is the current header version.
	Version uint8 = 1

	// HeaderSize is the encoded header length in bytes.
	HeaderSize = 40
)

// Header precedes the compressed body:
//
//	magic[4] version[1] algorithm[1] reserved[2] id[16] rawSize[8] checksum[8]
//
// Integers are big endian. Checksum is the xxhash64 of the compressed body.
type Header struct {
	Version   uint8                 `json:"version"`
	Algorithm compression.Algorithm `json:"algorithm"`
	ID        uuid.UUID             `json:"id"`
	RawSize   uint64                `json:"raw_size"`
	Checksum  uint64                `json:"checksum"`
}

// MarshalBinary encodes the header.
func (h Header) MarshalBinary() ([]byte, error) {
	algo, err := h.Algorithm.ID()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], Magic[:])
	buf[4] = h.Version
	buf[5] = algo
	copy(buf[8:24], h.ID[:])
	binary.BigEndian.PutUint64(buf[24:32], h.RawSize)
	binary.BigEndian.PutUint64(buf[32:40], h.Checksum)
	return buf, nil
}

// UnmarshalBinary decodes a header, rejecting unknown magic, versions and
// algorithms.
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return errors.Newf(errors.ErrorTypeData, "snapshot header truncated: %d bytes", len(data))
	}
	if [4]byte(data[0:4]) != Magic {
		return errors.New(errors.ErrorTypeData, "not a genpool snapshot").
			WithDetail("magic", string(data[0:4]))
	}
	if data[4] != Version {
		return errors.Newf(errors.ErrorTypeData, "unsupported snapshot version %d", data[4]).
			WithDetail("version", data[4])
	}
	algo, err := compression.AlgorithmFromID(data[5])
	if err != nil {
		return err
	}
	h.Version = data[4]
	h.Algorithm = algo
	copy(h.ID[:], data[8:24])
	h.RawSize = binary.BigEndian.Uint64(data[24:32])
	h.Checksum = binary.BigEndian.Uint64(data[32:40])
	return nil
}

func readHeader(r io.Reader) (Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, errors.Wrap(err, errors.ErrorTypeData, "failed to read snapshot header")
	}
	var h Header
	if err := h.UnmarshalBinary(buf); err != nil {
		return Header{}, err
	}
	return h, nil
}
