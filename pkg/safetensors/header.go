// Package safetensors decodes the header of a safetensors file.
//
// A safetensors file starts with an 8 byte little-endian unsigned length L,
// followed by L bytes of JSON describing every tensor, followed by the raw
// tensor data. Only the first 8+L bytes are needed to list the tensors.
package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// PrefixSize is the size of the little-endian header length prefix.
const PrefixSize = 8

// DefaultMaxHeaderSize bounds the JSON header length accepted by ReadHeader
// and the fetchers. It matches the limit of the reference safetensors reader.
const DefaultMaxHeaderSize uint64 = 100_000_000

// MetadataKey is the reserved header entry holding free-form string metadata.
const MetadataKey = "__metadata__"

// ErrInvalidHeader is returned for any header that cannot be decoded.
var ErrInvalidHeader = errors.New("invalid safetensors header")

// TensorEntry describes a single tensor. DataOffsets are the [begin, end)
// byte offsets of its data relative to the end of the header.
// Endianness is little-endian and ordering is row-major.
type TensorEntry struct {
	DType       DType     `json:"dtype" yaml:"dtype"`
	Shape       []uint64  `json:"shape" yaml:"shape"`
	DataOffsets [2]uint64 `json:"data_offsets" yaml:"data_offsets"`
}

// NumElements returns the product of the shape. Scalars have one element.
func (e TensorEntry) NumElements() uint64 {
	n := uint64(1)
	for _, d := range e.Shape {
		n *= d
	}
	return n
}

// ByteLen returns the length of the tensor data described by DataOffsets.
func (e TensorEntry) ByteLen() uint64 {
	return e.DataOffsets[1] - e.DataOffsets[0]
}

// Header is the decoded header of one checkpoint shard.
type Header struct {
	// Length is the JSON header length L read from the prefix.
	Length   uint64
	Tensors  map[string]TensorEntry
	Metadata map[string]string
}

// rawEntry mirrors TensorEntry with pointers so missing fields are detected.
type rawEntry struct {
	DType       *DType     `json:"dtype"`
	Shape       *[]uint64  `json:"shape"`
	DataOffsets *[2]uint64 `json:"data_offsets"`
}

// ParseHeader decodes the L bytes of JSON that follow the length prefix.
func ParseHeader(payload []byte) (*Header, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: header is not a JSON object", ErrInvalidHeader)
	}

	h := &Header{
		Length:  uint64(len(payload)),
		Tensors: make(map[string]TensorEntry, len(raw)),
	}
	for name, msg := range raw {
		if name == MetadataKey {
			if err := json.Unmarshal(msg, &h.Metadata); err != nil {
				return nil, fmt.Errorf("%w: %s must map strings to strings", ErrInvalidHeader, MetadataKey)
			}
			continue
		}

		var re rawEntry
		if err := json.Unmarshal(msg, &re); err != nil {
			if errors.Is(err, ErrInvalidHeader) {
				return nil, fmt.Errorf("tensor %q: %w", name, err)
			}
			return nil, fmt.Errorf("%w: tensor %q: %v", ErrInvalidHeader, name, err)
		}
		if re.DType == nil || re.Shape == nil || re.DataOffsets == nil {
			return nil, fmt.Errorf("%w: tensor %q: missing dtype, shape or data_offsets", ErrInvalidHeader, name)
		}
		offs := *re.DataOffsets
		if offs[0] > offs[1] {
			return nil, fmt.Errorf("%w: tensor %q: data offsets %d > %d", ErrInvalidHeader, name, offs[0], offs[1])
		}
		h.Tensors[name] = TensorEntry{DType: *re.DType, Shape: *re.Shape, DataOffsets: offs}
	}
	return h, nil
}

// DecodeLength reads the header length from an 8 byte prefix.
func DecodeLength(prefix []byte) (uint64, error) {
	if len(prefix) < PrefixSize {
		return 0, fmt.Errorf("%w: prefix is %d bytes, need %d", ErrInvalidHeader, len(prefix), PrefixSize)
	}
	return binary.LittleEndian.Uint64(prefix[:PrefixSize]), nil
}

// EncodePrefix returns the length prefix followed by payload. The result is
// byte-identical to the first 8+len(payload) bytes of the shard it came from.
func EncodePrefix(payload []byte) []byte {
	buf := make([]byte, PrefixSize+len(payload))
	binary.LittleEndian.PutUint64(buf, uint64(len(payload)))
	copy(buf[PrefixSize:], payload)
	return buf
}

// ReadHeader reads a length prefix and header from r. Headers longer than
// maxSize are rejected without reading them.
func ReadHeader(r io.Reader, maxSize uint64) (*Header, error) {
	var prefix [PrefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, fmt.Errorf("%w: reading length prefix: %v", ErrInvalidHeader, err)
	}
	n := binary.LittleEndian.Uint64(prefix[:])
	if n > maxSize {
		return nil, fmt.Errorf("%w: header length %d exceeds limit %d", ErrInvalidHeader, n, maxSize)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: reading %d header bytes: %v", ErrInvalidHeader, n, err)
	}
	return ParseHeader(payload)
}

// TensorNames returns the tensor names of h in unspecified order.
func (h *Header) TensorNames() []string {
	names := make([]string, 0, len(h.Tensors))
	for n := range h.Tensors {
		names = append(names, n)
	}
	return names
}
