package safetensors

import (
	"encoding/json"
	"fmt"
)

// DType is the element type of a tensor. The set is closed: a header naming
// any other type fails to parse.
type DType uint8

const (
	Bool DType = iota + 1
	U8
	I8
	F8E5M2
	F8E4M3
	I16
	U16
	F16
	BF16
	I32
	U32
	F32
	F64
	I64
	U64
	F8E8M0
	F4
	F6E2M3
	F6E3M2
	C64
)

var dtypeNames = map[DType]string{
	Bool:   "BOOL",
	U8:     "U8",
	I8:     "I8",
	F8E5M2: "F8_E5M2",
	F8E4M3: "F8_E4M3",
	I16:    "I16",
	U16:    "U16",
	F16:    "F16",
	BF16:   "BF16",
	I32:    "I32",
	U32:    "U32",
	F32:    "F32",
	F64:    "F64",
	I64:    "I64",
	U64:    "U64",
	F8E8M0: "F8_E8M0",
	F4:     "F4",
	F6E2M3: "F6_E2M3",
	F6E3M2: "F6_E3M2",
	C64:    "C64",
}

var dtypeByName = func() map[string]DType {
	m := make(map[string]DType, len(dtypeNames))
	for d, n := range dtypeNames {
		m[n] = d
	}
	return m
}()

// ParseDType returns the DType for its safetensors name ("F16", "BF16", ...).
func ParseDType(name string) (DType, error) {
	d, ok := dtypeByName[name]
	if !ok {
		return 0, fmt.Errorf("%w: unknown dtype %q", ErrInvalidHeader, name)
	}
	return d, nil
}

func (d DType) String() string {
	if n, ok := dtypeNames[d]; ok {
		return n
	}
	return fmt.Sprintf("DType(%d)", uint8(d))
}

// Bits returns the width of one element in bits.
func (d DType) Bits() uint64 {
	switch d {
	case F4:
		return 4
	case F6E2M3, F6E3M2:
		return 6
	case Bool, U8, I8, F8E5M2, F8E4M3, F8E8M0:
		return 8
	case I16, U16, F16, BF16:
		return 16
	case I32, U32, F32:
		return 32
	case F64, I64, U64, C64:
		return 64
	default:
		return 0
	}
}

// Size returns the width of one element in bytes. It is 0 for unknown and
// sub-byte types (F4, F6_E2M3, F6_E3M2), whose elements are packed; use Bits.
func (d DType) Size() uint64 {
	if b := d.Bits(); b%8 == 0 {
		return b / 8
	}
	return 0
}

// MarshalJSON encodes the dtype by name.
func (d DType) MarshalJSON() ([]byte, error) {
	n, ok := dtypeNames[d]
	if !ok {
		return nil, fmt.Errorf("cannot marshal %s", d)
	}
	return json.Marshal(n)
}

// UnmarshalJSON decodes a dtype name.
func (d *DType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("%w: dtype must be a string", ErrInvalidHeader)
	}
	v, err := ParseDType(name)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// MarshalYAML encodes the dtype by name for YAML output.
func (d DType) MarshalYAML() (any, error) {
	return d.String(), nil
}
