package codec

import (
	"fmt"

	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"

	"google.golang.org/protobuf/encoding/protowire"
)

// FormatVersion prefixes every encoded message.
const FormatVersion byte = 1

type field struct {
	num    protowire.Number
	typ    protowire.Type
	raw    []byte
	bytes  []byte
	varint uint64
}

// walk visits every field of b. Fields the visitor does not recognise are
// returned verbatim, in order, so they can be written back unchanged.
func walk(b []byte, visit func(f field) (bool, error)) ([]byte, error) {
	var unknown []byte
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, malformed(protowire.ParseError(n))
		}
		m := protowire.ConsumeFieldValue(num, typ, b[n:])
		if m < 0 {
			return nil, malformed(protowire.ParseError(m))
		}

		f := field{num: num, typ: typ, raw: b[:n+m]}
		switch typ {
		case protowire.BytesType:
			f.bytes, _ = protowire.ConsumeBytes(b[n:])
		case protowire.VarintType:
			f.varint, _ = protowire.ConsumeVarint(b[n:])
		}

		known, err := visit(f)
		if err != nil {
			return nil, err
		}
		if !known {
			unknown = append(unknown, f.raw...)
		}
		b = b[n+m:]
	}
	return unknown, nil
}

func (f field) expect(typ protowire.Type) error {
	if f.typ != typ {
		return malformed(fmt.Errorf("field %d has wire type %d, want %d", f.num, f.typ, typ))
	}
	return nil
}

func (f field) str() (string, error) {
	if err := f.expect(protowire.BytesType); err != nil {
		return "", err
	}
	return string(f.bytes), nil
}

func (f field) int32() (int32, error) {
	if err := f.expect(protowire.VarintType); err != nil {
		return 0, err
	}
	return int32(f.varint), nil
}

func (f field) message() ([]byte, error) {
	if err := f.expect(protowire.BytesType); err != nil {
		return nil, err
	}
	return f.bytes, nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(v)))
}

// appendMessage always writes the field, an empty body still selects a oneof case.
func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func malformed(err error) error {
	return fmt.Errorf("%w: %v", kerrors.ErrMalformedContent, err)
}

func header() []byte {
	return []byte{FormatVersion}
}

func stripHeader(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, malformed(fmt.Errorf("empty input"))
	}
	if b[0] != FormatVersion {
		return nil, fmt.Errorf("%w: version %d", kerrors.ErrUnsupportedFormat, b[0])
	}
	return b[1:], nil
}
