package domain

import (
	"database/sql/driver"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrVectorFormat is returned when a stored embedding cannot be decoded.
var ErrVectorFormat = errors.New("domain: malformed vector")

// Vector is a fixed-dimension embedding persisted as a BLOB of little-endian
// float32 values.
type Vector []float32

// Value implements driver.Valuer.
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf, nil
}

// Scan implements sql.Scanner.
func (v *Vector) Scan(src any) error {
	var b []byte
	switch t := src.(type) {
	case nil:
		*v = nil
		return nil
	case []byte:
		b = t
	case string:
		b = []byte(t)
	default:
		return fmt.Errorf("%w: unsupported source %T", ErrVectorFormat, src)
	}
	if len(b)%4 != 0 {
		return fmt.Errorf("%w: %d bytes", ErrVectorFormat, len(b))
	}
	out := make(Vector, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	*v = out
	return nil
}

// Dim returns the number of components.
func (v Vector) Dim() int { return len(v) }
