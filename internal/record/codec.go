package record

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrTruncated is returned when encoded data ends before the last field.
	ErrTruncated = errors.New("record: truncated data")
	// ErrTrailingBytes is returned when encoded data continues past the last field.
	ErrTrailingBytes = errors.New("record: trailing bytes")
	// ErrStringTooLong is returned for strings longer than MaxURILength.
	ErrStringTooLong = errors.New("record: string exceeds 200 bytes")
	// ErrInvalidBool is returned for a boolean byte other than 0 or 1.
	ErrInvalidBool = errors.New("record: invalid bool byte")
)

type encoder struct {
	buf []byte
	err error
}

func (e *encoder) u8(v uint8)   { e.buf = append(e.buf, v) }
func (e *encoder) u64(v uint64) { e.buf = binary.LittleEndian.AppendUint64(e.buf, v) }
func (e *encoder) i64(v int64)  { e.u64(uint64(v)) }

func (e *encoder) bool(v bool) {
	if v {
		e.u8(1)
		return
	}
	e.u8(0)
}

func (e *encoder) fixed(b [32]byte) { e.buf = append(e.buf, b[:]...) }

func (e *encoder) str(s string) {
	if len(s) > MaxURILength {
		if e.err == nil {
			e.err = fmt.Errorf("%w: %d bytes", ErrStringTooLong, len(s))
		}
		return
	}
	e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *encoder) finish() ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.buf, nil
}

// decoder reads fields sequentially. The first failure sticks; later reads
// return zero values so callers check once in finish.
type decoder struct {
	buf []byte
	off int
	err error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if len(d.buf)-d.off < n {
		d.err = ErrTruncated
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) u8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *decoder) u64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (d *decoder) i64() int64 { return int64(d.u64()) }

func (d *decoder) bool() bool {
	v := d.u8()
	if d.err == nil && v > 1 {
		d.err = fmt.Errorf("%w: %d", ErrInvalidBool, v)
	}
	return v == 1
}

func (d *decoder) fixed() [32]byte {
	var out [32]byte
	if b := d.take(32); b != nil {
		copy(out[:], b)
	}
	return out
}

func (d *decoder) str() string {
	b := d.take(4)
	if b == nil {
		return ""
	}
	n := binary.LittleEndian.Uint32(b)
	if n > MaxURILength {
		d.err = fmt.Errorf("%w: length prefix %d", ErrStringTooLong, n)
		return ""
	}
	return string(d.take(int(n)))
}

func (d *decoder) finish(kind string) error {
	if d.err == nil && d.off != len(d.buf) {
		d.err = fmt.Errorf("%w: %d after %s", ErrTrailingBytes, len(d.buf)-d.off, kind)
	}
	if d.err != nil {
		return fmt.Errorf("record: decode %s: %w", kind, d.err)
	}
	return nil
}
