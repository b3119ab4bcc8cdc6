package codec

import (
	"encoding/binary"
	"math"
)

// Reader consumes an encoded message.
type Reader struct {
	buf []byte
	pos int
}

// NewReader returns a Reader positioned at the start of b.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

// ReadTag reads a single tag byte.
func (r *Reader) ReadTag() (Tag, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return Tag(int8(b[0])), nil
}

// ReadSize reads a size prefix written by Writer.WriteSize.
func (r *Reader) ReadSize() (int, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	switch b[0] {
	case 254:
		v, err := r.take(2)
		if err != nil {
			return 0, err
		}
		return int(binary.LittleEndian.Uint16(v)), nil
	case 255:
		v, err := r.take(4)
		if err != nil {
			return 0, err
		}
		return int(binary.LittleEndian.Uint32(v)), nil
	default:
		return int(b[0]), nil
	}
}

// ReadAlignment skips padding up to the next multiple of alignment.
func (r *Reader) ReadAlignment(alignment int) error {
	if mod := r.pos % alignment; mod != 0 {
		_, err := r.take(alignment - mod)
		return err
	}
	return nil
}

// take returns the next n bytes without copying.
func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, malformedf("need %d bytes at offset %d, have %d", n, r.pos, r.Remaining())
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ensure checks that count elements of elemSize bytes are available,
// before anything is allocated for them.
func (r *Reader) ensure(count, elemSize int) error {
	if uint64(count)*uint64(elemSize) > uint64(r.Remaining()) {
		return malformedf("declared %d elements at offset %d exceed remaining %d bytes", count, r.pos, r.Remaining())
	}
	return nil
}

func (r *Reader) readInt32() (int32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (r *Reader) readInt64() (int64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

func (r *Reader) readFloat32() (float32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

func (r *Reader) readFloat64() (float64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}
