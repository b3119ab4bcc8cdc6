package codec

import (
	"encoding/binary"
	"math"
)

// Writer accumulates an encoded message.
// Offsets used for alignment are relative to the start of the message.
type Writer struct {
	buf []byte
}

// Bytes returns the encoded bytes written so far.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return len(w.buf)
}

// WriteTag writes a single tag byte.
func (w *Writer) WriteTag(tag Tag) {
	w.buf = append(w.buf, byte(tag))
}

// WriteSize writes a size prefix: one byte below 254, 254 plus a uint16
// up to 0xFFFF, otherwise 255 plus a uint32.
func (w *Writer) WriteSize(n int) {
	switch {
	case n < 254:
		w.buf = append(w.buf, byte(n))
	case n <= math.MaxUint16:
		w.buf = append(w.buf, 254)
		w.buf = binary.LittleEndian.AppendUint16(w.buf, uint16(n))
	default:
		w.buf = append(w.buf, 255)
		w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(n))
	}
}

// WriteAlignment pads with zero bytes up to the next multiple of alignment.
func (w *Writer) WriteAlignment(alignment int) {
	if mod := len(w.buf) % alignment; mod != 0 {
		for range alignment - mod {
			w.buf = append(w.buf, 0)
		}
	}
}

func (w *Writer) writeInt32(v int32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(v))
}

func (w *Writer) writeInt64(v int64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(v))
}

func (w *Writer) writeFloat32(v float32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, math.Float32bits(v))
}

func (w *Writer) writeFloat64(v float64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, math.Float64bits(v))
}

func (w *Writer) writeBytes(b []byte) {
	w.buf = append(w.buf, b...)
}
