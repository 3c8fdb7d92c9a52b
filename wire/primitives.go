package wire

import (
	"errors"
	"unicode/utf8"

	"github.com/nth-moq/moqtcore/varint"
)

// Reader sequentially decodes VarInts, booleans, and length-prefixed
// byte/string values from a byte slice, tracking its own position. It
// plays the same role as internal/moq/control.go's bufReader, widened to
// the full primitive set spec §4 requires and to the (value, length,
// error) decode contract spec §9 names as authoritative.
type Reader struct {
	data []byte
	pos  int
}

// NewReader wraps data for sequential decoding starting at offset 0.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Pos returns the current read offset.
func (r *Reader) Pos() int { return r.pos }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.pos }

// ReadVarInt decodes a single VarInt and returns its value and the
// number of bytes it occupied on the wire.
func (r *Reader) ReadVarInt() (uint64, int, error) {
	if r.pos >= len(r.data) {
		return 0, 0, ErrUnexpectedEnd
	}
	v, n, err := varint.Decode(r.data[r.pos:])
	if err != nil {
		return 0, 0, ErrUnexpectedEnd
	}
	r.pos += n
	return v, n, nil
}

// ReadUint64 is an alias for ReadVarInt used where the field is
// conceptually a plain counter rather than an encoded length.
func (r *Reader) ReadUint64() (uint64, int, error) { return r.ReadVarInt() }

// ReadBool decodes a single-byte boolean; any value other than 0x00 or
// 0x01 is an InvalidBooleanValueError.
func (r *Reader) ReadBool() (bool, int, error) {
	if r.pos >= len(r.data) {
		return false, 0, ErrUnexpectedEnd
	}
	b := r.data[r.pos]
	r.pos++
	switch b {
	case 0:
		return false, 1, nil
	case 1:
		return true, 1, nil
	default:
		return false, 1, &InvalidBooleanValueError{Got: b}
	}
}

// ReadByte decodes a single raw byte with no validation; any range
// check is left to the caller.
func (r *Reader) ReadByte() (byte, int, error) {
	if r.pos >= len(r.data) {
		return 0, 0, ErrUnexpectedEnd
	}
	b := r.data[r.pos]
	r.pos++
	return b, 1, nil
}

// ReadBytes decodes a VarInt-length-prefixed byte string.
func (r *Reader) ReadBytes() ([]byte, int, error) {
	length, ln, err := r.ReadVarInt()
	if err != nil {
		return nil, 0, err
	}
	end := r.pos + int(length)
	if end > len(r.data) || end < r.pos {
		return nil, 0, ErrBufferTooShort
	}
	val := r.data[r.pos:end]
	r.pos = end
	return val, ln + int(length), nil
}

// ReadString decodes a VarInt-length-prefixed UTF-8 string.
func (r *Reader) ReadString() (string, int, error) {
	b, n, err := r.ReadBytes()
	if err != nil {
		return "", 0, err
	}
	if !utf8.Valid(b) {
		return "", 0, &InvalidStringError{Err: errInvalidUTF8}
	}
	return string(b), n, nil
}

var errInvalidUTF8 = errors.New("wire: invalid utf-8 byte sequence")

// Writer accumulates an encoded message; zero value is ready to use.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with the given initial capacity hint.
func NewWriter(capHint int) *Writer {
	return &Writer{buf: make([]byte, 0, capHint)}
}

// Bytes returns the accumulated output.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// WriteVarInt appends v as a VarInt.
func (w *Writer) WriteVarInt(v uint64) (int, error) {
	before := len(w.buf)
	buf, err := varint.Append(w.buf, v)
	if err != nil {
		return 0, err
	}
	w.buf = buf
	return len(w.buf) - before, nil
}

// WriteBool appends a single boolean byte.
func (w *Writer) WriteBool(v bool) (int, error) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
	return 1, nil
}

// WriteByte appends a single raw byte.
func (w *Writer) WriteByte(b byte) (int, error) {
	w.buf = append(w.buf, b)
	return 1, nil
}

// WriteBytes appends a VarInt-length prefix followed by data.
func (w *Writer) WriteBytes(data []byte) (int, error) {
	before := len(w.buf)
	if _, err := w.WriteVarInt(uint64(len(data))); err != nil {
		return 0, err
	}
	w.buf = append(w.buf, data...)
	return len(w.buf) - before, nil
}

// WriteString appends a VarInt-length-prefixed UTF-8 string.
func (w *Writer) WriteString(s string) (int, error) {
	return w.WriteBytes([]byte(s))
}

// WriteBytesRaw appends data with no length prefix, for payloads whose
// extent is determined externally (an explicit prior length field, or
// "rest of datagram/stream").
func (w *Writer) WriteBytesRaw(data []byte) int {
	w.buf = append(w.buf, data...)
	return len(data)
}
