// Package varint implements the QUIC variable-length integer codec that
// every MoQ Transport control and object message depends on: a two-bit
// length tag packed into the top of the first byte, followed by the
// big-endian value. It generalizes the bufReader-style helpers in
// internal/moq/control.go to the full unsigned range below 2^62 that
// MoQ wire values require, building on quicvarint's own encode/decode
// primitives rather than reimplementing the bit-twiddling from scratch.
package varint

import (
	"errors"
	"fmt"

	"github.com/quic-go/quic-go/quicvarint"
)

// Max is the largest value representable by the MoQ VarInt encoding
// (2^62 - 1); quicvarint enforces the same bound internally.
const Max = uint64(1)<<62 - 1

// ErrBoundsExceeded is returned by Append when the value does
// not fit in 62 bits.
var ErrBoundsExceeded = errors.New("varint: value exceeds 2^62-1")

// ErrUnexpectedEnd is returned by Decode when the buffer ends before a
// complete VarInt could be read.
var ErrUnexpectedEnd = errors.New("varint: unexpected end of buffer")

// Len reports the number of bytes Encode will produce for v, one of
// {1, 2, 4, 8} depending on which bucket v falls into.
func Len(v uint64) int {
	return int(quicvarint.Len(v))
}

// Append encodes v as a VarInt and appends it to buf, returning the
// extended slice. If v exceeds Max it returns buf unchanged and an error
// wrapping ErrBoundsExceeded.
func Append(buf []byte, v uint64) ([]byte, error) {
	if v > Max {
		return buf, fmt.Errorf("varint: encode %d: %w", v, ErrBoundsExceeded)
	}
	return quicvarint.Append(buf, v), nil
}

// Decode reads a single VarInt from the front of buf, returning the
// decoded value and the number of bytes consumed. A short or empty
// buffer yields ErrUnexpectedEnd.
func Decode(buf []byte) (uint64, int, error) {
	if len(buf) == 0 {
		return 0, 0, ErrUnexpectedEnd
	}
	v, n, err := quicvarint.Parse(buf)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrUnexpectedEnd, err)
	}
	return v, n, nil
}
