package wire

import (
	"unicode/utf8"

	"github.com/nth-moq/moqtcore/varint"
)

// ParamKey identifies a recognized entry in a Parameters block (spec §3).
type ParamKey uint64

const (
	ParamRole              ParamKey = 0
	ParamPath              ParamKey = 1
	ParamAuthorizationInfo ParamKey = 2
)

// Parameters is a VarInt-keyed TLV container: a mapping from ParamKey to
// an opaque, already-serialized byte value. Keys are unique within a
// block, matching moqt/src/codable/parameters.rs's HashMap<key, bytes>
// model (generalized here beyond the teacher's two hardcoded setup
// parameters in internal/moq/control.go).
type Parameters map[uint64][]byte

// NewParameters returns an empty parameter block.
func NewParameters() Parameters {
	return make(Parameters)
}

// Contains reports whether key is present in the block.
func (p Parameters) Contains(key ParamKey) bool {
	_, ok := p[uint64(key)]
	return ok
}

// InsertRaw stores an already-serialized value under key, rejecting a
// duplicate insert with ErrDuplicateParameter.
func (p Parameters) InsertRaw(key ParamKey, value []byte) error {
	if p.Contains(key) {
		return ErrDuplicateParameter
	}
	p[uint64(key)] = value
	return nil
}

// InsertUint64 serializes v as a VarInt and inserts it under key.
func (p Parameters) InsertUint64(key ParamKey, v uint64) error {
	w := NewWriter(varint.Len(v))
	if _, err := w.WriteVarInt(v); err != nil {
		return err
	}
	return p.InsertRaw(key, w.Bytes())
}

// InsertString inserts the UTF-8 bytes of s under key; the entry's own
// TLV length is the string's length, with no inner length prefix.
func (p Parameters) InsertString(key ParamKey, s string) error {
	return p.InsertRaw(key, []byte(s))
}

// RemoveUint64 parses the stored value at key as a VarInt, returning
// (0, false) if the key is absent or the stored bytes do not parse.
func (p Parameters) RemoveUint64(key ParamKey) (uint64, bool) {
	raw, ok := p[uint64(key)]
	if !ok {
		return 0, false
	}
	delete(p, uint64(key))
	r := NewReader(raw)
	v, _, err := r.ReadVarInt()
	if err != nil {
		return 0, false
	}
	return v, true
}

// RemoveString returns the stored value at key as a string, returning
// ("", false) if the key is absent or the bytes are not valid UTF-8.
func (p Parameters) RemoveString(key ParamKey) (string, bool) {
	raw, ok := p[uint64(key)]
	if !ok {
		return "", false
	}
	delete(p, uint64(key))
	if !utf8.Valid(raw) {
		return "", false
	}
	return string(raw), true
}

// DecodeParameters reads a VarInt count followed by count entries of
// (key, length, bytes), rejecting duplicate keys and short buffers.
func DecodeParameters(r *Reader) (Parameters, int, error) {
	start := r.Pos()
	count, _, err := r.ReadVarInt()
	if err != nil {
		return nil, 0, err
	}
	params := NewParameters()
	for i := uint64(0); i < count; i++ {
		key, _, err := r.ReadVarInt()
		if err != nil {
			return nil, 0, err
		}
		if params.Contains(ParamKey(key)) {
			return nil, 0, ErrDuplicateParameter
		}
		value, _, err := r.ReadBytes()
		if err != nil {
			return nil, 0, err
		}
		params[key] = append([]byte(nil), value...)
	}
	return params, r.Pos() - start, nil
}

// Encode writes the VarInt count followed by each (key, length, bytes)
// entry. Map iteration order is unspecified, matching the Rust source's
// HashMap-backed Parameters (there is no canonical wire order to
// preserve across encode/decode; only the key set and values matter).
func (p Parameters) Encode(w *Writer) (int, error) {
	before := w.Len()
	if _, err := w.WriteVarInt(uint64(len(p))); err != nil {
		return 0, err
	}
	for key, value := range p {
		if _, err := w.WriteVarInt(key); err != nil {
			return 0, err
		}
		if _, err := w.WriteBytes(value); err != nil {
			return 0, err
		}
	}
	return w.Len() - before, nil
}
