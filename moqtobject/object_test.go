package moqtobject

import (
	"bytes"
	"testing"

	"github.com/nth-moq/moqtcore/wire"
)

func u64(v uint64) *uint64 { return &v }

func TestSerializeHeaderGroupFirstInStream(t *testing.T) {
	h := Header{
		SubscribeID:     1,
		TrackAlias:      2,
		GroupID:         3,
		ObjectID:        4,
		ObjectSendOrder: 5,
		Status:          wire.ObjectStatusNormal,
		Preference:      wire.ForwardingGroup,
		PayloadLength:   u64(7),
	}
	w := wire.NewWriter(32)
	if _, err := SerializeHeader(h, true, w); err != nil {
		t.Fatalf("SerializeHeader: %v", err)
	}
	want := []byte{
		0x40, byte(wire.MsgStreamHeaderGroup), // message type 0x51 as a two-byte VarInt
		1, // subscribe_id
		2, // track_alias
		3, // group_id
		5, // object_send_order
		4, // object_id
		7, // length
	}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("got %x, want %x", w.Bytes(), want)
	}
}

func TestSerializeHeaderGroupMiddler(t *testing.T) {
	h := Header{
		GroupID:       3,
		ObjectID:      4,
		Status:        wire.ObjectStatusNormal,
		Preference:    wire.ForwardingGroup,
		PayloadLength: u64(7),
	}
	w := wire.NewWriter(32)
	if _, err := SerializeHeader(h, false, w); err != nil {
		t.Fatalf("SerializeHeader: %v", err)
	}
	want := []byte{4, 7} // object_id, length (no status: length != 0)
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("got %x, want %x", w.Bytes(), want)
	}
}

func TestSerializeHeaderGroupMiddlerZeroLengthCarriesStatus(t *testing.T) {
	h := Header{
		GroupID:       3,
		ObjectID:      4,
		Status:        wire.ObjectStatusEndOfGroup,
		Preference:    wire.ForwardingGroup,
		PayloadLength: u64(0),
	}
	w := wire.NewWriter(32)
	if _, err := SerializeHeader(h, false, w); err != nil {
		t.Fatalf("SerializeHeader: %v", err)
	}
	want := []byte{4, 0, byte(wire.ObjectStatusEndOfGroup)}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("got %x, want %x", w.Bytes(), want)
	}
}

func TestSerializeHeaderRejectsNilLengthForGroup(t *testing.T) {
	h := Header{Preference: wire.ForwardingGroup, Status: wire.ObjectStatusNormal}
	_, err := SerializeHeader(h, true, wire.NewWriter(8))
	if _, ok := err.(*InvalidObjectTypeError); !ok {
		t.Fatalf("got %v, want *InvalidObjectTypeError", err)
	}
}

func TestSerializeHeaderRejectsNilLengthForTrack(t *testing.T) {
	h := Header{Preference: wire.ForwardingTrack, Status: wire.ObjectStatusNormal}
	_, err := SerializeHeader(h, true, wire.NewWriter(8))
	if _, ok := err.(*InvalidObjectTypeError); !ok {
		t.Fatalf("got %v, want *InvalidObjectTypeError", err)
	}
}

func TestSerializeHeaderRejectsNonNormalStatusWithPayload(t *testing.T) {
	h := Header{
		Preference:    wire.ForwardingGroup,
		Status:        wire.ObjectStatusEndOfGroup,
		PayloadLength: u64(10),
	}
	_, err := SerializeHeader(h, true, wire.NewWriter(8))
	if _, ok := err.(*InvalidObjectTypeError); !ok {
		t.Fatalf("got %v, want *InvalidObjectTypeError", err)
	}
}

func TestSerializeHeaderRejectsNonFirstObjectPreference(t *testing.T) {
	h := Header{Preference: wire.ForwardingObject, Status: wire.ObjectStatusNormal}
	_, err := SerializeHeader(h, false, wire.NewWriter(8))
	if _, ok := err.(*InvalidObjectTypeError); !ok {
		t.Fatalf("got %v, want *InvalidObjectTypeError", err)
	}
}

func TestSerializeHeaderRejectsNonFirstDatagramPreference(t *testing.T) {
	h := Header{Preference: wire.ForwardingDatagram, Status: wire.ObjectStatusNormal}
	_, err := SerializeHeader(h, false, wire.NewWriter(8))
	if _, ok := err.(*InvalidObjectTypeError); !ok {
		t.Fatalf("got %v, want *InvalidObjectTypeError", err)
	}
}

func TestSerializeDatagramRejectsNonNormalWithPayload(t *testing.T) {
	h := Header{Status: wire.ObjectStatusEndOfTrack}
	_, err := SerializeDatagram(h, []byte("hi"), wire.NewWriter(8))
	if _, ok := err.(*InvalidObjectTypeError); !ok {
		t.Fatalf("got %v, want *InvalidObjectTypeError", err)
	}
}

func TestSerializeDatagramRoundTripFields(t *testing.T) {
	h := Header{
		SubscribeID:     1,
		TrackAlias:      2,
		GroupID:         3,
		ObjectID:        4,
		ObjectSendOrder: 5,
		Status:          wire.ObjectStatusNormal,
	}
	w := wire.NewWriter(32)
	payload := []byte("payload")
	if _, err := SerializeDatagram(h, payload, w); err != nil {
		t.Fatalf("SerializeDatagram: %v", err)
	}
	want := append([]byte{byte(wire.MsgObjectDatagram), 1, 2, 3, 4, 5, byte(wire.ObjectStatusNormal)}, payload...)
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("got %x, want %x", w.Bytes(), want)
	}
}
