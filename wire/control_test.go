package wire

import (
	"bytes"
	"testing"
)

// TestAnnounceErrorRoundTrip is scenario 1 of the spec's end-to-end
// properties: 08 03 "foo" 01 03 "bar".
func TestAnnounceErrorRoundTrip(t *testing.T) {
	input := []byte{0x08, 0x03, 'f', 'o', 'o', 0x01, 0x03, 'b', 'a', 'r'}

	msg, n, err := DecodeControlMessage(input)
	if err != nil {
		t.Fatalf("DecodeControlMessage: %v", err)
	}
	if n != len(input) {
		t.Fatalf("consumed %d bytes, want %d", n, len(input))
	}
	ae, ok := msg.(*AnnounceError)
	if !ok {
		t.Fatalf("got %T, want *AnnounceError", msg)
	}
	if ae.TrackNamespace != "foo" || ae.ErrorCode != 1 || ae.ReasonPhrase != "bar" {
		t.Fatalf("got %+v", ae)
	}

	w := NewWriter(len(input))
	if _, err := EncodeControlMessage(ae, w); err != nil {
		t.Fatalf("EncodeControlMessage: %v", err)
	}
	if !bytes.Equal(w.Bytes(), input) {
		t.Fatalf("re-encode = %x, want %x", w.Bytes(), input)
	}
}

// TestSubscribeOkContentExists is scenario 2: 04 01 03 01 0C 14.
func TestSubscribeOkContentExists(t *testing.T) {
	input := []byte{0x04, 0x01, 0x03, 0x01, 0x0C, 0x14}
	msg, n, err := DecodeControlMessage(input)
	if err != nil {
		t.Fatalf("DecodeControlMessage: %v", err)
	}
	if n != len(input) {
		t.Fatalf("consumed %d, want %d", n, len(input))
	}
	ok, isOk := msg.(*SubscribeOk)
	if !isOk {
		t.Fatalf("got %T, want *SubscribeOk", msg)
	}
	want := &SubscribeOk{SubscribeID: 1, Expires: 3, ContentExists: true, Largest: FullSequence{Group: 12, Object: 20}}
	if *ok != *want {
		t.Fatalf("got %+v, want %+v", ok, want)
	}
}

// TestSubscribeDoneRoundTrip is scenario 3: 0b 02 03 02 "hi" 01 08 0c.
func TestSubscribeDoneRoundTrip(t *testing.T) {
	input := []byte{0x0b, 0x02, 0x03, 0x02, 'h', 'i', 0x01, 0x08, 0x0c}
	msg, n, err := DecodeControlMessage(input)
	if err != nil {
		t.Fatalf("DecodeControlMessage: %v", err)
	}
	if n != len(input) {
		t.Fatalf("consumed %d, want %d", n, len(input))
	}
	sd, ok := msg.(*SubscribeDone)
	if !ok {
		t.Fatalf("got %T, want *SubscribeDone", msg)
	}
	want := &SubscribeDone{SubscribeID: 2, StatusCode: 3, ReasonPhrase: "hi", ContentExists: true, Final: FullSequence{Group: 8, Object: 12}}
	if *sd != *want {
		t.Fatalf("got %+v, want %+v", sd, want)
	}

	w := NewWriter(len(input))
	if _, err := EncodeControlMessage(sd, w); err != nil {
		t.Fatalf("EncodeControlMessage: %v", err)
	}
	if !bytes.Equal(w.Bytes(), input) {
		t.Fatalf("re-encode = %x, want %x", w.Bytes(), input)
	}
}

// TestUnSubscribeRoundTrip is scenario 4: 0a 03.
func TestUnSubscribeRoundTrip(t *testing.T) {
	input := []byte{0x0a, 0x03}
	msg, n, err := DecodeControlMessage(input)
	if err != nil {
		t.Fatalf("DecodeControlMessage: %v", err)
	}
	if n != len(input) {
		t.Fatalf("consumed %d, want %d", n, len(input))
	}
	us, ok := msg.(*UnSubscribe)
	if !ok || us.SubscribeID != 3 {
		t.Fatalf("got %+v", msg)
	}
	w := NewWriter(len(input))
	if _, err := EncodeControlMessage(us, w); err != nil {
		t.Fatalf("EncodeControlMessage: %v", err)
	}
	if !bytes.Equal(w.Bytes(), input) {
		t.Fatalf("re-encode = %x, want %x", w.Bytes(), input)
	}
}

// TestSubscribeUpdateShiftedEnd is scenario 5: the wire end (5,6) shifts
// to internal end (4,5), and carries one AuthorizationInfo parameter.
func TestSubscribeUpdateShiftedEnd(t *testing.T) {
	input := []byte{0x02, 0x02, 0x03, 0x01, 0x05, 0x06, 0x01, 0x02, 0x03, 'b', 'a', 'r'}
	msg, n, err := DecodeControlMessage(input)
	if err != nil {
		t.Fatalf("DecodeControlMessage: %v", err)
	}
	if n != len(input) {
		t.Fatalf("consumed %d, want %d", n, len(input))
	}
	su, ok := msg.(*SubscribeUpdate)
	if !ok {
		t.Fatalf("got %T, want *SubscribeUpdate", msg)
	}
	if su.SubscribeID != 2 {
		t.Fatalf("subscribe_id = %d, want 2", su.SubscribeID)
	}
	if su.Start != (FullSequence{Group: 3, Object: 1}) {
		t.Fatalf("start = %+v", su.Start)
	}
	if !su.HasEnd || su.End != (FullSequence{Group: 4, Object: 5}) {
		t.Fatalf("end = %+v, hasEnd = %v", su.End, su.HasEnd)
	}
	if !su.HasAuthorizationInfo || su.AuthorizationInfo != "bar" {
		t.Fatalf("authorization_info = %q, has = %v", su.AuthorizationInfo, su.HasAuthorizationInfo)
	}
}

func TestSubscribeUpdateEndObjectWithoutEndGroupIsProtocolViolation(t *testing.T) {
	// start (0,0), wire end (0, 5): end_object without end_group.
	input := []byte{0x02, 0x01, 0x00, 0x00, 0x00, 0x05, 0x00}
	_, _, err := DecodeControlMessage(input)
	pe := asParsingError(t, err)
	if pe.Code != ParserErrorProtocolViolation {
		t.Fatalf("code = %v, want ProtocolViolation", pe.Code)
	}
}

func TestSubscribeUpdateOpenEnded(t *testing.T) {
	// wire end (0,0) means open-ended.
	input := []byte{0x02, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00}
	msg, _, err := DecodeControlMessage(input)
	if err != nil {
		t.Fatalf("DecodeControlMessage: %v", err)
	}
	su := msg.(*SubscribeUpdate)
	if su.HasEnd {
		t.Fatalf("expected open-ended, got end=%+v", su.End)
	}
}

func TestSubscribeUpdateEndOfGroupSentinel(t *testing.T) {
	// wire end (g, 0) with g>0 maps to internal (g-1, MAX).
	input := []byte{0x02, 0x01, 0x00, 0x00, 0x03, 0x00, 0x00}
	msg, _, err := DecodeControlMessage(input)
	if err != nil {
		t.Fatalf("DecodeControlMessage: %v", err)
	}
	su := msg.(*SubscribeUpdate)
	want := FullSequence{Group: 2, Object: ^uint64(0)}
	if !su.HasEnd || su.End != want {
		t.Fatalf("end = %+v, want %+v", su.End, want)
	}
}

func TestSubscribeUpdateEndBeforeStartIsProtocolViolation(t *testing.T) {
	// start (5,0), wire end (1,1) -> internal end (0,0), which precedes start.
	input := []byte{0x02, 0x01, 0x05, 0x00, 0x01, 0x01, 0x00}
	_, _, err := DecodeControlMessage(input)
	pe := asParsingError(t, err)
	if pe.Code != ParserErrorProtocolViolation {
		t.Fatalf("code = %v, want ProtocolViolation", pe.Code)
	}
}

func TestSubscribeUpdateEncodeRejectsInvalidMaxEnd(t *testing.T) {
	su := &SubscribeUpdate{
		SubscribeID: 1,
		Start:       FullSequence{},
		End:         FullSequence{Group: ^uint64(0), Object: 5},
		HasEnd:      true,
	}
	_, err := su.Encode(NewWriter(16))
	if err == nil {
		t.Fatal("expected encode error for end=(MAX, 5)")
	}
}

func TestClientSetupMissingRoleIsError(t *testing.T) {
	w := NewWriter(16)
	w.WriteVarInt(1)                   // num_supported_versions
	w.WriteVarInt(uint64(Draft04))     // supported_version[0]
	params := NewParameters()          // no Role parameter
	params.Encode(w)

	_, err := DecodeClientSetup(NewReader(w.Bytes()))
	if err == nil {
		t.Fatal("expected MissingParameter error")
	}
}

func TestSubscribeRoundTrip(t *testing.T) {
	sub := &Subscribe{
		SubscribeID:    7,
		TrackAlias:     9,
		TrackNamespace: "ns",
		TrackName:      "name",
		Filter:         FilterType{Tag: FilterAbsoluteRange, Start: FullSequence{Group: 1, Object: 2}, End: FullSequence{Group: 3, Object: 4}},
	}
	w := NewWriter(32)
	if _, err := EncodeControlMessage(sub, w); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	msg, n, err := DecodeControlMessage(w.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != len(w.Bytes()) {
		t.Fatalf("consumed %d, want %d", n, len(w.Bytes()))
	}
	got := msg.(*Subscribe)
	if *got != *sub {
		t.Fatalf("got %+v, want %+v", got, sub)
	}
}

func asParsingError(t *testing.T, err error) *ParsingError {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	var pe *ParseError
	if p, ok := err.(*ParseError); ok {
		pe = p
	} else {
		t.Fatalf("error %v is not *ParseError", err)
	}
	parsing, ok := pe.Err.(*ParsingError)
	if !ok {
		t.Fatalf("wrapped error %v is not *ParsingError", pe.Err)
	}
	return parsing
}
