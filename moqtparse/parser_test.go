package moqtparse

import (
	"bytes"
	"testing"

	"github.com/nth-moq/moqtcore/wire"
)

// groupStreamBytes builds one STREAM_HEADER_GROUP first-in-stream header
// (subscribe_id=1, track_alias=2, group_id=3, send_order=5, object_id=4)
// followed by a known-length payload. The message type 0x51 is a
// two-byte VarInt.
func groupStreamBytes(payload []byte) []byte {
	return append([]byte{
		0x40, byte(wire.MsgStreamHeaderGroup),
		1, 2, 3, 5, 4, byte(len(payload)),
	}, payload...)
}

func drainAll(p *Parser) []Event {
	var out []Event
	for {
		ev, ok := p.PollEvent()
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}

func TestGroupStreamPayloadDeliveredWhole(t *testing.T) {
	payload := []byte("abc")
	p := New()
	p.ProcessData(groupStreamBytes(payload), false)
	events := drainAll(p)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1: %+v", len(events), events)
	}
	ev := events[0]
	if ev.Kind != EventObjectMessage || !ev.EndOfObject {
		t.Fatalf("got %+v", ev)
	}
	if !bytes.Equal(ev.Payload, payload) {
		t.Fatalf("payload = %q, want %q", ev.Payload, payload)
	}
	if ev.Header.GroupID != 3 || ev.Header.ObjectID != 4 || ev.Header.Status != wire.ObjectStatusNormal {
		t.Fatalf("header = %+v", ev.Header)
	}
}

// TestIncrementalDeliveryReassemblesSamePayload feeds the same bytes one
// at a time and checks the reassembled payload and terminal state match
// the all-at-once delivery, regardless of how the parser was fed.
func TestIncrementalDeliveryReassemblesSamePayload(t *testing.T) {
	payload := []byte("hello world")
	full := groupStreamBytes(payload)

	p := New()
	var got bytes.Buffer
	endOfObject := false
	for i, b := range full {
		fin := i == len(full)-1
		p.ProcessData([]byte{b}, fin)
		for {
			ev, ok := p.PollEvent()
			if !ok {
				break
			}
			if ev.Kind != EventObjectMessage {
				t.Fatalf("unexpected event kind %v", ev.Kind)
			}
			got.Write(ev.Payload)
			if ev.EndOfObject {
				endOfObject = true
			}
		}
	}
	if !endOfObject {
		t.Fatal("never saw EndOfObject")
	}
	if !bytes.Equal(got.Bytes(), payload) {
		t.Fatalf("reassembled payload = %q, want %q", got.Bytes(), payload)
	}
}

func TestOversizedUnparseableHeaderIsInternalError(t *testing.T) {
	// SUBSCRIBE with subscribe_id=0, track_alias=0, then a track_namespace
	// length prefix (two-byte VarInt for 10000) whose bytes never fully
	// arrive: the parser keeps waiting for more data until the buffered
	// prefix alone exceeds MaxMessageHeaderSize.
	header := []byte{byte(wire.MsgSubscribe), 0, 0, 0x67, 0x10}
	padding := bytes.Repeat([]byte{0}, MaxMessageHeaderSize+1)

	p := New()
	p.ProcessData(header, false)
	if ev, ok := p.PollEvent(); ok {
		t.Fatalf("unexpected event before overflow: %+v", ev)
	}
	p.ProcessData(padding, false)

	ev, ok := p.PollEvent()
	if !ok {
		t.Fatal("expected a ParsingError event")
	}
	if ev.Kind != EventParsingError || ev.Code != wire.ParserErrorInternal {
		t.Fatalf("got %+v, want EventParsingError/ParserErrorInternal", ev)
	}
}

// TestFinMidPayloadAcrossCallsIsEndOfStream covers an object whose header
// arrived in an earlier ProcessData call: a later call's fin with a
// short remainder is a truncated stream, not a mid-payload violation
// (spec §4.5 step 2; distinguished from the single-call case below).
func TestFinMidPayloadAcrossCallsIsEndOfStream(t *testing.T) {
	header := []byte{0x40, byte(wire.MsgStreamHeaderGroup), 1, 2, 3, 5, 4, 10} // declares length 10
	p := New()
	p.ProcessData(header, false)
	drainAll(p)

	p.ProcessData([]byte("short"), true) // fin with only 5 of 10 bytes
	ev, ok := p.PollEvent()
	if !ok {
		t.Fatal("expected a ParsingError event")
	}
	if ev.Kind != EventParsingError || ev.Code != wire.ParserErrorProtocolViolation {
		t.Fatalf("got %+v, want EventParsingError/ParserErrorProtocolViolation", ev)
	}
	if ev.Reason != "End of stream before complete OBJECT PAYLOAD" {
		t.Fatalf("reason = %q, want %q", ev.Reason, "End of stream before complete OBJECT PAYLOAD")
	}
}

// TestFinMidPayloadSingleCallIsReceivedFinMidPayload covers a header and
// a too-short payload arriving together with fin in one ProcessData
// call: spec §8 names this the "Received FIN mid-payload" case, distinct
// from the across-calls truncation above.
func TestFinMidPayloadSingleCallIsReceivedFinMidPayload(t *testing.T) {
	header := []byte{0x40, byte(wire.MsgStreamHeaderGroup), 1, 2, 3, 5, 4, 10} // declares length 10
	p := New()
	p.ProcessData(append(header, []byte("short")...), true) // fin with only 5 of 10 bytes, same call as the header

	ev, ok := p.PollEvent()
	if !ok {
		t.Fatal("expected a ParsingError event")
	}
	if ev.Kind != EventParsingError || ev.Code != wire.ParserErrorProtocolViolation {
		t.Fatalf("got %+v, want EventParsingError/ParserErrorProtocolViolation", ev)
	}
	if ev.Reason != "Received FIN mid-payload" {
		t.Fatalf("reason = %q, want %q", ev.Reason, "Received FIN mid-payload")
	}
}

// TestFinWithBufferedPartialMessageIsEndOfStreamBeforeMessage covers fin
// arriving with zero new bytes while a partial (non-object) message sits
// buffered from a prior call (spec §4.5 step 2, the second early-fin
// branch).
func TestFinWithBufferedPartialMessageIsEndOfStreamBeforeMessage(t *testing.T) {
	// UNSUBSCRIBE is MsgUnSubscribe followed by a VarInt subscribe_id;
	// feed just the message type tag so a control message is left
	// buffered but incomplete.
	p := New()
	p.ProcessData([]byte{byte(wire.MsgUnSubscribe)}, false)
	drainAll(p)

	p.ProcessData(nil, true)
	ev, ok := p.PollEvent()
	if !ok {
		t.Fatal("expected a ParsingError event")
	}
	if ev.Kind != EventParsingError || ev.Code != wire.ParserErrorProtocolViolation {
		t.Fatalf("got %+v, want EventParsingError/ParserErrorProtocolViolation", ev)
	}
	if ev.Reason != "End of stream before complete message" {
		t.Fatalf("reason = %q, want %q", ev.Reason, "End of stream before complete message")
	}
}

func TestDataAfterEndOfStreamIsProtocolViolation(t *testing.T) {
	p := New()
	p.ProcessData(groupStreamBytes([]byte("x")), true)
	drainAll(p)

	p.ProcessData([]byte{1}, false)
	ev, ok := p.PollEvent()
	if !ok {
		t.Fatal("expected a ParsingError event")
	}
	if ev.Kind != EventParsingError || ev.Code != wire.ParserErrorProtocolViolation {
		t.Fatalf("got %+v", ev)
	}
}

func TestObjectDatagramOnStreamIsProtocolViolation(t *testing.T) {
	p := New()
	p.ProcessData([]byte{byte(wire.MsgObjectDatagram), 0, 0, 0, 0, 0, 0}, false)
	ev, ok := p.PollEvent()
	if !ok {
		t.Fatal("expected a ParsingError event")
	}
	if ev.Kind != EventParsingError || ev.Code != wire.ParserErrorProtocolViolation {
		t.Fatalf("got %+v", ev)
	}
}

func TestProcessDatagramRoundTrip(t *testing.T) {
	input := []byte{byte(wire.MsgObjectDatagram), 1, 2, 3, 4, 5, byte(wire.ObjectStatusNormal), 'h', 'i'}
	h, payload, err := ProcessDatagram(input)
	if err != nil {
		t.Fatalf("ProcessDatagram: %v", err)
	}
	if h.SubscribeID != 1 || h.TrackAlias != 2 || h.GroupID != 3 || h.ObjectID != 4 || h.ObjectSendOrder != 5 {
		t.Fatalf("header = %+v", h)
	}
	if !bytes.Equal(payload, []byte("hi")) {
		t.Fatalf("payload = %q", payload)
	}
}
