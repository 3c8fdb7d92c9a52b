// Package moqtparse implements the MoQ Transport stream parser (C6): an
// incremental reducer from buffered stream bytes to a queue of events,
// demultiplexing the four object-forwarding encodings from an unordered
// sequence of byte chunks. It is a direct port of
// moqt/src/message/message_parser.rs, kept a pull reducer exactly as
// spec §9's design note insists — no callbacks, no inversion of control
// across an await point. ProcessData feeds bytes in; PollEvent drains
// the event queue.
package moqtparse

import (
	"github.com/nth-moq/moqtcore/moqtobject"
	"github.com/nth-moq/moqtcore/wire"
)

// MaxMessageHeaderSize bounds how many bytes of non-object data the
// parser will buffer before giving up on a malformed/oversized header
// (spec §4.5/§5).
const MaxMessageHeaderSize = 2048

// EventKind tags which field of Event is populated.
type EventKind int

const (
	EventParsingError EventKind = iota
	EventObjectMessage
	EventControlMessage
)

// Event is one item the parser emits; see spec §4.5 "Events".
type Event struct {
	Kind EventKind

	// EventParsingError
	Code   wire.ParserErrorCode
	Reason string

	// EventObjectMessage
	Header      moqtobject.Header
	Payload     []byte
	EndOfObject bool

	// EventControlMessage
	Control wire.ControlMessage
}

// Parser is a single stream's incremental decoder. It is not safe for
// concurrent use; the session layer owns one Parser per stream
// (spec §5).
type Parser struct {
	buffered   []byte
	noMoreData bool
	latched    bool // true once a ParsingError has been surfaced

	events []Event

	// Stream-level object metadata, present once a first-in-stream
	// object header has been parsed (object_stream_initialized).
	streamMeta *streamMeta

	// Per-object transient state for the object currently being
	// delivered (nil between objects).
	current *currentObject
}

type streamMeta struct {
	preference  wire.ObjectForwardingPreference
	subscribeID uint64
	trackAlias  uint64
	groupID     uint64 // meaningful only for ForwardingGroup (fixed for the whole stream)
	sendOrder   uint64 // meaningful only for ForwardingTrack/ForwardingGroup (carried once in the stream header)
}

type currentObject struct {
	groupID      uint64
	objectID     uint64
	status       wire.ObjectStatus
	lengthKnown  bool
	remaining    uint64
	sendOrder    uint64
	deliveredAny bool
}

// New returns a fresh parser for one stream.
func New() *Parser {
	return &Parser{}
}

// PollEvent drains the oldest pending event, if any.
func (p *Parser) PollEvent() (Event, bool) {
	if len(p.events) == 0 {
		return Event{}, false
	}
	ev := p.events[0]
	p.events = p.events[1:]
	return ev, true
}

func (p *Parser) emit(ev Event) {
	p.events = append(p.events, ev)
}

func (p *Parser) emitError(code wire.ParserErrorCode, reason string) {
	// Only the first protocol error is surfaced (spec §7); once latched,
	// all further input is discarded.
	if p.latched {
		return
	}
	p.latched = true
	p.noMoreData = true
	p.emit(Event{Kind: EventParsingError, Code: code, Reason: reason})
}

// objectPayloadInProgress mirrors
// object_payload_in_progress = normal-status AND (preference in
// {Object, Datagram} OR payload_length_remaining > 0) (spec §4.5).
func (p *Parser) objectPayloadInProgress() bool {
	if p.current == nil || p.streamMeta == nil {
		return false
	}
	if p.current.status != wire.ObjectStatusNormal {
		return false
	}
	if p.streamMeta.preference == wire.ForwardingObject || p.streamMeta.preference == wire.ForwardingDatagram {
		return true
	}
	return p.current.lengthKnown && p.current.remaining > 0
}

// ProcessData feeds newly-received stream bytes into the parser,
// appending zero or more events to the queue (spec §4.5 "Processing
// contract").
func (p *Parser) ProcessData(data []byte, fin bool) {
	if p.noMoreData {
		p.emitError(wire.ParserErrorProtocolViolation, "Data after end of stream")
		return
	}

	// Early fin check, before the new bytes are even buffered: an object
	// already in progress from a *previous* ProcessData call whose
	// promised length exceeds what just arrived is a short stream, not a
	// mid-delivery truncation within this call (spec §4.5 step 2).
	if fin {
		p.noMoreData = true
		if p.objectPayloadInProgress() && p.current.lengthKnown && p.current.remaining > uint64(len(data)) {
			p.emitError(wire.ParserErrorProtocolViolation, "End of stream before complete OBJECT PAYLOAD")
			return
		}
		if len(p.buffered) > 0 && len(data) == 0 {
			p.emitError(wire.ParserErrorProtocolViolation, "End of stream before complete message")
			return
		}
	}

	p.buffered = append(p.buffered, data...)

	if p.objectPayloadInProgress() {
		if !p.deliverPayload(fin, false) {
			return
		}
	}

	for len(p.buffered) > 0 {
		consumed := p.processMessage(fin)
		if consumed == 0 {
			if len(p.buffered) > MaxMessageHeaderSize {
				p.emitError(wire.ParserErrorInternal, "Cannot parse non-OBJECT messages > 2KB")
				return
			}
			if fin {
				p.emitError(wire.ParserErrorProtocolViolation, "FIN after incomplete message")
				return
			}
			break
		}
		p.buffered = p.buffered[consumed:]
		if p.objectPayloadInProgress() {
			if !p.deliverPayload(fin, true) {
				return
			}
		}
		if len(p.buffered) == 0 {
			break
		}
	}
}

// deliverPayload emits whatever payload bytes are currently buffered for
// the in-progress object, per the three branches of spec §4.5 step 3.
// It returns false if ProcessData should stop (an error was emitted).
//
// freshHeader distinguishes why payload is in progress: true when this
// object's header was parsed earlier in this same ProcessData call
// (a first-in-stream or follow-on header just consumed by the
// processMessage loop), false when the object was already in progress
// on entry (carried over from an earlier call). A short buffer under
// fin means something different in each case: for a freshly-parsed
// header it is "Received FIN mid-payload" (the promised length was
// announced and immediately violated); for a carried-over object the
// top-of-call early check already handles the short-stream case, so
// this branch only exists as a defensive fallback reporting "End of
// stream before complete OBJECT PAYLOAD".
func (p *Parser) deliverPayload(fin bool, freshHeader bool) bool {
	c := p.current
	if !c.lengthKnown {
		chunk := p.buffered
		p.buffered = nil
		end := fin
		p.emit(Event{Kind: EventObjectMessage, Header: p.headerFor(c), Payload: chunk, EndOfObject: end})
		if fin {
			p.clearObject()
		}
		return true
	}

	buffered := uint64(len(p.buffered))
	if buffered < c.remaining {
		if fin {
			reason := "End of stream before complete OBJECT PAYLOAD"
			if freshHeader {
				reason = "Received FIN mid-payload"
			}
			p.emitError(wire.ParserErrorProtocolViolation, reason)
			return false
		}
		chunk := p.buffered
		p.buffered = nil
		c.remaining -= buffered
		p.emit(Event{Kind: EventObjectMessage, Header: p.headerFor(c), Payload: chunk, EndOfObject: false})
		return true
	}

	chunk := p.buffered[:c.remaining]
	p.buffered = p.buffered[c.remaining:]
	c.remaining = 0
	p.emit(Event{Kind: EventObjectMessage, Header: p.headerFor(c), Payload: chunk, EndOfObject: true})
	p.clearObject()
	return true
}

func (p *Parser) headerFor(c *currentObject) moqtobject.Header {
	m := p.streamMeta
	h := moqtobject.Header{
		SubscribeID: m.subscribeID,
		TrackAlias:  m.trackAlias,
		GroupID:     c.groupID,
		ObjectID:    c.objectID,
		Status:      c.status,
		Preference:  m.preference,
	}
	if m.preference == wire.ForwardingGroup || m.preference == wire.ForwardingTrack {
		h.ObjectSendOrder = m.sendOrder
	} else {
		h.ObjectSendOrder = c.sendOrder
	}
	if c.lengthKnown {
		l := c.remaining
		h.PayloadLength = &l
	}
	return h
}

func (p *Parser) clearObject() {
	p.current = nil
}

// objectStreamInitialized mirrors object_metadata.is_some() (spec §4.5).
func (p *Parser) objectStreamInitialized() bool {
	return p.streamMeta != nil
}
