package moqtparse

import (
	"errors"
	"fmt"

	"github.com/nth-moq/moqtcore/moqtobject"
	"github.com/nth-moq/moqtcore/wire"
)

// processMessage attempts to parse exactly one message (a follow-on
// object, a first-in-stream object header, or a control message) from
// the front of the buffer, returning the number of bytes consumed, or 0
// if more bytes are needed (spec §4.5 "process_message").
func (p *Parser) processMessage(fin bool) int {
	if p.streamMeta != nil && !p.objectPayloadInProgress() &&
		(p.streamMeta.preference == wire.ForwardingTrack || p.streamMeta.preference == wire.ForwardingGroup) {
		return p.processFollowOnObject()
	}

	if len(p.buffered) == 0 {
		return 0
	}
	peek := wire.NewReader(p.buffered)
	tagVal, _, err := peek.ReadVarInt()
	if err != nil {
		return 0
	}

	switch wire.MessageType(tagVal) {
	case wire.MsgObjectDatagram:
		p.emitError(wire.ParserErrorProtocolViolation, "Received OBJECT_DATAGRAM on stream")
		return 0
	case wire.MsgObjectStream, wire.MsgStreamHeaderTrack, wire.MsgStreamHeaderGroup:
		return p.processFirstObjectHeader(wire.MessageType(tagVal))
	default:
		msg, consumed, err := wire.DecodeControlMessage(p.buffered)
		if err != nil {
			if isShortBuffer(err) {
				return 0
			}
			p.emitError(wire.ParserErrorProtocolViolation, err.Error())
			return 0
		}
		p.emit(Event{Kind: EventControlMessage, Control: msg})
		return consumed
	}
}

func isShortBuffer(err error) bool {
	return errors.Is(err, wire.ErrUnexpectedEnd) || errors.Is(err, wire.ErrBufferTooShort)
}

func preferenceForMessageType(t wire.MessageType) wire.ObjectForwardingPreference {
	switch t {
	case wire.MsgStreamHeaderTrack:
		return wire.ForwardingTrack
	case wire.MsgStreamHeaderGroup:
		return wire.ForwardingGroup
	default:
		return wire.ForwardingObject
	}
}

// processFirstObjectHeader parses the first header seen on a stream,
// whose field order is preference-dependent (spec §4.4's table). A
// successful parse installs streamMeta (object_stream_initialized) and
// the per-object currentObject state.
func (p *Parser) processFirstObjectHeader(msgType wire.MessageType) int {
	r := wire.NewReader(p.buffered)
	if _, _, err := r.ReadVarInt(); err != nil { // message type, already peeked
		return 0
	}
	subID, _, err := r.ReadVarInt()
	if err != nil {
		return 0
	}
	alias, _, err := r.ReadVarInt()
	if err != nil {
		return 0
	}

	meta := &streamMeta{preference: preferenceForMessageType(msgType), subscribeID: subID, trackAlias: alias}
	cur := &currentObject{}

	switch msgType {
	case wire.MsgStreamHeaderTrack:
		sendOrder, _, err := r.ReadVarInt()
		if err != nil {
			return 0
		}
		groupID, _, err := r.ReadVarInt()
		if err != nil {
			return 0
		}
		objID, _, err := r.ReadVarInt()
		if err != nil {
			return 0
		}
		length, _, err := r.ReadVarInt()
		if err != nil {
			return 0
		}
		status := wire.ObjectStatusNormal
		if length == 0 {
			sv, _, err := r.ReadVarInt()
			if err != nil {
				return 0
			}
			status = wire.ObjectStatusFromWire(sv)
		}
		meta.sendOrder = sendOrder
		cur.groupID, cur.objectID, cur.lengthKnown, cur.remaining, cur.status = groupID, objID, true, length, status

	case wire.MsgStreamHeaderGroup:
		groupID, _, err := r.ReadVarInt()
		if err != nil {
			return 0
		}
		sendOrder, _, err := r.ReadVarInt()
		if err != nil {
			return 0
		}
		objID, _, err := r.ReadVarInt()
		if err != nil {
			return 0
		}
		length, _, err := r.ReadVarInt()
		if err != nil {
			return 0
		}
		status := wire.ObjectStatusNormal
		if length == 0 {
			sv, _, err := r.ReadVarInt()
			if err != nil {
				return 0
			}
			status = wire.ObjectStatusFromWire(sv)
		}
		meta.groupID = groupID
		meta.sendOrder = sendOrder
		cur.groupID, cur.objectID, cur.lengthKnown, cur.remaining, cur.status = groupID, objID, true, length, status

	default: // MsgObjectStream
		groupID, _, err := r.ReadVarInt()
		if err != nil {
			return 0
		}
		objID, _, err := r.ReadVarInt()
		if err != nil {
			return 0
		}
		sendOrder, _, err := r.ReadVarInt()
		if err != nil {
			return 0
		}
		statusVal, _, err := r.ReadVarInt()
		if err != nil {
			return 0
		}
		cur.groupID, cur.objectID, cur.sendOrder = groupID, objID, sendOrder
		cur.status = wire.ObjectStatusFromWire(statusVal)
		cur.lengthKnown = false
	}

	if cur.status == wire.ObjectStatusInvalid {
		p.emitError(wire.ParserErrorProtocolViolation, "invalid object status")
		return 0
	}

	consumed := r.Pos()
	p.streamMeta = meta
	p.current = cur

	if cur.status != wire.ObjectStatusNormal {
		p.emit(Event{Kind: EventObjectMessage, Header: p.headerFor(cur), Payload: nil, EndOfObject: true})
		p.clearObject()
	}
	return consumed
}

// processFollowOnObject parses a Track/Group middler: the shared
// stream-level fields (subscribe_id, track_alias, fixed group for
// Group) were already consumed by the first header.
func (p *Parser) processFollowOnObject() int {
	r := wire.NewReader(p.buffered)
	meta := p.streamMeta
	cur := &currentObject{}

	switch meta.preference {
	case wire.ForwardingTrack:
		groupID, _, err := r.ReadVarInt()
		if err != nil {
			return 0
		}
		objID, _, err := r.ReadVarInt()
		if err != nil {
			return 0
		}
		length, _, err := r.ReadVarInt()
		if err != nil {
			return 0
		}
		status := wire.ObjectStatusNormal
		if length == 0 {
			sv, _, err := r.ReadVarInt()
			if err != nil {
				return 0
			}
			status = wire.ObjectStatusFromWire(sv)
		}
		cur.groupID, cur.objectID, cur.lengthKnown, cur.remaining, cur.status = groupID, objID, true, length, status

	case wire.ForwardingGroup:
		objID, _, err := r.ReadVarInt()
		if err != nil {
			return 0
		}
		length, _, err := r.ReadVarInt()
		if err != nil {
			return 0
		}
		status := wire.ObjectStatusNormal
		if length == 0 {
			sv, _, err := r.ReadVarInt()
			if err != nil {
				return 0
			}
			status = wire.ObjectStatusFromWire(sv)
		}
		cur.groupID, cur.objectID, cur.lengthKnown, cur.remaining, cur.status = meta.groupID, objID, true, length, status

	default:
		p.emitError(wire.ParserErrorInternal, "follow-on object on non-multiplexing stream")
		return 0
	}

	if cur.status == wire.ObjectStatusInvalid {
		p.emitError(wire.ParserErrorProtocolViolation, "invalid object status")
		return 0
	}

	consumed := r.Pos()
	p.current = cur

	if cur.status != wire.ObjectStatusNormal {
		p.emit(Event{Kind: EventObjectMessage, Header: p.headerFor(cur), Payload: nil, EndOfObject: true})
		p.clearObject()
	}
	return consumed
}

// ProcessDatagram parses one complete ObjectDatagram, returning its
// header and the remaining bytes as payload. It is one-shot: datagrams
// carry no partial-delivery state (spec §4.5 "Entry points").
func ProcessDatagram(data []byte) (moqtobject.Header, []byte, error) {
	r := wire.NewReader(data)
	tagVal, _, err := r.ReadVarInt()
	if err != nil {
		return moqtobject.Header{}, nil, &wire.ParseError{Field: "message_type", Err: err}
	}
	if wire.MessageType(tagVal) != wire.MsgObjectDatagram {
		return moqtobject.Header{}, nil, fmt.Errorf("moqtparse: datagram preference required, got message type %#x", tagVal)
	}
	subID, _, err := r.ReadVarInt()
	if err != nil {
		return moqtobject.Header{}, nil, &wire.ParseError{Field: "subscribe_id", Err: err}
	}
	alias, _, err := r.ReadVarInt()
	if err != nil {
		return moqtobject.Header{}, nil, &wire.ParseError{Field: "track_alias", Err: err}
	}
	groupID, _, err := r.ReadVarInt()
	if err != nil {
		return moqtobject.Header{}, nil, &wire.ParseError{Field: "group_id", Err: err}
	}
	objID, _, err := r.ReadVarInt()
	if err != nil {
		return moqtobject.Header{}, nil, &wire.ParseError{Field: "object_id", Err: err}
	}
	sendOrder, _, err := r.ReadVarInt()
	if err != nil {
		return moqtobject.Header{}, nil, &wire.ParseError{Field: "object_send_order", Err: err}
	}
	statusVal, _, err := r.ReadVarInt()
	if err != nil {
		return moqtobject.Header{}, nil, &wire.ParseError{Field: "object_status", Err: err}
	}

	h := moqtobject.Header{
		SubscribeID:     subID,
		TrackAlias:      alias,
		GroupID:         groupID,
		ObjectID:        objID,
		ObjectSendOrder: sendOrder,
		Status:          wire.ObjectStatusFromWire(statusVal),
		Preference:      wire.ForwardingDatagram,
	}
	return h, data[r.Pos():], nil
}
