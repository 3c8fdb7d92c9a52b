// Package moqtobject models the MoQ object header shared by all four
// forwarding preferences and implements the framer (C5): the exact
// inverse of the stream parser in moqtparse, rejecting semantically
// inconsistent headers before any bytes reach the wire. It is grounded
// on moqt/src/message/message_framer.rs and the per-preference wire
// structs in moqt/src/message/object/{stream,track,group,datagram}.rs.
package moqtobject

import (
	"fmt"

	"github.com/nth-moq/moqtcore/wire"
)

// Header is the forwarding-preference-agnostic object header (spec §3).
// PayloadLength is nil when the length is unknown on the wire, which is
// only legal for Object/Datagram preference since Track/Group streams
// multiplex several objects and need an explicit length to find the
// next header.
type Header struct {
	SubscribeID     uint64
	TrackAlias      uint64
	GroupID         uint64
	ObjectID        uint64
	ObjectSendOrder uint64
	Status          wire.ObjectStatus
	Preference      wire.ObjectForwardingPreference
	PayloadLength   *uint64
}

// InvalidObjectTypeError reports a framer-side header-consistency
// violation (spec §4.4); these never reach the wire.
type InvalidObjectTypeError struct {
	Reason string
}

func (e *InvalidObjectTypeError) Error() string {
	return fmt.Sprintf("moqtobject: invalid object type: %s", e.Reason)
}

// SerializeHeader writes an object header, choosing the first-in-stream
// or middler field layout for the header's forwarding preference
// (spec §4.4's table). It validates before writing any bytes:
//
//  1. PayloadLength == nil is only legal for Object/Datagram preference.
//  2. A non-Normal status requires an empty (zero) explicit length.
//  3. A non-first-in-stream header must be Track or Group preference.
func SerializeHeader(h Header, isFirstInStream bool, w *wire.Writer) (int, error) {
	if h.PayloadLength == nil && h.Preference != wire.ForwardingObject && h.Preference != wire.ForwardingDatagram {
		return 0, &InvalidObjectTypeError{Reason: "Track or Group forwarding preference requires knowing the object length in advance"}
	}
	if h.Status != wire.ObjectStatusNormal {
		if h.PayloadLength != nil && *h.PayloadLength > 0 {
			return 0, &InvalidObjectTypeError{Reason: "Object status must be kNormal if payload is non-empty"}
		}
	}

	length := uint64(0)
	if h.PayloadLength != nil {
		length = *h.PayloadLength
	}

	before := w.Len()

	if !isFirstInStream {
		switch h.Preference {
		case wire.ForwardingTrack:
			if _, err := w.WriteVarInt(h.GroupID); err != nil {
				return 0, err
			}
			if _, err := w.WriteVarInt(h.ObjectID); err != nil {
				return 0, err
			}
			if _, err := w.WriteVarInt(length); err != nil {
				return 0, err
			}
			if length == 0 {
				if _, err := w.WriteVarInt(uint64(h.Status)); err != nil {
					return 0, err
				}
			}
			return w.Len() - before, nil
		case wire.ForwardingGroup:
			if _, err := w.WriteVarInt(h.ObjectID); err != nil {
				return 0, err
			}
			if _, err := w.WriteVarInt(length); err != nil {
				return 0, err
			}
			if length == 0 {
				if _, err := w.WriteVarInt(uint64(h.Status)); err != nil {
					return 0, err
				}
			}
			return w.Len() - before, nil
		default:
			return 0, &InvalidObjectTypeError{Reason: "Object or Datagram forwarding_preference must be first in stream"}
		}
	}

	msgType := h.Preference.MessageType()
	switch h.Preference {
	case wire.ForwardingTrack:
		if _, err := w.WriteVarInt(uint64(msgType)); err != nil {
			return 0, err
		}
		if _, err := w.WriteVarInt(h.SubscribeID); err != nil {
			return 0, err
		}
		if _, err := w.WriteVarInt(h.TrackAlias); err != nil {
			return 0, err
		}
		if _, err := w.WriteVarInt(h.ObjectSendOrder); err != nil {
			return 0, err
		}
		if _, err := w.WriteVarInt(h.GroupID); err != nil {
			return 0, err
		}
		if _, err := w.WriteVarInt(h.ObjectID); err != nil {
			return 0, err
		}
		if _, err := w.WriteVarInt(length); err != nil {
			return 0, err
		}
		if length == 0 {
			if _, err := w.WriteVarInt(uint64(h.Status)); err != nil {
				return 0, err
			}
		}
	case wire.ForwardingGroup:
		if _, err := w.WriteVarInt(uint64(msgType)); err != nil {
			return 0, err
		}
		if _, err := w.WriteVarInt(h.SubscribeID); err != nil {
			return 0, err
		}
		if _, err := w.WriteVarInt(h.TrackAlias); err != nil {
			return 0, err
		}
		if _, err := w.WriteVarInt(h.GroupID); err != nil {
			return 0, err
		}
		if _, err := w.WriteVarInt(h.ObjectSendOrder); err != nil {
			return 0, err
		}
		if _, err := w.WriteVarInt(h.ObjectID); err != nil {
			return 0, err
		}
		if _, err := w.WriteVarInt(length); err != nil {
			return 0, err
		}
		if length == 0 {
			if _, err := w.WriteVarInt(uint64(h.Status)); err != nil {
				return 0, err
			}
		}
	case wire.ForwardingObject, wire.ForwardingDatagram:
		if _, err := w.WriteVarInt(uint64(msgType)); err != nil {
			return 0, err
		}
		if _, err := w.WriteVarInt(h.SubscribeID); err != nil {
			return 0, err
		}
		if _, err := w.WriteVarInt(h.TrackAlias); err != nil {
			return 0, err
		}
		if _, err := w.WriteVarInt(h.GroupID); err != nil {
			return 0, err
		}
		if _, err := w.WriteVarInt(h.ObjectID); err != nil {
			return 0, err
		}
		if _, err := w.WriteVarInt(h.ObjectSendOrder); err != nil {
			return 0, err
		}
		if _, err := w.WriteVarInt(uint64(h.Status)); err != nil {
			return 0, err
		}
	}
	return w.Len() - before, nil
}

// SerializeDatagram writes a complete ObjectDatagram header and payload
// atomically (spec §4.4).
func SerializeDatagram(h Header, payload []byte, w *wire.Writer) (int, error) {
	if h.Status != wire.ObjectStatusNormal && len(payload) != 0 {
		return 0, &InvalidObjectTypeError{Reason: "Object status must be kNormal if payload is non-empty"}
	}
	before := w.Len()
	if _, err := w.WriteVarInt(uint64(wire.MsgObjectDatagram)); err != nil {
		return 0, err
	}
	if _, err := w.WriteVarInt(h.SubscribeID); err != nil {
		return 0, err
	}
	if _, err := w.WriteVarInt(h.TrackAlias); err != nil {
		return 0, err
	}
	if _, err := w.WriteVarInt(h.GroupID); err != nil {
		return 0, err
	}
	if _, err := w.WriteVarInt(h.ObjectID); err != nil {
		return 0, err
	}
	if _, err := w.WriteVarInt(h.ObjectSendOrder); err != nil {
		return 0, err
	}
	if _, err := w.WriteVarInt(uint64(h.Status)); err != nil {
		return 0, err
	}
	w.WriteBytesRaw(payload)
	return w.Len() - before, nil
}
