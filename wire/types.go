package wire

import "fmt"

// MessageType is the one-byte-or-VarInt tag identifying a control or
// object-header message on the wire (spec §3/§6).
type MessageType uint64

const (
	MsgObjectStream       MessageType = 0x0
	MsgObjectDatagram     MessageType = 0x1
	MsgSubscribeUpdate    MessageType = 0x2
	MsgSubscribe          MessageType = 0x3
	MsgSubscribeOk        MessageType = 0x4
	MsgSubscribeError     MessageType = 0x5
	MsgAnnounce           MessageType = 0x6
	MsgAnnounceOk         MessageType = 0x7
	MsgAnnounceError      MessageType = 0x8
	MsgUnAnnounce         MessageType = 0x9
	MsgUnSubscribe        MessageType = 0xa
	MsgSubscribeDone      MessageType = 0xb
	MsgAnnounceCancel     MessageType = 0xc
	MsgTrackStatusRequest MessageType = 0xd
	MsgTrackStatus        MessageType = 0xe
	MsgGoAway             MessageType = 0x10
	MsgClientSetup        MessageType = 0x40
	MsgServerSetup        MessageType = 0x41
	MsgStreamHeaderTrack  MessageType = 0x50
	MsgStreamHeaderGroup  MessageType = 0x51
)

func ParseMessageType(v uint64) (MessageType, error) {
	switch MessageType(v) {
	case MsgObjectStream, MsgObjectDatagram, MsgSubscribeUpdate, MsgSubscribe,
		MsgSubscribeOk, MsgSubscribeError, MsgAnnounce, MsgAnnounceOk, MsgAnnounceError,
		MsgUnAnnounce, MsgUnSubscribe, MsgSubscribeDone, MsgAnnounceCancel,
		MsgTrackStatusRequest, MsgTrackStatus, MsgGoAway, MsgClientSetup, MsgServerSetup,
		MsgStreamHeaderTrack, MsgStreamHeaderGroup:
		return MessageType(v), nil
	default:
		return 0, &InvalidMessageTypeError{Got: v}
	}
}

// Role is the negotiated SETUP role (spec §3).
type Role uint64

const (
	RolePublisher  Role = 1
	RoleSubscriber Role = 2
	RolePubSub     Role = 3
)

func ParseRole(v uint64) (Role, error) {
	switch Role(v) {
	case RolePublisher, RoleSubscriber, RolePubSub:
		return Role(v), nil
	default:
		return 0, &InvalidRoleError{Got: v}
	}
}

// Version is a MoQT draft version identifier (spec §3).
type Version uint64

const (
	Draft00 Version = 0xff000000
	Draft01 Version = 0xff000001
	Draft02 Version = 0xff000002
	Draft03 Version = 0xff000003
	Draft04 Version = 0xff000004
)

func ParseVersion(v uint64) (Version, error) {
	switch Version(v) {
	case Draft00, Draft01, Draft02, Draft03, Draft04:
		return Version(v), nil
	default:
		return 0, &UnsupportedVersionError{Got: v}
	}
}

// FullTrackName identifies a track by namespace and name (spec §3).
type FullTrackName struct {
	Namespace string
	Name      string
}

// FullSequence identifies an object within a track: (group_id, object_id),
// ordered lexicographically (spec §3).
type FullSequence struct {
	Group  uint64
	Object uint64
}

// Next returns (group, object+1), the sequence immediately following seq.
func (seq FullSequence) Next() FullSequence {
	return FullSequence{Group: seq.Group, Object: seq.Object + 1}
}

// Less reports whether seq sorts strictly before other.
func (seq FullSequence) Less(other FullSequence) bool {
	if seq.Group != other.Group {
		return seq.Group < other.Group
	}
	return seq.Object < other.Object
}

// LessEqual reports whether seq sorts at or before other.
func (seq FullSequence) LessEqual(other FullSequence) bool {
	return seq == other || seq.Less(other)
}

func (seq FullSequence) String() string {
	return fmt.Sprintf("(%d,%d)", seq.Group, seq.Object)
}

// Decode reads a FullSequence as two consecutive VarInts.
func DecodeFullSequence(r *Reader) (FullSequence, int, error) {
	start := r.Pos()
	group, _, err := r.ReadVarInt()
	if err != nil {
		return FullSequence{}, 0, err
	}
	object, _, err := r.ReadVarInt()
	if err != nil {
		return FullSequence{}, 0, err
	}
	return FullSequence{Group: group, Object: object}, r.Pos() - start, nil
}

// Encode writes seq as two consecutive VarInts.
func (seq FullSequence) Encode(w *Writer) (int, error) {
	before := w.Len()
	if _, err := w.WriteVarInt(seq.Group); err != nil {
		return 0, err
	}
	if _, err := w.WriteVarInt(seq.Object); err != nil {
		return 0, err
	}
	return w.Len() - before, nil
}

// FilterTypeTag is the wire tag of a FilterType variant (spec §3).
type FilterTypeTag uint64

const (
	FilterLatestGroup   FilterTypeTag = 1
	FilterLatestObject  FilterTypeTag = 2
	FilterAbsoluteStart FilterTypeTag = 3
	FilterAbsoluteRange FilterTypeTag = 4
)

// FilterType is the tagged union controlling which objects a SUBSCRIBE
// requests (spec §3): LatestGroup | LatestObject | AbsoluteStart(seq) |
// AbsoluteRange(start, end).
type FilterType struct {
	Tag   FilterTypeTag
	Start FullSequence // AbsoluteStart, AbsoluteRange
	End   FullSequence // AbsoluteRange only
}

func DecodeFilterType(r *Reader) (FilterType, int, error) {
	start := r.Pos()
	tag, _, err := r.ReadVarInt()
	if err != nil {
		return FilterType{}, 0, err
	}
	switch FilterTypeTag(tag) {
	case FilterLatestGroup, FilterLatestObject:
		return FilterType{Tag: FilterTypeTag(tag)}, r.Pos() - start, nil
	case FilterAbsoluteStart:
		seq, _, err := DecodeFullSequence(r)
		if err != nil {
			return FilterType{}, 0, err
		}
		return FilterType{Tag: FilterAbsoluteStart, Start: seq}, r.Pos() - start, nil
	case FilterAbsoluteRange:
		from, _, err := DecodeFullSequence(r)
		if err != nil {
			return FilterType{}, 0, err
		}
		to, _, err := DecodeFullSequence(r)
		if err != nil {
			return FilterType{}, 0, err
		}
		return FilterType{Tag: FilterAbsoluteRange, Start: from, End: to}, r.Pos() - start, nil
	default:
		return FilterType{}, 0, &InvalidFilterTypeError{Got: tag}
	}
}

func (f FilterType) Encode(w *Writer) (int, error) {
	before := w.Len()
	if _, err := w.WriteVarInt(uint64(f.Tag)); err != nil {
		return 0, err
	}
	switch f.Tag {
	case FilterLatestGroup, FilterLatestObject:
	case FilterAbsoluteStart:
		if _, err := f.Start.Encode(w); err != nil {
			return 0, err
		}
	case FilterAbsoluteRange:
		if _, err := f.Start.Encode(w); err != nil {
			return 0, err
		}
		if _, err := f.End.Encode(w); err != nil {
			return 0, err
		}
	default:
		return 0, &InvalidFilterTypeError{Got: uint64(f.Tag)}
	}
	return w.Len() - before, nil
}

// ObjectStatus is the status of an individual object (spec §3). Any
// unrecognized wire value decodes to Invalid, which the stream parser
// then rejects (spec §4.5 step 3).
type ObjectStatus uint64

const (
	ObjectStatusNormal             ObjectStatus = 0
	ObjectStatusObjectDoesNotExist ObjectStatus = 1
	ObjectStatusGroupDoesNotExist  ObjectStatus = 2
	ObjectStatusEndOfGroup         ObjectStatus = 3
	ObjectStatusEndOfTrack         ObjectStatus = 4
	ObjectStatusInvalid            ObjectStatus = 5
)

// ObjectStatusFromWire maps any wire value to a known status, defaulting
// to Invalid for anything outside {0..4}, matching
// moqt/src/message/object/mod.rs's From<u64> for ObjectStatus.
func ObjectStatusFromWire(v uint64) ObjectStatus {
	switch v {
	case 0, 1, 2, 3, 4:
		return ObjectStatus(v)
	default:
		return ObjectStatusInvalid
	}
}

// ObjectForwardingPreference selects how a track's objects map onto
// transport streams/datagrams (spec §3), each with a 1:1 MessageType.
type ObjectForwardingPreference int

const (
	ForwardingObject ObjectForwardingPreference = iota
	ForwardingDatagram
	ForwardingTrack
	ForwardingGroup
)

// MessageType returns the object-stream MessageType this preference uses
// when it is first-in-stream.
func (p ObjectForwardingPreference) MessageType() MessageType {
	switch p {
	case ForwardingObject:
		return MsgObjectStream
	case ForwardingDatagram:
		return MsgObjectDatagram
	case ForwardingTrack:
		return MsgStreamHeaderTrack
	case ForwardingGroup:
		return MsgStreamHeaderGroup
	default:
		return MsgObjectStream
	}
}

func (p ObjectForwardingPreference) String() string {
	switch p {
	case ForwardingObject:
		return "Object"
	case ForwardingDatagram:
		return "Datagram"
	case ForwardingTrack:
		return "Track"
	case ForwardingGroup:
		return "Group"
	default:
		return fmt.Sprintf("ObjectForwardingPreference(%d)", int(p))
	}
}
