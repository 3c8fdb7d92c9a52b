// Package wire implements the MoQ Transport control and object-header
// message codecs: VarInt-backed primitives (booleans, length-prefixed
// byte strings and UTF-8 strings), the Parameters TLV block, and one
// encode/decode pair per control message (spec §4.3). It generalizes the
// message set and ParseError-wrapped error style of internal/moq's
// draft-15 subset to the full sixteen-message control vocabulary an
// older MoQT draft (and the Rust source this spec was distilled from)
// defines.
package wire

import "fmt"

// ControlMessage is any decoded control message. Implementations are the
// sixteen concrete message types below; the interface plays the role of
// moqt/src/message/mod.rs's Message enum, since Go has no sum types.
type ControlMessage interface {
	Type() MessageType
	Encode(w *Writer) (int, error)
}

// ClientSetup is the first message a MoQT client sends (spec §4.3).
type ClientSetup struct {
	SupportedVersions []Version
	Role              Role
	Path              string
	HasPath           bool
}

func (m *ClientSetup) Type() MessageType { return MsgClientSetup }

func DecodeClientSetup(r *Reader) (*ClientSetup, error) {
	n, _, err := r.ReadVarInt()
	if err != nil {
		return nil, &ParseError{Field: "num_supported_versions", Err: err}
	}
	versions := make([]Version, n)
	for i := range versions {
		v, _, err := r.ReadVarInt()
		if err != nil {
			return nil, &ParseError{Field: "supported_version", Err: err}
		}
		ver, err := ParseVersion(v)
		if err != nil {
			return nil, &ParseError{Field: "supported_version", Err: err}
		}
		versions[i] = ver
	}

	params, _, err := DecodeParameters(r)
	if err != nil {
		return nil, &ParseError{Field: "parameters", Err: err}
	}
	roleVal, ok := params.RemoveUint64(ParamRole)
	if !ok {
		return nil, &ParseError{Field: "role", Err: ErrMissingParameter}
	}
	role, err := ParseRole(roleVal)
	if err != nil {
		return nil, &ParseError{Field: "role", Err: err}
	}
	path, hasPath := params.RemoveString(ParamPath)

	return &ClientSetup{SupportedVersions: versions, Role: role, Path: path, HasPath: hasPath}, nil
}

func (m *ClientSetup) Encode(w *Writer) (int, error) {
	before := w.Len()
	if _, err := w.WriteVarInt(uint64(len(m.SupportedVersions))); err != nil {
		return 0, err
	}
	for _, v := range m.SupportedVersions {
		if _, err := w.WriteVarInt(uint64(v)); err != nil {
			return 0, err
		}
	}
	params := NewParameters()
	if err := params.InsertUint64(ParamRole, uint64(m.Role)); err != nil {
		return 0, err
	}
	if m.HasPath {
		if err := params.InsertString(ParamPath, m.Path); err != nil {
			return 0, err
		}
	}
	if _, err := params.Encode(w); err != nil {
		return 0, err
	}
	return w.Len() - before, nil
}

// ServerSetup is the server's reply to ClientSetup (spec §4.3).
type ServerSetup struct {
	SupportedVersion Version
	Role             Role
}

func (m *ServerSetup) Type() MessageType { return MsgServerSetup }

func DecodeServerSetup(r *Reader) (*ServerSetup, error) {
	v, _, err := r.ReadVarInt()
	if err != nil {
		return nil, &ParseError{Field: "supported_version", Err: err}
	}
	ver, err := ParseVersion(v)
	if err != nil {
		return nil, &ParseError{Field: "supported_version", Err: err}
	}
	params, _, err := DecodeParameters(r)
	if err != nil {
		return nil, &ParseError{Field: "parameters", Err: err}
	}
	roleVal, ok := params.RemoveUint64(ParamRole)
	if !ok {
		return nil, &ParseError{Field: "role", Err: ErrMissingParameter}
	}
	role, err := ParseRole(roleVal)
	if err != nil {
		return nil, &ParseError{Field: "role", Err: err}
	}
	return &ServerSetup{SupportedVersion: ver, Role: role}, nil
}

func (m *ServerSetup) Encode(w *Writer) (int, error) {
	before := w.Len()
	if _, err := w.WriteVarInt(uint64(m.SupportedVersion)); err != nil {
		return 0, err
	}
	params := NewParameters()
	if err := params.InsertUint64(ParamRole, uint64(m.Role)); err != nil {
		return 0, err
	}
	if _, err := params.Encode(w); err != nil {
		return 0, err
	}
	return w.Len() - before, nil
}

// Subscribe requests delivery of a track (spec §4.3).
type Subscribe struct {
	SubscribeID          uint64
	TrackAlias           uint64
	TrackNamespace       string
	TrackName            string
	Filter               FilterType
	AuthorizationInfo    string
	HasAuthorizationInfo bool
}

func (m *Subscribe) Type() MessageType { return MsgSubscribe }

func DecodeSubscribe(r *Reader) (*Subscribe, error) {
	id, _, err := r.ReadVarInt()
	if err != nil {
		return nil, &ParseError{Field: "subscribe_id", Err: err}
	}
	alias, _, err := r.ReadVarInt()
	if err != nil {
		return nil, &ParseError{Field: "track_alias", Err: err}
	}
	ns, _, err := r.ReadString()
	if err != nil {
		return nil, &ParseError{Field: "track_namespace", Err: err}
	}
	name, _, err := r.ReadString()
	if err != nil {
		return nil, &ParseError{Field: "track_name", Err: err}
	}
	filter, _, err := DecodeFilterType(r)
	if err != nil {
		return nil, &ParseError{Field: "filter_type", Err: err}
	}
	params, _, err := DecodeParameters(r)
	if err != nil {
		return nil, &ParseError{Field: "parameters", Err: err}
	}
	auth, hasAuth := params.RemoveString(ParamAuthorizationInfo)

	return &Subscribe{
		SubscribeID:          id,
		TrackAlias:           alias,
		TrackNamespace:       ns,
		TrackName:            name,
		Filter:               filter,
		AuthorizationInfo:    auth,
		HasAuthorizationInfo: hasAuth,
	}, nil
}

func (m *Subscribe) Encode(w *Writer) (int, error) {
	before := w.Len()
	if _, err := w.WriteVarInt(m.SubscribeID); err != nil {
		return 0, err
	}
	if _, err := w.WriteVarInt(m.TrackAlias); err != nil {
		return 0, err
	}
	if _, err := w.WriteString(m.TrackNamespace); err != nil {
		return 0, err
	}
	if _, err := w.WriteString(m.TrackName); err != nil {
		return 0, err
	}
	if _, err := m.Filter.Encode(w); err != nil {
		return 0, err
	}
	params := NewParameters()
	if m.HasAuthorizationInfo {
		if err := params.InsertString(ParamAuthorizationInfo, m.AuthorizationInfo); err != nil {
			return 0, err
		}
	}
	if _, err := params.Encode(w); err != nil {
		return 0, err
	}
	return w.Len() - before, nil
}

// SubscribeOk confirms a subscription (spec §4.3/§8 scenario 2).
type SubscribeOk struct {
	SubscribeID   uint64
	Expires       uint64
	ContentExists bool
	Largest       FullSequence // valid only if ContentExists
}

func (m *SubscribeOk) Type() MessageType { return MsgSubscribeOk }

func DecodeSubscribeOk(r *Reader) (*SubscribeOk, error) {
	id, _, err := r.ReadVarInt()
	if err != nil {
		return nil, &ParseError{Field: "subscribe_id", Err: err}
	}
	expires, _, err := r.ReadVarInt()
	if err != nil {
		return nil, &ParseError{Field: "expires", Err: err}
	}
	exists, _, err := r.ReadBool()
	if err != nil {
		if _, ok := err.(*InvalidBooleanValueError); ok {
			return nil, &ParseError{Field: "content_exists", Err: &ParsingError{
				Code:   ParserErrorProtocolViolation,
				Reason: fmt.Sprintf("SUBSCRIBE_OK ContentExists has invalid value %v", err),
			}}
		}
		return nil, &ParseError{Field: "content_exists", Err: err}
	}
	var largest FullSequence
	if exists {
		largest, _, err = DecodeFullSequence(r)
		if err != nil {
			return nil, &ParseError{Field: "largest_group_object", Err: err}
		}
	}
	return &SubscribeOk{SubscribeID: id, Expires: expires, ContentExists: exists, Largest: largest}, nil
}

func (m *SubscribeOk) Encode(w *Writer) (int, error) {
	before := w.Len()
	if _, err := w.WriteVarInt(m.SubscribeID); err != nil {
		return 0, err
	}
	if _, err := w.WriteVarInt(m.Expires); err != nil {
		return 0, err
	}
	if _, err := w.WriteBool(m.ContentExists); err != nil {
		return 0, err
	}
	if m.ContentExists {
		if _, err := m.Largest.Encode(w); err != nil {
			return 0, err
		}
	}
	return w.Len() - before, nil
}

// SubscribeError rejects a subscription (spec §4.3).
type SubscribeError struct {
	SubscribeID  uint64
	ErrorCode    uint64
	ReasonPhrase string
	TrackAlias   uint64
}

func (m *SubscribeError) Type() MessageType { return MsgSubscribeError }

func DecodeSubscribeError(r *Reader) (*SubscribeError, error) {
	id, _, err := r.ReadVarInt()
	if err != nil {
		return nil, &ParseError{Field: "subscribe_id", Err: err}
	}
	code, _, err := r.ReadVarInt()
	if err != nil {
		return nil, &ParseError{Field: "error_code", Err: err}
	}
	reason, _, err := r.ReadString()
	if err != nil {
		return nil, &ParseError{Field: "reason_phrase", Err: err}
	}
	alias, _, err := r.ReadVarInt()
	if err != nil {
		return nil, &ParseError{Field: "track_alias", Err: err}
	}
	return &SubscribeError{SubscribeID: id, ErrorCode: code, ReasonPhrase: reason, TrackAlias: alias}, nil
}

func (m *SubscribeError) Encode(w *Writer) (int, error) {
	before := w.Len()
	if _, err := w.WriteVarInt(m.SubscribeID); err != nil {
		return 0, err
	}
	if _, err := w.WriteVarInt(m.ErrorCode); err != nil {
		return 0, err
	}
	if _, err := w.WriteString(m.ReasonPhrase); err != nil {
		return 0, err
	}
	if _, err := w.WriteVarInt(m.TrackAlias); err != nil {
		return 0, err
	}
	return w.Len() - before, nil
}

// UnSubscribe cancels a subscription (spec §8 scenario 4).
type UnSubscribe struct {
	SubscribeID uint64
}

func (m *UnSubscribe) Type() MessageType { return MsgUnSubscribe }

func DecodeUnSubscribe(r *Reader) (*UnSubscribe, error) {
	id, _, err := r.ReadVarInt()
	if err != nil {
		return nil, &ParseError{Field: "subscribe_id", Err: err}
	}
	return &UnSubscribe{SubscribeID: id}, nil
}

func (m *UnSubscribe) Encode(w *Writer) (int, error) {
	return w.WriteVarInt(m.SubscribeID)
}

// SubscribeDone reports that a subscription has ended (spec §8 scenario 3).
type SubscribeDone struct {
	SubscribeID   uint64
	StatusCode    uint64
	ReasonPhrase  string
	ContentExists bool
	Final         FullSequence // valid only if ContentExists
}

func (m *SubscribeDone) Type() MessageType { return MsgSubscribeDone }

func DecodeSubscribeDone(r *Reader) (*SubscribeDone, error) {
	id, _, err := r.ReadVarInt()
	if err != nil {
		return nil, &ParseError{Field: "subscribe_id", Err: err}
	}
	status, _, err := r.ReadVarInt()
	if err != nil {
		return nil, &ParseError{Field: "status_code", Err: err}
	}
	reason, _, err := r.ReadString()
	if err != nil {
		return nil, &ParseError{Field: "reason_phrase", Err: err}
	}
	exists, _, err := r.ReadBool()
	if err != nil {
		if _, ok := err.(*InvalidBooleanValueError); ok {
			return nil, &ParseError{Field: "content_exists", Err: &ParsingError{
				Code:   ParserErrorProtocolViolation,
				Reason: fmt.Sprintf("SUBSCRIBE_DONE ContentExists has invalid value %v", err),
			}}
		}
		return nil, &ParseError{Field: "content_exists", Err: err}
	}
	var final FullSequence
	if exists {
		final, _, err = DecodeFullSequence(r)
		if err != nil {
			return nil, &ParseError{Field: "final_group_object", Err: err}
		}
	}
	return &SubscribeDone{
		SubscribeID: id, StatusCode: status, ReasonPhrase: reason,
		ContentExists: exists, Final: final,
	}, nil
}

func (m *SubscribeDone) Encode(w *Writer) (int, error) {
	before := w.Len()
	if _, err := w.WriteVarInt(m.SubscribeID); err != nil {
		return 0, err
	}
	if _, err := w.WriteVarInt(m.StatusCode); err != nil {
		return 0, err
	}
	if _, err := w.WriteString(m.ReasonPhrase); err != nil {
		return 0, err
	}
	if _, err := w.WriteBool(m.ContentExists); err != nil {
		return 0, err
	}
	if m.ContentExists {
		if _, err := m.Final.Encode(w); err != nil {
			return 0, err
		}
	}
	return w.Len() - before, nil
}

// SubscribeUpdate narrows an open subscription's range (spec §4.3,
// "the most intricate control message"; §8 scenario 5).
type SubscribeUpdate struct {
	SubscribeID          uint64
	Start                FullSequence
	End                  FullSequence
	HasEnd               bool
	AuthorizationInfo    string
	HasAuthorizationInfo bool
}

func (m *SubscribeUpdate) Type() MessageType { return MsgSubscribeUpdate }

// DecodeSubscribeUpdate implements the sentinel-encoded end range from
// spec §4.3: wire end (0,0) means open-ended; (0, k>0) is a protocol
// violation; (g,0) with g>0 means internal end (g-1, MAX); otherwise
// internal end is (g-1, o-1). An internal end preceding start is a
// protocol violation.
func DecodeSubscribeUpdate(r *Reader) (*SubscribeUpdate, error) {
	id, _, err := r.ReadVarInt()
	if err != nil {
		return nil, &ParseError{Field: "subscribe_id", Err: err}
	}
	start, _, err := DecodeFullSequence(r)
	if err != nil {
		return nil, &ParseError{Field: "start", Err: err}
	}
	wireEnd, _, err := DecodeFullSequence(r)
	if err != nil {
		return nil, &ParseError{Field: "end", Err: err}
	}

	var end FullSequence
	hasEnd := false
	if wireEnd.Group == 0 {
		if wireEnd.Object > 0 {
			return nil, &ParseError{Field: "end", Err: &ParsingError{
				Code:   ParserErrorProtocolViolation,
				Reason: "SUBSCRIBE_UPDATE has end_object but no end_group",
			}}
		}
	} else {
		hasEnd = true
		if wireEnd.Object == 0 {
			end = FullSequence{Group: wireEnd.Group - 1, Object: ^uint64(0)}
		} else {
			end = FullSequence{Group: wireEnd.Group - 1, Object: wireEnd.Object - 1}
		}
		if end.Group < start.Group {
			return nil, &ParseError{Field: "end", Err: &ParsingError{
				Code:   ParserErrorProtocolViolation,
				Reason: "End group is less than start group",
			}}
		}
		if end.Group == start.Group && end.Object < start.Object {
			return nil, &ParseError{Field: "end", Err: &ParsingError{
				Code:   ParserErrorProtocolViolation,
				Reason: "End object comes before start object",
			}}
		}
	}

	params, _, err := DecodeParameters(r)
	if err != nil {
		return nil, &ParseError{Field: "parameters", Err: err}
	}
	auth, hasAuth := params.RemoveString(ParamAuthorizationInfo)

	return &SubscribeUpdate{
		SubscribeID: id, Start: start, End: end, HasEnd: hasEnd,
		AuthorizationInfo: auth, HasAuthorizationInfo: hasAuth,
	}, nil
}

// Encode writes the inverse of the decode mapping. Attempting to encode
// end == (MAX, x != MAX) is a frame error (spec §4.3).
func (m *SubscribeUpdate) Encode(w *Writer) (int, error) {
	before := w.Len()
	if _, err := w.WriteVarInt(m.SubscribeID); err != nil {
		return 0, err
	}
	if _, err := m.Start.Encode(w); err != nil {
		return 0, err
	}

	var wireEnd FullSequence
	if m.HasEnd {
		if m.End.Group == ^uint64(0) {
			if m.End.Object != ^uint64(0) {
				return 0, fmt.Errorf("wire: invalid object range in SUBSCRIBE_UPDATE end %v", m.End)
			}
			wireEnd.Group = 0
		} else {
			wireEnd.Group = m.End.Group + 1
		}
		if m.End.Object == ^uint64(0) {
			wireEnd.Object = 0
		} else {
			wireEnd.Object = m.End.Object + 1
		}
	}
	if _, err := wireEnd.Encode(w); err != nil {
		return 0, err
	}

	params := NewParameters()
	if m.HasAuthorizationInfo {
		if err := params.InsertString(ParamAuthorizationInfo, m.AuthorizationInfo); err != nil {
			return 0, err
		}
	}
	if _, err := params.Encode(w); err != nil {
		return 0, err
	}
	return w.Len() - before, nil
}

// Announce advertises a namespace for publication (restored from
// moqt/src/message/announce.rs).
type Announce struct {
	TrackNamespace       string
	AuthorizationInfo    string
	HasAuthorizationInfo bool
}

func (m *Announce) Type() MessageType { return MsgAnnounce }

func DecodeAnnounce(r *Reader) (*Announce, error) {
	ns, _, err := r.ReadString()
	if err != nil {
		return nil, &ParseError{Field: "track_namespace", Err: err}
	}
	params, _, err := DecodeParameters(r)
	if err != nil {
		return nil, &ParseError{Field: "parameters", Err: err}
	}
	auth, hasAuth := params.RemoveString(ParamAuthorizationInfo)
	return &Announce{TrackNamespace: ns, AuthorizationInfo: auth, HasAuthorizationInfo: hasAuth}, nil
}

func (m *Announce) Encode(w *Writer) (int, error) {
	before := w.Len()
	if _, err := w.WriteString(m.TrackNamespace); err != nil {
		return 0, err
	}
	params := NewParameters()
	if m.HasAuthorizationInfo {
		if err := params.InsertString(ParamAuthorizationInfo, m.AuthorizationInfo); err != nil {
			return 0, err
		}
	}
	if _, err := params.Encode(w); err != nil {
		return 0, err
	}
	return w.Len() - before, nil
}

// AnnounceOk confirms an ANNOUNCE (moqt/src/message/announce_ok.rs).
type AnnounceOk struct {
	TrackNamespace string
}

func (m *AnnounceOk) Type() MessageType { return MsgAnnounceOk }

func DecodeAnnounceOk(r *Reader) (*AnnounceOk, error) {
	ns, _, err := r.ReadString()
	if err != nil {
		return nil, &ParseError{Field: "track_namespace", Err: err}
	}
	return &AnnounceOk{TrackNamespace: ns}, nil
}

func (m *AnnounceOk) Encode(w *Writer) (int, error) { return w.WriteString(m.TrackNamespace) }

// AnnounceError rejects an ANNOUNCE (spec §8 scenario 1).
type AnnounceError struct {
	TrackNamespace string
	ErrorCode      uint64
	ReasonPhrase   string
}

func (m *AnnounceError) Type() MessageType { return MsgAnnounceError }

func DecodeAnnounceError(r *Reader) (*AnnounceError, error) {
	ns, _, err := r.ReadString()
	if err != nil {
		return nil, &ParseError{Field: "track_namespace", Err: err}
	}
	code, _, err := r.ReadVarInt()
	if err != nil {
		return nil, &ParseError{Field: "error_code", Err: err}
	}
	reason, _, err := r.ReadString()
	if err != nil {
		return nil, &ParseError{Field: "reason_phrase", Err: err}
	}
	return &AnnounceError{TrackNamespace: ns, ErrorCode: code, ReasonPhrase: reason}, nil
}

func (m *AnnounceError) Encode(w *Writer) (int, error) {
	before := w.Len()
	if _, err := w.WriteString(m.TrackNamespace); err != nil {
		return 0, err
	}
	if _, err := w.WriteVarInt(m.ErrorCode); err != nil {
		return 0, err
	}
	if _, err := w.WriteString(m.ReasonPhrase); err != nil {
		return 0, err
	}
	return w.Len() - before, nil
}

// AnnounceCancel withdraws a previously announced namespace
// (moqt/src/message/announce_cancel.rs).
type AnnounceCancel struct {
	TrackNamespace string
}

func (m *AnnounceCancel) Type() MessageType { return MsgAnnounceCancel }

func DecodeAnnounceCancel(r *Reader) (*AnnounceCancel, error) {
	ns, _, err := r.ReadString()
	if err != nil {
		return nil, &ParseError{Field: "track_namespace", Err: err}
	}
	return &AnnounceCancel{TrackNamespace: ns}, nil
}

func (m *AnnounceCancel) Encode(w *Writer) (int, error) { return w.WriteString(m.TrackNamespace) }

// UnAnnounce withdraws a namespace (spec §8 scenario-adjacent: mirrors
// AnnounceCancel's shape, moqt/src/message/unannounce.rs).
type UnAnnounce struct {
	TrackNamespace string
}

func (m *UnAnnounce) Type() MessageType { return MsgUnAnnounce }

func DecodeUnAnnounce(r *Reader) (*UnAnnounce, error) {
	ns, _, err := r.ReadString()
	if err != nil {
		return nil, &ParseError{Field: "track_namespace", Err: err}
	}
	return &UnAnnounce{TrackNamespace: ns}, nil
}

func (m *UnAnnounce) Encode(w *Writer) (int, error) { return w.WriteString(m.TrackNamespace) }

// TrackStatusRequest asks for a track's current publication status
// (moqt/src/message/track_status_request.rs).
type TrackStatusRequest struct {
	TrackNamespace string
	TrackName      string
}

func (m *TrackStatusRequest) Type() MessageType { return MsgTrackStatusRequest }

func DecodeTrackStatusRequest(r *Reader) (*TrackStatusRequest, error) {
	ns, _, err := r.ReadString()
	if err != nil {
		return nil, &ParseError{Field: "track_namespace", Err: err}
	}
	name, _, err := r.ReadString()
	if err != nil {
		return nil, &ParseError{Field: "track_name", Err: err}
	}
	return &TrackStatusRequest{TrackNamespace: ns, TrackName: name}, nil
}

func (m *TrackStatusRequest) Encode(w *Writer) (int, error) {
	before := w.Len()
	if _, err := w.WriteString(m.TrackNamespace); err != nil {
		return 0, err
	}
	if _, err := w.WriteString(m.TrackName); err != nil {
		return 0, err
	}
	return w.Len() - before, nil
}

// TrackStatus answers a TrackStatusRequest (field layout from
// moqt/src/message/track_status.rs).
type TrackStatus struct {
	TrackNamespace  string
	TrackName       string
	StatusCode      uint64
	LastGroupObject FullSequence
}

func (m *TrackStatus) Type() MessageType { return MsgTrackStatus }

func DecodeTrackStatus(r *Reader) (*TrackStatus, error) {
	ns, _, err := r.ReadString()
	if err != nil {
		return nil, &ParseError{Field: "track_namespace", Err: err}
	}
	name, _, err := r.ReadString()
	if err != nil {
		return nil, &ParseError{Field: "track_name", Err: err}
	}
	status, _, err := r.ReadVarInt()
	if err != nil {
		return nil, &ParseError{Field: "status_code", Err: err}
	}
	last, _, err := DecodeFullSequence(r)
	if err != nil {
		return nil, &ParseError{Field: "last_group_object", Err: err}
	}
	return &TrackStatus{TrackNamespace: ns, TrackName: name, StatusCode: status, LastGroupObject: last}, nil
}

func (m *TrackStatus) Encode(w *Writer) (int, error) {
	before := w.Len()
	if _, err := w.WriteString(m.TrackNamespace); err != nil {
		return 0, err
	}
	if _, err := w.WriteString(m.TrackName); err != nil {
		return 0, err
	}
	if _, err := w.WriteVarInt(m.StatusCode); err != nil {
		return 0, err
	}
	if _, err := m.LastGroupObject.Encode(w); err != nil {
		return 0, err
	}
	return w.Len() - before, nil
}

// GoAway signals a graceful session shutdown (moqt/src/message/go_away.rs).
type GoAway struct {
	NewSessionURI string
}

func (m *GoAway) Type() MessageType { return MsgGoAway }

func DecodeGoAway(r *Reader) (*GoAway, error) {
	uri, _, err := r.ReadString()
	if err != nil {
		return nil, &ParseError{Field: "new_session_uri", Err: err}
	}
	return &GoAway{NewSessionURI: uri}, nil
}

func (m *GoAway) Encode(w *Writer) (int, error) { return w.WriteString(m.NewSessionURI) }

// DecodeControlMessage reads a MessageType tag and dispatches to the
// matching message's decoder, returning the decoded message and the
// total number of bytes consumed (tag included) — the (value, length)
// contract spec §9 names as authoritative.
func DecodeControlMessage(buf []byte) (ControlMessage, int, error) {
	r := NewReader(buf)
	tagVal, _, err := r.ReadVarInt()
	if err != nil {
		return nil, 0, &ParseError{Field: "message_type", Err: err}
	}
	tag, err := ParseMessageType(tagVal)
	if err != nil {
		return nil, 0, &ParseError{Field: "message_type", Err: err}
	}

	var msg ControlMessage
	switch tag {
	case MsgClientSetup:
		msg, err = DecodeClientSetup(r)
	case MsgServerSetup:
		msg, err = DecodeServerSetup(r)
	case MsgSubscribe:
		msg, err = DecodeSubscribe(r)
	case MsgSubscribeOk:
		msg, err = DecodeSubscribeOk(r)
	case MsgSubscribeError:
		msg, err = DecodeSubscribeError(r)
	case MsgUnSubscribe:
		msg, err = DecodeUnSubscribe(r)
	case MsgSubscribeDone:
		msg, err = DecodeSubscribeDone(r)
	case MsgSubscribeUpdate:
		msg, err = DecodeSubscribeUpdate(r)
	case MsgAnnounce:
		msg, err = DecodeAnnounce(r)
	case MsgAnnounceOk:
		msg, err = DecodeAnnounceOk(r)
	case MsgAnnounceError:
		msg, err = DecodeAnnounceError(r)
	case MsgAnnounceCancel:
		msg, err = DecodeAnnounceCancel(r)
	case MsgUnAnnounce:
		msg, err = DecodeUnAnnounce(r)
	case MsgTrackStatusRequest:
		msg, err = DecodeTrackStatusRequest(r)
	case MsgTrackStatus:
		msg, err = DecodeTrackStatus(r)
	case MsgGoAway:
		msg, err = DecodeGoAway(r)
	default:
		return nil, 0, &ParseError{Field: "message_type", Err: &InvalidMessageTypeError{Got: tagVal}}
	}
	if err != nil {
		return nil, 0, err
	}
	return msg, r.Pos(), nil
}

// EncodeControlMessage writes the message's type tag followed by its
// own encoding.
func EncodeControlMessage(m ControlMessage, w *Writer) (int, error) {
	before := w.Len()
	if _, err := w.WriteVarInt(uint64(m.Type())); err != nil {
		return 0, err
	}
	if _, err := m.Encode(w); err != nil {
		return 0, err
	}
	return w.Len() - before, nil
}
