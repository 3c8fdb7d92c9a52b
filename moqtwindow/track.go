package moqtwindow

import (
	"log/slog"
	"sync"

	"github.com/nth-moq/moqtcore/wire"
)

// LocalTrack is a track the local endpoint can publish, along with every
// subscription currently open against it (C8). It is grounded on
// moqt/src/session/local_track.rs.
type LocalTrack struct {
	mu sync.RWMutex

	fullTrackName wire.FullTrackName
	preference    wire.ObjectForwardingPreference

	// trackAlias is set by whichever SUBSCRIBE arrives first.
	trackAlias *uint64

	windows *SubscribeWindows

	// nextSequence is the first sequence number not yet published,
	// letting future SUBSCRIBEs resolve relative filters.
	nextSequence wire.FullSequence

	// maxObjectIDs records the highest object ID in a group once that
	// group has ended (EndOfGroup/GroupDoesNotExist/EndOfTrack seen).
	maxObjectIDs map[uint64]uint64

	announceCanceled bool
}

// NewLocalTrack creates a track with no subscribers yet. nextSequence,
// if non-nil, seeds the first not-yet-published sequence number;
// otherwise it starts at (0, 0).
func NewLocalTrack(name wire.FullTrackName, preference wire.ObjectForwardingPreference, nextSequence *wire.FullSequence) *LocalTrack {
	t := &LocalTrack{
		fullTrackName: name,
		preference:    preference,
		windows:       NewSubscribeWindows(preference),
		maxObjectIDs:  make(map[uint64]uint64),
	}
	if nextSequence != nil {
		t.nextSequence = *nextSequence
	}
	return t
}

// FullTrackName returns the track's namespace/name pair.
func (t *LocalTrack) FullTrackName() wire.FullTrackName {
	return t.fullTrackName
}

// TrackAlias returns the alias assigned by the first SUBSCRIBE, if any.
func (t *LocalTrack) TrackAlias() (uint64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.trackAlias == nil {
		return 0, false
	}
	return *t.trackAlias, true
}

// SetTrackAlias records the alias the first SUBSCRIBE chose; later calls
// leave it unchanged.
func (t *LocalTrack) SetTrackAlias(alias uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.trackAlias == nil {
		t.trackAlias = &alias
	}
}

// ShouldSend returns every subscribe window that wants the object at
// sequence.
func (t *LocalTrack) ShouldSend(sequence wire.FullSequence) []*SubscribeWindow {
	return t.windows.SequenceIsSubscribed(sequence)
}

// AddWindow opens a subscription window for subscribeID from start to an
// end resolved from (endGroup, endObject) per spec §4.6/§4.7:
//   - endGroup == nil: open-ended subscription.
//   - endGroup set, endObject == nil: ends at the last object of
//     endGroup, resolved from maxObjectIDs if that group has already
//     closed, else left open at the top of the group (math.MaxUint64)
//     until it does.
//   - both set: ends exactly at (endGroup, endObject).
//
// On an ANNOUNCE_CANCELed track the subscription is logged and no window
// is added.
func (t *LocalTrack) AddWindow(subscribeID uint64, start wire.FullSequence, endGroup, endObject *uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.announceCanceled {
		slog.Error("moqtwindow: subscribe on canceled track", "track", t.fullTrackName)
		return
	}

	if endGroup == nil {
		t.windows.AddWindow(subscribeID, t.nextSequence, start, nil)
		return
	}

	if endObject != nil {
		end := wire.FullSequence{Group: *endGroup, Object: *endObject}
		t.windows.AddWindow(subscribeID, t.nextSequence, start, &end)
		return
	}

	maxObjectID, known := t.maxObjectIDs[*endGroup]
	if *endGroup >= t.nextSequence.Group || !known {
		end := wire.FullSequence{Group: *endGroup, Object: ^uint64(0)}
		t.windows.AddWindow(subscribeID, t.nextSequence, start, &end)
		return
	}
	end := wire.FullSequence{Group: *endGroup, Object: maxObjectID}
	t.windows.AddWindow(subscribeID, t.nextSequence, start, &end)
}

// DeleteWindow closes a subscription window.
func (t *LocalTrack) DeleteWindow(subscribeID uint64) {
	t.windows.RemoveWindow(subscribeID)
}

// NextSequence returns the first not-yet-published sequence number.
func (t *LocalTrack) NextSequence() wire.FullSequence {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.nextSequence
}

// SentSequence records that sequence was just published with status,
// advancing nextSequence and maxObjectIDs as needed.
func (t *LocalTrack) SentSequence(sequence wire.FullSequence, status wire.ObjectStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// max_object_ids must only grow for a given group (spec §4.7 "Assert
	// monotonic growth"); a caller replaying or reordering sequence
	// numbers is a session-layer bug, logged rather than panicking since
	// this is reachable with attacker-influenced input.
	if maxObjectID, known := t.maxObjectIDs[sequence.Group]; known && maxObjectID >= sequence.Object {
		slog.Warn("moqtwindow: non-monotonic max_object_ids growth",
			"group", sequence.Group, "have", maxObjectID, "got", sequence.Object, "status", status)
	}

	switch status {
	case wire.ObjectStatusNormal, wire.ObjectStatusObjectDoesNotExist:
		if t.nextSequence.LessEqual(sequence) {
			t.nextSequence = sequence.Next()
		}
	case wire.ObjectStatusGroupDoesNotExist:
		t.maxObjectIDs[sequence.Group] = 0
	case wire.ObjectStatusEndOfGroup:
		t.maxObjectIDs[sequence.Group] = sequence.Object
		if t.nextSequence.LessEqual(sequence) {
			t.nextSequence = wire.FullSequence{Group: sequence.Group + 1, Object: 0}
		}
	case wire.ObjectStatusEndOfTrack:
		t.maxObjectIDs[sequence.Group] = sequence.Object
	default:
		slog.Error("moqtwindow: invalid object status in SentSequence", "status", status)
	}
}

// HasSubscriber reports whether any window is open on this track.
func (t *LocalTrack) HasSubscriber() bool {
	return !t.windows.IsEmpty()
}

// GetWindow returns the window for subscribeID, if open.
func (t *LocalTrack) GetWindow(subscribeID uint64) (*SubscribeWindow, bool) {
	return t.windows.GetWindow(subscribeID)
}

// ForwardingPreference returns the track's forwarding preference.
func (t *LocalTrack) ForwardingPreference() wire.ObjectForwardingPreference {
	return t.preference
}

// SetAnnounceCanceled marks the track's namespace as ANNOUNCE_CANCELed;
// further subscribes are a protocol error and the track can be
// destroyed once its remaining subscriptions end.
func (t *LocalTrack) SetAnnounceCanceled() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.announceCanceled = true
}

// Canceled reports whether the track's namespace has been ANNOUNCE_CANCELed.
func (t *LocalTrack) Canceled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.announceCanceled
}
