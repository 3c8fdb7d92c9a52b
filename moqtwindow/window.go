// Package moqtwindow tracks which objects a subscription still wants and
// which stream each in-flight object is flowing on (C7). It is grounded
// on moqt/src/session/subscribe_window.rs, generalized from the
// teacher's connection/session bookkeeping style in
// internal/distribution/moq_session.go (RWMutex-guarded maps keyed by a
// small identifier).
package moqtwindow

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/nth-moq/moqtcore/wire"
)

// ErrDatagramStream is returned by AddStream when the forwarding
// preference is Datagram, which never opens a stream.
var ErrDatagramStream = errors.New("moqtwindow: datagram preference does not use streams")

// ErrStreamAlreadyAdded is returned by AddStream when a stream is
// already recorded for the given sequence's index.
var ErrStreamAlreadyAdded = errors.New("moqtwindow: stream already added for sequence")

// StreamID identifies the transport stream carrying an object or group
// of objects. The session layer supplies the concrete value (e.g. a
// quic.StreamID); this package only ever compares and stores it.
type StreamID uint64

// SubscribeWindow is one subscriber's view into a track: the range of
// sequence numbers it wants, what has been delivered so far, and which
// open stream (if any) serves each group/object/track depending on
// forwarding preference.
type SubscribeWindow struct {
	mu sync.RWMutex

	subscribeID uint64
	start       wire.FullSequence
	end         *wire.FullSequence
	largestSent *wire.FullSequence

	// nextToBackfill is the next sequence number that must be
	// redelivered because it was published before the subscription
	// arrived. Nil once no redeliveries remain.
	nextToBackfill *wire.FullSequence

	// originalNextObject is the first not-yet-published sequence number
	// at subscription time.
	originalNextObject wire.FullSequence

	sendStreams map[wire.FullSequence]StreamID

	preference wire.ObjectForwardingPreference
}

// NewSubscribeWindow creates a window for subscribeID over preference,
// wanting objects from start up to end (nil end = open-ended), given
// that nextObject is the first sequence number the track has not yet
// published.
func NewSubscribeWindow(subscribeID uint64, preference wire.ObjectForwardingPreference, nextObject, start wire.FullSequence, end *wire.FullSequence) *SubscribeWindow {
	w := &SubscribeWindow{
		subscribeID:        subscribeID,
		start:              start,
		end:                end,
		originalNextObject: nextObject,
		sendStreams:        make(map[wire.FullSequence]StreamID),
		preference:         preference,
	}
	if start.Less(nextObject) {
		s := start
		w.nextToBackfill = &s
	}
	return w
}

// SubscribeID returns the subscription this window belongs to.
func (w *SubscribeWindow) SubscribeID() uint64 {
	return w.subscribeID
}

// InWindow reports whether seq falls within [start, end].
func (w *SubscribeWindow) InWindow(seq wire.FullSequence) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.inWindowLocked(seq)
}

func (w *SubscribeWindow) inWindowLocked(seq wire.FullSequence) bool {
	if seq.Less(w.start) {
		return false
	}
	if w.end == nil {
		return true
	}
	return seq.LessEqual(*w.end)
}

// GetStreamForSequence returns the stream already opened for seq, if
// any, per the preference's sequence-to-index mapping.
func (w *SubscribeWindow) GetStreamForSequence(seq wire.FullSequence) (StreamID, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	id, ok := w.sendStreams[w.sequenceToIndex(seq)]
	return id, ok
}

// AddStream records which stream an object, group, or track (depending
// on forwarding preference) is being sent on. A sequence outside the
// window is silently ignored, mirroring the Rust source's early return.
func (w *SubscribeWindow) AddStream(seq wire.FullSequence, streamID StreamID) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.inWindowLocked(seq) {
		return nil
	}
	if w.preference == wire.ForwardingDatagram {
		return ErrDatagramStream
	}
	index := w.sequenceToIndex(seq)
	if _, exists := w.sendStreams[index]; exists {
		return ErrStreamAlreadyAdded
	}
	w.sendStreams[index] = streamID
	return nil
}

// RemoveStream forgets the stream recorded for seq's index.
func (w *SubscribeWindow) RemoveStream(seq wire.FullSequence) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.sendStreams, w.sequenceToIndex(seq))
}

// HasEnd reports whether the window has a closed upper bound.
func (w *SubscribeWindow) HasEnd() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.end != nil
}

// ForwardingPreference returns the track's forwarding preference.
func (w *SubscribeWindow) ForwardingPreference() wire.ObjectForwardingPreference {
	return w.preference
}

// OnObjectSent records that sequence was delivered with the given
// status, updating backfill bookkeeping, and reports whether this
// delivery completed the subscription (reached a closed end with no
// backfill remaining).
func (w *SubscribeWindow) OnObjectSent(sequence wire.FullSequence, status wire.ObjectStatus) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.largestSent == nil || w.largestSent.Less(sequence) {
		s := sequence
		w.largestSent = &s
	}

	if sequence.Less(w.originalNextObject) {
		if w.nextToBackfill != nil && w.nextToBackfill.LessEqual(sequence) {
			switch status {
			case wire.ObjectStatusNormal, wire.ObjectStatusObjectDoesNotExist:
				next := sequence.Next()
				w.nextToBackfill = &next
			case wire.ObjectStatusEndOfGroup:
				next := wire.FullSequence{Group: sequence.Group + 1, Object: 0}
				w.nextToBackfill = &next
			default:
				w.nextToBackfill = nil
			}
		}
		if w.nextToBackfill != nil {
			if *w.nextToBackfill == w.originalNextObject ||
				(w.end != nil && *w.nextToBackfill == *w.end) {
				w.nextToBackfill = nil
			}
		}
	}

	return w.nextToBackfill == nil && w.end != nil && w.end.LessEqual(sequence)
}

// LargestSent returns the highest sequence number delivered so far.
func (w *SubscribeWindow) LargestSent() (wire.FullSequence, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.largestSent == nil {
		return wire.FullSequence{}, false
	}
	return *w.largestSent, true
}

// UpdateStartEnd narrows the window per a SUBSCRIBE_UPDATE, rejecting
// any attempt to widen it. Returns false (and leaves the window
// unchanged) if the update is invalid.
func (w *SubscribeWindow) UpdateStartEnd(start wire.FullSequence, end *wire.FullSequence) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.inWindowLocked(start) {
		return false
	}
	if w.end != nil {
		if end == nil || w.end.Less(*end) {
			return false
		}
	}
	w.start = start
	w.end = end
	return true
}

// sequenceToIndex maps a sequence number onto the key send_streams is
// indexed by, which depends on forwarding preference: a single fixed
// key for Track, the group for Group, the full sequence for Object.
// Datagram never opens streams.
func (w *SubscribeWindow) sequenceToIndex(seq wire.FullSequence) wire.FullSequence {
	switch w.preference {
	case wire.ForwardingTrack:
		return wire.FullSequence{}
	case wire.ForwardingGroup:
		return wire.FullSequence{Group: seq.Group}
	case wire.ForwardingObject:
		return seq
	default:
		slog.Error("moqtwindow: no stream index for datagram preference")
		return wire.FullSequence{}
	}
}

// SubscribeWindows holds every SubscribeWindow open on one local track,
// keyed by subscribe ID.
type SubscribeWindows struct {
	mu         sync.RWMutex
	windows    map[uint64]*SubscribeWindow
	preference wire.ObjectForwardingPreference
}

// NewSubscribeWindows creates an empty window set for preference.
func NewSubscribeWindows(preference wire.ObjectForwardingPreference) *SubscribeWindows {
	return &SubscribeWindows{
		windows:    make(map[uint64]*SubscribeWindow),
		preference: preference,
	}
}

// SequenceIsSubscribed returns every window that wants sequence. Order
// is unspecified: the Rust source claims "reverse order of add_window
// calls" but its own HashMap-backed storage does not actually guarantee
// that, so this port does not try to replicate it.
func (ws *SubscribeWindows) SequenceIsSubscribed(sequence wire.FullSequence) []*SubscribeWindow {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	var out []*SubscribeWindow
	for _, w := range ws.windows {
		if w.InWindow(sequence) {
			out = append(out, w)
		}
	}
	return out
}

// AddWindow opens a new subscription window. start/end must already be
// absolute sequence numbers; the caller (LocalTrack) resolves relative
// filters before calling this.
func (ws *SubscribeWindows) AddWindow(subscribeID uint64, nextObject, start wire.FullSequence, end *wire.FullSequence) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.windows[subscribeID] = NewSubscribeWindow(subscribeID, ws.preference, nextObject, start, end)
}

// RemoveWindow closes a subscription window.
func (ws *SubscribeWindows) RemoveWindow(subscribeID uint64) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	delete(ws.windows, subscribeID)
}

// IsEmpty reports whether there are no open windows.
func (ws *SubscribeWindows) IsEmpty() bool {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return len(ws.windows) == 0
}

// GetWindow returns the window for subscribeID, if one is open.
func (ws *SubscribeWindows) GetWindow(subscribeID uint64) (*SubscribeWindow, bool) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	w, ok := ws.windows[subscribeID]
	return w, ok
}
