package moqtwindow

import (
	"errors"
	"testing"

	"github.com/nth-moq/moqtcore/wire"
)

func seq(g, o uint64) wire.FullSequence { return wire.FullSequence{Group: g, Object: o} }

func TestInWindowBoundaries(t *testing.T) {
	end := seq(5, 5)
	w := NewSubscribeWindow(1, wire.ForwardingGroup, seq(6, 0), seq(4, 0), &end)

	cases := []struct {
		name string
		at   wire.FullSequence
		want bool
	}{
		{"before start", seq(3, 9), false},
		{"at start", seq(4, 0), true},
		{"inside", seq(4, 9), true},
		{"at end", seq(5, 5), true},
		{"past end", seq(5, 6), false},
		{"next group past end", seq(6, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := w.InWindow(tc.at); got != tc.want {
				t.Errorf("InWindow(%v) = %v, want %v", tc.at, got, tc.want)
			}
		})
	}
}

func TestInWindowOpenEnded(t *testing.T) {
	w := NewSubscribeWindow(1, wire.ForwardingGroup, seq(0, 0), seq(0, 0), nil)
	if !w.InWindow(seq(1000, 1000)) {
		t.Fatal("open-ended window should accept any sequence at or after start")
	}
}

func TestAddStreamOutOfWindowIgnored(t *testing.T) {
	end := seq(2, 0)
	w := NewSubscribeWindow(1, wire.ForwardingGroup, seq(3, 0), seq(1, 0), &end)
	if err := w.AddStream(seq(9, 0), StreamID(1)); err != nil {
		t.Fatalf("AddStream out-of-window should be a no-op, got %v", err)
	}
	if _, ok := w.GetStreamForSequence(seq(9, 0)); ok {
		t.Fatal("out-of-window sequence should not have been recorded")
	}
}

func TestAddStreamRejectsDatagramPreference(t *testing.T) {
	w := NewSubscribeWindow(1, wire.ForwardingDatagram, seq(0, 0), seq(0, 0), nil)
	if err := w.AddStream(seq(0, 0), StreamID(1)); !errors.Is(err, ErrDatagramStream) {
		t.Fatalf("got %v, want ErrDatagramStream", err)
	}
}

func TestAddStreamRejectsDuplicateIndex(t *testing.T) {
	w := NewSubscribeWindow(1, wire.ForwardingGroup, seq(0, 0), seq(0, 0), nil)
	if err := w.AddStream(seq(2, 0), StreamID(1)); err != nil {
		t.Fatalf("first AddStream: %v", err)
	}
	// Same group (index is group-only for ForwardingGroup) -> duplicate.
	if err := w.AddStream(seq(2, 7), StreamID(2)); !errors.Is(err, ErrStreamAlreadyAdded) {
		t.Fatalf("got %v, want ErrStreamAlreadyAdded", err)
	}
}

func TestAddStreamTrackPreferenceSharesSingleIndex(t *testing.T) {
	w := NewSubscribeWindow(1, wire.ForwardingTrack, seq(0, 0), seq(0, 0), nil)
	if err := w.AddStream(seq(0, 0), StreamID(1)); err != nil {
		t.Fatalf("AddStream: %v", err)
	}
	id, ok := w.GetStreamForSequence(seq(9, 9))
	if !ok || id != StreamID(1) {
		t.Fatalf("track preference should map every sequence to the one stream, got (%v, %v)", id, ok)
	}
}

func TestOnObjectSentCompletesClosedWindowWithoutBackfill(t *testing.T) {
	end := seq(0, 2)
	// originalNextObject == start: no backfill needed.
	w := NewSubscribeWindow(1, wire.ForwardingObject, seq(0, 0), seq(0, 0), &end)
	if done := w.OnObjectSent(seq(0, 1), wire.ObjectStatusNormal); done {
		t.Fatal("should not be complete before reaching end")
	}
	if done := w.OnObjectSent(seq(0, 2), wire.ObjectStatusNormal); !done {
		t.Fatal("should be complete once the end sequence is sent")
	}
}

func TestOnObjectSentWaitsForBackfillBeforeCompleting(t *testing.T) {
	end := seq(0, 5)
	// originalNextObject = (0,2): start (0,0) predates it, so (0,0) and
	// (0,1) are owed as backfill before the window can complete, even
	// though the forward edge already reached end.
	w := NewSubscribeWindow(1, wire.ForwardingObject, seq(0, 2), seq(0, 0), &end)

	if done := w.OnObjectSent(seq(0, 5), wire.ObjectStatusNormal); done {
		t.Fatal("should not complete: backfill for (0,0) and (0,1) still pending")
	}
	if done := w.OnObjectSent(seq(0, 0), wire.ObjectStatusNormal); done {
		t.Fatal("should not complete: (0,1) still owed")
	}
	if done := w.OnObjectSent(seq(0, 1), wire.ObjectStatusNormal); done {
		t.Fatal("backfill just caught up on this call, but this call's own sequence precedes end")
	}
	if done := w.OnObjectSent(seq(0, 5), wire.ObjectStatusNormal); !done {
		t.Fatal("should complete now that backfill is done and this call reaches end")
	}
}

func TestLargestSentTracksMaximum(t *testing.T) {
	w := NewSubscribeWindow(1, wire.ForwardingObject, seq(0, 0), seq(0, 0), nil)
	if _, ok := w.LargestSent(); ok {
		t.Fatal("expected no largest-sent before any delivery")
	}
	w.OnObjectSent(seq(1, 0), wire.ObjectStatusNormal)
	w.OnObjectSent(seq(0, 9), wire.ObjectStatusNormal) // smaller, should not regress
	got, ok := w.LargestSent()
	if !ok || got != seq(1, 0) {
		t.Fatalf("LargestSent() = %v, %v, want (1,0), true", got, ok)
	}
}

func TestUpdateStartEndRejectsWidening(t *testing.T) {
	end := seq(5, 0)
	w := NewSubscribeWindow(1, wire.ForwardingObject, seq(6, 0), seq(1, 0), &end)

	widerEnd := seq(9, 0)
	if w.UpdateStartEnd(seq(2, 0), &widerEnd) {
		t.Fatal("widening the end should be rejected")
	}
	if w.UpdateStartEnd(seq(0, 0), nil) {
		t.Fatal("moving start before the window, or opening the end, should be rejected")
	}

	narrowerEnd := seq(4, 0)
	if !w.UpdateStartEnd(seq(2, 0), &narrowerEnd) {
		t.Fatal("narrowing both ends should be accepted")
	}
	if w.InWindow(seq(1, 0)) {
		t.Fatal("window should no longer accept the old start")
	}
}

func TestSubscribeWindowsTracksMultipleSubscribers(t *testing.T) {
	ws := NewSubscribeWindows(wire.ForwardingObject)
	ws.AddWindow(1, seq(5, 0), seq(0, 0), nil)
	end := seq(2, 0)
	ws.AddWindow(2, seq(5, 0), seq(3, 0), &end)

	subscribed := ws.SequenceIsSubscribed(seq(1, 0))
	if len(subscribed) != 1 || subscribed[0].SubscribeID() != 1 {
		t.Fatalf("got %d windows, want exactly subscriber 1", len(subscribed))
	}

	ws.RemoveWindow(1)
	if _, ok := ws.GetWindow(1); ok {
		t.Fatal("window 1 should have been removed")
	}
	if ws.IsEmpty() {
		t.Fatal("window 2 should still be open")
	}
}
