// Package moqtsession wires the wire, moqtobject, moqtparse, moqtwindow,
// and moqtpriority packages into a live QUIC connection: it performs the
// CLIENT_SETUP/SERVER_SETUP handshake, dispatches control messages, and
// opens per-preference data streams for publishing. It plays the role
// internal/distribution/moq_session.go and server.go play in the
// teacher, adapted from a WebTransport-over-HTTP/3 viewer session onto a
// raw quic-go connection, since this module is a protocol library
// rather than a full media server.
package moqtsession

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/quic-go/quic-go"

	"github.com/nth-moq/moqtcore/moqtobject"
	"github.com/nth-moq/moqtcore/moqtparse"
	"github.com/nth-moq/moqtcore/moqtpriority"
	"github.com/nth-moq/moqtcore/moqtwindow"
	"github.com/nth-moq/moqtcore/wire"
)

// readBufSize is how many bytes Session reads from a QUIC stream per
// Read call before handing them to the parser.
const readBufSize = 4096

// Session manages one MoQT-over-QUIC peer connection: the control
// stream handshake and control-message loop, plus bookkeeping for the
// tracks this endpoint publishes.
type Session struct {
	id   string
	log  *slog.Logger
	conn quic.Connection

	control     quic.Stream
	controlBuf  *bufio.Reader
	controlOnce sync.Mutex

	role wire.Role

	mu              sync.RWMutex
	localTracks     map[wire.FullTrackName]*moqtwindow.LocalTrack
	subscriberPrios map[uint64]moqtpriority.Priority // subscribe_id -> subscriber priority
}

// New wraps an already-established QUIC connection. The control stream
// must be opened (client) or accepted (server) and handed to
// HandleClientSetup/SendClientSetup before RunControlLoop is called.
func New(id string, conn quic.Connection, control quic.Stream) *Session {
	return &Session{
		id:              id,
		log:             slog.With("session", id),
		conn:            conn,
		control:         control,
		controlBuf:      bufio.NewReaderSize(control, readBufSize),
		localTracks:     make(map[wire.FullTrackName]*moqtwindow.LocalTrack),
		subscriberPrios: make(map[uint64]moqtpriority.Priority),
	}
}

// SendClientSetup writes CLIENT_SETUP and reads back SERVER_SETUP,
// recording the negotiated role (spec §6 "Session lifecycle").
func (s *Session) SendClientSetup(ctx context.Context, role wire.Role, versions []wire.Version, path string) error {
	cs := &wire.ClientSetup{
		SupportedVersions: versions,
		Role:              role,
		Path:              path,
		HasPath:           path != "",
	}

	if err := s.writeControlMessage(cs); err != nil {
		return fmt.Errorf("moqtsession: write CLIENT_SETUP: %w", err)
	}

	msg, err := s.readOneControlMessage(ctx)
	if err != nil {
		return fmt.Errorf("moqtsession: read SERVER_SETUP: %w", err)
	}
	ss, ok := msg.(*wire.ServerSetup)
	if !ok {
		return fmt.Errorf("moqtsession: expected SERVER_SETUP, got %T", msg)
	}
	s.role = role
	s.log.Info("setup complete", "selected_version", ss.SupportedVersion)
	return nil
}

// HandleClientSetup reads CLIENT_SETUP off the control stream and
// replies with SERVER_SETUP under serverRole, returning the peer's
// requested role and path (if any).
func (s *Session) HandleClientSetup(ctx context.Context, serverRole wire.Role, serverVersions []wire.Version) (role wire.Role, path string, err error) {
	msg, err := s.readOneControlMessage(ctx)
	if err != nil {
		return 0, "", fmt.Errorf("moqtsession: read CLIENT_SETUP: %w", err)
	}
	cs, ok := msg.(*wire.ClientSetup)
	if !ok {
		return 0, "", fmt.Errorf("moqtsession: expected CLIENT_SETUP, got %T", msg)
	}

	selected := wire.Draft04
	if len(serverVersions) > 0 {
		selected = serverVersions[0]
	}
	ss := &wire.ServerSetup{SupportedVersion: selected, Role: serverRole}
	if err := s.writeControlMessage(ss); err != nil {
		return 0, "", fmt.Errorf("moqtsession: write SERVER_SETUP: %w", err)
	}
	s.role = cs.Role
	return cs.Role, cs.Path, nil
}

// Publish registers a track this session can serve subscriptions
// against.
func (s *Session) Publish(track *moqtwindow.LocalTrack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.localTracks[track.FullTrackName()] = track
}

// Track looks up a published track by name.
func (s *Session) Track(name wire.FullTrackName) (*moqtwindow.LocalTrack, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.localTracks[name]
	return t, ok
}

// RunControlLoop reads control messages until the stream closes or ctx
// is cancelled, dispatching each to handle.
func (s *Session) RunControlLoop(ctx context.Context, handle func(wire.ControlMessage) error) error {
	parser := moqtparse.New()
	buf := make([]byte, readBufSize)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := s.control.Read(buf)
		fin := err == io.EOF
		if n > 0 {
			parser.ProcessData(buf[:n], fin)
		} else if fin {
			parser.ProcessData(nil, true)
		}

		for {
			ev, ok := parser.PollEvent()
			if !ok {
				break
			}
			switch ev.Kind {
			case moqtparse.EventControlMessage:
				if herr := handle(ev.Control); herr != nil {
					return herr
				}
			case moqtparse.EventParsingError:
				return fmt.Errorf("moqtsession: control stream protocol violation: %s", ev.Reason)
			}
		}

		if err != nil {
			if fin {
				return nil
			}
			return err
		}
	}
}

// SendControlMessage writes an arbitrary control message to the control
// stream, serialized through the wire package's framer. Callers use this
// for everything past the initial setup handshake (SUBSCRIBE, ANNOUNCE,
// and their replies).
func (s *Session) SendControlMessage(m wire.ControlMessage) error {
	return s.writeControlMessage(m)
}

func (s *Session) writeControlMessage(m wire.ControlMessage) error {
	s.controlOnce.Lock()
	defer s.controlOnce.Unlock()
	w := wire.NewWriter(64)
	if _, err := wire.EncodeControlMessage(m, w); err != nil {
		return err
	}
	_, err := s.control.Write(w.Bytes())
	return err
}

func (s *Session) readOneControlMessage(ctx context.Context) (wire.ControlMessage, error) {
	var result wire.ControlMessage
	err := s.RunControlLoop(ctx, func(m wire.ControlMessage) error {
		result = m
		return errStopLoop
	})
	if err == errStopLoop {
		return result, nil
	}
	return nil, err
}

var errStopLoop = fmt.Errorf("moqtsession: one-shot control read complete")

// OpenDataStream opens a new unidirectional QUIC stream for the given
// object header, computes its send order from the subscriber's priority
// (moqtpriority, spec §4.8), writes the first-in-stream header, and
// returns the stream for subsequent payload writes (for Track/Group
// preference) or immediate closure (Object preference, one object per
// stream). The computed SendOrder is returned alongside the stream so
// the caller can hand it to whatever scheduling hook the underlying
// transport exposes; this package does not call into one itself, since
// transport priority scheduling is out of this module's scope (spec §1)
// and the teacher carries priority purely as protocol-level bytes
// (distribution/moq_writer.go's publisherPriority field) rather than
// through a QUIC stream API.
func (s *Session) OpenDataStream(ctx context.Context, h moqtobject.Header, publisherPriority moqtpriority.Priority, order moqtpriority.DeliveryOrder) (quic.SendStream, moqtpriority.SendOrder, error) {
	stream, err := s.conn.OpenUniStreamSync(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("moqtsession: open data stream: %w", err)
	}

	subscriberPriority := s.subscriberPriority(h.SubscribeID)
	sendOrder := moqtpriority.ForStream(subscriberPriority, publisherPriority, h.GroupID, order)

	w := wire.NewWriter(64)
	if _, err := moqtobject.SerializeHeader(h, true, w); err != nil {
		return nil, 0, err
	}
	if _, err := stream.Write(w.Bytes()); err != nil {
		return nil, 0, err
	}
	return stream, sendOrder, nil
}

func (s *Session) subscriberPriority(subscribeID uint64) moqtpriority.Priority {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subscriberPrios[subscribeID]
}

// SetSubscriberPriority records the priority a SUBSCRIBE assigned, used
// by later OpenDataStream calls for that subscription.
func (s *Session) SetSubscriberPriority(subscribeID uint64, priority moqtpriority.Priority) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriberPrios[subscribeID] = priority
}
