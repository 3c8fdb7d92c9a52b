// Command moqtdemo is a minimal publisher/subscriber demonstration of the
// moqtcore protocol stack over a raw QUIC connection: it performs the
// CLIENT_SETUP/SERVER_SETUP handshake, a SUBSCRIBE/SUBSCRIBE_OK exchange,
// and delivers a handful of synthetic objects on group-preference data
// streams, exercising the codec, framer, parser, subscription window, and
// priority packer end to end. It is adapted from cmd/prism/main.go's
// signal-handling and errgroup-coordinated startup shape, generalized from
// a media-ingest server onto a protocol-library demo.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quic-go/quic-go"
	"golang.org/x/sync/errgroup"

	"github.com/nth-moq/moqtcore/internal/moqtcert"
	"github.com/nth-moq/moqtcore/internal/moqtsession"
	"github.com/nth-moq/moqtcore/moqtobject"
	"github.com/nth-moq/moqtcore/moqtparse"
	"github.com/nth-moq/moqtcore/moqtpriority"
	"github.com/nth-moq/moqtcore/moqtwindow"
	"github.com/nth-moq/moqtcore/wire"
)

const alpn = "moqtdemo-00"

var trackName = wire.FullTrackName{Namespace: "demo", Name: "clock"}

const objectsPerGroup = 3

func main() {
	mode := flag.String("mode", "server", "server or client")
	addr := flag.String("addr", "localhost:4443", "address to listen on (server) or dial (client)")
	groups := flag.Int("groups", 3, "number of groups to publish (server only)")
	flag.Parse()

	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	var err error
	switch *mode {
	case "server":
		err = runServer(ctx, *addr, *groups)
	case "client":
		err = runClient(ctx, *addr)
	default:
		err = fmt.Errorf("unknown -mode %q (want server or client)", *mode)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("moqtdemo exited with error", "error", err)
		os.Exit(1)
	}
}

func runServer(ctx context.Context, addr string, groupCount int) error {
	cert, err := moqtcert.Generate(24 * time.Hour)
	if err != nil {
		return fmt.Errorf("generate cert: %w", err)
	}
	slog.Info("server certificate generated", "fingerprint", cert.FingerprintBase64())

	tlsConf := &tls.Config{
		Certificates: []tls.Certificate{cert.TLSCert},
		NextProtos:   []string{alpn},
	}
	ln, err := quic.ListenAddr(addr, tlsConf, nil)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	defer ln.Close()
	slog.Info("listening", "addr", addr)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})

	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return fmt.Errorf("accept: %w", err)
		}
		g.Go(func() error {
			return serveConnection(ctx, conn, groupCount)
		})
	}
	return g.Wait()
}

func serveConnection(ctx context.Context, conn quic.Connection, groupCount int) error {
	control, err := conn.AcceptStream(ctx)
	if err != nil {
		return fmt.Errorf("accept control stream: %w", err)
	}
	sess := moqtsession.New(conn.RemoteAddr().String(), conn, control)

	role, path, err := sess.HandleClientSetup(ctx, wire.RolePubSub, []wire.Version{wire.Draft04})
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	slog.Info("client connected", "role", role, "path", path)

	track := moqtwindow.NewLocalTrack(trackName, wire.ForwardingGroup, nil)
	sess.Publish(track)

	return sess.RunControlLoop(ctx, func(m wire.ControlMessage) error {
		sub, ok := m.(*wire.Subscribe)
		if !ok {
			slog.Warn("ignoring unexpected control message", "type", fmt.Sprintf("%T", m))
			return nil
		}
		track.SetTrackAlias(sub.TrackAlias)
		// The window ends at the last object publishGroups sends, so
		// OnObjectSent reports completion and SUBSCRIBE_DONE goes out.
		lastGroup, lastObject := uint64(groupCount-1), uint64(objectsPerGroup-1)
		track.AddWindow(sub.SubscribeID, wire.FullSequence{}, &lastGroup, &lastObject)

		if err := sess.SendControlMessage(&wire.SubscribeOk{SubscribeID: sub.SubscribeID, Expires: 0}); err != nil {
			return err
		}
		return publishGroups(ctx, sess, track, sub.SubscribeID, groupCount)
	})
}

// publishGroups writes groupCount synthetic groups of three objects each,
// one group-preference stream per object, packing each stream's send
// order from the track's default priorities (spec §4.8), and reports
// completion with SUBSCRIBE_DONE once the window says the subscription is
// satisfied (spec §4.6 on_object_sent).
func publishGroups(ctx context.Context, sess *moqtsession.Session, track *moqtwindow.LocalTrack, subscribeID uint64, groupCount int) error {
	win, ok := track.GetWindow(subscribeID)
	if !ok {
		return fmt.Errorf("moqtdemo: no window for subscribe_id %d", subscribeID)
	}

	alias, _ := track.TrackAlias()

	for g := 0; g < groupCount; g++ {
		groupID := uint64(g)
		var lastSeq wire.FullSequence
		for o := 0; o < objectsPerGroup; o++ {
			seq := wire.FullSequence{Group: groupID, Object: uint64(o)}
			lastSeq = seq
			payload := []byte(fmt.Sprintf("group %d object %d", groupID, o))
			length := uint64(len(payload))

			h := moqtobject.Header{
				SubscribeID:     subscribeID,
				TrackAlias:      alias,
				GroupID:         groupID,
				ObjectID:        seq.Object,
				ObjectSendOrder: groupID,
				Status:          wire.ObjectStatusNormal,
				Preference:      wire.ForwardingGroup,
				PayloadLength:   &length,
			}

			stream, sendOrder, err := sess.OpenDataStream(ctx, h, 128, moqtpriority.Ascending)
			if err != nil {
				return fmt.Errorf("open data stream for group %d: %w", groupID, err)
			}
			slog.Debug("opened data stream", "group", groupID, "send_order", sendOrder)
			if _, err := stream.Write(payload); err != nil {
				return fmt.Errorf("write object payload: %w", err)
			}
			if err := stream.Close(); err != nil {
				return fmt.Errorf("close data stream: %w", err)
			}
		}

		track.SentSequence(wire.FullSequence{Group: groupID, Object: uint64(objectsPerGroup - 1)}, wire.ObjectStatusEndOfGroup)
		if win.OnObjectSent(lastSeq, wire.ObjectStatusEndOfGroup) {
			return sess.SendControlMessage(&wire.SubscribeDone{
				SubscribeID:   subscribeID,
				StatusCode:    uint64(wire.SubscribeDoneSubscriptionEnded),
				ReasonPhrase:  "all groups delivered",
				ContentExists: true,
				Final:         lastSeq,
			})
		}
	}
	return nil
}

func runClient(ctx context.Context, addr string) error {
	tlsConf := &tls.Config{
		NextProtos:         []string{alpn},
		InsecureSkipVerify: true, // demo only: self-signed server cert
	}
	conn, err := quic.DialAddr(ctx, addr, tlsConf, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.CloseWithError(0, "bye")

	control, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return fmt.Errorf("open control stream: %w", err)
	}
	sess := moqtsession.New("client", conn, control)

	if err := sess.SendClientSetup(ctx, wire.RoleSubscriber, []wire.Version{wire.Draft04}, ""); err != nil {
		return fmt.Errorf("setup: %w", err)
	}

	const subscribeID = 1
	sub := &wire.Subscribe{
		SubscribeID:    subscribeID,
		TrackAlias:     1,
		TrackNamespace: trackName.Namespace,
		TrackName:      trackName.Name,
		Filter:         wire.FilterType{Tag: wire.FilterLatestGroup},
	}
	if err := sess.SendControlMessage(sub); err != nil {
		return fmt.Errorf("send SUBSCRIBE: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sess.RunControlLoop(ctx, func(m wire.ControlMessage) error {
			switch msg := m.(type) {
			case *wire.SubscribeOk:
				slog.Info("subscribed", "expires", msg.Expires)
			case *wire.SubscribeDone:
				slog.Info("subscription done", "reason", msg.ReasonPhrase)
				return errDone
			default:
				slog.Info("control message", "type", fmt.Sprintf("%T", msg))
			}
			return nil
		})
	})
	g.Go(func() error {
		return receiveObjects(ctx, conn)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errDone) {
		return err
	}
	return nil
}

var errDone = errors.New("moqtdemo: subscription complete")

// receiveObjects accepts unidirectional data streams and feeds each one
// through its own moqtparse.Parser until the stream (and thus the object
// or group it carries) is fully delivered.
func receiveObjects(ctx context.Context, conn quic.Connection) error {
	for {
		stream, err := conn.AcceptUniStream(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept data stream: %w", err)
		}
		go func() {
			if err := drainStream(stream); err != nil {
				slog.Warn("data stream ended", "error", err)
			}
		}()
	}
}

func drainStream(stream quic.ReceiveStream) error {
	p := moqtparse.New()
	buf := make([]byte, 4096)
	for {
		n, readErr := stream.Read(buf)
		fin := errors.Is(readErr, io.EOF)
		if n > 0 || fin {
			p.ProcessData(buf[:n], fin)
		}
		for {
			ev, ok := p.PollEvent()
			if !ok {
				break
			}
			switch ev.Kind {
			case moqtparse.EventObjectMessage:
				slog.Info("object received",
					"group", ev.Header.GroupID, "object", ev.Header.ObjectID,
					"bytes", len(ev.Payload), "end_of_object", ev.EndOfObject)
			case moqtparse.EventParsingError:
				return fmt.Errorf("parse error: %s: %s", ev.Code, ev.Reason)
			}
		}
		if readErr != nil {
			if fin {
				return nil
			}
			return readErr
		}
	}
}
