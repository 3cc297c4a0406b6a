package ctlsocket

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/swayless/schema"
)

// startWatch acknowledges a watch request and streams state events on conn
// from a separate goroutine so the accept loop keeps going.
func (s *Server) startWatch(ctx context.Context, conn net.Conn) {
	if s.events == nil {
		s.writeResponse(conn, errorResponse(errors.New("watch is not available")))
		_ = conn.Close()
		return
	}
	_ = conn.SetReadDeadline(time.Time{})
	events, cancel := s.events.Subscribe()
	s.writeResponse(conn, schema.Response{OK: true, Outputs: s.coord.Snapshot(ctx)})
	s.watchers.Add(1)
	go func() {
		defer s.watchers.Done()
		defer cancel()
		defer conn.Close()
		s.streamEvents(ctx, conn, events)
	}()
}

func (s *Server) streamEvents(ctx context.Context, conn net.Conn, events <-chan schema.StateEvent) {
	log := pslog.Ctx(ctx)
	peerGone := make(chan struct{})
	go func() {
		defer close(peerGone)
		_, _ = io.Copy(io.Discard, conn)
	}()
	log.Debug("watch started")
	defer log.Debug("watch ended")
	enc := newEncoder(conn)
	for {
		select {
		case <-ctx.Done():
			return
		case <-peerGone:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := enc.Encode(event); err != nil {
				log.Debug("watch write failed", "err", err)
				return
			}
		}
	}
}
