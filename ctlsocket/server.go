package ctlsocket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"slices"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/swayless/core"
	"pkt.systems/swayless/internal/logx"
	"pkt.systems/swayless/schema"
)

// Defaults applied when ServerConfig leaves a field zero.
const (
	DefaultReadTimeout     = 5 * time.Second
	DefaultWriteTimeout    = 5 * time.Second
	DefaultMaxRequestBytes = 4096
)

// ServerConfig configures the command server.
type ServerConfig struct {
	Path            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxRequestBytes int64
	// AllowedUIDs lists the peer uids accepted. Empty means the daemon's own uid.
	AllowedUIDs []int
}

// StateSubscriber hands out state event subscriptions for watch requests.
type StateSubscriber interface {
	Subscribe() (<-chan schema.StateEvent, func())
}

// ServerDeps captures dependencies for the command server.
type ServerDeps struct {
	Coordinator core.Coordinator
	Events      StateSubscriber
	Logger      pslog.Logger
}

// Server accepts one request per connection and applies it to the
// coordinator. Requests are handled in accept order.
type Server struct {
	cfg    ServerConfig
	coord  core.Coordinator
	events StateSubscriber
	log    pslog.Logger

	mu       sync.Mutex
	listener net.Listener
	watchers sync.WaitGroup
}

// NewServer constructs a command server. Call Listen then Serve.
func NewServer(cfg ServerConfig, deps ServerDeps) (*Server, error) {
	if cfg.Path == "" {
		return nil, errors.New("control socket path is required")
	}
	if deps.Coordinator == nil {
		return nil, errors.New("coordinator is required")
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.MaxRequestBytes <= 0 {
		cfg.MaxRequestBytes = DefaultMaxRequestBytes
	}
	if len(cfg.AllowedUIDs) == 0 {
		cfg.AllowedUIDs = []int{os.Getuid()}
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Server{
		cfg:    cfg,
		coord:  deps.Coordinator,
		events: deps.Events,
		log:    logger.With("socket", cfg.Path),
	}, nil
}

// Path returns the socket path.
func (s *Server) Path() string {
	return s.cfg.Path
}

// Listen removes any stale socket file and binds the control socket with
// owner-only permissions.
func (s *Server) Listen() error {
	if err := os.Remove(s.cfg.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale socket %s: %w", s.cfg.Path, err)
	}
	ln, err := net.Listen("unix", s.cfg.Path)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Path, err)
	}
	if err := os.Chmod(s.cfg.Path, 0o600); err != nil {
		_ = ln.Close()
		return fmt.Errorf("chmod %s: %w", s.cfg.Path, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.log.Info("control socket listening")
	return nil
}

// Serve runs the accept loop until ctx is cancelled. The socket file is
// left in place; the next Listen removes it.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("control socket is not listening")
	}
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer s.watchers.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.log.Info("control socket closed")
				return nil
			}
			s.log.Warn("accept failed", "err", err)
			continue
		}
		s.handleConnection(ctx, conn)
	}
}

// Close closes the listener.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	if err := s.checkPeer(conn); err != nil {
		s.log.Warn("control connection rejected", "err", err)
		s.writeResponse(conn, errorResponse(err))
		_ = conn.Close()
		return
	}
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	var req schema.Request
	if err := newDecoder(io.LimitReader(conn, s.cfg.MaxRequestBytes)).Decode(&req); err != nil {
		if !errors.Is(err, io.EOF) {
			s.log.Warn("decode request failed", "err", err)
			s.writeResponse(conn, errorResponse(fmt.Errorf("%w: %v", schema.ErrInvalidRequest, err)))
		}
		_ = conn.Close()
		return
	}
	normalized, err := schema.NormalizeRequest(req)
	if err != nil {
		s.log.Warn("request rejected", "verb", req.Verb, "err", err)
		s.writeResponse(conn, errorResponse(err))
		_ = conn.Close()
		return
	}
	req = normalized
	ctx = logx.ContextWithVerbLogger(ctx, s.log.With("verb", req.Verb), req.Verb)
	if req.Verb == schema.VerbWatch {
		s.startWatch(ctx, conn)
		return
	}
	resp := s.Dispatch(ctx, req)
	s.writeResponse(conn, resp)
	_ = conn.Close()
}

func (s *Server) checkPeer(conn net.Conn) error {
	if !peerCredSupported {
		return nil
	}
	uid, err := peerUID(conn)
	if err != nil {
		return fmt.Errorf("%w: %v", schema.ErrPeerRejected, err)
	}
	if !slices.Contains(s.cfg.AllowedUIDs, int(uid)) {
		return fmt.Errorf("%w: uid %d", schema.ErrPeerRejected, uid)
	}
	return nil
}

// Dispatch applies one normalized request to the coordinator. Every reply
// carries the resulting state snapshot.
func (s *Server) Dispatch(ctx context.Context, req schema.Request) schema.Response {
	log := logx.WithTag(logx.WithVerb(ctx, req.Verb), req.Tag)
	started := time.Now()
	var err error
	switch req.Verb {
	case schema.VerbFocus:
		err = s.coord.FocusTag(ctx, req.Tag)
	case schema.VerbMove:
		err = s.coord.MoveContainerToTag(ctx, req.Tag)
	case schema.VerbNextOutput:
		err = s.coord.MoveContainerToOutput(ctx, schema.DirectionNext)
	case schema.VerbPrevOutput:
		err = s.coord.MoveContainerToOutput(ctx, schema.DirectionPrev)
	case schema.VerbBring:
		err = s.coord.BringTagHere(ctx, req.Tag)
	case schema.VerbAltTab:
		err = s.coord.AltTab(ctx)
	case schema.VerbFocusAllOutputs:
		err = s.coord.FocusTagAllOutputs(ctx, req.Tag)
	case schema.VerbState:
	default:
		err = fmt.Errorf("%w %q", schema.ErrUnknownVerb, req.Verb)
	}
	if err != nil {
		log.Warn("command failed", "err", err, "elapsed", time.Since(started))
		resp := errorResponse(err)
		resp.Outputs = s.coord.Snapshot(ctx)
		return resp
	}
	log.Debug("command applied", "elapsed", time.Since(started))
	return schema.Response{OK: true, Outputs: s.coord.Snapshot(ctx)}
}

func errorResponse(err error) schema.Response {
	return schema.Response{OK: false, Error: err.Error()}
}

func (s *Server) writeResponse(conn net.Conn, resp schema.Response) {
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := newEncoder(conn).Encode(resp); err != nil {
		s.log.Debug("write response failed", "err", err)
	}
}
