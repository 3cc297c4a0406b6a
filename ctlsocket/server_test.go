package ctlsocket

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/swayless/internal/eventbus"
	"pkt.systems/swayless/internal/logx"
	"pkt.systems/swayless/schema"
)

type call struct {
	op  string
	tag schema.Tag
	dir schema.Direction
}

type fakeCoordinator struct {
	mu    sync.Mutex
	calls []call
	err   error
	sink  func(schema.StateEvent)
}

func (f *fakeCoordinator) record(c call) error {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	err := f.err
	sink := f.sink
	f.mu.Unlock()
	if err == nil && sink != nil {
		sink(schema.StateEvent{Reason: schema.ReasonCommand, Outputs: []schema.OutputSnapshot{{Name: "DP-1", FocusedTag: c.tag}}})
	}
	return err
}

func (f *fakeCoordinator) Init(context.Context) error { return f.record(call{op: "init"}) }
func (f *fakeCoordinator) FocusTag(_ context.Context, tag schema.Tag) error {
	return f.record(call{op: "focus", tag: tag})
}
func (f *fakeCoordinator) FocusTagAllOutputs(_ context.Context, tag schema.Tag) error {
	return f.record(call{op: "focus-all", tag: tag})
}
func (f *fakeCoordinator) MoveContainerToTag(_ context.Context, tag schema.Tag) error {
	return f.record(call{op: "move", tag: tag})
}
func (f *fakeCoordinator) MoveContainerToOutput(_ context.Context, dir schema.Direction) error {
	return f.record(call{op: "move-output", dir: dir})
}
func (f *fakeCoordinator) BringTagHere(_ context.Context, tag schema.Tag) error {
	return f.record(call{op: "bring", tag: tag})
}
func (f *fakeCoordinator) AltTab(context.Context) error { return f.record(call{op: "alt-tab"}) }
func (f *fakeCoordinator) Snapshot(context.Context) []schema.OutputSnapshot {
	return []schema.OutputSnapshot{{Name: "DP-1", FocusedTag: "1", Workspace: "1"}}
}
func (f *fakeCoordinator) ObserveFocus(context.Context, schema.FocusEvent) error { return nil }

func (f *fakeCoordinator) failWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeCoordinator) recorded() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

type harness struct {
	server *Server
	client *Client
	coord  *fakeCoordinator
	bus    *eventbus.Bus
	done   chan error
}

func startServer(t *testing.T, cfg ServerConfig) *harness {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = filepath.Join(t.TempDir(), "swayless.sock")
	}
	bus := eventbus.New(nil)
	coord := &fakeCoordinator{sink: bus.OnStateEvent}
	srv, err := NewServer(cfg, ServerDeps{Coordinator: coord, Events: bus})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := srv.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{server: srv, client: NewClient(cfg.Path, time.Second), coord: coord, bus: bus, done: make(chan error, 1)}
	go func() { h.done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-h.done:
			if err != nil {
				t.Errorf("serve: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Errorf("serve did not stop")
		}
	})
	return h
}

func TestDispatchVerbs(t *testing.T) {
	h := startServer(t, ServerConfig{})
	ctx := context.Background()
	requests := []schema.Request{
		{Verb: "focus", Tag: "2"},
		{Verb: "move", Tag: "3"},
		{Verb: "next-output"},
		{Verb: "prev-output"},
		{Verb: "bring", Tag: "4"},
		{Verb: "alt-tab"},
		{Verb: "FOCUS-ALL-OUTPUTS", Tag: " 5 "},
	}
	for _, req := range requests {
		resp, err := h.client.Send(ctx, req)
		if err != nil {
			t.Fatalf("%s: %v", req.Verb, err)
		}
		if !resp.OK || len(resp.Outputs) != 1 {
			t.Fatalf("%s: unexpected response %+v", req.Verb, resp)
		}
	}
	want := []call{
		{op: "focus", tag: "2"},
		{op: "move", tag: "3"},
		{op: "move-output", dir: schema.DirectionNext},
		{op: "move-output", dir: schema.DirectionPrev},
		{op: "bring", tag: "4"},
		{op: "alt-tab"},
		{op: "focus-all", tag: "5"},
	}
	got := h.coord.recorded()
	if len(got) != len(want) {
		t.Fatalf("calls = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("call %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestStateReturnsSnapshot(t *testing.T) {
	h := startServer(t, ServerConfig{})
	resp, err := h.client.Send(context.Background(), schema.Request{Verb: schema.VerbState})
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if len(resp.Outputs) != 1 || resp.Outputs[0].Name != "DP-1" {
		t.Fatalf("unexpected snapshot: %+v", resp.Outputs)
	}
	if calls := h.coord.recorded(); len(calls) != 0 {
		t.Fatalf("state should not mutate, got %+v", calls)
	}
}

func TestRejectedRequests(t *testing.T) {
	h := startServer(t, ServerConfig{})
	tests := []struct {
		req  schema.Request
		want string
	}{
		{req: schema.Request{Verb: "init"}, want: schema.ErrDaemonOnly.Error()},
		{req: schema.Request{Verb: "explode"}, want: schema.ErrUnknownVerb.Error()},
		{req: schema.Request{Verb: "focus"}, want: schema.ErrInvalidTag.Error()},
		{req: schema.Request{}, want: schema.ErrInvalidRequest.Error()},
	}
	for _, tc := range tests {
		resp, err := h.client.Send(context.Background(), tc.req)
		if !errors.Is(err, schema.ErrRequestFailed) {
			t.Fatalf("%q: expected ErrRequestFailed, got %v", tc.req.Verb, err)
		}
		if resp.OK || !strings.Contains(resp.Error, tc.want) {
			t.Fatalf("%q: unexpected response %+v", tc.req.Verb, resp)
		}
	}
	if calls := h.coord.recorded(); len(calls) != 0 {
		t.Fatalf("rejected requests must not reach the coordinator, got %+v", calls)
	}
}

func TestCoordinatorErrorIsReported(t *testing.T) {
	h := startServer(t, ServerConfig{})
	h.coord.failWith(schema.ErrNoFocusedOutput)
	resp, err := h.client.Send(context.Background(), schema.Request{Verb: schema.VerbAltTab})
	if !errors.Is(err, schema.ErrRequestFailed) {
		t.Fatalf("expected ErrRequestFailed, got %v", err)
	}
	if resp.Error != schema.ErrNoFocusedOutput.Error() {
		t.Fatalf("unexpected error text %q", resp.Error)
	}
}

func TestGarbageRequestKeepsServing(t *testing.T) {
	h := startServer(t, ServerConfig{})
	conn, err := net.Dial("unix", h.server.Path())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if _, err := conn.Write([]byte{0xff, 0xff, 0xff}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.(*net.UnixConn).CloseWrite()
	resp, err := readResponse(conn)
	_ = conn.Close()
	if err == nil || resp.OK {
		t.Fatalf("expected error response, got %+v", resp)
	}

	if _, err := h.client.Send(context.Background(), schema.Request{Verb: schema.VerbFocus, Tag: "1"}); err != nil {
		t.Fatalf("server should keep serving: %v", err)
	}
}

func TestOversizedRequestRejected(t *testing.T) {
	h := startServer(t, ServerConfig{MaxRequestBytes: 16})
	_, err := h.client.Send(context.Background(), schema.Request{Verb: schema.VerbFocus, Tag: schema.Tag(strings.Repeat("x", 64))})
	if err == nil {
		t.Fatalf("expected oversized request to fail")
	}
	if calls := h.coord.recorded(); len(calls) != 0 {
		t.Fatalf("oversized request reached coordinator: %+v", calls)
	}
}

func TestPostDoesNotWait(t *testing.T) {
	h := startServer(t, ServerConfig{})
	if err := h.client.Post(context.Background(), schema.Request{Verb: schema.VerbBring, Tag: "7"}); err != nil {
		t.Fatalf("post: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if calls := h.coord.recorded(); len(calls) == 1 && calls[0].tag == "7" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("posted request never applied")
}

func TestListenReplacesStaleSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swayless.sock")
	if err := os.WriteFile(path, []byte("stale"), 0o644); err != nil {
		t.Fatalf("write stale: %v", err)
	}
	h := startServer(t, ServerConfig{Path: path})
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode()&os.ModeSocket == 0 {
		t.Fatalf("expected socket, got %v", info.Mode())
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600, got %o", perm)
	}
	if _, err := h.client.Send(context.Background(), schema.Request{Verb: schema.VerbState}); err != nil {
		t.Fatalf("state: %v", err)
	}
}

func TestForeignPeerRejected(t *testing.T) {
	if !peerCredSupported {
		t.Skip("peer credentials unavailable on this platform")
	}
	h := startServer(t, ServerConfig{AllowedUIDs: []int{os.Getuid() + 1}})
	resp, err := h.client.Send(context.Background(), schema.Request{Verb: schema.VerbFocus, Tag: "2"})
	if !errors.Is(err, schema.ErrRequestFailed) || !strings.Contains(resp.Error, schema.ErrPeerRejected.Error()) {
		t.Fatalf("expected peer rejection, got %+v %v", resp, err)
	}
	if calls := h.coord.recorded(); len(calls) != 0 {
		t.Fatalf("rejected peer reached coordinator: %+v", calls)
	}
}

func TestWatchStreamsEvents(t *testing.T) {
	h := startServer(t, ServerConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan schema.StateEvent, 8)
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- h.client.Watch(ctx, func(event schema.StateEvent) error {
			events <- event
			return nil
		})
	}()

	first := <-events
	if first.Reason != schema.ReasonInit || len(first.Outputs) != 1 {
		t.Fatalf("expected initial snapshot, got %+v", first)
	}
	if _, err := h.client.Send(context.Background(), schema.Request{Verb: schema.VerbFocus, Tag: "9"}); err != nil {
		t.Fatalf("focus while watching: %v", err)
	}
	select {
	case event := <-events:
		if event.Reason != schema.ReasonCommand || event.Outputs[0].FocusedTag != "9" {
			t.Fatalf("unexpected event %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for streamed event")
	}
	cancel()
	select {
	case err := <-watchErr:
		if err != nil {
			t.Fatalf("watch: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("watch did not stop")
	}
}

func TestDispatchLogsVerbOnce(t *testing.T) {
	coord := &fakeCoordinator{}
	coord.failWith(schema.ErrNoFocusedOutput)
	srv, err := NewServer(ServerConfig{Path: filepath.Join(t.TempDir(), "swayless.sock")}, ServerDeps{Coordinator: coord})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	newLogger := func(buf *bytes.Buffer) pslog.Logger {
		return pslog.NewWithOptions(buf, pslog.Options{
			Mode:          pslog.ModeStructured,
			NoColor:       true,
			MinLevel:      pslog.InfoLevel,
			VerboseFields: true,
		})
	}
	req := schema.Request{Verb: schema.VerbFocus, Tag: "2"}

	var plain bytes.Buffer
	srv.Dispatch(pslog.ContextWithLogger(context.Background(), newLogger(&plain)), req)
	if got := strings.Count(plain.String(), `"verb"`); got != 1 {
		t.Fatalf("expected verb field on a bare context, got %d in %q", got, plain.String())
	}

	var tagged bytes.Buffer
	ctx := logx.ContextWithVerbLogger(context.Background(), newLogger(&tagged).With("verb", req.Verb), req.Verb)
	srv.Dispatch(ctx, req)
	if got := strings.Count(tagged.String(), `"verb"`); got != 1 {
		t.Fatalf("expected a single verb field, got %d in %q", got, tagged.String())
	}
}
