package swayipc

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"sync"
	"testing"
)

// IPC message types the fake answers.
const (
	typeRunCommand    uint32 = 0
	typeGetWorkspaces uint32 = 1
	typeSubscribe     uint32 = 2
	typeGetOutputs    uint32 = 3
	typeGetTree       uint32 = 4
	eventWorkspace    uint32 = 0x80000000
)

var ipcMagic = []byte("i3-ipc")

type message struct {
	Type    uint32
	Payload []byte
}

func writeMessage(w io.Writer, msg message) error {
	buf := make([]byte, 0, len(ipcMagic)+8+len(msg.Payload))
	buf = append(buf, ipcMagic...)
	buf = binary.NativeEndian.AppendUint32(buf, uint32(len(msg.Payload)))
	buf = binary.NativeEndian.AppendUint32(buf, msg.Type)
	buf = append(buf, msg.Payload...)
	_, err := w.Write(buf)
	return err
}

func readMessage(r io.Reader) (message, error) {
	header := make([]byte, len(ipcMagic)+8)
	if _, err := io.ReadFull(r, header); err != nil {
		return message{}, err
	}
	if !bytes.Equal(header[:len(ipcMagic)], ipcMagic) {
		return message{}, fmt.Errorf("bad magic %q", header[:len(ipcMagic)])
	}
	size := binary.NativeEndian.Uint32(header[len(ipcMagic):])
	msg := message{Type: binary.NativeEndian.Uint32(header[len(ipcMagic)+4:]), Payload: make([]byte, size)}
	if _, err := io.ReadFull(r, msg.Payload); err != nil {
		return message{}, err
	}
	return msg, nil
}

// handlerFunc answers one request. A nil reply closes the connection.
type handlerFunc func(msg message) []byte

// fakeServer speaks the IPC framing on a unix socket under t.TempDir.
type fakeServer struct {
	t       *testing.T
	path    string
	ln      net.Listener
	handler handlerFunc

	mu       sync.Mutex
	requests []message
	subs     []net.Conn
	subReady chan struct{}
}

func newFakeServer(t *testing.T, handler handlerFunc) *fakeServer {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sway.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &fakeServer{t: t, path: path, ln: ln, handler: handler, subReady: make(chan struct{}, 4)}
	t.Cleanup(func() {
		_ = ln.Close()
		s.mu.Lock()
		for _, conn := range s.subs {
			_ = conn.Close()
		}
		s.mu.Unlock()
	})
	go s.serve()
	return s
}

func (s *fakeServer) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *fakeServer) handle(conn net.Conn) {
	for {
		msg, err := readMessage(conn)
		if err != nil {
			_ = conn.Close()
			return
		}
		s.mu.Lock()
		s.requests = append(s.requests, msg)
		s.mu.Unlock()
		if msg.Type == typeSubscribe {
			_ = writeMessage(conn, message{Type: typeSubscribe, Payload: []byte(`{"success":true}`)})
			s.mu.Lock()
			s.subs = append(s.subs, conn)
			s.mu.Unlock()
			s.subReady <- struct{}{}
			return
		}
		reply := []byte("[]")
		if s.handler != nil {
			reply = s.handler(msg)
		}
		if reply == nil {
			_ = conn.Close()
			return
		}
		if err := writeMessage(conn, message{Type: msg.Type, Payload: reply}); err != nil {
			_ = conn.Close()
			return
		}
	}
}

// emit writes an event to every subscribed connection.
func (s *fakeServer) emit(typ uint32, payload string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.subs {
		if err := writeMessage(conn, message{Type: typ, Payload: []byte(payload)}); err != nil {
			s.t.Errorf("emit: %v", err)
		}
	}
}

// dropSubscribers closes every subscription connection.
func (s *fakeServer) dropSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.subs {
		_ = conn.Close()
	}
	s.subs = nil
}

func (s *fakeServer) lastRequest() message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return message{}
	}
	return s.requests[len(s.requests)-1]
}

func dialFake(t *testing.T, s *fakeServer) *Client {
	t.Helper()
	client, err := Dial(context.Background(), s.path, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		if err := client.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			t.Errorf("close: %v", err)
		}
	})
	return client
}
