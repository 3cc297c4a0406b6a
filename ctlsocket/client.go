package ctlsocket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"pkt.systems/swayless/schema"
)

// DefaultClientTimeout bounds one request/response exchange.
const DefaultClientTimeout = 5 * time.Second

// Client sends commands to a running daemon.
type Client struct {
	path    string
	timeout time.Duration
}

// NewClient constructs a client for the socket at path.
func NewClient(path string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultClientTimeout
	}
	return &Client{path: path, timeout: timeout}
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.path)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon at %s: %w", c.path, err)
	}
	return conn, nil
}

// Send writes req and waits for the daemon's response. A response with
// OK=false is returned together with an error wrapping schema.ErrRequestFailed.
func (c *Client) Send(ctx context.Context, req schema.Request) (schema.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	conn, err := c.dial(ctx)
	if err != nil {
		return schema.Response{}, err
	}
	defer conn.Close()
	deadline, _ := ctx.Deadline()
	_ = conn.SetDeadline(deadline)

	if err := newEncoder(conn).Encode(req); err != nil {
		return schema.Response{}, fmt.Errorf("send request: %w", err)
	}
	if uc, ok := conn.(*net.UnixConn); ok {
		_ = uc.CloseWrite()
	}
	return readResponse(conn)
}

// Post writes req and returns without waiting for the response.
func (c *Client) Post(ctx context.Context, req schema.Request) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	deadline, _ := ctx.Deadline()
	_ = conn.SetWriteDeadline(deadline)
	if err := newEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	return nil
}

// Watch subscribes to state events and calls fn for each one until ctx is
// cancelled, fn returns an error, or the daemon closes the stream. The
// acknowledgement's snapshot is delivered first as an init event.
func (c *Client) Watch(ctx context.Context, fn func(schema.StateEvent) error) error {
	dialCtx, cancel := context.WithTimeout(ctx, c.timeout)
	conn, err := c.dial(dialCtx)
	cancel()
	if err != nil {
		return err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	_ = conn.SetDeadline(time.Now().Add(c.timeout))
	if err := newEncoder(conn).Encode(schema.Request{Verb: schema.VerbWatch}); err != nil {
		return fmt.Errorf("send watch request: %w", err)
	}
	dec := newDecoder(conn)
	var ack schema.Response
	if err := dec.Decode(&ack); err != nil {
		return fmt.Errorf("read watch response: %w", err)
	}
	if !ack.OK {
		return fmt.Errorf("%w: %s", schema.ErrRequestFailed, ack.Error)
	}
	_ = conn.SetDeadline(time.Time{})
	if err := fn(schema.StateEvent{Reason: schema.ReasonInit, Outputs: ack.Outputs}); err != nil {
		return err
	}
	for {
		var event schema.StateEvent
		if err := dec.Decode(&event); err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read state event: %w", err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}

func readResponse(r io.Reader) (schema.Response, error) {
	var resp schema.Response
	if err := newDecoder(r).Decode(&resp); err != nil {
		return schema.Response{}, fmt.Errorf("read response: %w", err)
	}
	if !resp.OK {
		return resp, fmt.Errorf("%w: %s", schema.ErrRequestFailed, resp.Error)
	}
	return resp, nil
}
