// Package sessiontest provides an in-memory session.Conn for tests.
package sessiontest

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/samber/lo"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("connection closed")

// Frame is a decoded outbound frame with the payload kept raw.
type Frame struct {
	Type string          `json:"type"`
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// DataAs decodes the frame payload into a fresh T.
func DataAs[T any](f Frame) (T, error) {
	var v T
	err := json.Unmarshal(f.Data, &v)
	return v, err
}

// FakeConn records every frame sent to it.
type FakeConn struct {
	id string

	mu          sync.Mutex
	frames      []Frame
	open        bool
	identity    string
	closeCode   int
	closeReason string
}

// NewFakeConn creates an open connection with the given id.
func NewFakeConn(id string) *FakeConn {
	return &FakeConn{id: id, open: true}
}

func (c *FakeConn) ID() string { return c.id }

func (c *FakeConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return ErrClosed
	}

	var f Frame
	if err := json.Unmarshal(frame, &f); err != nil {
		return err
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *FakeConn) Close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return
	}
	c.open = false
	c.closeCode = code
	c.closeReason = reason
}

func (c *FakeConn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *FakeConn) Identity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

func (c *FakeConn) SetIdentity(username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = username
}

// CloseCode returns the code passed to Close, or 0 while open.
func (c *FakeConn) CloseCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode
}

// Frames returns a copy of all recorded frames.
func (c *FakeConn) Frames() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Frame(nil), c.frames...)
}

// Types returns the type of every recorded frame in order.
func (c *FakeConn) Types() []string {
	return lo.Map(c.Frames(), func(f Frame, _ int) string { return f.Type })
}

// OfType returns the recorded frames with the given type.
func (c *FakeConn) OfType(typ string) []Frame {
	return lo.Filter(c.Frames(), func(f Frame, _ int) bool { return f.Type == typ })
}

// Last returns the most recent frame.
func (c *FakeConn) Last() (Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.frames) == 0 {
		return Frame{}, false
	}
	return c.frames[len(c.frames)-1], true
}

// Reset forgets recorded frames.
func (c *FakeConn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}
