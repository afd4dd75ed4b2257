// Package frame models the cross-document messaging channel between a host
// page and the embedded try-on app: a symmetric duplex pipe with postMessage
// target-origin semantics and origin-checked subscriptions.
//
// The two ends do not share a trust boundary. Messages cross the pipe in
// encoded form and are re-decoded on arrival; anything that fails strict
// decoding is dropped silently, never surfaced to handlers.
package frame

import (
	"sync"
)

// WildcardOrigin matches any peer origin on send, mirroring postMessage's
// "*" target origin.
const WildcardOrigin = "*"

// Envelope is a decoded inbound message together with the sender's origin.
type Envelope struct {
	Origin  string
	Message Message
}

// Handler receives inbound envelopes. Handlers run synchronously in the
// sender's goroutine and must not block.
type Handler func(Envelope)

// Endpoint is one end of the duplex channel. Sends are fire-and-forget: a
// closed peer, an origin mismatch, or an undecodable payload all drop the
// message without feedback.
type Endpoint struct {
	origin string

	mu       sync.Mutex
	peer     *Endpoint
	handlers map[int]Handler
	nextID   int
	closed   bool
}

// Pipe connects two browsing contexts and returns their endpoints.
func Pipe(originA, originB string) (*Endpoint, *Endpoint) {
	a := &Endpoint{origin: originA, handlers: make(map[int]Handler)}
	b := &Endpoint{origin: originB, handlers: make(map[int]Handler)}
	a.peer = b
	b.peer = a
	return a, b
}

// Origin returns the origin this endpoint acts as.
func (e *Endpoint) Origin() string {
	return e.origin
}

// Send delivers msg to the peer when targetOrigin is the wildcard or matches
// the peer's origin. There is no delivery confirmation.
func (e *Endpoint) Send(msg Message, targetOrigin string) {
	raw, err := EncodeMessage(msg)
	if err != nil {
		return
	}

	e.mu.Lock()
	peer := e.peer
	closed := e.closed
	e.mu.Unlock()

	if closed || peer == nil {
		return
	}
	if targetOrigin != WildcardOrigin && targetOrigin != peer.origin {
		return
	}

	peer.deliver(e.origin, raw)
}

// OnMessage registers a handler for every inbound envelope; origin filtering
// is the handler's responsibility. The returned func unregisters it.
func (e *Endpoint) OnMessage(h Handler) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return func() {}
	}

	id := e.nextID
	e.nextID++
	e.handlers[id] = h

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.handlers, id)
	}
}

// Subscribe registers a handler that only sees envelopes from allowedOrigin.
// Mismatched origins are a trust violation and are dropped silently.
func (e *Endpoint) Subscribe(allowedOrigin string, h Handler) func() {
	return e.OnMessage(func(env Envelope) {
		if env.Origin != allowedOrigin {
			return
		}
		h(env)
	})
}

// Close detaches the endpoint: pending sends to it are dropped and all
// handlers are unregistered. Listener lifetime equals frame lifetime.
func (e *Endpoint) Close() {
	e.mu.Lock()
	e.closed = true
	e.handlers = make(map[int]Handler)
	e.peer = nil
	e.mu.Unlock()
}

func (e *Endpoint) deliver(senderOrigin string, raw []byte) {
	msg, err := DecodeMessage(raw)
	if err != nil {
		return
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	snapshot := make([]Handler, 0, len(e.handlers))
	for _, h := range e.handlers {
		snapshot = append(snapshot, h)
	}
	e.mu.Unlock()

	env := Envelope{Origin: senderOrigin, Message: msg}
	for _, h := range snapshot {
		h(env)
	}
}
