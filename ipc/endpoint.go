package ipc

import (
	"sync"
	"time"

	"corekernel/cap"
	"corekernel/defs"
)

// ReplyToken names a pending Call awaiting its matching Reply.
type ReplyToken uint64

// Message is value-copied on Send; a non-zero replyTo is threaded through
// by Call so the receiving side's Reply routes the answer back.
type Message struct {
	Tag     uint64
	Payload []byte
	Caps    []cap.Capability

	replyTo ReplyToken
}

// ReplyTo exposes the pending reply token a Receive-r must pass to Reply.
func (m Message) ReplyTo() ReplyToken { return m.replyTo }

// Endpoint is a bounded FIFO of Messages with send/receive/call/reply
// blocking semantics, grounded on §4.7. Disconnection (the last RECEIVE
// capability having been revoked) is modeled explicitly rather than via
// wait-list teardown, since this simulator parks blocked callers with a
// bounded poll loop instead of intrusive per-thread wait-list nodes.
type Endpoint struct {
	mu       sync.Mutex
	capacity int
	queue    []Message

	pendingReplies map[ReplyToken]chan Message
	nextToken      uint64

	disconnected bool
}

// NewEndpoint constructs an endpoint with the given bounded capacity.
func NewEndpoint(capacity int) *Endpoint {
	return &Endpoint{capacity: capacity, pendingReplies: make(map[ReplyToken]chan Message)}
}

func forever(timeout time.Duration) time.Duration {
	if timeout < 0 {
		return 365 * 24 * time.Hour
	}
	return timeout
}

// Send enqueues msg, blocking up to timeout if the queue is full (timeout
// 0 returns WouldBlock immediately; timeout < 0 blocks indefinitely).
func (e *Endpoint) Send(m Message, timeout time.Duration) defs.Err_t {
	deadline := time.Now().Add(forever(timeout))
	for {
		e.mu.Lock()
		if e.disconnected {
			e.mu.Unlock()
			return defs.ENotFound
		}
		if len(e.queue) < e.capacity {
			e.queue = append(e.queue, m)
			e.mu.Unlock()
			return defs.EOK
		}
		e.mu.Unlock()
		if timeout == 0 {
			return defs.EWouldBlock
		}
		if time.Now().After(deadline) {
			return defs.ETimeout
		}
		time.Sleep(pollInterval)
	}
}

// Receive dequeues the next message, blocking up to timeout if empty.
func (e *Endpoint) Receive(timeout time.Duration) (Message, defs.Err_t) {
	deadline := time.Now().Add(forever(timeout))
	for {
		e.mu.Lock()
		if len(e.queue) > 0 {
			m := e.queue[0]
			e.queue = e.queue[1:]
			e.mu.Unlock()
			return m, defs.EOK
		}
		if e.disconnected {
			e.mu.Unlock()
			return Message{}, defs.ENotFound
		}
		e.mu.Unlock()
		if timeout == 0 {
			return Message{}, defs.EWouldBlock
		}
		if time.Now().After(deadline) {
			return Message{}, defs.ETimeout
		}
		time.Sleep(pollInterval)
	}
}

// Call sends msg with a freshly minted reply token and blocks for the
// matching Reply.
func (e *Endpoint) Call(m Message, timeout time.Duration) (Message, defs.Err_t) {
	e.mu.Lock()
	e.nextToken++
	token := ReplyToken(e.nextToken)
	replyCh := make(chan Message, 1)
	e.pendingReplies[token] = replyCh
	e.mu.Unlock()

	m.replyTo = token
	if err := e.Send(m, timeout); err != defs.EOK {
		e.mu.Lock()
		delete(e.pendingReplies, token)
		e.mu.Unlock()
		return Message{}, err
	}

	select {
	case reply := <-replyCh:
		return reply, defs.EOK
	case <-time.After(forever(timeout)):
		e.mu.Lock()
		delete(e.pendingReplies, token)
		e.mu.Unlock()
		return Message{}, defs.ETimeout
	}
}

// Reply completes a pending Call; token is consumed and cannot be reused.
func (e *Endpoint) Reply(token ReplyToken, m Message) defs.Err_t {
	e.mu.Lock()
	ch, ok := e.pendingReplies[token]
	if ok {
		delete(e.pendingReplies, token)
	}
	e.mu.Unlock()
	if !ok {
		return defs.EInvalidArgument
	}
	ch <- m
	return defs.EOK
}

// Disconnect marks the endpoint unusable: pending and future Send/Receive
// calls fail with NotFound, matching "a send directed at an endpoint
// whose last RECEIVE cap has been revoked fails Disconnected" (mapped
// onto the fixed NotFound code, §4.7).
func (e *Endpoint) Disconnect() {
	e.mu.Lock()
	e.disconnected = true
	e.mu.Unlock()
}
