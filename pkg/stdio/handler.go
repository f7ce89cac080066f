package stdio

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// pendingRead is one outstanding readMessage call waiting for the next
// message or parse error to arrive.
type pendingRead struct {
	resultCh chan readResult
	resolved bool
}

type readResult struct {
	msg json.RawMessage
	err error
}

// ErrCancelled is returned by ReadMessage when CancelAllReads empties the
// FIFO while a read is still pending.
var ErrCancelled = fmt.Errorf("read operation cancelled")

// ErrReadTimeout is returned by ReadMessage when its deadline elapses
// before a message arrives.
var ErrReadTimeout = fmt.Errorf("read timeout")

// ErrProcessNotAvailable is returned by SendMessage when the underlying
// process is not running.
var ErrProcessNotAvailable = fmt.Errorf("process is not available")

// MessageHandler maintains a FIFO of pending reads against a StreamBuffer
// and a ProcessManager's stdin, resolving each pending read strictly in the
// order server messages arrive (not by JSON-RPC id — callers that need
// id-based pairing, like Session, do that matching themselves on top of
// this FIFO because in normal single-request-at-a-time operation the FIFO
// never holds more than one entry).
type MessageHandler struct {
	proc   *ProcessManager
	stream *StreamBuffer

	mu      sync.Mutex
	pending *list.List // of *pendingRead
}

// NewMessageHandler wires a MessageHandler to the given process and stream.
// It installs the StreamBuffer's message/parseError callbacks, which is the
// one place the race described in spec §4.3 matters: those callbacks must
// be installed before any read is enqueued, which NewMessageHandler
// guarantees by installing them synchronously in its own construction,
// before returning control to the caller who will later call ReadMessage.
func NewMessageHandler(proc *ProcessManager, stream *StreamBuffer) *MessageHandler {
	h := &MessageHandler{
		proc:    proc,
		stream:  stream,
		pending: list.New(),
	}
	stream.OnMessage(h.deliverMessage)
	stream.OnParseError(h.deliverParseError)
	return h
}

func (h *MessageHandler) deliverMessage(msg json.RawMessage) {
	h.resolveHead(readResult{msg: msg})
}

func (h *MessageHandler) deliverParseError(pe *ParseError) {
	h.resolveHead(readResult{err: pe})
}

// resolveHead pops the head of the FIFO and resolves it; only the head is
// ever resolved by an arriving message, and it is removed from the FIFO
// before resolution so a racing timeout can never double-fire it.
func (h *MessageHandler) resolveHead(res readResult) {
	h.mu.Lock()
	front := h.pending.Front()
	if front == nil {
		h.mu.Unlock()
		return
	}
	pr := front.Value.(*pendingRead)
	h.pending.Remove(front)
	h.mu.Unlock()

	h.fire(pr, res)
}

func (h *MessageHandler) fire(pr *pendingRead, res readResult) {
	select {
	case pr.resultCh <- res:
	default:
	}
}

// SendMessage JSON-serializes obj, appends a newline, and writes it to the
// process's stdin.
func (h *MessageHandler) SendMessage(obj any) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}
	data = append(data, '\n')
	if !h.proc.IsRunning() {
		return ErrProcessNotAvailable
	}
	return h.proc.WriteToStdin(data)
}

// ReadMessage registers a pending read and blocks until the next message
// arrives, the timeout elapses, the context is cancelled, or
// CancelAllReads is called. The pending-read record is appended to the
// FIFO before this method does anything else that could suspend, so a
// message that arrives concurrently (e.g. because a previous send already
// produced a reply before this call even started) is guaranteed to be
// captured by this read once it reaches the head of the FIFO.
func (h *MessageHandler) ReadMessage(ctx context.Context, timeout time.Duration) (json.RawMessage, error) {
	pr := &pendingRead{resultCh: make(chan readResult, 1)}

	h.mu.Lock()
	elem := h.pending.PushBack(pr)
	h.mu.Unlock()

	var timerCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerCh = timer.C
	}

	select {
	case res := <-pr.resultCh:
		if res.err != nil {
			return nil, res.err
		}
		return res.msg, nil
	case <-timerCh:
		h.removeIfPresent(elem)
		return nil, ErrReadTimeout
	case <-ctx.Done():
		h.removeIfPresent(elem)
		return nil, ctx.Err()
	}
}

func (h *MessageHandler) removeIfPresent(elem *list.Element) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for e := h.pending.Front(); e != nil; e = e.Next() {
		if e == elem {
			h.pending.Remove(e)
			return
		}
	}
}

// CancelAllReads fails every pending read with ErrCancelled and empties the
// FIFO atomically.
func (h *MessageHandler) CancelAllReads() {
	h.mu.Lock()
	var toFire []*pendingRead
	for e := h.pending.Front(); e != nil; e = e.Next() {
		toFire = append(toFire, e.Value.(*pendingRead))
	}
	h.pending.Init()
	h.mu.Unlock()

	for _, pr := range toFire {
		h.fire(pr, readResult{err: ErrCancelled})
	}
}

// GetPendingReadCount returns the number of reads currently awaiting a
// message.
func (h *MessageHandler) GetPendingReadCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pending.Len()
}
