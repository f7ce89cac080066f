package stdio

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMessageHandler_ReadMessage_DeliversInFIFOOrder(t *testing.T) {
	stream, err := NewStreamBuffer("")
	if err != nil {
		t.Fatalf("NewStreamBuffer: %v", err)
	}
	proc := NewProcessManager([]string{"cat"}, "", nil, stream, nil)
	h := NewMessageHandler(proc, stream)

	type readOut struct {
		msg []byte
		err error
	}
	first := make(chan readOut, 1)
	second := make(chan readOut, 1)

	go func() {
		msg, err := h.ReadMessage(context.Background(), time.Second)
		first <- readOut{msg, err}
	}()
	// Give the first read time to register at the head of the FIFO.
	time.Sleep(10 * time.Millisecond)
	go func() {
		msg, err := h.ReadMessage(context.Background(), time.Second)
		second <- readOut{msg, err}
	}()
	time.Sleep(10 * time.Millisecond)

	stream.ProcessStdout([]byte(`{"id":1}` + "\n"))
	stream.ProcessStdout([]byte(`{"id":2}` + "\n"))

	r1 := <-first
	r2 := <-second

	if r1.err != nil || r2.err != nil {
		t.Fatalf("unexpected errors: %v, %v", r1.err, r2.err)
	}
	if string(r1.msg) != `{"id":1}` {
		t.Errorf("expected first read to resolve to the first message, got %s", r1.msg)
	}
	if string(r2.msg) != `{"id":2}` {
		t.Errorf("expected second read to resolve to the second message, got %s", r2.msg)
	}
}

func TestMessageHandler_ReadMessage_Timeout(t *testing.T) {
	stream, err := NewStreamBuffer("")
	if err != nil {
		t.Fatalf("NewStreamBuffer: %v", err)
	}
	proc := NewProcessManager([]string{"cat"}, "", nil, stream, nil)
	h := NewMessageHandler(proc, stream)

	_, err = h.ReadMessage(context.Background(), 20*time.Millisecond)
	if err != ErrReadTimeout {
		t.Fatalf("expected ErrReadTimeout, got %v", err)
	}
	if h.GetPendingReadCount() != 0 {
		t.Error("expected the timed-out read to be removed from the FIFO")
	}
}

func TestMessageHandler_ReadMessage_ContextCancelled(t *testing.T) {
	stream, err := NewStreamBuffer("")
	if err != nil {
		t.Fatalf("NewStreamBuffer: %v", err)
	}
	proc := NewProcessManager([]string{"cat"}, "", nil, stream, nil)
	h := NewMessageHandler(proc, stream)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = h.ReadMessage(ctx, time.Second)
	if err == nil {
		t.Fatal("expected an error from a cancelled context")
	}
}

func TestMessageHandler_ParseErrorResolvesPendingRead(t *testing.T) {
	stream, err := NewStreamBuffer("")
	if err != nil {
		t.Fatalf("NewStreamBuffer: %v", err)
	}
	proc := NewProcessManager([]string{"cat"}, "", nil, stream, nil)
	h := NewMessageHandler(proc, stream)

	done := make(chan error, 1)
	go func() {
		_, err := h.ReadMessage(context.Background(), time.Second)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)

	stream.ProcessStdout([]byte("not json\n"))

	err = <-done
	var pe *ParseError
	if err == nil {
		t.Fatal("expected a parse error to propagate")
	}
	if !errors.As(err, &pe) {
		t.Errorf("expected *ParseError, got %T: %v", err, err)
	}
}

func TestMessageHandler_CancelAllReads(t *testing.T) {
	stream, err := NewStreamBuffer("")
	if err != nil {
		t.Fatalf("NewStreamBuffer: %v", err)
	}
	proc := NewProcessManager([]string{"cat"}, "", nil, stream, nil)
	h := NewMessageHandler(proc, stream)

	done := make(chan error, 1)
	go func() {
		_, err := h.ReadMessage(context.Background(), 5*time.Second)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)

	h.CancelAllReads()

	select {
	case err := <-done:
		if err != ErrCancelled {
			t.Fatalf("expected ErrCancelled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("CancelAllReads did not unblock the pending read")
	}
	if h.GetPendingReadCount() != 0 {
		t.Error("expected FIFO to be empty after CancelAllReads")
	}
}

func TestMessageHandler_SendMessage_ProcessNotRunning(t *testing.T) {
	stream, err := NewStreamBuffer("")
	if err != nil {
		t.Fatalf("NewStreamBuffer: %v", err)
	}
	proc := NewProcessManager([]string{"cat"}, "", nil, stream, nil)
	h := NewMessageHandler(proc, stream)

	err = h.SendMessage(map[string]string{"hello": "world"})
	if err != ErrProcessNotAvailable {
		t.Fatalf("expected ErrProcessNotAvailable, got %v", err)
	}
}
