package client

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func TestKeepFirstDropsDuplicateReplies(t *testing.T) {
	ch := make(chan *nats.Msg, 1)
	handler := keepFirst(ch)

	done := make(chan struct{})
	go func() {
		handler(&nats.Msg{Data: []byte("first")})
		handler(&nats.Msg{Data: []byte("second")})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Reply handler blocked on a duplicate reply")
	}

	if msg := <-ch; string(msg.Data) != "first" {
		t.Errorf("Expected the first reply, got %q", msg.Data)
	}
}
