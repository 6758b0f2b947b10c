package realtime

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestBrokerDeliversToEveryConnection(t *testing.T) {
	b := NewBroker(zerolog.Nop())
	first, cancelFirst := b.Subscribe("u1")
	second, cancelSecond := b.Subscribe("u1")
	defer cancelSecond()
	other, cancelOther := b.Subscribe("u2")
	defer cancelOther()

	b.NotifyUser("u1", Message{Type: "notification", Payload: map[string]string{"id": "n1"}})

	for _, ch := range []<-chan []byte{first, second} {
		select {
		case data := <-ch:
			var msg Message
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatal(err)
			}
			if msg.Type != "notification" {
				t.Errorf("Type = %q", msg.Type)
			}
		default:
			t.Fatal("message not delivered")
		}
	}
	select {
	case <-other:
		t.Error("message leaked to another user")
	default:
	}

	cancelFirst()
	cancelFirst()
	if _, open := <-first; open {
		t.Error("channel still open after cancel")
	}
	if n := b.Connections("u1"); n != 1 {
		t.Errorf("Connections = %d, want 1", n)
	}
}

func TestBrokerDropsWhenFull(t *testing.T) {
	b := NewBroker(zerolog.Nop())
	ch, cancel := b.Subscribe("u1")
	defer cancel()

	for i := 0; i < b.bufSize+5; i++ {
		b.NotifyUser("u1", Message{Type: "ping"})
	}
	if len(ch) != b.bufSize {
		t.Errorf("buffered = %d, want %d", len(ch), b.bufSize)
	}
	b.NotifyUser("nobody", Message{Type: "ping"})
}
