package realtime

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// Message is the envelope pushed to connected clients.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Broker fans messages out to the live SSE connections of a user. A user
// may have several connections open (one per tab); each gets its own
// buffered channel.
type Broker struct {
	mu      sync.RWMutex
	clients map[string]map[uint64]chan []byte
	nextID  uint64
	bufSize int
	log     zerolog.Logger
}

func NewBroker(log zerolog.Logger) *Broker {
	return &Broker{
		clients: make(map[string]map[uint64]chan []byte),
		bufSize: 16,
		log:     log.With().Str("component", "realtime").Logger(),
	}
}

// Subscribe registers a connection for userID. The returned cancel func
// must be called when the connection ends; it closes the channel.
func (b *Broker) Subscribe(userID string) (<-chan []byte, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	ch := make(chan []byte, b.bufSize)
	if b.clients[userID] == nil {
		b.clients[userID] = make(map[uint64]chan []byte)
	}
	b.clients[userID][id] = ch
	b.log.Debug().Str("user_id", userID).Uint64("conn", id).Msg("sse client connected")

	var once sync.Once
	return ch, func() {
		once.Do(func() { b.unsubscribe(userID, id) })
	}
}

func (b *Broker) unsubscribe(userID string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	conns := b.clients[userID]
	if ch, ok := conns[id]; ok {
		delete(conns, id)
		close(ch)
	}
	if len(conns) == 0 {
		delete(b.clients, userID)
	}
	b.log.Debug().Str("user_id", userID).Uint64("conn", id).Msg("sse client disconnected")
}

// Connections returns the number of open connections for userID.
func (b *Broker) Connections(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[userID])
}

// NotifyUser pushes msg to every connection of userID. Sends never block:
// a connection with a full buffer misses the message.
func (b *Broker) NotifyUser(userID string, msg Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	conns := b.clients[userID]
	if len(conns) == 0 {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		b.log.Error().Err(err).Str("user_id", userID).Msg("could not marshal sse message")
		return
	}
	for id, ch := range conns {
		select {
		case ch <- data:
		default:
			b.log.Warn().Str("user_id", userID).Uint64("conn", id).Msg("sse buffer full, dropping message")
		}
	}
}
