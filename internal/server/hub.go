package server

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/golang/glog"

	"gihan9a/morphcast/pkg/morphproto"
)

type client struct {
	id   string
	send chan []byte
}

type unicast struct {
	to  *client
	msg []byte
}

// hub owns the set of websocket clients. Only run touches clients and the
// client send channels are closed there, so a slow client is dropped rather
// than stalling the sequencer.
type hub struct {
	clients     map[*client]bool // set of active clients
	subscribe   chan *client
	unsubscribe chan *client
	broadcast   chan []byte
	direct      chan unicast
	done        chan struct{}
	size        atomic.Int64
}

func newHub() *hub {
	return &hub{
		clients:     make(map[*client]bool),
		subscribe:   make(chan *client),
		unsubscribe: make(chan *client),
		broadcast:   make(chan []byte, 64),
		direct:      make(chan unicast),
		done:        make(chan struct{}),
	}
}

func (h *hub) run(ctx context.Context) {
	defer func() {
		for c := range h.clients {
			close(c.send)
		}
		h.clients = nil
		close(h.done)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.subscribe:
			h.clients[c] = true
			h.size.Store(int64(len(h.clients)))
			glog.V(1).Infof("[ws]%s joined, %d clients\n", c.id, len(h.clients))
		case c := <-h.unsubscribe:
			h.drop(c)
		case msg := <-h.broadcast:
			for c := range h.clients {
				h.deliver(c, msg)
			}
		case u := <-h.direct:
			if h.clients[u.to] {
				h.deliver(u.to, u.msg)
			}
		}
	}
}

func (h *hub) deliver(c *client, msg []byte) {
	select {
	case c.send <- msg:
	default:
		glog.Infof("[ws]%s send buffer full, dropping client\n", c.id)
		h.drop(c)
	}
}

func (h *hub) drop(c *client) {
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.size.Store(int64(len(h.clients)))
	glog.V(1).Infof("[ws]%s left, %d clients\n", c.id, len(h.clients))
}

func (h *hub) add(c *client) bool {
	select {
	case h.subscribe <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *hub) remove(c *client) {
	select {
	case h.unsubscribe <- c:
	case <-h.done:
	}
}

func (h *hub) reply(c *client, msg []byte) {
	select {
	case h.direct <- unicast{to: c, msg: msg}:
	case <-h.done:
	}
}

// publish fans out one message per event. It is called from the sequencer.
func (h *hub) publish(events []morphproto.Event) {
	for _, ev := range events {
		msg, err := json.Marshal(ev)
		if err != nil {
			glog.Errorf("[ws]encode event: %v\n", err)
			continue
		}
		select {
		case h.broadcast <- msg:
		case <-h.done:
			return
		}
	}
}
