package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"gihan9a/morphcast/internal/broadcast"
	"gihan9a/morphcast/internal/utils"
	"gihan9a/morphcast/pkg/morphproto"
)

// handleWebSocket accepts batches from the connection and streams the events
// of every applied batch back to it.
func (s *MorphServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Infof("[ws]upgrade failed: %v\n", err)
		return
	}
	c := &client{id: utils.NewID(), send: make(chan []byte, s.config.WebSocket.SendBuffer)}
	if !s.hub.add(c) {
		conn.Close()
		return
	}

	go s.writeLoop(conn, c)
	s.readLoop(conn, c)
	s.hub.remove(c)
}

func (s *MorphServer) readLoop(conn *websocket.Conn, c *client) {
	for {
		_, buf, err := conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) && (ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway) {
				glog.V(1).Infof("[ws]%s closed\n", c.id)
			} else {
				glog.Infof("[ws]%s read: %v\n", c.id, err)
			}
			return
		}

		wire, err := morphproto.DecodeBatch(buf)
		if err != nil {
			glog.Infof("[ws]%s: %v\n", c.id, err)
			msg, _ := json.Marshal(morphproto.Event{
				Index:   -1,
				Success: false,
				Error:   "DecodeError",
				Message: err.Error(),
			})
			s.hub.reply(c, msg)
			continue
		}
		if err := s.seq.Submit(context.Background(), broadcast.FromWire(wire)); err != nil {
			glog.Infof("[ws]%s submit: %v\n", c.id, err)
			return
		}
	}
}

func (s *MorphServer) writeLoop(conn *websocket.Conn, c *client) {
	defer conn.Close()
	for msg := range c.send {
		if s.config.WebSocket.WriteTimeout > 0 {
			conn.SetWriteDeadline(time.Now().Add(s.config.WebSocket.WriteTimeout))
		}
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			glog.Infof("[ws]%s write: %v\n", c.id, err)
			return
		}
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}
