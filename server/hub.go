package server

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"furnace/engine"
	"furnace/model"
	"furnace/queue"
)

const (
	pushInterval = 500 * time.Millisecond
	ringCapacity = 16
	writeWait    = 5 * time.Second
)

// Hub streams the progress of one run over one websocket connection.
// A pump goroutine samples progress into a bounded ring and a writer drains
// it, so a slow peer only costs dropped frames, never a blocked run poll.
// Incoming frames are read for cancel requests.
type Hub struct {
	conn *websocket.Conn
	eng  *engine.Engine
	out  *queue.Ring

	wake chan struct{}
	stop chan struct{}
}

func NewHub(conn *websocket.Conn, eng *engine.Engine) *Hub {
	return &Hub{
		conn: conn,
		eng:  eng,
		out:  queue.NewRing(ringCapacity),
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
}

// Run blocks until the run terminates or the peer disconnects.
func (h *Hub) Run() {
	defer h.conn.Close()
	go h.readLoop()
	go h.pumpLoop()
	h.writeLoop()
}

// readLoop handles control frames from the UI; "cancel" is the only
// request type.
func (h *Hub) readLoop() {
	defer close(h.stop)
	for {
		var msg model.Msg
		if err := h.conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "cancel":
			h.eng.Cancel()
		default:
			log.WithField("type", msg.Type).Debug("ignoring unknown ws message")
		}
	}
}

// pumpLoop samples progress on a fixed cadence and enqueues frames,
// finishing with a terminal frame once the run is done.
func (h *Hub) pumpLoop() {
	ticker := time.NewTicker(pushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.push("progress")
		case <-h.eng.Done():
			h.push("progress")
			_, state := h.eng.Progress()
			h.out.Push(model.Msg{Type: string(state), RunID: h.eng.ID})
			h.notify()
			return
		case <-h.stop:
			return
		}
	}
}

func (h *Hub) push(msgType string) {
	progress, _ := h.eng.Progress()
	content, err := json.Marshal(progress)
	if err != nil {
		log.WithError(err).Warn("progress encode failed")
		return
	}
	h.out.Push(model.Msg{Type: msgType, RunID: h.eng.ID, Content: string(content)})
	h.notify()
}

func (h *Hub) notify() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

func (h *Hub) writeLoop() {
	for {
		select {
		case <-h.wake:
			for {
				msg, ok := h.out.Pop()
				if !ok {
					break
				}
				h.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := h.conn.WriteJSON(&msg); err != nil {
					log.WithError(err).Debug("websocket write failed")
					return
				}
				// terminal frame ends the stream
				if msg.Type != "progress" {
					return
				}
			}
		case <-h.stop:
			return
		}
	}
}
