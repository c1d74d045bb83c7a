package daemon

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"reel/internal/api"
	"reel/internal/logging"
)

const (
	meterWriteWait  = 10 * time.Second
	meterPongWait   = 60 * time.Second
	meterPingPeriod = (meterPongWait * 9) / 10

	// meterSubscribeBuffer absorbs short websocket write stalls before
	// the hub starts dropping frames for this subscriber.
	meterSubscribeBuffer = 64
)

var meterUpgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 4096,
	// The API binds to loopback; origin checks add nothing there.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleMeter upgrades the request to a websocket and streams live
// level-meter frames until the client disconnects or the server stops.
// Frames arrive only while a capture is running.
func (s *apiServer) handleMeter(w http.ResponseWriter, r *http.Request) {
	conn, err := meterUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log().Warn("meter websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	frames, cancel := s.daemon.SubscribeMeter(meterSubscribeBuffer)
	defer cancel()

	// Reader goroutine: discard client messages, notice the close.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(meterPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(meterPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(meterPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(meterWriteWait))
			if err := conn.WriteJSON(api.FromMeterFrame(frame)); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(meterWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-clientGone:
			return
		case <-r.Context().Done():
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "daemon shutting down"),
				time.Now().Add(meterWriteWait),
			)
			return
		}
	}
}
