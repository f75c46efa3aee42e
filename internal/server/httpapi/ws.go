package httpapi

import (
	"context"
	"encoding/json"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/scribelab/scribe/internal/common"
)

// wsSender adapts a websocket connection to the registry's Sender.
type wsSender struct {
	conn *websocket.Conn
}

func (s *wsSender) Send(ctx context.Context, data []byte) error {
	return s.conn.Write(ctx, websocket.MessageText, data)
}

func (s *wsSender) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}

// HandleWS upgrades the request to the push channel and registers the device
// for fan-out. The read loop only refreshes liveness; the only client writes
// are heartbeat answers, never commands.
func (h *SyncHandler) HandleWS(c *gin.Context) {
	userID := UserIDFromContext(c)
	deviceID := DeviceIDFromContext(c)

	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn(c.Request.Context(), "websocket upgrade failed", "error", err)
		return
	}

	client := h.registry.Register(userID, deviceID, &wsSender{conn: conn})
	defer h.registry.Unregister(client)

	ctx := c.Request.Context()

	welcome, err := json.Marshal(common.Event{Type: common.EventConnected, DeviceID: deviceID})
	if err == nil {
		if err := conn.Write(ctx, websocket.MessageText, welcome); err != nil {
			return
		}
	}

	for {
		_, _, err := conn.Read(ctx)
		if err != nil {
			return
		}
		h.registry.Touch(client)
	}
}
