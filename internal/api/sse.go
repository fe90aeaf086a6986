package api

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/reputation/internal/events"
)

const (
	sseHeartbeat = 15 * time.Second
	sseBuffer    = 64
)

// handleEvents streams bus notifications as server-sent events. A client
// that cannot keep up misses events; /v1/events/log replays them when the
// outbox is enabled.
func handleEvents(bus *events.Bus) gin.HandlerFunc {
	return func(c *gin.Context) {
		w := c.Writer
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		sub, cancel := bus.Subscribe(sseBuffer)
		defer cancel()

		writeSSE(w, "connected", map[string]string{"status": "ok"})
		w.Flush()

		heartbeat := time.NewTicker(sseHeartbeat)
		defer heartbeat.Stop()

		ctx := c.Request.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-sub:
				if !ok {
					return
				}
				writeSSE(w, string(e.Type), e)
				w.Flush()
			case <-heartbeat.C:
				writeSSE(w, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				w.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	b, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b)
}
