package api

import (
	"bufio"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/pyneda/sukyan/pkg/model"
)

// streamTopic subscribes to id's event topic and streams it to c as
// Server-Sent Events. Buffered events already on the topic's ring are
// replayed first so a client reconnecting after a drop can resume from
// its last-seen sequence number. Heartbeats are framed as bare comment
// lines, carrying no JSON payload, so clients can tell a live connection
// from a stalled one without parsing every line.
func streamTopic(c *fiber.Ctx, deps *Deps, id string) error {
	sub, backlog := deps.Bus.Subscribe(id)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer deps.Bus.Unsubscribe(id, sub)

		for _, evt := range backlog {
			if !writeEvent(w, evt) {
				return
			}
		}

		for evt := range sub.Events() {
			if !writeEvent(w, evt) {
				return
			}
		}
	})

	return nil
}

func writeEvent(w *bufio.Writer, evt model.ScanEvent) bool {
	if evt.Type == model.EventHeartbeat {
		if _, err := w.WriteString(": heartbeat\n\n"); err != nil {
			return false
		}
		return w.Flush() == nil
	}

	data, err := json.Marshal(evt)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to marshal stream event")
		return true
	}
	if _, err := w.WriteString("data: "); err != nil {
		return false
	}
	if _, err := w.Write(data); err != nil {
		return false
	}
	if _, err := w.WriteString("\n\n"); err != nil {
		return false
	}
	return w.Flush() == nil
}
