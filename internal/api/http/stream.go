package httpapi

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/i474232898/weather-dataset-aggregator/internal/weather"
)

// keepAliveInterval is how often an idle stream sends a comment frame, which
// is also how a disconnected client is noticed.
var keepAliveInterval = 15 * time.Second

// streamSubscription turns sub into a server-sent event stream. The
// subscription is closed when the client goes away or the aggregator shuts
// down.
func streamSubscription(c *fiber.Ctx, sub *weather.Subscription, log zerolog.Logger) {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	log = log.With().Str("subscription", sub.ID).Str("dataset", sub.Key().String()).Logger()
	log.Debug().Msg("stream opened")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer sub.Close()

		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()

		for {
			select {
			case u, ok := <-sub.Updates():
				if !ok {
					log.Debug().Msg("stream closed by aggregator")
					return
				}
				if err := writeUpdate(w, u); err != nil {
					log.Debug().Err(err).Msg("stream write failed")
					return
				}
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
					return
				}
			}
			if err := w.Flush(); err != nil {
				log.Debug().Err(err).Msg("client disconnected")
				return
			}
		}
	})
}

type errorEvent struct {
	Key   weather.DatasetKey `json:"key"`
	Epoch uint64             `json:"epoch"`
	Error string             `json:"error"`
}

// writeUpdate frames u as an "update" or "error" event.
func writeUpdate(w *bufio.Writer, u weather.Update) error {
	event := "update"
	var payload any = newSeriesView(u.Key, u.Epoch, u.Series)
	if u.Err != nil {
		event = "error"
		payload = errorEvent{Key: u.Key, Epoch: u.Epoch, Error: u.Err.Error()}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
