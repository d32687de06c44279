package httptransport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"algo-arena/internal/notify"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

var ssePingInterval = 15 * time.Second

// EventsSSEHandler streams hub events for one topic, e.g.
// /api/events?topic=game:01J... Last-Event-ID resumes from the replay buffer.
func EventsSSEHandler(hub *notify.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topic := r.URL.Query().Get("topic")
		if !validTopic(topic) {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_topic")
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			WriteHTTPError(w, http.StatusInternalServerError, "stream_not_supported")
			return
		}

		metricSSEConnectionsTotal.Add(1)
		metricSSEConnectionsActive.Add(1)
		defer metricSSEConnectionsActive.Add(-1)

		setSSEHeaders(w)
		reqID := chimw.GetReqID(r.Context())
		log.Info().Str("request_id", reqID).Str("topic", topic).Msg("sse stream opened")

		// subscribe before replaying so nothing appended in between is lost
		ch := hub.Subscribe(topic)
		defer hub.Unsubscribe(ch)

		lastID := r.Header.Get("Last-Event-ID")
		for _, env := range hub.ReplayAfter(topic, lastID) {
			if env.Event.Topic != topic {
				continue
			}
			if err := writeSSE(w, env); err != nil {
				return
			}
			lastID = env.EventID
		}
		flusher.Flush()

		ticker := time.NewTicker(ssePingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				log.Info().Str("request_id", reqID).Str("topic", topic).Err(r.Context().Err()).Msg("sse stream closed")
				return
			case env, ok := <-ch:
				if !ok {
					log.Info().Str("request_id", reqID).Str("topic", topic).Msg("sse stream channel closed")
					return
				}
				if env.Event.Topic != topic || olderOrEqual(env.EventID, lastID) {
					continue
				}
				if err := writeSSE(w, env); err != nil {
					return
				}
				lastID = env.EventID
				flusher.Flush()
			case <-ticker.C:
				if _, err := fmt.Fprintf(w, ": ping %d\n\n", time.Now().UnixMilli()); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

func validTopic(topic string) bool {
	for _, p := range []string{"game:", "room:", "user:"} {
		if strings.HasPrefix(topic, p) && len(topic) > len(p) {
			return true
		}
	}
	return false
}

func olderOrEqual(id, last string) bool {
	if last == "" {
		return false
	}
	if len(id) != len(last) {
		return len(id) < len(last)
	}
	return id <= last
}

func setSSEHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set("X-Content-Type-Options", "nosniff")
}

func writeSSE(w http.ResponseWriter, env notify.Envelope) error {
	data, err := json.Marshal(env.Event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", env.EventID, env.Event.Type, data); err != nil {
		return err
	}
	return nil
}
