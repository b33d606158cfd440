package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/smartlight/internal/events"
)

// sseEvent is the wire form of a bus event; Code carries the string name.
type sseEvent struct {
	Code      string `json:"code"`
	Detail    string `json:"detail,omitempty"`
	Timestamp string `json:"timestamp"`
}

type (
	keyMessage     sseEvent
	wifiMessage    sseEvent
	cloudMessage   sseEvent
	linkkitMessage sseEvent
)

func toMessage(e events.Event) any {
	switch v := e.(type) {
	case events.KeyEvent:
		return keyMessage{Code: v.Code.String(), Detail: v.Value.String(), Timestamp: v.Timestamp}
	case events.WiFiEvent:
		return wifiMessage{Code: v.Code.String(), Detail: v.Address, Timestamp: v.Timestamp}
	case events.CloudEvent:
		return cloudMessage{Code: v.Code.String(), Timestamp: v.Timestamp}
	case events.LinkkitEvent:
		return linkkitMessage{Code: v.Code.String(), Timestamp: v.Timestamp}
	default:
		return nil
	}
}

// registerSSERoutes streams bus events to clients.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        eventsPath,
		Summary:     "Server-Sent Events Stream",
		Description: "Key, Wi-Fi, cloud and provisioning lifecycle events as they happen",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"key":     keyMessage{},
		"wifi":    wifiMessage{},
		"cloud":   cloudMessage{},
		"linkkit": linkkitMessage{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan events.Event, 16)
		defer s.options.EventBus.Tap(eventCh)()

		if err := send.Data(linkkitMessage{Code: "connected", Timestamp: events.Now()}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e := <-eventCh:
				msg := toMessage(e)
				if msg == nil {
					continue
				}
				if err := send.Data(msg); err != nil {
					return
				}
			}
		}
	})
}
