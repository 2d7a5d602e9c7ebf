package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/podcasts/internal/models"
)

const (
	generateWSReadLimit    = 64 << 10
	generateWSReadTimeout  = 60 * time.Second
	generateWSWriteTimeout = 30 * time.Second
)

var generateWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// generateWSInMessage is the JSON shape sent from the client.
type generateWSInMessage struct {
	Type string `json:"type"` // "generate"
	models.GenerationRequest
}

// generateWSOutMessage is the JSON shape sent to the client.
type generateWSOutMessage struct {
	Type string `json:"type"` // "fragment", "result", "error"
	Text string `json:"text,omitempty"`
	*models.GenerationResult
	Error string `json:"error,omitempty"`
}

// GenerateWS handles GET /api/generate/ws. The client sends one generate
// message; the server streams script fragments, then a result or error message,
// then closes.
func (h *Handler) GenerateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := generateWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("generate ws upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(generateWSReadLimit)
	conn.SetReadDeadline(time.Now().Add(generateWSReadTimeout))

	_, raw, err := conn.ReadMessage()
	if err != nil {
		log.Debug().Err(err).Msg("generate ws read")
		return
	}

	var in generateWSInMessage
	if err := json.Unmarshal(raw, &in); err != nil {
		finishWS(conn, generateWSOutMessage{Type: "error", Error: "invalid JSON: " + err.Error()})
		return
	}
	if in.Type != "generate" {
		finishWS(conn, generateWSOutMessage{Type: "error", Error: "expected type: generate"})
		return
	}
	in.OutputDir = ""

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go watchClose(conn, cancel)

	// Fragments are written from the generating goroutine, so there is a single writer.
	onFragment := func(text string) {
		if ctx.Err() != nil {
			return
		}
		if err := writeWSJSON(conn, generateWSOutMessage{Type: "fragment", Text: text}); err != nil {
			log.Debug().Err(err).Msg("generate ws write")
			cancel()
		}
	}

	result, err := h.generator.GenerateStream(ctx, in.GenerationRequest, onFragment)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, models.ErrInvalidRequest) {
			msg = msgTopicRequired
		}
		finishWS(conn, generateWSOutMessage{Type: "error", Error: msg})
		return
	}
	finishWS(conn, generateWSOutMessage{Type: "result", GenerationResult: result})
}

// watchClose cancels the generation when the client goes away. It keeps
// reading so control frames are processed.
func watchClose(conn *websocket.Conn, cancel context.CancelFunc) {
	conn.SetReadDeadline(time.Time{})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			cancel()
			return
		}
	}
}

func finishWS(conn *websocket.Conn, out generateWSOutMessage) {
	if err := writeWSJSON(conn, out); err != nil {
		log.Debug().Err(err).Msg("generate ws write")
		return
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

func writeWSJSON(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(generateWSWriteTimeout))
	return conn.WriteJSON(v)
}
