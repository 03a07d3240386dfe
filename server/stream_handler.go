package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Digital-Creators-Team/spin-rewards/events"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// StreamHandler bridges the engine's broadcaster to the page (SSE + WebSocket).
type StreamHandler struct {
	app             *App
	logger          zerolog.Logger
	heartbeatPeriod time.Duration
	upgrader        websocket.Upgrader
}

// NewStreamHandler creates a stream handler.
func NewStreamHandler(app *App) *StreamHandler {
	return &StreamHandler{
		app:             app,
		logger:          app.logger.With().Str("handler", "stream").Logger(),
		heartbeatPeriod: 30 * time.Second,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// StreamEvents godoc
// @Summary      Stream wheel events (SSE)
// @Description  Sends connected, a state snapshot, then spin, queue, alert and settlement events with a periodic heartbeat
// @Tags         stream
// @Produce      text/event-stream
// @Success      200
// @Router       /wheel/events [get]
func (h *StreamHandler) StreamEvents(c *gin.Context) {
	// Setup SSE headers
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
	c.Writer.WriteHeader(http.StatusOK)

	sender := &sseSender{writer: c.Writer}
	h.stream(c.Request.Context(), sender, nil)
}

// StreamEventsWebSocket godoc
// @Summary      Stream wheel events (WebSocket)
// @Tags         stream
// @Success      101
// @Router       /wheel/events/ws [get]
func (h *StreamHandler) StreamEventsWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade to WebSocket")
		return
	}
	defer conn.Close() //nolint:errcheck

	writeDeadline := 10 * time.Second
	done := make(chan struct{})

	// Detect connection close. The page never writes, so any read result ends the stream.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					h.logger.Warn().Err(err).Msg("WebSocket connection closed unexpectedly")
				} else {
					h.logger.Debug().Err(err).Msg("WebSocket closed")
				}
				return
			}
		}
	}()

	// Send ping to keep connection alive
	pingTicker := time.NewTicker(h.heartbeatPeriod)
	go func() {
		defer pingTicker.Stop()
		for {
			select {
			case <-done:
				return
			case <-pingTicker.C:
				deadline := time.Now().Add(5 * time.Second)
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, deadline); err != nil {
					h.logger.Debug().Err(err).Msg("Failed to send ping")
					return
				}
			}
		}
	}()

	sender := &wsSender{
		conn:          conn,
		done:          done,
		logger:        h.logger,
		writeDeadline: writeDeadline,
	}
	h.stream(c.Request.Context(), sender, done)
}

// stream handles the common streaming logic for both SSE and WebSocket.
func (h *StreamHandler) stream(ctx context.Context, sender messageSender, closed <-chan struct{}) {
	updates, cancel := h.app.events.Listen(ctx)
	defer cancel()

	if err := sender.Send(events.New(events.TypeConnected, nil)); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to send connected event, stopping stream")
		return
	}

	// Initial snapshot so a page that connects mid-spin can render.
	if state, err := h.app.engine.State(ctx); err == nil {
		if err := sender.Send(events.New(events.TypeState, state)); err != nil {
			h.logger.Warn().Err(err).Msg("Failed to send initial state, stopping stream")
			return
		}
	} else {
		h.logger.Warn().Err(err).Msg("Failed to read initial state")
	}

	heartbeat := time.NewTicker(h.heartbeatPeriod)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			h.logger.Debug().Msg("WebSocket connection closed, stopping stream")
			return
		case <-heartbeat.C:
			if err := sender.Send(events.New(events.TypeHeartbeat, nil)); err != nil {
				h.logger.Warn().Err(err).Msg("Failed to send heartbeat, stopping stream")
				return
			}
		case event, ok := <-updates:
			if !ok {
				return
			}
			if err := sender.Send(event); err != nil {
				h.logger.Warn().Err(err).Str("event_type", event.Type).Msg("Failed to send event, stopping stream")
				return
			}
		}
	}
}

// messageSender interface for sending messages (SSE or WebSocket).
type messageSender interface {
	Send(events.Event) error
}

// sseSender sends messages via SSE.
type sseSender struct {
	writer http.ResponseWriter
}

func (s *sseSender) Send(event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := s.writer.Write([]byte("event: " + event.Type + "\ndata: " + string(payload) + "\n\n")); err != nil {
		return err
	}
	if f, ok := s.writer.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// wsSender sends messages via WebSocket.
type wsSender struct {
	conn          *websocket.Conn
	done          <-chan struct{}
	logger        zerolog.Logger
	writeDeadline time.Duration
}

func (s *wsSender) Send(event events.Event) error {
	select {
	case <-s.done:
		return io.EOF
	default:
	}

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeDeadline)); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to set write deadline")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", event.Type).Msg("Failed to marshal event")
		return err
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			s.logger.Warn().Err(err).Str("event_type", event.Type).Msg("WebSocket write failed: connection closed (EOF)")
		} else {
			s.logger.Warn().Err(err).Str("event_type", event.Type).Int("payload_size", len(payload)).Msg("WebSocket write failed")
		}
		return err
	}
	return nil
}
