package server

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"labagent/internal/session/export"
)

var exportContentTypes = map[string]string{
	"json": "application/json; charset=utf-8",
	"yaml": "application/yaml; charset=utf-8",
	"md":   "text/markdown; charset=utf-8",
}

func (s *Server) listSessions(c *gin.Context) {
	entries, err := s.store.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: entries})
}

func (s *Server) getSession(c *gin.Context) {
	rec, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: rec})
}

func (s *Server) getSummary(c *gin.Context) {
	rec, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: export.Summarize(rec)})
}

func (s *Server) exportSession(c *gin.Context) {
	exporter, err := export.NewExporter(c.DefaultQuery("format", "json"))
	if err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{Success: false, Error: err.Error()})
		return
	}
	rec, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := exporter.Export(rec, &buf); err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, exportContentTypes[exporter.Extension()], buf.Bytes())
}

// streamSession sends every event of a log over a websocket, then keeps
// polling the file for new events until session_end has been sent or the
// client goes away.
func (s *Server) streamSession(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()
	if _, err := s.store.Get(ctx, id); err != nil {
		s.fail(c, err)
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("stream %s: upgrade failed: %v", id, err)
		return
	}
	defer func() { _ = conn.Close() }()

	// Drain client frames so a close from the other side is noticed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	sent := 0
	for {
		rec, err := s.store.Get(ctx, id)
		if err != nil {
			_ = conn.WriteJSON(StreamMessage{Type: StreamError, SessionID: id, Error: err.Error()})
			return
		}
		for i := sent; i < len(rec.Events); i++ {
			if err := conn.WriteJSON(StreamMessage{Type: StreamEvent, SessionID: id, Event: &rec.Events[i]}); err != nil {
				s.logger.Debug("stream %s: client went away: %v", id, err)
				return
			}
		}
		sent = len(rec.Events)

		if rec.Finalized() {
			_ = conn.WriteJSON(StreamMessage{Type: StreamEnd, SessionID: id, Termination: rec.Termination()})
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-gone:
			return
		case <-ticker.C:
		}
	}
}
