package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gkg/knowledgegraph/internal/eventbus"
)

// registerEventRoutes wires the server-sent-events stream a CLI/IDE client
// watches for indexing progress (spec §4.8, §7).
func (s *Server) registerEventRoutes(api *echo.Group) {
	api.GET("/events", s.handleEvents)
}

// handleEvents replays each known project's and workspace's last recorded
// event (spec §7: "replays the most recent event per project on
// subscription") before streaming live events until the client disconnects.
func (s *Server) handleEvents(c echo.Context) error {
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sub := s.bus.Subscribe()
	defer sub.Unsubscribe()

	if s.replay != nil {
		s.replayLastEvents(w)
		w.Flush()
	}

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := writeSSE(w, ev); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}

// replayLastEvents is a best-effort pass over every known workspace and
// project: a registry read failure here just means fewer replayed events on
// this connection, not a broken stream, so errors are swallowed.
func (s *Server) replayLastEvents(w http.ResponseWriter) {
	workspaces, err := s.reg.ListWorkspaces()
	if err != nil {
		return
	}
	for _, ws := range workspaces {
		if ev, ok, err := s.replay.LastForWorkspace(ws.Path); err == nil && ok {
			if writeSSE(w, ev) != nil {
				return
			}
		}
		projects, err := s.reg.ListProjects(ws.Path)
		if err != nil {
			continue
		}
		for _, proj := range projects {
			if ev, ok, err := s.replay.LastForProject(proj.Hash); err == nil && ok {
				if writeSSE(w, ev) != nil {
					return
				}
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, ev eventbus.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
	return err
}
