package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/gkg/knowledgegraph/internal/query"
)

// registerGraphRoutes wires the read-only C9 query surface (spec §4.9,
// §6). Every route is scoped to one workspace/project pair; :workspace is
// the base64url-encoded workspace path, :project its graph-store hash.
func (s *Server) registerGraphRoutes(api *echo.Group) {
	api.GET("/graph/initial/:workspace/:project", s.handleInitialSubgraph)
	api.GET("/graph/neighbors/:workspace/:project/:node_type/:node_id", s.handleNeighbors)
	api.GET("/graph/search/:workspace/:project", s.handleSearch)
	api.GET("/graph/stats/:workspace/:project", s.handleStats)
}

func (s *Server) handleInitialSubgraph(c echo.Context) error {
	if _, err := workspacePathParam(c); err != nil {
		return err
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	out, err := s.queries.InitialSubgraph(c.Request().Context(), c.Param("project"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleNeighbors(c echo.Context) error {
	if _, err := workspacePathParam(c); err != nil {
		return err
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	out, err := s.queries.Neighbors(c.Request().Context(), c.Param("project"),
		query.NodeType(c.Param("node_type")), c.Param("node_id"), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleSearch(c echo.Context) error {
	if _, err := workspacePathParam(c); err != nil {
		return err
	}
	term := c.QueryParam("search_term")
	if term == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "search_term is required")
	}
	exact := c.QueryParam("exact") == "true"
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	out, err := s.queries.Search(c.Request().Context(), c.Param("project"), term, exact, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleStats(c echo.Context) error {
	if _, err := workspacePathParam(c); err != nil {
		return err
	}
	out, err := s.queries.Stats(c.Request().Context(), c.Param("project"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}
