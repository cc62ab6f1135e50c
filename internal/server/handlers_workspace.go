package server

import (
	"encoding/base64"
	"net/http"

	"github.com/labstack/echo/v4"
)

// workspacePathParam decodes the ":workspace" path segment, which carries a
// base64url(no padding)-encoded absolute workspace path so it can survive
// being a single echo route segment (an absolute path contains literal "/"
// and can't be used as-is).
func workspacePathParam(c echo.Context) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(c.Param("workspace"))
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "workspace path segment is not valid base64url")
	}
	return string(raw), nil
}

type workspaceRequest struct {
	WorkspaceFolderPath string `json:"workspace_folder_path"`
}

// registerWorkspaceRoutes wires the workspace lifecycle endpoints (spec §6):
// list known workspaces, kick off a full index, and deregister one.
func (s *Server) registerWorkspaceRoutes(api *echo.Group) {
	api.GET("/workspace/list", s.handleWorkspaceList)
	api.POST("/workspace/index", s.handleWorkspaceIndex)
	api.DELETE("/workspace/delete", s.handleWorkspaceDelete)
}

func (s *Server) handleWorkspaceList(c echo.Context) error {
	workspaces, err := s.reg.ListWorkspaces()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, workspaces)
}

// handleWorkspaceIndex registers the workspace if new, then runs a full
// index synchronously. Spec §5 bounds indexing by the executor's own
// concurrency semaphore, not by this handler, so a slow index simply holds
// the HTTP request open rather than requiring a separate job-polling API.
func (s *Server) handleWorkspaceIndex(c echo.Context) error {
	var req workspaceRequest
	if err := c.Bind(&req); err != nil || req.WorkspaceFolderPath == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "workspace_folder_path is required")
	}
	if _, err := s.reg.RegisterWorkspace(req.WorkspaceFolderPath, Version); err != nil {
		return err
	}
	if err := s.exec.IndexWorkspace(c.Request().Context(), req.WorkspaceFolderPath); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "indexed"})
}

func (s *Server) handleWorkspaceDelete(c echo.Context) error {
	var req workspaceRequest
	if err := c.Bind(&req); err != nil || req.WorkspaceFolderPath == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "workspace_folder_path is required")
	}
	if err := s.reg.RemoveWorkspace(req.WorkspaceFolderPath); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
