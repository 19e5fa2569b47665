package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/smoothcloud/serverstarter/internal/instance"
	"github.com/smoothcloud/serverstarter/internal/supervisor"
)

// Router provides embeddable HTTP handlers for supervising server instances.
// Endpoints:
//
//	POST {basePath}/start         body: {"id": "...", "server": {descriptor}}
//	POST {basePath}/stop          query: id=...
//	POST {basePath}/execute       body: {"id": "...", "command": "..."}
//	GET  {basePath}/logs          query: id=...
//	GET  {basePath}/status        query: id=... (single) or none (all)
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	sup      *supervisor.Supervisor
	basePath string
}

// NewRouter constructs a new Router with configurable basePath.
// Example basePath: "/api" results in /api/start, /api/stop, ...
func NewRouter(sup *supervisor.Supervisor, basePath string) *Router {
	return &Router{sup: sup, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server or mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.POST("/start", r.handleStart)
	group.POST("/stop", r.handleStop)
	group.POST("/execute", r.handleExecute)
	group.GET("/logs", r.handleLogs)
	group.GET("/status", r.handleStatus)
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr, basePath string, sup *supervisor.Supervisor) (*http.Server, error) {
	r := NewRouter(sup, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

type startReq struct {
	ID     string          `json:"id"`
	Server instance.Server `json:"server"`
}

type executeReq struct {
	ID      string `json:"id"`
	Command string `json:"command"`
}

type logsResp struct {
	ID    string   `json:"id"`
	Lines []string `json:"lines"`
}

func (r *Router) handleStart(c *gin.Context) {
	var req startReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.ID == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "id required"})
		return
	}
	if !isSafeID(req.ID) || !isSafeID(req.Server.Name) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid id or name: allowed [A-Za-z0-9._-], no '..' or path separators"})
		return
	}
	if err := req.Server.Validate(); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	srv := req.Server
	r.sup.Start(req.ID, &srv)
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleStop(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "id query param required"})
		return
	}
	r.sup.Stop(id)
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleExecute(c *gin.Context) {
	var req executeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.ID == "" || req.Command == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "id and command required"})
		return
	}
	if err := r.sup.Execute(req.ID, req.Command); err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleLogs(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "id query param required"})
		return
	}
	lines, err := r.sup.Logs(id)
	if err != nil {
		if errors.Is(err, supervisor.ErrNoLogs) {
			writeJSON(c, http.StatusNotFound, errorResp{Error: err.Error()})
			return
		}
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, logsResp{ID: id, Lines: lines})
}

func (r *Router) handleStatus(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		writeJSON(c, http.StatusOK, r.sup.StatusAll())
		return
	}
	st, err := r.sup.Status(id)
	if err != nil {
		writeJSON(c, http.StatusNotFound, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, st)
}
