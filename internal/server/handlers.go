package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"forwardlab/internal/gate"
	"forwardlab/internal/matrix"
	"forwardlab/internal/model"
	"forwardlab/internal/platform/logger"
	"forwardlab/internal/session"
)

type LessonHandler struct {
	sessions *session.Manager
	log      *logger.Logger
}

func NewLessonHandler(sessions *session.Manager, log *logger.Logger) *LessonHandler {
	return &LessonHandler{sessions: sessions, log: log}
}

type validateRequest struct {
	Matrix matrix.Matrix `json:"matrix" binding:"required"`
}

type validateResponse struct {
	gate.Result
	State gate.Snapshot `json:"state"`
}

type sessionResponse struct {
	ID    string        `json:"id"`
	State gate.Snapshot `json:"state"`
}

// GET /healthz
func (h *LessonHandler) Health(c *gin.Context) {
	RespondOK(c, gin.H{"status": "ok"})
}

// GET /api/lesson
func (h *LessonHandler) Lesson(c *gin.Context) {
	graph := h.sessions.Graph()
	RespondOK(c, gin.H{
		"architecture": graph.Architecture(),
		"parameters":   graph.Parameters(),
		"steps":        graph.Steps(),
	})
}

// POST /api/sessions
func (h *LessonHandler) CreateSession(c *gin.Context) {
	id, snap, err := h.sessions.Create(c.Request.Context())
	if err != nil {
		h.log.Error("create session failed", "error", err)
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sessionResponse{ID: id, State: snap})
}

// GET /api/sessions
func (h *LessonHandler) ListSessions(c *gin.Context) {
	summaries, err := h.sessions.List(c.Request.Context())
	if err != nil {
		h.log.Error("list sessions failed", "error", err)
		respondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"sessions": summaries})
}

// GET /api/sessions/:id
func (h *LessonHandler) GetSession(c *gin.Context) {
	id := c.Param("id")
	snap, err := h.sessions.State(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	RespondOK(c, sessionResponse{ID: id, State: snap})
}

// DELETE /api/sessions/:id
func (h *LessonHandler) DeleteSession(c *gin.Context) {
	if err := h.sessions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/sessions/:id/steps/:step/validate
func (h *LessonHandler) Validate(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	result, snap, err := h.sessions.Validate(c.Request.Context(), c.Param("id"), model.StepID(c.Param("step")), req.Matrix)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	RespondOK(c, validateResponse{Result: result, State: snap})
}

// POST /api/sessions/:id/reset
func (h *LessonHandler) Reset(c *gin.Context) {
	id := c.Param("id")
	snap, err := h.sessions.Reset(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	RespondOK(c, sessionResponse{ID: id, State: snap})
}
