package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/aescanero/rover/internal/application/orchestrator"
	"github.com/aescanero/rover/internal/application/scheduler"
	"github.com/aescanero/rover/pkg/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventSubmitRequest represents an event submission request
type EventSubmitRequest struct {
	Kind       domain.EventKind       `json:"kind" binding:"required"`
	ID         string                 `json:"id"`
	Timestamp  *time.Time             `json:"timestamp"`
	Location   *domain.Location       `json:"location"`
	Region     *domain.Region         `json:"region"`
	Message    *domain.Message        `json:"message"`
	Source     string                 `json:"source"`
	Properties map[string]interface{} `json:"properties"`
}

// event fills the ID and timestamp when the client left them out
func (r EventSubmitRequest) event() domain.Event {
	e := domain.Event{
		ID:         r.ID,
		Kind:       r.Kind,
		Location:   r.Location,
		Region:     r.Region,
		Message:    r.Message,
		Source:     r.Source,
		Properties: r.Properties,
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if r.Timestamp != nil {
		e.Timestamp = r.Timestamp.UTC()
	} else {
		e.Timestamp = time.Now().UTC()
	}
	return e
}

// SubmitResponse represents an accepted pipeline submission
type SubmitResponse struct {
	PipelineID  string `json:"pipeline_id"`
	Status      string `json:"status"`
	SubmittedAt string `json:"submitted_at"`
}

// PatchMessageRequest carries the message flags to change
type PatchMessageRequest struct {
	Read  *bool `json:"read"`
	Saved *bool `json:"saved"`
}

// PushTokenRequest represents a push token registration
type PushTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

func submitted(c *gin.Context, pipelineID string) {
	c.JSON(http.StatusAccepted, SubmitResponse{
		PipelineID:  pipelineID,
		Status:      "submitted",
		SubmittedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// submitFailed maps a submission error to a response
func (s *Server) submitFailed(c *gin.Context, err error) {
	if errors.Is(err, scheduler.ErrClosed) {
		writeError(c, http.StatusServiceUnavailable, "SHUTTING_DOWN", err.Error())
		return
	}
	s.logger.Warn("event rejected", zap.Error(err))
	writeError(c, http.StatusUnprocessableEntity, "SUBMISSION_FAILED", err.Error())
}

// backendFailed maps an unordered-lane error to a response
func (s *Server) backendFailed(c *gin.Context, err error) {
	s.logger.Error("backend request failed", zap.Error(err))

	var terr *domain.TransportError
	var merr *domain.MappingError
	switch {
	case errors.As(err, &terr):
		if terr.StatusCode == http.StatusNotFound {
			writeError(c, http.StatusNotFound, "NOT_FOUND", err.Error())
			return
		}
		writeError(c, http.StatusBadGateway, "BACKEND_ERROR", err.Error())
	case errors.As(err, &merr):
		writeError(c, http.StatusBadGateway, "MAPPING_FAILED", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(c, http.StatusGatewayTimeout, "TIMEOUT", err.Error())
	case errors.Is(err, scheduler.ErrClosed):
		writeError(c, http.StatusServiceUnavailable, "SHUTTING_DOWN", err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

func invalidRequest(c *gin.Context, err error) {
	writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks": gin.H{
			"orchestrator": "ok",
			"queue_depth":  s.orchestrator.QueueDepth(),
			"monitoring":   s.orchestrator.IsMonitoring(),
		},
	})
}

// handleSubmitEvent handles event submission
func (s *Server) handleSubmitEvent(c *gin.Context) {
	var req EventSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	pipelineID, err := s.orchestrator.SendEvent(req.event())
	if err != nil {
		s.submitFailed(c, err)
		return
	}
	submitted(c, pipelineID)
}

// handleListPipelines handles listing stored pipeline snapshots
func (s *Server) handleListPipelines(c *gin.Context) {
	states, err := s.orchestrator.ListPipelines(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to list pipelines", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "STORAGE_ERROR", err.Error())
		return
	}
	if states == nil {
		states = []*domain.PipelineState{}
	}

	c.JSON(http.StatusOK, gin.H{
		"pipelines":   states,
		"total":       len(states),
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}

// handleGetPipeline handles getting pipeline details
func (s *Server) handleGetPipeline(c *gin.Context) {
	state, err := s.orchestrator.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, orchestrator.ErrPipelineNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Pipeline not found")
			return
		}
		writeError(c, http.StatusInternalServerError, "STORAGE_ERROR", err.Error())
		return
	}

	c.JSON(http.StatusOK, state)
}

// handleCancelPipeline handles pipeline cancellation
func (s *Server) handleCancelPipeline(c *gin.Context) {
	pipelineID := c.Param("id")

	if err := s.orchestrator.CancelPipeline(pipelineID); err != nil {
		writeError(c, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pipeline_id":  pipelineID,
		"status":       "cancelling",
		"cancelled_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReloadInbox handles inbox reloads
func (s *Server) handleReloadInbox(c *gin.Context) {
	inbox, err := s.orchestrator.ReloadInbox(c.Request.Context())
	if err != nil {
		s.backendFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, inbox)
}

// handleDeleteMessage handles message deletion
func (s *Server) handleDeleteMessage(c *gin.Context) {
	if err := s.orchestrator.DeleteMessage(c.Request.Context(), c.Param("id")); err != nil {
		s.backendFailed(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handlePatchMessage handles read and saved flag updates
func (s *Server) handlePatchMessage(c *gin.Context) {
	var req PatchMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	msg := s.message(c.Param("id"))
	if req.Read != nil {
		msg.Read = *req.Read
	}
	if req.Saved != nil {
		msg.Saved = *req.Saved
	}

	if err := s.orchestrator.PatchMessage(c.Request.Context(), msg); err != nil {
		s.backendFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// handleGetLandingPage handles landing page requests
func (s *Server) handleGetLandingPage(c *gin.Context) {
	screen, err := s.orchestrator.GetLandingPage(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.backendFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, screen)
}

// handleOpenMessage tracks a message opened from the inbox
func (s *Server) handleOpenMessage(c *gin.Context) {
	pipelineID, err := s.orchestrator.TrackMessageOpen(s.message(c.Param("id")))
	if err != nil {
		s.submitFailed(c, err)
		return
	}
	submitted(c, pipelineID)
}

// message returns the cached inbox message or a bare one carrying id
func (s *Server) message(id string) domain.Message {
	if msg, ok := s.orchestrator.Message(id); ok {
		return msg
	}
	return domain.Message{ID: id}
}

// handleRegisterPushToken handles push token registration
func (s *Server) handleRegisterPushToken(c *gin.Context) {
	var req PushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	pipelineID, err := s.orchestrator.RegisterPushToken(c.Request.Context(), req.Token)
	if err != nil {
		s.submitFailed(c, err)
		return
	}
	if pipelineID == "" {
		c.JSON(http.StatusOK, gin.H{"changed": false})
		return
	}
	submitted(c, pipelineID)
}

// handleRemoteNotification handles a push notification payload
func (s *Server) handleRemoteNotification(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		invalidRequest(c, err)
		return
	}

	result, err := s.orchestrator.ReceiveRemoteNotification(c.Request.Context(), json.RawMessage(body))
	if err != nil {
		s.backendFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleListRegions returns the monitored region set
func (s *Server) handleListRegions(c *gin.Context) {
	regions := s.orchestrator.MonitoredRegions()
	if regions == nil {
		regions = []domain.Region{}
	}
	c.JSON(http.StatusOK, gin.H{
		"monitoring": s.orchestrator.IsMonitoring(),
		"regions":    regions,
	})
}

// handleStartMonitoring starts region monitoring
func (s *Server) handleStartMonitoring(c *gin.Context) {
	if err := s.orchestrator.StartMonitoring(); err != nil {
		writeError(c, http.StatusConflict, "MONITORING_FAILED", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"monitoring": true})
}

// handleStopMonitoring stops region monitoring
func (s *Server) handleStopMonitoring(c *gin.Context) {
	s.orchestrator.StopMonitoring()
	c.JSON(http.StatusOK, gin.H{"monitoring": false})
}

// handleUpdateLocation tracks a location fix
func (s *Server) handleUpdateLocation(c *gin.Context) {
	var loc domain.Location
	if err := c.ShouldBindJSON(&loc); err != nil {
		invalidRequest(c, err)
		return
	}

	pipelineID, err := s.orchestrator.UpdateLocation(loc)
	if err != nil {
		s.submitFailed(c, err)
		return
	}
	submitted(c, pipelineID)
}

// handleRegionEnter tracks entering a region
func (s *Server) handleRegionEnter(c *gin.Context) {
	s.trackRegion(c, s.orchestrator.DidEnterRegion)
}

// handleRegionExit tracks leaving a region
func (s *Server) handleRegionExit(c *gin.Context) {
	s.trackRegion(c, s.orchestrator.DidExitRegion)
}

func (s *Server) trackRegion(c *gin.Context, track func(domain.Region) (string, error)) {
	var region domain.Region
	if err := c.ShouldBindJSON(&region); err != nil {
		invalidRequest(c, err)
		return
	}

	pipelineID, err := track(region)
	if err != nil {
		s.submitFailed(c, err)
		return
	}
	submitted(c, pipelineID)
}
