package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"crewsync/internal/app"
	"crewsync/internal/domain"
)

// qrSize is the side length of invite QR codes in pixels
const qrSize = 320

// Response is a standard API response
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SessionResponse is the response for room creation and joining
type SessionResponse struct {
	*app.Session
	InviteLink string `json:"invite_link"`
}

// PlayerRequest identifies the acting player
type PlayerRequest struct {
	PlayerID string `json:"player_id" binding:"required"`
}

// TasksRequest reports a player's own task count
type TasksRequest struct {
	PlayerID       string `json:"player_id" binding:"required"`
	TasksCompleted int    `json:"tasks_completed"`
}

// HealthResponse is the response for health check
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth handles GET /health
func (s *Server) handleHealth(c *gin.Context) {
	s.sendSuccess(c, http.StatusOK, &HealthResponse{Status: "ok"})
}

// handleCreateRoom handles POST /api/rooms
func (s *Server) handleCreateRoom(c *gin.Context) {
	var req app.CreateRoomRequest
	if !s.bind(c, &req) {
		return
	}

	sess, err := s.service.CreateRoom(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}

	s.sendSuccess(c, http.StatusCreated, &SessionResponse{
		Session:    sess,
		InviteLink: s.inviteLink(c, sess.Room.Code),
	})
}

// handleJoinRoom handles POST /api/rooms/join
func (s *Server) handleJoinRoom(c *gin.Context) {
	var req app.JoinRoomRequest
	if !s.bind(c, &req) {
		return
	}

	sess, err := s.service.JoinRoom(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}

	s.sendSuccess(c, http.StatusOK, &SessionResponse{
		Session:    sess,
		InviteLink: s.inviteLink(c, sess.Room.Code),
	})
}

// handleSnapshot handles GET /api/rooms/:code
func (s *Server) handleSnapshot(c *gin.Context) {
	snap, err := s.service.Snapshot(c.Request.Context(), c.Param("code"))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.sendSuccess(c, http.StatusOK, snap)
}

// handleMessages handles GET /api/rooms/:code/messages
func (s *Server) handleMessages(c *gin.Context) {
	msgs, err := s.service.Messages(c.Request.Context(), c.Param("code"))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.sendSuccess(c, http.StatusOK, msgs)
}

// handleStartGame handles POST /api/rooms/:code/start
func (s *Server) handleStartGame(c *gin.Context) {
	s.roomAction(c, s.service.StartGame)
}

// handleEmergency handles POST /api/rooms/:code/emergency
func (s *Server) handleEmergency(c *gin.Context) {
	s.roomAction(c, s.service.CallEmergency)
}

func (s *Server) roomAction(c *gin.Context, action func(ctx context.Context, code, playerID string) (*domain.Room, error)) {
	var req PlayerRequest
	if !s.bind(c, &req) {
		return
	}

	room, err := action(c.Request.Context(), c.Param("code"), req.PlayerID)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.sendSuccess(c, http.StatusOK, room)
}

// handleVote handles POST /api/rooms/:code/vote
func (s *Server) handleVote(c *gin.Context) {
	var req app.VoteRequest
	if !s.bind(c, &req) {
		return
	}

	if err := s.service.SubmitVote(c.Request.Context(), c.Param("code"), req); err != nil {
		s.fail(c, err)
		return
	}
	s.sendSuccess(c, http.StatusOK, nil)
}

// handleTasks handles POST /api/rooms/:code/task
func (s *Server) handleTasks(c *gin.Context) {
	var req TasksRequest
	if !s.bind(c, &req) {
		return
	}

	if err := s.service.ReportTasks(c.Request.Context(), c.Param("code"), req.PlayerID, req.TasksCompleted); err != nil {
		s.fail(c, err)
		return
	}
	s.sendSuccess(c, http.StatusOK, nil)
}

// handleMessage handles POST /api/rooms/:code/message
func (s *Server) handleMessage(c *gin.Context) {
	var req app.MessageRequest
	if !s.bind(c, &req) {
		return
	}

	msg, err := s.service.SendMessage(c.Request.Context(), c.Param("code"), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.sendSuccess(c, http.StatusCreated, msg)
}

// handleSettle handles POST /api/rooms/:code/settle
func (s *Server) handleSettle(c *gin.Context) {
	res, err := s.service.Settle(c.Request.Context(), c.Param("code"))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.sendSuccess(c, http.StatusOK, res)
}

// handleInviteQR handles GET /api/rooms/:code/qr
func (s *Server) handleInviteQR(c *gin.Context) {
	room, err := s.service.FindRoom(c.Request.Context(), c.Param("code"))
	if err != nil {
		s.fail(c, err)
		return
	}

	png, err := qrcode.Encode(s.inviteLink(c, room.Code), qrcode.Medium, qrSize)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// inviteLink builds the join URL for a room
func (s *Server) inviteLink(c *gin.Context, code string) string {
	base := strings.TrimSuffix(s.config.Server.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
			scheme = "https"
		}
		base = scheme + "://" + c.Request.Host
	}
	return base + "/join/" + code
}

// bind decodes the JSON body into req, answering 400 on failure
func (s *Server) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		s.sendError(c, http.StatusBadRequest, domain.ErrorCode(domain.ErrInvalidInput), "Invalid request body")
		return false
	}
	return true
}

// fail maps err to a status and error code
func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	code := domain.ErrorCode(err)
	message := err.Error()

	switch {
	case status >= http.StatusInternalServerError && errors.Is(err, domain.ErrTransientStore):
		s.logger.Warn("store unavailable", "path", c.Request.URL.Path, "error", err)
		message = "Data store unavailable"
	case status >= http.StatusInternalServerError:
		s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
		message = "Internal server error"
	}

	s.sendError(c, status, code, message)
}

// statusFor returns the HTTP status for a domain error
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound),
		errors.Is(err, domain.ErrPlayerNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRoomFull),
		errors.Is(err, domain.ErrInsufficientPlayers),
		errors.Is(err, domain.ErrGameAlreadyStarted),
		errors.Is(err, domain.ErrGameNotPlaying),
		errors.Is(err, domain.ErrNoMeeting),
		errors.Is(err, domain.ErrStaleRound),
		errors.Is(err, domain.ErrPlayerDead),
		errors.Is(err, domain.ErrDuplicateRoomCode):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotHost),
		errors.Is(err, domain.ErrImpostorTasks):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidTarget),
		errors.Is(err, domain.ErrCannotVoteSelf),
		errors.Is(err, domain.ErrEmptyMessage),
		errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTransientStore),
		errors.Is(err, domain.ErrRoomCodeExhausted),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// sendSuccess sends a successful JSON response
func (s *Server) sendSuccess(c *gin.Context, status int, data any) {
	c.JSON(status, &Response{
		Success: true,
		Data:    data,
	})
}

// sendError sends an error JSON response
func (s *Server) sendError(c *gin.Context, status int, code, message string) {
	c.JSON(status, &Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	})
}
