package stubserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tinytelemetry/fingervote/internal/model"
)

func (s *Server) handleIndex(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "fingervote-stub"})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": s.cfg.Now().UTC().Format(time.RFC3339)})
}

func (s *Server) handleClearSession(c *gin.Context) {
	s.state.clearActive()
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (s *Server) handleTriggerScan(c *gin.Context) {
	var req model.TriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "Invalid JSON"})
		return
	}
	if !req.Action.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": `Invalid action. Use "register" or "match".`})
		return
	}
	if req.Action == model.ActionRegister && req.VoterID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "voter_id required for registration"})
		return
	}
	if !s.limiter.Allow() {
		c.JSON(http.StatusTooManyRequests, gin.H{"status": "error", "error": "Too many scan triggers, slow down"})
		return
	}

	t := s.state.createTrigger(req.Action, req.VoterID)
	s.logger.Info().Str("trigger_id", t.id).Str("action", string(t.action)).Str("voter_id", string(t.voterID)).Msg("scan triggered")
	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"message":    "Scan triggered for " + string(req.Action),
		"trigger_id": t.id,
		"action":     req.Action,
		"voter_id":   req.VoterID,
	})
}

func (s *Server) handleScanResult(c *gin.Context) {
	id := c.Query("trigger_id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "trigger_id is required"})
		return
	}
	out, err := s.state.result(id)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "error", "message": err.Error()})
		return
	}
	if out == nil {
		c.JSON(http.StatusOK, gin.H{"status": "pending"})
		return
	}
	body := gin.H{"status": out.status}
	if out.message != "" {
		body["message"] = out.message
	}
	if out.voter.ID != "" {
		body["voter_id"] = out.voter.ID
	}
	if out.voter.Name != "" {
		body["voter_name"] = out.voter.Name
	}
	if out.status == "success" {
		body["score"] = out.score
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleVerify(c *gin.Context) {
	var req struct {
		FingerprintID string `json:"fingerprint_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.FingerprintID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fingerprint_id is required"})
		return
	}
	status, v := s.state.verify(req.FingerprintID)
	body := gin.H{"status": status}
	switch status {
	case "verified":
		body["voter_name"] = v.Name
		body["message"] = "Voter authenticated successfully"
	case "already_voted":
		body["voter_name"] = v.Name
		body["message"] = "You have already voted"
	case "not_found":
		body["message"] = "Voter not found with this fingerprint ID"
	case "no_session":
		body["message"] = "Voting is not active."
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleLatestFingerprint(c *gin.Context) {
	fp := s.state.latest()
	if fp == "" {
		c.JSON(http.StatusOK, gin.H{"status": "waiting"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "fingerprint_id": fp})
}

func (s *Server) handlePendingTemplates(c *gin.Context) {
	templates := s.state.pendingTemplates()
	out := make([]gin.H, 0, len(templates))
	for _, t := range templates {
		out = append(out, gin.H{"id": t.ID})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetScanTrigger(c *gin.Context) {
	t, err := s.state.activeTrigger()
	switch {
	case errors.Is(err, errExpired):
		c.JSON(http.StatusOK, gin.H{"status": "expired", "message": err.Error()})
	case err != nil:
		c.JSON(http.StatusOK, gin.H{"status": "no_trigger", "message": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{
			"status":     "trigger_active",
			"trigger_id": t.id,
			"action":     t.action,
			"voter_id":   t.voterID,
			"message":    "Scan required for " + string(t.action),
		})
	}
}

func (s *Server) handleDeviceScan(c *gin.Context) {
	var req struct {
		TriggerID     string   `json:"trigger_id"`
		FingerprintID string   `json:"fingerprint_id"`
		Score         *float64 `json:"score"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.FingerprintID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "fingerprint_id is required"})
		return
	}
	score := 1.0
	if req.Score != nil {
		score = *req.Score
	}
	t, err := s.state.deliver(req.TriggerID, req.FingerprintID, score)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"status": "error", "error": err.Error()})
		return
	}
	s.logger.Info().Str("trigger_id", t.id).Str("result", t.result.status).Msg("scan delivered")
	c.JSON(http.StatusOK, gin.H{"status": "success", "trigger_id": t.id, "result": t.result.status})
}

func (s *Server) handleVotingSession(c *gin.Context) {
	var req struct {
		Open bool `json:"open"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "Invalid JSON"})
		return
	}
	s.state.setVotingOpen(req.Open)
	c.JSON(http.StatusOK, gin.H{"status": "success", "open": req.Open})
}

func (s *Server) handleMarkVoted(c *gin.Context) {
	var req struct {
		VoterID model.VoterID `json:"voter_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.VoterID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "voter_id is required"})
		return
	}
	if !s.state.markVoted(req.VoterID) {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "Voter not found."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
