package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/learning"
	"github.com/ppiankov/veracity/internal/model"
)

type verifyRequest struct {
	Claim    string `json:"claim" binding:"required"`
	Strategy string `json:"strategy"`
	Detail   string `json:"detail"`
}

type analyzeRequest struct {
	Claim string `json:"claim" binding:"required"`
}

type batchRequest struct {
	Claims   []string `json:"claims" binding:"required"`
	Strategy string   `json:"strategy"`
	Detail   string   `json:"detail"`
}

type batchEntry struct {
	Index  int                       `json:"index"`
	Claim  string                    `json:"claim"`
	Result *model.VerificationResult `json:"result,omitempty"`
	Error  *errorBody                `json:"error,omitempty"`
}

type batchResponse struct {
	Results []batchEntry `json:"results"`
}

type feedbackRequest struct {
	ClaimID string `json:"claim_id" binding:"required"`
	Verdict string `json:"verdict" binding:"required"`
}

type errorBody struct {
	Type    string `json:"type"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	result, err := s.svc.Verify(c.Request.Context(), req.Claim, model.Strategy(req.Strategy), model.DetailLevel(req.Detail))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	claim, err := s.svc.Analyze(req.Claim)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, claim)
}

func (s *Server) batch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	results, err := s.svc.BatchVerify(c.Request.Context(), req.Claims, model.Strategy(req.Strategy), model.DetailLevel(req.Detail))
	if err != nil {
		s.fail(c, err)
		return
	}

	resp := batchResponse{Results: make([]batchEntry, len(results))}
	for i, r := range results {
		entry := batchEntry{Index: r.Index, Claim: r.Text, Result: r.Result}
		if r.Error != nil {
			_, body := classify(r.Error)
			entry.Error = &body
			entry.Result = nil
		}
		resp.Results[i] = entry
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) feedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	if _, err := s.svc.SubmitFeedback(c.Request.Context(), req.ClaimID, model.Verdict(req.Verdict)); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: errorBody{Type: "validation", Message: err.Error()}})
}

func (s *Server) fail(c *gin.Context, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		_ = c.Error(err)
	}
	c.JSON(status, errorResponse{Error: body})
}

// classify maps the error taxonomy onto HTTP statuses
func classify(err error) (int, errorBody) {
	var ve *model.ValidationError
	var ce *model.ConfigurationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, errorBody{Type: "validation", Field: ve.Field, Message: ve.Reason}
	case errors.As(err, &ce):
		return http.StatusServiceUnavailable, errorBody{Type: "configuration", Message: ce.Reason}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, errorBody{Type: "timeout", Message: "verification did not finish before the request deadline"}
	case errors.Is(err, learning.ErrUnknownClaim):
		return http.StatusNotFound, errorBody{Type: "not_found", Field: "claim_id", Message: "unknown claim id"}
	default:
		return http.StatusInternalServerError, errorBody{Type: "internal", Message: err.Error()}
	}
}
