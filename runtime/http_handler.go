package runtime

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
)

// Evaluation modes accepted on the wire.
const (
	ModeExpression = "expression"
	ModeStatements = "statements"
)

// failureLogSize bounds the per-service failure history.
const failureLogSize = 128

// EvalRequest is the payload of POST /eval.
type EvalRequest struct {
	Snippet string   `json:"snippet" binding:"required"`
	Mode    string   `json:"mode"`
	File    string   `json:"file"`
	Kinds   []string `json:"kinds"`
}

// EvalResponse is the reply of POST /eval.
type EvalResponse struct {
	ID      string        `json:"id"`
	Success bool          `json:"success"`
	Blocks  []OutputBlock `json:"blocks,omitempty"`
	Failure any           `json:"failure,omitempty"`
}

// EvalService exposes an evaluator over HTTP. It keeps a bounded history of
// failure records so a failed evaluation's diagnostics can be returned to
// the submitting client.
type EvalService struct {
	l         *slog.Logger
	evaluator *Evaluator

	mu       sync.Mutex
	failures map[string]FailureRecord
	order    []string
}

// NewHTTPHandler registers the evaluation routes on a gin engine.
func NewHTTPHandler(l *slog.Logger, evaluator *Evaluator, g *gin.Engine) *EvalService {
	s := &EvalService{
		l:         l,
		evaluator: evaluator,
		failures:  make(map[string]FailureRecord),
	}
	evaluator.OnFailure(s.recordFailure)

	g.POST("/eval", s.handleEval)
	g.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return s
}

func (s *EvalService) handleEval(c *gin.Context) {
	var req EvalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Wrong request body format: " + err.Error()})
		return
	}

	asExpression, ok := parseMode(req.Mode)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Unknown evaluation mode: " + req.Mode})
		return
	}

	kinds, err := parseKinds(req.Kinds)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	res := s.evaluator.EvaluateContext(c.Request.Context(), req.Snippet, asExpression, req.File)
	if !res.Succeeded() {
		s.l.Error("Snippet evaluation failed",
			"path", c.Request.URL.Path,
			"mode", req.Mode,
			"file", req.File)
		c.JSON(http.StatusUnprocessableEntity, EvalResponse{
			ID:      res.ID,
			Success: false,
			Failure: s.failureByID(res.ID),
		})
		return
	}

	blocks := make([]OutputBlock, 0, len(kinds))
	for i, kind := range kinds {
		blocks = append(blocks, s.evaluator.Format(res, kind, i)...)
	}

	c.JSON(http.StatusOK, EvalResponse{ID: res.ID, Success: true, Blocks: blocks})
}

func parseMode(mode string) (asExpression bool, ok bool) {
	switch mode {
	case ModeExpression:
		return true, true
	case ModeStatements, "":
		return false, true
	}
	return false, false
}

// parseKinds resolves the requested embed kinds, defaulting to merged output.
func parseKinds(names []string) ([]EmbedKind, error) {
	if len(names) == 0 {
		return []EmbedKind{MergedOutput}, nil
	}
	kinds := make([]EmbedKind, 0, len(names))
	for _, name := range names {
		kind, err := ParseEmbedKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func (s *EvalService) recordFailure(rec FailureRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.order) >= failureLogSize {
		delete(s.failures, s.order[0])
		s.order = s.order[1:]
	}
	s.failures[rec.ID] = rec
	s.order = append(s.order, rec.ID)
}

func (s *EvalService) failureByID(id string) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.failures[id]
	if !ok {
		return nil
	}
	payload := gin.H{
		"text":       rec.Text,
		"expression": rec.IsExpression,
		"error":      rec.Err.Error(),
	}
	if rec.File != "" {
		payload["file"] = rec.File
	}
	if rec.Stderr != "" {
		payload["stderr"] = rec.Stderr
	}
	return payload
}
