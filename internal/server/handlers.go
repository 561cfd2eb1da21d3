package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/model-router/router/internal/storage"
	"github.com/model-router/router/pkg/errors"
	"github.com/model-router/router/pkg/types"
	"github.com/model-router/router/pkg/utils"
)

// generateRequest is the wire shape of a generation call. Model holds
// a provider name to pin to, or "auto" (or nothing) for automatic
// selection.
type generateRequest struct {
	Prompt      string   `json:"prompt" binding:"required"`
	TaskType    string   `json:"task_type"`
	Model       string   `json:"model"`
	MaxTokens   *int     `json:"max_tokens"`
	Temperature *float64 `json:"temperature"`
	TopP        *float64 `json:"top_p"`
}

type generateResponse struct {
	RequestID string                 `json:"request_id"`
	Content   string                 `json:"content"`
	Provider  string                 `json:"provider"`
	Usage     map[string]interface{} `json:"usage,omitempty"`
	Created   time.Time              `json:"created"`
}

func (s *Server) toGenerationRequest(c *gin.Context, req *generateRequest) *types.GenerationRequest {
	return &types.GenerationRequest{
		ID:          c.GetString(contextKeyRequestID),
		Prompt:      req.Prompt,
		TaskType:    req.TaskType,
		Selection:   types.SelectionFromModel(req.Model),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		CallerID:    c.GetString(contextKeyCallerID),
		Timestamp:   time.Now(),
	}
}

// generate handles a single generation request
func (s *Server) generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.Wrap(errors.ErrInvalidRequest, "Invalid request format", err))
		return
	}

	result, err := s.dispatcher.Dispatch(c.Request.Context(), s.toGenerationRequest(c, &req))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, generateResponse{
		RequestID: c.GetString(contextKeyRequestID),
		Content:   result.Content,
		Provider:  result.Provider,
		Usage:     result.Usage,
		Created:   result.Created,
	})
}

type batchRequest struct {
	Requests []generateRequest `json:"requests" binding:"required"`
}

type batchItem struct {
	Index    int               `json:"index"`
	Result   *generateResponse `json:"result,omitempty"`
	Error    *gin.H            `json:"error,omitempty"`
	Attempts []errors.Attempt  `json:"attempts,omitempty"`
}

// batchGenerate handles up to the configured limit of generation
// requests in one call. Oversized batches are rejected whole.
func (s *Server) batchGenerate(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.Wrap(errors.ErrInvalidRequest, "Invalid request format", err))
		return
	}

	limit := s.config.Server.BatchLimit
	if limit <= 0 {
		limit = 10
	}

	if len(req.Requests) == 0 {
		writeError(c, errors.New(errors.ErrInvalidRequest, "Batch must contain at least one request"))
		return
	}
	if len(req.Requests) > limit {
		writeError(c, errors.NewWithDetails(errors.ErrBatchTooLarge,
			"Batch size exceeds limit", strconv.Itoa(limit)))
		return
	}

	items := make([]batchItem, len(req.Requests))
	for i := range req.Requests {
		item := batchItem{Index: i}

		genReq := s.toGenerationRequest(c, &req.Requests[i])
		genReq.ID = utils.GenerateRequestID()

		result, err := s.dispatcher.Dispatch(c.Request.Context(), genReq)
		if err != nil {
			item.Error = batchError(err)
			if exhaustion, ok := err.(*errors.ExhaustionError); ok {
				item.Attempts = exhaustion.Attempts
			}
		} else {
			item.Result = &generateResponse{
				RequestID: genReq.ID,
				Content:   result.Content,
				Provider:  result.Provider,
				Usage:     result.Usage,
				Created:   result.Created,
			}
		}
		items[i] = item
	}

	c.JSON(http.StatusOK, gin.H{"results": items})
}

func batchError(err error) *gin.H {
	if routerErr, ok := err.(*errors.RouterError); ok {
		return &gin.H{
			"code":    string(routerErr.Code),
			"message": routerErr.Message,
		}
	}
	if _, ok := err.(*errors.ExhaustionError); ok {
		return &gin.H{
			"code":    string(errors.ErrAllProvidersExhausted),
			"message": "All providers exhausted",
		}
	}
	return &gin.H{
		"code":    string(errors.ErrInternalServer),
		"message": err.Error(),
	}
}

type interactRequest struct {
	Character string `json:"character" binding:"required"`
	Message   string `json:"message" binding:"required"`
	Context   string `json:"context"`
	Model     string `json:"model"`
}

// characterInteract routes a persona conversation turn
func (s *Server) characterInteract(c *gin.Context) {
	var req interactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.Wrap(errors.ErrInvalidRequest, "Invalid request format", err))
		return
	}

	genReq, char, err := s.characters.BuildRequest(
		c.Request.Context(),
		req.Character,
		req.Message,
		req.Context,
		c.GetString(contextKeyCallerID),
		types.SelectionFromModel(req.Model),
	)
	if err != nil {
		writeError(c, err)
		return
	}

	result, err := s.dispatcher.Dispatch(c.Request.Context(), genReq)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"request_id": genReq.ID,
		"character":  char.Name,
		"content":    result.Content,
		"provider":   result.Provider,
		"usage":      result.Usage,
		"created":    result.Created,
	})
}

// healthStatus reports per-provider health snapshots
func (s *Server) healthStatus(c *gin.Context) {
	providers := s.registry.List()

	healthy := 0
	states := make([]gin.H, 0, len(providers))
	for _, p := range providers {
		snap := p.Health.Snapshot()
		if snap.Healthy {
			healthy++
		}
		states = append(states, gin.H{
			"name":              p.Name,
			"healthy":           snap.Healthy,
			"last_check":        snap.LastCheck,
			"consecutive_fails": snap.ConsecutiveFails,
		})
	}

	status := "healthy"
	if healthy == 0 && len(providers) > 0 {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"providers": states,
	})
}

// listModels returns the registered providers and their capabilities
func (s *Server) listModels(c *gin.Context) {
	providers := s.registry.List()

	models := make([]gin.H, 0, len(providers))
	for _, p := range providers {
		models = append(models, gin.H{
			"name":         p.Name,
			"kind":         p.Kind,
			"capabilities": p.Capabilities,
			"max_tokens":   p.MaxTokens,
			"priority":     p.Priority,
			"fallback":     p.Fallback,
			"healthy":      p.Health.Healthy(),
		})
	}

	c.JSON(http.StatusOK, gin.H{"models": models})
}

type characterPayload struct {
	Name        string  `json:"name" binding:"required"`
	Persona     string  `json:"persona" binding:"required"`
	Greeting    string  `json:"greeting"`
	Temperature float64 `json:"temperature"`
}

func (s *Server) createCharacter(c *gin.Context) {
	var req characterPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.Wrap(errors.ErrInvalidRequest, "Invalid request format", err))
		return
	}

	char := &storage.Character{
		Name:        req.Name,
		Persona:     req.Persona,
		Greeting:    req.Greeting,
		Temperature: req.Temperature,
		IsActive:    true,
	}

	if err := s.characters.Create(c.Request.Context(), char); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, char)
}

func (s *Server) listCharacters(c *gin.Context) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	characters, err := s.characters.List(c.Request.Context(), offset, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"characters": characters})
}

func (s *Server) getCharacter(c *gin.Context) {
	char, err := s.characters.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, char)
}

func (s *Server) updateCharacter(c *gin.Context) {
	existing, err := s.characters.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}

	var req characterPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.Wrap(errors.ErrInvalidRequest, "Invalid request format", err))
		return
	}

	existing.Persona = req.Persona
	existing.Greeting = req.Greeting
	if req.Temperature > 0 {
		existing.Temperature = req.Temperature
	}

	if err := s.characters.Update(c.Request.Context(), existing); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, existing)
}

func (s *Server) deleteCharacter(c *gin.Context) {
	if err := s.characters.Delete(c.Request.Context(), c.Param("name")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("name")})
}

type issueKeyRequest struct {
	Name string `json:"name" binding:"required"`
}

// issueAPIKey creates a caller API key. The plaintext is returned only
// in this response.
func (s *Server) issueAPIKey(c *gin.Context) {
	var req issueKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.Wrap(errors.ErrInvalidRequest, "Invalid request format", err))
		return
	}

	plaintext, key, err := s.apiKeys.Issue(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":      key.ID,
		"name":    key.Name,
		"api_key": plaintext,
	})
}

func (s *Server) revokeAPIKey(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		writeError(c, errors.New(errors.ErrInvalidRequest, "Invalid key ID"))
		return
	}

	if err := s.apiKeys.Revoke(c.Request.Context(), uint(id)); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"revoked": id})
}

// adminProviders returns full provider descriptors with health detail
func (s *Server) adminProviders(c *gin.Context) {
	providers := s.registry.List()

	out := make([]gin.H, 0, len(providers))
	for _, p := range providers {
		snap := p.Health.Snapshot()
		out = append(out, gin.H{
			"name":            p.Name,
			"kind":            p.Kind,
			"endpoint":        p.Endpoint,
			"health_endpoint": p.HealthEndpoint,
			"capabilities":    p.Capabilities,
			"max_tokens":      p.MaxTokens,
			"temperature":     p.Temperature,
			"top_p":           p.TopP,
			"priority":        p.Priority,
			"fallback":        p.Fallback,
			"health":          snap,
		})
	}

	c.JSON(http.StatusOK, gin.H{"providers": out})
}

// triggerHealthCheck runs an immediate probe round
func (s *Server) triggerHealthCheck(c *gin.Context) {
	s.monitor.ProbeNow(c.Request.Context())
	s.healthStatus(c)
}

// triggerProviderCheck probes a single provider immediately
func (s *Server) triggerProviderCheck(c *gin.Context) {
	name := c.Param("name")
	if !s.monitor.ProbeProvider(c.Request.Context(), name) {
		writeError(c, errors.NewWithDetails(errors.ErrProviderNotFound, "provider not found", name))
		return
	}

	desc, err := s.registry.Get(name)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"name":   name,
		"health": desc.Health.Snapshot(),
	})
}

// requestStats aggregates the request log over a time range
func (s *Server) requestStats(c *gin.Context) {
	hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if err != nil || hours <= 0 {
		hours = 24
	}

	end := time.Now()
	start := end.Add(-time.Duration(hours) * time.Hour)

	stats, err := s.requestLog.Stats(c.Request.Context(), start, end)
	if err != nil {
		writeError(c, errors.Wrap(errors.ErrInternalServer, "Failed to aggregate stats", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"start": start,
		"end":   end,
		"stats": stats,
	})
}
