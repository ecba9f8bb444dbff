package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/empirial-designs/sitesmith/internal/apperr"
	"github.com/empirial-designs/sitesmith/internal/auth"
	"github.com/empirial-designs/sitesmith/internal/editor"
	"github.com/empirial-designs/sitesmith/internal/llm"
	"github.com/empirial-designs/sitesmith/internal/pipeline"
	"github.com/empirial-designs/sitesmith/internal/store"
	"github.com/empirial-designs/sitesmith/internal/task"
)

// Handler handles HTTP requests
type Handler struct {
	pipeline   *pipeline.Pipeline
	editor     *editor.Editor
	taskMgr    *task.Manager
	sseManager *SSEManager
	store      *store.Store
}

// NewHandler creates a new handler
func NewHandler(p *pipeline.Pipeline, e *editor.Editor, taskMgr *task.Manager, sseManager *SSEManager, st *store.Store) *Handler {
	return &Handler{
		pipeline:   p,
		editor:     e,
		taskMgr:    taskMgr,
		sseManager: sseManager,
		store:      st,
	}
}

// GenerateRequest represents a site generation request
type GenerateRequest struct {
	Prompt   string `json:"prompt" binding:"required"`
	RepoName string `json:"repo_name"`
	Company  string `json:"company"`
	TypeHint string `json:"website_type"`
}

// GenerateResponse represents a site generation response
type GenerateResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HandleGenerate accepts a generation request and starts the pipeline
// asynchronously. Identical submissions within the idempotency bucket return
// the original task instead of provisioning a second repository.
func (h *Handler) HandleGenerate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t, created := h.taskMgr.CreateTask(auth.UserID(c), req.Prompt, req.RepoName, req.Company, req.TypeHint)

	if created {
		h.taskMgr.SubscribeToTask(t.ID, func(updated *task.Task) {
			h.sseManager.Broadcast(updated)
		})
		go h.pipeline.ProcessTask(t.ID)
	}

	c.JSON(http.StatusOK, GenerateResponse{
		TaskID:  t.ID,
		Status:  string(t.Status),
		Message: t.Message,
	})
}

// HandleGetTask returns a task snapshot.
func (h *Handler) HandleGetTask(c *gin.Context) {
	t, ok := h.ownedTask(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, t)
}

// HandleTaskEvents streams task status updates over SSE.
func (h *Handler) HandleTaskEvents(c *gin.Context) {
	t, ok := h.ownedTask(c)
	if !ok {
		return
	}
	HandleSSE(c, h.sseManager, t)
}

func (h *Handler) ownedTask(c *gin.Context) (*task.Task, bool) {
	t, err := h.taskMgr.GetTask(c.Param("task_id"))
	if err != nil || t.UserID != auth.UserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return nil, false
	}
	return t, true
}

// HandleListSites lists the caller's repository records.
func (h *Handler) HandleListSites(c *gin.Context) {
	repos, err := h.store.ListReposByUser(auth.UserID(c))
	if err != nil {
		c.JSON(apperr.Status(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sites": repos})
}

// HandleGetSite returns one repository record.
func (h *Handler) HandleGetSite(c *gin.Context) {
	rec, ok := h.ownedRepo(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rec)
}

// HandleDeleteSite removes a repository record. The remote repository is
// left alone.
func (h *Handler) HandleDeleteSite(c *gin.Context) {
	rec, ok := h.ownedRepo(c)
	if !ok {
		return
	}
	if err := h.store.DeleteRepo(rec.ID); err != nil {
		c.JSON(apperr.Status(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": rec.ID})
}

func (h *Handler) ownedRepo(c *gin.Context) (*store.RepoRecord, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid site id"})
		return nil, false
	}
	rec, err := h.store.GetRepo(id)
	if err != nil || rec.UserID != auth.UserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "site not found"})
		return nil, false
	}
	return rec, true
}

// ChatRequest is one conversational-editor turn.
type ChatRequest struct {
	Messages []llm.Message `json:"messages" binding:"required,min=1"`
	Path     string        `json:"path"`
}

// HandleChat streams the assistant's answer as SSE token events. After the
// upstream stream completes, the first fenced code block (if any) is
// committed and reported as a commit event.
func (h *Handler) HandleChat(c *gin.Context) {
	rec, ok := h.ownedRepo(c)
	if !ok {
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	messages := append([]llm.Message{
		{Role: llm.RoleSystem, Content: llm.BuildEditSystemPrompt(rec.Name)},
	}, req.Messages...)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	_, commit, err := h.editor.Stream(c.Request.Context(), editor.Request{
		Repo:     rec,
		Messages: messages,
		Path:     req.Path,
		UserID:   auth.UserID(c),
	}, func(token string) error {
		sendSSEEvent(c.Writer, "token", gin.H{"content": token})
		c.Writer.Flush()
		return nil
	})
	if err != nil {
		sendSSEEvent(c.Writer, "error", gin.H{"error": err.Error()})
		c.Writer.Flush()
		return
	}

	if commit != nil {
		sendSSEEvent(c.Writer, "commit", commit)
	}
	sendSSEEvent(c.Writer, "done", gin.H{})
	c.Writer.Flush()
}

// HandleHealth handles health check
func (h *Handler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "sitesmith",
	})
}

// SetupRouter sets up the Gin router
func SetupRouter(handler *Handler, jwtSecret string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	api := r.Group("/api/v1", auth.Middleware(jwtSecret))
	{
		api.POST("/sites", handler.HandleGenerate)
		api.GET("/sites", handler.HandleListSites)
		api.GET("/sites/:id", handler.HandleGetSite)
		api.DELETE("/sites/:id", handler.HandleDeleteSite)
		api.POST("/sites/:id/chat", handler.HandleChat)
		api.GET("/tasks/:task_id", handler.HandleGetTask)
		api.GET("/tasks/:task_id/events", handler.HandleTaskEvents)
	}

	r.GET("/health", handler.HandleHealth)

	return r
}
