package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/rankforge/crawlpipe/internal/database"
	"github.com/rankforge/crawlpipe/internal/domain"
	"github.com/rankforge/crawlpipe/internal/logger"
)

// ProjectService is the project persistence surface the handlers need.
type ProjectService interface {
	Create(ctx context.Context, project *domain.Project) error
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	ResetForAnalysis(ctx context.Context, id string) error
	SetError(ctx context.Context, id, message string) error
}

// CredentialService stores encrypted crawler tokens.
type CredentialService interface {
	Upsert(ctx context.Context, userID, encryptedToken string) error
}

// Encrypter seals credential values for storage.
type Encrypter interface {
	Encrypt(plaintext string) (string, error)
}

// Enqueuer appends a stage task to the durable queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, task domain.StageTask) (string, error)
}

// ProjectsHandler handles project lifecycle requests.
type ProjectsHandler struct {
	projects    ProjectService
	credentials CredentialService
	envelope    Encrypter
	queue       Enqueuer
	log         logger.Interface
}

// NewProjectsHandler creates a new projects handler.
func NewProjectsHandler(
	projects ProjectService,
	credentials CredentialService,
	envelope Encrypter,
	queue Enqueuer,
	log logger.Interface,
) *ProjectsHandler {
	return &ProjectsHandler{
		projects:    projects,
		credentials: credentials,
		envelope:    envelope,
		queue:       queue,
		log:         log.WithComponent("api"),
	}
}

// CreateProjectRequest is the payload for POST /api/v1/projects.
type CreateProjectRequest struct {
	UserID   string   `json:"user_id"  binding:"required"`
	Domain   string   `json:"domain"   binding:"required"`
	Keywords []string `json:"keywords"`
}

// Create handles POST /api/v1/projects.
func (h *ProjectsHandler) Create(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	project := &domain.Project{
		ID:            uuid.NewString(),
		UserID:        req.UserID,
		Domain:        req.Domain,
		Keywords:      pq.StringArray(req.Keywords),
		Status:        domain.StatusQueued,
		StatusMessage: "created",
	}

	if err := h.projects.Create(c.Request.Context(), project); err != nil {
		h.log.Error("failed to create project", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create project"})
		return
	}

	c.JSON(http.StatusCreated, project)
}

// Get handles GET /api/v1/projects/:id, returning the dashboard status
// view.
func (h *ProjectsHandler) Get(c *gin.Context) {
	project, ok := h.loadProject(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, project.View())
}

// Analyze handles POST /api/v1/projects/:id/analyze. It queues the
// pipeline's first stage and returns immediately; progress is observed
// through the status read model.
func (h *ProjectsHandler) Analyze(c *gin.Context) {
	id := c.Param("id")

	if err := h.projects.ResetForAnalysis(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, database.ErrProjectNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		case errors.Is(err, database.ErrAnalysisInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": "analysis already in progress"})
		default:
			h.log.Error("failed to queue analysis", "project_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue analysis"})
		}
		return
	}

	if _, err := h.queue.Enqueue(c.Request.Context(), domain.StageTask{
		ProjectID: id,
		Stage:     domain.StageDiscoverSitemap,
	}); err != nil {
		// The sweeper recovers queued projects whose first task was lost.
		h.log.Error("failed to enqueue discovery", "project_id", id, "error", err)
	}

	c.JSON(http.StatusAccepted, gin.H{"status": string(domain.StatusQueued)})
}

// Cancel handles POST /api/v1/projects/:id/cancel. Cancellation is a
// terminal error state; consumers drop tasks for terminal projects, so
// in-flight stage work dies out on its own.
func (h *ProjectsHandler) Cancel(c *gin.Context) {
	project, ok := h.loadProject(c)
	if !ok {
		return
	}

	if project.Status.Terminal() {
		c.JSON(http.StatusConflict, gin.H{
			"error":  "pipeline already finished",
			"status": string(project.Status),
		})
		return
	}

	if err := h.projects.SetError(c.Request.Context(), project.ID, "cancelled by user"); err != nil {
		h.log.Error("failed to cancel project", "project_id", project.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel project"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": string(domain.StatusError)})
}

// PutCrawlerCredentialRequest is the payload for the credential upsert.
type PutCrawlerCredentialRequest struct {
	Token string `json:"token" binding:"required"`
}

// PutCrawlerCredential handles PUT /api/v1/users/:userID/credentials/crawler.
// The token is sealed in the credential envelope before it touches the
// database and is never echoed back.
func (h *ProjectsHandler) PutCrawlerCredential(c *gin.Context) {
	userID := c.Param("userID")

	var req PutCrawlerCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	sealed, err := h.envelope.Encrypt(req.Token)
	if err != nil {
		h.log.Error("failed to seal credential", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store credential"})
		return
	}

	if err := h.credentials.Upsert(c.Request.Context(), userID, sealed); err != nil {
		h.log.Error("failed to store credential", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store credential"})
		return
	}

	c.Status(http.StatusNoContent)
}

// loadProject resolves the :id param, writing the error response itself
// when the project cannot be served.
func (h *ProjectsHandler) loadProject(c *gin.Context) (*domain.Project, bool) {
	id := c.Param("id")

	project, err := h.projects.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		} else {
			h.log.Error("failed to load project", "project_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load project"})
		}
		return nil, false
	}

	return project, true
}
