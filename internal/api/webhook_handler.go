package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rankforge/crawlpipe/internal/domain"
	"github.com/rankforge/crawlpipe/internal/logger"
)

// CrawlEventProcessor consumes crawl outcome events.
type CrawlEventProcessor interface {
	HandleCrawlEvent(ctx context.Context, event *domain.CrawlRunEvent) (string, error)
}

// WebhookHandler receives crawl outcome callbacks from the external
// crawling service.
type WebhookHandler struct {
	processor CrawlEventProcessor
	log       logger.Interface
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(processor CrawlEventProcessor, log logger.Interface) *WebhookHandler {
	return &WebhookHandler{
		processor: processor,
		log:       log.WithComponent("webhook"),
	}
}

// webhookResponse is the acknowledgement body. The status code is 200
// for every delivery: the external service retries anything else, and
// retries are already neutralized by the processed-event record.
type webhookResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// HandleCrawlWebhook handles POST /api/v1/webhooks/crawl.
func (h *WebhookHandler) HandleCrawlWebhook(c *gin.Context) {
	var event domain.CrawlRunEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		h.log.Warn("malformed crawl webhook", "error", err)
		c.JSON(http.StatusOK, webhookResponse{OK: false, Message: "malformed payload"})
		return
	}

	if event.Resource.ID == "" {
		c.JSON(http.StatusOK, webhookResponse{OK: false, Message: "missing run id"})
		return
	}

	message, err := h.processor.HandleCrawlEvent(c.Request.Context(), &event)
	if err != nil {
		h.log.Error("crawl webhook processing failed",
			"run_id", event.Resource.ID, "error", err)
		c.JSON(http.StatusOK, webhookResponse{OK: false, Message: "processing failed"})
		return
	}

	c.JSON(http.StatusOK, webhookResponse{OK: true, Message: message})
}
