package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	githubcontroller "github.com/m-mizutani/tagrelease/pkg/controller/github"
	"github.com/m-mizutani/tagrelease/pkg/domain/interfaces"
	"github.com/patrickmn/go-cache"
)

// DefaultDeliveryTTL is how long a delivery ID is remembered for dedup
const DefaultDeliveryTTL = time.Hour

// WebhookHandler handles GitHub webhooks
type WebhookHandler struct {
	secret     string
	webhookUC  interfaces.WebhookUseCase
	deliveries *cache.Cache
}

// NewWebhookHandler creates a new WebhookHandler. Deliveries seen within
// ttl are acknowledged without being processed again.
func NewWebhookHandler(secret string, webhookUC interfaces.WebhookUseCase, ttl time.Duration) *WebhookHandler {
	if ttl <= 0 {
		ttl = DefaultDeliveryTTL
	}
	return &WebhookHandler{
		secret:     secret,
		webhookUC:  webhookUC,
		deliveries: cache.New(ttl, 2*ttl),
	}
}

// Handle processes webhook requests
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := ctxlog.From(ctx)

	// Read payload
	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error("Failed to read request body", "error", err)
		writeError(w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// Verify signature
	signature := r.Header.Get("X-Hub-Signature-256")
	if !h.verifySignature(body, signature) {
		logger.Warn("Invalid webhook signature")
		writeError(w, goerr.New("invalid signature"), http.StatusUnauthorized)
		return
	}

	deliveryID := r.Header.Get("X-GitHub-Delivery")
	eventType := r.Header.Get("X-GitHub-Event")

	event, err := githubcontroller.ParseEvent(eventType, deliveryID, body, time.Now())
	if err != nil {
		logger.Error("Failed to parse webhook payload", "error", err)
		writeError(w, err, http.StatusBadRequest)
		return
	}

	// Add fails when the key is already present, so only the first delivery passes
	if deliveryID != "" {
		if err := h.deliveries.Add(deliveryID, struct{}{}, cache.DefaultExpiration); err != nil {
			logger.Info("Duplicate webhook delivery, skipping", "delivery_id", deliveryID)
			writeStatus(w, "duplicate")
			return
		}
	}

	// Process event via UseCase
	if err := h.webhookUC.ProcessEvent(ctx, event); err != nil {
		logger.Error("Failed to process webhook event", "error", err)
		h.deliveries.Delete(deliveryID)
		writeError(w, err, http.StatusInternalServerError)
		return
	}

	writeStatus(w, "success")
}

// verifySignature verifies the webhook signature
func (h *WebhookHandler) verifySignature(payload []byte, signature string) bool {
	if signature == "" {
		return false
	}

	// Remove "sha256=" prefix if present
	signature = strings.TrimPrefix(signature, "sha256=")

	// Calculate HMAC-SHA256
	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(payload)
	expectedMAC := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expectedMAC))
}

func writeStatus(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}
