package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lcoppola/dropforward/internal/dropbox"
	"github.com/lcoppola/dropforward/internal/logging"
	"github.com/lcoppola/dropforward/internal/pipeline"
)

// webhookNotification is the provider's change notification payload. Only
// the presence of account information matters; the folder listing is the
// source of truth for what changed.
type webhookNotification struct {
	ListFolder struct {
		Accounts []string `json:"accounts"`
	} `json:"list_folder"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": s.opts.Version})
}

// handleSSOCallback completes the interactive authorization: the provider
// redirects here with a one-time code that is exchanged for a token record.
func (s *Server) handleSSOCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code parameter"})
		return
	}

	record, err := s.authorizer.Exchange(c.Request.Context(), code)
	if err != nil {
		s.logger.Error("authorization exchange failed",
			logging.Operation("sso_callback"),
			logging.Err(err),
		)
		c.JSON(http.StatusBadGateway, gin.H{"error": "authorization exchange failed"})
		return
	}

	s.logger.Info("authorization completed",
		logging.Operation("sso_callback"),
		slog.String("account_id", record.AccountID),
	)
	c.JSON(http.StatusOK, gin.H{
		"token_type": record.TokenType,
		"expires_at": record.ExpiresAt,
		"account_id": record.AccountID,
		"uid":        record.UID,
	})
}

// handleWebhookChallenge answers the provider's endpoint verification by
// echoing the challenge back as plain text.
func (s *Server) handleWebhookChallenge(c *gin.Context) {
	c.Header("X-Content-Type-Options", "nosniff")
	c.String(http.StatusOK, c.Query("challenge"))
}

// handleWebhookNotify verifies the notification signature and kicks off a
// poll run in the background. The provider expects a prompt response, so
// the run is not awaited.
func (s *Server) handleWebhookNotify(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty request body"})
		return
	}

	signature := c.GetHeader(dropbox.SignatureHeader)
	if !dropbox.VerifySignature(s.opts.AppSecret, body, signature) {
		s.logger.Warn("webhook signature mismatch", logging.Operation("webhook"))
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
		return
	}

	var notification webhookNotification
	if err := json.Unmarshal(body, &notification); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed notification"})
		return
	}

	if s.trigger == nil || len(notification.ListFolder.Accounts) == 0 {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	go s.runTriggeredPoll()
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

// runTriggeredPoll executes one poll run on behalf of a webhook
// notification, under the configured run timeout.
func (s *Server) runTriggeredPoll() {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.RunTimeout)
	defer cancel()

	results, err := s.trigger(ctx)
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		s.logger.Info("webhook poll skipped, run already in progress",
			logging.Operation("webhook"),
		)
	case err != nil:
		s.logger.Error("webhook poll failed",
			logging.Operation("webhook"),
			logging.Err(err),
		)
	default:
		s.logger.Info("webhook poll finished",
			logging.Operation("webhook"),
			slog.Int("entries", len(results)),
		)
	}
}
