package webhook

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/perchbot/perch/internal/health"
	"github.com/perchbot/perch/logger"
)

const maxBodyBytes = 1 << 20

// ProjectChannelCreator provisions a chat channel for a newly created
// project. Nil when no channel backend supports it.
type ProjectChannelCreator interface {
	CreateProjectChannel(ctx context.Context, name, url string) (string, error)
}

// Server is the inbound webhook listener. Linear and GitHub routes are
// HMAC-verified; vendor routes transform alerts and forward them into chat.
type Server struct {
	signingSecret string
	channels      ProjectChannelCreator
	forwarder     *Forwarder
	checker       health.ChannelChecker
	engine        *gin.Engine
}

func NewServer(signingSecret string, channels ProjectChannelCreator, forwarder *Forwarder, checker health.ChannelChecker) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		signingSecret: signingSecret,
		channels:      channels,
		forwarder:     forwarder,
		checker:       checker,
		engine:        engine,
	}
	engine.POST("/webhook/linear", s.handleLinear)
	engine.POST("/webhook/github", s.handleGitHub)
	engine.POST("/webhooks/:source", s.handleVendor)
	engine.GET("/healthz", s.handleHealthz)
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.engine,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logger.Info("webhook listener started", "addr", srv.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errc:
		return fmt.Errorf("webhook: listener: %w", err)
	}
}

// readBody drains the request with a hard size cap.
func readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.Status(http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

func (s *Server) handleLinear(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	if err := VerifyHMAC(body, c.GetHeader("linear-signature"), s.signingSecret); err != nil {
		logger.Warn("linear webhook rejected", "err", err)
		c.Status(http.StatusUnauthorized)
		return
	}
	if !gjson.ValidBytes(body) {
		logger.Warn("linear webhook: invalid JSON")
		c.Status(http.StatusBadRequest)
		return
	}

	s.dispatchLinear(c.Request.Context(), body)
	c.Status(http.StatusOK)
}

func (s *Server) dispatchLinear(ctx context.Context, body []byte) {
	typ := gjson.GetBytes(body, "type").String()
	action := gjson.GetBytes(body, "action").String()
	logger.Debug("linear webhook received", "type", typ, "action", action)

	if typ != "Project" || action != "create" {
		return
	}
	name := strOr(body, "Unnamed Project", "data.name")
	url := strOr(body, "", "data.url")

	if s.channels == nil {
		logger.Warn("linear webhook: project created but no channel backend configured", "project", name)
		return
	}
	channelID, err := s.channels.CreateProjectChannel(ctx, name, url)
	if err != nil {
		logger.Error("linear webhook: create project channel", "project", name, "err", err)
		return
	}
	logger.Info("linear webhook: project channel created", "project", name, "channel", channelID)
}

func (s *Server) handleGitHub(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	if err := VerifyHMAC(body, c.GetHeader("x-hub-signature-256"), s.signingSecret); err != nil {
		logger.Warn("github webhook rejected", "err", err)
		c.Status(http.StatusUnauthorized)
		return
	}
	if !gjson.ValidBytes(body) {
		logger.Warn("github webhook: invalid JSON")
		c.Status(http.StatusBadRequest)
		return
	}

	if gjson.GetBytes(body, "action").String() == "closed" &&
		gjson.GetBytes(body, "pull_request.merged").Bool() {
		logger.Info("github webhook: pull request merged",
			"title", strOr(body, "", "pull_request.title"),
			"url", strOr(body, "", "pull_request.html_url"))
	}
	c.Status(http.StatusOK)
}

func (s *Server) handleVendor(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	if err := VerifyHMAC(body, c.GetHeader("x-webhook-signature"), s.signingSecret); err != nil {
		logger.Warn("vendor webhook rejected", "source", c.Param("source"), "err", err)
		c.Status(http.StatusUnauthorized)
		return
	}
	if !gjson.ValidBytes(body) {
		c.Status(http.StatusBadRequest)
		return
	}

	var text string
	switch source := c.Param("source"); source {
	case "vercel":
		text = TransformVercel(body)
	case "supabase":
		text = TransformSupabase(body)
	case "upstash":
		text = TransformUpstash(body)
	case "custom":
		text = TransformCustom(body)
	default:
		c.Status(http.StatusNotFound)
		return
	}

	// Delivery failures must not make the sender retry; the alert is logged.
	if err := s.forwarder.Forward(c.Request.Context(), text); err != nil {
		logger.Warn("vendor webhook: forward failed", "source", c.Param("source"), "err", err)
	}
	c.Status(http.StatusOK)
}

func (s *Server) handleHealthz(c *gin.Context) {
	snap := health.Collect(c.Request.Context(), s.checker)
	status := http.StatusOK
	if snap.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, snap)
}
