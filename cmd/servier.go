package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/screencraft/api/pkg/billing/subscription"
	"github.com/screencraft/api/pkg/config"
	"github.com/screencraft/api/pkg/kernel"
	"github.com/screencraft/api/pkg/logx"
	"github.com/screencraft/api/pkg/renderapi"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/screencraft/api/pkg/admission"
)

func main() {
	switch getEnv("LOG_LEVEL", "info") {
	case "debug":
		logx.SetLevel(logx.LevelDebug)
	case "warn":
		logx.SetLevel(logx.LevelWarn)
	case "error":
		logx.SetLevel(logx.LevelError)
	default:
		logx.SetLevel(logx.LevelInfo)
	}

	logx.Info("starting ScreenCraft API server...")

	cfg := config.Load()
	container := NewContainer(cfg)
	defer container.Cleanup()

	ctx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()
	container.StartBackgroundServices(ctx)

	app := fiber.New(fiber.Config{
		AppName:               "ScreenCraft API",
		DisableStartupMessage: true,
		ErrorHandler:          renderapi.ErrorHandler,
		BodyLimit:             10 * 1024 * 1024,
		IdleTimeout:           120 * time.Second,
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(requestid.New(requestid.Config{Header: "X-Request-ID"}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: getEnv("CORS_ORIGINS", "*"),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-API-Key, X-Request-ID, X-CSRF-Token",
		AllowMethods: "GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS",
	}))
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path} | ${ip} | ${reqHeader:X-Request-ID}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Local",
	}))

	app.Get("/health", healthCheckHandler(container))
	app.Get("/auth/csrf-token", csrfTokenHandler())
	app.Post("/webhooks/billing", billingWebhookHandler(container))

	container.ScreenshotHandlers.RegisterRoutes(app, container.Pipeline)
	container.PDFHandlers.RegisterRoutes(app, container.Pipeline)
	logx.Info("routes registered: /v1/screenshots/*, /v1/pdfs/*")

	app.Use(notFoundHandler)

	startServer(app)
	cancelBackground()
}

// ============================================================================
// Handlers outside the render API's own group
// ============================================================================

func healthCheckHandler(container *Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		services := fiber.Map{}
		status := "healthy"

		if err := container.DB.Ping(); err != nil {
			services["database"] = false
			status = "unhealthy"
		} else {
			services["database"] = true
		}

		if _, err := container.Redis.Ping(c.Context()).Result(); err != nil {
			services["redis"] = false
			status = "unhealthy"
		} else {
			services["redis"] = true
		}

		httpStatus := fiber.StatusOK
		if status != "healthy" {
			httpStatus = fiber.StatusServiceUnavailable
		}

		return c.Status(httpStatus).JSON(fiber.Map{
			"status":    status,
			"services":  services,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// csrfTokenHandler mints a double-submit token, stamps it into a
// SameSite=Strict cookie, and echoes it in the body so an SPA client can
// mirror it into the CSRF header on subsequent session-authenticated
// requests (§4.4 step 3, spec §6).
func csrfTokenHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := admission.GenerateCSRFToken()
		if err != nil {
			return err
		}
		c.Cookie(&fiber.Cookie{
			Name:     admission.DefaultCSRFConfig().CookieName,
			Value:    token,
			HTTPOnly: false,
			SameSite: fiber.CookieSameSiteStrictMode,
			Secure:   getEnv("ENV", "development") == "production",
		})
		return renderapi.Success(c, fiber.StatusOK, fiber.Map{"csrfToken": token})
	}
}

// inboundBillingEvent is the decoded wire shape of a signed billing webhook
// payload; the provider's own envelope format is out of scope (spec §1), so
// this is deliberately the minimal shape subscription.InboundEvent needs.
type inboundBillingEvent struct {
	ProviderEventID string `json:"providerEventId"`
	EventType       string `json:"eventType"`
	TenantID        string `json:"tenantId"`
	Tier            string `json:"tier"`
	Status          string `json:"status"`
}

func billingWebhookHandler(container *Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		body := c.Body()
		signature := c.Get("X-Webhook-Signature")
		if !subscription.VerifySignature(container.Config.Webhook.Secret, signature, body) {
			return subscription.ErrBadSignature()
		}

		var payload inboundBillingEvent
		if err := json.Unmarshal(body, &payload); err != nil {
			return subscription.ErrUnknownEvent()
		}

		ev := subscription.InboundEvent{
			ProviderEventID: payload.ProviderEventID,
			EventType:       subscription.EventType(payload.EventType),
			TenantID:        kernel.NewTenantID(payload.TenantID),
			Tier:            kernel.Tier(payload.Tier),
			Status:          subscription.Status(payload.Status),
			Raw:             body,
		}

		if err := container.Reconciler.Reconcile(c.Context(), ev); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusOK)
	}
}

func notFoundHandler(c *fiber.Ctx) error {
	return renderapi.ErrorHandler(c, fiber.NewError(fiber.StatusNotFound, "route not found"))
}

// ============================================================================
// Utility functions
// ============================================================================

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func startServer(app *fiber.App) {
	port := getEnv("PORT", "8080")

	go func() {
		logx.Infof("server listening on port %s", port)
		if err := app.Listen(":" + port); err != nil {
			logx.Fatalf("server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigChan
	logx.Infof("received signal: %v, shutting down gracefully", sig)

	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		logx.Errorf("server forced to shutdown: %v", err)
	}
	logx.Info("server exited successfully")
}
