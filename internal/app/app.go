package app

import (
	"context"

	"davetjet-backend/internal/config"
	"davetjet-backend/internal/dedup"
	"davetjet-backend/internal/dispatch"
	"davetjet-backend/internal/health"
	"davetjet-backend/internal/infrastructure/database"
	"davetjet-backend/internal/invitations"
	"davetjet-backend/internal/middleware"
	"davetjet-backend/internal/quota"
	"davetjet-backend/internal/recipients"
	"davetjet-backend/internal/render"
	"davetjet-backend/internal/scheduler"
	"davetjet-backend/internal/securelink"
	"davetjet-backend/internal/senders"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// App bundles the Fiber app with the long-lived resources that need a
// graceful shutdown (the in-process job scheduler in particular).
type App struct {
	Fiber     *fiber.App
	Scheduler *scheduler.Scheduler
	DB        *gorm.DB
	Rdb       *redis.Client
}

// CreateApp builds the Fiber app with all global middleware, the dispatch
// pipeline and route registration.
func CreateApp(cfg *config.Config) (*App, error) {
	fiberApp := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	fiberApp.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.CORSSuffix,
	}))

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		rdb = redis.NewClient(opt)
	}
	if rdb != nil {
		fiberApp.Use(middleware.HealthMarker(rdb))
	}

	fiberApp.Use(middleware.ResponseFormatter())
	fiberApp.Use(middleware.Tracing())
	fiberApp.Use(middleware.RouteLogger())

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := database.AutoMigrate(db); err != nil {
			return nil, err
		}
	}

	// Health module (GET /, GET /reset, GET /health/json, GET /health/errors)
	var pinger health.DBPinger
	if db != nil {
		pinger = &database.Pinger{DB: db}
	}
	healthHandlers := &health.Handlers{
		Rdb:            rdb,
		DB:             pinger,
		HealthAdminKey: cfg.HealthAdminKey,
	}
	fiberApp.Get("/", healthHandlers.Dashboard)
	fiberApp.Get("/reset", healthHandlers.Reset)
	fiberApp.Get("/health/json", healthHandlers.JSON)
	fiberApp.Get("/health/errors", healthHandlers.Errors)

	app := &App{Fiber: fiberApp, DB: db, Rdb: rdb}

	if db != nil && rdb != nil {
		// Channel senders
		emailSender := &senders.ResendClient{APIKey: cfg.ResendAPIKey, MailFrom: cfg.MailFrom}
		smsSender := &senders.NetgsmClient{
			Username: cfg.NetgsmUsername,
			Password: cfg.NetgsmPassword,
			AppName:  cfg.NetgsmHeader,
		}
		waSender := &senders.WhatsAppClient{Token: cfg.WhatsAppToken, PhoneID: cfg.WhatsAppPhoneID}

		// Dispatch pipeline: deliverer runs fired jobs, the scheduler owns
		// the timers, the orchestrator plans jobs from lifecycle events.
		deliverer := &dispatch.Deliverer{DB: db, Email: emailSender, SMS: smsSender, WhatsApp: waSender}
		sched := scheduler.New(deliverer.Run, scheduler.Options{OnDone: deliverer.OnDone})
		app.Scheduler = sched

		links := &securelink.Builder{Secret: []byte(cfg.LinkSecret), BaseURL: cfg.SiteBaseURL}
		orch := &dispatch.Orchestrator{
			DB:       db,
			Guard:    &dedup.Guard{Rdb: rdb},
			Quota:    &quota.Ledger{DB: db},
			Sched:    sched,
			Renderer: &render.Renderer{TemplateDir: cfg.TemplateDir},
			Links:    links,
			Debounce: cfg.DispatchDebounce,
		}

		// Invitations module: private routes (auth) + public slug routes
		invService := &invitations.Service{DB: db, Orch: orch, Links: links}
		invHandlers := &invitations.Handlers{Service: invService}
		invGroup := fiberApp.Group("/api/v1/invitations", middleware.RequireAuth(db))
		invGroup.Post("/", invHandlers.CreateInvitation)
		invGroup.Get("/", invHandlers.ListInvitations)
		invGroup.Get("/:id", invHandlers.GetInvitation)
		invGroup.Patch("/:id", invHandlers.UpdateInvitation)
		invGroup.Delete("/:id", invHandlers.DeleteInvitation)
		invGroup.Post("/:id/publish", invHandlers.Publish)
		invGroup.Post("/:id/schedule-send", invHandlers.ScheduleSend)

		pubGroup := fiberApp.Group("/api/v1/public/invitations")
		pubGroup.Post("/:slug/check-access", invHandlers.CheckAccess)
		pubGroup.Post("/:slug/rsvp", invHandlers.SubmitRSVP)

		// Recipients module
		recService := &recipients.Service{DB: db, Orch: orch}
		recHandlers := &recipients.Handlers{Service: recService}
		recGroup := fiberApp.Group("/api/v1/recipients", middleware.RequireAuth(db))
		recGroup.Post("/", recHandlers.CreateRecipient)
		recGroup.Get("/", recHandlers.ListRecipients)
		recGroup.Patch("/:id", recHandlers.UpdateRecipient)
		recGroup.Delete("/:id", recHandlers.DeleteRecipient)
		invGroup.Post("/:id/recipients", recHandlers.AttachRecipients)
		invGroup.Delete("/:id/recipients/:recipientId", recHandlers.DetachRecipient)
	}

	return app, nil
}

// Shutdown drains the scheduler then stops the HTTP server and closes
// shared clients.
func (a *App) Shutdown(ctx context.Context) error {
	if a.Scheduler != nil {
		if err := a.Scheduler.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Scheduler shutdown incomplete")
		}
	}
	if err := a.Fiber.ShutdownWithContext(ctx); err != nil {
		return err
	}
	if a.Rdb != nil {
		_ = a.Rdb.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return nil
}
