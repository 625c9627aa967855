package router

import (
	"context"
	"net/http"

	acctsvc "estate-backend/internal/application/accounts"
	authsvc "estate-backend/internal/application/auth"
	healthsvc "estate-backend/internal/application/health"
	"estate-backend/internal/application/ledger"
	"estate-backend/internal/application/yield"
	"estate-backend/internal/config"
	"estate-backend/internal/infrastructure/cache"
	"estate-backend/internal/infrastructure/database"
	accthandler "estate-backend/internal/interfaces/handlers/accounts"
	assethandler "estate-backend/internal/interfaces/handlers/assets"
	authhandler "estate-backend/internal/interfaces/handlers/auth"
	healthhandler "estate-backend/internal/interfaces/handlers/health"
	payhandler "estate-backend/internal/interfaces/handlers/payments"
	"estate-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// CreateApp opens the database and Redis, migrates, registers the payment token
// and mounts every route.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, err
	}
	rdb := redis.NewClient(opt)

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, nil, nil, err
	}

	gl := &ledger.GormLedger{DB: db}
	accounts := &acctsvc.Service{Ledger: gl, PaymentToken: cfg.PaymentToken}
	if err := accounts.EnsurePaymentToken(context.Background()); err != nil {
		return nil, nil, nil, err
	}
	settlement := &yield.Service{
		DB:           db,
		Ledger:       gl,
		PaymentToken: cfg.PaymentToken,
		MaxSnapshots: cfg.MaxSnapshots,
		Cache:        &cache.RecordCache{Rdb: rdb, TTL: cfg.RecordCacheTTL},
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler,
	})
	app.Use(middleware.CORS(cfg.CORSOriginSuffix, cfg.IsProduction()))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())
	app.Use(middleware.HealthMarker(rdb))

	// Stripe webhook: mounted before the session so it reads the raw body unauthenticated.
	stripeWebhook := &payhandler.WebhookHandler{Accounts: accounts, WebhookSecret: cfg.StripeWebhookSecret}
	app.Post("/api/v1/stripe/webhook", stripeWebhook.HandleWebhook)

	app.Use(middleware.Session(rdb))

	sessionCfg := middleware.SessionConfig{Secret: cfg.SessionSecret, IsProduction: cfg.IsProduction()}
	admin := middleware.RequireAdminKey(cfg.LedgerAdminKey)

	hh := &healthhandler.Handlers{Rdb: rdb, DB: healthsvc.GormPinger{DB: db}}
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", admin, hh.Errors)
	app.Post("/health/reset", admin, hh.Reset)

	api := app.Group("/api/v1")
	api.Get("/health/json", hh.JSON)

	ah := &authhandler.Handlers{UserFinder: &authsvc.GormUserFinder{DB: db}, Rdb: rdb, Config: sessionCfg}
	authGroup := api.Group("/auth")
	authGroup.Post("/login", ah.Login)
	authGroup.Get("/me", ah.Me)
	authGroup.Delete("/logout", ah.Logout)

	acch := &accthandler.Handlers{Registrar: &authsvc.Registrar{DB: db}, Service: accounts}
	api.Post("/accounts/register", acch.Register)
	api.Get("/accounts/balances", middleware.RequireAuth(), acch.Balances)
	api.Post("/ledger/faucet", admin, acch.Faucet)

	ph := &payhandler.TopUpHandlers{
		Accounts:      accounts,
		StripeCreator: &payhandler.RealStripeCreator{SecretKey: cfg.StripeSecretKey},
		Currency:      cfg.TopUpCurrency,
	}
	api.Post("/accounts/top-up", middleware.RequireAuth(), ph.CreateTopUp)

	sh := &assethandler.Handlers{Service: settlement}
	ag := api.Group("/assets", middleware.RequireAuth())
	ag.Post("/", sh.Create)
	ag.Get("/", sh.List)
	ag.Get("/:id", sh.Get)
	ag.Get("/:id/record", sh.Record)
	ag.Get("/:id/events", sh.Events)
	ag.Get("/:id/pending-yield", sh.PendingYield)
	ag.Post("/:id/buy", sh.Buy)
	ag.Post("/:id/deposit-yield", sh.DepositYield)
	ag.Post("/:id/claim-yield", sh.ClaimYield)
	ag.Post("/:id/mint-crosschain", sh.MintCrosschain)

	return app, db, rdb, nil
}

// Handler adapts the Fiber app to net/http.
func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}
