package bootstrap

import (
	"estate-backend/internal/config"
	"estate-backend/internal/interfaces/router"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// New loads config, sets the log level and builds the app for serverless hosts,
// which import this package instead of internal/.
func New() (*fiber.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)
	app, _, _, err := router.CreateApp(cfg)
	return app, err
}
