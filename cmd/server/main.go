package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gersondiaz03/aasmcbev2/internal/config"
	"github.com/Gersondiaz03/aasmcbev2/internal/database"
	"github.com/Gersondiaz03/aasmcbev2/internal/routes"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to Database
	if cfg.DBUrl == "" {
		log.Fatal("DB_URL is required")
	}
	db, err := database.ConnectDB(ctx, cfg.DBUrl, database.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// 3. Setup Fiber
	app := fiber.New(fiber.Config{
		EnablePrintRoutes: cfg.IsDevelopment(),
	})

	// Middleware
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.CORSAllowOrigins}))
	app.Use(logger.New(requestLoggerConfig(cfg)))
	app.Use(recover.New())

	// Routes
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})
	registry, err := routes.RegisterRoutes(ctx, app, cfg, db)
	if err != nil {
		log.Fatalf("Failed to register routes: %v", err)
	}

	// 4. Start Server
	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Server starting on port %s (%s)", cfg.Port, cfg.AppEnv)
		serverErr <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			log.Printf("Server failed to start: %v", err)
		}
	case <-ctx.Done():
		log.Println("Shutting down")
	}

	// 5. Drain sockets, then the listener
	registry.Close()
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}

// requestLoggerConfig keeps Fiber's default format in development and adds
// client ip and RFC 3339 timestamps elsewhere.
func requestLoggerConfig(cfg *config.Config) logger.Config {
	if cfg.IsDevelopment() {
		return logger.ConfigDefault
	}
	return logger.Config{
		Format:     "${time} ${ip} ${status} ${latency} ${method} ${path} ${error}\n",
		TimeFormat: time.RFC3339,
	}
}
