package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tournament-factory/battle"
	"tournament-factory/config"
	"tournament-factory/handlers"
	"tournament-factory/middleware"
	"tournament-factory/services"
	"tournament-factory/utils"
	"tournament-factory/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	db, err := utils.OpenDatabase(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}

	if err := services.Migrate(db); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	ledger := services.NewLedgerService(db, battle.NewRegistry())
	if err := ledger.Open(cfg.Deploy()); err != nil {
		log.Fatal("failed to open ledger:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	keeper, err := ledger.StartDeadlineKeeper(cfg.KeeperInterval)
	if err != nil {
		log.Fatal("failed to start deadline keeper:", err)
	}

	if cfg.R2.Enabled() {
		client, err := utils.NewR2Client(ctx, utils.R2Options{
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			AccessKeySecret: cfg.R2.AccessKeySecret,
			Endpoint:        cfg.R2.Endpoint,
		})
		if err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
		info, err := ledger.Info()
		if err != nil {
			log.Fatal(err)
		}
		workers.NewArchiveWorker(db, client, cfg.R2.Bucket, info.Config.DisplayName, cfg.ArchiveInterval).Start(ctx)
	} else {
		log.Println("⚠️  R2_BUCKET_NAME not set, settled tournaments will not be archived")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024,
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed, no exceptions
	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken))

	allowedOrigins := strings.Join(cfg.AllowedOrigins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PUT,OPTIONS,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	handlers.SetupTournamentRoutes(app,
		services.NewTournamentService(ledger),
		services.NewFactoryService(ledger),
	)

	go func() {
		if err := app.Listen(cfg.ListenAddr); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on %s", cfg.ListenAddr)
	log.Printf("✅ Deadline keeper running (every %s)", cfg.KeeperInterval)
	log.Println("✅ GatewayAuthMiddleware enforced globally, all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOrigins)

	<-ctx.Done()
	log.Println("Shutting down server...")

	if err := keeper.Shutdown(); err != nil {
		log.Printf("Keeper shutdown error: %v", err)
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
