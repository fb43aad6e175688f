// main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"zipngo/config"
	"zipngo/controllers"
	"zipngo/logger"
	"zipngo/middleware"
	"zipngo/repository"
	"zipngo/routes"
	"zipngo/utils"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	log := logger.New(os.Stdout, cfg.IsProduction())
	slog.SetDefault(log)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to MongoDB
	client, err := repository.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(dctx); err != nil {
			log.Error("mongo disconnect", "error", err)
		}
	}()
	db := client.Database(cfg.MongoDatabase)
	if err := repository.EnsureIndexes(ctx, db); err != nil {
		return err
	}

	// Redis only backs the rate limiter; without it requests are not throttled.
	var limiterStore redis.Scripter
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable, rate limiting disabled", "addr", cfg.Redis.Addr, "error", err)
		} else {
			limiterStore = rdb
		}
	}

	mailer, err := utils.NewMailer(cfg.Mail, log)
	if err != nil {
		return err
	}
	emailService := utils.NewEmailService(mailer, cfg.Mail)
	sessions := utils.NewSessionManager(cfg.Session)

	users := repository.NewUserRepository(db.Collection(repository.UsersCollection))
	products := repository.NewProductRepository(db.Collection(repository.ProductsCollection))
	orders := repository.NewOrderRepository(db.Collection(repository.OrdersCollection), products)

	// Initialize controllers
	userController := controllers.NewUserController(users, sessions, emailService, cfg)
	productController := controllers.NewProductController(products, cfg)
	orderController := controllers.NewOrderController(orders, emailService, cfg)

	router := mux.NewRouter()
	routes.RegisterRoutes(router, routes.Middlewares{
		Common:    []mux.MiddlewareFunc{middleware.RequestID, middleware.Logging(log), middleware.Recovery, middleware.Metrics},
		Auth:      middleware.NewAuthenticator(sessions, users).AuthMiddleware,
		RateLimit: middleware.RateLimit(cfg.RateLimit, limiterStore),
	}, userController, productController, orderController)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "port", cfg.Port, "env", cfg.Env, "mail_provider", cfg.Mail.Provider)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "error", err)
	}
	emailService.Wait()
	return nil
}
