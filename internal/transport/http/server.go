package http

import (
	"context"
	"errors"
	"fmt"
	"log"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookshelf/internal/cache"
	"bookshelf/internal/config"
	"bookshelf/internal/database"
	"bookshelf/internal/handler"
	"bookshelf/internal/queue"
	"bookshelf/internal/redis"
	"bookshelf/internal/repository"
	"bookshelf/internal/service"
	"bookshelf/internal/worker"
)

// shutdownTimeout bounds how long in-flight requests get after a signal
const shutdownTimeout = 10 * time.Second

func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	// 2. Connect to Database
	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	userRepo := repository.NewUserRepository(db)
	listFollowRepo := repository.NewListFollowRepository(db)

	userService := service.NewUserService(userRepo, cfg.DefaultProfileImage)
	authService := service.NewAuthService(cfg)

	// 3. Optional Redis: list cache, event stream and invalidation workers
	var (
		listCache cache.ListCache
		publisher queue.Publisher
		manager   *worker.Manager
	)
	if cfg.RedisURL != "" {
		rdb, err := redis.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rdb.Close()

		listCache = cache.NewListCache(rdb.Client, time.Duration(cfg.CacheTTLSeconds)*time.Second)
		publisher = queue.NewPublisher(rdb.Client)
		userService.SetPublisher(publisher)
		userService.SetCache(listCache)

		managerCfg := worker.DefaultManagerConfig()
		managerCfg.WorkerCount = cfg.WorkerCount
		manager = worker.NewManager(queue.NewConsumer(rdb.Client), worker.NewHandler(listCache), managerCfg)
		if err := manager.Start(ctx); err != nil {
			return fmt.Errorf("failed to start workers: %w", err)
		}
		defer manager.Stop()
	} else {
		log.Println("[Server] REDIS_URL not set, list cache and events disabled")
	}

	listFollowService := service.NewListFollowService(listFollowRepo, listCache, publisher)

	// 4. Optional R2 profile image uploads
	var profileImages *service.ProfileImageService
	if cfg.MediaEnabled() {
		mediaService, err := service.NewMediaService(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to init media service: %w", err)
		}
		profileImages = service.NewProfileImageService(userRepo, mediaService)
	} else {
		log.Println("[Server] R2 not configured, profile image uploads disabled")
	}

	// 5. Setup Server
	router := NewRouter(RouterConfig{
		AuthHandler:       handler.NewAuthHandler(userService, authService),
		UserHandler:       handler.NewUserHandler(userService, listFollowService),
		MediaHandler:      handler.NewMediaHandler(profileImages),
		AdminHandler:      handler.NewAdminHandler(userService),
		ListFollowHandler: handler.NewListFollowHandler(listFollowService),
		Users:             userService,
		JWTSecret:         cfg.JWTSecret,
	})

	srv := &stdhttp.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Server] Listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("[Server] Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
