package cmd

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"campus-errands.com/campus-errands/internal/auth"
	config "campus-errands.com/campus-errands/internal/configs"
	httpapi "campus-errands.com/campus-errands/internal/http"
	"campus-errands.com/campus-errands/internal/media"
	"campus-errands.com/campus-errands/internal/refine"
	repository "campus-errands.com/campus-errands/internal/repositories"
	"campus-errands.com/campus-errands/internal/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  "Starts the campus errand marketplace HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			log.Println(".env file not found, using environment variables")
		}

		cfg := config.Load()

		database := config.NewDatabaseClient(cfg.DatabaseDSN)
		redisClient := config.NewRedisClient(cfg.RedisAddr)
		defer redisClient.Close()

		errandRepo := repository.NewErrandRepository(database)
		userRepo := repository.NewUserRepository(database)
		chatRepo := repository.NewChatRepository(database)

		tokenService := auth.NewTokenService(
			cfg.JWTSecret,
			cfg.JWTIssuer,
			time.Duration(cfg.TokenTTLHours)*time.Hour,
		)
		authService := auth.NewService(userRepo, tokenService)

		errandService := services.NewErrandService(errandRepo)
		offerService := services.NewOfferService(errandRepo, userRepo)
		completionService := services.NewCompletionService(errandRepo, userRepo)
		chatService := services.NewChatService(
			chatRepo,
			errandRepo,
			redisClient,
			time.Duration(cfg.UnreadCacheTTLSeconds)*time.Second,
		)

		refiner := refine.NewOpenAIRefiner(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
		mediaStore := media.NewCloudinaryStore(
			cfg.CloudinaryCloudName,
			cfg.CloudinaryAPIKey,
			cfg.CloudinaryAPISecret,
			cfg.CloudinaryFolder,
		)

		e := echo.New()

		handler := httpapi.NewHandler(
			authService,
			errandService,
			offerService,
			completionService,
			chatService,
			userRepo,
			refiner,
			mediaStore,
		)
		httpapi.Register(e, handler, tokenService, cfg.RateLimit)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		go func() {
			log.Printf("HTTP server listening on %s", cfg.AppURL)
			if err := e.Start(cfg.AppURL); err != nil {
				log.Printf("server stopped: %v", err)
			}
		}()

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second,
		)
		defer cancel()
		_ = e.Shutdown(shutdownCtx)

		log.Println("HTTP server shut down gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
