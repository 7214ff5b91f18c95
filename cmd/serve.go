package cmd

import (
	"context"
	"fmt"
	"image"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/krishkalaria12/snap-detect/auth"
	"github.com/krishkalaria12/snap-detect/config"
	"github.com/krishkalaria12/snap-detect/database"
	"github.com/krishkalaria12/snap-detect/detector"
	"github.com/krishkalaria12/snap-detect/detector/dnn"
	"github.com/krishkalaria12/snap-detect/detector/gemini"
	"github.com/krishkalaria12/snap-detect/gallery"
	handler "github.com/krishkalaria12/snap-detect/handlers"
	"github.com/krishkalaria12/snap-detect/mailer"
	"github.com/krishkalaria12/snap-detect/middleware"
	"github.com/krishkalaria12/snap-detect/router"
	"github.com/krishkalaria12/snap-detect/storage"
	"github.com/krishkalaria12/snap-detect/users"
	"github.com/krishkalaria12/snap-detect/views"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	db, err := database.Open(cfg, log)
	if err != nil {
		return err
	}
	defer database.Close(db)
	if err := database.Migrate(db); err != nil {
		return err
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}

	det, err := newDetector(ctx, cfg)
	if err != nil {
		return err
	}
	if c, ok := det.(io.Closer); ok {
		defer c.Close()
	}

	sender, err := mailer.NewSender(cfg.Mail, log)
	if err != nil {
		return err
	}
	mail, err := mailer.New(sender, cfg.Mail.DefaultSender, views.NewEngine(), views.FS)
	if err != nil {
		return err
	}

	sessions := session.New(session.Config{
		Expiration:     24 * time.Hour,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
	})

	tokens := auth.NewService(cfg.JWTSecret)
	userSvc := users.NewService(db)
	h := &handler.Handler{
		Users:    userSvc,
		Gallery:  gallery.NewService(db),
		Store:    store,
		Pipeline: detector.NewPipeline(det, cfg.DetectorBackend, cfg.ScoreThreshold),
		Tokens:   tokens,
		Mailer:   mail,
		Flash:    middleware.NewFlash(sessions),
		Log:      log,
	}

	app := router.NewApp(h, router.Options{
		Auth: middleware.AuthMiddleware(tokens, userSvc, log),
		CSRF: cfg.CSRFEnabled,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Str("detector", cfg.DetectorBackend).Str("storage", cfg.StorageBackend).Msg("server is listening")
		errCh <- app.Listen(fmt.Sprintf(":%d", cfg.Port))
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	return app.ShutdownWithTimeout(shutdownTimeout)
}

func newStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.StorageBackend {
	case config.StorageGCS:
		return storage.NewGCSStore(ctx, cfg.GCSBucketName, cfg.GCSCredentials)
	default:
		return storage.NewLocalStore(cfg.UploadFolder)
	}
}

func newDetector(ctx context.Context, cfg *config.Config) (detector.Detector, error) {
	switch cfg.DetectorBackend {
	case config.DetectorGemini:
		return gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	case config.DetectorNone:
		return detector.DetectorFunc(func(context.Context, image.Image) ([]detector.Detection, error) {
			return nil, nil
		}), nil
	default:
		return dnn.New(cfg.ModelPath, cfg.ModelConfigPath)
	}
}
