package router

import (
	"io"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	handler "github.com/krishkalaria12/snap-detect/handlers"
	"github.com/krishkalaria12/snap-detect/middleware"
	"github.com/krishkalaria12/snap-detect/views"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MaxUploadSize bounds request bodies, and so image uploads.
const MaxUploadSize = 16 * 1024 * 1024

type Options struct {
	// Auth loads the current user; see middleware.AuthMiddleware.
	Auth fiber.Handler
	// CSRF enables token checks on browser forms.
	CSRF bool
	// AccessLog receives the access log. Defaults to stdout.
	AccessLog io.Writer
}

// NewApp builds the fiber application with every route of the service.
func NewApp(h *handler.Handler, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "snap-detect",
		Views:        views.NewEngine(),
		ErrorHandler: h.ErrorHandler,
		BodyLimit:    MaxUploadSize,
	})

	accessLog := opts.AccessLog
	if accessLog == nil {
		accessLog = os.Stdout
	}
	app.Use(recover.New())
	app.Use(middleware.Metrics())
	app.Use(logger.New(logger.Config{Output: accessLog}))

	if opts.Auth != nil {
		app.Use(opts.Auth)
	}
	if opts.CSRF {
		app.Use(csrf.New(csrf.Config{
			KeyLookup:      "form:_csrf",
			CookieName:     "csrf_",
			CookieSameSite: "Lax",
			CookieHTTPOnly: true,
			ContextKey:     handler.CSRFContextKey,
			Next: func(c *fiber.Ctx) bool {
				return strings.HasPrefix(c.Path(), "/api")
			},
		}))
	}

	SetupRoutes(app, h)
	return app
}

func SetupRoutes(app *fiber.App, h *handler.Handler) {
	loginRequired := middleware.LoginRequired()

	app.Get("/healthz", handler.Healthz)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Detector
	app.Get("/", h.Index)
	app.Get("/images/search", h.Search)
	app.Get("/images/:filename", h.ImageFile)
	app.Get("/upload", loginRequired, h.UploadForm)
	app.Post("/upload", loginRequired, h.Upload)
	app.Post("/detect/:id", loginRequired, h.Detect)
	app.Post("/images/delete/:id", loginRequired, h.DeleteImage)

	// Auth
	auth := app.Group("/auth")
	auth.Get("/signup", h.SignupForm)
	auth.Post("/signup", h.Signup)
	auth.Get("/login", h.LoginForm)
	auth.Post("/login", h.Login)
	auth.Get("/logout", h.Logout)

	// User CRUD
	crud := app.Group("/crud", loginRequired)
	crud.Get("/", h.ListUsers)
	crud.Get("/users/new", h.NewUserForm)
	crud.Post("/users/new", h.CreateUser)
	crud.Get("/users/:id", h.EditUserForm)
	crud.Post("/users/:id", h.UpdateUser)
	crud.Post("/users/:id/delete", h.DeleteUser)

	// Contact
	app.Get("/contact", h.Contact)
	app.Get("/contact/complete", h.ContactCompletePage)
	app.Post("/contact/complete", h.ContactComplete)

	// API
	api := app.Group("/api")
	api.Post("/auth/login", h.APILogin)
	api.Get("/images", middleware.APIAuthRequired(), h.APIImages)
	api.Get("/images/:id/preview", middleware.APIAuthRequired(), h.APIImagePreview)
	api.Get("/users/:id", middleware.APIAuthRequired(), h.APIGetUser)
}
