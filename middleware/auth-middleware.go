package middleware

import (
	"errors"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/krishkalaria12/snap-detect/auth"
	"github.com/krishkalaria12/snap-detect/models"
	"github.com/krishkalaria12/snap-detect/users"
	"github.com/rs/zerolog"
)

const userKey = "user"

// AuthMiddleware loads the user identified by the JWT cookie or the
// Authorization header into the request locals. Requests without a valid
// token pass through anonymously.
func AuthMiddleware(tokens *auth.Service, userSvc *users.Service, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
		if tokenStr == "" {
			tokenStr = c.Cookies(auth.CookieName)
		}
		if tokenStr == "" {
			return c.Next()
		}

		userID, err := tokens.Parse(tokenStr)
		if err != nil {
			log.Debug().Err(err).Str("path", c.Path()).Msg("ignoring invalid token")
			return c.Next()
		}

		user, err := userSvc.Get(c.UserContext(), userID)
		if err != nil {
			if !errors.Is(err, users.ErrUserNotFound) {
				return err
			}
			return c.Next()
		}

		c.Locals(userKey, user)
		return c.Next()
	}
}

// LoginRequired redirects anonymous browser requests to the login page,
// remembering the requested path in "next".
func LoginRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if CurrentUser(c) != nil {
			return c.Next()
		}
		return c.Redirect("/auth/login?next=" + url.QueryEscape(c.OriginalURL()))
	}
}

// APIAuthRequired rejects anonymous API requests with 401.
func APIAuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if CurrentUser(c) != nil {
			return c.Next()
		}
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"status":  "error",
			"message": "You are not authorized!",
			"data":    nil,
		})
	}
}

// CurrentUser returns the logged in user or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(userKey).(*models.User)
	return user
}

func CheckUserLoggedIn(c *fiber.Ctx) (uint, error) {
	user := CurrentUser(c)
	if user == nil {
		return 0, errors.New("user not logged in")
	}
	return user.ID, nil
}

// SafeNext returns next when it is a local path, otherwise "/".
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return "/"
	}
	return next
}
