package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/krishkalaria12/snap-detect/auth"
	"github.com/krishkalaria12/snap-detect/detector"
	"github.com/krishkalaria12/snap-detect/gallery"
	"github.com/krishkalaria12/snap-detect/mailer"
	"github.com/krishkalaria12/snap-detect/middleware"
	"github.com/krishkalaria12/snap-detect/models"
	"github.com/krishkalaria12/snap-detect/storage"
	"github.com/krishkalaria12/snap-detect/users"
	"github.com/rs/zerolog"
)

// CSRFContextKey is where the csrf middleware stores the form token.
const CSRFContextKey = "csrf"

// Handler serves every route of the application.
type Handler struct {
	Users    *users.Service
	Gallery  *gallery.Service
	Store    storage.Store
	Pipeline *detector.Pipeline
	Tokens   *auth.Service
	Mailer   *mailer.Mailer
	Flash    *middleware.Flash
	Log      zerolog.Logger

	// SecureCookie marks the JWT cookie Secure, for deployments behind HTTPS.
	SecureCookie bool

	validate *validator.Validate
}

func (h *Handler) validator() *validator.Validate {
	if h.validate == nil {
		v := validator.New(validator.WithRequiredStructEnabled())
		if err := v.RegisterValidation("maxbytes", maxBytes); err != nil {
			panic(err)
		}
		h.validate = v
	}
	return h.validate
}

// render executes a page template inside the base layout, adding the
// current user, pending flash messages and the csrf token.
func (h *Handler) render(c *fiber.Ctx, name, title string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	data["Title"] = title
	data["User"] = middleware.CurrentUser(c)
	data["Flashes"] = h.Flash.Pop(c)
	data["CSRF"], _ = c.Locals(CSRFContextKey).(string)
	return c.Render(name, data, "layouts/base")
}

func (h *Handler) flash(c *fiber.Ctx, messages ...string) {
	if err := h.Flash.Add(c, messages...); err != nil {
		h.Log.Error().Err(err).Msg("failed to store flash message")
	}
}

// maxBytes limits the UTF-8 length of a string field. bcrypt only accepts
// passwords up to 72 bytes, which "max" (counting runes) does not enforce.
func maxBytes(fl validator.FieldLevel) bool {
	n, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= n
}

var fieldLabels = map[string]string{
	"Username":    "ユーザー名",
	"Email":       "メールアドレス",
	"Password":    "パスワード",
	"Description": "問い合わせ内容",
}

// validationMessages turns validator errors into form messages.
func (h *Handler) validationMessages(v any) []string {
	err := h.validator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}

	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		label := fieldLabels[fe.Field()]
		if label == "" {
			label = fe.Field()
		}
		switch fe.Tag() {
		case "required":
			messages = append(messages, label+"は必須です")
		case "email":
			messages = append(messages, "メールアドレスの形式で入力してください")
		case "max":
			messages = append(messages, fmt.Sprintf("%sは%s文字以内で入力してください", label, fe.Param()))
		case "maxbytes":
			messages = append(messages, fmt.Sprintf("%sは%sバイト以内で入力してください", label, fe.Param()))
		default:
			messages = append(messages, label+"が不正です")
		}
	}
	return messages
}

// login issues a token for user and stores it in the JWT cookie.
func (h *Handler) login(c *fiber.Ctx, user *models.User) (string, error) {
	tokenStr, err := h.Tokens.Token(user)
	if err != nil {
		return "", err
	}
	c.Cookie(&fiber.Cookie{
		Name:     auth.CookieName,
		Value:    tokenStr,
		Expires:  time.Now().Add(auth.CookieDuration),
		HTTPOnly: true,
		Secure:   h.SecureCookie,
		SameSite: "Lax",
	})
	return tokenStr, nil
}

// removeFiles drops stored files that are no longer referenced. Failures are
// only logged.
func (h *Handler) removeFiles(c *fiber.Ctx, names ...string) {
	for _, name := range names {
		if err := h.Store.Remove(c.UserContext(), name); err != nil && !errors.Is(err, storage.ErrNotExist) {
			h.Log.Warn().Err(err).Str("file", name).Msg("failed to remove stored file")
		}
	}
}

// ErrorHandler renders the error pages, or the JSON envelope under /api.
func (h *Handler) ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		h.Log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("request failed")
	}

	if strings.HasPrefix(c.Path(), "/api") {
		message := statusMessage(code)
		if fe != nil && code < fiber.StatusInternalServerError {
			message = fe.Message
		}
		return c.Status(code).JSON(fiber.Map{
			"status":  "error",
			"message": message,
			"data":    nil,
		})
	}

	c.Status(code)
	switch {
	case code == fiber.StatusNotFound:
		err = h.render(c, "errors/404", "Not Found", nil)
	case code >= fiber.StatusInternalServerError:
		err = h.render(c, "errors/500", "Internal Server Error", nil)
	default:
		return c.SendString(fe.Message)
	}
	if err != nil {
		return c.SendString(statusMessage(code))
	}
	return nil
}

func statusMessage(code int) string {
	if msg := utils.StatusMessage(code); msg != "" {
		return msg
	}
	return "Error"
}

func Healthz(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "ok",
		"data":    nil,
	})
}
