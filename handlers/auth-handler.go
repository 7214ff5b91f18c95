package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/krishkalaria12/snap-detect/auth"
	"github.com/krishkalaria12/snap-detect/middleware"
	"github.com/krishkalaria12/snap-detect/users"
)

const (
	msgDuplicateEmail     = "指定のメールアドレスは登録済みです"
	msgInvalidCredentials = "メールアドレスかパスワードが不正です"
)

// newUserForm is the signup and user creation form. Unlike users.Input the
// password is mandatory.
type newUserForm struct {
	Username string `form:"username" validate:"required,max=255"`
	Email    string `form:"email" validate:"required,email,max=255"`
	Password string `form:"password" validate:"required,maxbytes=72"`
}

func (f newUserForm) input() users.Input {
	return users.Input{Username: f.Username, Email: f.Email, Password: f.Password}
}

func (h *Handler) SignupForm(c *fiber.Ctx) error {
	return h.render(c, "auth/signup", "新規登録", fiber.Map{
		"Next": c.Query("next"),
		"Form": newUserForm{},
	})
}

func (h *Handler) Signup(c *fiber.Ctx) error {
	var form newUserForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.ErrBadRequest
	}
	if errs := h.validationMessages(form); len(errs) > 0 {
		return h.render(c, "auth/signup", "新規登録", fiber.Map{
			"Next":   c.Query("next"),
			"Form":   form,
			"Errors": errs,
		})
	}

	user, err := h.Users.Create(c.UserContext(), form.input())
	if errors.Is(err, users.ErrDuplicateEmail) {
		h.flash(c, msgDuplicateEmail)
		return c.Redirect("/auth/signup")
	}
	if err != nil {
		return err
	}

	if _, err := h.login(c, user); err != nil {
		return err
	}
	h.Log.Info().Uint("user_id", user.ID).Msg("user signed up")
	return c.Redirect(middleware.SafeNext(c.Query("next")))
}

type loginForm struct {
	Email    string `form:"email"`
	Password string `form:"password"`
}

func (h *Handler) LoginForm(c *fiber.Ctx) error {
	return h.render(c, "auth/login", "ログイン", fiber.Map{"Next": c.Query("next")})
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var form loginForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.ErrBadRequest
	}

	user, err := h.Users.Authenticate(c.UserContext(), form.Email, form.Password)
	if err != nil {
		return err
	}
	if user == nil {
		h.flash(c, msgInvalidCredentials)
		return h.render(c, "auth/login", "ログイン", fiber.Map{
			"Next":  c.Query("next"),
			"Email": form.Email,
		})
	}

	if _, err := h.login(c, user); err != nil {
		return err
	}
	return c.Redirect(middleware.SafeNext(c.Query("next")))
}

func (h *Handler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
	})
	return c.Redirect("/auth/login")
}

// APILogin is the JSON login for API clients. The token is returned in the
// body and also set as cookie.
func (h *Handler) APILogin(c *fiber.Ctx) error {
	type LoginData struct {
		Identity string `json:"identity"`
		Password string `json:"password"`
	}

	type UserResponse struct {
		ID       uint   `json:"id"`
		Email    string `json:"email"`
		Username string `json:"username"`
		Token    string `json:"token"`
	}

	input := new(LoginData)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"status":  "error",
			"data":    nil,
		})
	}

	user, err := h.Users.Authenticate(c.UserContext(), input.Identity, input.Password)
	if err != nil {
		h.Log.Error().Err(err).Msg("authenticate")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Database error",
			"status":  "error",
			"data":    nil,
		})
	}
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Invalid identity or password",
			"status":  "error",
			"data":    nil,
		})
	}

	tokenStr, err := h.login(c, user)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to generate token",
			"status":  "error",
			"data":    nil,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Login successful",
		"status":  "success",
		"data": UserResponse{
			ID:       user.ID,
			Email:    user.Email,
			Username: user.Username,
			Token:    tokenStr,
		},
	})
}
