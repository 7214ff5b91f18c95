package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/krishkalaria12/snap-detect/auth"
	"github.com/krishkalaria12/snap-detect/middleware"
	"github.com/krishkalaria12/snap-detect/models"
	"github.com/krishkalaria12/snap-detect/users"
)

func (h *Handler) ListUsers(c *fiber.Ctx) error {
	list, err := h.Users.List(c.UserContext())
	if err != nil {
		return err
	}
	return h.render(c, "crud/index", "ユーザー一覧", fiber.Map{"Users": list})
}

func (h *Handler) NewUserForm(c *fiber.Ctx) error {
	return h.render(c, "crud/create", "ユーザー新規作成", fiber.Map{"Form": newUserForm{}})
}

func (h *Handler) CreateUser(c *fiber.Ctx) error {
	var form newUserForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.ErrBadRequest
	}

	errs := h.validationMessages(form)
	if len(errs) == 0 {
		_, err := h.Users.Create(c.UserContext(), form.input())
		switch {
		case errors.Is(err, users.ErrDuplicateEmail):
			errs = []string{msgDuplicateEmail}
		case err != nil:
			return err
		default:
			return c.Redirect("/crud/")
		}
	}

	return h.render(c, "crud/create", "ユーザー新規作成", fiber.Map{
		"Form":   form,
		"Errors": errs,
	})
}

// lookupUser resolves the :id parameter; unknown ids are 404.
func (h *Handler) lookupUser(c *fiber.Ctx) (*models.User, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return nil, fiber.ErrNotFound
	}
	user, err := h.Users.Get(c.UserContext(), uint(id))
	if errors.Is(err, users.ErrUserNotFound) {
		return nil, fiber.ErrNotFound
	}
	return user, err
}

func (h *Handler) EditUserForm(c *fiber.Ctx) error {
	user, err := h.lookupUser(c)
	if err != nil {
		return err
	}
	return h.render(c, "crud/edit", "ユーザー編集", fiber.Map{
		"Target": user,
		"Form":   users.Input{Username: user.Username, Email: user.Email},
	})
}

func (h *Handler) UpdateUser(c *fiber.Ctx) error {
	user, err := h.lookupUser(c)
	if err != nil {
		return err
	}

	var form users.Input
	if err := c.BodyParser(&form); err != nil {
		return fiber.ErrBadRequest
	}

	errs := h.validationMessages(form)
	if len(errs) == 0 {
		_, err := h.Users.Update(c.UserContext(), user.ID, form)
		switch {
		case errors.Is(err, users.ErrDuplicateEmail):
			errs = []string{msgDuplicateEmail}
		case err != nil:
			return err
		default:
			return c.Redirect("/crud/")
		}
	}

	return h.render(c, "crud/edit", "ユーザー編集", fiber.Map{
		"Target": user,
		"Form":   form,
		"Errors": errs,
	})
}

// DeleteUser removes the user with all images and tags. Deleting yourself
// also logs you out.
func (h *Handler) DeleteUser(c *fiber.Ctx) error {
	user, err := h.lookupUser(c)
	if err != nil {
		return err
	}

	paths, err := h.Users.Delete(c.UserContext(), user.ID)
	if err != nil {
		return err
	}
	h.removeFiles(c, paths...)
	h.Log.Info().Uint("user_id", user.ID).Int("images", len(paths)).Msg("user deleted")

	if current := middleware.CurrentUser(c); current != nil && current.ID == user.ID {
		c.Cookie(&fiber.Cookie{
			Name:     auth.CookieName,
			Value:    "",
			Expires:  time.Now().Add(-time.Hour),
			HTTPOnly: true,
			SameSite: "Lax",
		})
	}
	return c.Redirect("/crud/")
}

func (h *Handler) APIGetUser(c *fiber.Ctx) error {
	type UserResponse struct {
		ID       uint   `json:"id"`
		Email    string `json:"email"`
		Username string `json:"username"`
	}

	user, err := h.lookupUser(c)
	if err != nil {
		if errors.Is(err, fiber.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"status": "error", "message": "No user found with ID", "data": nil})
		}
		return err
	}

	return c.JSON(fiber.Map{"status": "success", "message": "User found", "data": UserResponse{
		ID:       user.ID,
		Email:    user.Email,
		Username: user.Username,
	}})
}
