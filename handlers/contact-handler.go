package handler

import (
	"github.com/gofiber/fiber/v2"
)

const (
	contactSubject = "問い合わせありがとうございました。"
	contactThanks  = "問い合わせ内容はメールにて送信しました。問い合わせありがとうございます。"
)

type contactForm struct {
	Username    string `form:"username" validate:"required"`
	Email       string `form:"email" validate:"required,email"`
	Description string `form:"description" validate:"required"`
}

func (h *Handler) Contact(c *fiber.Ctx) error {
	return h.render(c, "contact/contact", "問い合わせ", nil)
}

func (h *Handler) ContactCompletePage(c *fiber.Ctx) error {
	return h.render(c, "contact/complete", "問い合わせ完了", nil)
}

// ContactComplete validates the contact form and mails a confirmation to the
// sender.
func (h *Handler) ContactComplete(c *fiber.Ctx) error {
	var form contactForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.ErrBadRequest
	}
	if errs := h.validationMessages(form); len(errs) > 0 {
		h.flash(c, errs...)
		return c.Redirect("/contact")
	}

	err := h.Mailer.SendTemplate(c.UserContext(), form.Email, contactSubject, "contact_mail", fiber.Map{
		"Username":    form.Username,
		"Description": form.Description,
	})
	if err != nil {
		return err
	}

	h.flash(c, contactThanks)
	return c.Redirect("/contact/complete")
}
