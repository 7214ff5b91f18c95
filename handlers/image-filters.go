package handler

import (
	"bytes"
	"errors"
	"image/jpeg"

	"github.com/gofiber/fiber/v2"
	"github.com/krishkalaria12/snap-detect/detector"
	"github.com/krishkalaria12/snap-detect/gallery"
	"github.com/krishkalaria12/snap-detect/storage"
)

// APIImagePreview returns a stored image as JPEG with the filters named in
// the query applied, e.g. ?grayscale&resize=640x480. Nothing is stored.
func (h *Handler) APIImagePreview(c *fiber.Ctx) error {
	img, err := h.imageParam(c)
	if errors.Is(err, gallery.ErrImageNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":  "error",
			"message": "Image not found",
			"data":    nil,
		})
	}
	if err != nil {
		return err
	}

	filters, err := detector.ParseFilters(c.Queries())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": err.Error(),
			"data":    nil,
		})
	}

	r, err := h.Store.Open(c.UserContext(), img.ImagePath)
	if errors.Is(err, storage.ErrNotExist) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":  "error",
			"message": "Image file not found",
			"data":    nil,
		})
	}
	if err != nil {
		return err
	}
	defer r.Close()

	src, err := detector.Decode(r)
	if err != nil {
		message := "Failed to decode image"
		if errors.Is(err, detector.ErrImageTooLarge) {
			message = "Image too large"
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"status":  "error",
			"message": message,
			"data":    nil,
		})
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, detector.ApplyFilters(src, filters), &jpeg.Options{Quality: detector.JPEGQuality}); err != nil {
		return err
	}
	c.Type("jpg")
	return c.Send(buf.Bytes())
}
