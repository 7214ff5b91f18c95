package handler

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/krishkalaria12/snap-detect/gallery"
	"github.com/krishkalaria12/snap-detect/middleware"
	"github.com/krishkalaria12/snap-detect/models"
	"github.com/krishkalaria12/snap-detect/storage"
)

const (
	msgImageMissing   = "物体検知対象の画像が存在しません。"
	msgDetectFailed   = "物体検知処理でエラーが発生しました。"
	msgDeleteFailed   = "画像削除処理でエラーが発生しました。"
	msgImageRequired  = "画像ファイルは必須です。"
	msgImageExtDenied = "サポートされていない画像形式です。"
)

var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

func (h *Handler) Index(c *fiber.Ctx) error {
	images, err := h.Gallery.ListWithTags(c.UserContext())
	if err != nil {
		return err
	}
	return h.render(c, "detector/index", "画像一覧", fiber.Map{"Images": images})
}

func (h *Handler) Search(c *fiber.Ctx) error {
	search := c.Query("search")
	images, err := h.Gallery.Search(c.UserContext(), search)
	if err != nil {
		return err
	}
	return h.render(c, "detector/index", "画像一覧", fiber.Map{
		"Images": images,
		"Search": search,
	})
}

// ImageFile streams a stored image.
func (h *Handler) ImageFile(c *fiber.Ctx) error {
	name := c.Params("filename")
	r, err := h.Store.Open(c.UserContext(), name)
	if errors.Is(err, storage.ErrNotExist) || errors.Is(err, storage.ErrInvalidName) {
		return fiber.ErrNotFound
	}
	if err != nil {
		return err
	}
	c.Type(strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), "."))
	return c.SendStream(r)
}

func (h *Handler) UploadForm(c *fiber.Ctx) error {
	return h.render(c, "detector/upload", "画像アップロード", nil)
}

// Upload stores the image under a random name and records it for the
// current user.
func (h *Handler) Upload(c *fiber.Ctx) error {
	userID, err := middleware.CheckUserLoggedIn(c)
	if err != nil {
		return fiber.ErrUnauthorized
	}

	file, err := c.FormFile("image")
	if err != nil {
		return h.render(c, "detector/upload", "画像アップロード", fiber.Map{"Errors": []string{msgImageRequired}})
	}
	ext := filepath.Ext(file.Filename)
	if !allowedImageExts[strings.ToLower(ext)] {
		return h.render(c, "detector/upload", "画像アップロード", fiber.Map{"Errors": []string{msgImageExtDenied}})
	}

	blobFile, err := file.Open()
	if err != nil {
		return err
	}
	defer blobFile.Close()

	name := uuid.NewString() + ext
	if err := h.Store.Save(c.UserContext(), name, blobFile); err != nil {
		return err
	}
	if _, err := h.Gallery.Create(c.UserContext(), userID, name); err != nil {
		h.removeFiles(c, name)
		return err
	}

	h.Log.Info().Uint("user_id", userID).Str("file", name).Msg("image uploaded")
	return c.Redirect("/")
}

// Detect runs the detector on an image, stores the annotated copy and saves
// the found tags.
func (h *Handler) Detect(c *fiber.Ctx) error {
	ctx := c.UserContext()

	img, err := h.imageParam(c)
	if errors.Is(err, gallery.ErrImageNotFound) {
		h.flash(c, msgImageMissing)
		return c.Redirect("/")
	}
	if err != nil {
		return err
	}

	src, err := h.Store.Open(ctx, img.ImagePath)
	if errors.Is(err, storage.ErrNotExist) {
		h.flash(c, msgImageMissing)
		return c.Redirect("/")
	}
	if err != nil {
		return err
	}
	defer src.Close()

	start := time.Now()
	result, err := h.Pipeline.Run(ctx, src)
	if err != nil {
		h.Log.Error().Err(err).Uint("image_id", img.ID).Msg("detection failed")
		h.flash(c, msgDetectFailed)
		return c.Redirect("/")
	}

	detected := uuid.NewString() + ".jpg"
	if err := h.Store.Save(ctx, detected, bytes.NewReader(result.Image)); err != nil {
		h.Log.Error().Err(err).Uint("image_id", img.ID).Msg("failed to store detected image")
		h.flash(c, msgDetectFailed)
		return c.Redirect("/")
	}

	previous := img.ImagePath
	if err := h.Gallery.SaveDetection(ctx, img, result.Tags, detected); err != nil {
		h.Log.Error().Err(err).Uint("image_id", img.ID).Msg("failed to save detection")
		h.removeFiles(c, detected)
		h.flash(c, msgDetectFailed)
		return c.Redirect("/")
	}
	// The row now points at the annotated copy.
	h.removeFiles(c, previous)

	h.Log.Info().
		Uint("image_id", img.ID).
		Strs("tags", result.Tags).
		Dur("took", time.Since(start)).
		Msg("objects detected")
	return c.Redirect("/")
}

func (h *Handler) DeleteImage(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Redirect("/")
	}

	img, err := h.Gallery.Delete(c.UserContext(), uint(id))
	switch {
	case errors.Is(err, gallery.ErrImageNotFound):
	case err != nil:
		h.Log.Error().Err(err).Int("image_id", id).Msg("failed to delete image")
		h.flash(c, msgDeleteFailed)
	default:
		h.removeFiles(c, img.ImagePath)
	}
	return c.Redirect("/")
}

func (h *Handler) imageParam(c *fiber.Ctx) (*models.UserImage, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return nil, gallery.ErrImageNotFound
	}
	return h.Gallery.Get(c.UserContext(), uint(id))
}

type imageResponse struct {
	ID         uint      `json:"id"`
	ImagePath  string    `json:"image_path"`
	URL        string    `json:"url"`
	IsDetected bool      `json:"is_detected"`
	Username   string    `json:"username"`
	Tags       []string  `json:"tags"`
	CreatedAt  time.Time `json:"created_at"`
}

// APIImages lists images as JSON, filtered like Search.
func (h *Handler) APIImages(c *fiber.Ctx) error {
	images, err := h.Gallery.Search(c.UserContext(), c.Query("search"))
	if err != nil {
		h.Log.Error().Err(err).Msg("list images")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Database error",
			"data":    nil,
		})
	}

	data := make([]imageResponse, 0, len(images))
	for _, img := range images {
		data = append(data, imageResponse{
			ID:         img.ID,
			ImagePath:  img.ImagePath,
			URL:        "/images/" + img.ImagePath,
			IsDetected: img.IsDetected,
			Username:   img.User.Username,
			Tags:       img.TagNames(),
			CreatedAt:  img.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "Images found",
		"data":    data,
	})
}
