package gallery

import (
	"context"
	"errors"

	"github.com/krishkalaria12/snap-detect/models"
	"gorm.io/gorm"
)

var ErrImageNotFound = errors.New("gallery: image not found")

// Service queries uploaded images together with their owners and tags.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) withRelations(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("User").
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Order("created_at DESC").
		Order("id DESC")
}

// ListWithTags returns every image, newest first.
func (s *Service) ListWithTags(ctx context.Context) ([]models.UserImage, error) {
	var images []models.UserImage
	if err := s.withRelations(ctx).Find(&images).Error; err != nil {
		return nil, err
	}
	return images, nil
}

// Search returns the images having at least one tag whose name contains
// text. Each returned image carries all of its tags, not only the matching
// ones. An empty text matches every image.
func (s *Service) Search(ctx context.Context, text string) ([]models.UserImage, error) {
	if text == "" {
		return s.ListWithTags(ctx)
	}

	matching := s.db.Model(&models.UserImageTag{}).
		Select("user_image_id").
		Where("tag_name LIKE ?", "%"+text+"%")

	var images []models.UserImage
	if err := s.withRelations(ctx).Where("id IN (?)", matching).Find(&images).Error; err != nil {
		return nil, err
	}
	return images, nil
}

func (s *Service) Create(ctx context.Context, userID uint, imagePath string) (*models.UserImage, error) {
	img := &models.UserImage{UserID: userID, ImagePath: imagePath}
	if err := s.db.WithContext(ctx).Create(img).Error; err != nil {
		return nil, err
	}
	return img, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.UserImage, error) {
	var img models.UserImage
	if err := s.db.WithContext(ctx).Preload("Tags").First(&img, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrImageNotFound
		}
		return nil, err
	}
	return &img, nil
}

// SaveDetection points img at the annotated file, marks it detected and
// replaces its tags, all in one transaction.
func (s *Service) SaveDetection(ctx context.Context, img *models.UserImage, tags []string, detectedPath string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.UserImage{}).Where("id = ?", img.ID).Updates(map[string]any{
			"image_path":  detectedPath,
			"is_detected": true,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrImageNotFound
		}

		if err := tx.Where("user_image_id = ?", img.ID).Delete(&models.UserImageTag{}).Error; err != nil {
			return err
		}

		rows := make([]models.UserImageTag, 0, len(tags))
		for _, t := range tags {
			rows = append(rows, models.UserImageTag{UserImageID: img.ID, TagName: t})
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}

		img.ImagePath = detectedPath
		img.IsDetected = true
		img.Tags = rows
		return nil
	})
}

// Delete removes the image and its tags in one transaction and returns the
// deleted row.
func (s *Service) Delete(ctx context.Context, id uint) (*models.UserImage, error) {
	var img models.UserImage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&img, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrImageNotFound
			}
			return err
		}
		if err := tx.Where("user_image_id = ?", id).Delete(&models.UserImageTag{}).Error; err != nil {
			return err
		}
		return tx.Delete(&img).Error
	})
	if err != nil {
		return nil, err
	}
	return &img, nil
}
