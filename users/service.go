package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/krishkalaria12/snap-detect/models"
	"gorm.io/gorm"
)

var (
	ErrDuplicateEmail = errors.New("users: email already registered")
	ErrUserNotFound   = errors.New("users: user not found")
)

// Input carries the user fields accepted by the signup and CRUD forms.
// An empty Password on Update keeps the current one. The maxbytes tag is
// registered by the HTTP handlers' validator.
type Input struct {
	Username string `form:"username" json:"username" validate:"required,max=255"`
	Email    string `form:"email" json:"email" validate:"required,email,max=255"`
	Password string `form:"password" json:"password" validate:"omitempty,maxbytes=72"`
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// IsDuplicateEmail reports whether another user than exceptID already uses email.
func (s *Service) IsDuplicateEmail(ctx context.Context, email string, exceptID uint) (bool, error) {
	var count int64
	q := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Service) Create(ctx context.Context, in Input) (*models.User, error) {
	dup, err := s.IsDuplicateEmail(ctx, in.Email, 0)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, ErrDuplicateEmail
	}

	user := &models.User{Username: in.Username, Email: in.Email}
	if err := user.SetPassword(in.Password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Service) Update(ctx context.Context, id uint, in Input) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	dup, err := s.IsDuplicateEmail(ctx, in.Email, id)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, ErrDuplicateEmail
	}

	user.Username = in.Username
	user.Email = in.Email
	if in.Password != "" {
		if err := user.SetPassword(in.Password); err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
	}

	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes the user together with the user's images and their tags.
// It returns the image paths that were owned by the user so the caller can
// drop the stored files.
func (s *Service) Delete(ctx context.Context, id uint) ([]string, error) {
	var paths []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		if err := tx.Model(&models.UserImage{}).Where("user_id = ?", id).Pluck("image_path", &paths).Error; err != nil {
			return err
		}

		imageIDs := tx.Model(&models.UserImage{}).Select("id").Where("user_id = ?", id)
		if err := tx.Where("user_image_id IN (?)", imageIDs).Delete(&models.UserImageTag{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.UserImage{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// Authenticate looks the user up by email or username and checks password.
// A nil user with a nil error means the credentials did not match.
func (s *Service) Authenticate(ctx context.Context, identity, password string) (*models.User, error) {
	var user models.User
	q := s.db.WithContext(ctx)
	if isEmail(identity) {
		q = q.Where("email = ?", identity)
	} else {
		q = q.Where("username = ?", identity)
	}

	if err := q.First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if !user.VerifyPassword(password) {
		return nil, nil
	}
	return &user, nil
}

func isEmail(identity string) bool {
	_, err := mail.ParseAddress(identity)
	return err == nil
}
