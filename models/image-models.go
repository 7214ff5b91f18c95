package models

import (
	"time"
)

// UserImage is an uploaded picture. ImagePath is the name of the stored
// object; after detection it points at the annotated copy.
type UserImage struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	UserID     uint      `json:"user_id" gorm:"not null;index"`
	ImagePath  string    `json:"image_path" gorm:"size:255;not null"`
	IsDetected bool      `json:"is_detected" gorm:"not null;default:false"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Relationships
	User User           `json:"user" gorm:"foreignKey:UserID"`
	Tags []UserImageTag `json:"tags,omitempty" gorm:"foreignKey:UserImageID"`
}

// UserImageTag is a label the detector found on a UserImage.
type UserImageTag struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	UserImageID uint      `json:"user_image_id" gorm:"not null;index"`
	TagName     string    `json:"tag_name" gorm:"size:255;not null;index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TagNames returns the tag names in insertion order.
func (i UserImage) TagNames() []string {
	names := make([]string, 0, len(i.Tags))
	for _, t := range i.Tags {
		names = append(names, t.TagName)
	}
	return names
}
