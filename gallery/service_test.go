package gallery

import (
	"context"
	"testing"
	"time"

	"github.com/krishkalaria12/snap-detect/database/dbtest"
	"github.com/krishkalaria12/snap-detect/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*Service, *gorm.DB, *models.User) {
	t.Helper()
	db := dbtest.Open(t)
	user := &models.User{Username: "taro", Email: "taro@example.com"}
	require.NoError(t, user.SetPassword("password"))
	require.NoError(t, db.Create(user).Error)
	return NewService(db), db, user
}

func TestSaveDetectionAndList(t *testing.T) {
	s, _, user := setup(t)
	ctx := context.Background()

	img, err := s.Create(ctx, user.ID, "a.png")
	require.NoError(t, err)
	assert.False(t, img.IsDetected)

	require.NoError(t, s.SaveDetection(ctx, img, []string{"dog", "person"}, "b.jpg"))

	// a second run replaces the tags
	require.NoError(t, s.SaveDetection(ctx, img, []string{"cat"}, "c.jpg"))

	got, err := s.Get(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, "c.jpg", got.ImagePath)
	assert.True(t, got.IsDetected)
	assert.Equal(t, []string{"cat"}, got.TagNames())

	list, err := s.ListWithTags(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "taro", list[0].User.Username)
}

func TestSaveDetection_MissingImage(t *testing.T) {
	s, db, _ := setup(t)

	err := s.SaveDetection(context.Background(), &models.UserImage{ID: 42}, []string{"dog"}, "x.jpg")
	assert.ErrorIs(t, err, ErrImageNotFound)

	var count int64
	require.NoError(t, db.Model(&models.UserImageTag{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestListWithTags_NewestFirst(t *testing.T) {
	s, db, user := setup(t)
	ctx := context.Background()

	old, err := s.Create(ctx, user.ID, "old.png")
	require.NoError(t, err)
	require.NoError(t, db.Model(old).Update("created_at", time.Now().Add(-time.Hour)).Error)
	_, err = s.Create(ctx, user.ID, "new.png")
	require.NoError(t, err)

	list, err := s.ListWithTags(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new.png", list[0].ImagePath)
	assert.Equal(t, "old.png", list[1].ImagePath)
}

func TestSearch(t *testing.T) {
	s, _, user := setup(t)
	ctx := context.Background()

	a, err := s.Create(ctx, user.ID, "a.png")
	require.NoError(t, err)
	require.NoError(t, s.SaveDetection(ctx, a, []string{"dog", "person"}, "a.jpg"))

	b, err := s.Create(ctx, user.ID, "b.png")
	require.NoError(t, err)
	require.NoError(t, s.SaveDetection(ctx, b, []string{"cat"}, "b.jpg"))

	_, err = s.Create(ctx, user.ID, "c.png")
	require.NoError(t, err)

	got, err := s.Search(ctx, "do")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)
	// all tags of a matching image, not only the matching one
	assert.Equal(t, []string{"dog", "person"}, got[0].TagNames())

	got, err = s.Search(ctx, "zebra")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.Search(ctx, "")
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestDelete_RemovesTags(t *testing.T) {
	s, db, user := setup(t)
	ctx := context.Background()

	img, err := s.Create(ctx, user.ID, "a.png")
	require.NoError(t, err)
	require.NoError(t, s.SaveDetection(ctx, img, []string{"dog"}, "a.jpg"))

	deleted, err := s.Delete(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.jpg", deleted.ImagePath)

	var count int64
	require.NoError(t, db.Model(&models.UserImageTag{}).Count(&count).Error)
	assert.Zero(t, count)

	_, err = s.Get(ctx, img.ID)
	assert.ErrorIs(t, err, ErrImageNotFound)

	_, err = s.Delete(ctx, img.ID)
	assert.ErrorIs(t, err, ErrImageNotFound)
}
