package handler_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/krishkalaria12/snap-detect/detector"
	"github.com/krishkalaria12/snap-detect/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var errDBDown = errors.New("database is down")

func failWith(err error) func(*gorm.DB) {
	return func(tx *gorm.DB) { _ = tx.AddError(err) }
}

// storedFiles lists the names in the test store.
func (e *testEnv) storedFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(e.store.Dir())
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

// hugePNG is a PNG header announcing w x h pixels with no pixel data.
func hugePNG(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	chunk := make([]byte, 4+13)
	copy(chunk, "IHDR")
	binary.BigEndian.PutUint32(chunk[4:], w)
	binary.BigEndian.PutUint32(chunk[8:], h)
	chunk[12] = 8
	_ = binary.Write(&buf, binary.BigEndian, uint32(13))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestDetect_SaveFailureKeepsTagsAndFiles(t *testing.T) {
	env := newTestEnv(t,
		detector.Detection{Box: image.Rect(10, 10, 50, 50), Label: "dog", Score: 0.9},
	)
	u := env.createUser(t, "taro@example.com")
	cookie := env.loginCookie(t, u)
	img := env.storeImage(t, u, "a.png")
	require.NoError(t, env.gallery.SaveDetection(context.Background(), img, []string{"cat"}, "a.png"))

	require.NoError(t, env.db.Callback().Create().Before("gorm:create").
		Register("test:fail_create", failWith(errDBDown)))

	resp := env.do(t, httptest.NewRequest(http.MethodPost, "/detect/"+itoa(img.ID), nil), cookie)
	assert.Contains(t, env.follow(t, resp, cookie), "物体検知処理でエラーが発生しました。")

	got, err := env.gallery.Get(context.Background(), img.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.png", got.ImagePath)
	assert.Equal(t, []string{"cat"}, got.TagNames())
	assert.Equal(t, []string{"a.png"}, env.storedFiles(t))
}

func TestDetect_RejectsHugeImage(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "taro@example.com")
	cookie := env.loginCookie(t, u)

	require.NoError(t, env.store.Save(context.Background(), "huge.png", bytes.NewReader(hugePNG(12000, 12000))))
	img, err := env.gallery.Create(context.Background(), u.ID, "huge.png")
	require.NoError(t, err)

	resp := env.do(t, httptest.NewRequest(http.MethodPost, "/detect/"+itoa(img.ID), nil), cookie)
	assert.Contains(t, env.follow(t, resp, cookie), "物体検知処理でエラーが発生しました。")

	got, err := env.gallery.Get(context.Background(), img.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDetected)

	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/api/images/"+itoa(img.ID)+"/preview?grayscale", nil), cookie)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "Image too large", decodeEnvelope(t, resp).Message)
}

func TestDeleteImage_DatabaseFailure(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "taro@example.com")
	cookie := env.loginCookie(t, u)
	img := env.storeImage(t, u, "a.png")

	require.NoError(t, env.db.Callback().Delete().Before("gorm:delete").
		Register("test:fail_delete", failWith(errDBDown)))

	resp := env.do(t, httptest.NewRequest(http.MethodPost, "/images/delete/"+itoa(img.ID), nil), cookie)
	assert.Contains(t, env.follow(t, resp, cookie), "画像削除処理でエラーが発生しました。")

	var count int64
	require.NoError(t, env.db.Model(&models.UserImage{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	assert.Equal(t, []string{"a.png"}, env.storedFiles(t))
}

func TestSignup_RejectsPasswordOverByteLimit(t *testing.T) {
	env := newTestEnv(t)

	// 72 characters, 216 bytes
	resp := env.do(t, formRequest(http.MethodPost, "/auth/signup", url.Values{
		"username": {"taro"},
		"email":    {"taro@example.com"},
		"password": {strings.Repeat("あ", 72)},
	}))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "パスワードは72バイト以内で入力してください")

	var count int64
	require.NoError(t, env.db.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)

	resp = env.do(t, formRequest(http.MethodPost, "/auth/signup", url.Values{
		"username": {"taro"},
		"email":    {"taro@example.com"},
		"password": {strings.Repeat("あ", 24)},
	}))
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
}

func TestCrud_RejectsPasswordOverByteLimit(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin@example.com")
	cookie := env.loginCookie(t, admin)
	long := strings.Repeat("あ", 72)

	resp := env.do(t, formRequest(http.MethodPost, "/crud/users/new", url.Values{
		"username": {"jiro"},
		"email":    {"jiro@example.com"},
		"password": {long},
	}), cookie)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "パスワードは72バイト以内で入力してください")

	resp = env.do(t, formRequest(http.MethodPost, "/crud/users/"+itoa(admin.ID), url.Values{
		"username": {"admin"},
		"email":    {"admin@example.com"},
		"password": {long},
	}), cookie)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "パスワードは72バイト以内で入力してください")

	u, err := env.users.Authenticate(context.Background(), "admin@example.com", "password")
	require.NoError(t, err)
	assert.NotNil(t, u)
}

func TestAPI_InternalErrorEnvelope(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "taro@example.com")
	img := env.storeImage(t, u, "a.png")

	require.NoError(t, env.db.Callback().Query().Before("gorm:query").
		Register("test:fail_image_query", func(tx *gorm.DB) {
			if tx.Statement.Table == "user_images" {
				_ = tx.AddError(errDBDown)
			}
		}))

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/api/images/"+itoa(img.ID)+"/preview?grayscale", nil), env.loginCookie(t, u))
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	body := decodeEnvelope(t, resp)
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, "Internal Server Error", body.Message)
}
