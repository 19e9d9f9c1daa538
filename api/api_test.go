package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"filehub/files-api/internal/catalog"
	"filehub/files-api/internal/queue"
	"filehub/files-api/internal/session"
	"filehub/files-api/internal/storage"
	"filehub/files-api/model"
	"filehub/files-api/pkg/security"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeQueue struct {
	thumbnails []queue.ThumbnailPayload
	welcomes   []queue.WelcomePayload
}

func (f *fakeQueue) EnqueueThumbnail(_ context.Context, p queue.ThumbnailPayload) error {
	f.thumbnails = append(f.thumbnails, p)
	return nil
}

func (f *fakeQueue) EnqueueWelcome(_ context.Context, p queue.WelcomePayload) error {
	f.welcomes = append(f.welcomes, p)
	return nil
}

func newTestAPI(t *testing.T) (*API, *fakeQueue) {
	t.Helper()

	gin.SetMode(gin.TestMode)
	viper.Set("upload.max_size", int64(5<<20))

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Discard,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.User{}, model.File{}))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	q := &fakeQueue{}

	a := &API{
		DB:       db,
		Argon:    security.New(),
		Sessions: session.New(rdb, 24*time.Hour),
		Store:    store,
		Queue:    q,
		Catalog:  catalog.New(db, store, q),
	}
	a.setup()

	return a, q
}

func do(a *API, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)
	return w
}

func jsonReq(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// registerAndConnect runs the happy signup path and hands back a token
func registerAndConnect(t *testing.T, a *API, email, password string) string {
	t.Helper()

	w := do(a, jsonReq(http.MethodPost, "/users", fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)))
	require.Equal(t, http.StatusCreated, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/connect", nil)
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(email+":"+password)))

	w = do(a, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)

	return body.Token
}

func TestUploadScenario(t *testing.T) {
	a, q := newTestAPI(t)

	// Register
	w := do(a, jsonReq(http.MethodPost, "/users", `{"email":"test@example.com","password":"password123"}`))
	require.Equal(t, http.StatusCreated, w.Code)

	var user struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	require.NotEmpty(t, user.ID)
	require.Equal(t, "test@example.com", user.Email)
	require.Len(t, q.welcomes, 1)
	require.Equal(t, user.ID, q.welcomes[0].UserID)

	// Connect with Basic auth
	req := httptest.NewRequest(http.MethodGet, "/connect", nil)
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("test@example.com:password123")))

	w = do(a, req)
	require.Equal(t, http.StatusOK, w.Code)

	var connect struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &connect))

	// The token resolves to the registered user
	req = httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("X-Token", connect.Token)

	w = do(a, req)
	require.Equal(t, http.StatusOK, w.Code)

	var me struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	require.Equal(t, user.ID, me.ID)

	// Upload a file
	data := base64.StdEncoding.EncodeToString([]byte("Hello World!"))
	req = jsonReq(http.MethodPost, "/files", fmt.Sprintf(`{"name":"test.txt","type":"file","data":%q}`, data))
	req.Header.Set("X-Token", connect.Token)

	w = do(a, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var file struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &file))
	require.NotEmpty(t, file.ID)

	// And read it back byte for byte
	req = httptest.NewRequest(http.MethodGet, "/files/"+file.ID+"/data", nil)
	req.Header.Set("X-Token", connect.Token)

	w = do(a, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Hello World!", w.Body.String())
}

func TestRegister_Validation(t *testing.T) {
	a, _ := newTestAPI(t)

	w := do(a, jsonReq(http.MethodPost, "/users", `{"password":"password123"}`))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(a, jsonReq(http.MethodPost, "/users", `{"email":"test@example.com"}`))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(a, jsonReq(http.MethodPost, "/users", `{"email":"test@example.com","password":"password123"}`))
	require.Equal(t, http.StatusCreated, w.Code)

	// Same email again
	w = do(a, jsonReq(http.MethodPost, "/users", `{"email":"test@example.com","password":"password123"}`))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConnect_BadCredentials(t *testing.T) {
	a, _ := newTestAPI(t)
	registerAndConnect(t, a, "test@example.com", "password123")

	req := httptest.NewRequest(http.MethodGet, "/connect", nil)
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("test@example.com:wrongpass")))
	require.Equal(t, http.StatusUnauthorized, do(a, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/connect", nil)
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("ghost@example.com:password123")))
	require.Equal(t, http.StatusUnauthorized, do(a, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/connect", nil)
	require.Equal(t, http.StatusUnauthorized, do(a, req).Code)
}

func TestDisconnect(t *testing.T) {
	a, _ := newTestAPI(t)
	token := registerAndConnect(t, a, "test@example.com", "password123")

	req := httptest.NewRequest(http.MethodGet, "/disconnect", nil)
	req.Header.Set("X-Token", token)
	require.Equal(t, http.StatusNoContent, do(a, req).Code)

	// The token is dead now
	req = httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("X-Token", token)
	require.Equal(t, http.StatusUnauthorized, do(a, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/disconnect", nil)
	req.Header.Set("X-Token", token)
	require.Equal(t, http.StatusUnauthorized, do(a, req).Code)
}

func TestPublishUnpublish(t *testing.T) {
	a, _ := newTestAPI(t)
	ownerToken := registerAndConnect(t, a, "owner@example.com", "password123")
	otherToken := registerAndConnect(t, a, "other@example.com", "password123")

	data := base64.StdEncoding.EncodeToString([]byte("secret stuff"))
	req := jsonReq(http.MethodPost, "/files", fmt.Sprintf(`{"name":"secret.txt","type":"file","data":%q}`, data))
	req.Header.Set("X-Token", ownerToken)

	w := do(a, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var file struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &file))

	fetchAs := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/files/"+file.ID, nil)
		req.Header.Set("X-Token", token)
		return do(a, req).Code
	}

	publish := func(token, action string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/files/"+file.ID+"/"+action, nil)
		req.Header.Set("X-Token", token)
		return do(a, req)
	}

	// Private by default, invisible to others
	require.Equal(t, http.StatusOK, fetchAs(ownerToken))
	require.Equal(t, http.StatusNotFound, fetchAs(otherToken))

	// Non-owners can't publish either, and can't tell the file exists
	require.Equal(t, http.StatusNotFound, publish(otherToken, "publish").Code)

	w = publish(ownerToken, "publish")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"isPublic":true`)

	// Publishing twice changes nothing
	require.Equal(t, http.StatusOK, publish(ownerToken, "publish").Code)
	require.Equal(t, http.StatusOK, fetchAs(otherToken))

	// Public data works without any token
	req = httptest.NewRequest(http.MethodGet, "/files/"+file.ID+"/data", nil)
	w = do(a, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "secret stuff", w.Body.String())

	w = publish(ownerToken, "unpublish")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"isPublic":false`)

	require.Equal(t, http.StatusNotFound, fetchAs(otherToken))

	req = httptest.NewRequest(http.MethodGet, "/files/"+file.ID+"/data", nil)
	require.Equal(t, http.StatusNotFound, do(a, req).Code)
}

func TestFileCreate_Validation(t *testing.T) {
	a, _ := newTestAPI(t)
	token := registerAndConnect(t, a, "test@example.com", "password123")

	post := func(body string) int {
		req := jsonReq(http.MethodPost, "/files", body)
		req.Header.Set("X-Token", token)
		return do(a, req).Code
	}

	require.Equal(t, http.StatusBadRequest, post(`{"type":"file","data":"aGk="}`))
	require.Equal(t, http.StatusBadRequest, post(`{"name":"x","type":"blob","data":"aGk="}`))
	require.Equal(t, http.StatusBadRequest, post(`{"name":"x","type":"file"}`))
	require.Equal(t, http.StatusBadRequest, post(`{"name":"x","type":"file","data":"not base64!!"}`))
	require.Equal(t, http.StatusBadRequest, post(`{"name":"x","type":"file","data":"aGk=","parentId":"ghost"}`))
	require.Equal(t, http.StatusCreated, post(`{"name":"docs","type":"folder"}`))

	// No token at all
	req := jsonReq(http.MethodPost, "/files", `{"name":"docs","type":"folder"}`)
	require.Equal(t, http.StatusUnauthorized, do(a, req).Code)
}

func TestFileList(t *testing.T) {
	a, _ := newTestAPI(t)
	token := registerAndConnect(t, a, "test@example.com", "password123")

	for i := range 25 {
		data := base64.StdEncoding.EncodeToString([]byte("x"))
		req := jsonReq(http.MethodPost, "/files", fmt.Sprintf(`{"name":"file-%02d.txt","type":"file","data":%q}`, i, data))
		req.Header.Set("X-Token", token)
		require.Equal(t, http.StatusCreated, do(a, req).Code)
	}

	list := func(page int) []model.File {
		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/files?page=%d", page), nil)
		req.Header.Set("X-Token", token)

		w := do(a, req)
		require.Equal(t, http.StatusOK, w.Code)

		var files []model.File
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &files))
		return files
	}

	require.Len(t, list(0), 20)
	require.Len(t, list(1), 5)
	require.Empty(t, list(2))
}

func TestImageUploadEnqueuesJob(t *testing.T) {
	a, q := newTestAPI(t)
	token := registerAndConnect(t, a, "test@example.com", "password123")

	data := base64.StdEncoding.EncodeToString([]byte("pretend image"))
	req := jsonReq(http.MethodPost, "/files", fmt.Sprintf(`{"name":"cat.png","type":"image","data":%q}`, data))
	req.Header.Set("X-Token", token)

	w := do(a, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var file struct {
		ID     string `json:"id"`
		UserID string `json:"userId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &file))

	require.Len(t, q.thumbnails, 1)
	require.Equal(t, queue.ThumbnailPayload{UserID: file.UserID, FileID: file.ID}, q.thumbnails[0])
}

func TestStatusAndStats(t *testing.T) {
	a, _ := newTestAPI(t)
	token := registerAndConnect(t, a, "test@example.com", "password123")

	w := do(a, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var status struct {
		Redis bool `json:"redis"`
		DB    bool `json:"db"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	require.True(t, status.Redis)
	require.True(t, status.DB)

	data := base64.StdEncoding.EncodeToString([]byte("x"))
	req := jsonReq(http.MethodPost, "/files", fmt.Sprintf(`{"name":"one.txt","type":"file","data":%q}`, data))
	req.Header.Set("X-Token", token)
	require.Equal(t, http.StatusCreated, do(a, req).Code)

	w = do(a, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var stats struct {
		Users int64 `json:"users"`
		Files int64 `json:"files"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	require.Equal(t, int64(1), stats.Users)
	require.Equal(t, int64(1), stats.Files)
}
