package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"vidtube-server/internal/media"
	"vidtube-server/internal/middleware"
	"vidtube-server/internal/repository"
	"vidtube-server/internal/service"
	"vidtube-server/pkg/jwt"
	"vidtube-server/pkg/response"

	"github.com/disintegration/imaging"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryMedia struct {
	mu      sync.Mutex
	objects map[string][]byte
	seq     int
}

func (m *memoryMedia) Upload(ctx context.Context, file *media.File) (string, error) {
	data, err := os.ReadFile(file.Path)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	url := fmt.Sprintf("https://cdn.test/%d%s", m.seq, file.Ext())
	m.objects[url] = data
	return url, nil
}

func (m *memoryMedia) Delete(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, url)
	return nil
}

type testServer struct {
	router  http.Handler
	tempDir string
	media   *memoryMedia
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	repo := repository.NewMemoryUserRepository()
	store := &memoryMedia{objects: make(map[string][]byte)}
	issuer := jwt.NewIssuer(jwt.Config{
		AccessSecret:      "access-secret",
		AccessExpiration:  15 * time.Minute,
		RefreshSecret:     "refresh-secret",
		RefreshExpiration: 240 * time.Hour,
	})

	tempDir := t.TempDir()
	uploads := UploadOptions{TempDir: tempDir, MaxBytes: 1 << 20}
	cookies := CookieOptions{
		Secure:        true,
		SameSite:      http.SameSiteLaxMode,
		AccessMaxAge:  15 * time.Minute,
		RefreshMaxAge: 240 * time.Hour,
	}

	authHandler := NewAuthHandler(service.NewAuthService(repo, issuer, store, nil), cookies, uploads)
	userHandler := NewUserHandler(service.NewUserService(repo, store), uploads)

	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	noLimit := func(next http.Handler) http.Handler { return next }
	RegisterUserRoutes(api, authHandler, userHandler, middleware.AuthMiddleware(issuer, repo), noLimit)

	return &testServer{router: r, tempDir: tempDir, media: store}
}

func pngImage(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(32, 32, color.White), imaging.PNG))
	return buf.Bytes()
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, data := range files {
		fw, err := mw.CreateFormFile(field, field+".png")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func (s *testServer) do(t *testing.T, method, path string, body *bytes.Buffer, contentType string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) doJSON(t *testing.T, method, path string, payload interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return s.do(t, method, path, bytes.NewBuffer(data), "application/json", cookies...)
}

func (s *testServer) register(t *testing.T, username, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t,
		map[string]string{"username": username, "email": email, "fullname": "Test User", "password": password},
		map[string][]byte{"avatar": pngImage(t)},
	)
	return s.do(t, http.MethodPost, "/api/v1/users/register", body, ct)
}

func (s *testServer) login(t *testing.T, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	return s.doJSON(t, http.MethodPost, "/api/v1/users/login", map[string]string{"username": username, "password": password})
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) response.Response {
	t.Helper()
	var raw struct {
		response.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	if data != nil {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return raw.Response
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestRegister(t *testing.T) {
	s := newTestServer(t)

	rec := s.register(t, "Alice", "Alice@X.com", "pw1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var user map[string]interface{}
	env := decodeEnvelope(t, rec, &user)
	assert.True(t, env.Success)
	assert.Equal(t, "User registered successfully", env.Message)
	assert.Equal(t, "alice", user["username"])
	assert.Equal(t, "alice@x.com", user["email"])
	assert.NotEmpty(t, user["avatar"])
	assert.NotContains(t, rec.Body.String(), "password")
	assert.NotContains(t, rec.Body.String(), "refreshToken")

	entries, err := os.ReadDir(s.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "spooled uploads are removed after the request")
}

func TestRegister_Rejections(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.register(t, "bob", "bob@x.com", "pw").Code)

	fields := map[string]string{"username": "carl", "email": "carl@x.com", "fullname": "Carl", "password": "pw"}

	tests := []struct {
		name       string
		fields     map[string]string
		files      map[string][]byte
		wantStatus int
	}{
		{name: "missing avatar", fields: fields, wantStatus: http.StatusBadRequest},
		{name: "avatar not an image", fields: fields, files: map[string][]byte{"avatar": []byte("plain text")}, wantStatus: http.StatusBadRequest},
		{
			name:       "blank username",
			fields:     map[string]string{"username": "   ", "email": "d@x.com", "fullname": "D", "password": "pw"},
			files:      map[string][]byte{"avatar": pngImage(t)},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid email",
			fields:     map[string]string{"username": "dan", "email": "not-an-email", "fullname": "D", "password": "pw"},
			files:      map[string][]byte{"avatar": pngImage(t)},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "duplicate username different case",
			fields:     map[string]string{"username": "BOB", "email": "other@x.com", "fullname": "Bob", "password": "pw"},
			files:      map[string][]byte{"avatar": pngImage(t)},
			wantStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartBody(t, tt.fields, tt.files)
			rec := s.do(t, http.MethodPost, "/api/v1/users/register", body, ct)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			env := decodeEnvelope(t, rec, nil)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}

	rec := s.doJSON(t, http.MethodPost, "/api/v1/users/register", fields)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "JSON bodies are not accepted for registration")

	entries, err := os.ReadDir(s.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLogin_WrongPasswordSetsNoCookies(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.register(t, "erin", "erin@x.com", "pw").Code)

	rec := s.login(t, "erin", "nope")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
	assert.NotContains(t, rec.Body.String(), "accessToken")

	rec = s.login(t, "ghost", "pw")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.doJSON(t, http.MethodPost, "/api/v1/users/login", map[string]string{"password": "pw"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/users/login", bytes.NewBufferString("{"), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.register(t, "alice", "alice@x.com", "pw1").Code)

	rec := s.login(t, "alice", "pw1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var login struct {
		User struct {
			Username string `json:"username"`
		} `json:"user"`
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	decodeEnvelope(t, rec, &login)
	assert.Equal(t, "alice", login.User.Username)

	access := cookieByName(rec, "accessToken")
	refresh := cookieByName(rec, "refreshToken")
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	assert.True(t, access.HttpOnly)
	assert.True(t, access.Secure)
	assert.True(t, refresh.HttpOnly)
	assert.True(t, refresh.Secure)
	assert.Equal(t, login.AccessToken, access.Value)
	assert.Equal(t, login.RefreshToken, refresh.Value)

	rec = s.do(t, http.MethodGet, "/api/v1/users/current-user", nil, "", access)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"alice"`)

	rec = s.do(t, http.MethodGet, "/api/v1/users/current-user", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Rotate via cookie, then replay the old token through the body.
	rec = s.do(t, http.MethodPost, "/api/v1/users/refresh-token", nil, "", refresh)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	newRefresh := cookieByName(rec, "refreshToken")
	require.NotNil(t, newRefresh)
	assert.NotEqual(t, refresh.Value, newRefresh.Value)

	rec = s.doJSON(t, http.MethodPost, "/api/v1/users/refresh-token", map[string]string{"refreshToken": refresh.Value})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/users/refresh-token", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "no token at all")

	rec = s.do(t, http.MethodPost, "/api/v1/users/logout", nil, "", access)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, name := range []string{"accessToken", "refreshToken"} {
		c := cookieByName(rec, name)
		require.NotNil(t, c, name)
		assert.Empty(t, c.Value)
		assert.True(t, c.MaxAge < 0)
	}

	rec = s.do(t, http.MethodPost, "/api/v1/users/refresh-token", nil, "", newRefresh)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "refresh after logout")

	rec = s.do(t, http.MethodPost, "/api/v1/users/logout", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "logout requires the gate")
}

func TestChangePasswordThenLogin(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.register(t, "fred", "fred@x.com", "old").Code)
	access := cookieByName(s.login(t, "fred", "old"), "accessToken")
	require.NotNil(t, access)

	rec := s.doJSON(t, http.MethodPost, "/api/v1/users/change-password",
		map[string]string{"oldPassword": "wrong", "newPassword": "new"}, access)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.doJSON(t, http.MethodPost, "/api/v1/users/change-password",
		map[string]string{"oldPassword": "old"}, access)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.doJSON(t, http.MethodPost, "/api/v1/users/change-password",
		map[string]string{"oldPassword": "old", "newPassword": "new"}, access)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, s.login(t, "fred", "old").Code)
	assert.Equal(t, http.StatusOK, s.login(t, "fred", "new").Code)
}

func TestUpdateAccountAndImages(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.register(t, "gina", "gina@x.com", "pw").Code)
	require.Equal(t, http.StatusCreated, s.register(t, "hugo", "hugo@x.com", "pw").Code)

	loginRec := s.login(t, "gina", "pw")
	access := cookieByName(loginRec, "accessToken")
	require.NotNil(t, access)

	rec := s.doJSON(t, http.MethodPatch, "/api/v1/users/update-account",
		map[string]string{"fullname": "Gina G", "email": "hugo@x.com"}, access)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.doJSON(t, http.MethodPatch, "/api/v1/users/update-account",
		map[string]string{"fullname": "Gina G", "email": "gina.g@x.com"}, access)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"email":"gina.g@x.com"`)

	var before map[string]interface{}
	decodeEnvelope(t, s.do(t, http.MethodGet, "/api/v1/users/current-user", nil, "", access), &before)

	body, ct := multipartBody(t, nil, map[string][]byte{"avatar": pngImage(t)})
	rec = s.do(t, http.MethodPatch, "/api/v1/users/avatar", body, ct, access)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var after map[string]interface{}
	decodeEnvelope(t, rec, &after)
	assert.NotEqual(t, before["avatar"], after["avatar"])

	s.media.mu.Lock()
	_, oldKept := s.media.objects[before["avatar"].(string)]
	s.media.mu.Unlock()
	assert.False(t, oldKept, "previous avatar is deleted")

	body, ct = multipartBody(t, nil, map[string][]byte{"coverImage": pngImage(t)})
	rec = s.do(t, http.MethodPatch, "/api/v1/users/cover-image", body, ct, access)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.Contains(rec.Body.String(), `"coverImage":"https://cdn.test/`))

	body, ct = multipartBody(t, nil, nil)
	rec = s.do(t, http.MethodPatch, "/api/v1/users/cover-image", body, ct, access)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing file")
}
