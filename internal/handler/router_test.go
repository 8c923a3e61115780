package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blogapi/blog-api/internal/crypto"
	"github.com/blogapi/blog-api/internal/model"
	"github.com/blogapi/blog-api/internal/repository"
	"github.com/blogapi/blog-api/internal/service"
)

type memStore struct {
	mu     sync.Mutex
	users  map[string]model.User
	blogs  map[int64]model.Blog
	userID int64
	blogID int64
}

func newMemStore() *memStore {
	return &memStore{users: map[string]model.User{}, blogs: map[int64]model.Blog{}}
}

type memUsers struct{ *memStore }

func (s memUsers) Create(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	s.userID++
	u.ID = s.userID
	s.users[u.Email] = *u
	return nil
}

func (s memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

type memBlogs struct{ *memStore }

func (s memBlogs) Create(_ context.Context, b *model.Blog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blogID++
	b.ID = s.blogID
	s.blogs[b.ID] = *b
	return nil
}

func (s memBlogs) Get(_ context.Context, id int64) (*model.Blog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blogs[id]
	if !ok {
		return nil, repository.ErrBlogNotFound
	}
	return &b, nil
}

func (s memBlogs) ListPublished(_ context.Context, limit int, desc bool) ([]model.Blog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Blog{}
	for id := int64(1); id <= s.blogID; id++ {
		if b, ok := s.blogs[id]; ok && b.IsPublished {
			out = append(out, b)
		}
	}
	if desc {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s memBlogs) Update(_ context.Context, id int64, apply func(*model.Blog) error) (*model.Blog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blogs[id]
	if !ok {
		return nil, repository.ErrBlogNotFound
	}
	if err := apply(&b); err != nil {
		return nil, err
	}
	s.blogs[id] = b
	return &b, nil
}

func (s memBlogs) Delete(_ context.Context, id int64) (*model.Blog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blogs[id]
	if !ok {
		return nil, repository.ErrBlogNotFound
	}
	delete(s.blogs, id)
	return &b, nil
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func newTestServer(t *testing.T, ping pingerFunc) *httptest.Server {
	t.Helper()

	tokens, err := crypto.NewTokenIssuer(crypto.TokenConfig{
		Secret:   "handler-test-secret",
		Issuer:   "blog-api",
		Audience: "blog-api",
		TTL:      time.Hour,
	})
	require.NoError(t, err)

	if ping == nil {
		ping = func(context.Context) error { return nil }
	}

	store := newMemStore()
	srv := httptest.NewServer(NewRouter(RouterConfig{
		Auth:           service.NewAuthService(memUsers{store}, tokens),
		Blogs:          service.NewBlogService(memBlogs{store}),
		DB:             ping,
		AllowedOrigins: []string{"*"},
	}))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, target, token, contentType, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, target, strings.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func registerAndLogin(t *testing.T, srv *httptest.Server, email string) string {
	t.Helper()
	resp := do(t, http.MethodPost, srv.URL+"/users", "", "application/json",
		fmt.Sprintf(`{"name":"Test","email":%q,"password":"s3cret"}`, email))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	form := url.Values{"username": {email}, "password": {"s3cret"}}
	resp = do(t, http.MethodPost, srv.URL+"/login", "", "application/x-www-form-urlencoded", form.Encode())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	tok := decode[model.TokenResponse](t, resp)
	require.Equal(t, "bearer", tok.TokenType)
	require.NotEmpty(t, tok.AccessToken)
	return tok.AccessToken
}

func TestBlogLifecycle(t *testing.T) {
	srv := newTestServer(t, nil)
	token := registerAndLogin(t, srv, "alice@example.com")

	resp := do(t, http.MethodGet, srv.URL+"/users/me", token, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decode[model.UserResponse](t, resp)
	assert.Equal(t, "alice@example.com", me.Email)

	resp = do(t, http.MethodPost, srv.URL+"/blog", token, "application/json", `{"title":"First","body":"Hello"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[model.BlogResponse](t, resp)
	assert.Equal(t, me.ID, created.UserID)

	resp = do(t, http.MethodGet, fmt.Sprintf("%s/blog/%d", srv.URL, created.ID), "", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	shown := decode[model.BlogResponse](t, resp)
	assert.True(t, shown.IsPublished)
	assert.Equal(t, "First", shown.Title)
	require.NotNil(t, shown.Published)

	resp = do(t, http.MethodPut, fmt.Sprintf("%s/blog/%d", srv.URL, created.ID), token, "application/json", `{"title":"Edited","body":"Hello again"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	updated := decode[model.BlogUpdateResponse](t, resp)
	assert.Equal(t, "Blog updated successfully", updated.Message)
	assert.Equal(t, "Edited", updated.Data.Title)

	resp = do(t, http.MethodGet, srv.URL+"/blog?limit=5&sort=desc", "", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[model.BlogListResponse](t, resp)
	assert.Equal(t, "desc", list.Sort)
	require.Len(t, list.Data, 1)

	resp = do(t, http.MethodDelete, fmt.Sprintf("%s/blog/%d", srv.URL, created.ID), token, "", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodGet, fmt.Sprintf("%s/blog/%d", srv.URL, created.ID), "", "", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, decode[map[string]string](t, resp)["error"])
}

func TestRegisterConflict(t *testing.T) {
	srv := newTestServer(t, nil)
	registerAndLogin(t, srv, "alice@example.com")

	resp := do(t, http.MethodPost, srv.URL+"/users", "", "application/json", `{"name":"Other","email":"alice@example.com","password":"x"}`)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, service.ErrDuplicateEmail.Error(), decode[map[string]string](t, resp)["error"])
}

func TestRegisterBadRequest(t *testing.T) {
	srv := newTestServer(t, nil)

	resp := do(t, http.MethodPost, srv.URL+"/users", "", "application/json", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/users", "", "application/json", `{"name":"A","email":"nope","password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginRejected(t *testing.T) {
	srv := newTestServer(t, nil)
	registerAndLogin(t, srv, "alice@example.com")

	for _, form := range []url.Values{
		{"username": {"alice@example.com"}, "password": {"wrong"}},
		{"username": {"ghost@example.com"}, "password": {"s3cret"}},
	} {
		resp := do(t, http.MethodPost, srv.URL+"/login", "", "application/x-www-form-urlencoded", form.Encode())
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))
		assert.Equal(t, service.ErrInvalidCredentials.Error(), decode[map[string]string](t, resp)["error"])
	}

	resp := do(t, http.MethodPost, srv.URL+"/login", "", "application/x-www-form-urlencoded", "username=alice%40example.com")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		method string
		path   string
		token  string
	}{
		{http.MethodGet, "/users/me", ""},
		{http.MethodPost, "/blog", ""},
		{http.MethodPut, "/blog/1", ""},
		{http.MethodDelete, "/blog/1", ""},
		{http.MethodGet, "/users/me", "not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp := do(t, tt.method, srv.URL+tt.path, tt.token, "application/json", `{"title":"t","body":"b"}`)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))
		})
	}
}

func TestBlogBadRequests(t *testing.T) {
	srv := newTestServer(t, nil)
	token := registerAndLogin(t, srv, "alice@example.com")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"non-numeric id", http.MethodGet, "/blog/abc", "", http.StatusBadRequest},
		{"zero id", http.MethodGet, "/blog/0", "", http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/blog?limit=ten", "", http.StatusBadRequest},
		{"negative limit", http.MethodGet, "/blog?limit=-1", "", http.StatusBadRequest},
		{"bad sort", http.MethodGet, "/blog?sort=random", "", http.StatusBadRequest},
		{"missing title", http.MethodPost, "/blog", `{"body":"b"}`, http.StatusBadRequest},
		{"update missing", http.MethodPut, "/blog/99", `{"title":"t","body":"b"}`, http.StatusNotFound},
		{"delete missing", http.MethodDelete, "/blog/99", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, tt.method, srv.URL+tt.path, token, "application/json", tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestListEmpty(t *testing.T) {
	srv := newTestServer(t, nil)

	resp := do(t, http.MethodGet, srv.URL+"/blog", "", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.JSONEq(t, `[]`, string(raw["data"]))
	assert.JSONEq(t, `"asc"`, string(raw["sort"]))
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	resp := do(t, http.MethodGet, srv.URL+"/health", "", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	down := newTestServer(t, func(context.Context) error { return errors.New("connection refused") })
	resp = do(t, http.MethodGet, down.URL+"/health", "", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
