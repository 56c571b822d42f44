package handler

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/campus-market-api/internal/config"
	"github.com/campus-market-api/internal/domain"
	jwtinfra "github.com/campus-market-api/internal/infrastructure/jwt"
	"github.com/campus-market-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// newTestJWTProvider generates a fresh RSA key pair and returns a *jwtinfra.Provider.
func newTestJWTProvider(t *testing.T) *jwtinfra.Provider {
	t.Helper()
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privKey)})
	require.NoError(t, os.WriteFile(privPath, privPEM, 0600))

	pubBytes, err := x509.MarshalPKIXPublicKey(&privKey.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0600))

	p, err := jwtinfra.NewProvider(&config.Config{
		JWTPrivateKeyPath: privPath,
		JWTPublicKeyPath:  pubPath,
		JWTExpiry:         24 * time.Hour,
	})
	require.NoError(t, err)
	return p
}

type mockUserSvc struct{ mock.Mock }

func (m *mockUserSvc) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserSvc) Update(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.User, error) {
	args := m.Called(ctx, userID, req)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

// serveWithToken signs a Bearer token for userID and runs the request
// through the Auth middleware before the handler.
func serveWithToken(t *testing.T, h http.Handler, r *http.Request, userID, email string) *httptest.ResponseRecorder {
	t.Helper()
	p := newTestJWTProvider(t)
	token, err := p.Sign(userID, email)
	require.NoError(t, err)
	r.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	middleware.Auth(p)(h).ServeHTTP(rr, r)
	return rr
}

// withChiID injects a chi URL param "id" into the request context.
func withChiID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestMe_MissingClaims(t *testing.T) {
	svc := &mockUserSvc{}
	h := NewUserHandler(svc)
	r := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
	rr := httptest.NewRecorder()
	h.Me(rr, r) // called directly, no claims in context
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMe_HappyPath(t *testing.T) {
	svc := &mockUserSvc{}
	u := &domain.User{UserID: "u1", Email: "a@inst.edu", FullName: "Ada Lovelace", Verified: true}
	svc.On("Get", mock.Anything, "u1").Return(u, nil)
	h := NewUserHandler(svc)

	r := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
	rr := serveWithToken(t, http.HandlerFunc(h.Me), r, "u1", "a@inst.edu")

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp domain.User
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "Ada Lovelace", resp.FullName)
	svc.AssertExpectations(t)
}

func TestGetUser_NotFound(t *testing.T) {
	svc := &mockUserSvc{}
	svc.On("Get", mock.Anything, "missing").Return(nil, domain.ErrNotFound)
	h := NewUserHandler(svc)

	r := withChiID(httptest.NewRequest(http.MethodGet, "/v1/users/missing", nil), "missing")
	rr := serveWithToken(t, http.HandlerFunc(h.Get), r, "u1", "a@inst.edu")

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetUser_HappyPath(t *testing.T) {
	svc := &mockUserSvc{}
	u := &domain.User{UserID: "u2", Email: "b@inst.edu", FullName: "Bob Tables"}
	svc.On("Get", mock.Anything, "u2").Return(u, nil)
	h := NewUserHandler(svc)

	r := withChiID(httptest.NewRequest(http.MethodGet, "/v1/users/u2", nil), "u2")
	rr := serveWithToken(t, http.HandlerFunc(h.Get), r, "u1", "a@inst.edu")

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp domain.User
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "u2", resp.UserID)
	svc.AssertExpectations(t)
}

func TestUpdateUser_MissingClaims(t *testing.T) {
	svc := &mockUserSvc{}
	h := NewUserHandler(svc)
	r := withChiID(httptest.NewRequest(http.MethodPut, "/v1/users/u1", nil), "u1")
	rr := httptest.NewRecorder()
	h.Update(rr, r)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUpdateUser_NotOwner(t *testing.T) {
	svc := &mockUserSvc{}
	h := NewUserHandler(svc)

	name := "Mallory"
	body, _ := json.Marshal(domain.UpdateUserRequest{FullName: &name})
	r := httptest.NewRequest(http.MethodPut, "/v1/users/u2", bytes.NewReader(body))
	r = withChiID(r, "u2") // u1 trying to update u2
	rr := serveWithToken(t, http.HandlerFunc(h.Update), r, "u1", "a@inst.edu")

	assert.Equal(t, http.StatusForbidden, rr.Code)
	svc.AssertNotCalled(t, "Update")
}

func TestUpdateUser_HappyPath_SelfUpdate(t *testing.T) {
	svc := &mockUserSvc{}
	updated := &domain.User{UserID: "u1", Email: "a@inst.edu", FullName: "Ada L."}
	svc.On("Update", mock.Anything, "u1", mock.Anything).Return(updated, nil)
	h := NewUserHandler(svc)

	name := "Ada L."
	body, _ := json.Marshal(domain.UpdateUserRequest{FullName: &name})
	r := httptest.NewRequest(http.MethodPut, "/v1/users/u1", bytes.NewReader(body))
	r = withChiID(r, "u1")
	rr := serveWithToken(t, http.HandlerFunc(h.Update), r, "u1", "a@inst.edu")

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp domain.User
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "Ada L.", resp.FullName)
	svc.AssertExpectations(t)
}
