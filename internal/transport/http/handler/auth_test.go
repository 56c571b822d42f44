package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/campus-market-api/internal/application/auth"
	"github.com/campus-market-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAuthService struct{ mock.Mock }

func (m *mockAuthService) SendOTP(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockAuthService) VerifyOTP(ctx context.Context, email, code string) error {
	return m.Called(ctx, email, code).Error(0)
}

func (m *mockAuthService) Register(ctx context.Context, req auth.RegisterRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResult, error) {
	args := m.Called(ctx, req)
	if res := args.Get(0); res != nil {
		return res.(*auth.LoginResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthService) ForgotPassword(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockAuthService) ResetPassword(ctx context.Context, req auth.ResetPasswordRequest) error {
	return m.Called(ctx, req).Error(0)
}

func postJSON(t *testing.T, h http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func TestSendOTP_OK(t *testing.T) {
	svc := new(mockAuthService)
	svc.On("SendOTP", mock.Anything, "a@inst.edu").Return(nil)

	rr := postJSON(t, NewAuthHandler(svc).SendOTP, map[string]string{"email": "a@inst.edu"})

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestSendOTP_BadBody(t *testing.T) {
	svc := new(mockAuthService)
	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()
	h.SendOTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "SendOTP")
}

func TestSendOTP_InvalidEmail(t *testing.T) {
	svc := new(mockAuthService)
	rr := postJSON(t, NewAuthHandler(svc).SendOTP, map[string]string{"email": "not-an-email"})

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	svc.AssertNotCalled(t, "SendOTP")
}

func TestSendOTP_RateLimited(t *testing.T) {
	svc := new(mockAuthService)
	svc.On("SendOTP", mock.Anything, "a@inst.edu").Return(domain.ErrRateLimited)

	rr := postJSON(t, NewAuthHandler(svc).SendOTP, map[string]string{"email": "a@inst.edu"})

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestSendOTP_DeliveryFailure(t *testing.T) {
	svc := new(mockAuthService)
	svc.On("SendOTP", mock.Anything, "a@inst.edu").Return(domain.ErrDeliveryFailed)

	rr := postJSON(t, NewAuthHandler(svc).SendOTP, map[string]string{"email": "a@inst.edu"})

	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestVerifyOTP_OK(t *testing.T) {
	svc := new(mockAuthService)
	svc.On("VerifyOTP", mock.Anything, "a@inst.edu", "123456").Return(nil)

	rr := postJSON(t, NewAuthHandler(svc).VerifyOTP, map[string]string{"email": "a@inst.edu", "code": "123456"})

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestVerifyOTP_CodeLength(t *testing.T) {
	svc := new(mockAuthService)
	rr := postJSON(t, NewAuthHandler(svc).VerifyOTP, map[string]string{"email": "a@inst.edu", "code": "123"})

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	svc.AssertNotCalled(t, "VerifyOTP")
}

func TestVerifyOTP_Expired(t *testing.T) {
	svc := new(mockAuthService)
	svc.On("VerifyOTP", mock.Anything, "a@inst.edu", "123456").Return(domain.ErrExpired)

	rr := postJSON(t, NewAuthHandler(svc).VerifyOTP, map[string]string{"email": "a@inst.edu", "code": "123456"})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestVerifyOTP_AttemptsExceeded(t *testing.T) {
	svc := new(mockAuthService)
	svc.On("VerifyOTP", mock.Anything, "a@inst.edu", "123456").Return(domain.ErrAttemptsExceeded)

	rr := postJSON(t, NewAuthHandler(svc).VerifyOTP, map[string]string{"email": "a@inst.edu", "code": "123456"})

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRegister_Created(t *testing.T) {
	svc := new(mockAuthService)
	svc.On("Register", mock.Anything, auth.RegisterRequest{
		Email:    "a@inst.edu",
		FullName: "Ada Lovelace",
		Password: "s3cret!",
	}).Return(nil)

	rr := postJSON(t, NewAuthHandler(svc).Register, map[string]string{
		"email":     "a@inst.edu",
		"full_name": "Ada Lovelace",
		"password":  "s3cret!",
	})

	assert.Equal(t, http.StatusCreated, rr.Code)
	svc.AssertExpectations(t)
}

func TestRegister_NotVerified(t *testing.T) {
	svc := new(mockAuthService)
	svc.On("Register", mock.Anything, mock.Anything).Return(domain.ErrNotVerified)

	rr := postJSON(t, NewAuthHandler(svc).Register, map[string]string{
		"email":     "a@inst.edu",
		"full_name": "Ada Lovelace",
		"password":  "s3cret!",
	})

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRegister_ShortPassword(t *testing.T) {
	svc := new(mockAuthService)
	rr := postJSON(t, NewAuthHandler(svc).Register, map[string]string{
		"email":     "a@inst.edu",
		"full_name": "Ada Lovelace",
		"password":  "abc",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	svc.AssertNotCalled(t, "Register")
}

func TestLogin_OK(t *testing.T) {
	svc := new(mockAuthService)
	user := &domain.User{UserID: "u1", Email: "a@inst.edu", FullName: "Ada Lovelace", Verified: true}
	svc.On("Login", mock.Anything, auth.LoginRequest{Email: "a@inst.edu", Password: "s3cret!"}).
		Return(&auth.LoginResult{AccessToken: "tok-123", User: user}, nil)

	rr := postJSON(t, NewAuthHandler(svc).Login, map[string]string{"email": "a@inst.edu", "password": "s3cret!"})

	assert.Equal(t, http.StatusOK, rr.Code)

	var body AuthEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "tok-123", body.AccessToken)
	require.NotNil(t, body.User)
	assert.Equal(t, "u1", body.User.UserID)
}

func TestLogin_PasswordHashNeverSerialized(t *testing.T) {
	svc := new(mockAuthService)
	user := &domain.User{UserID: "u1", Email: "a@inst.edu", PasswordHash: "$2a$10$secret", Verified: true}
	svc.On("Login", mock.Anything, mock.Anything).
		Return(&auth.LoginResult{AccessToken: "tok-123", User: user}, nil)

	rr := postJSON(t, NewAuthHandler(svc).Login, map[string]string{"email": "a@inst.edu", "password": "s3cret!"})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "secret")
	assert.NotContains(t, rr.Body.String(), "password_hash")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc := new(mockAuthService)
	svc.On("Login", mock.Anything, mock.Anything).Return(nil, domain.ErrInvalidCredentials)

	rr := postJSON(t, NewAuthHandler(svc).Login, map[string]string{"email": "a@inst.edu", "password": "wrong"})

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestForgotPassword_AlwaysGenericOK(t *testing.T) {
	svc := new(mockAuthService)
	svc.On("ForgotPassword", mock.Anything, "ghost@inst.edu").Return(nil)

	rr := postJSON(t, NewAuthHandler(svc).ForgotPassword, map[string]string{"email": "ghost@inst.edu"})

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestResetPassword_OK(t *testing.T) {
	svc := new(mockAuthService)
	svc.On("ResetPassword", mock.Anything, auth.ResetPasswordRequest{
		Email:       "a@inst.edu",
		Code:        "123456",
		NewPassword: "n3wpass!",
	}).Return(nil)

	rr := postJSON(t, NewAuthHandler(svc).ResetPassword, map[string]string{
		"email":        "a@inst.edu",
		"code":         "123456",
		"new_password": "n3wpass!",
	})

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestResetPassword_WrongCode(t *testing.T) {
	svc := new(mockAuthService)
	svc.On("ResetPassword", mock.Anything, mock.Anything).Return(domain.ErrInvalidCredentials)

	rr := postJSON(t, NewAuthHandler(svc).ResetPassword, map[string]string{
		"email":        "a@inst.edu",
		"code":         "000000",
		"new_password": "n3wpass!",
	})

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
