package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revofy/revofy-backend/internal/auth"
	pkgerrors "github.com/revofy/revofy-backend/pkg/errors"
)

type stubAuthService struct {
	resp   *auth.TokenResponse
	err    error
	signup auth.SignupRequest
}

func (s *stubAuthService) Signup(_ context.Context, req auth.SignupRequest) (*auth.TokenResponse, error) {
	s.signup = req
	return s.resp, s.err
}

func (s *stubAuthService) Login(context.Context, auth.LoginRequest) (*auth.TokenResponse, error) {
	return s.resp, s.err
}

func TestAuthSignupReturnsToken(t *testing.T) {
	svc := &stubAuthService{resp: &auth.TokenResponse{Token: "jwt", AccountID: uuid.New(), Email: "new@example.com"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", strings.NewReader(`{"email":"new@example.com","password":"longenough"}`))
	rec := httptest.NewRecorder()

	AuthSignup(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var envelope struct {
		Data auth.TokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "jwt", envelope.Data.Token)
	assert.Equal(t, "new@example.com", svc.signup.Email)
}

func TestAuthSignupValidatesBody(t *testing.T) {
	svc := &stubAuthService{}
	for _, body := range []string{`{"email":"not-an-email","password":"longenough"}`, `{"email":"a@example.com","password":"short"}`, `{"email":"a@example.com"}`} {
		rec := httptest.NewRecorder()
		AuthSignup(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestAuthSignupConflict(t *testing.T) {
	svc := &stubAuthService{err: pkgerrors.New(pkgerrors.CodeConflict, "email already exists")}
	rec := httptest.NewRecorder()
	AuthSignup(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", strings.NewReader(`{"email":"dup@example.com","password":"longenough"}`)))

	require.Equal(t, http.StatusConflict, rec.Code)
	var envelope errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "email already exists", envelope.Error.Message)
}

func TestAuthLoginRejectsBadCredentials(t *testing.T) {
	svc := &stubAuthService{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")}
	rec := httptest.NewRecorder()
	AuthLogin(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"a@example.com","password":"nope"}`)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
