package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gustavlindstroms/parkmalmokontor/internal/identity"
)

type stubVerifier struct {
	tokens map[string]*auth.Token
}

func (s stubVerifier) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	token, ok := s.tokens[idToken]
	if !ok {
		return nil, errors.New("token expired")
	}
	return token, nil
}

var verifier = stubVerifier{tokens: map[string]*auth.Token{
	"google": {
		UID:      "u-google",
		Firebase: auth.FirebaseInfo{SignInProvider: "google.com"},
		Claims:   map[string]interface{}{"email": "anna@example.com", "name": "Anna"},
	},
	"anon": {
		UID:      "u-anon",
		Firebase: auth.FirebaseInfo{SignInProvider: identity.SignInProviderAnonymous},
		Claims:   map[string]interface{}{},
	},
}}

func newAuthRouter(allowAnonymous bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(NewAuthMiddleware(verifier, allowAnonymous, zap.NewNop()).VerifyToken())
	router.GET("/me", func(c *gin.Context) {
		accessor, err := identity.FromContext(c)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		user, err := accessor.Require()
		if err != nil {
			c.Status(http.StatusUnauthorized)
			return
		}
		c.JSON(http.StatusOK, user)
	})
	return router
}

func serve(router http.Handler, target, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestVerifyTokenInstallsIdentity(t *testing.T) {
	rec := serve(newAuthRouter(false), "/me", "Bearer google")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"u-google","displayName":"Anna","email":"anna@example.com","signInProvider":"google.com"}`, rec.Body.String())
}

func TestVerifyTokenRejects(t *testing.T) {
	router := newAuthRouter(false)

	assert.Equal(t, http.StatusUnauthorized, serve(router, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, "/me", "Token google").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, "/me", "Bearer nope").Code)
	assert.Equal(t, http.StatusForbidden, serve(router, "/me", "Bearer anon").Code, "federated variant rejects anonymous sessions")
}

func TestVerifyTokenAnonymousVariant(t *testing.T) {
	router := newAuthRouter(true)
	assert.Equal(t, http.StatusOK, serve(router, "/me", "Bearer anon").Code)
	assert.Equal(t, http.StatusOK, serve(router, "/me?access_token=anon", "").Code)
}

func TestInsecureVerifierUsesTokenAsUID(t *testing.T) {
	token, err := InsecureVerifier{}.VerifyIDToken(context.Background(), "dev-user")
	require.NoError(t, err)
	assert.Equal(t, "dev-user", token.UID)
	assert.Equal(t, "dev-user", userFromToken(token).UID)
}

func TestRequestLoggerAndRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	router := gin.New()
	router.Use(RequestLogger(logger), RecoveryMiddleware(logger))
	router.GET("/boom", func(*gin.Context) { panic("boom") })
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rec := serve(router, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	assert.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())

	serve(router, "/ok", "")
	requests := logs.FilterMessage("Incoming Request").All()
	require.Len(t, requests, 2)
	assert.Equal(t, zap.ErrorLevel, requests[0].Level)
	assert.Equal(t, zap.InfoLevel, requests[1].Level)
}

func TestCORSMiddlewareAllowsClient(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORSMiddleware("http://localhost:5173, https://parkering.example.com"))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://parkering.example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "https://parkering.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	assert.Panics(t, func() { CORSMiddleware(" ") })
}
