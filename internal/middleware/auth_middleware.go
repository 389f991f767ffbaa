package middleware

import (
	"context"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gustavlindstroms/parkmalmokontor/internal/identity"
)

// ErrorResponse mirrors api.ErrorResponse; redefined here to avoid an import cycle.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// TokenVerifier verifies Firebase ID tokens. *auth.Client satisfies it.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// AuthMiddleware verifies ID tokens and installs an identity.Accessor on the context.
type AuthMiddleware struct {
	verifier       TokenVerifier
	allowAnonymous bool
	logger         *zap.Logger
}

// NewAuthMiddleware creates an AuthMiddleware. With allowAnonymous false, sessions from
// anonymous sign-in are rejected.
func NewAuthMiddleware(verifier TokenVerifier, allowAnonymous bool, logger *zap.Logger) *AuthMiddleware {
	if verifier == nil {
		panic("AuthMiddleware requires a TokenVerifier")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{verifier: verifier, allowAnonymous: allowAnonymous, logger: logger}
}

// VerifyToken reads the bearer token from the Authorization header. Browsers cannot set
// headers on EventSource requests, so the access_token query parameter is accepted too.
func (m *AuthMiddleware) VerifyToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		idToken, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Authorization header format must be 'Bearer {token}'"})
			return
		}

		token, err := m.verifier.VerifyIDToken(c.Request.Context(), idToken)
		if err != nil {
			m.logger.Warn("Error verifying Firebase ID token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid or expired authentication token"})
			return
		}

		user := userFromToken(token)
		if user.Anonymous() && !m.allowAnonymous {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "Anonymous sign-in is not allowed"})
			return
		}

		c.Set(identity.ContextKey, identity.NewAccessor(&user))
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		token := c.Query("access_token")
		return token, token != ""
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func userFromToken(token *auth.Token) identity.User {
	user := identity.User{
		UID:            token.UID,
		SignInProvider: token.Firebase.SignInProvider,
	}
	if email, ok := token.Claims["email"].(string); ok {
		user.Email = email
	}
	if name, ok := token.Claims["name"].(string); ok {
		user.DisplayName = name
	}
	return user
}

// InsecureVerifier accepts any token and uses it as the user id. It backs local
// development with STORE_DRIVER=memory and must never run in production.
type InsecureVerifier struct{}

func (InsecureVerifier) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	return &auth.Token{
		UID:     idToken,
		Subject: idToken,
		Firebase: auth.FirebaseInfo{
			SignInProvider: identity.SignInProviderAnonymous,
		},
		Claims: map[string]interface{}{},
	}, nil
}
