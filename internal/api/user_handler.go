package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserHandler exposes the signed-in identity and the static parking configuration.
type UserHandler struct {
	spots  []int
	logger *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(spots []int, logger *zap.Logger) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{spots: spots, logger: logger}
}

// GetMe handles GET /me.
func (h *UserHandler) GetMe(c *gin.Context) {
	user, ok := currentUser(c, h.logger)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, MeResponse{
		ID:             user.UID,
		DisplayName:    user.Name(),
		Email:          user.Email,
		Key:            user.UID,
		SignInProvider: user.SignInProvider,
		Anonymous:      user.Anonymous(),
	})
}

// GetSpots handles GET /spots.
func (h *UserHandler) GetSpots(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"spots": h.spots})
}
