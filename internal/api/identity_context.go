package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gustavlindstroms/parkmalmokontor/internal/identity"
)

// currentUser resolves the signed-in user, writing the error response when there is none.
// A missing accessor means the route was registered without the auth middleware.
func currentUser(c *gin.Context, logger *zap.Logger) (identity.User, bool) {
	accessor, err := identity.FromContext(c)
	if err != nil {
		writeInternalError(c, logger, err)
		return identity.User{}, false
	}
	user, err := accessor.Require()
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Authentication required"})
		return identity.User{}, false
	}
	return user, true
}

func writeInternalError(c *gin.Context, logger *zap.Logger, err error) {
	if ctxErr := c.Request.Context().Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{Error: "Request cancelled"})
		return
	}
	logger.Error("Internal Server Error", zap.Error(err), zap.String("path", c.Request.URL.Path))
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "An unexpected internal server error occurred."})
}
