package httpx

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MikeMC777/ecom-ledger/internal/apperr"
	"github.com/MikeMC777/ecom-ledger/internal/logging"
)

// HTTPError is the body of every error response; detail fields are
// flattened next to "error".
// swagger:model
type HTTPError struct {
	// example: not found
	Error string `json:"error"`
}

func StatusOf(k apperr.Kind) int {
	switch k {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindBadRequest:
		return http.StatusBadRequest
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders err as JSON. The cause of an internal error is logged,
// never written to the client.
func WriteError(c *gin.Context, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Internal("internal error", err)
	}

	if ae.Kind == apperr.KindInternal {
		logging.FromContext(c.Request.Context(), nil).Error("request_failed", zap.Error(err))
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": ae.Msg})
		return
	}

	body := gin.H{}
	for k, v := range ae.Details {
		body[k] = v
	}
	body["error"] = ae.Msg
	c.JSON(StatusOf(ae.Kind), body)
}
