package transport

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/avdeev-m/ticketflow/internal/entity"
)

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusForCode maps a stable error code to an HTTP status. The mapping
// is part of the API contract and must not depend on error text.
func statusForCode(code string) int {
	switch code {
	case entity.CodeNotFound:
		return http.StatusNotFound
	case entity.CodeConflict:
		return http.StatusConflict
	case entity.CodeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	code := entity.Code(err)
	status := statusForCode(code)

	message := err.Error()
	if status == http.StatusInternalServerError {
		// не раскрываем детали инфраструктурных ошибок клиенту
		logrus.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}).Error("Request failed with storage error")
		message = "internal error"
	}

	c.JSON(status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func writeBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: "invalid request body: " + err.Error(),
		Code:  entity.CodeInvalidRequest,
	})
}
