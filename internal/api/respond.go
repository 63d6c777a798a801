package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/parley/chat-app/internal/chat"
)

// errorBody is the wire shape of every failed response.
type errorBody struct {
	Error *chat.APIError `json:"error"`
}

// fail aborts the request with a structured error.
func fail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorBody{Error: chat.NewAPIError(status, code, message)})
}

func failInvalid(c *gin.Context, message string) {
	fail(c, http.StatusBadRequest, chat.CodeInvalidRequest, message)
}

func failUnauthorized(c *gin.Context) {
	fail(c, http.StatusUnauthorized, chat.CodeUnauthorized, "authentication required")
}
