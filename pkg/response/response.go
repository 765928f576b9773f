package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ErrorBody is the stable error envelope returned on every non-2xx
// response. Clients and the payment gateway key off the detail string.
type ErrorBody struct {
	Detail string `json:"detail"`
}

// Handle processes the error and returns the appropriate response
func Handle(c *gin.Context, data interface{}, err error) {
	if err == nil {
		Success(c, data)
		return
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "Resource not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		Conflict(c, "Resource already exists")
	default:
		InternalError(c, "An unexpected error occurred")
	}
}

// Success sends a successful response
func Success(c *gin.Context, data interface{}) {
	status := http.StatusOK
	if c.Request.Method == "POST" {
		status = http.StatusCreated
	}

	c.JSON(status, data)
}

// OK sends a 200 response regardless of method
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// NotFound sends a 404 response
func NotFound(c *gin.Context, detail string) {
	c.JSON(http.StatusNotFound, ErrorBody{Detail: detail})
}

// BadRequest sends a 400 response
func BadRequest(c *gin.Context, detail string) {
	c.JSON(http.StatusBadRequest, ErrorBody{Detail: detail})
}

// Unauthorized sends a 401 response
func Unauthorized(c *gin.Context, detail string) {
	c.JSON(http.StatusUnauthorized, ErrorBody{Detail: detail})
}

// Forbidden sends a 403 response
func Forbidden(c *gin.Context, detail string) {
	c.JSON(http.StatusForbidden, ErrorBody{Detail: detail})
}

// Conflict sends a 409 response
func Conflict(c *gin.Context, detail string) {
	c.JSON(http.StatusConflict, ErrorBody{Detail: detail})
}

// InternalError sends a 500 response
func InternalError(c *gin.Context, detail string) {
	c.JSON(http.StatusInternalServerError, ErrorBody{Detail: detail})
}
