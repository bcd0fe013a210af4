// Package api is the REST surface: accounts, room lifecycle and health.
package api

import (
	"planning-poker/errors"

	"github.com/gin-gonic/gin"
)

const (
	statusOK      = "ok"
	statusCreated = "created"
	statusError   = "error"
)

// standardResponse sends a consistent JSON response
func standardResponse(c *gin.Context, code int, status string, data any, err string) {
	response := gin.H{"status": status}

	if data != nil {
		response["data"] = data
	}

	if err != "" {
		response["error"] = err
	}

	c.JSON(code, response)
}

// errorResponse maps a domain error onto its HTTP status and code.
func errorResponse(c *gin.Context, err error) {
	c.AbortWithStatusJSON(errors.MapToHTTPStatus(err), gin.H{
		"status": statusError,
		"error":  errors.Message(err),
		"code":   errors.Code(err),
	})
}
