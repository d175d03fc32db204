package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/securingai/internal/common"
	"github.com/gin-gonic/gin"
)

// ErrorCase maps a sentinel error to a status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

var internalErrorCases = []ErrorCase{
	{Err: common.ErrorUnauthorized, Status: http.StatusUnauthorized, Message: "unauthorized"},
	{Err: common.ErrorNotFound, Status: http.StatusNotFound, Message: "not found"},
}

// respondError attaches err to the request for the access log and renders
// the first matching case, or 500.
func respondError(c *gin.Context, err error, cases []ErrorCase) {
	_ = c.Error(err)

	for _, cs := range cases {
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, gin.H{"message": cs.Message})
			return
		}
	}
	c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
}
