package response

import (
	"github.com/gin-gonic/gin"
)

// ActionResult is the envelope returned by the metadata action endpoint.
type ActionResult struct {
	Success     bool        `json:"success"`
	Status      int         `json:"status"`
	Message     string      `json:"message"`
	RedirectURL string      `json:"redirectUrl,omitempty"`
	Data        interface{} `json:"data,omitempty"`
	Errors      FieldErrors `json:"errors,omitempty"`
}

// Action writes r using its own status code.
func Action(c *gin.Context, r ActionResult) {
	c.JSON(r.Status, r)
}
