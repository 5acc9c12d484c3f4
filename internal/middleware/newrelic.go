package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// NewRelicAttributes tags the New Relic transaction started by nrgin with the
// caller's role and the driver the request targets.
func NewRelicAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		txn := nrgin.Transaction(c)
		if txn == nil {
			return
		}

		if p := PrincipalFrom(c); p.Role != "" {
			txn.AddAttribute("principal.role", string(p.Role))
		}
		if key := c.Param("key"); key != "" {
			txn.AddAttribute("driver.key", key)
		}

		// Record error if present.
		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
	}
}
