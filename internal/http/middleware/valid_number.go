package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edirooss/streambed-server/internal/domain/flow"
)

const FlowNumberKey = "flow_number"

// RequireValidFlowNumber ensures the path param ":number" is a flow index
// in [0, flow.MaxFlows) and stores it under FlowNumberKey.
func RequireValidFlowNumber() gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := strconv.Atoi(c.Param("number"))
		if err != nil || n < 0 || n >= flow.MaxFlows {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid flow number"})
			return
		}
		c.Set(FlowNumberKey, n)
		c.Next()
	}
}

// FlowNumber returns the number stored by RequireValidFlowNumber.
func FlowNumber(c *gin.Context) int {
	return c.GetInt(FlowNumberKey)
}
