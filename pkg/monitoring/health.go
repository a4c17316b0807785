package monitoring

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ECE496-2022586/ECE496-Hyperledger-Fabric/pkg/ledger"
)

// HealthHandler reports gateway liveness plus a probe read against the
// ledger store.
func HealthHandler(store ledger.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := "healthy"
		code := http.StatusOK
		ledgerStatus := "up"
		if _, err := store.Get(ctx, "health-probe"); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
			ledgerStatus = "down"
		}

		c.JSON(code, gin.H{
			"status":    status,
			"ledger":    ledgerStatus,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
