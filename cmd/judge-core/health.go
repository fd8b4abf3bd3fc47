package main

import (
	"context"
	"sort"
	"time"

	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

const defaultHealthTimeout = 2 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

// healthHandler pings every configured backend. Any failure turns the
// whole check into 503 with per-backend results in details.
func healthHandler(checks map[string]pinger, timeout time.Duration) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		status := make(map[string]string, len(names))
		healthy := true
		for _, name := range names {
			ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
			err := checks[name].Ping(ctx)
			cancel()
			if err != nil {
				healthy = false
				status[name] = err.Error()
				continue
			}
			status[name] = "ok"
		}
		if !healthy {
			response.ErrorWithDetails(c, appErr.New(appErr.ServiceUnavailable).WithMessage("dependency check failed"), status)
			return
		}
		response.Success(c, gin.H{"status": "ok", "checks": status})
	}
}
