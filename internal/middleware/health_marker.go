package middleware

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Redis keys backing the health dashboard counters. The health service
// reads and resets them under these names.
const (
	KeyReqTotal  = "health:global:req_total"
	KeyReqErrors = "health:global:req_errors"
	KeyResTime   = "health:global:res_time_total"
	KeyResCount  = "health:global:res_count"
	KeyStartTime = "health:global:start_time"
	KeyLastReq   = "health:global:last_request"
	KeyErrorLog  = "health:global:error_log"
)

// HealthMarker records per-request traffic counters in Redis. Root,
// health and favicon paths are excluded so dashboard polling does not
// count itself as traffic.
func HealthMarker(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if path == "/" || strings.HasPrefix(path, "/health") || strings.HasPrefix(path, "/favicon") {
			return c.Next()
		}

		start := time.Now()
		snapshot, _ := json.Marshal(map[string]interface{}{
			"time":   start,
			"ip":     c.IP(),
			"path":   c.OriginalURL(),
			"method": c.Method(),
		})
		ctx := context.Background()
		pre := rdb.Pipeline()
		pre.Set(ctx, KeyLastReq, snapshot, 0)
		pre.Incr(ctx, KeyReqTotal)
		_, _ = pre.Exec(ctx)

		err := c.Next()

		post := rdb.Pipeline()
		post.Incr(ctx, KeyResCount)
		post.IncrByFloat(ctx, KeyResTime, float64(time.Since(start).Milliseconds()))
		if c.Response().StatusCode() >= 500 {
			post.Incr(ctx, KeyReqErrors)
		}
		_, _ = post.Exec(ctx)
		return err
	}
}
