package middleware

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracing_GeneratesAndEchoesTraceID(t *testing.T) {
	app := fiber.New()
	app.Use(Tracing())
	app.Get("/x", func(c *fiber.Ctx) error {
		return c.SendString(GetTraceID(c))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/x", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get("X-Trace-Id"))
}

func TestTracing_ReusesInboundTraceID(t *testing.T) {
	app := fiber.New()
	app.Use(Tracing())
	app.Get("/x", func(c *fiber.Ctx) error { return c.SendStatus(200) })

	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("X-Trace-Id", "proxy-abc123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "proxy-abc123", resp.Header.Get("X-Trace-Id"))
}

func TestHealthMarker_CountsTrafficAndSkipsHealth(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	app := fiber.New()
	app.Use(HealthMarker(rdb))
	app.Get("/api/v1/x", func(c *fiber.Ctx) error { return c.SendStatus(200) })
	app.Get("/api/v1/boom", func(c *fiber.Ctx) error { return c.SendStatus(500) })
	app.Get("/health/json", func(c *fiber.Ctx) error { return c.SendStatus(200) })

	for _, path := range []string{"/api/v1/x", "/api/v1/boom", "/health/json"} {
		_, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
	}

	ctx := context.Background()
	total, err := rdb.Get(ctx, KeyReqTotal).Int()
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	errs, err := rdb.Get(ctx, KeyReqErrors).Int()
	require.NoError(t, err)
	assert.Equal(t, 1, errs)

	last, err := rdb.Get(ctx, KeyLastReq).Result()
	require.NoError(t, err)
	assert.Contains(t, last, "/api/v1/boom")
}
