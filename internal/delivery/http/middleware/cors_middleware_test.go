package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/viper"
)

func TestAllowedOrigins(t *testing.T) {
	tests := []struct {
		name string
		set  interface{}
		want string
	}{
		{"unset", nil, "*"},
		{"list", []string{"https://halpi.app", " http://localhost:3000 "}, "https://halpi.app,http://localhost:3000"},
		{"env string", "https://halpi.app,https://admin.halpi.app", "https://halpi.app,https://admin.halpi.app"},
		{"empty list", []string{}, "*"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			if tt.set != nil {
				v.Set("api.cors.origins", tt.set)
			}
			m := NewMiddleware(&MiddlewareConfig{Config: v})
			if got := m.allowedOrigins(); got != tt.want {
				t.Errorf("allowedOrigins() = %q; want %q", got, tt.want)
			}
		})
	}
}

func TestCorsMiddlewareEchoesListedOrigin(t *testing.T) {
	v := viper.New()
	v.Set("api.cors.origins", []string{"https://halpi.app"})
	m := NewMiddleware(&MiddlewareConfig{Config: v})

	app := fiber.New()
	app.Use(m.CorsMiddleware())
	app.Get("/", func(ctx *fiber.Ctx) error { return ctx.SendStatus(fiber.StatusNoContent) })

	for origin, want := range map[string]string{
		"https://halpi.app":    "https://halpi.app",
		"https://evil.example": "",
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(fiber.HeaderOrigin, origin)
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatalf("request from %s: %v", origin, err)
		}
		resp.Body.Close()
		if got := resp.Header.Get(fiber.HeaderAccessControlAllowOrigin); got != want {
			t.Errorf("origin %s allowed = %q; want %q", origin, got, want)
		}
	}
}
