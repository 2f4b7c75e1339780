package transport

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
		wantLevel  zapcore.Level
	}{
		{
			name:       "fiber error keeps status and message",
			err:        fiber.NewError(fiber.StatusNotFound, "not found: campaign"),
			wantStatus: fiber.StatusNotFound,
			wantBody:   "not found: campaign",
			wantLevel:  zapcore.WarnLevel,
		},
		{
			name:       "unknown error hides details",
			err:        errors.New("pq: connection refused"),
			wantStatus: fiber.StatusInternalServerError,
			wantBody:   "internal server error",
			wantLevel:  zapcore.ErrorLevel,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, recorded := observer.New(zapcore.DebugLevel)
			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.New(core))})
			app.Get("/track/:token", func(c *fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/track/secret-token", nil))
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if !strings.Contains(string(body), tt.wantBody) {
				t.Fatalf("body = %s, want %q", body, tt.wantBody)
			}
			entries := recorded.All()
			if len(entries) != 1 || entries[0].Level != tt.wantLevel {
				t.Fatalf("log entries = %+v, want one at %s", entries, tt.wantLevel)
			}
			if got := entries[0].ContextMap()["route"]; got != "/track/:token" {
				t.Fatalf("route field = %v, want the pattern", got)
			}
		})
	}
}
