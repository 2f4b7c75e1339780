package handler

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/drip-engine/internal/domain"
	"github.com/kursadbilgin/drip-engine/internal/gateway"
	"github.com/kursadbilgin/drip-engine/internal/ratelimit"
	"github.com/kursadbilgin/drip-engine/internal/repository"
	"github.com/kursadbilgin/drip-engine/internal/service"
)

type stubMessageService struct {
	sendSingleFn func(ctx context.Context, req service.SingleSend) (domain.MessageLog, error)
	sendBulkFn   func(ctx context.Context, req service.BulkSend) (service.BulkSummary, error)
	statsFn      func(ctx context.Context, filter repository.MessageStatsFilter) (domain.MessageStats, error)
}

func (s *stubMessageService) SendSingle(ctx context.Context, req service.SingleSend) (domain.MessageLog, error) {
	return s.sendSingleFn(ctx, req)
}

func (s *stubMessageService) SendBulk(ctx context.Context, req service.BulkSend) (service.BulkSummary, error) {
	return s.sendBulkFn(ctx, req)
}

func (s *stubMessageService) Stats(ctx context.Context, filter repository.MessageStatsFilter) (domain.MessageStats, error) {
	return s.statsFn(ctx, filter)
}

func newMessageTestApp(t *testing.T, svc MessageService) *fiber.App {
	t.Helper()
	return newTestApp(t, func(r fiber.Router) error { return RegisterMessageRoutes(r, svc) })
}

func TestMessageIntegration_SendMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		sendErr    error
		wantStatus int
		wantTrack  bool
	}{
		{
			name:       "tracked by default",
			body:       `{"to":"ana@example.com","subject":"Hi","body":"<p>x</p>"}`,
			wantStatus: fiber.StatusCreated,
			wantTrack:  true,
		},
		{
			name:       "tracking disabled",
			body:       `{"to":"ana@example.com","subject":"Hi","track":false}`,
			wantStatus: fiber.StatusCreated,
		},
		{
			name:       "invalid recipient",
			body:       `{"to":"ana","subject":"Hi"}`,
			wantStatus: fiber.StatusBadRequest,
		},
		{
			name:       "gateway rejected",
			body:       `{"to":"ana@example.com","subject":"Hi"}`,
			sendErr:    &gateway.SendError{StatusCode: 400, Message: "bad recipient"},
			wantStatus: fiber.StatusBadGateway,
			wantTrack:  true,
		},
		{
			name:       "mailbox not connected",
			body:       `{"to":"ana@example.com","subject":"Hi"}`,
			sendErr:    &gateway.SendError{Message: "mailbox is not connected", Cause: domain.ErrMailboxNotConnected},
			wantStatus: fiber.StatusPreconditionFailed,
			wantTrack:  true,
		},
		{
			name:       "daily quota exhausted",
			body:       `{"to":"ana@example.com","subject":"Hi"}`,
			sendErr:    fmt.Errorf("rate limiter wait failed: %w", ratelimit.ErrQuotaExhausted),
			wantStatus: fiber.StatusTooManyRequests,
			wantTrack:  true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := &stubMessageService{
				sendSingleFn: func(ctx context.Context, req service.SingleSend) (domain.MessageLog, error) {
					if req.Track != tt.wantTrack {
						t.Fatalf("track = %v, want %v", req.Track, tt.wantTrack)
					}
					log := domain.MessageLog{
						ID:             "log-1",
						RecipientEmail: req.To,
						Subject:        req.Subject,
						Status:         domain.MessageStatusSent,
						Type:           domain.MessageTypeSingle,
						CreatedAt:      time.Now(),
					}
					if tt.sendErr != nil {
						reason := tt.sendErr.Error()
						log.Status = domain.MessageStatusFailed
						log.Error = &reason
					}
					return log, tt.sendErr
				},
			}
			app := newMessageTestApp(t, svc)

			resp, body := performRequest(t, app, http.MethodPost, "/v1/messages", tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body=%s", resp.StatusCode, tt.wantStatus, string(body))
			}
			if tt.wantStatus == fiber.StatusBadGateway {
				var msg messageResponse
				decodeJSON(t, body, &msg)
				if msg.Status != "FAILED" || msg.Error == nil {
					t.Fatalf("message = %+v, want FAILED entry", msg)
				}
			}
		})
	}
}

func TestMessageIntegration_BulkAndStats(t *testing.T) {
	t.Parallel()

	var gotFilter repository.MessageStatsFilter
	svc := &stubMessageService{
		sendBulkFn: func(ctx context.Context, req service.BulkSend) (service.BulkSummary, error) {
			if req.SegmentID == "missing" {
				return service.BulkSummary{}, domain.ErrNotFound
			}
			return service.BulkSummary{Recipients: 2, Sent: 2}, nil
		},
		statsFn: func(ctx context.Context, filter repository.MessageStatsFilter) (domain.MessageStats, error) {
			gotFilter = filter
			return domain.MessageStats{Total: 4, Sent: 4, Opened: 1, TotalOpens: 3}, nil
		},
	}
	app := newMessageTestApp(t, svc)

	resp, body := performRequest(t, app, http.MethodPost, "/v1/messages/bulk", `{"segmentId":"seg-1","subject":"Hi {{name}}","body":"Hello"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("bulk status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}
	var summary service.BulkSummary
	decodeJSON(t, body, &summary)
	if summary.Sent != 2 {
		t.Fatalf("summary = %+v", summary)
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/v1/messages/bulk", `{"segmentId":"missing","subject":"s","body":"b"}`)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("bulk missing segment status = %d, want 404", resp.StatusCode)
	}

	resp, body = performRequest(t, app, http.MethodGet, "/v1/messages/stats?type=bulk&recipient=ana@example.com", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("stats status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}
	if gotFilter.Type == nil || *gotFilter.Type != domain.MessageTypeBulk || gotFilter.RecipientEmail == nil {
		t.Fatalf("filter = %+v", gotFilter)
	}
	var stats statsResponse
	decodeJSON(t, body, &stats)
	if stats.OpenRate != 25 || stats.TotalOpens != 3 {
		t.Fatalf("stats = %+v, want 25%% open rate", stats)
	}

	resp, _ = performRequest(t, app, http.MethodGet, "/v1/messages/stats?type=fax", "")
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("invalid type status = %d, want 400", resp.StatusCode)
	}
}
