package app

import (
	"context"
	"errors"
	"testing"

	"github.com/kursadbilgin/drip-engine/internal/config"
	"github.com/kursadbilgin/drip-engine/internal/domain"
	"github.com/kursadbilgin/drip-engine/internal/gateway"
	"github.com/kursadbilgin/drip-engine/internal/queue"
	"go.uber.org/zap"
)

type memoryCredentials struct{}

func (memoryCredentials) Get(context.Context, string) (*domain.MailboxCredential, error) {
	return nil, domain.ErrNotFound
}

func (memoryCredentials) Save(context.Context, *domain.MailboxCredential) error { return nil }

func TestNewGateway(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		cfg         config.Config
		wantErr     bool
		wantChecker bool
		wantType    string
	}{
		{
			name: "gmail",
			cfg: config.Config{
				Gateway:            config.GatewayGmail,
				GoogleClientID:     "client",
				GoogleClientSecret: "secret",
				MailboxID:          "default",
				GmailAPIURL:        "https://gmail.googleapis.com",
			},
			wantChecker: true,
			wantType:    "gmail",
		},
		{
			name: "smtp",
			cfg: config.Config{
				Gateway:  config.GatewaySMTP,
				SMTPHost: "smtp.example.com",
				SMTPPort: 587,
				SMTPFrom: "sales@example.com",
			},
			wantType: "smtp",
		},
		{
			name:    "smtp without host",
			cfg:     config.Config{Gateway: config.GatewaySMTP, SMTPPort: 587, SMTPFrom: "sales@example.com"},
			wantErr: true,
		},
		{
			name:    "unknown gateway",
			cfg:     config.Config{Gateway: "pigeon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gw, checker, err := newGateway(&tt.cfg, memoryCredentials{}, zap.NewNop())
			if tt.wantErr {
				if err == nil {
					t.Fatal("newGateway() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("newGateway() error = %v", err)
			}
			if (checker != nil) != tt.wantChecker {
				t.Fatalf("checker = %v, wantChecker %v", checker, tt.wantChecker)
			}

			switch tt.wantType {
			case "gmail":
				if _, ok := gw.(*gateway.GmailGateway); !ok {
					t.Fatalf("gateway = %T, want *gateway.GmailGateway", gw)
				}
			case "smtp":
				if _, ok := gw.(*gateway.SMTPGateway); !ok {
					t.Fatalf("gateway = %T, want *gateway.SMTPGateway", gw)
				}
			}
		})
	}
}

func TestNewPublisherWithoutBrokerIsNop(t *testing.T) {
	t.Parallel()

	publisher, err := newPublisher(context.Background(), "  ")
	if err != nil {
		t.Fatalf("newPublisher() error = %v", err)
	}
	if _, ok := publisher.(queue.NopPublisher); !ok {
		t.Fatalf("publisher = %T, want queue.NopPublisher", publisher)
	}
}

func TestCloseRunsClosersInReverse(t *testing.T) {
	t.Parallel()

	var order []string
	boom := errors.New("boom")
	a := &App{closers: []func() error{
		func() error { order = append(order, "db"); return nil },
		func() error { order = append(order, "redis"); return boom },
		func() error { order = append(order, "amqp"); return nil },
	}}

	err := a.Close()
	if !errors.Is(err, boom) {
		t.Fatalf("Close() error = %v, want boom", err)
	}
	want := []string{"amqp", "redis", "db"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("close order = %v, want %v", order, want)
		}
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestNewRequiresConfig(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), nil, nil); err == nil {
		t.Fatal("New() expected error for nil config")
	}
}
