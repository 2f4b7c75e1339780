package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kursadbilgin/drip-engine/internal/domain"
	"go.uber.org/zap"
)

func TestLeadServiceCreate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		lead    *domain.Lead
		wantErr error
	}{
		{name: "valid with email", lead: &domain.Lead{Name: "Ana", Email: strPtr("ana@example.com")}},
		{name: "valid without email", lead: &domain.Lead{Name: "Ana"}},
		{name: "missing name", lead: &domain.Lead{Email: strPtr("ana@example.com")}, wantErr: domain.ErrValidation},
		{name: "malformed email", lead: &domain.Lead{Name: "Ana", Email: strPtr("not-an-email")}, wantErr: domain.ErrValidation},
		{name: "unknown segment", lead: &domain.Lead{Name: "Ana", SegmentID: strPtr("missing")}, wantErr: domain.ErrValidation},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, err := NewLeadService(&fakeLeadRepo{}, &fakeSegmentRepo{
				getByIDFn: func(ctx context.Context, id string) (*domain.Segment, error) {
					return nil, domain.ErrNotFound
				},
			}, zap.NewNop())
			if err != nil {
				t.Fatalf("NewLeadService() error = %v", err)
			}

			created, err := svc.Create(context.Background(), tt.lead)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Create() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if created.ID == "" {
				t.Fatal("lead id should be assigned")
			}
		})
	}
}

func TestLeadServiceImport(t *testing.T) {
	t.Parallel()

	var requestedSegments []string
	var stored []*domain.Lead
	svc, err := NewLeadService(&fakeLeadRepo{
		createBatchFn: func(ctx context.Context, leads []*domain.Lead) error {
			stored = leads
			return nil
		},
	}, &fakeSegmentRepo{
		findOrCreateByNamesFn: func(ctx context.Context, names []string) (map[string]string, error) {
			requestedSegments = names
			return map[string]string{"dentists": "seg-dentists"}, nil
		},
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewLeadService() error = %v", err)
	}

	summary, err := svc.Import(context.Background(), []LeadImportRow{
		{Name: "Ana", Email: "ana@example.com", Segment: "Dentists"},
		{Name: "Ben", Email: " ", Website: "https://ben.example.com", Segment: "dentists"},
		{Name: "", Email: "nameless@example.com"},
		{Name: "Cy", Email: "broken@"},
		{Name: "Di"},
	})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	if summary.Imported != 3 || summary.Skipped != 2 {
		t.Fatalf("summary = %+v, want 3 imported and 2 skipped", summary)
	}
	if len(requestedSegments) != 2 {
		t.Fatalf("requested segments = %v, want both spellings", requestedSegments)
	}
	if len(stored) != 3 {
		t.Fatalf("stored leads = %d, want 3", len(stored))
	}
	if stored[0].SegmentID == nil || *stored[0].SegmentID != "seg-dentists" {
		t.Fatalf("Ana segment = %v, want seg-dentists", stored[0].SegmentID)
	}
	if stored[1].SegmentID == nil || *stored[1].SegmentID != "seg-dentists" {
		t.Fatalf("Ben segment = %v, want seg-dentists", stored[1].SegmentID)
	}
	if stored[1].Email != nil {
		t.Fatalf("blank email should be stored as nil, got %q", *stored[1].Email)
	}
	if stored[2].SegmentID != nil {
		t.Fatal("lead without segment should stay unassigned")
	}
}

func TestLeadServiceImportRejectsEmptyAndStoreErrors(t *testing.T) {
	t.Parallel()

	svc, err := NewLeadService(&fakeLeadRepo{
		createBatchFn: func(ctx context.Context, leads []*domain.Lead) error {
			return errors.New("disk full")
		},
	}, &fakeSegmentRepo{}, nil)
	if err != nil {
		t.Fatalf("NewLeadService() error = %v", err)
	}

	if _, err := svc.Import(context.Background(), nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Import(nil) error = %v, want ErrValidation", err)
	}

	_, err = svc.Import(context.Background(), []LeadImportRow{{Name: "Ana"}})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("Import() error = %v, want store error", err)
	}
}
