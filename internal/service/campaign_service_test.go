package service

import (
	"context"
	"errors"
	"testing"

	"github.com/kursadbilgin/drip-engine/internal/domain"
	"go.uber.org/zap"
)

func newCampaignServiceForTest(t *testing.T, campaigns *fakeCampaignRepo, segments *fakeSegmentRepo) *CampaignService {
	t.Helper()
	svc, err := NewCampaignService(campaigns, segments, zap.NewNop())
	if err != nil {
		t.Fatalf("NewCampaignService() error = %v", err)
	}
	return svc
}

func TestCampaignServiceCreateAssignsIDs(t *testing.T) {
	t.Parallel()

	var stored *domain.Campaign
	svc := newCampaignServiceForTest(t, &fakeCampaignRepo{
		createFn: func(ctx context.Context, c *domain.Campaign) error {
			stored = c
			return nil
		},
	}, &fakeSegmentRepo{})

	segmentID := "seg-1"
	created, err := svc.Create(context.Background(), &domain.Campaign{
		Name:      " Onboarding ",
		SegmentID: &segmentID,
		Steps: []domain.SequenceStep{
			{OrderIndex: 0, Subject: "Hi", Body: "Welcome"},
			{OrderIndex: 1, DelayDays: 2, Subject: "Again", Body: "Hello"},
		},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if stored == nil || created.ID == "" || created.Name != "Onboarding" {
		t.Fatalf("created = %+v", created)
	}
	for _, step := range created.Steps {
		if step.ID == "" || step.CampaignID != created.ID {
			t.Fatalf("step = %+v, want id and campaign id", step)
		}
	}
}

func TestCampaignServiceCreateValidation(t *testing.T) {
	t.Parallel()

	missing := "seg-missing"
	blank := " "

	tests := []struct {
		name     string
		campaign *domain.Campaign
	}{
		{name: "missing name", campaign: &domain.Campaign{}},
		{name: "unknown segment", campaign: &domain.Campaign{Name: "x", SegmentID: &missing}},
		{name: "blank segment", campaign: &domain.Campaign{Name: "x", SegmentID: &blank}},
		{
			name: "duplicate order index",
			campaign: &domain.Campaign{Name: "x", Steps: []domain.SequenceStep{
				{OrderIndex: 0, Subject: "a", Body: "a"},
				{OrderIndex: 0, Subject: "b", Body: "b"},
			}},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := newCampaignServiceForTest(t, &fakeCampaignRepo{
				createFn: func(ctx context.Context, c *domain.Campaign) error {
					t.Fatal("invalid campaign must not be stored")
					return nil
				},
			}, &fakeSegmentRepo{
				getByIDFn: func(ctx context.Context, id string) (*domain.Segment, error) {
					return nil, domain.ErrNotFound
				},
			})

			_, err := svc.Create(context.Background(), tt.campaign)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("Create() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestCampaignServiceUpdateKeepsKnownStepIDs(t *testing.T) {
	t.Parallel()

	existing := &domain.Campaign{
		ID:   "camp-1",
		Name: "Onboarding",
		Steps: []domain.SequenceStep{
			{ID: "step-1", OrderIndex: 0, Subject: "a", Body: "a"},
			{ID: "step-2", OrderIndex: 1, Subject: "b", Body: "b"},
		},
	}

	var updated *domain.Campaign
	svc := newCampaignServiceForTest(t, &fakeCampaignRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Campaign, error) {
			if updated != nil {
				return updated, nil
			}
			return existing, nil
		},
		updateFn: func(ctx context.Context, c *domain.Campaign) error {
			updated = c
			return nil
		},
	}, &fakeSegmentRepo{})

	got, err := svc.Update(context.Background(), &domain.Campaign{
		ID:   "camp-1",
		Name: "Onboarding v2",
		Steps: []domain.SequenceStep{
			{ID: "step-2", OrderIndex: 0, Subject: "b", Body: "b"},
			{ID: "forged", OrderIndex: 1, Subject: "c", Body: "c"},
		},
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Steps[0].ID != "step-2" {
		t.Fatalf("kept step id = %q, want step-2", got.Steps[0].ID)
	}
	if got.Steps[1].ID == "forged" || got.Steps[1].ID == "" {
		t.Fatalf("new step id = %q, want a fresh id", got.Steps[1].ID)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatal("UpdatedAt should be set")
	}
}

func TestCampaignServiceUpdateMissingCampaign(t *testing.T) {
	t.Parallel()

	svc := newCampaignServiceForTest(t, &fakeCampaignRepo{}, &fakeSegmentRepo{})
	_, err := svc.Update(context.Background(), &domain.Campaign{ID: "nope", Name: "x"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Update() error = %v, want ErrNotFound", err)
	}
}
