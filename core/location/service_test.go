package location_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/sksmith/go-stock-ledger/core"
	"github.com/sksmith/go-stock-ledger/core/location"
	"github.com/sksmith/go-stock-ledger/db/locrepo"
	"github.com/sksmith/go-stock-ledger/testutil"
)

func TestMain(m *testing.M) {
	testutil.ConfigLogging()
	os.Exit(m.Run())
}

func TestCreate(t *testing.T) {
	tests := []struct {
		name    string
		request location.CreateLocationRequest

		saveFunc func(ctx context.Context, loc location.Location, options ...core.UpdateOptions) error

		wantName        string
		wantRepoCallCnt map[string]int
		wantErr         error
	}{
		{
			name:    "location is created active",
			request: location.CreateLocationRequest{BusinessID: "biz-1", Name: "  Main  ", Kind: location.PrimaryStore},

			wantName:        "Main",
			wantRepoCallCnt: map[string]int{"SaveLocation": 1},
		},
		{
			name:    "missing name",
			request: location.CreateLocationRequest{BusinessID: "biz-1", Name: " ", Kind: location.Warehouse},

			wantRepoCallCnt: map[string]int{"SaveLocation": 0},
			wantErr:         location.ErrInvalidLocation,
		},
		{
			name:    "missing business",
			request: location.CreateLocationRequest{Name: "Main", Kind: location.Warehouse},

			wantRepoCallCnt: map[string]int{"SaveLocation": 0},
			wantErr:         location.ErrInvalidLocation,
		},
		{
			name:    "unknown kind",
			request: location.CreateLocationRequest{BusinessID: "biz-1", Name: "Main", Kind: "garage"},

			wantRepoCallCnt: map[string]int{"SaveLocation": 0},
			wantErr:         location.ErrInvalidLocation,
		},
		{
			name:    "repository error",
			request: location.CreateLocationRequest{BusinessID: "biz-1", Name: "Main", Kind: location.RetailStore},

			saveFunc: func(ctx context.Context, loc location.Location, options ...core.UpdateOptions) error {
				return errSome
			},

			wantRepoCallCnt: map[string]int{"SaveLocation": 1},
			wantErr:         errSome,
		},
	}

	for _, test := range tests {
		mockRepo := locrepo.NewMockRepo()
		if test.saveFunc != nil {
			mockRepo.SaveLocationFunc = test.saveFunc
		}

		service := location.NewService(mockRepo)

		t.Run(test.name, func(t *testing.T) {
			got, err := service.Create(context.Background(), test.request)
			if test.wantErr != nil && !errors.Is(err, test.wantErr) {
				t.Errorf("unexpected error got=%v want=%v", err, test.wantErr)
			} else if test.wantErr == nil && err != nil {
				t.Errorf("did not want error, got=%v", err)
			}

			if test.wantErr == nil {
				if got.Name != test.wantName {
					t.Errorf("name got=%q want=%q", got.Name, test.wantName)
				}
				if !got.Active {
					t.Errorf("expected new location to be active")
				}
				if got.ID == "" {
					t.Errorf("expected an id to be assigned")
				}
			}

			for f, c := range test.wantRepoCallCnt {
				mockRepo.VerifyCount(f, c, t)
			}
		})
	}
}

func TestDeactivate(t *testing.T) {
	tests := []struct {
		name string

		getFunc func(ctx context.Context, id string, options ...core.QueryOptions) (location.Location, error)

		wantSaved       *location.Location
		wantRepoCallCnt map[string]int
		wantErr         error
	}{
		{
			name: "active location is deactivated",
			getFunc: func(ctx context.Context, id string, options ...core.QueryOptions) (location.Location, error) {
				return location.Location{ID: id, BusinessID: "biz-1", Name: "Main", Active: true}, nil
			},
			wantSaved:       &location.Location{ID: "loc-1", BusinessID: "biz-1", Name: "Main", Active: false},
			wantRepoCallCnt: map[string]int{"SaveLocation": 1},
		},
		{
			name: "inactive location is left alone",
			getFunc: func(ctx context.Context, id string, options ...core.QueryOptions) (location.Location, error) {
				return location.Location{ID: id, BusinessID: "biz-1", Name: "Main", Active: false}, nil
			},
			wantRepoCallCnt: map[string]int{"SaveLocation": 0},
		},
		{
			name:            "unknown location",
			wantRepoCallCnt: map[string]int{"SaveLocation": 0},
			wantErr:         core.ErrNotFound,
		},
	}

	for _, test := range tests {
		mockRepo := locrepo.NewMockRepo()
		if test.getFunc != nil {
			mockRepo.GetLocationFunc = test.getFunc
		}
		var saved *location.Location
		mockRepo.SaveLocationFunc = func(ctx context.Context, loc location.Location, options ...core.UpdateOptions) error {
			saved = &loc
			return nil
		}

		service := location.NewService(mockRepo)

		t.Run(test.name, func(t *testing.T) {
			err := service.Deactivate(context.Background(), "loc-1")
			if test.wantErr != nil && !errors.Is(err, test.wantErr) {
				t.Errorf("unexpected error got=%v want=%v", err, test.wantErr)
			} else if test.wantErr == nil && err != nil {
				t.Errorf("did not want error, got=%v", err)
			}

			if test.wantSaved != nil {
				if saved == nil {
					t.Fatalf("expected location to be saved")
				}
				if *saved != *test.wantSaved {
					t.Errorf("saved got=%+v want=%+v", *saved, *test.wantSaved)
				}
			}

			for f, c := range test.wantRepoCallCnt {
				mockRepo.VerifyCount(f, c, t)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	if got := (location.Location{Name: "Main", LocalName: "Principal"}).DisplayName(); got != "Principal" {
		t.Errorf("got=%q want=%q", got, "Principal")
	}
	if got := (location.Location{Name: "Main"}).DisplayName(); got != "Main" {
		t.Errorf("got=%q want=%q", got, "Main")
	}
}

var errSome = errors.New("some unexpected error")
