package api_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/sksmith/go-stock-ledger/api"
	"github.com/sksmith/go-stock-ledger/core"
	"github.com/sksmith/go-stock-ledger/core/location"
	"github.com/sksmith/go-stock-ledger/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListLocations(t *testing.T) {
	s := newServices()
	var gotBusiness string
	s.locations.ListActiveLocationsFunc = func(ctx context.Context, businessID string) ([]location.Location, error) {
		gotBusiness = businessID
		return []location.Location{
			{ID: "main", BusinessID: businessID, Name: "Main", Kind: location.PrimaryStore, Active: true},
			{ID: "retail", BusinessID: businessID, Name: "Retail", LocalName: "Tienda", Kind: location.RetailStore, Active: true},
		}, nil
	}
	ts := s.server()
	defer ts.Close()

	res := testutil.Get(ts.URL+api.ApiPath+api.LocationPath, t, clerk)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var got []api.LocationResponse
	testutil.Unmarshal(res, &got, t)

	assert.Equal(t, biz, gotBusiness)
	require.Len(t, got, 2)
	assert.Equal(t, "Main", got[0].DisplayName)
	assert.Equal(t, "Tienda", got[1].DisplayName)
}

func TestCreateLocation(t *testing.T) {
	tests := []struct {
		name           string
		options        testutil.RequestOptions
		request        api.CreateLocationDto
		createErr      error
		wantStatusCode int
		wantCalls      int
	}{
		{
			name:           "admins can create locations",
			options:        admin,
			request:        api.CreateLocationDto{Name: "Warehouse", Kind: "warehouse"},
			wantStatusCode: http.StatusCreated,
			wantCalls:      1,
		},
		{
			name:           "non-admins cannot create locations",
			options:        clerk,
			request:        api.CreateLocationDto{Name: "Warehouse", Kind: "warehouse"},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "name is required",
			options:        admin,
			request:        api.CreateLocationDto{Kind: "warehouse"},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "kind must be known",
			options:        admin,
			request:        api.CreateLocationDto{Name: "Garage", Kind: "garage"},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "registry rejection is a bad request",
			options:        admin,
			request:        api.CreateLocationDto{Name: "Warehouse", Kind: "warehouse"},
			createErr:      location.ErrInvalidLocation,
			wantStatusCode: http.StatusBadRequest,
			wantCalls:      1,
		},
		{
			name:           "unexpected failures are internal errors",
			options:        admin,
			request:        api.CreateLocationDto{Name: "Warehouse", Kind: "warehouse"},
			createErr:      errors.New("connection reset"),
			wantStatusCode: http.StatusInternalServerError,
			wantCalls:      1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServices()
			var got location.CreateLocationRequest
			s.locations.CreateFunc = func(ctx context.Context, req location.CreateLocationRequest) (location.Location, error) {
				got = req
				if tt.createErr != nil {
					return location.Location{}, tt.createErr
				}
				return location.Location{ID: "loc-1", BusinessID: req.BusinessID, Name: req.Name, Kind: req.Kind, Active: true}, nil
			}
			ts := s.server()
			defer ts.Close()

			res := testutil.Post(ts.URL+api.ApiPath+api.LocationPath, tt.request, t, tt.options)
			require.Equal(t, tt.wantStatusCode, res.StatusCode)
			s.locations.VerifyCount("Create", tt.wantCalls, t)

			if tt.wantStatusCode != http.StatusCreated {
				_ = res.Body.Close()
				return
			}
			body := api.LocationResponse{}
			testutil.Unmarshal(res, &body, t)
			assert.Equal(t, "loc-1", body.ID)
			assert.Equal(t, "Warehouse", body.DisplayName)
			assert.Equal(t, location.CreateLocationRequest{BusinessID: biz, Name: "Warehouse", Kind: location.Warehouse}, got)
		})
	}
}

func TestGetLocation(t *testing.T) {
	tests := []struct {
		name           string
		loc            location.Location
		err            error
		wantStatusCode int
	}{
		{
			name:           "location is returned",
			loc:            location.Location{ID: "main", BusinessID: biz, Name: "Main", Active: true},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "inactive locations can still be looked up",
			loc:            location.Location{ID: "main", BusinessID: biz, Name: "Main"},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "locations of other businesses are hidden",
			loc:            location.Location{ID: "main", BusinessID: "biz-2", Name: "Main", Active: true},
			wantStatusCode: http.StatusNotFound,
		},
		{name: "missing location", err: core.ErrNotFound, wantStatusCode: http.StatusNotFound},
		{name: "storage failure", err: errors.New("connection reset"), wantStatusCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServices()
			s.locations.GetLocationFunc = func(ctx context.Context, id string) (location.Location, error) {
				return tt.loc, tt.err
			}
			ts := s.server()
			defer ts.Close()

			res := testutil.Get(ts.URL+api.ApiPath+api.LocationPath+"/main", t, clerk)
			require.Equal(t, tt.wantStatusCode, res.StatusCode)

			if tt.wantStatusCode != http.StatusOK {
				_ = res.Body.Close()
				return
			}
			body := api.LocationResponse{}
			testutil.Unmarshal(res, &body, t)
			assert.Equal(t, tt.loc.Active, body.Active)
		})
	}
}

func TestDeactivateLocation(t *testing.T) {
	tests := []struct {
		name           string
		options        testutil.RequestOptions
		deactivateErr  error
		wantStatusCode int
		wantCalls      int
	}{
		{name: "admins can deactivate", options: admin, wantStatusCode: http.StatusNoContent, wantCalls: 1},
		{name: "non-admins cannot deactivate", options: clerk, wantStatusCode: http.StatusUnauthorized},
		{
			name:           "storage failure",
			options:        admin,
			deactivateErr:  errors.New("connection reset"),
			wantStatusCode: http.StatusInternalServerError,
			wantCalls:      1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServices()
			s.locations.GetLocationFunc = func(ctx context.Context, id string) (location.Location, error) {
				return location.Location{ID: id, BusinessID: biz, Name: "Main", Active: true}, nil
			}
			s.locations.DeactivateFunc = func(ctx context.Context, id string) error {
				return tt.deactivateErr
			}
			ts := s.server()
			defer ts.Close()

			res := testutil.Delete(ts.URL+api.ApiPath+api.LocationPath+"/main", t, tt.options)
			_ = res.Body.Close()

			assert.Equal(t, tt.wantStatusCode, res.StatusCode)
			s.locations.VerifyCount("Deactivate", tt.wantCalls, t)
		})
	}
}
