package api_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/sksmith/go-stock-ledger/api"
	"github.com/sksmith/go-stock-ledger/core/inventory"
	"github.com/sksmith/go-stock-ledger/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func productStock(productID string) inventory.ProductStock {
	return inventory.ProductStock{
		ProductID: productID,
		Locations: []inventory.LocationStock{
			{LocationID: "main", LocationName: "Main", Quantity: 5, Available: 5, Status: inventory.InStock},
			{LocationID: "retail", LocationName: "Retail", Quantity: 3, Reserved: 3, Status: inventory.NotAvailableForSale},
		},
		Total: 8, Reserved: 3, Available: 5, Status: inventory.InStock,
	}
}

func TestListStock(t *testing.T) {
	s := newServices()
	var gotIDs []string
	s.stock.ProductStockFunc = func(ctx context.Context, businessID string, productIDs ...string) ([]inventory.ProductStock, error) {
		gotIDs = productIDs
		stock := make([]inventory.ProductStock, 0, len(productIDs))
		for _, id := range productIDs {
			stock = append(stock, productStock(id))
		}
		return stock, nil
	}
	ts := s.server()
	defer ts.Close()

	res := testutil.Get(ts.URL+api.ApiPath+api.StockPath+"?productId=sku-1&productId=sku-2", t, clerk)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var got []api.ProductStockResponse
	testutil.Unmarshal(res, &got, t)

	assert.Equal(t, []string{"sku-1", "sku-2"}, gotIDs)
	require.Len(t, got, 2)
	assert.Equal(t, "sku-2", got[1].ProductID)
	assert.Equal(t, "Main: 5 | Retail: 3 → Total: 8", got[0].Summary)
	assert.Equal(t, inventory.NotAvailableForSale, got[0].Locations[1].Status)
}

func TestListStockRequiresProduct(t *testing.T) {
	s := newServices()
	ts := s.server()
	defer ts.Close()

	res := testutil.Get(ts.URL+api.ApiPath+api.StockPath, t, clerk)
	_ = res.Body.Close()

	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	s.stock.VerifyCount("ProductStock", 0, t)
}

func TestGetStock(t *testing.T) {
	tests := []struct {
		name           string
		stock          []inventory.ProductStock
		err            error
		wantStatusCode int
	}{
		{name: "stock is returned", stock: []inventory.ProductStock{productStock("sku-1")}, wantStatusCode: http.StatusOK},
		{name: "nothing to report", stock: []inventory.ProductStock{}, wantStatusCode: http.StatusNotFound},
		{name: "storage failure", err: errors.New("connection reset"), wantStatusCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServices()
			s.stock.ProductStockFunc = func(ctx context.Context, businessID string, productIDs ...string) ([]inventory.ProductStock, error) {
				return tt.stock, tt.err
			}
			ts := s.server()
			defer ts.Close()

			res := testutil.Get(ts.URL+api.ApiPath+api.StockPath+"/sku-1", t, clerk)
			require.Equal(t, tt.wantStatusCode, res.StatusCode)

			if tt.wantStatusCode == http.StatusOK {
				got := api.ProductStockResponse{}
				testutil.Unmarshal(res, &got, t)
				assert.Equal(t, int64(8), got.Total)
				assert.Equal(t, "Main: 5 | Retail: 3 → Total: 8", got.Summary)
			} else {
				_ = res.Body.Close()
			}
		})
	}
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name           string
		options        testutil.RequestOptions
		discrepancies  []inventory.Discrepancy
		wantStatusCode int
		wantConsistent bool
	}{
		{name: "only admins can reconcile", options: clerk, wantStatusCode: http.StatusUnauthorized},
		{name: "consistent ledger", options: admin, wantStatusCode: http.StatusOK, wantConsistent: true},
		{
			name:           "drift is reported",
			options:        admin,
			discrepancies:  []inventory.Discrepancy{{ProductID: "sku-1", LocationID: "main", Materialized: 5, Ledger: 4}},
			wantStatusCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServices()
			s.stock.ReconcileFunc = func(ctx context.Context, productID string) ([]inventory.Discrepancy, error) {
				return tt.discrepancies, nil
			}
			ts := s.server()
			defer ts.Close()

			res := testutil.Get(ts.URL+api.ApiPath+api.StockPath+"/sku-1/reconcile", t, tt.options)
			require.Equal(t, tt.wantStatusCode, res.StatusCode)
			if tt.wantStatusCode != http.StatusOK {
				_ = res.Body.Close()
				s.stock.VerifyCount("Reconcile", 0, t)
				return
			}

			got := api.ReconcileResponse{}
			testutil.Unmarshal(res, &got, t)
			assert.Equal(t, "sku-1", got.ProductID)
			assert.Equal(t, tt.wantConsistent, got.Consistent)
			assert.Len(t, got.Discrepancies, len(tt.discrepancies))
		})
	}
}

func TestReserve(t *testing.T) {
	s := newServices()
	var got inventory.ReservationRequest
	s.transfers.ReserveFunc = func(ctx context.Context, rr inventory.ReservationRequest) (inventory.StockBalance, error) {
		got = rr
		return inventory.StockBalance{ProductID: rr.ProductID, LocationID: rr.LocationID, Quantity: 5, Reserved: rr.Quantity}, nil
	}
	ts := s.server()
	defer ts.Close()

	res := testutil.Post(ts.URL+api.ApiPath+api.StockPath+"/sku-1/locations/main/reserve", api.ReservationDto{Quantity: 2}, t, clerk)
	require.Equal(t, http.StatusOK, res.StatusCode)

	body := api.BalanceResponse{}
	testutil.Unmarshal(res, &body, t)

	assert.Equal(t, int64(2), body.Reserved)
	assert.Equal(t, int64(3), body.Available)
	assert.Equal(t, inventory.ReservationRequest{BusinessID: biz, ProductID: "sku-1", LocationID: "main", Quantity: 2, ActorID: clerk.Username}, got)
}

func TestReservationErrors(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		quantity       int64
		err            error
		wantStatusCode int
		wantCalls      int
	}{
		{name: "quantity must be positive", path: "/reserve", quantity: 0, wantStatusCode: http.StatusBadRequest},
		{
			name:           "cannot reserve more than is available",
			path:           "/reserve",
			quantity:       9,
			err:            &inventory.TransferError{Kind: inventory.InsufficientStock},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantCalls:      1,
		},
		{
			name:           "cannot release more than is reserved",
			path:           "/release",
			quantity:       9,
			err:            &inventory.TransferError{Kind: inventory.InvalidRequest},
			wantStatusCode: http.StatusBadRequest,
			wantCalls:      1,
		},
		{
			name:           "inactive location",
			path:           "/release",
			quantity:       1,
			err:            &inventory.TransferError{Kind: inventory.LocationInactive},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantCalls:      1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServices()
			change := func(ctx context.Context, rr inventory.ReservationRequest) (inventory.StockBalance, error) {
				return inventory.StockBalance{}, tt.err
			}
			s.transfers.ReserveFunc = change
			s.transfers.ReleaseFunc = change
			ts := s.server()
			defer ts.Close()

			res := testutil.Post(ts.URL+api.ApiPath+api.StockPath+"/sku-1/locations/main"+tt.path, api.ReservationDto{Quantity: tt.quantity}, t, clerk)
			_ = res.Body.Close()

			assert.Equal(t, tt.wantStatusCode, res.StatusCode)
			s.transfers.VerifyCount("Reserve", boolCount(tt.path == "/reserve", tt.wantCalls), t)
			s.transfers.VerifyCount("Release", boolCount(tt.path == "/release", tt.wantCalls), t)
		})
	}
}

func boolCount(match bool, n int) int {
	if match {
		return n
	}
	return 0
}

func TestSetThresholds(t *testing.T) {
	s := newServices()
	var got inventory.ThresholdRequest
	s.transfers.SetThresholdsFunc = func(ctx context.Context, tr inventory.ThresholdRequest) (inventory.StockBalance, error) {
		got = tr
		return inventory.StockBalance{ProductID: tr.ProductID, LocationID: tr.LocationID, Quantity: 4, ReorderPoint: tr.ReorderPoint, MaxStock: tr.MaxStock}, nil
	}
	ts := s.server()
	defer ts.Close()

	res := testutil.Put(ts.URL+api.ApiPath+api.StockPath+"/sku-1/locations/main/thresholds", api.ThresholdDto{ReorderPoint: 2, MaxStock: 20}, t, admin)
	require.Equal(t, http.StatusOK, res.StatusCode)

	body := api.BalanceResponse{}
	testutil.Unmarshal(res, &body, t)

	assert.Equal(t, int64(2), body.ReorderPoint)
	assert.Equal(t, int64(20), body.MaxStock)
	assert.Equal(t, inventory.ThresholdRequest{BusinessID: biz, ProductID: "sku-1", LocationID: "main", ReorderPoint: 2, MaxStock: 20}, got)

	res = testutil.Put(ts.URL+api.ApiPath+api.StockPath+"/sku-1/locations/main/thresholds", api.ThresholdDto{ReorderPoint: -1}, t, admin)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = testutil.Put(ts.URL+api.ApiPath+api.StockPath+"/sku-1/locations/main/thresholds", api.ThresholdDto{ReorderPoint: 2}, t, clerk)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	s.transfers.VerifyCount("SetThresholds", 1, t)
}
