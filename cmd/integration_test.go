package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sksmith/go-stock-ledger/api"
	"github.com/sksmith/go-stock-ledger/config"
	"github.com/sksmith/go-stock-ledger/core/inventory"
	"github.com/sksmith/go-stock-ledger/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	cfg    *config.Config
	server *httptest.Server
	admin  testutil.RequestOptions
)

func TestMain(m *testing.M) {
	testutil.ConfigLogging()

	cfg = config.LoadDefaults()
	cfg.Db.InMemory.Value = true
	cfg.RabbitMQ.Mock.Value = true
	cfg.Transfer.Backoff.Value = time.Millisecond
	admin = testutil.RequestOptions{Username: cfg.Seed.User.Value, Password: cfg.Seed.Pass.Value}

	a, err := newApp(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start the application")
	}
	server = httptest.NewServer(a.router)

	code := m.Run()

	server.Close()
	a.Close()
	os.Exit(code)
}

func url(path string) string {
	return server.URL + api.ApiPath + path
}

func createLocation(t *testing.T, name, kind string) string {
	t.Helper()
	res := testutil.Post(url(api.LocationPath), api.CreateLocationDto{Name: name, Kind: kind}, t, admin)
	require.Equal(t, http.StatusCreated, res.StatusCode)

	loc := api.LocationResponse{}
	testutil.Unmarshal(res, &loc, t)
	return loc.ID
}

func postTransfer(t *testing.T, req api.TransferRequestDto, wantStatusCode int) *http.Response {
	t.Helper()
	res := testutil.Post(url(api.TransferPath), req, t, admin)
	require.Equal(t, wantStatusCode, res.StatusCode)
	return res
}

func to(locationID string) *api.DestinationDto {
	return &api.DestinationDto{LocationID: locationID}
}

func lines(productID string, qty int64) []api.LineItemDto {
	return []api.LineItemDto{{ProductID: productID, Quantity: qty}}
}

func quantityAt(ps api.ProductStockResponse, locationID string) int64 {
	for _, l := range ps.Locations {
		if l.LocationID == locationID {
			return l.Quantity
		}
	}
	return 0
}

func TestStockLifecycle(t *testing.T) {
	const sku = "lifecycle-sku"
	mainID := createLocation(t, "Main", "primary_store")
	retailID := createLocation(t, "Retail", "retail_store")

	res := postTransfer(t, api.TransferRequestDto{Kind: "initial_stock", Destination: to(mainID), Lines: lines(sku, 10)}, http.StatusCreated)
	created := api.TransferResponse{}
	testutil.Unmarshal(res, &created, t)
	assert.NotEmpty(t, created.BatchID)
	assert.Equal(t, int64(10), created.TotalQuantity)

	res = postTransfer(t, api.TransferRequestDto{SourceLocationID: mainID, Destination: to(retailID), Lines: lines(sku, 3)}, http.StatusCreated)
	_ = res.Body.Close()

	res = postTransfer(t, api.TransferRequestDto{
		Kind:             "sale",
		SourceLocationID: retailID,
		Destination:      &api.DestinationDto{External: true, Label: "Customer: Jane"},
		Lines:            lines(sku, 2),
		ReferenceID:      "order-1",
	}, http.StatusCreated)
	_ = res.Body.Close()

	res = postTransfer(t, api.TransferRequestDto{SourceLocationID: mainID, Destination: to(retailID), Lines: lines(sku, 20)}, http.StatusUnprocessableEntity)
	rejected := api.ErrResponse{}
	testutil.Unmarshal(res, &rejected, t)
	assert.Equal(t, string(inventory.InsufficientStock), rejected.Kind)
	require.Len(t, rejected.Lines, 1)
	assert.Equal(t, int64(7), rejected.Lines[0].Available)

	res = testutil.Get(url(api.StockPath+"/"+sku), t, admin)
	require.Equal(t, http.StatusOK, res.StatusCode)
	stock := api.ProductStockResponse{}
	testutil.Unmarshal(res, &stock, t)
	assert.Equal(t, int64(8), stock.Total)
	assert.Equal(t, int64(7), quantityAt(stock, mainID))
	assert.Equal(t, int64(1), quantityAt(stock, retailID))
	assert.Contains(t, stock.Summary, "Total: 8")

	res = testutil.Get(url(api.MovementPath+"?productId="+sku), t, admin)
	require.Equal(t, http.StatusOK, res.StatusCode)
	page := inventory.MovementPage{}
	testutil.Unmarshal(res, &page, t)
	assert.Equal(t, 3, page.TotalCount)

	res = testutil.Get(url(api.MovementPath+"?referenceId=order-1"), t, admin)
	require.Equal(t, http.StatusOK, res.StatusCode)
	sales := inventory.MovementPage{}
	testutil.Unmarshal(res, &sales, t)
	require.Len(t, sales.Movements, 1)
	assert.Equal(t, inventory.Sale, sales.Movements[0].Kind)
	assert.Equal(t, "Retail", sales.Movements[0].FromLabel)
	assert.Equal(t, "Customer: Jane", sales.Movements[0].ToLabel)

	res = testutil.Get(url(api.StockPath+"/"+sku+"/reconcile"), t, admin)
	require.Equal(t, http.StatusOK, res.StatusCode)
	reconciled := api.ReconcileResponse{}
	testutil.Unmarshal(res, &reconciled, t)
	assert.True(t, reconciled.Consistent)
}

func TestDeactivatedLocationsRejectTransfers(t *testing.T) {
	const sku = "deactivate-sku"
	mainID := createLocation(t, "Main", "primary_store")
	popup := createLocation(t, "Popup", "retail_store")

	res := postTransfer(t, api.TransferRequestDto{Kind: "initial_stock", Destination: to(mainID), Lines: lines(sku, 5)}, http.StatusCreated)
	_ = res.Body.Close()

	res = testutil.Delete(url(api.LocationPath+"/"+popup), t, admin)
	_ = res.Body.Close()
	require.Equal(t, http.StatusNoContent, res.StatusCode)

	res = postTransfer(t, api.TransferRequestDto{SourceLocationID: mainID, Destination: to(popup), Lines: lines(sku, 1)}, http.StatusUnprocessableEntity)
	rejected := api.ErrResponse{}
	testutil.Unmarshal(res, &rejected, t)
	assert.Equal(t, string(inventory.LocationInactive), rejected.Kind)

	res = testutil.Get(url(api.LocationPath+"/"+popup), t, admin)
	require.Equal(t, http.StatusOK, res.StatusCode)
	loc := api.LocationResponse{}
	testutil.Unmarshal(res, &loc, t)
	assert.False(t, loc.Active)
}

func TestReservationsLimitSales(t *testing.T) {
	const sku = "reserve-sku"
	store := createLocation(t, "Store", "retail_store")

	res := postTransfer(t, api.TransferRequestDto{Kind: "initial_stock", Destination: to(store), Lines: lines(sku, 4)}, http.StatusCreated)
	_ = res.Body.Close()

	res = testutil.Post(url(api.StockPath+"/"+sku+"/locations/"+store+"/reserve"), api.ReservationDto{Quantity: 3}, t, admin)
	require.Equal(t, http.StatusOK, res.StatusCode)
	balance := api.BalanceResponse{}
	testutil.Unmarshal(res, &balance, t)
	assert.Equal(t, int64(1), balance.Available)

	sale := api.TransferRequestDto{Kind: "sale", SourceLocationID: store, Destination: &api.DestinationDto{External: true}, Lines: lines(sku, 2)}
	res = postTransfer(t, sale, http.StatusUnprocessableEntity)
	_ = res.Body.Close()

	res = testutil.Post(url(api.StockPath+"/"+sku+"/locations/"+store+"/release"), api.ReservationDto{Quantity: 3}, t, admin)
	_ = res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	res = postTransfer(t, sale, http.StatusCreated)
	_ = res.Body.Close()
}

func TestUsersActWithinTheirBusiness(t *testing.T) {
	res := testutil.Post(url(api.UserPath), api.CreateUserRequestDto{Username: "clerk1", Password: "secret1"}, t, admin)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	created := api.UserResponse{}
	testutil.Unmarshal(res, &created, t)
	assert.Equal(t, cfg.Seed.BusinessID.Value, created.BusinessID)

	clerk := testutil.RequestOptions{Username: "clerk1", Password: "secret1"}

	res = testutil.Get(url(api.LocationPath), t, clerk)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res = testutil.Post(url(api.LocationPath), api.CreateLocationDto{Name: "Back room", Kind: "warehouse"}, t, clerk)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res = testutil.Post(url(api.UserPath), api.CreateUserRequestDto{Username: "clerk1", Password: "secret1"}, t, admin)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusConflict, res.StatusCode)
}
