package api_test

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/sksmith/go-stock-ledger/api"
	"github.com/sksmith/go-stock-ledger/core/inventory"
	"github.com/sksmith/go-stock-ledger/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListMovements(t *testing.T) {
	s := newServices()
	var (
		gotBusiness string
		gotFilter   inventory.MovementFilter
		gotPage     int
		gotPageSize int
	)
	s.movements.QueryFunc = func(ctx context.Context, businessID string, filter inventory.MovementFilter, page, pageSize int) (inventory.MovementPage, error) {
		gotBusiness, gotFilter, gotPage, gotPageSize = businessID, filter, page, pageSize
		return inventory.MovementPage{
			Movements: []inventory.MovementView{{
				MovementRecord: inventory.MovementRecord{ID: "m1", ProductID: "sku-1", FromLocationID: "main", Quantity: 2, Kind: inventory.Sale},
				FromLabel:      "Main",
				ToLabel:        "Customer: Jane",
			}},
			Page: page, PageSize: pageSize, TotalCount: 11, TotalPages: 2, HasPrevious: true,
		}, nil
	}
	ts := s.server()
	defer ts.Close()

	url := ts.URL + api.ApiPath + api.MovementPath +
		"?productId=sku-1&locationId=main&kind=sale&referenceId=ref-1&dateFrom=2024-03-01&dateTo=2024-03-02T12:00:00Z&page=2&pageSize=10"
	res := testutil.Get(url, t, clerk)
	require.Equal(t, http.StatusOK, res.StatusCode)

	got := inventory.MovementPage{}
	testutil.Unmarshal(res, &got, t)

	require.Len(t, got.Movements, 1)
	assert.Equal(t, "Main", got.Movements[0].FromLabel)
	assert.Equal(t, "Customer: Jane", got.Movements[0].ToLabel)
	assert.Equal(t, 11, got.TotalCount)
	assert.True(t, got.HasPrevious)

	assert.Equal(t, biz, gotBusiness)
	assert.Equal(t, 2, gotPage)
	assert.Equal(t, 10, gotPageSize)
	assert.Equal(t, inventory.MovementFilter{
		ProductID:   "sku-1",
		LocationID:  "main",
		Kind:        inventory.Sale,
		ReferenceID: "ref-1",
		DateFrom:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		DateTo:      time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC),
	}, gotFilter)
}

func TestListMovementsDefaultsPaging(t *testing.T) {
	s := newServices()
	ts := s.server()
	defer ts.Close()

	res := testutil.Get(ts.URL+api.ApiPath+api.MovementPath+"?page=abc", t, clerk)
	require.Equal(t, http.StatusOK, res.StatusCode)

	got := inventory.MovementPage{}
	testutil.Unmarshal(res, &got, t)
	assert.Equal(t, 1, got.Page)
	assert.Equal(t, inventory.DefaultPageSize, got.PageSize)
}

func TestListMovementsRejectsBadFilters(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{name: "unknown kind", query: "?kind=theft"},
		{name: "unparseable from date", query: "?dateFrom=yesterday"},
		{name: "unparseable to date", query: "?dateTo=2024-13-40"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServices()
			ts := s.server()
			defer ts.Close()

			res := testutil.Get(ts.URL+api.ApiPath+api.MovementPath+tt.query, t, clerk)
			_ = res.Body.Close()

			assert.Equal(t, http.StatusBadRequest, res.StatusCode)
			s.movements.VerifyCount("Query", 0, t)
		})
	}
}

func TestListMovementsQueryErrors(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		wantStatusCode int
	}{
		{
			name:           "invalid date range",
			err:            &inventory.TransferError{Kind: inventory.InvalidRequest, Message: "dateFrom must be before dateTo"},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "storage failure",
			err:            &inventory.TransferError{Kind: inventory.PersistenceFailure},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServices()
			s.movements.QueryFunc = func(ctx context.Context, businessID string, filter inventory.MovementFilter, page, pageSize int) (inventory.MovementPage, error) {
				return inventory.MovementPage{}, tt.err
			}
			ts := s.server()
			defer ts.Close()

			res := testutil.Get(ts.URL+api.ApiPath+api.MovementPath, t, clerk)
			_ = res.Body.Close()

			assert.Equal(t, tt.wantStatusCode, res.StatusCode)
		})
	}
}

func TestSubscribeMovements(t *testing.T) {
	s := newServices()
	s.transfers.SubscribeMovementsFunc = func(ch chan<- inventory.MovementRecord) inventory.MovementSubscriptionID {
		go func() {
			ch <- inventory.MovementRecord{ID: "m1", BusinessID: biz, ProductID: "sku-1", Quantity: 1}
			ch <- inventory.MovementRecord{ID: "m2", BusinessID: "biz-2", ProductID: "sku-1", Quantity: 1}
			ch <- inventory.MovementRecord{ID: "m3", BusinessID: biz, ProductID: "sku-2", Quantity: 4}
			close(ch)
		}()
		return "sub-1"
	}
	ts := s.server()
	defer ts.Close()

	auth := base64.StdEncoding.EncodeToString([]byte(clerk.Username + ":" + clerk.Password))
	dialer := ws.Dialer{Header: ws.HandshakeHeaderHTTP(http.Header{"Authorization": []string{"Basic " + auth}})}
	url := strings.Replace(ts.URL, "http", "ws", 1) + api.ApiPath + api.MovementPath + "/subscribe"

	conn, _, _, err := dialer.Dial(context.Background(), url)
	require.NoError(t, err)
	defer conn.Close()

	first := inventory.MovementRecord{}
	testutil.ReadWs(conn, &first, t)
	second := inventory.MovementRecord{}
	testutil.ReadWs(conn, &second, t)

	assert.Equal(t, "m1", first.ID)
	assert.Equal(t, "m3", second.ID)

	_, _, err = wsutil.ReadServerData(conn)
	assert.Error(t, err, "connection should close once the subscription ends")

	s.transfers.VerifyCount("SubscribeMovements", 1, t)
	s.transfers.VerifyCount("UnsubscribeMovements", 1, t)
}

func TestSubscribeMovementsRequiresAuthentication(t *testing.T) {
	s := newServices()
	ts := s.server()
	defer ts.Close()

	url := strings.Replace(ts.URL, "http", "ws", 1) + api.ApiPath + api.MovementPath + "/subscribe"
	_, _, _, err := ws.Dial(context.Background(), url)

	assert.Error(t, err)
	s.transfers.VerifyCount("SubscribeMovements", 0, t)
}
