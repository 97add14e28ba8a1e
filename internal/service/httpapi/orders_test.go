package httpapi_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/inventory/internal/domain"
	"github.com/vladislavdragonenkov/inventory/internal/service/httpapi"
	"github.com/vladislavdragonenkov/inventory/internal/service/orders"
	"github.com/vladislavdragonenkov/inventory/internal/storage/memory"
)

func newTestServer(t *testing.T, opts ...orders.Option) *httptest.Server {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	entry := logger.WithField("component", "test")

	opts = append([]orders.Option{orders.WithLogger(entry)}, opts...)
	svc := orders.NewService(memory.NewOrderStore(), opts...)

	srv := httptest.NewServer(httpapi.NewRouter(httpapi.NewHandler(svc, entry)))
	t.Cleanup(srv.Close)
	return srv
}

func orderJSON(location string, day, qty int) string {
	return fmt.Sprintf(`{"location_code":%q,"product_code":"apples-001","order_date":"2024-07-%02d","quantity":%d,"submitted_by":"user_1@store.com","submitted_at":"2024-07-%02dT10:00:00+01:00"}`,
		location, day, qty, day)
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func createOrder(t *testing.T, base, location string, day, qty int) domain.Order {
	t.Helper()
	resp := do(t, http.MethodPost, base+"/api/orders", orderJSON(location, day, qty))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[domain.Order](t, resp)
}

func TestOrdersAPI_CRUD(t *testing.T) {
	srv := newTestServer(t)

	created := createOrder(t, srv.URL, "Lisbon-001", 1, 3)
	require.NotEqual(t, uuid.Nil, created.ID)

	resp := do(t, http.MethodGet, srv.URL+"/api/orders/"+created.ID.String(), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, created.Equal(decode[domain.Order](t, resp)))

	resp = do(t, http.MethodPut, srv.URL+"/api/orders/"+created.ID.String(), orderJSON("Porto-001", 2, 8))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[domain.Order](t, resp)
	require.Equal(t, created.ID, updated.ID)
	require.Equal(t, "Porto-001", updated.LocationCode)

	resp = do(t, http.MethodDelete, srv.URL+"/api/orders/"+created.ID.String(), "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/orders/"+created.ID.String(), "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
}

func TestOrdersAPI_ValidationProblem(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/api/orders", orderJSON(" ", 1, 0))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	problem := decode[httpapi.Problem](t, resp)
	require.Equal(t, 400, problem.Status)
	require.Equal(t, "ValidationError", problem.Detail)
	fields := make([]string, 0, len(problem.Errors))
	for _, v := range problem.Errors {
		fields = append(fields, v.Field)
	}
	require.ElementsMatch(t, []string{"location_code", "quantity"}, fields)
}

func TestOrdersAPI_BadRequests(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		field  string
	}{
		{name: "bad id", method: http.MethodGet, path: "/api/orders/123", field: "id"},
		{name: "bad date", method: http.MethodGet, path: "/api/orders?order_date_from=07/01/2024", field: "order_date_from"},
		{name: "bad page", method: http.MethodGet, path: "/api/orders?page_size=ten", field: "page_size"},
		{name: "page too large", method: http.MethodGet, path: "/api/orders?page_size=1001", field: "page_size"},
		{name: "inverted range", method: http.MethodGet, path: "/api/orders?order_date_from=2024-07-10&order_date_to=2024-07-01", field: "order_date_from"},
		{name: "bad seed count", method: http.MethodPost, path: "/api/orders/seed?count=x", field: "count"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, tt.method, srv.URL+tt.path, tt.body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			problem := decode[httpapi.Problem](t, resp)
			require.NotEmpty(t, problem.Errors)
			require.Equal(t, tt.field, problem.Errors[0].Field)
		})
	}

	resp := do(t, http.MethodPost, srv.URL+"/api/orders", `{"quantity":`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOrdersAPI_Search(t *testing.T) {
	srv := newTestServer(t)
	for _, qty := range []int{1, 2, 2} {
		createOrder(t, srv.URL, "Lisbon-001", 1, qty)
	}
	createOrder(t, srv.URL, "Porto-001", 2, 5)

	resp := do(t, http.MethodGet, srv.URL+"/api/orders?location_code=Lisbon-001&aggregate=true&page_size=2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decode[domain.SearchResult](t, resp)
	require.Len(t, result.Orders, 2)
	require.Len(t, result.Aggregates, 1)
	require.Equal(t, 3, result.Aggregates[0].Count)
	require.InDelta(t, 1.67, result.Aggregates[0].AverageQuantity, 0.0001)

	resp = do(t, http.MethodGet, srv.URL+"/api/orders?page_number=3", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result = decode[domain.SearchResult](t, resp)
	require.NotNil(t, result.Orders)
	require.Empty(t, result.Orders)
	require.Nil(t, result.Aggregates)
}

func TestOrdersAPI_Stream(t *testing.T) {
	srv := newTestServer(t)
	for day := 1; day <= 4; day++ {
		createOrder(t, srv.URL, "Lisbon-001", day, day)
	}
	createOrder(t, srv.URL, "Porto-001", 1, 1)

	resp := do(t, http.MethodGet, srv.URL+"/api/orders/stream?location_code=Lisbon-001", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	lines := 0
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		var order domain.Order
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &order))
		require.Equal(t, "Lisbon-001", order.LocationCode)
		lines++
	}
	require.NoError(t, scanner.Err())
	require.Equal(t, 4, lines)
}

func TestOrdersAPI_Bulk(t *testing.T) {
	srv := newTestServer(t, orders.WithBatchSize(2))
	existing := createOrder(t, srv.URL, "Lisbon-001", 1, 1)

	var body bytes.Buffer
	body.WriteString("[")
	body.WriteString(strings.Replace(orderJSON("Lisbon-001", 1, 50), "{", fmt.Sprintf(`{"id":%q,`, existing.ID), 1))
	for day := 2; day <= 4; day++ {
		body.WriteString(",")
		body.WriteString(orderJSON("Porto-001", day, day))
	}
	body.WriteString("]")

	resp := do(t, http.MethodPost, srv.URL+"/api/orders/bulk", body.String())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 4, decode[httpapi.BulkResponse](t, resp).Received)

	resp = do(t, http.MethodGet, srv.URL+"/api/orders/"+existing.ID.String(), "")
	require.Equal(t, 50, decode[domain.Order](t, resp).Quantity)

	resp = do(t, http.MethodGet, srv.URL+"/api/orders?page_size=100", "")
	require.Len(t, decode[domain.SearchResult](t, resp).Orders, 4)
}

func TestOrdersAPI_BulkRejected(t *testing.T) {
	srv := newTestServer(t, orders.WithBatchSize(2))

	body := "[" + orderJSON("Lisbon-001", 1, 0) + "," + orderJSON("Lisbon-001", 2, 1) + "," + orderJSON("Lisbon-001", 3, 1) + "]"
	resp := do(t, http.MethodPost, srv.URL+"/api/orders/bulk", body)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	problem := decode[httpapi.Problem](t, resp)
	require.Equal(t, "ValidationError", problem.Detail)
	require.Equal(t, "[0].quantity", problem.Errors[0].Field)

	resp = do(t, http.MethodPost, srv.URL+"/api/orders/bulk", `[{"quantity":1},`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOrdersAPI_Seed(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/api/orders/seed?count=12", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/orders?page_size=100", "")
	require.Len(t, decode[domain.SearchResult](t, resp).Orders, 12)

	resp = do(t, http.MethodPost, srv.URL+"/api/orders/seed?count=0", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
