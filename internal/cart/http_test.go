package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newCartTS(t *testing.T, limit func(http.Handler) http.Handler) *httptest.Server {
	t.Helper()

	store := NewStore(&memRepo{}, stubCatalog{ids: map[int]bool{1: true, 2: true}}, nil)
	require.NoError(t, store.Init(context.Background()))

	s := &Server{Store: store, Log: zap.NewNop(), CreateLimit: limit}
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()

	var r io.Reader = http.NoBody
	if body != "" {
		r = strings.NewReader(body)
	}

	resp, err := http.Post(url, "application/json", r)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func TestHTTP_CartFlow(t *testing.T) {
	ts := newCartTS(t, nil)

	resp, raw := post(t, ts.URL+"/carts", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	var c Cart
	require.NoError(t, json.Unmarshal(raw, &c))
	require.Equal(t, 1, c.ID)
	require.JSONEq(t, `{"id":1,"items":[]}`, string(raw))

	resp, raw = post(t, ts.URL+"/carts/1/product/2", `{"quantity":3}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, raw = post(t, ts.URL+"/carts/1/product/2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	require.JSONEq(t, `{"id":1,"items":[{"productId":2,"quantity":4}]}`, string(raw))

	getResp, err := http.Get(ts.URL + "/carts/1")
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	got, err := io.ReadAll(getResp.Body)
	require.NoError(t, err)
	require.True(t, bytes.Equal(bytes.TrimSpace(got), bytes.TrimSpace(raw)))
}

func TestHTTP_CartErrors(t *testing.T) {
	ts := newCartTS(t, nil)
	post(t, ts.URL+"/carts", "")

	cases := []struct {
		name   string
		path   string
		body   string
		status int
		msg    string
	}{
		{"missing cart", "/carts/9/product/1", "", http.StatusNotFound, "cart not found"},
		{"missing product", "/carts/1/product/9", "", http.StatusNotFound, "product not found"},
		{"bad cart id", "/carts/x/product/1", "", http.StatusBadRequest, "bad cid"},
		{"bad product id", "/carts/1/product/0", "", http.StatusBadRequest, "bad pid"},
		{"negative quantity", "/carts/1/product/1", `{"quantity":-2}`, http.StatusBadRequest, "quantity"},
		{"unknown field", "/carts/1/product/1", `{"qty":2}`, http.StatusBadRequest, "bad json"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, raw := post(t, ts.URL+tc.path, tc.body)
			require.Equal(t, tc.status, resp.StatusCode, string(raw))
			require.Contains(t, string(raw), tc.msg)
		})
	}

	resp, err := http.Get(ts.URL + "/carts/7")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTTP_QuantityOverflowRejected(t *testing.T) {
	ts := newCartTS(t, nil)
	post(t, ts.URL+"/carts", "")

	resp, raw := post(t, ts.URL+"/carts/1/product/1", fmt.Sprintf(`{"quantity":%d}`, math.MaxInt))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, raw = post(t, ts.URL+"/carts/1/product/1", `{"quantity":2}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, string(raw))
	require.Contains(t, string(raw), "invalid quantity")

	getResp, err := http.Get(ts.URL + "/carts/1")
	require.NoError(t, err)
	defer getResp.Body.Close()

	var c Cart
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&c))
	require.Equal(t, []Item{{ProductID: 1, Quantity: math.MaxInt}}, c.Items)
}

func TestHTTP_CreateLimitApplied(t *testing.T) {
	block := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
		})
	}
	ts := newCartTS(t, block)

	resp, _ := post(t, ts.URL+"/carts", "")
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
