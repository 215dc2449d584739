package lambdaproxy

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(method, path string) events.APIGatewayV2HTTPRequest {
	return events.APIGatewayV2HTTPRequest{
		Version:  "2.0",
		RouteKey: "$default",
		RawPath:  path,
		Headers:  map[string]string{},
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			DomainName: "abc123.execute-api.eu-west-1.amazonaws.com",
			RequestID:  "req-1",
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{
				Method:   method,
				Path:     path,
				SourceIP: "198.51.100.7",
			},
		},
	}
}

// echoed is what the echo route saw of the translated request.
type echoed struct {
	Method    string `json:"method"`
	ID        string `json:"id"`
	Query     string `json:"query"`
	Auth      string `json:"auth"`
	RequestID string `json:"request_id"`
	Body      string `json:"body"`
}

func echoRouter() http.Handler {
	router := chi.NewRouter()
	router.Post("/api/v1/shopping-lists/{id}/items/add", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(echoed{
			Method:    r.Method,
			ID:        chi.URLParam(r, "id"),
			Query:     r.URL.Query().Get("x"),
			Auth:      r.Header.Get("Authorization"),
			RequestID: r.Header.Get("X-Request-Id"),
			Body:      string(body),
		})
	})
	router.Get("/api/v1/shopping-lists/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		http.SetCookie(w, &http.Cookie{Name: "seen", Value: "1"})
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode("Shopping list does not exist.")
	})
	return router
}

func TestHandler_TranslatesEvent(t *testing.T) {
	ev := event(http.MethodPost, "/api/v1/shopping-lists/abc/items/add")
	ev.RawQueryString = "dry=1&x=a%20b"
	ev.Headers["authorization"] = "Bearer token"
	ev.Headers["content-type"] = "application/json"
	ev.Body = `{"name":"Banana"}`

	resp, err := New(echoRouter(), nil).Handle(context.Background(), ev)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode, resp.Body)

	var got echoed
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &got))
	assert.Equal(t, echoed{
		Method:    http.MethodPost,
		ID:        "abc",
		Query:     "a b",
		Auth:      "Bearer token",
		RequestID: "req-1",
		Body:      `{"name":"Banana"}`,
	}, got)
}

func TestHandler_DecodesBase64Body(t *testing.T) {
	ev := event(http.MethodPost, "/api/v1/shopping-lists/abc/items/add")
	ev.IsBase64Encoded = true
	ev.Body = base64.StdEncoding.EncodeToString([]byte(`{"name":"Milk"}`))

	resp, err := New(echoRouter(), nil).Handle(context.Background(), ev)
	require.NoError(t, err)

	var got echoed
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &got))
	assert.Equal(t, `{"name":"Milk"}`, got.Body)
}

func TestHandler_KeepsCallerRequestID(t *testing.T) {
	ev := event(http.MethodPost, "/api/v1/shopping-lists/abc/items/add")
	ev.Headers["X-Request-Id"] = "client-7"

	resp, err := New(echoRouter(), nil).Handle(context.Background(), ev)
	require.NoError(t, err)

	var got echoed
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &got))
	assert.Equal(t, "client-7", got.RequestID)
	assert.NotContains(t, ev.Headers, "x-request-id", "the caller's event is not modified")
}

func TestHandler_ServesThroughRouter(t *testing.T) {
	resp, err := New(echoRouter(), nil).Handle(context.Background(), event(http.MethodGet, "/api/v1/shopping-lists/63552a5d00ca2e59a40c1f53"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, resp.IsBase64Encoded)
	assert.JSONEq(t, `"Shopping list does not exist."`, resp.Body)
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])
	assert.Equal(t, []string{"seen=1"}, resp.Cookies)
}

func TestHandler_EncodesBinaryResponses(t *testing.T) {
	payload := []byte{0x89, 0x50, 0x4e, 0x47}
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(payload)
	})

	resp, err := New(handler, nil).Handle(context.Background(), event(http.MethodGet, "/logo.png"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, resp.IsBase64Encoded)
	decoded, err := base64.StdEncoding.DecodeString(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestWithRequestID(t *testing.T) {
	ev := event(http.MethodGet, "/")
	assert.Equal(t, "req-1", withRequestID(ev).Headers["x-request-id"])

	ev.RequestContext.RequestID = ""
	assert.NotContains(t, withRequestID(ev).Headers, "x-request-id")
}
