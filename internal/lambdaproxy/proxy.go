// Package lambdaproxy serves API Gateway HTTP API (payload v2) events through
// an ordinary http.Handler, so the same router runs on Lambda and on a
// long-running server.
package lambdaproxy

import (
	"context"
	"log/slog"
	"maps"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
)

// Handler adapts an http.Handler to API Gateway v2 events.
type Handler struct {
	adapter *httpadapter.HandlerAdapterV2
	logger  *slog.Logger
}

// New creates a proxy in front of next.
func New(next http.Handler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{adapter: httpadapter.NewV2(next), logger: logger}
}

// Handle serves one event. It fails only when the event cannot be turned
// into a request or the response cannot be built; handler failures are
// ordinary HTTP responses.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	resp, err := h.adapter.ProxyWithContext(ctx, withRequestID(event))
	if err != nil {
		h.logger.ErrorContext(ctx, "Unable to proxy API Gateway event",
			"error", err.Error(),
			"route_key", event.RouteKey,
			"request_id", event.RequestContext.RequestID,
		)
	}
	return resp, err
}

// withRequestID forwards the gateway request id as X-Request-Id unless the
// caller sent one.
func withRequestID(event events.APIGatewayV2HTTPRequest) events.APIGatewayV2HTTPRequest {
	id := event.RequestContext.RequestID
	if id == "" {
		return event
	}
	for name := range event.Headers {
		if http.CanonicalHeaderKey(name) == "X-Request-Id" {
			return event
		}
	}

	headers := maps.Clone(event.Headers)
	if headers == nil {
		headers = make(map[string]string, 1)
	}
	headers["x-request-id"] = id
	event.Headers = headers
	return event
}
