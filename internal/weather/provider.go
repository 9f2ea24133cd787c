package weather

import (
	"context"
	"time"
)

// Transport abstracts the upstream forecast API. Fetch performs one GET of
// baseURL with params and returns the raw JSON body.
type Transport interface {
	Fetch(ctx context.Context, baseURL string, params Params) ([]byte, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, baseURL string, params Params) ([]byte, error)

func (f TransportFunc) Fetch(ctx context.Context, baseURL string, params Params) ([]byte, error) {
	return f(ctx, baseURL, params)
}

// ResponseSink receives every successfully fetched CombinedResponse.
type ResponseSink interface {
	SaveResponse(resp *CombinedResponse)
}

// Metrics is the subset of instrumentation the Aggregator reports to.
type Metrics interface {
	RecordRegistration(isNew bool)
	RecordFetch(ok bool, elapsed time.Duration)
	SetSubscriptions(n int)
}

type nopMetrics struct{}

func (nopMetrics) RecordRegistration(bool)         {}
func (nopMetrics) RecordFetch(bool, time.Duration) {}
func (nopMetrics) SetSubscriptions(int)            {}
