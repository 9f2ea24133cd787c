package providers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/weather-dataset-aggregator/internal/weather"
)

// DefaultOpenMeteoURL is the Open-Meteo forecast endpoint.
const DefaultOpenMeteoURL = "https://api.open-meteo.com/v1/forecast"

// OpenMeteoOptions tunes the transport. Zero values fall back to defaults.
type OpenMeteoOptions struct {
	RequestsPerSecond float64
	Burst             int
	Backoff           BackoffConfig
	Logger            zerolog.Logger
}

// OpenMeteoTransport implements weather.Transport for the Open-Meteo API.
type OpenMeteoTransport struct {
	name    string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

var _ weather.Transport = (*OpenMeteoTransport)(nil)

func NewOpenMeteoTransport(client *http.Client, opts OpenMeteoOptions) *OpenMeteoTransport {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openmeteo",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	backoff := opts.Backoff
	if backoff.InitialInterval <= 0 {
		backoff = BackoffConfig{
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		}
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &OpenMeteoTransport{
		name: "openmeteo",
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: backoff,
			Limiter: limiter,
		},
		circuit: cb,
		log:     opts.Logger,
	}
}

func (p *OpenMeteoTransport) Name() string {
	return p.name
}

// Fetch issues GET baseURL?params and returns the JSON body.
func (p *OpenMeteoTransport) Fetch(ctx context.Context, baseURL string, params weather.Params) ([]byte, error) {
	u := baseURL + "?" + params.Encode()
	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	start := time.Now()
	body, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		p.log.Warn().Err(err).Str("provider", p.Name()).Str("url", u).Msg("upstream request failed")
		return nil, err
	}
	p.log.Debug().
		Str("provider", p.Name()).
		Str("url", u).
		Int("bytes", len(body)).
		Dur("elapsed", time.Since(start)).
		Msg("upstream request completed")
	return body, nil
}
