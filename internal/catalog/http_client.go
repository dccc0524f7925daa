package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/logging"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPClient asks the product service for an item over HTTP, behind a circuit breaker so a
// failing catalog does not stall every add_item.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[Item]
	log     *slog.Logger
}

type HTTPClientConfig struct {
	BaseURL string
	Timeout time.Duration
	// MaxFailures consecutive failures open the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	log := logging.New("catalog")

	settings := gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		// a missing item is an answer, not a catalog outage
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}

	return &HTTPClient{
		baseURL: cfg.BaseURL,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: gobreaker.NewCircuitBreaker[Item](settings),
		log:     log,
	}
}

func (c *HTTPClient) GetItem(ctx context.Context, itemID string) (Item, error) {
	item, err := c.breaker.Execute(func() (Item, error) {
		return c.fetch(ctx, itemID)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Item{}, fmt.Errorf("catalog unavailable: %w", err)
	}
	return item, err
}

func (c *HTTPClient) fetch(ctx context.Context, itemID string) (Item, error) {
	endpoint := fmt.Sprintf("%s/items/%s", c.baseURL, url.PathEscape(itemID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Item{}, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Item{}, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Item{}, fmt.Errorf("%w: %s", ErrNotFound, itemID)
	case resp.StatusCode >= 300:
		return Item{}, fmt.Errorf("catalog returned status %d for item %s", resp.StatusCode, itemID)
	}

	var item Item
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return Item{}, fmt.Errorf("decode catalog item: %w", err)
	}
	if item.ItemID == "" {
		item.ItemID = itemID
	}
	if item.ListPrice.IsZero() {
		item.ListPrice = item.Price
	}
	return item, nil
}
