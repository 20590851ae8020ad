package health

import (
	"context"
	"fmt"
	"time"

	"github.com/PetroPricesnearMe/content-gateway/content"
	"github.com/PetroPricesnearMe/content-gateway/provider"
	"github.com/PetroPricesnearMe/content-gateway/resilience"
)

// ProviderCheckerConfig configures a ProviderChecker.
type ProviderCheckerConfig struct {
	// Collection is a known collection used for the probe query.
	Collection string

	// Timeout bounds the probe. Defaults to 5 seconds.
	Timeout time.Duration
}

// ProviderChecker probes a content provider by fetching a single record.
// A provider whose circuit breaker is open reports degraded without
// issuing the probe, since calls would be rejected anyway.
type ProviderChecker struct {
	adapter provider.Adapter
	wrapper *resilience.Wrapper
	config  ProviderCheckerConfig
}

// NewProviderChecker creates a health checker for a provider adapter.
// The wrapper is optional; when present its breaker state is consulted
// before probing.
func NewProviderChecker(adapter provider.Adapter, wrapper *resilience.Wrapper, config ProviderCheckerConfig) *ProviderChecker {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	return &ProviderChecker{
		adapter: adapter,
		wrapper: wrapper,
		config:  config,
	}
}

// Name returns the checker name.
func (c *ProviderChecker) Name() string {
	return "provider:" + c.adapter.ID()
}

// Check probes the provider with a single-record fetch.
func (c *ProviderChecker) Check(ctx context.Context) Result {
	if c.wrapper != nil {
		if state := c.wrapper.Breaker().State(); state == resilience.StateOpen {
			return Degraded("circuit breaker open").WithDetails(map[string]any{
				"provider": c.adapter.ID(),
				"circuit":  state.String(),
			})
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()
	_, err := c.adapter.FetchAll(ctx, c.config.Collection, content.Query{PageSize: 1})
	elapsed := time.Since(start)

	if err != nil {
		return Unhealthy(fmt.Sprintf("probe failed for %s", c.adapter.ID()), err).
			WithDuration(elapsed).
			WithDetails(map[string]any{
				"provider":   c.adapter.ID(),
				"collection": c.config.Collection,
			})
	}

	return Healthy(fmt.Sprintf("provider %s reachable", c.adapter.ID())).
		WithDuration(elapsed).
		WithDetails(map[string]any{
			"provider":   c.adapter.ID(),
			"collection": c.config.Collection,
		})
}

var _ Checker = (*ProviderChecker)(nil)
