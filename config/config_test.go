package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/PetroPricesnearMe/content-gateway/secret"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GATEWAY_PROVIDERS", "baserow")
	t.Setenv("BASEROW_TOKEN", "tok")
	t.Setenv("REVALIDATE_TOKEN", "reval-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load(context.Background(), nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("Addr = %v, want :8080", cfg.Server.Addr)
	}
	if cfg.Cache.FreshTTL != 5*time.Minute {
		t.Errorf("FreshTTL = %v, want 5m", cfg.Cache.FreshTTL)
	}
	if cfg.Cache.StaleTTL != 30*time.Minute {
		t.Errorf("StaleTTL = %v, want 30m", cfg.Cache.StaleTTL)
	}
	if cfg.Cache.MaxEntries != 1024 {
		t.Errorf("MaxEntries = %v, want 1024", cfg.Cache.MaxEntries)
	}
	if cfg.Resilience.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %v, want 3", cfg.Resilience.MaxAttempts)
	}
	if cfg.Resilience.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %v, want 5", cfg.Resilience.FailureThreshold)
	}
	if cfg.Resilience.RateLimit != 0 {
		t.Errorf("RateLimit = %v, want 0", cfg.Resilience.RateLimit)
	}
	if cfg.Cache.RefreshMaxConcurrent != 8 {
		t.Errorf("RefreshMaxConcurrent = %v, want 8", cfg.Cache.RefreshMaxConcurrent)
	}
	if cfg.Observe.ServiceName != "content-gateway" {
		t.Errorf("ServiceName = %v, want content-gateway", cfg.Observe.ServiceName)
	}
}

func TestLoad_ProviderPriority(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("GATEWAY_PROVIDERS", "baserow,sheets,postgres")

	cfg, err := Load(context.Background(), nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := []string{"baserow", "sheets", "postgres"}
	if len(cfg.Providers.Priority) != len(want) {
		t.Fatalf("Priority = %v, want %v", cfg.Providers.Priority, want)
	}
	for i, name := range want {
		if cfg.Providers.Priority[i] != name {
			t.Errorf("Priority[%d] = %v, want %v", i, cfg.Providers.Priority[i], name)
		}
	}
}

func TestLoad_TableMaps(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("BASEROW_TABLES", "stations:512,prices:513")

	cfg, err := Load(context.Background(), nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Providers.Baserow.Tables["stations"] != "512" {
		t.Errorf("Tables[stations] = %v, want 512", cfg.Providers.Baserow.Tables["stations"])
	}
	if cfg.Providers.Baserow.Tables["prices"] != "513" {
		t.Errorf("Tables[prices] = %v, want 513", cfg.Providers.Baserow.Tables["prices"])
	}
}

func TestLoad_RateLimitAndRefreshCap(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("RESILIENCE_RATE_LIMIT", "50")
	t.Setenv("RESILIENCE_RATE_LIMIT_BURST", "5")
	t.Setenv("CACHE_REFRESH_MAX_CONCURRENT", "2")

	cfg, err := Load(context.Background(), nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Resilience.RateLimit != 50 {
		t.Errorf("RateLimit = %v, want 50", cfg.Resilience.RateLimit)
	}
	if cfg.Resilience.RateLimitBurst != 5 {
		t.Errorf("RateLimitBurst = %v, want 5", cfg.Resilience.RateLimitBurst)
	}
	if cfg.Cache.RefreshMaxConcurrent != 2 {
		t.Errorf("RefreshMaxConcurrent = %v, want 2", cfg.Cache.RefreshMaxConcurrent)
	}
}

func TestLoad_UnknownProvider(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("GATEWAY_PROVIDERS", "baserow,airtable")

	_, err := Load(context.Background(), nil)
	if !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("Load() error = %v, want ErrUnknownProvider", err)
	}
}

func TestLoad_InvalidTTL(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("CACHE_FRESH_TTL", "1h")
	t.Setenv("CACHE_STALE_TTL", "5m")

	_, err := Load(context.Background(), nil)
	if !errors.Is(err, ErrInvalidTTL) {
		t.Errorf("Load() error = %v, want ErrInvalidTTL", err)
	}
}

func TestLoad_TTLCheckSkippedWhenCacheDisabled(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("CACHE_DISABLED", "true")
	t.Setenv("CACHE_FRESH_TTL", "1h")
	t.Setenv("CACHE_STALE_TTL", "5m")

	if _, err := Load(context.Background(), nil); err != nil {
		t.Errorf("Load() error = %v, want nil", err)
	}
}

func TestLoad_MissingRevalidateToken(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("REVALIDATE_TOKEN", "")

	_, err := Load(context.Background(), nil)
	if !errors.Is(err, ErrMissingToken) {
		t.Errorf("Load() error = %v, want ErrMissingToken", err)
	}
}

func TestLoad_RevalidateDisabledNeedsNoToken(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("REVALIDATE_TOKEN", "")
	t.Setenv("REVALIDATE_ENABLED", "false")

	if _, err := Load(context.Background(), nil); err != nil {
		t.Errorf("Load() error = %v, want nil", err)
	}
}

type staticSecrets struct{ values map[string]string }

func (p *staticSecrets) Name() string { return "static" }

func (p *staticSecrets) Close() error { return nil }

func (p *staticSecrets) Resolve(ctx context.Context, ref string) (string, error) {
	v, ok := p.values[ref]
	if !ok {
		return "", errors.New("static: unknown ref")
	}
	return v, nil
}

func TestLoad_ResolvesSecretRefs(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("BASEROW_TOKEN", "secretref:static:baserow-token")
	t.Setenv("REVALIDATE_TOKEN", "secretref:static:reval-token")

	resolver := secret.NewResolver(true, &staticSecrets{values: map[string]string{
		"baserow-token": "real-token",
		"reval-token":   "real-reval",
	}})

	cfg, err := Load(context.Background(), resolver)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Providers.Baserow.Token != "real-token" {
		t.Errorf("Token = %v, want real-token", cfg.Providers.Baserow.Token)
	}
	if cfg.Revalidate.Token != "real-reval" {
		t.Errorf("Revalidate.Token = %v, want real-reval", cfg.Revalidate.Token)
	}
}

func TestLoad_SecretResolutionFailure(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("BASEROW_TOKEN", "secretref:static:missing")

	resolver := secret.NewResolver(true, &staticSecrets{values: map[string]string{}})

	if _, err := Load(context.Background(), resolver); err == nil {
		t.Error("Load() error = nil, want resolution failure")
	}
}
