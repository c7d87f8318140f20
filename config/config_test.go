package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Server.Port != 10000 {
		t.Errorf("Port = %d, want 10000", cfg.Server.Port)
	}
	if cfg.Renderer.NavigationTimeout != 30*time.Second {
		t.Errorf("NavigationTimeout = %v", cfg.Renderer.NavigationTimeout)
	}
	if cfg.Renderer.QuiescenceWindow != 1500*time.Millisecond {
		t.Errorf("QuiescenceWindow = %v", cfg.Renderer.QuiescenceWindow)
	}
	if !cfg.Auth.Enabled || len(cfg.Auth.APIKeys) != 0 {
		t.Errorf("Auth = %+v", cfg.Auth)
	}
	if cfg.Cache.TTL != 0 {
		t.Errorf("cache should be off by default, TTL = %v", cfg.Cache.TTL)
	}
	if cfg.Engine.EnableMultiEngine {
		t.Error("multi-engine should be off by default")
	}
	wantDelays := []time.Duration{0, 3 * time.Second, 6 * time.Second}
	if !reflect.DeepEqual(cfg.Engine.EscalationDelays, wantDelays) {
		t.Errorf("EscalationDelays = %v, want one staged delay per tier %v", cfg.Engine.EscalationDelays, wantDelays)
	}
	want := []string{"instagram.com", "www.instagram.com"}
	if !reflect.DeepEqual(cfg.Resolve.AllowedHosts, want) {
		t.Errorf("AllowedHosts = %v", cfg.Resolve.AllowedHosts)
	}
}

func TestLoad_LegacyVariables(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("AUTH_TOKEN", "secret")
	t.Setenv("PROXY_URL", "http://proxy:3128")
	t.Setenv("NAV_TIMEOUT", "45000")
	t.Setenv("NETWORK_IDLE_MS", "250")

	cfg := Load()

	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Server.Port)
	}
	if !reflect.DeepEqual(cfg.Auth.APIKeys, []string{"secret"}) {
		t.Errorf("APIKeys = %v", cfg.Auth.APIKeys)
	}
	if cfg.Browser.Proxy != "http://proxy:3128" {
		t.Errorf("Proxy = %q", cfg.Browser.Proxy)
	}
	if cfg.Renderer.NavigationTimeout != 45*time.Second {
		t.Errorf("NavigationTimeout = %v", cfg.Renderer.NavigationTimeout)
	}
	if cfg.Renderer.QuiescenceWindow != 250*time.Millisecond {
		t.Errorf("QuiescenceWindow = %v", cfg.Renderer.QuiescenceWindow)
	}
}

func TestLoad_PrefixedOverridesLegacy(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("MEDIARESOLVE_PORT", "9100")
	t.Setenv("PROXY_URL", "http://legacy:1")
	t.Setenv("MEDIARESOLVE_PROXY", "http://new:2")
	t.Setenv("MEDIARESOLVE_API_KEYS", "a, b ,,c")
	t.Setenv("AUTH_TOKEN", "d")

	cfg := Load()

	if cfg.Server.Port != 9100 {
		t.Errorf("Port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Browser.Proxy != "http://new:2" {
		t.Errorf("Proxy = %q", cfg.Browser.Proxy)
	}
	if !reflect.DeepEqual(cfg.Auth.APIKeys, []string{"a", "b", "c", "d"}) {
		t.Errorf("APIKeys = %v", cfg.Auth.APIKeys)
	}
}

func TestEnvMillisOr(t *testing.T) {
	tests := []struct {
		val  string
		want time.Duration
	}{
		{"", time.Second},
		{"1500", 1500 * time.Millisecond},
		{"2s", 2 * time.Second},
		{"garbage", time.Second},
	}
	for _, tt := range tests {
		t.Setenv("TEST_MILLIS", tt.val)
		if got := envMillisOr("TEST_MILLIS", time.Second); got != tt.want {
			t.Errorf("envMillisOr(%q) = %v, want %v", tt.val, got, tt.want)
		}
	}
}

func TestEnvDurationSliceOr(t *testing.T) {
	t.Setenv("TEST_DELAYS", "0s, 2s,bad,500ms")
	got := envDurationSliceOr("TEST_DELAYS", nil)
	want := []time.Duration{0, 2 * time.Second, 500 * time.Millisecond}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
