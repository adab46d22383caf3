package config

import (
	"strings"
	"testing"
	"time"

	"github.com/wudi/flipbook/recovery"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("location: http://docs.example/book.pdf\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.RenderPolicy != PolicyLenient {
		t.Fatalf("policy = %q, want lenient default", cfg.RenderPolicy)
	}
	if cfg.SettleDuration.Std() != 400*time.Millisecond {
		t.Fatalf("settle duration = %v", cfg.SettleDuration)
	}
	if cfg.ZoomThreshold != 1.05 {
		t.Fatalf("zoom threshold = %v", cfg.ZoomThreshold)
	}
}

func TestParseFull(t *testing.T) {
	cfg, err := Parse([]byte(strings.TrimSpace(`
location: books/sample.pdf
bundled: true
proxy_endpoint: "http://proxy.example/?u="
render_policy: strict
zoom_threshold: 1.2
settle_duration: 250ms
`)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !cfg.Bundled || cfg.ProxyEndpoint == "" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.SettleDuration.Std() != 250*time.Millisecond {
		t.Fatalf("settle duration = %v, want 250ms", cfg.SettleDuration)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []string{
		"",
		"location: x\nrender_policy: bogus\n",
		"location: x\nzoom_threshold: -1\n",
		"location: x\nsettle_duration: 0s\n",
	}
	for _, in := range cases {
		if _, err := Parse([]byte(in)); err == nil {
			t.Fatalf("expected error for config %q", in)
		}
	}
}

func TestStrategySelection(t *testing.T) {
	c := Default()
	c.RenderPolicy = PolicyStrict
	if _, ok := c.Strategy(nil).(*recovery.StrictStrategy); !ok {
		t.Fatal("strict policy must build a StrictStrategy")
	}
	c.RenderPolicy = PolicyWarn
	if _, ok := c.Strategy(nil).(*recovery.WarnStrategy); !ok {
		t.Fatal("warn policy must build a WarnStrategy")
	}
	c.RenderPolicy = PolicyLenient
	if _, ok := c.Strategy(nil).(*recovery.LenientStrategy); !ok {
		t.Fatal("lenient policy must build a LenientStrategy")
	}
}
