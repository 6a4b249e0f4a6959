package asyncurl_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MericLuc/asyncurl"
	"github.com/MericLuc/asyncurl/engine"
)

func TestConfigure_AppliesAllFields(t *testing.T) {
	tr, h := newTestTransfer(t)

	cfg := asyncurl.RequestConfig{
		URL:              "https://example.com/data",
		UserAgent:        "agent/1.0",
		Proxy:            "http://proxy.local:3128",
		Headers:          []string{"Accept: */*", "X-Token: abc"},
		FollowRedirects:  true,
		MaxRedirects:     5,
		TimeoutMS:        30000,
		ConnectTimeoutMS: 2000,
		PostFields:       "a=1&b=2",
		NoBody:           false,
		Verbose:          true,
	}

	if err := tr.Configure(cfg); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if got := h.Strings[engine.OptURL]; got != cfg.URL {
		t.Errorf("expected url %q, got %q", cfg.URL, got)
	}
	if got := h.Strings[engine.OptUserAgent]; got != cfg.UserAgent {
		t.Errorf("expected user agent %q, got %q", cfg.UserAgent, got)
	}
	if got := h.Strings[engine.OptProxy]; got != cfg.Proxy {
		t.Errorf("expected proxy %q, got %q", cfg.Proxy, got)
	}
	if got := h.Strings[engine.OptPostFields]; got != cfg.PostFields {
		t.Errorf("expected post fields %q, got %q", cfg.PostFields, got)
	}
	if diff := cmp.Diff(h.Lists[engine.OptHTTPHeader], cfg.Headers); diff != "" {
		t.Errorf("unexpected header list; diff %v", diff)
	}
	if got := h.Longs[engine.OptFollowLocation]; got != 1 {
		t.Errorf("expected follow location on, got %d", got)
	}
	if got := h.Longs[engine.OptMaxRedirs]; got != 5 {
		t.Errorf("expected 5 max redirects, got %d", got)
	}
	if got := h.Longs[engine.OptTimeoutMS]; got != 30000 {
		t.Errorf("expected timeout 30000, got %d", got)
	}
	if got := h.Longs[engine.OptConnectTimeoutMS]; got != 2000 {
		t.Errorf("expected connect timeout 2000, got %d", got)
	}
	if got := h.Longs[engine.OptVerbose]; got != 1 {
		t.Errorf("expected verbose on, got %d", got)
	}
	if _, ok := h.Longs[engine.OptNoBody]; ok {
		t.Error("expected unset no-body switch to be skipped")
	}
}

func TestConfigure_SkipsZeroFields(t *testing.T) {
	tr, h := newTestTransfer(t)

	if err := tr.Configure(asyncurl.RequestConfig{URL: "https://example.com"}); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if len(h.Strings) != 1 {
		t.Errorf("expected only the url applied, got %d string options", len(h.Strings))
	}
	if len(h.Longs)+len(h.Lists) != 0 {
		t.Error("expected no other options applied")
	}
}

func TestConfigure_MissingURL(t *testing.T) {
	tr, h := newTestTransfer(t)

	err := tr.Configure(asyncurl.RequestConfig{})
	if err == nil {
		t.Fatal("expected a validation error")
	}
	if !errors.Is(err, asyncurl.ErrBadParam) {
		t.Errorf("expected ErrBadParam, got: %v", err)
	}

	var fields asyncurl.FieldErrors
	if !errors.As(err, &fields) {
		t.Fatalf("expected FieldErrors, got: %T", err)
	}
	exp := asyncurl.FieldErrors{{Field: "url", Err: "This field is required"}}
	if diff := cmp.Diff(fields, exp); diff != "" {
		t.Errorf("unexpected field errors; diff %v", diff)
	}

	if len(h.Strings) != 0 {
		t.Error("expected nothing applied after a validation failure")
	}
}

func TestConfigure_InvalidFields(t *testing.T) {
	testCases := map[string]asyncurl.RequestConfig{
		"malformedURL":     {URL: "not a url"},
		"oversizeAgent":    {URL: "https://example.com", UserAgent: strings.Repeat("a", 256)},
		"malformedProxy":   {URL: "https://example.com", Proxy: "not a url"},
		"headerNoColon":    {URL: "https://example.com", Headers: []string{"NoSeparator"}},
		"negativeTimeout":  {URL: "https://example.com", TimeoutMS: -1},
		"negativeRedirect": {URL: "https://example.com", MaxRedirects: -2},
	}

	for name, cfg := range testCases {
		t.Run(name, func(t *testing.T) {
			tr, h := newTestTransfer(t)

			err := tr.Configure(cfg)
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !errors.Is(err, asyncurl.ErrBadParam) {
				t.Errorf("expected ErrBadParam, got: %v", err)
			}

			var fields asyncurl.FieldErrors
			if !errors.As(err, &fields) {
				t.Fatalf("expected FieldErrors, got: %T", err)
			}
			if len(fields) == 0 {
				t.Error("expected at least one field error")
			}

			if len(h.Strings)+len(h.Longs)+len(h.Lists) != 0 {
				t.Error("expected nothing applied after a validation failure")
			}
		})
	}
}

func TestConfigure_EngineFailureStopsApply(t *testing.T) {
	tr, h := newTestTransfer(t)
	h.SetErr = errors.New("engine refused")

	err := tr.Configure(asyncurl.RequestConfig{
		URL:       "https://example.com",
		UserAgent: "agent/1.0",
	})
	if !errors.Is(err, asyncurl.ErrInternal) {
		t.Errorf("expected ErrInternal, got: %v", err)
	}
}
