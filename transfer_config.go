package asyncurl

import "github.com/MericLuc/asyncurl/engine"

// RequestConfig bundles the common options of an HTTP exchange so they can
// be validated and applied in one call. Zero-valued fields are skipped, so
// a config only ever adds to the transfer's current configuration.
type RequestConfig struct {
	URL              string   `json:"url" validate:"required,url"`
	UserAgent        string   `json:"user_agent" validate:"omitempty,max=255"`
	Proxy            string   `json:"proxy" validate:"omitempty,url"`
	Headers          []string `json:"headers" validate:"omitempty,dive,contains=:"`
	FollowRedirects  bool     `json:"follow_redirects"`
	MaxRedirects     int64    `json:"max_redirects" validate:"gte=0"`
	TimeoutMS        int64    `json:"timeout_ms" validate:"gte=0"`
	ConnectTimeoutMS int64    `json:"connect_timeout_ms" validate:"gte=0"`
	PostFields       string   `json:"post_fields"`
	NoBody           bool     `json:"no_body"`
	Verbose          bool     `json:"verbose"`
}

// Configure validates cfg and applies it to the transfer. A validation
// failure is reported as [FieldErrors] naming each offending field, and
// nothing is applied; an engine failure stops the apply where it occurred.
func (t *Transfer) Configure(cfg RequestConfig) error {
	if err := validateStruct(cfg); err != nil {
		return err
	}

	if err := t.SetString(engine.OptURL, cfg.URL); err != nil {
		return err
	}
	if cfg.UserAgent != "" {
		if err := t.SetString(engine.OptUserAgent, cfg.UserAgent); err != nil {
			return err
		}
	}
	if cfg.Proxy != "" {
		if err := t.SetString(engine.OptProxy, cfg.Proxy); err != nil {
			return err
		}
	}
	if len(cfg.Headers) > 0 {
		if err := t.SetList(engine.OptHTTPHeader, NewList(cfg.Headers...)); err != nil {
			return err
		}
	}
	if cfg.FollowRedirects {
		if err := t.SetBool(engine.OptFollowLocation, true); err != nil {
			return err
		}
	}
	if cfg.MaxRedirects > 0 {
		if err := t.SetLong(engine.OptMaxRedirs, cfg.MaxRedirects); err != nil {
			return err
		}
	}
	if cfg.TimeoutMS > 0 {
		if err := t.SetLong(engine.OptTimeoutMS, cfg.TimeoutMS); err != nil {
			return err
		}
	}
	if cfg.ConnectTimeoutMS > 0 {
		if err := t.SetLong(engine.OptConnectTimeoutMS, cfg.ConnectTimeoutMS); err != nil {
			return err
		}
	}
	if cfg.PostFields != "" {
		if err := t.SetString(engine.OptPostFields, cfg.PostFields); err != nil {
			return err
		}
	}
	if cfg.NoBody {
		if err := t.SetBool(engine.OptNoBody, true); err != nil {
			return err
		}
	}
	if cfg.Verbose {
		if err := t.SetBool(engine.OptVerbose, true); err != nil {
			return err
		}
	}

	return nil
}
