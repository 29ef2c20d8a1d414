package factory

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"formula-gateway/internal/config"
	"formula-gateway/internal/provider"
	openaiProvider "formula-gateway/internal/provider/openai"
)

const (
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
)

// Providers holds the upstream clients used by each handler.
type Providers struct {
	Generator provider.Provider
	Assistant provider.Provider
}

// TransportConfig is the outbound network configuration handed to every
// provider at construction time. A nil ProxyURL falls back to the
// environment (HTTP_PROXY / HTTPS_PROXY).
type TransportConfig struct {
	ProxyURL *url.URL
}

// NewTransportConfig parses the upstream proxy setting.
func NewTransportConfig(upstream config.UpstreamConfig) (TransportConfig, error) {
	if upstream.ProxyURL == "" {
		return TransportConfig{}, nil
	}
	proxyURL, err := url.Parse(upstream.ProxyURL)
	if err != nil {
		return TransportConfig{}, fmt.Errorf("parse proxy url: %w", err)
	}
	return TransportConfig{ProxyURL: proxyURL}, nil
}

// NewProviders constructs the generator and assistant providers from configuration.
func NewProviders(cfg config.Config) (Providers, error) {
	transportCfg, err := NewTransportConfig(cfg.Upstream)
	if err != nil {
		return Providers{}, err
	}
	if transportCfg.ProxyURL != nil {
		slog.Info("routing upstream traffic through proxy", "proxy", transportCfg.ProxyURL.Redacted())
	}

	client := NewHTTPClient(transportCfg)

	generator, err := openaiProvider.New("openai-"+cfg.Generator.APIStyle, cfg.Upstream, cfg.Generator.APIStyle, client)
	if err != nil {
		return Providers{}, fmt.Errorf("initialise generator provider: %w", err)
	}

	assistant, err := openaiProvider.New("openai-"+cfg.Assistant.APIStyle, cfg.Upstream, cfg.Assistant.APIStyle, client)
	if err != nil {
		return Providers{}, fmt.Errorf("initialise assistant provider: %w", err)
	}

	return Providers{Generator: generator, Assistant: assistant}, nil
}

// NewHTTPClient builds a client whose transport honours the given proxy.
// Request deadlines come from the caller's context, so the client carries no
// global timeout of its own.
func NewHTTPClient(tc TransportConfig) *http.Client {
	proxy := http.ProxyFromEnvironment
	if tc.ProxyURL != nil {
		proxy = http.ProxyURL(tc.ProxyURL)
	}

	transport := &http.Transport{
		Proxy:                 proxy,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Transport: transport,
	}
}
