// Package httpclient builds the HTTP transport used by the crawler and the
// HTTP-based scanner drivers (WAVE).
package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func getProxyFunc() func(*http.Request) (*url.URL, error) {
	proxy := viper.GetString("navigation.proxy")
	if proxy == "" {
		return http.ProxyFromEnvironment
	}
	proxyURL, err := url.Parse(proxy)
	if err != nil {
		log.Error().Err(err).Str("proxy", proxy).Msg("Error parsing proxy url, using environment proxy")
		return http.ProxyFromEnvironment
	}
	return http.ProxyURL(proxyURL)
}

// CreateHttpTransport builds the shared *http.Transport used for crawling
// and for scanner drivers that talk HTTP directly (WAVE).
func CreateHttpTransport() *http.Transport {
	return &http.Transport{
		Proxy: getProxyFunc(),
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: viper.GetBool("navigation.tls_insecure_skip_verify"),
		},
	}
}

// CreateHttpClient builds a client using CreateHttpTransport, with the
// given per-request timeout.
func CreateHttpClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: CreateHttpTransport(),
		Timeout:   timeout,
	}
}
