package lib

import (
	"fmt"
	"net/url"
	"strings"
)

// ResolveURL resolves a possibly-relative URL against a base URL.
func ResolveURL(baseURL, relativeURL string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	rel, err := url.Parse(relativeURL)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(rel).String(), nil
}

// CanonicalizeURL normalizes a URL for use as a dedup/identity key during
// discovery: the scheme and host are lowercased, the default port for the
// scheme is stripped, and any fragment is removed. Query strings and path
// casing are left untouched since they can be meaningful for the target
// site. Returns an error if the URL cannot be parsed or lacks a host.
func CanonicalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	if port := u.Port(); port != "" {
		if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
			u.Host = strings.TrimSuffix(u.Host, ":"+port)
		}
	}

	if u.Path == "" {
		u.Path = "/"
	} else if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
		if u.Path == "" {
			u.Path = "/"
		}
	}

	return u.String(), nil
}
