package utils

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/idna"
)

var (
	ErrEmptyURL    = errors.New("empty url")
	ErrMissingHost = errors.New("missing host")
	ErrBadScheme   = errors.New("scheme must be http or https")
)

// CanonicalizeBaseURL normalizes the base URL of an external service:
// lower-cased scheme and host, punycode host, default ports dropped,
// credentials, query and fragment removed, no trailing slash.
func CanonicalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmptyURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", raw, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%q: %w", raw, ErrBadScheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%q: %w", raw, ErrMissingHost)
	}

	host := strings.ToLower(u.Hostname())
	if puny, err := idna.Lookup.ToASCII(host); err == nil {
		host = puny
	}
	port := u.Port()
	switch {
	case (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") || port == "":
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
		u.Host = host
	default:
		u.Host = net.JoinHostPort(host, port)
	}

	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	clean := path.Clean("/" + u.Path)
	if clean == "/" {
		clean = ""
	}
	u.Path = clean
	u.RawPath = ""
	return u.String(), nil
}

// JoinURL appends path elements to a base URL.
func JoinURL(base string, elem ...string) (string, error) {
	return url.JoinPath(base, elem...)
}
