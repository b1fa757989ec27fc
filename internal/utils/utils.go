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
	ErrEmptyTarget = errors.New("empty target")
	ErrMissingHost = errors.New("target has no host")
)

// NavigableURL turns a user-supplied target into something a browser can open.
// Schemeless targets get https.
func NavigableURL(raw string) (string, error) {
	if p, ok := filePath(raw); ok {
		return "file://" + p, nil
	}
	u, err := parseTarget(raw)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// CanonicalTarget returns the key used to group audits of the same page:
// lowercase punycode host, non-default port, cleaned path without trailing
// slash, no scheme, credentials, query or fragment. A leading "www." is dropped.
//
//	https://WWW.Example.com:443/cookies/  -> example.com/cookies
//	example.com                           -> example.com
//	http://bücher.de:8080                 -> xn--bcher-kva.de:8080
//	file:///tmp/shots/../home.png         -> file:///tmp/home.png
func CanonicalTarget(raw string) (string, error) {
	if p, ok := filePath(raw); ok {
		return "file://" + p, nil
	}
	u, err := parseTarget(raw)
	if err != nil {
		return "", err
	}

	host := strings.TrimPrefix(u.Hostname(), "www.")
	if port := u.Port(); port != "" && !isDefaultPort(u.Scheme, port) {
		host = net.JoinHostPort(host, port)
	}

	p := path.Clean("/" + u.Path)
	if p == "/" {
		return host, nil
	}
	return host + strings.TrimRight(p, "/"), nil
}

// filePath extracts the cleaned absolute path of a file:// target.
func filePath(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if len(raw) < len("file://") || !strings.EqualFold(raw[:len("file://")], "file://") {
		return "", false
	}
	p := raw[len("file://"):]
	if p == "" {
		return "", false
	}
	return path.Clean("/" + p), true
}

func parseTarget(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyTarget
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("couldn't parse target %s: %w", raw, err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingHost, raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if puny, err := idna.Lookup.ToASCII(host); err == nil {
		host = puny
	}
	if port := u.Port(); port != "" && !isDefaultPort(u.Scheme, port) {
		u.Host = net.JoinHostPort(host, port)
	} else {
		u.Host = host
	}
	u.User = nil
	u.Fragment = ""
	return u, nil
}

func isDefaultPort(scheme, port string) bool {
	return (scheme == "http" && port == "80") || (scheme == "https" && port == "443")
}
