package gateway

import (
	"net/netip"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// ValidateBaseURL checks the backend base URL. https is always accepted; plain
// http only for local backends, unless allowRemoteHTTP is set. Hostnames are not
// resolved, so a public name pointing at a private address counts as remote.
func ValidateBaseURL(rawURL string, allowRemoteHTTP bool) (*url.URL, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid backend URL")
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return nil, errors.Errorf("backend URL %q has no host", rawURL)
	}
	if parsed.RawQuery != "" || parsed.Fragment != "" {
		return nil, errors.Errorf("backend URL %q must not carry a query or fragment", rawURL)
	}

	var addr netip.Addr
	isIP := false
	if a, err := netip.ParseAddr(host); err == nil {
		addr = a.Unmap()
		isIP = true
		if addr.IsUnspecified() || addr.IsMulticast() {
			return nil, errors.Errorf("backend address %q is not routable", host)
		}
	}

	switch parsed.Scheme {
	case "https":
	case "http":
		if !allowRemoteHTTP && !isLocalHost(host, addr, isIP) {
			return nil, errors.Errorf("plain http to remote backend %q is not allowed", host)
		}
	default:
		return nil, errors.Errorf("unsupported backend URL scheme %q", parsed.Scheme)
	}

	parsed.Path = strings.TrimRight(parsed.Path, "/")
	return parsed, nil
}

func isLocalHost(host string, addr netip.Addr, isIP bool) bool {
	if isIP {
		return addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast()
	}
	return host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local")
}
