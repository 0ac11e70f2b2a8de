package security

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// lookupHost is replaced in tests.
var lookupHost = net.DefaultResolver.LookupHost

// CheckUpstream reports whether rawURL points at a public http(s) host.
// Loopback, private, link-local and unspecified addresses are rejected,
// both as literals and after DNS resolution, as are cloud metadata hosts.
func CheckUpstream(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format")
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("URL scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}

	host := u.Hostname()
	for _, b := range []string{"localhost", "metadata.google.internal", "metadata.google"} {
		if strings.EqualFold(host, b) {
			return fmt.Errorf("URL host %q is not allowed", host)
		}
	}

	if ip := net.ParseIP(host); ip != nil {
		return checkIP(ip)
	}

	ips, err := lookupHost(ctx, host)
	if err != nil {
		return fmt.Errorf("cannot resolve URL host: %s", host)
	}
	for _, ipStr := range ips {
		if resolved := net.ParseIP(ipStr); resolved != nil {
			if err := checkIP(resolved); err != nil {
				return fmt.Errorf("URL host %q resolves to blocked address: %v", host, err)
			}
		}
	}
	return nil
}

// CheckUpstreams runs CheckUpstream over named URLs, skipping empty ones,
// and returns the failures by name.
func CheckUpstreams(ctx context.Context, urls map[string]string) map[string]error {
	failed := make(map[string]error)
	for name, raw := range urls {
		if raw == "" {
			continue
		}
		if err := CheckUpstream(ctx, raw); err != nil {
			failed[name] = err
		}
	}
	return failed
}

func checkIP(ip net.IP) error {
	switch {
	case ip.IsLoopback():
		return fmt.Errorf("loopback addresses are not allowed")
	case ip.IsPrivate():
		return fmt.Errorf("private addresses are not allowed")
	case ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast():
		return fmt.Errorf("link-local addresses are not allowed")
	case ip.IsUnspecified():
		return fmt.Errorf("unspecified addresses are not allowed")
	}
	return nil
}
