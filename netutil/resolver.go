package netutil

import (
	"context"
	"errors"
	"net"
)

// LookupIPFunc is a variable to allow injection/mocking in tests.
var LookupIPFunc = net.DefaultResolver.LookupIP

// ResolveTarget resolves the given target (hostname or IP string) once and
// returns a single address to use for every knock of a scan.
// The first IPv4 address wins; IPv6 is used only when no IPv4 exists.
func ResolveTarget(ctx context.Context, target string) (string, error) {
	if target == "" {
		return "", errors.New("empty target")
	}
	if ip := net.ParseIP(target); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			return ip4.String(), nil
		}
		return ip.String(), nil
	}

	ips, err := LookupIPFunc(ctx, "ip", target)
	if err != nil {
		return "", err
	}
	var firstV6 net.IP
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4.String(), nil
		}
		if firstV6 == nil {
			firstV6 = ip
		}
	}
	if firstV6 != nil {
		return firstV6.String(), nil
	}
	return "", errors.New("no addresses found for host")
}
