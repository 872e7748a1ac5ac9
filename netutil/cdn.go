package netutil

import (
	"net"
	"sync"

	"github.com/projectdiscovery/cdncheck"
)

var (
	cdnOnce   sync.Once
	cdnClient *cdncheck.Client
)

// CDNInfo describes a provider fronting the target address.
type CDNInfo struct {
	Provider string
	Kind     string // "cdn", "waf" or "cloud"
}

// CheckCDN reports whether ip belongs to a known CDN, WAF or cloud range.
// Knocks sent to such an address usually never reach a firewall the
// target controls, so the CLI warns about it before scanning.
func CheckCDN(ip string) (CDNInfo, bool, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return CDNInfo{}, false, nil
	}
	cdnOnce.Do(func() { cdnClient = cdncheck.New() })
	matched, provider, kind, err := cdnClient.Check(parsed)
	if err != nil {
		return CDNInfo{}, false, err
	}
	if !matched {
		return CDNInfo{}, false, nil
	}
	return CDNInfo{Provider: provider, Kind: kind}, true, nil
}
