//go:build windows

package netutil

// CanOpenRawSocket reports true on Windows: pro-bing only supports
// privileged ICMP there.
func CanOpenRawSocket() (bool, error) {
	return true, nil
}
