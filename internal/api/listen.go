package api

import (
	"net"
	"strconv"
	"strings"
)

// wirelessPrefixes name interfaces preferred when picking the LAN address
// shown to users, since dashboards usually reach the bridge over Wi-Fi.
var wirelessPrefixes = []string{"wl", "wi-fi", "wifi"}

// logListenAddresses logs the bound address, a localhost URL and the LAN
// URL dashboards on other machines should use.
func (s *Server) logListenAddresses() {
	port := s.cfg.Port
	if tcp, ok := s.Addr().(*net.TCPAddr); ok {
		port = tcp.Port
	}
	p := strconv.Itoa(port)

	s.logger.Info("API server listening",
		"address", s.Addr().String(),
		"local", "http://localhost:"+p,
		"network", "http://"+net.JoinHostPort(networkAddress(), p),
	)
}

// networkAddress returns the first non-loopback IPv4 address, preferring
// wireless interfaces, or "localhost" when there is none.
func networkAddress() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "localhost"
	}

	candidates := make([]candidateAddr, 0, len(ifaces))
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if ip4 := ipnet.IP.To4(); ip4 != nil && !ip4.IsLoopback() {
				candidates = append(candidates, candidateAddr{iface: iface.Name, ip: ip4.String()})
			}
		}
	}
	return pickAddress(candidates)
}

// candidateAddr is one IPv4 address on a named interface.
type candidateAddr struct {
	iface string
	ip    string
}

// pickAddress prefers a wireless interface, then the first candidate.
func pickAddress(candidates []candidateAddr) string {
	for _, c := range candidates {
		if isWireless(c.iface) {
			return c.ip
		}
	}
	if len(candidates) > 0 {
		return candidates[0].ip
	}
	return "localhost"
}

func isWireless(name string) bool {
	name = strings.ToLower(name)
	for _, prefix := range wirelessPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
