// Package discovery finds the address clients should connect to and
// announces the server on the LAN over mDNS.
package discovery

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"

	"github.com/grandcat/zeroconf"
)

var ErrNoAddress = errors.New("no LAN IPv4 address found")

// Announcement is a registered mDNS service instance.
type Announcement struct {
	server   *zeroconf.Server
	Instance string
	Service  string
	Port     int
}

// InstanceName is the mDNS instance name for host.
func InstanceName(host string) string {
	if host == "" {
		host = "localhost"
	}
	return "WebDeck-" + host
}

// Announce registers an instance of service on port in the local. domain.
func Announce(service string, port int) (*Announcement, error) {
	host, _ := os.Hostname()
	instance := InstanceName(host)
	server, err := zeroconf.Register(
		instance,
		service,
		"local.",
		port,
		[]string{"txtv=0", "path=/ws"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("register mDNS service: %w", err)
	}
	log.Printf("[discovery] mDNS service registered: %s %s on port %d", instance, service, port)
	return &Announcement{server: server, Instance: instance, Service: service, Port: port}, nil
}

// Shutdown withdraws the announcement. Safe on a nil receiver.
func (a *Announcement) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
	log.Printf("[discovery] mDNS service %s withdrawn", a.Instance)
}

// LocalIPv4 returns the first non-loopback IPv4 address of an interface that
// is up.
func LocalIPv4() (net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		if ip := firstIPv4(addrs); ip != nil {
			return ip, nil
		}
	}
	return nil, ErrNoAddress
}

func firstIPv4(addrs []net.Addr) net.IP {
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
			continue
		}
		if v4 := ip.To4(); v4 != nil {
			return v4
		}
	}
	return nil
}

// ConnectURL is the address a browser on the LAN opens.
func ConnectURL(ip net.IP, port int) string {
	host := "localhost"
	if ip != nil {
		host = ip.String()
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/"
}
