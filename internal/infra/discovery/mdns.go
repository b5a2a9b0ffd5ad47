// Package discovery advertises and finds broadcast servers over mDNS.
package discovery

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/mdns"
	zlog "github.com/rs/zerolog/log"
)

// ServiceType is the mDNS service type of the broadcast server.
const ServiceType = "_jukebox._tcp"

// Config holds advertisement settings.
type Config struct {
	Instance    string // Instance name shown to browsers
	Port        int    // Broadcast HTTP port
	ControlPort int    // Control protocol port, advertised in TXT
}

// Advertise publishes the service until ctx is cancelled.
func Advertise(ctx context.Context, config Config) error {
	ips, err := localIPs()
	if err != nil {
		return errors.Wrap(err, "get local IPs")
	}

	txt := []string{"path=/"}
	if config.ControlPort > 0 {
		txt = append(txt, "control="+strconv.Itoa(config.ControlPort))
	}
	service, err := mdns.NewMDNSService(config.Instance, ServiceType, "", "", config.Port, ips, txt)
	if err != nil {
		return errors.Wrap(err, "create mdns service")
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return errors.Wrap(err, "create mdns server")
	}
	zlog.Info().Msgf("discovery: advertising %s: instance=%s port=%d", ServiceType, config.Instance, config.Port)

	go func() {
		<-ctx.Done()
		if err := server.Shutdown(); err != nil {
			zlog.Warn().Err(err).Msg("discovery: mdns shutdown failed")
		}
	}()
	return nil
}

// Server is a discovered broadcast server.
type Server struct {
	Instance    string
	Host        string
	Port        int
	ControlPort int
}

// StreamURL returns the broadcast URL of the server.
func (s Server) StreamURL() string {
	return "http://" + net.JoinHostPort(s.Host, strconv.Itoa(s.Port)) + "/"
}

// Browse queries the network for servers for the given duration.
func Browse(ctx context.Context, timeout time.Duration) ([]Server, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true

	errCh := make(chan error, 1)
	go func() {
		defer close(entries)
		errCh <- mdns.Query(params)
	}()

	return collect(ctx, entries, errCh)
}

// collect gathers entries until the query finishes. On an early return it
// keeps draining entries so the query goroutine never blocks on a send.
func collect(ctx context.Context, entries <-chan *mdns.ServiceEntry, errCh <-chan error) ([]Server, error) {
	var servers []Server
	for {
		select {
		case <-ctx.Done():
			go func() {
				for range entries {
				}
			}()
			return servers, ctx.Err()
		case entry, ok := <-entries:
			if !ok {
				if err := <-errCh; err != nil {
					return servers, errors.Wrap(err, "mdns query")
				}
				return servers, nil
			}
			if entry.AddrV4 == nil {
				continue
			}
			servers = append(servers, fromEntry(entry))
		}
	}
}

func fromEntry(entry *mdns.ServiceEntry) Server {
	s := Server{
		Instance: strings.TrimSuffix(entry.Name, "."+ServiceType+".local."),
		Host:     entry.AddrV4.String(),
		Port:     entry.Port,
	}
	for _, field := range entry.InfoFields {
		if v, ok := strings.CutPrefix(field, "control="); ok {
			s.ControlPort, _ = strconv.Atoi(v)
		}
	}
	return s
}

func localIPs() ([]net.IP, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	var ips []net.IP
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			ips = append(ips, ip4)
		}
	}
	return ips, nil
}
