// ABOUTME: mDNS service discovery for tempostream servers
// ABOUTME: Handles advertisement (server side) and lookup (client side)
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"
	"go.uber.org/zap"
)

// DefaultService is the service type servers advertise
const DefaultService = "_tempostream._tcp"

const defaultPath = "/stream"

// ErrNotFound is returned when no server answers before the timeout
var ErrNotFound = errors.New("no tempostream server found")

// Config holds discovery configuration
type Config struct {
	ServiceName string // instance name when advertising
	Service     string // service type, default _tempostream._tcp
	Port        int
	Path        string // advertised stream path
	Logger      *zap.Logger
}

// Manager handles mDNS operations
type Manager struct {
	config Config
	log    *zap.SugaredLogger

	mu     sync.Mutex
	server *mdns.Server
}

// ServerInfo describes a discovered server
type ServerInfo struct {
	Name string
	Host string
	Port int
	Path string
}

// URL returns the WebSocket URL of the server
func (s *ServerInfo) URL() string {
	path := s.Path
	if path == "" {
		path = defaultPath
	}
	return "ws://" + net.JoinHostPort(s.Host, strconv.Itoa(s.Port)) + path
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	if config.Service == "" {
		config.Service = DefaultService
	}
	if config.Path == "" {
		config.Path = defaultPath
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &Manager{
		config: config,
		log:    config.Logger.Sugar(),
	}
}

// Advertise announces this server via mDNS until Stop is called
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		m.config.Service,
		"",
		"",
		m.config.Port,
		ips,
		[]string{"path=" + m.config.Path},
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	m.mu.Lock()
	m.server = server
	m.mu.Unlock()

	m.log.Infof("Advertising mDNS service: %s on port %d (type: %s)", m.config.ServiceName, m.config.Port, m.config.Service)
	return nil
}

// Discover returns the first server that answers within timeout
func (m *Manager) Discover(ctx context.Context, timeout time.Duration) (*ServerInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := make(chan *mdns.ServiceEntry, 16)
	queryDone := make(chan error, 1)

	params := &mdns.QueryParam{
		Service: m.config.Service,
		Domain:  "local",
		Timeout: timeout,
		Entries: entries,
	}

	m.log.Infof("Browsing for %s (timeout %s)", m.config.Service, timeout)
	go func() {
		queryDone <- mdns.Query(params)
	}()

	for {
		select {
		case entry := <-entries:
			server := entryToServer(entry, m.config.Service)
			if server == nil {
				continue
			}
			m.log.Infof("Discovered server: %s at %s:%d", server.Name, server.Host, server.Port)
			return server, nil
		case err := <-queryDone:
			if err != nil {
				return nil, fmt.Errorf("mdns query failed: %w", err)
			}
			// Entries may still be buffered after the query returns
			select {
			case entry := <-entries:
				if server := entryToServer(entry, m.config.Service); server != nil {
					return server, nil
				}
			default:
			}
			return nil, ErrNotFound
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Stop shuts down any advertisement
func (m *Manager) Stop() {
	m.mu.Lock()
	server := m.server
	m.server = nil
	m.mu.Unlock()

	if server != nil {
		if err := server.Shutdown(); err != nil {
			m.log.Warnf("mDNS shutdown: %v", err)
		}
	}
}

// entryToServer converts a browse result, ignoring other services
func entryToServer(entry *mdns.ServiceEntry, service string) *ServerInfo {
	if entry == nil || !strings.Contains(entry.Name, service) {
		return nil
	}

	var host string
	switch {
	case entry.AddrV4 != nil:
		host = entry.AddrV4.String()
	case entry.AddrV6 != nil:
		host = entry.AddrV6.String()
	default:
		host = strings.TrimSuffix(entry.Host, ".")
	}
	if host == "" || entry.Port == 0 {
		return nil
	}

	return &ServerInfo{
		Name: entry.Name,
		Host: host,
		Port: entry.Port,
		Path: txtValue(entry.InfoFields, "path"),
	}
}

// txtValue finds key=value in TXT records
func txtValue(fields []string, key string) string {
	prefix := key + "="
	for _, f := range fields {
		if strings.HasPrefix(f, prefix) {
			return strings.TrimPrefix(f, prefix)
		}
	}
	return ""
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
