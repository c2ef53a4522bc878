// Package mdns advertises the feed server on the local network so podcast
// clients can find it without manual configuration.
package mdns

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/hashicorp/mdns"
)

const (
	// ServiceType is the advertised mDNS service type.
	ServiceType = "_podible._tcp"

	// ServerVersion is advertised in TXT records.
	ServerVersion = "1.0.0"
)

// Service manages mDNS advertisement.
type Service struct {
	log    *slog.Logger
	mu     sync.Mutex
	server *mdns.Server
}

// NewService creates an mDNS service.
func NewService(log *slog.Logger) *Service {
	return &Service{log: log.With("component", "mdns")}
}

// Start begins advertising on the given HTTP port. Call after the HTTP
// server is listening. Failure is typically non-fatal (multicast is often
// unavailable in containers); the caller decides whether to ignore it.
func (s *Service) Start(port string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		_ = s.server.Shutdown()
		s.server = nil
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("invalid port %q: %w", port, err)
	}

	host, err := os.Hostname()
	if err != nil {
		host = "podible"
	}

	txt := []string{
		"version=" + ServerVersion,
		"path=/feed",
	}

	service, err := mdns.NewMDNSService(host, ServiceType, "", "", portNum, nil, txt)
	if err != nil {
		return fmt.Errorf("create mDNS service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("start mDNS server: %w", err)
	}

	s.server = server
	s.log.Info("mDNS advertisement started", "service", ServiceType, "port", portNum)
	return nil
}

// Stop stops advertising. Safe to call multiple times or before Start.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		_ = s.server.Shutdown()
		s.server = nil
		s.log.Info("mDNS advertisement stopped")
	}
}
