// Package discovery advertises and finds relay servers on the local network
// over mDNS.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
	"go.uber.org/zap"
)

const DefaultService = "_whiteboard._tcp"

// infoPath is the TXT field carrying the websocket path.
const infoPath = "path="

var ErrNoServers = errors.New("discovery: no relay servers found")

// Advertise publishes a relay listening on port. Close the returned server to
// withdraw it.
func Advertise(service string, port int, wsPath string, log *zap.Logger) (*mdns.Server, error) {
	if service == "" {
		service = DefaultService
	}
	if log == nil {
		log = zap.NewNop()
	}
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("could not get hostname: %w", err)
	}

	info := []string{"whiteboard relay", infoPath + wsPath}
	zone, err := mdns.NewMDNSService(host, service, "", "", port, nil, info)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: zone, Logger: zap.NewStdLog(log.Named("mdns"))})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	log.Info("advertising relay", zap.String("service", service), zap.String("host", host), zap.Int("port", port))
	return server, nil
}

// Browse queries the network for timeout and returns the websocket URLs of
// every relay that answered, sorted.
func Browse(ctx context.Context, service string, timeout time.Duration, log *zap.Logger) ([]string, error) {
	if service == "" {
		service = DefaultService
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	entries := make(chan *mdns.ServiceEntry, 16)
	seen := map[string]struct{}{}
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for e := range entries {
			if u, ok := EntryURL(e); ok {
				seen[u] = struct{}{}
			}
		}
	}()

	params := mdns.DefaultParams(service)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true
	params.Logger = zap.NewStdLog(log.Named("mdns"))
	err := mdns.QueryContext(ctx, params)
	close(entries)
	<-collected
	if err != nil {
		return nil, fmt.Errorf("mdns query: %w", err)
	}

	urls := make([]string, 0, len(seen))
	for u := range seen {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	if len(urls) == 0 {
		return nil, ErrNoServers
	}
	return urls, nil
}

// EntryURL turns an answer into a dialable websocket URL. Entries without an
// IPv4 address or port are skipped.
func EntryURL(e *mdns.ServiceEntry) (string, bool) {
	if e == nil || e.AddrV4 == nil || e.Port == 0 {
		return "", false
	}
	path := "/ws"
	for _, f := range e.InfoFields {
		if p, ok := strings.CutPrefix(f, infoPath); ok && p != "" {
			path = p
		}
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "ws://" + net.JoinHostPort(e.AddrV4.String(), fmt.Sprint(e.Port)) + path, true
}
