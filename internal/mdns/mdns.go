// Package mdns advertises and discovers radar telemetry endpoints on the
// local network.
package mdns

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/grandcat/zeroconf"

	"github.com/rjboer/GoRadar/internal/logging"
)

// Service is the DNS-SD service type of the telemetry endpoint.
const Service = "_radar._tcp"

const domain = "local."

// Host represents a discovered radar acquisition.
type Host struct {
	Instance  string // Advertised name: "radar on bench-1"
	Hostname  string // DNS hostname: "bench-1.local."
	Addresses []net.IP
	Port      int
	TXT       []string
}

// Advertisement is a registered service. Shutdown withdraws it.
type Advertisement struct {
	server *zeroconf.Server
}

// Shutdown sends goodbye packets and stops responding.
func (a *Advertisement) Shutdown() {
	if a != nil && a.server != nil {
		a.server.Shutdown()
	}
}

// TXT builds the text record from key/value pairs in key order.
func TXT(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+values[k])
	}
	return out
}

// Advertise registers instance on port, retrying with exponential backoff
// while the network comes up.
func Advertise(ctx context.Context, instance string, port int, txt []string, retries uint64, logger logging.Logger) (*Advertisement, error) {
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.With(logging.Subsystem("mdns"))

	var server *zeroconf.Server
	op := func() error {
		s, err := zeroconf.Register(instance, Service, domain, port, txt, nil)
		if err != nil {
			logger.Debug("mdns registration failed", logging.Err(err))
			return err
		}
		server = s
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), retries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, fmt.Errorf("register %s: %w", Service, err)
	}
	logger.Info("advertising telemetry",
		logging.Field{Key: "instance", Value: instance},
		logging.Field{Key: "port", Value: port})
	return &Advertisement{server: server}, nil
}

// Discover performs a blocking browse for radar services. It returns cleaned
// and deduplicated host entries.
func Discover(ctx context.Context, timeout time.Duration) ([]Host, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("resolver error: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	resultMap := make(map[string]Host)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case e, ok := <-entries:
				if !ok {
					return
				}
				if e == nil {
					continue
				}
				h := hostFromEntry(e)
				resultMap[fmt.Sprintf("%s|%d", h.Hostname, h.Port)] = h
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, Service, domain, entries); err != nil {
		return nil, fmt.Errorf("browse error: %w", err)
	}

	<-done

	out := make([]Host, 0, len(resultMap))
	for _, h := range resultMap {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instance < out[j].Instance })
	return out, nil
}

func hostFromEntry(e *zeroconf.ServiceEntry) Host {
	addrs := make([]net.IP, 0, len(e.AddrIPv4)+len(e.AddrIPv6))
	addrs = append(addrs, e.AddrIPv4...)
	addrs = append(addrs, e.AddrIPv6...)
	return Host{
		Instance:  cleanInstance(e.Instance),
		Hostname:  e.HostName,
		Addresses: addrs,
		Port:      e.Port,
		TXT:       append([]string{}, e.Text...),
	}
}

// cleanInstance removes Zeroconf escape sequences: "\ " => " "
func cleanInstance(s string) string {
	return strings.ReplaceAll(s, `\ `, " ")
}
