// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hub

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/Thermoquad/radarstat/pkg/r60afd1"
)

const (
	// ServiceType is the mDNS service type hubs advertise
	ServiceType = "_radarstat._tcp"

	// ServiceDomain is the mDNS domain
	ServiceDomain = "local."

	// DefaultScanTimeout bounds a discovery scan
	DefaultScanTimeout = 5 * time.Second
)

// Advertisement is a registered mDNS service
type Advertisement struct {
	server *zeroconf.Server
}

// Shutdown withdraws the advertisement
func (a *Advertisement) Shutdown() {
	if a != nil && a.server != nil {
		a.server.Shutdown()
	}
}

func txtRecords(deviceID string) []string {
	return []string{
		"device_id=" + deviceID,
		"device_type=" + r60afd1.DeviceType,
	}
}

// Advertise registers the hub listening on port under the device's name
func Advertise(deviceID string, port int) (*Advertisement, error) {
	server, err := zeroconf.Register(deviceID, ServiceType, ServiceDomain, port, txtRecords(deviceID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	return &Advertisement{server: server}, nil
}

// Peer is a hub found on the network
type Peer struct {
	Instance   string
	DeviceID   string
	DeviceType string
	Host       string
	IP         string
	Port       int
}

// Address returns host:port for the peer's HTTP endpoint
func (p *Peer) Address() string {
	return net.JoinHostPort(p.IP, fmt.Sprint(p.Port))
}

func parseServiceEntry(entry *zeroconf.ServiceEntry) *Peer {
	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	peer := &Peer{
		Instance: entry.Instance,
		Host:     entry.HostName,
		IP:       ip,
		Port:     entry.Port,
	}
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		switch key {
		case "device_id":
			peer.DeviceID = value
		case "device_type":
			peer.DeviceType = value
		}
	}
	if peer.DeviceType != r60afd1.DeviceType {
		return nil
	}
	return peer
}

// Discover browses for hubs until ctx is done or timeout elapses
func Discover(ctx context.Context, timeout time.Duration) ([]*Peer, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var (
		mu    sync.Mutex
		peers []*Peer
	)
	go func() {
		for entry := range entries {
			if peer := parseServiceEntry(entry); peer != nil {
				mu.Lock()
				peers = append(peers, peer)
				mu.Unlock()
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	mu.Lock()
	defer mu.Unlock()
	return append([]*Peer(nil), peers...), nil
}
