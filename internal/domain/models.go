package domain

import (
	"net/netip"
	"time"
)

// Endpoint is a named group of addresses probed together as one reachability target.
type Endpoint struct {
	Name      string       `json:"name"`
	Addresses []netip.Addr `json:"addresses"`
}

// AddressResult is the outcome of probing one address of an endpoint.
type AddressResult struct {
	Address   netip.Addr `json:"address"`
	Reachable bool       `json:"reachable"`
	LatencyMS float64    `json:"latency_ms,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

// ProbeResult is produced once per endpoint per cycle.
type ProbeResult struct {
	Endpoint  string          `json:"endpoint"`
	Reachable bool            `json:"reachable"`
	Addresses []AddressResult `json:"addresses,omitempty"`
	CheckedAt time.Time       `json:"checked_at"`
}

// ConnectivitySample is the aggregated verdict of one cycle.
type ConnectivitySample struct {
	Timestamp time.Time `json:"timestamp"`
	Up        bool      `json:"up"`
}
