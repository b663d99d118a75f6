package domaincache

import (
	"strings"
	"time"
)

// Domain names one of the marketplace caches.
type Domain string

const (
	Package   Domain = "package"
	Trip      Domain = "trip"
	Bid       Domain = "bid"
	User      Domain = "user"
	Dashboard Domain = "dashboard"
)

// allDomains fixes the iteration order used by Domains, metrics and sweeps.
var allDomains = []Domain{Package, Trip, Bid, User, Dashboard}

var defaultTTLs = map[Domain]time.Duration{
	Package:   2 * time.Minute,
	Trip:      time.Minute,
	Bid:       30 * time.Second,
	User:      10 * time.Minute,
	Dashboard: 5 * time.Minute,
}

var listNamespaces = map[Domain]string{
	Package:   "packages:list",
	Trip:      "trips:list",
	Bid:       "bids:list",
	User:      "users:list",
	Dashboard: "dashboard:",
}

// DefaultTTL returns the built-in TTL for d, or zero for an unknown domain.
func DefaultTTL(d Domain) time.Duration {
	return defaultTTLs[d]
}

// ListNamespace returns the key prefix used for bulk listing results of d.
func ListNamespace(d Domain) string {
	return listNamespaces[d]
}

// EntityKey returns the key under which a single entity is cached.
func EntityKey(d Domain, id string) string {
	return string(d) + ":" + id
}

// ParseDomain resolves a domain name, ignoring case and surrounding space.
func ParseDomain(name string) (Domain, bool) {
	d := Domain(strings.ToLower(strings.TrimSpace(name)))
	_, ok := defaultTTLs[d]
	return d, ok
}
