// Package discovery centralizes port conventions for the service processes.
package discovery

import (
	"strconv"
	"strings"
)

const (
	// ServiceForthcoming is the punishment service identity.
	ServiceForthcoming = "forthcoming"
)

var grpcPorts = map[string]int{
	ServiceForthcoming: 8096,
}

var httpPorts = map[string]int{
	ServiceForthcoming: 8095,
}

// GRPCPort returns the conventional gRPC port for a service, or 0.
func GRPCPort(service string) int {
	return grpcPorts[strings.TrimSpace(service)]
}

// DefaultHTTPAddr returns the canonical in-network HTTP address for a service.
func DefaultHTTPAddr(service string) string {
	service = strings.TrimSpace(service)
	port, ok := httpPorts[service]
	if !ok || port <= 0 {
		return ""
	}
	return service + ":" + strconv.Itoa(port)
}

// DefaultHTTPListenAddr returns the all-interfaces listen address for a service.
func DefaultHTTPListenAddr(service string) string {
	port, ok := httpPorts[strings.TrimSpace(service)]
	if !ok || port <= 0 {
		return ""
	}
	return ":" + strconv.Itoa(port)
}

// OrDefaultHTTPListenAddr returns value when set, otherwise the service convention.
func OrDefaultHTTPListenAddr(value, service string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	return DefaultHTTPListenAddr(service)
}

// OrDefaultGRPCPort returns port when positive, otherwise the service convention.
func OrDefaultGRPCPort(port int, service string) int {
	if port > 0 {
		return port
	}
	return GRPCPort(service)
}
