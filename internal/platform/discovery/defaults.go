// Package discovery centralizes internal service-discovery conventions.
package discovery

import (
	"strconv"
	"strings"
)

// ServicePlacement is the placement gRPC service identity.
const ServicePlacement = "placement"

var grpcPorts = map[string]int{
	ServicePlacement: 8095,
}

// DefaultGRPCPort returns the conventional gRPC port for a service, or 0.
func DefaultGRPCPort(service string) int {
	return grpcPorts[strings.TrimSpace(service)]
}

// LocalGRPCAddr returns the gRPC address of a service running on this host.
func LocalGRPCAddr(service string) string {
	port := DefaultGRPCPort(service)
	if port <= 0 {
		return ""
	}
	return "localhost:" + strconv.Itoa(port)
}

// OrLocalGRPCAddr returns value when set, otherwise the local address of
// the service.
func OrLocalGRPCAddr(value, service string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	return LocalGRPCAddr(service)
}
