// Package ports hands out free TCP ports for services whose topology
// declares a dynamic host port.
package ports

import (
	"fmt"
	"net"
	"sync"

	"chainpad/internal/constants"
	"chainpad/internal/errors"
	"chainpad/internal/logger"
)

// Allocator reserves host ports for one network session. Reservations are
// tracked in-process so that two services resolved in the same session
// never receive the same port, even before anything is listening on it.
type Allocator struct {
	mu       sync.Mutex
	base     int
	limit    int
	next     int
	reserved map[int]bool
}

// NewAllocator creates an allocator scanning from the default port range
func NewAllocator() *Allocator {
	return NewAllocatorAt(constants.PortScanBase, constants.PortScanLimit)
}

// NewAllocatorAt creates an allocator scanning limit ports from base
func NewAllocatorAt(base, limit int) *Allocator {
	return &Allocator{
		base:     base,
		limit:    limit,
		next:     base,
		reserved: make(map[int]bool),
	}
}

// Allocate finds and reserves the next free port
func (a *Allocator) Allocate() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for port := a.next; port < a.base+a.limit; port++ {
		if a.reserved[port] {
			continue
		}
		if !portFree(port) {
			continue
		}
		a.reserved[port] = true
		a.next = port + 1
		logger.WithFields(logger.Fields{"port": port}).Debug("Allocated port")
		return port, nil
	}

	return 0, errors.PortExhausted(a.base, a.limit)
}

// Claim reserves a specific port, failing if it is taken
func (a *Allocator) Claim(port int) error {
	if port < constants.MinPortNumber || port > constants.MaxPortNumber {
		return errors.ValidationFailed("port", fmt.Sprintf("%d is out of range", port))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.reserved[port] {
		return errors.PortUnavailable(port)
	}
	if !portFree(port) {
		return errors.PortUnavailable(port)
	}
	a.reserved[port] = true
	return nil
}

// Release returns a port to the pool
func (a *Allocator) Release(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.reserved, port)
	if port < a.next {
		a.next = port
	}
}

// ReleaseAll drops every reservation
func (a *Allocator) ReleaseAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reserved = make(map[int]bool)
	a.next = a.base
}

// Reserved reports whether the allocator holds the port
func (a *Allocator) Reserved(port int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reserved[port]
}

// portFree checks availability by binding and immediately closing
func portFree(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}
