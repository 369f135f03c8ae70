package beanstalk

import (
	"errors"
	"fmt"

	"github.com/pior/beanstalk/internal"
	"github.com/zeebo/xxh3"
)

var (
	ErrNoServers          = errors.New("beanstalk: no servers provided")
	ErrInvalidServerIndex = errors.New("beanstalk: server selector returned an invalid index")
)

// ServerSelector picks the index of the server that owns a tube.
type ServerSelector func(tube string, serverCount int) int

// DefaultServerSelector hashes the tube name with xxh3 and places it with
// Jump Hash, so producers and consumers of a tube agree on one server and
// few tubes move when servers are added.
func DefaultServerSelector(tube string, serverCount int) int {
	return internal.JumpHash(xxh3.HashString(tube), serverCount)
}

// SelectServer returns the address owning tube. A nil selector means
// DefaultServerSelector.
func SelectServer(tube string, servers []string, selector ServerSelector) (string, error) {
	if len(servers) == 0 {
		return "", ErrNoServers
	}
	if selector == nil {
		selector = DefaultServerSelector
	}
	i := selector(tube, len(servers))
	if i < 0 || i >= len(servers) {
		return "", fmt.Errorf("%w: %d for %d servers", ErrInvalidServerIndex, i, len(servers))
	}
	return servers[i], nil
}
