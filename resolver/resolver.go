// Package resolver is srpcgo's optional service-discovery hook. It is
// deliberately outside the RPC core's scope boundary: discovery and load
// balancing policy are non-goals of the message/payload/task pipeline
// (spec.md §1), so the client only depends on the small Resolver
// interface here — picking an address is the caller's business, not the
// wire protocol's.
//
// Adapted from the teacher's registry+loadbalance packages: Registry
// became Resolver (Discover-only; registration/advertisement of the
// local process stays the server's job, see resolver.Advertiser),
// ServiceInstance became Instance, and Balancer is unchanged in shape.
package resolver

import "fmt"

// Instance is one running instance of a service.
type Instance struct {
	Addr    string
	Weight  int
	Version string
}

// Resolver discovers the instances currently serving a service name.
type Resolver interface {
	// Resolve returns every currently registered instance for service.
	Resolve(service string) ([]Instance, error)
	// Watch emits an updated instance list whenever the set changes.
	Watch(service string) <-chan []Instance
}

// Advertiser registers and deregisters the local process's own instances;
// split from Resolver because a pure client only ever needs to resolve,
// never to advertise.
type Advertiser interface {
	Register(service string, inst Instance, ttlSeconds int64) error
	Deregister(service string, addr string) error
}

// Balancer picks one instance from a resolved list. Implementations must
// be goroutine-safe: Pick runs on every call.
type Balancer interface {
	Pick(instances []Instance) (*Instance, error)
	Name() string
}

// ErrNoInstances is returned by a Balancer given an empty instance list.
var ErrNoInstances = fmt.Errorf("resolver: no instances available")
