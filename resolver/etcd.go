package resolver

import (
	"context"
	"encoding/json"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdResolver implements Resolver and Advertiser using etcd v3, exactly
// the teacher's EtcdRegistry with ServiceInstance renamed to Instance and
// Discover renamed to Resolve to match this package's interface.
//
//	Key:   /srpcgo/{service}/{addr}
//	Value: JSON-encoded Instance
//
// Registration uses TTL-based leases: if the process crashes, the lease
// expires and the entry is removed automatically.
type EtcdResolver struct {
	client *clientv3.Client
}

// NewEtcdResolver connects to the given etcd endpoints.
func NewEtcdResolver(endpoints []string) (*EtcdResolver, error) {
	c, err := clientv3.New(clientv3.Config{Endpoints: endpoints})
	if err != nil {
		return nil, err
	}
	return &EtcdResolver{client: c}, nil
}

// Register puts inst under a TTL lease and starts background lease
// renewal. leaseID is kept local (not stored on the struct) so multiple
// goroutines sharing one EtcdResolver never race over it.
func (r *EtcdResolver) Register(service string, inst Instance, ttlSeconds int64) error {
	ctx := context.Background()

	lease, err := r.client.Grant(ctx, ttlSeconds)
	if err != nil {
		return err
	}

	val, err := json.Marshal(inst)
	if err != nil {
		return err
	}

	_, err = r.client.Put(ctx, "/srpcgo/"+service+"/"+inst.Addr, string(val), clientv3.WithLease(lease.ID))
	if err != nil {
		return err
	}

	ch, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return err
	}
	go func() {
		for range ch {
		}
	}()
	return nil
}

// Deregister removes service's entry for addr.
func (r *EtcdResolver) Deregister(service string, addr string) error {
	_, err := r.client.Delete(context.Background(), "/srpcgo/"+service+"/"+addr)
	return err
}

// Resolve returns every instance currently registered for service.
func (r *EtcdResolver) Resolve(service string) ([]Instance, error) {
	prefix := "/srpcgo/" + service + "/"
	resp, err := r.client.Get(context.Background(), prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	instances := make([]Instance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var inst Instance
		if err := json.Unmarshal(kv.Value, &inst); err != nil {
			continue
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// Watch monitors service's key prefix and re-resolves on every change,
// using etcd's server-push Watch API rather than polling.
func (r *EtcdResolver) Watch(service string) <-chan []Instance {
	ch := make(chan []Instance, 1)
	prefix := "/srpcgo/" + service + "/"

	go func() {
		watchChan := r.client.Watch(context.Background(), prefix, clientv3.WithPrefix())
		for range watchChan {
			instances, err := r.Resolve(service)
			if err == nil {
				ch <- instances
			}
		}
	}()

	return ch
}
