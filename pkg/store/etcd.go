package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdConfig holds connection settings for the shared etcd cluster.
type EtcdConfig struct {
	Endpoints   []string
	Username    string
	Password    string
	DialTimeout time.Duration
}

// EtcdStore implements Store against etcd. Conditional operations map to
// etcd transactions and leases:
//
//   - SetIfAbsent: a Txn guarded on CreateRevision == 0, putting the key
//     under a fresh lease carrying the TTL.
//   - ExtendIfEquals: KeepAliveOnce on the lease we granted for the key.
//     The lease belongs to this holder alone, so extending it can never
//     extend another holder's claim; once the lease expires (key gone,
//     possibly re-acquired by someone else) the keepalive fails cleanly.
//   - DeleteIfEquals: a Txn guarded on the stored value.
type EtcdStore struct {
	cli *clientv3.Client

	mu     sync.Mutex
	leases map[string]clientv3.LeaseID // key -> lease we granted for it
}

// NewEtcdStore connects to etcd and returns a Store backed by it.
func NewEtcdStore(cfg EtcdConfig) (*EtcdStore, error) {
	dialTimeout := cfg.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = 5 * time.Second
	}

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	return &EtcdStore{
		cli:    cli,
		leases: make(map[string]clientv3.LeaseID),
	}, nil
}

func (s *EtcdStore) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	lease, err := s.cli.Grant(ctx, int64(ttl.Seconds()))
	if err != nil {
		return false, fmt.Errorf("failed to grant lease: %w", err)
	}

	resp, err := s.cli.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(clientv3.OpPut(key, value, clientv3.WithLease(lease.ID))).
		Commit()
	if err != nil {
		s.cli.Revoke(context.Background(), lease.ID)
		return false, fmt.Errorf("acquire txn failed: %w", err)
	}
	if !resp.Succeeded {
		// Key exists; the speculative lease is unused.
		s.cli.Revoke(context.Background(), lease.ID)
		return false, nil
	}

	s.mu.Lock()
	s.leases[key] = lease.ID
	s.mu.Unlock()
	return true, nil
}

func (s *EtcdStore) ExtendIfEquals(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	leaseID, ok := s.leases[key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}

	// Confirm we are still the holder before touching the lease; the
	// keepalive below is what makes the extension race-free.
	current, exists, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !exists || current != value {
		s.forgetLease(key)
		return false, nil
	}

	if _, err := s.cli.KeepAliveOnce(ctx, leaseID); err != nil {
		if errors.Is(err, rpctypes.ErrLeaseNotFound) {
			s.forgetLease(key)
			return false, nil
		}
		return false, fmt.Errorf("lease keepalive failed: %w", err)
	}
	return true, nil
}

func (s *EtcdStore) DeleteIfEquals(ctx context.Context, key, value string) (bool, error) {
	resp, err := s.cli.Txn(ctx).
		If(clientv3.Compare(clientv3.Value(key), "=", value)).
		Then(clientv3.OpDelete(key)).
		Commit()
	if err != nil {
		return false, fmt.Errorf("release txn failed: %w", err)
	}
	if !resp.Succeeded {
		return false, nil
	}

	s.mu.Lock()
	leaseID, ok := s.leases[key]
	delete(s.leases, key)
	s.mu.Unlock()
	if ok {
		s.cli.Revoke(context.Background(), leaseID)
	}
	return true, nil
}

func (s *EtcdStore) forgetLease(key string) {
	s.mu.Lock()
	delete(s.leases, key)
	s.mu.Unlock()
}

func (s *EtcdStore) Get(ctx context.Context, key string) (string, bool, error) {
	resp, err := s.cli.Get(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("get failed: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return "", false, nil
	}
	return string(resp.Kvs[0].Value), true, nil
}

func (s *EtcdStore) Set(ctx context.Context, key, value string) error {
	if _, err := s.cli.Put(ctx, key, value); err != nil {
		return fmt.Errorf("put failed: %w", err)
	}
	return nil
}

func (s *EtcdStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	lease, err := s.cli.Grant(ctx, int64(ttl.Seconds()))
	if err != nil {
		return fmt.Errorf("failed to grant lease: %w", err)
	}
	if _, err := s.cli.Put(ctx, key, value, clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("put with ttl failed: %w", err)
	}
	return nil
}

func (s *EtcdStore) Delete(ctx context.Context, key string) error {
	if _, err := s.cli.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	return nil
}

func (s *EtcdStore) Scan(ctx context.Context, prefix string) (map[string]string, error) {
	resp, err := s.cli.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	out := make(map[string]string, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		out[string(kv.Key)] = string(kv.Value)
	}
	return out, nil
}

func (s *EtcdStore) HSet(ctx context.Context, hash, field, value string) error {
	return s.Set(ctx, hash+"/"+field, value)
}

func (s *EtcdStore) HGet(ctx context.Context, hash, field string) (string, bool, error) {
	return s.Get(ctx, hash+"/"+field)
}

func (s *EtcdStore) HGetAll(ctx context.Context, hash string) (map[string]string, error) {
	scanned, err := s.Scan(ctx, hash+"/")
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(scanned))
	for key, value := range scanned {
		out[strings.TrimPrefix(key, hash+"/")] = value
	}
	return out, nil
}

func (s *EtcdStore) HDel(ctx context.Context, hash, field string) error {
	return s.Delete(ctx, hash+"/"+field)
}

func (s *EtcdStore) AppendEvent(ctx context.Context, trail, value string, maxLen int) error {
	key := fmt.Sprintf("%s/%020d", trail, time.Now().UnixNano())
	if _, err := s.cli.Put(ctx, key, value); err != nil {
		return fmt.Errorf("append failed: %w", err)
	}

	if maxLen <= 0 {
		return nil
	}

	// Trim oldest entries beyond the retained length.
	resp, err := s.cli.Get(ctx, trail+"/",
		clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend),
		clientv3.WithKeysOnly())
	if err != nil {
		return fmt.Errorf("trim scan failed: %w", err)
	}
	excess := len(resp.Kvs) - maxLen
	for i := 0; i < excess; i++ {
		if _, err := s.cli.Delete(ctx, string(resp.Kvs[i].Key)); err != nil {
			return fmt.Errorf("trim delete failed: %w", err)
		}
	}
	return nil
}

func (s *EtcdStore) ListEvents(ctx context.Context, trail string, limit int) ([]string, error) {
	opts := []clientv3.OpOption{
		clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByKey, clientv3.SortDescend),
	}
	if limit > 0 {
		opts = append(opts, clientv3.WithLimit(int64(limit)))
	}

	resp, err := s.cli.Get(ctx, trail+"/", opts...)
	if err != nil {
		return nil, fmt.Errorf("list events failed: %w", err)
	}
	out := make([]string, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		out = append(out, string(kv.Value))
	}
	return out, nil
}

func (s *EtcdStore) Publish(ctx context.Context, channel, message string) error {
	// Subscribers watch the channel key; every put is one delivery.
	if _, err := s.cli.Put(ctx, channel, message); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

func (s *EtcdStore) Subscribe(ctx context.Context, channel string) (<-chan string, error) {
	out := make(chan string, 16)
	watch := s.cli.Watch(ctx, channel)

	go func() {
		defer close(out)
		for resp := range watch {
			if resp.Err() != nil {
				return
			}
			for _, ev := range resp.Events {
				if ev.Type != clientv3.EventTypePut {
					continue
				}
				select {
				case out <- string(ev.Kv.Value):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (s *EtcdStore) Close() error {
	return s.cli.Close()
}
