package usecase_test

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pagebound/payment-service/internal/domain/repository"
)

// memStore is an in-memory KeyedStore with the same atomicity and expiry
// guarantees as the redis-backed implementation, scoped to a single test.
// Tests that exercise expiry override now with a controllable clock.
type memStore struct {
	mu        sync.Mutex
	values    map[string]string
	expiries  map[string]time.Time
	deadlines map[string]map[string]time.Time
	now       func() time.Time
}

func newMemStore() *memStore {
	return &memStore{
		values:    make(map[string]string),
		expiries:  make(map[string]time.Time),
		deadlines: make(map[string]map[string]time.Time),
		now:       time.Now,
	}
}

// reap drops the key if its TTL has passed. Callers hold the mutex.
func (s *memStore) reap(key string) {
	if expiry, ok := s.expiries[key]; ok && s.now().After(expiry) {
		delete(s.values, key)
		delete(s.expiries, key)
	}
}

func (s *memStore) setExpiry(key string, ttl time.Duration) {
	if ttl > 0 {
		s.expiries[key] = s.now().Add(ttl)
	} else {
		delete(s.expiries, key)
	}
}

func (s *memStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reap(key)
	value, ok := s.values[key]
	if !ok {
		return "", repository.ErrKeyNotFound
	}
	return value, nil
}

func (s *memStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	s.setExpiry(key, ttl)
	return nil
}

func (s *memStore) SetIfAbsent(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reap(key)
	if _, ok := s.values[key]; ok {
		return false, nil
	}
	s.values[key] = value
	s.setExpiry(key, ttl)
	return true, nil
}

func (s *memStore) GetDel(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reap(key)
	value, ok := s.values[key]
	if !ok {
		return "", repository.ErrKeyNotFound
	}
	delete(s.values, key)
	delete(s.expiries, key)
	return value, nil
}

func (s *memStore) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reap(key)
	count, _ := strconv.ParseInt(s.values[key], 10, 64)
	count++
	s.values[key] = strconv.FormatInt(count, 10)
	// TTL attaches on first increment only, mirroring the redis store
	if count == 1 {
		s.setExpiry(key, ttl)
	}
	return count, nil
}

func (s *memStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.values, key)
		delete(s.expiries, key)
	}
	return nil
}

func (s *memStore) AddDeadline(_ context.Context, index, member string, due time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deadlines[index] == nil {
		s.deadlines[index] = make(map[string]time.Time)
	}
	s.deadlines[index][member] = due
	return nil
}

func (s *memStore) RemoveDeadline(_ context.Context, index, member string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members, ok := s.deadlines[index]
	if !ok {
		return false, nil
	}
	if _, present := members[member]; !present {
		return false, nil
	}
	delete(members, member)
	return true, nil
}

func (s *memStore) DueMembers(_ context.Context, index string, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []string
	for member, deadline := range s.deadlines[index] {
		if !deadline.After(now) {
			due = append(due, member)
		}
	}
	return due, nil
}

// keyCount reports residual live value keys, used to verify completed and
// expired correlations leave no state behind
func (s *memStore) keyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.values {
		s.reap(key)
	}
	return len(s.values)
}

func (s *memStore) deadlineCount(index string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deadlines[index])
}
