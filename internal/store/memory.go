package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/fleetgrid/tracker-receiver/internal/errors"
)

// MemoryResolver resolves modem IDs against an in-process table. With
// AutoRegister set, unknown modem IDs are admitted under a synthetic device
// ID instead of being rejected.
type MemoryResolver struct {
	mu           sync.RWMutex
	devices      map[string]DeviceIdentity
	byAccount    map[string]DeviceIdentity
	AutoRegister bool
	AccountID    string
}

func NewMemoryResolver(accountID string, autoRegister bool) *MemoryResolver {
	return &MemoryResolver{
		devices:      make(map[string]DeviceIdentity),
		byAccount:    make(map[string]DeviceIdentity),
		AutoRegister: autoRegister,
		AccountID:    accountID,
	}
}

func accountDeviceKey(accountID, deviceID string) string {
	return accountID + "/" + deviceID
}

// Register adds or replaces a device entry, indexed both by modem ID and by
// account/device pair.
func (r *MemoryResolver) Register(identity DeviceIdentity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if identity.ModemID != "" {
		r.devices[identity.ModemID] = identity
	}
	r.byAccount[accountDeviceKey(identity.AccountID, identity.DeviceID)] = identity
}

func (r *MemoryResolver) ResolveDevice(_ context.Context, modemID string) (*DeviceIdentity, error) {
	if modemID == "" {
		return nil, errors.ErrNoDeviceID
	}
	r.mu.RLock()
	identity, ok := r.devices[modemID]
	r.mu.RUnlock()
	if ok {
		return &identity, nil
	}
	if !r.AutoRegister {
		return nil, errors.ErrUnknownDevice
	}
	identity = DeviceIdentity{
		AccountID:   r.AccountID,
		DeviceID:    fmt.Sprintf("dev-%s", modemID),
		ModemID:     modemID,
		Description: "auto-registered",
	}
	r.mu.Lock()
	r.devices[modemID] = identity
	r.byAccount[accountDeviceKey(identity.AccountID, identity.DeviceID)] = identity
	r.mu.Unlock()
	return &identity, nil
}

func (r *MemoryResolver) ResolveAccountDevice(_ context.Context, accountID, deviceID string) (*DeviceIdentity, error) {
	if accountID == "" || deviceID == "" {
		return nil, errors.ErrNoDeviceID
	}
	r.mu.RLock()
	identity, ok := r.byAccount[accountDeviceKey(accountID, deviceID)]
	r.mu.RUnlock()
	if ok {
		return &identity, nil
	}
	if !r.AutoRegister {
		return nil, errors.ErrUnknownDevice
	}
	identity = DeviceIdentity{
		AccountID:   accountID,
		DeviceID:    deviceID,
		Description: "auto-registered",
	}
	r.mu.Lock()
	r.byAccount[accountDeviceKey(accountID, deviceID)] = identity
	r.mu.Unlock()
	return &identity, nil
}

// MemoryStateStore keeps device state in a map. Used in tests and as the
// default when no redis address is configured.
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[string]DeviceState
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]DeviceState)}
}

func (s *MemoryStateStore) LoadState(_ context.Context, deviceID string) (*DeviceState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if state, ok := s.states[deviceID]; ok {
		return &state, nil
	}
	return &DeviceState{DeviceID: deviceID, InputMask: -1, LastValidHeading: -1}, nil
}

func (s *MemoryStateStore) SaveState(_ context.Context, state *DeviceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.DeviceID] = *state
	return nil
}
