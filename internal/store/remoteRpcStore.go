package store

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RemoteRpcStore streams events to the fleet backend.
type RemoteRpcStore struct {
	ProcessChan chan Event
	CloseChan   chan bool
	Client      *TrackerStoreClient
}

func NewRemoteRpcStore(client *TrackerStoreClient) *RemoteRpcStore {
	return &RemoteRpcStore{
		ProcessChan: make(chan Event, 256),
		CloseChan:   make(chan bool),
		Client:      client,
	}
}

func (s *RemoteRpcStore) GetProcessChan() chan Event {
	return s.ProcessChan
}

func (s *RemoteRpcStore) GetCloseChan() chan bool {
	return s.CloseChan
}

func (s *RemoteRpcStore) Process() {
	for {
		select {
		case event := <-s.ProcessChan:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_, err := s.Client.InsertEvent(ctx, &event)
			cancel()
			if err != nil {
				logger.Error("failed to save event",
					zap.String("deviceId", event.DeviceID),
					zap.Error(err))
			}
		case <-s.CloseChan:
			return
		}
	}
}

// RemoteResolver resolves devices against the fleet backend.
type RemoteResolver struct {
	Client  *TrackerStoreClient
	Timeout time.Duration
}

func (r *RemoteResolver) ResolveDevice(ctx context.Context, modemID string) (*DeviceIdentity, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	return r.Client.ResolveDevice(ctx, modemID)
}

func (r *RemoteResolver) ResolveAccountDevice(ctx context.Context, accountID, deviceID string) (*DeviceIdentity, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	return r.Client.ResolveAccountDevice(ctx, accountID, deviceID)
}
