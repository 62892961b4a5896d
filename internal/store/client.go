package store

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// TrackerStoreClient talks to the fleet backend over gRPC. Messages are
// google.protobuf.Struct payloads, so no generated stubs are needed on
// either side.
type TrackerStoreClient struct {
	cc grpc.ClientConnInterface
}

func NewTrackerStoreClient(cc grpc.ClientConnInterface) *TrackerStoreClient {
	return &TrackerStoreClient{cc: cc}
}

func (c *TrackerStoreClient) ResolveDevice(ctx context.Context, modemID string, opts ...grpc.CallOption) (*DeviceIdentity, error) {
	in, err := structpb.NewStruct(map[string]any{"modemId": modemID})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/TrackerService/ResolveDevice", in, out, opts...); err != nil {
		return nil, err
	}
	return identityFromFields(out.AsMap(), modemID)
}

func (c *TrackerStoreClient) ResolveAccountDevice(ctx context.Context, accountID, deviceID string, opts ...grpc.CallOption) (*DeviceIdentity, error) {
	in, err := structpb.NewStruct(map[string]any{"accountId": accountID, "deviceId": deviceID})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/TrackerService/ResolveDevice", in, out, opts...); err != nil {
		return nil, err
	}
	return identityFromFields(out.AsMap(), "")
}

// identityFromFields maps a backend reply onto a DeviceIdentity. The caller's
// modem ID is kept when the backend does not echo one.
func identityFromFields(fields map[string]any, modemID string) (*DeviceIdentity, error) {
	identity := &DeviceIdentity{ModemID: modemID}
	if v, ok := fields["accountId"].(string); ok {
		identity.AccountID = v
	}
	if v, ok := fields["deviceId"].(string); ok {
		identity.DeviceID = v
	}
	if v, ok := fields["modemId"].(string); ok && v != "" {
		identity.ModemID = v
	}
	if v, ok := fields["description"].(string); ok {
		identity.Description = v
	}
	if list, ok := fields["allowedIps"].([]any); ok {
		for _, item := range list {
			if ip, ok := item.(string); ok {
				identity.AllowedIPs = append(identity.AllowedIPs, ip)
			}
		}
	}
	if identity.DeviceID == "" {
		return nil, errors.New("backend returned no device id")
	}
	return identity, nil
}

func (c *TrackerStoreClient) InsertEvent(ctx context.Context, event *Event, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	in, err := eventToStruct(event)
	if err != nil {
		return nil, err
	}
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, "/TrackerService/InsertEvent", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func eventToStruct(event *Event) (*structpb.Struct, error) {
	b, err := json.Marshal(event)
	if err != nil {
		return nil, errors.Wrap(err, "encode event")
	}
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, errors.Wrap(err, "decode event")
	}
	return structpb.NewStruct(fields)
}
