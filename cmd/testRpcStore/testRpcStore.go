// Command testRpcStore is a throwaway TrackerService backend for exercising
// the receiver's grpc store. It resolves a fixed set of modem IDs and logs
// every inserted event.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"

	configuredLogger "github.com/fleetgrid/tracker-receiver/internal/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

var logger = configuredLogger.Logger

var knownModems = map[string]string{
	"123456789012345": "truck-7",
	"864768011234567": "van-2",
}

var allowedIPs = map[string][]any{
	"van-2": {"10.1.2.3"},
}

type trackerServer struct{}

// ResolveDevice accepts either a modemId or an accountId/deviceId pair.
func (s *trackerServer) ResolveDevice(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.AsMap()
	deviceID := ""
	if modemID, ok := fields["modemId"].(string); ok && modemID != "" {
		deviceID = knownModems[modemID]
	} else if requested, ok := fields["deviceId"].(string); ok {
		for _, known := range knownModems {
			if known == requested {
				deviceID = requested
			}
		}
	}
	if deviceID == "" {
		logger.Sugar().Infof("rejected unknown device %v", fields)
		return nil, status.Errorf(codes.NotFound, "unknown device")
	}
	reply := map[string]any{
		"accountId":   "fleet",
		"deviceId":    deviceID,
		"description": "test device",
	}
	if ips, ok := allowedIPs[deviceID]; ok {
		reply["allowedIps"] = ips
	}
	return structpb.NewStruct(reply)
}

func (s *trackerServer) InsertEvent(_ context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	fields := in.AsMap()
	logger.Sugar().Infof("event %v for %v at %v", fields["statusName"], fields["deviceId"], fields["timestamp"])
	return &emptypb.Empty{}, nil
}

// The receiver invokes TrackerService with structpb messages, so the service
// descriptor is declared by hand instead of generated from a proto file.
var trackerServiceDesc = grpc.ServiceDesc{
	ServiceName: "TrackerService",
	HandlerType: (*trackerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ResolveDevice", Handler: resolveDeviceHandler},
		{MethodName: "InsertEvent", Handler: insertEventHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func resolveDeviceHandler(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	return srv.(*trackerServer).ResolveDevice(ctx, in)
}

func insertEventHandler(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	return srv.(*trackerServer).InsertEvent(ctx, in)
}

func main() {
	port := flag.Int("port", 0, "port for this server")
	flag.Parse()

	if *port == 0 {
		fmt.Fprintln(os.Stderr, "Usage:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	lis, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", *port))
	if err != nil {
		logger.Sugar().Fatalf("failed to listen: %v", err)
	}

	logger.Sugar().Infoln("Listening on port ", *port)
	s := grpc.NewServer()
	s.RegisterService(&trackerServiceDesc, &trackerServer{})
	if err := s.Serve(lis); err != nil {
		logger.Sugar().Fatalf("failed to serve: %v", err)
	}
}
