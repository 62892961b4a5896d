package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fleetgrid/tracker-receiver/internal/config"
	"github.com/fleetgrid/tracker-receiver/internal/geo"
	"github.com/fleetgrid/tracker-receiver/internal/handlers"
	configuredLogger "github.com/fleetgrid/tracker-receiver/internal/logger"
	"github.com/fleetgrid/tracker-receiver/internal/observability"
	"github.com/fleetgrid/tracker-receiver/internal/pipeline"
	"github.com/fleetgrid/tracker-receiver/internal/store"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var logger = configuredLogger.Logger

func main() {
	var configPath = flag.String("config", "", "Path to the YAML config file")
	var listenAddr = flag.String("listen", "", "TCP listen address, overrides the config file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Sugar().Fatalf("failed to load config %s: %v", *configPath, err)
		}
		cfg = loaded
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	configuredLogger.Configure(cfg.Log.Level, cfg.Log.File, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups)
	logger = configuredLogger.Logger

	resolver, states, events, cleanup := buildStores(cfg)
	defer cleanup()

	go events.Process()
	defer func() { events.GetCloseChan() <- true }()

	zones := geo.NewZoneIndex(configuredZones(cfg))
	pipe := pipeline.New(resolver, states, events, zones, cfg)
	tcpHandler := handlers.NewTcpHandler(pipe, cfg)

	if cfg.MetricsAddr != "" {
		go observability.StartMetricsServer(cfg.MetricsAddr)
	}

	if cfg.UDPAddr != "" {
		udpAddr, err := net.ResolveUDPAddr("udp", cfg.UDPAddr)
		if err != nil {
			logger.Sugar().Fatalf("bad udp address %s: %v", cfg.UDPAddr, err)
		}
		udpConn, err := net.ListenUDP("udp", udpAddr)
		if err != nil {
			logger.Sugar().Fatalf("failed to listen on udp %s: %v", cfg.UDPAddr, err)
		}
		defer udpConn.Close()
		logger.Sugar().Infof("udp server listening on %s", cfg.UDPAddr)
		go handlers.NewUdpHandler(tcpHandler).Serve(udpConn)
	}

	if cfg.WebSocketAddr != "" {
		wsHandler := handlers.NewWebSocketHandler(tcpHandler)
		go func() {
			logger.Sugar().Infof("websocket server listening on %s", cfg.WebSocketAddr)
			if err := http.ListenAndServe(cfg.WebSocketAddr, wsHandler); err != nil {
				logger.Error("websocket server stopped", zap.Error(err))
			}
		}()
	}

	listener, err := net.Listen("tcp4", cfg.ListenAddr)
	if err != nil {
		logger.Sugar().Fatalf("failed to listen on %s: %v", cfg.ListenAddr, err)
	}
	logger.Sugar().Infof("tcp server listening on %s", cfg.ListenAddr)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		s := <-sig
		logger.Sugar().Infof("received %s, shutting down", s)
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			logger.Sugar().Infof("accept loop stopped: %v", err)
			return
		}
		go tcpHandler.HandleConnection(conn)
	}
}

// buildStores wires the resolver, state store and event store selected by
// the config. The returned cleanup closes what was opened.
func buildStores(cfg *config.Config) (store.DeviceResolver, store.StateStore, store.EventStore, func()) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var resolver store.DeviceResolver
	var events store.EventStore

	switch cfg.Store.Kind {
	case "grpc":
		if cfg.Store.Target == "" {
			logger.Fatal("store target must be set for the grpc store")
		}
		conn, err := grpc.NewClient(cfg.Store.Target,
			grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			logger.Sugar().Fatalf("failed to connect to %s: %v", cfg.Store.Target, err)
		}
		closers = append(closers, func() { conn.Close() })

		client := store.NewTrackerStoreClient(conn)
		resolver = &store.RemoteResolver{Client: client, Timeout: 5 * time.Second}
		events = store.NewRemoteRpcStore(client)
	case "jsonlines", "":
		if err := os.MkdirAll(cfg.Store.Dir, 0o755); err != nil {
			logger.Sugar().Fatalf("failed to create %s: %v", cfg.Store.Dir, err)
		}
		path := filepath.Join(cfg.Store.Dir, "events.jsonl")
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logger.Sugar().Fatalf("failed to open %s: %v", path, err)
		}
		closers = append(closers, func() { file.Close() })
		events = store.NewJsonLinesStore(file)
	default:
		logger.Sugar().Fatalf("unknown store kind %q", cfg.Store.Kind)
	}

	if resolver == nil {
		memory := store.NewMemoryResolver(cfg.Devices.AccountID, cfg.Devices.AutoRegister)
		for modemID, deviceID := range cfg.Devices.Known {
			memory.Register(store.DeviceIdentity{
				AccountID:  cfg.Devices.AccountID,
				DeviceID:   deviceID,
				ModemID:    modemID,
				AllowedIPs: cfg.Devices.AllowedIPs[modemID],
			})
		}
		resolver = memory
	}

	var states store.StateStore
	if cfg.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisStates, err := store.NewRedisStateStore(ctx, cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.KeyPrefix)
		cancel()
		if err != nil {
			logger.Sugar().Fatalf("failed to connect to redis %s: %v", cfg.Redis.Addr, err)
		}
		closers = append(closers, func() { redisStates.Close() })
		states = redisStates
	} else {
		states = store.NewMemoryStateStore()
	}

	return resolver, states, events, cleanup
}

func configuredZones(cfg *config.Config) []geo.Zone {
	zones := make([]geo.Zone, 0, len(cfg.Geozones))
	for _, z := range cfg.Geozones {
		zones = append(zones, geo.Zone{
			ID:        z.ID,
			AccountID: z.AccountID,
			Center:    geo.GeoPoint{Latitude: z.Latitude, Longitude: z.Longitude},
			RadiusM:   z.RadiusM,
		})
	}
	return zones
}
