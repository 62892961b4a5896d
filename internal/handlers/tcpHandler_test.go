package handlers

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fleetgrid/tracker-receiver/internal/config"
	"github.com/fleetgrid/tracker-receiver/internal/geo"
	"github.com/fleetgrid/tracker-receiver/internal/pipeline"
	"github.com/fleetgrid/tracker-receiver/internal/store"
	"github.com/fleetgrid/tracker-receiver/internal/types"
)

type captureStore struct {
	ch chan store.Event
}

func (c *captureStore) Process()                         {}
func (c *captureStore) GetProcessChan() chan store.Event { return c.ch }
func (c *captureStore) GetCloseChan() chan bool          { return nil }

func newTestHandler() (*TcpHandler, *captureStore) {
	cfg := config.Default()
	cfg.IdleTimeoutSec = 2
	events := &captureStore{ch: make(chan store.Event, 64)}
	pipe := pipeline.New(
		store.NewMemoryResolver("fleet", true),
		store.NewMemoryStateStore(),
		events,
		geo.NewZoneIndex(nil),
		cfg,
	)
	return NewTcpHandler(pipe, cfg), events
}

func awaitEvent(t *testing.T, events *captureStore) store.Event {
	t.Helper()
	select {
	case ev := <-events.ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event produced")
		return store.Event{}
	}
}

func TestSessionPlainAsciiLine(t *testing.T) {
	handler, events := newTestHandler()
	server, client := net.Pipe()
	go handler.HandleConnection(server)

	_, err := client.Write([]byte("123456789012345,2006/09/05,07:47:26,35.3640,-142.2958,27.0,224.8\r\n"))
	assert.NoError(t, err)

	ev := awaitEvent(t, events)
	assert.Equal(t, "dev-123456789012345", ev.DeviceID)
	assert.Equal(t, types.StatusLocation, ev.Status)
	assert.Equal(t, 35.3640, ev.Latitude)
	assert.Equal(t, "gprmc", ev.RawDialect)

	client.Close()
}

func TestSessionLantrixAck(t *testing.T) {
	handler, events := newTestHandler()
	server, client := net.Pipe()
	go handler.HandleConnection(server)

	frame := ">RGP190805211932-3457215-058493640000000FFBF0300;ID=8247;#2122;*54<"
	_, err := client.Write([]byte(frame))
	assert.NoError(t, err)

	ev := awaitEvent(t, events)
	assert.Equal(t, "dev-8247", ev.DeviceID)
	assert.Equal(t, "lantrix", ev.RawDialect)

	reply := make([]byte, 64)
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := client.Read(reply)
	assert.NoError(t, err)
	assert.Equal(t, ">ACK;ID=8247;#2122;*55<\r\n", string(reply[:n]))

	client.Close()
}

func TestSessionLoginThenData(t *testing.T) {
	handler, events := newTestHandler()
	server, client := net.Pipe()
	go handler.HandleConnection(server)

	// bare IMEI login expects the "ON" acknowledgment
	_, err := client.Write([]byte("123456789012345\r\n"))
	assert.NoError(t, err)

	reply := make([]byte, 8)
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := client.Read(reply)
	assert.NoError(t, err)
	assert.Equal(t, "ON", string(reply[:n]))

	// the paren-delimited position report needs no line terminator
	_, err = client.Write([]byte("(013612345678BR00060905A3536.3640N14222.2958E027.0074725224.8000000011L0000EA60)"))
	assert.NoError(t, err)

	ev := awaitEvent(t, events)
	assert.Equal(t, "dev-123456789012345", ev.DeviceID)
	assert.InDelta(t, 35.60607, ev.Latitude, 1e-4)

	client.Close()
}

func TestSessionGarbageThenFrame(t *testing.T) {
	handler, events := newTestHandler()
	server, client := net.Pipe()
	go handler.HandleConnection(server)

	// leading control noise is skipped without losing the frame behind it
	_, err := client.Write(append([]byte{0x00, 0x01, '\r', '\n'},
		[]byte(">RGP190805211932-3457215-058493640000000FFBF0300;ID=8247;#2122;*54<")...))
	assert.NoError(t, err)

	ev := awaitEvent(t, events)
	assert.Equal(t, "dev-8247", ev.DeviceID)

	client.Close()
}

func TestUdpDatagram(t *testing.T) {
	handler, events := newTestHandler()
	udp := NewUdpHandler(handler)

	serverConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Skipf("no loopback udp: %v", err)
	}
	defer serverConn.Close()
	go udp.Serve(serverConn)

	client, err := net.DialUDP("udp", nil, serverConn.LocalAddr().(*net.UDPAddr))
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	_, err = client.Write([]byte("123456789012345,2006/09/05,07:47:26,35.3640,-142.2958,27.0,224.8\r\n"))
	assert.NoError(t, err)

	ev := awaitEvent(t, events)
	assert.Equal(t, "dev-123456789012345", ev.DeviceID)
	assert.Equal(t, types.StatusLocation, ev.Status)
	assert.Equal(t, "gprmc", ev.RawDialect)
}
