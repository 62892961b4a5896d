package handlers

import (
	"bytes"
	"net"

	"go.uber.org/zap"

	"github.com/fleetgrid/tracker-receiver/internal/observability"
	"github.com/fleetgrid/tracker-receiver/internal/session"
)

const maxDatagramSize = 2048

// UdpHandler serves trackers that report over datagrams. A datagram carries
// one complete packet, so no framing state survives between reads; every
// datagram gets a fresh session.
type UdpHandler struct {
	tcp *TcpHandler
}

func NewUdpHandler(tcp *TcpHandler) *UdpHandler {
	return &UdpHandler{tcp: tcp}
}

// Serve reads datagrams until the connection is closed.
func (u *UdpHandler) Serve(conn *net.UDPConn) {
	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			logger.Info("udp read loop stopped", zap.Error(err))
			return
		}
		packet := bytes.TrimRight(buf[:n], "\r\n")
		if len(packet) == 0 {
			continue
		}
		u.handleDatagram(conn, addr, packet)
	}
}

func (u *UdpHandler) handleDatagram(conn *net.UDPConn, addr *net.UDPAddr, packet []byte) {
	observability.ConnectionsAccepted.Inc()

	s := session.New(addr.String())
	write := func(reply []byte) error {
		_, err := conn.WriteToUDP(reply, addr)
		return err
	}
	u.tcp.handlePacket(s, packet, write)
}
