// Command devicesim replays sample tracker traffic against a running
// receiver. It is a smoke-test client: one connection per run, one dialect,
// fixed packet fixtures.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	configuredLogger "github.com/fleetgrid/tracker-receiver/internal/logger"
)

var logger = configuredLogger.Logger

var fixtures = map[string][]string{
	"gprmc": {
		"123456789012345,2006/09/05,07:47:26,35.3640,-142.2958,27.0,224.8\r\n",
	},
	"tk10x": {
		"123456789012345\r\n",
		"(013612345678BP00123456789012345HSO)",
		"(013612345678BR00060905A3536.3640N14222.2958E027.0074725224.8000000011L0000EA60)",
	},
	"lantrix": {
		">RGP050906074726-3536400-14229580027224000000012;ID=1234;#0007;*00<",
	},
}

func main() {
	addr := flag.String("addr", "localhost:8500", "receiver address")
	dialect := flag.String("dialect", "gprmc", "dialect to replay, one of gprmc, tk10x, lantrix")
	gap := flag.Duration("gap", 500*time.Millisecond, "delay between packets")
	flag.Parse()

	packets, ok := fixtures[*dialect]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown dialect %q\n", *dialect)
		flag.PrintDefaults()
		os.Exit(1)
	}

	conn, err := net.DialTimeout("tcp", *addr, 5*time.Second)
	if err != nil {
		logger.Sugar().Fatalf("failed to connect to %s: %v", *addr, err)
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)
	for _, packet := range packets {
		if _, err := conn.Write([]byte(packet)); err != nil {
			logger.Sugar().Fatalf("write failed: %v", err)
		}
		logger.Sugar().Infof("sent %d bytes: %q", len(packet), packet)

		// Replies are dialect acks. Not every packet gets one, so the
		// read deadline doubles as the inter-packet gap.
		conn.SetReadDeadline(time.Now().Add(*gap))
		reply := make([]byte, 256)
		if n, err := reader.Read(reply); err == nil && n > 0 {
			logger.Sugar().Infof("received reply: %q", reply[:n])
		}
	}
}
