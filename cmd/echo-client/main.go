// Command echo-client sends one framed, length-prefixed, CRC-checked
// datagram per tick to a configured peer, using the same policy stack as
// echo-server. Grounded on the teacher's sample/udp-client program.
package main

import (
	"flag"
	"log"
	"time"

	"github.com/nodeframe/framewire"
)

func main() {
	laddr := flag.String("listen", "127.0.0.1:0", "local address to bind")
	raddr := flag.String("remote", "127.0.0.1:9000", "server address")
	flag.Parse()

	link, err := framewire.NewUDPLink(*laddr)
	if err != nil {
		log.Fatalf("NewUDPLink: %v", err)
	}
	defer link.Close()

	dst := framewire.EndpointID{NodeID: 2}
	if err := link.RegisterPeer(dst, *raddr); err != nil {
		log.Fatalf("RegisterPeer: %v", err)
	}

	transport := framewire.Composite(framewire.LengthPrefixed{}, framewire.CrcTransport{})
	pipeline := framewire.NewPipeline(link, transport, framewire.RawMessage{}, framewire.NoneService{}, dst)

	for {
		if err := pipeline.SendValue([]byte("ping")); err != nil {
			log.Printf("SendValue: %v", err)
		}
		time.Sleep(time.Second)
	}
}
