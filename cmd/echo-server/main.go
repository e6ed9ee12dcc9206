// Command echo-server wires a UDPLink into a Pipeline with a
// length-prefixed, CRC-checked Transport and a RawMessage codec, and logs
// every datagram it receives. Grounded on the teacher's sample/udp-server
// program, rebuilt against the Link/Transport/Message/Service contract
// instead of a bare net.PacketConn loop.
package main

import (
	"flag"
	"log"

	"github.com/nodeframe/framewire"
)

func main() {
	laddr := flag.String("listen", "127.0.0.1:9000", "address to listen on")
	flag.Parse()

	link, err := framewire.NewUDPLink(*laddr)
	if err != nil {
		log.Fatalf("NewUDPLink: %v", err)
	}
	defer link.Close()

	transport := framewire.Composite(framewire.LengthPrefixed{}, framewire.CrcTransport{})
	pipeline := framewire.NewPipeline(link, transport, framewire.RawMessage{}, framewire.NoneService{}, framewire.EndpointID{})

	log.Printf("echo-server listening on %s", *laddr)
	pipeline.Loop(func(v interface{}) {
		b, ok := v.([]byte)
		if !ok {
			return
		}
		log.Printf("received %d bytes", len(b))
	})
}
