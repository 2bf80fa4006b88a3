// Frame dump: reads frames from the air-quality module and prints how each one
// decodes. Useful to check wiring and the module address before running the node.
package main

import (
	"flag"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"AirNode/internal/device"
	"AirNode/internal/model"
	"AirNode/internal/parser"
	"AirNode/internal/util"
)

func main() {
	dev := flag.String("dev", "/dev/serial0", "serial device of the module")
	baud := flag.Int("baud", 9600, "baud rate")
	count := flag.Int("n", 10, "frames to read (0 = forever)")
	timeout := flag.Duration("timeout", 2*time.Second, "per-frame read timeout")
	addrHigh := flag.Uint("addr-high", uint(parser.DefaultAddrHigh), "expected address byte 0")
	addrLow := flag.Uint("addr-low", uint(parser.DefaultAddrLow), "expected address byte 1")
	flag.Parse()

	if _, err := util.SetupLogger(model.LogConfig{Level: "warn"}); err != nil {
		log.Fatal(err)
	}

	r := device.NewFrameReader(*dev, *baud, nil)
	if err := r.Open(); err != nil {
		log.Fatalf("open: %v", err)
	}
	defer r.Close()

	dec := parser.FrameDecoder{AddrHigh: byte(*addrHigh), AddrLow: byte(*addrLow)}
	for i := 0; *count == 0 || i < *count; i++ {
		out := r.ReadFrame(*timeout)
		switch out.Status {
		case device.ReadFrame:
			printDecoded(out.Frame[:], dec.Decode(out.Frame[:]))
		case device.ReadPartial:
			printDecoded(out.Received, dec.Decode(out.Received))
		case device.ReadTimeout:
			fmt.Println("timeout: no bytes")
		case device.ReadLinkFault:
			fmt.Printf("link fault: %v\n", out.Err)
			return
		}
	}
}

func printDecoded(b []byte, out parser.DecodeOutcome) {
	if !out.OK() {
		fmt.Printf("% X  %s (%v)\n", b, out.Status, out.Err())
		return
	}
	fmt.Printf("% X  tvoc=%.3f mg/m3 ch2o=%.3f mg/m3 co2=%.3f ppm\n", b, out.Air.TVOC, out.Air.CH2O, out.Air.CO2)
}
