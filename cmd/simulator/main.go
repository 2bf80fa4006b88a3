// Frame simulator: writes air-quality frames to the specified serial device the way
// the module does. Use this for local testing when you don't have the sensor.
// With -virtual it creates a socat PTY pair and writes into one end; point the
// node's air.device at the other.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"AirNode/internal/device"
	"AirNode/internal/model"
	"AirNode/internal/parser"
	"AirNode/internal/util"
)

func main() {
	dev := flag.String("dev", "/tmp/ttyAIR0", "serial device to write frames into")
	baud := flag.Int("baud", 9600, "baud rate")
	interval := flag.Duration("interval", time.Second, "time between frames")
	virtual := flag.String("virtual", "", "create a socat pair linking -dev to this path")
	corrupt := flag.Float64("corrupt", 0, "fraction of frames sent with a bad checksum")
	short := flag.Float64("short", 0, "fraction of frames cut short")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	level := flag.String("log", "info", "log level")
	flag.Parse()

	if _, err := util.SetupLogger(model.LogConfig{Level: *level}); err != nil {
		log.Fatal(err)
	}

	if *virtual != "" {
		socat := util.NewSocatManager()
		defer socat.Cleanup()
		if err := socat.CreatePair(*dev, *virtual, 3*time.Second); err != nil {
			log.Errorf("virtual serial: %v", err)
			return
		}
	}

	port, err := device.OpenSerialPort(*dev, *baud)
	if err != nil {
		log.Errorf("open serial: %v", err)
		return
	}
	defer func() {
		if cerr := port.Close(); cerr != nil {
			log.Warnf("close serial err: %v", cerr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rng := rand.New(rand.NewSource(*seed))
	gen := newGenerator(rng)

	log.Infof("simulator sending to %s every %s", *dev, *interval)
	tick := time.NewTicker(*interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
		f := gen.next()
		b := f[:]
		switch x := rng.Float64(); {
		case x < *corrupt:
			b[8] ^= 0xFF
		case x < *corrupt+*short:
			b = b[:1+rng.Intn(parser.FrameLen-1)]
		}

		out := parser.Decode(b)
		if _, err := port.Write(b); err != nil {
			log.Errorf("write err: %v", err)
			continue
		}
		entry := log.WithField("frame", fmt.Sprintf("% X", b))
		if out.OK() {
			entry.Infof("sent tvoc=%.3f ch2o=%.3f co2=%.3f", out.Air.TVOC, out.Air.CH2O, out.Air.CO2)
		} else {
			entry.Infof("sent %s frame", out.Status)
		}
	}
}

// generator walks the three raw values around plausible indoor levels.
type generator struct {
	rng             *rand.Rand
	tvoc, ch2o, co2 float64
}

func newGenerator(rng *rand.Rand) *generator {
	return &generator{rng: rng, tvoc: 120, ch2o: 40, co2: 450}
}

func (g *generator) next() parser.RawFrame {
	g.tvoc = walk(g.rng, g.tvoc, 10, 0, 2000)
	g.ch2o = walk(g.rng, g.ch2o, 5, 0, 1000)
	g.co2 = walk(g.rng, g.co2, 25, 350, 5000)
	return parser.EncodeFrame(uint16(g.tvoc), uint16(g.ch2o), uint16(g.co2))
}

func walk(rng *rand.Rand, v, step, lo, hi float64) float64 {
	v += (rng.Float64()*2 - 1) * step
	return max(lo, min(hi, v))
}
