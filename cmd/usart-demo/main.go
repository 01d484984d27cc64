//go:build !baremetal

// usart-demo runs the reference task set on the host: RX/TX drain tasks at
// 1 ms, a producer sending a short message every 5 ms, and a consumer that
// prints each received byte. Without -dev the UART is simulated with its TX
// looped back into RX; with -dev the instance is bound to an OS serial port.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"usart-go/services/tasks"
	"usart-go/services/usart"
	"usart-go/services/usart/config"
	"usart-go/services/usart/platform"

	"tinygo.org/x/drivers"
)

func main() {
	var (
		dev      = flag.String("dev", "", "serial device to bind the instance to (default: simulated loopback)")
		board    = flag.String("board", "", "board name for embedded configuration overrides")
		instance = flag.Int("instance", 1, "logical instance to exercise")
		msg      = flag.String("msg", "Ahmed ", "message sent every period")
		period   = flag.Duration("period", 5*time.Millisecond, "producer period")
		duration = flag.Duration("duration", 0, "stop after this long (0: until interrupted)")
	)
	flag.Parse()

	tbl, err := config.ForBoard(*board)
	if err != nil {
		println("Error: config:", err.Error())
		os.Exit(1)
	}
	if *instance < 0 || *instance >= len(tbl) {
		println("Error: instance out of range")
		os.Exit(2)
	}
	ent := tbl[*instance]
	tasks.CheckDrainPeriod(tbl, tasks.DefaultDrainPeriod)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	var hw usart.Adapter
	if *dev == "" {
		sim := platform.NewSimFor(tbl)
		sim.SetLoopback(ent.Peripheral, true)
		go sim.Run(ctx, 100*time.Microsecond)
		hw = sim
		println("Info: simulated", ent.Peripheral.String(), "with loopback")
	} else {
		port, err := platform.OpenSerial(*dev, ent.Line)
		if err != nil {
			println("Error: open", *dev+":", err.Error())
			os.Exit(1)
		}
		defer port.Close()
		s := platform.NewStream(ctx, map[config.Peripheral]drivers.UART{ent.Peripheral: port})
		defer s.Close()
		hw = s
		println("Info:", ent.Peripheral.String(), "bound to", port.Name())
	}

	eng, err := usart.New(hw, tbl, usart.Options{})
	if err != nil {
		println("Error: engine:", err.Error())
		os.Exit(1)
	}
	if err := eng.Init(*instance); err != nil {
		println("Error: init instance", *instance, "failed:", err.Error())
		os.Exit(1)
	}
	cfg, _ := eng.Config(*instance)
	println("Info: instance", *instance, "ready on", cfg.Peripheral.String(), "rx", cfg.RxMode.String(),
		"tx", cfg.TxMode.String(), "baud", int(cfg.Line.BaudRate), "parity", cfg.Line.Parity.String())

	drains := tasks.StartDrains(ctx, eng, tasks.DefaultDrainPeriod)

	p := tasks.Producer{Instance: *instance, Message: []byte(*msg), Period: *period, Retry: time.Millisecond}
	go func() {
		if err := p.Run(ctx, eng); err != nil {
			stop()
		}
	}()

	err = tasks.Receive(ctx, eng, *instance, 2*time.Millisecond, func(b byte) {
		println("Rx data :", string(rune(b)))
	})
	<-drains
	if err != nil {
		println("Error: receive:", err.Error())
	}

	st, _ := eng.Stats(*instance)
	println("Info: tx written", st.TxWritten, "busy", st.TxBusy, "rx queued", st.RxQueued, "dropped", st.RxDropped)
}
