//go:build rp2040 || rp2350

// pico-usart runs the reference task set on a Pico: uart0 (instance 0)
// transmits in interrupt mode, uart1 (instance 1) receives in polled mode.
// Wire GP0 (uart0 TX) to GP5 (uart1 RX) to see the message come back.
package main

import (
	"context"
	"runtime"
	"time"

	"usart-go/services/tasks"
	"usart-go/services/usart"
	"usart-go/services/usart/config"
	"usart-go/services/usart/platform"
)

const (
	txInstance = 0
	rxInstance = 1
)

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("[usart] boot …")

	tbl, err := config.ForBoard("pico")
	if err != nil {
		println("[usart] config error:", err.Error())
		return
	}
	tasks.CheckDrainPeriod(tbl, tasks.DefaultDrainPeriod)

	ctx := context.Background()
	hw := platform.NewStream(ctx, platform.DefaultPorts(tbl))

	eng, err := usart.New(hw, tbl, usart.Options{})
	if err != nil {
		println("[usart] engine error:", err.Error())
		return
	}
	for _, i := range []int{txInstance, rxInstance} {
		if err := eng.Init(i); err != nil {
			println("[usart] init", i, "failed:", err.Error())
			return
		}
	}
	println("[usart] instances ready")

	tasks.StartDrains(ctx, eng, tasks.DefaultDrainPeriod)
	go tasks.Producer{Instance: txInstance, Message: []byte("Ahmed ")}.Run(ctx, eng)
	go statsLoop(eng)

	_ = tasks.Receive(ctx, eng, rxInstance, 2*time.Millisecond, func(b byte) {
		println("Rx data :", string(rune(b)))
	})
}

func statsLoop(eng *usart.Engine) {
	for {
		time.Sleep(5 * time.Second)
		tx, _ := eng.Stats(txInstance)
		rx, _ := eng.Stats(rxInstance)
		println("[usart] tx written:", tx.TxWritten, "busy:", tx.TxBusy,
			"rx queued:", rx.RxQueued, "dropped:", rx.RxDropped)
		printMem()
	}
}

// printMem prints a compact snapshot of TinyGo runtime memory stats.
func printMem() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	println("[mem]", "alloc:", uint32(ms.Alloc), "heapInuse:", uint32(ms.HeapInuse),
		"mallocs:", uint32(ms.Mallocs), "frees:", uint32(ms.Frees))
}
