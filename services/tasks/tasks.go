// Package tasks holds the periodic task loops that sit around the USART
// engine: the drain tasks that service polled instances, and simple producer
// and consumer loops that use the non-blocking byte API.
package tasks

import (
	"context"
	"errors"
	"time"

	"usart-go/errcode"
	"usart-go/services/usart/config"
	"usart-go/x/mathx"
	"usart-go/x/timex"
)

// DefaultDrainPeriod is the reference rate of the RX and TX drain tasks.
const DefaultDrainPeriod = time.Millisecond

// Retry and poll delays are clamped to this range.
const (
	minWait = 50 * time.Microsecond
	maxWait = time.Second
)

// Drainer is the part of the engine serviced by the drain tasks.
type Drainer interface {
	RxDrain()
	TxDrain()
}

// Transport is the non-blocking byte API of one engine.
type Transport interface {
	SendByte(i int, b byte) error
	ReceiveByte(i int) (byte, error)
}

// notifier is implemented by engines that can signal arriving data.
type notifier interface {
	Readable(i int) (<-chan struct{}, error)
}

// Every calls fn once per period until ctx ends. Wake-ups are anchored to the
// start time, so a slow fn does not push later calls back.
func Every(ctx context.Context, period time.Duration, fn func()) {
	if period <= 0 {
		period = DefaultDrainPeriod
	}
	tick := time.NewTicker(period)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			fn()
		}
	}
}

// StartDrains runs the RX and TX drain tasks as two goroutines until ctx
// ends. The returned channel is closed once both have stopped.
func StartDrains(ctx context.Context, d Drainer, period time.Duration) <-chan struct{} {
	done := make(chan struct{})
	rxDone := make(chan struct{})
	go func() {
		defer close(rxDone)
		Every(ctx, period, d.RxDrain)
	}()
	go func() {
		defer close(done)
		Every(ctx, period, d.TxDrain)
		<-rxDone
	}()
	return done
}

// SendAll hands data to instance i one byte at a time, sleeping retry after
// every Busy. It returns the number of bytes accepted; on any other error, or
// when ctx ends, the remainder is not sent.
func SendAll(ctx context.Context, t Transport, i int, data []byte, retry time.Duration) (int, error) {
	if retry <= 0 {
		retry = time.Millisecond
	}
	retry = mathx.Clamp(retry, minWait, maxWait)
	for n, b := range data {
		for {
			err := t.SendByte(i, b)
			if err == nil {
				break
			}
			if !errors.Is(err, errcode.Busy) {
				return n, err
			}
			select {
			case <-ctx.Done():
				return n, ctx.Err()
			case <-time.After(retry):
			}
		}
	}
	return len(data), nil
}

// Producer sends Message to Instance once per Period.
type Producer struct {
	Instance int
	Message  []byte
	Period   time.Duration // default 5ms
	Retry    time.Duration // delay after Busy, default 1ms
}

// Run blocks until ctx ends or a send fails with a non-retriable error.
func (p Producer) Run(ctx context.Context, t Transport) error {
	period := p.Period
	if period <= 0 {
		period = 5 * time.Millisecond
	}
	tick := time.NewTicker(period)
	defer tick.Stop()
	for {
		if _, err := SendAll(ctx, t, p.Instance, p.Message, p.Retry); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			println("Error: producer on instance", p.Instance, "stopped:", err.Error())
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}
	}
}

// Receive takes every byte arriving on instance i and passes it to fn. When
// nothing is queued it waits for poll, or less when the engine signals new
// data. It returns nil when ctx ends and the error of any failed receive
// other than NoData.
func Receive(ctx context.Context, t Transport, i int, poll time.Duration, fn func(byte)) error {
	if poll <= 0 {
		poll = 2 * time.Millisecond
	}
	poll = mathx.Clamp(poll, minWait, maxWait)
	var wake <-chan struct{}
	if n, ok := t.(notifier); ok {
		if ch, err := n.Readable(i); err == nil {
			wake = ch
		}
	}
	timer := time.NewTimer(poll)
	defer timer.Stop()

	for {
		b, err := t.ReceiveByte(i)
		if err == nil {
			fn(b)
			continue
		}
		if !errors.Is(err, errcode.NoData) {
			return err
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(poll)
		select {
		case <-ctx.Done():
			return nil
		case <-wake:
		case <-timer.C:
		}
	}
}

// CheckDrainPeriod returns the instances whose polled receive would lose
// bytes at the given drain period: the hardware holds one character, so the
// drain must run at least once per character time. Each offender is logged.
func CheckDrainPeriod(t config.Table, period time.Duration) []int {
	var bad []int
	for i, e := range t {
		if e.RxMode != config.ModePolled || !e.Pins.Connected() {
			continue
		}
		ct := timex.CharTime(e.Line.BaudRate, e.Line.FrameBits())
		if ct < period {
			println("Warn: instance", i, e.Peripheral.String(), "character time", ct.String(),
				"is shorter than drain period", period.String())
			bad = append(bad, i)
		}
	}
	return bad
}
