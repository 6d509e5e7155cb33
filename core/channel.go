package core

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/salahga/oocoresim/request"
)

// bufferChannel adapts a pair of akita sim.Buffers to the lsq.CacheChannel
// contract, i.e. the tx_fifo/rx_fifo pair of spec.md §4.4. onSend, if
// set, is called after every push so a reactive memory system (see
// memsys.System) can notice new work without polling tx_fifo itself.
type bufferChannel struct {
	tx     sim.Buffer
	rx     sim.Buffer
	onSend func()
}

// newBufferChannel wraps the caller's tx/rx buffers as they are; their
// capacities are chosen by whoever built them (cmd/coresim sizes both
// to the core's OOO window).
func newBufferChannel(tx, rx sim.Buffer, onSend func()) *bufferChannel {
	return &bufferChannel{tx: tx, rx: rx, onSend: onSend}
}

// CanSendRequest reports tx_fifo.is_full() negated.
func (c *bufferChannel) CanSendRequest() bool {
	return c.tx.CanPush()
}

// SendRequest pushes req onto tx_fifo as a *request.Request.
func (c *bufferChannel) SendRequest(req request.Request) {
	r := req
	c.tx.Push(&r)

	if c.onSend != nil {
		c.onSend()
	}
}

// HasResponse reports rx_fifo.is_empty() negated.
func (c *bufferChannel) HasResponse() bool {
	return c.rx.Peek() != nil
}

// PopResponse dequeues the front of rx_fifo.
func (c *bufferChannel) PopResponse() request.Response {
	resp := c.rx.Pop().(*request.Response)
	return *resp
}
