//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"runtime/interrupt"
	"time"
)

type edge struct {
	rising bool
	micros int64
}

var (
	uart = machine.UART0

	// Edge ring filled by the echo interrupt, drained by the main loop
	edges     [EDGE_RING_SIZE]edge
	edgeHead  int
	edgeCount int
	dropped   uint32

	// Serial buffer for reading lines
	serialBuffer [16]byte
	serialPos    int
)

func main() {
	PIN_TRIGGER.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_TRIGGER.Low()

	PIN_ECHO.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
	if err := PIN_ECHO.SetInterrupt(machine.PinToggle, onEcho); err != nil {
		println("failed to attach echo interrupt:", err.Error())
	}

	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	for {
		processSerial()
		flushEdges()

		time.Sleep(50 * time.Microsecond)
	}
}

// onEcho runs in interrupt context: timestamp, store, return.
func onEcho(p machine.Pin) {
	now := time.Now().UnixNano() / 1000
	if edgeCount == EDGE_RING_SIZE {
		dropped++
		return
	}
	edges[(edgeHead+edgeCount)%EDGE_RING_SIZE] = edge{rising: p.Get(), micros: now}
	edgeCount++
}

func popEdge() (edge, bool) {
	state := interrupt.Disable()
	defer interrupt.Restore(state)

	if edgeCount == 0 {
		return edge{}, false
	}
	e := edges[edgeHead]
	edgeHead = (edgeHead + 1) % EDGE_RING_SIZE
	edgeCount--
	return e, true
}

func flushEdges() {
	for {
		e, ok := popEdge()
		if !ok {
			return
		}

		// Output format: "R,<micros>\n" or "F,<micros>\n"
		if e.rising {
			print("R,")
		} else {
			print("F,")
		}
		print(e.micros)
		print("\n")
	}
}

func trigger() {
	PIN_TRIGGER.High()
	time.Sleep(TRIGGER_PULSE_US * time.Microsecond)
	PIN_TRIGGER.Low()
}

func processSerial() {
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		// Check for newline (end of line)
		if data == '\n' || data == '\r' {
			if serialPos == 1 && serialBuffer[0] == 'T' {
				trigger()
			}
			serialPos = 0
			continue
		}

		if serialPos < len(serialBuffer) {
			serialBuffer[serialPos] = data
			serialPos++
		} else {
			// Overlong line - reset buffer
			serialPos = 0
		}
	}
}
