//go:build tinygo

package main

import "machine"

const (
	// Trigger pulse width required by the HC-SR04
	TRIGGER_PULSE_US = 10

	// Edge ring capacity. One echo pulse is two edges; anything beyond that
	// before the host drains the ring is dropped.
	EDGE_RING_SIZE = 2

	// Sensor pins. The HC-SR04 echo output is 5 V; use a divider on 3.3 V boards.
	PIN_TRIGGER = machine.D2
	PIN_ECHO    = machine.D3

	// Serial configuration
	// Line format: "R,<micros>\n" or "F,<micros>\n", ~16 bytes max per line
	// 10 measurements/sec * 2 edges * 16 bytes = 320 bytes/sec, far below 115200 baud
	UART_BAUD_RATE = 115200
)
