// Package protocol defines the Layer-2 command protocol spoken by the scan
// unit controllers.
//
// It has two halves:
//
//   - The catalog (catalog.go): the fixed table of named commands and the
//     command groups an operator configures. A group is either a toggle
//     (one option, present or absent) or an exclusive choice such as ON/OFF
//     or HIGH/LOW, where each option maps to a different command byte.
//   - The encoder (frame.go): the 7-byte payload carried by every frame and
//     the IEEE 802.3 header that wraps it on the wire.
//
// # Wire Format
//
//	┌──────────┬──────────┬────────┬─────────────────────────────────────┐
//	│ dst (6)  │ src (6)  │ len(2) │ 00 00 00 00 │ 02 03 │ command (1)   │
//	└──────────┴──────────┴────────┴─────────────────────────────────────┘
//	                                └──────────── payload (7) ───────────┘
//
// The payload length and constant bytes are fixed by the controller
// firmware. Any other length or constant value is rejected by the device.
//
// All data in this package is immutable and safe for concurrent use.
package protocol
