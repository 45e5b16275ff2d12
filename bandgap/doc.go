// Package bandgap provides sample sources for the band-gap entropy pipeline.
// A source triggers one analog conversion of the internal band-gap reference
// and returns the raw 12-bit code. Concrete sources cover a board streaming
// conversions over a serial port, the same board in USB vendor mode, a seeded
// software model and a replay of a recorded capture.
package bandgap
