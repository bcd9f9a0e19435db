// Package clock provides an injectable time source.
//
// Structs that need the current time or a delay hold a Clock field instead
// of calling time.Now or time.After directly:
//
//	s := &Service{clock: clock.Real()}
//
// In tests:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	s := &Service{clock: c}
//	c.Advance(24 * time.Hour) // roll over to the next day
package clock
