// Package availability detects scheduling conflicts and finds free slots.
//
// Intervals are half-open, so back-to-back events never conflict. Busy time
// comes from active stored bookings plus, when configured, an external
// calendar; free slots are found by a linear walk over a bounded window.
package availability
