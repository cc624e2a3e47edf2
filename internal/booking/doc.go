// Package booking defines the Booking record and the durable Store that
// holds it, with an embedded BadgerDB implementation and a MongoDB one.
//
// Both stores enforce at the storage layer that no two active bookings start
// at the same instant, so concurrent writers cannot race past the check.
package booking
