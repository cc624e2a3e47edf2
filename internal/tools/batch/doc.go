// Package batch runs one booking operation over several booking ids and
// reports per-id outcomes, so one bad id does not fail the whole call.
package batch
