// Package broker fans run events out to subscribers. Topics are identified
// by run ID; publishing never blocks the execution loop on a slow consumer.
//
// Two implementations exist: Local delivers in-process through buffered
// channels, NATS serializes events and publishes them on a subject so
// observers in other processes can follow a run.
package broker
