// Package testutil contains builders and fakes shared by tests: an event
// builder for runtime streams and a scripted runtime that replays events and
// invokes report tools in order. Not intended for production usage.
package testutil
