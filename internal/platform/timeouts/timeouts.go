// Package timeouts defines shared timeout constants used by the service
// runtime, so the values stay discoverable in one place.
package timeouts

import "time"

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight work during graceful
// shutdown.
const Shutdown = 5 * time.Second

// LedgerFlush caps the synchronous ledger write performed at shutdown.
const LedgerFlush = 5 * time.Second

// HostWrite caps a single frame write to the connected game host.
const HostWrite = 2 * time.Second
