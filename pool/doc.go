// Package pool
// Author: momentics <momentics@gmail.com>
//
// Reusable receive buffers for hioload-wsc transports.
//
// A transport reads into one pooled array for its whole lifetime and lends
// it to the protocol engine per read. The engine copies only what it must
// keep, so buffers can go back to the pool as soon as the connection ends.
package pool
