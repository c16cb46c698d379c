// Package dblock serialises Postgres integration tests across the packages
// go test runs in parallel. The lock is a listening TCP port, so it is
// released even when a test binary crashes.
package dblock

import (
	"net"
	"os"
	"time"
)

const defaultLockAddr = "127.0.0.1:45433"

// LockAddrEnv overrides the lock port when two checkouts share a host.
const LockAddrEnv = "CLUBLEDGER_TEST_DB_LOCK_ADDR"

func lockAddr() string {
	if addr := os.Getenv(LockAddrEnv); addr != "" {
		return addr
	}
	return defaultLockAddr
}

// Acquire blocks until the lock is held and returns its release func.
func Acquire() func() {
	addr := lockAddr()
	for {
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return func() { _ = ln.Close() }
		}
		time.Sleep(50 * time.Millisecond)
	}
}
