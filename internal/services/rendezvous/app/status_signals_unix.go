//go:build unix

package server

import (
	"os"
	"syscall"

	"github.com/louisbranch/rendezvous/internal/services/rendezvous/capability"
)

// SIGUSR1 takes the ephemeral tier out of service, SIGUSR2 puts it back.
var statusSignals = []os.Signal{syscall.SIGUSR1, syscall.SIGUSR2}

func statusForSignal(sig os.Signal) (capability.Status, bool) {
	switch sig {
	case syscall.SIGUSR1:
		return capability.StatusDisabled, true
	case syscall.SIGUSR2:
		return capability.StatusEnabled, true
	default:
		return capability.StatusUnknown, false
	}
}
