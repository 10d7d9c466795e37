//go:build !unix

package server

import (
	"os"

	"github.com/louisbranch/rendezvous/internal/services/rendezvous/capability"
)

var statusSignals []os.Signal

func statusForSignal(os.Signal) (capability.Status, bool) {
	return capability.StatusUnknown, false
}
