// Package capability decides, per operation, whether the ephemeral tier may
// be used. It is a leaf package: probes report a status and the Selector
// turns it into a yes/no answer.
package capability

import "context"

// Status is the availability reported by a capability signal.
type Status int

const (
	// StatusUnknown means the signal could not classify the tier.
	StatusUnknown Status = iota
	// StatusEnabled means the tier is operating normally.
	StatusEnabled
	// StatusDisabled means the tier must not be used.
	StatusDisabled
	// StatusScheduledMaintenance means maintenance is announced but the tier
	// still answers.
	StatusScheduledMaintenance
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusEnabled:
		return "ENABLED"
	case StatusDisabled:
		return "DISABLED"
	case StatusScheduledMaintenance:
		return "SCHEDULED_MAINTENANCE"
	default:
		return "UNKNOWN"
	}
}

// Probe reports the current status of the ephemeral tier.
type Probe interface {
	Status(ctx context.Context) (Status, error)
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func(ctx context.Context) (Status, error)

// Status implements Probe.
func (fn ProbeFunc) Status(ctx context.Context) (Status, error) {
	return fn(ctx)
}

// Static returns a probe that always reports status.
func Static(status Status) Probe {
	return ProbeFunc(func(context.Context) (Status, error) {
		return status, nil
	})
}
