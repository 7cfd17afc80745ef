package primary

import "context"

// LifecycleScheduler defines the primary port for time-driven lifecycle work.
type LifecycleScheduler interface {
	// Run sweeps on its configured intervals until ctx is cancelled.
	Run(ctx context.Context) error

	// SweepReminders notifies members of operations about to start. It returns
	// the number of operations reminded.
	SweepReminders(ctx context.Context) (int, error)

	// SweepExpired removes the posts of long-past operations. It returns the
	// number of operations expired.
	SweepExpired(ctx context.Context) (int, error)
}
