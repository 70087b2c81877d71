// Package bus defines the subject-addressed request/reply contract
// shared by the host's two interchangeable transports (in-process and
// networked).
package bus

import (
	"context"

	"github.com/lattice-run/lattice-host/pkg/types"
)

// Bus is the message fabric a lifecycle worker subscribes to and a
// caller invokes through. Exactly one transport is chosen at host
// construction and never changes for the host's lifetime.
type Bus interface {
	// Subscribe registers that invocations addressed to subject must
	// be delivered on inbound and replied to on outbound. At most one
	// subscriber may exist per subject; a second Subscribe on the same
	// subject is rejected.
	Subscribe(subject string, inbound chan<- types.Invocation, outbound <-chan types.InvocationResponse) error

	// Invoke performs a synchronous request/reply call against
	// subject. It blocks until a reply arrives, the transport times
	// out (networked transport only), or ctx is canceled.
	Invoke(ctx context.Context, subject string, inv types.Invocation) (types.InvocationResponse, error)

	// Unsubscribe tears down subject's subscription. It is idempotent
	// and never fails on a missing subject.
	Unsubscribe(subject string) error

	// Close releases any transport-level resources (connections,
	// goroutines). It does not implicitly unsubscribe.
	Close() error
}
