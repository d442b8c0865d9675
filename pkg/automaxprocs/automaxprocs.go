package automaxprocs

import (
	"fmt"
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/veil-network/pool-scanner/pkg/logger"
	"github.com/veil-network/pool-scanner/pkg/logger/slogx"
	"go.uber.org/automaxprocs/maxprocs"
)

var (
	// undo is the undo function returned by maxprocs.Set
	undo func()

	// initialMaxProcs is the initial value of GOMAXPROCS.
	initialMaxProcs = Current()
)

func Init() error {
	log := logger.With(
		slogx.String("package", "automaxprocs"),
		slogx.Int("prev_maxprocs", initialMaxProcs),
	)

	// Set GOMAXPROCS to match the Linux container CPU quota (if any).
	// Set is a no-op on non-Linux systems and in Linux environments without
	// a configured CPU quota.
	revert, err := maxprocs.Set(maxprocs.Logger(func(format string, v ...any) {
		log.Info(fmt.Sprintf(format, v...))
	}), maxprocs.Min(1))
	if err != nil {
		return errors.WithStack(err)
	}

	undo = revert
	return nil
}

// Undo restores GOMAXPROCS to its previous value,
// or reverts to the initial value if Init was never called.
// Returns the current GOMAXPROCS value.
func Undo() int {
	if undo != nil {
		undo()
		return Current()
	}

	runtime.GOMAXPROCS(initialMaxProcs)
	return initialMaxProcs
}

// Current returns the current value of GOMAXPROCS.
func Current() int {
	return runtime.GOMAXPROCS(0)
}
