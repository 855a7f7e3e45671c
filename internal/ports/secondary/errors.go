package secondary

import (
	"errors"
	"fmt"
)

// TransientReadError wraps a queue read failure expected to clear on its
// own (throttling, network). The queue stays monitored.
type TransientReadError struct {
	Queue string
	Err   error
}

func (e *TransientReadError) Error() string {
	return fmt.Sprintf("transient read failure for queue %s: %v", e.Queue, e.Err)
}

func (e *TransientReadError) Unwrap() error { return e.Err }

// ConfigurationError wraps a queue read failure that will not clear
// without operator action, such as a queue that does not exist. The queue
// is dropped from polling until restart.
type ConfigurationError struct {
	Queue string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for queue %s: %v", e.Queue, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// DuplicateInvestigationError is returned by a runner asked to start an
// investigation for a queue that already has a live process.
type DuplicateInvestigationError struct {
	Queue string
}

func (e *DuplicateInvestigationError) Error() string {
	return fmt.Sprintf("investigation already running for queue %s", e.Queue)
}

// ProcessSpawnError wraps a failure to launch the external tool.
type ProcessSpawnError struct {
	Queue string
	Err   error
}

func (e *ProcessSpawnError) Error() string {
	return fmt.Sprintf("failed to spawn investigation for queue %s: %v", e.Queue, e.Err)
}

func (e *ProcessSpawnError) Unwrap() error { return e.Err }

// IsConfiguration reports whether err is a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsTransient reports whether err is a TransientReadError.
func IsTransient(err error) bool {
	var te *TransientReadError
	return errors.As(err, &te)
}
