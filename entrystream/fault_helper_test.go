package entrystream

import (
	"testing"

	"github.com/carlodf/archtrav/fault"
)

func installFaultRecorder(t *testing.T, count *int) func() {
	t.Helper()
	fault.Register(func(fault.Fault) { *count++ })
	return func() { fault.Register(nil) }
}
