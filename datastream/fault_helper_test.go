package datastream

import (
	"testing"

	"github.com/carlodf/archtrav/fault"
)

// faultRecorder registers a fault callback that increments *count for
// every reported fault, and returns a restore func that clears the
// registration. Tests in this package use it to assert that I/O errors
// are surfaced through the fault channel in addition to the normal
// error return.
func faultRecorder(t *testing.T, count *int) func() {
	t.Helper()
	fault.Register(func(fault.Fault) { *count++ })
	return func() { fault.Register(nil) }
}
