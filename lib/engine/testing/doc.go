// Package testing provides a conformance suite for engine.Device implementations.
//
// Usage:
//
//	func Test(t *testing.T) {
//		enginetesting.RunDeviceTests(t, "Sink", func(status engine.StatusFunc) engine.Device {
//			return sink.NewDevice(status)
//		})
//	}
//
// Every sub test gets a fresh device. Diagnostics reported through the status function
// are recorded, tests that expect an error check that one was reported.
package testing
