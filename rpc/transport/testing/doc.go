// Package testing provides a conformance suite for transport implementations. Every
// transport package runs RunTransportTests against a real listener.
package testing
