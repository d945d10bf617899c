package common

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ValentinKolb/dRender/lib/compression"
)

const (
	// DefaultPort is the TCP port the server listens on if none is configured
	DefaultPort = 31050

	// DefaultMaxFrameSize limits the payload of a single frame (1 GiB)
	DefaultMaxFrameSize uint64 = 1 << 30
)

// --------------------------------------------------------------------------
// Transport configuration
// --------------------------------------------------------------------------

// TransportConfig configures the connection layer of both server and client
type TransportConfig struct {
	// Type is one of tcp, unix, ws
	Type string
	// Endpoint is host:port for tcp and ws, a socket path for unix
	Endpoint string

	// MaxFrameSize limits the payload of a received frame, 0 selects DefaultMaxFrameSize
	MaxFrameSize uint64
	// WriteTimeoutSecond limits a single frame write, 0 disables the deadline
	WriteTimeoutSecond int64

	// socket options (tcp only)
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
	WriteBufferSize int
	ReadBufferSize  int
}

// FrameLimit returns the effective maximum frame payload size
func (c TransportConfig) FrameLimit() uint64 {
	if c.MaxFrameSize == 0 {
		return DefaultMaxFrameSize
	}
	return c.MaxFrameSize
}

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of the render server
type ServerConfig struct {
	// Library is the name of the rendering library to load
	Library string

	Transport TransportConfig

	// MetricsEndpoint serves Prometheus metrics if not empty (e.g. :9100)
	MetricsEndpoint string

	// Compression
	JPEGQuality        int
	DisableCompression bool

	// MaxObjectHandle limits client chosen object handles, 0 selects the registry default
	MaxObjectHandle uint64

	// Logging configuration
	LogLevel string
	// Verbose forwards informational engine messages and enables debug logs
	Verbose bool
}

// EffectiveJPEGQuality returns the configured JPEG quality, the default if unset
func (c *ServerConfig) EffectiveJPEGQuality() int {
	if c.JPEGQuality == 0 {
		return compression.DefaultJPEGQuality
	}
	return c.JPEGQuality
}

// EffectiveLogLevel returns the configured log level, raised to debug if verbose
func (c *ServerConfig) EffectiveLogLevel() string {
	if c.Verbose {
		return "debug"
	}
	if c.LogLevel == "" {
		return "info"
	}
	return c.LogLevel
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Render Server")
	addField("Library", c.Library)
	addField("Max Object Handle", strconv.FormatUint(c.MaxObjectHandle, 10))

	addSection("Transport")
	addField("Type", c.Transport.Type)
	addField("Endpoint", c.Transport.Endpoint)
	addField("Max Frame Size", fmt.Sprintf("%d bytes", c.Transport.FrameLimit()))
	addField("Write Timeout", fmt.Sprintf("%d sec", c.Transport.WriteTimeoutSecond))
	if c.Transport.Type == "tcp" {
		addField("TCP No Delay", strconv.FormatBool(c.Transport.TCPNoDelay))
		addField("TCP Keep Alive", fmt.Sprintf("%d sec", c.Transport.TCPKeepAliveSec))
		addField("Write Buffer", strconv.Itoa(c.Transport.WriteBufferSize))
		addField("Read Buffer", strconv.Itoa(c.Transport.ReadBufferSize))
	}

	addSection("Compression")
	addField("Enabled", strconv.FormatBool(!c.DisableCompression))
	addField("JPEG Quality", strconv.Itoa(c.EffectiveJPEGQuality()))

	addSection("Observability")
	addField("Log Level", c.EffectiveLogLevel())
	addField("Verbose", strconv.FormatBool(c.Verbose))
	if c.MetricsEndpoint != "" {
		addField("Metrics", c.MetricsEndpoint)
	} else {
		addField("Metrics", "disabled")
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// ClientConfig configures a remote client
type ClientConfig struct {
	Transport TransportConfig

	// TimeoutSecond limits waiting for a reply, 0 waits forever
	TimeoutSecond int64

	// DisableCompression announces no codec support to the server
	DisableCompression bool
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Transport", c.Transport.Type)
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Compression", strconv.FormatBool(!c.DisableCompression))

	return sb.String()
}
