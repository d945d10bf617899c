package util

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/ValentinKolb/dRender/rpc/common"
	"github.com/ValentinKolb/dRender/rpc/transport"
	"github.com/ValentinKolb/dRender/rpc/transport/tcp"
	"github.com/ValentinKolb/dRender/rpc/transport/unix"
	"github.com/ValentinKolb/dRender/rpc/transport/ws"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables (DRENDER_<FLAG>)
	EnvPrefix = "drender"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig loads the env files and binds DRENDER_* environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// SetupTransportFlags adds the connection flags shared by server and client commands
func SetupTransportFlags(cmd *cobra.Command, defaultEndpoint string) {
	key := "transport"
	cmd.PersistentFlags().String(key, "tcp", WrapString("The transport to use (tcp, unix, ws)"))

	key = "endpoint"
	cmd.PersistentFlags().String(key, defaultEndpoint, WrapString("The address to use: host:port for tcp and ws, a socket path for unix"))

	key = "max-frame-size"
	cmd.PersistentFlags().Uint64(key, common.DefaultMaxFrameSize, WrapString("The maximum payload size of a received frame in bytes, larger frames close the connection"))

	key = "write-timeout"
	cmd.PersistentFlags().Int64(key, 0, WrapString("Limit in seconds for writing a single frame (0 disables the limit)"))

	key = "tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY (only tcp)"))

	key = "tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval in seconds (only tcp, 0 keeps the system default)"))

	key = "tcp-linger"
	cmd.PersistentFlags().Int(key, 0, WrapString("The linger time in seconds (only tcp, 0 keeps the system default)"))

	key = "write-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the socket write buffer in KB (only tcp, 0 keeps the system default)"))

	key = "read-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the socket read buffer in KB (only tcp, 0 keeps the system default)"))
}

// GetTransportConfig reads the transport configuration from viper
func GetTransportConfig() common.TransportConfig {
	return common.TransportConfig{
		Type:               viper.GetString("transport"),
		Endpoint:           viper.GetString("endpoint"),
		MaxFrameSize:       viper.GetUint64("max-frame-size"),
		WriteTimeoutSecond: viper.GetInt64("write-timeout"),
		TCPNoDelay:         viper.GetBool("tcp-nodelay"),
		TCPKeepAliveSec:    viper.GetInt("tcp-keepalive"),
		TCPLingerSec:       viper.GetInt("tcp-linger"),
		WriteBufferSize:    viper.GetInt("write-buffer") * 1024,
		ReadBufferSize:     viper.GetInt("read-buffer") * 1024,
	}
}

// JoinHostPort returns host:port for the network transports
func JoinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// GetServerTransport creates the server side of a transport
func GetServerTransport(transportType string) (transport.IRPCServerTransport, error) {
	switch transportType {
	case "tcp":
		return tcp.NewTCPServerTransport(), nil
	case "unix":
		return unix.NewUnixServerTransport(), nil
	case "ws":
		return ws.NewWSServerTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s (expected one of tcp, unix, ws)", transportType)
	}
}

// GetClientTransport creates the client side of a transport
func GetClientTransport(transportType string) (transport.IRPCClientTransport, error) {
	switch transportType {
	case "tcp":
		return tcp.NewTCPClientTransport(), nil
	case "unix":
		return unix.NewUnixClientTransport(), nil
	case "ws":
		return ws.NewWSClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s (expected one of tcp, unix, ws)", transportType)
	}
}
