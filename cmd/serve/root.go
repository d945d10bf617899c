package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cmdUtil "github.com/ValentinKolb/dRender/cmd/util"
	"github.com/ValentinKolb/dRender/lib/compression"
	"github.com/ValentinKolb/dRender/lib/engine"
	"github.com/ValentinKolb/dRender/lib/engine/sink"
	"github.com/ValentinKolb/dRender/rpc/common"
	"github.com/ValentinKolb/dRender/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// DefaultSocketPath is the endpoint of the unix transport if none is given
const DefaultSocketPath = "/tmp/drender.sock"

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:   "serve",
		Short: "Start the render server",
		Long: `Start the render server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DRENDER_<flag> (e.g. DRENDER_JPEG_QUALITY=90)

Available libraries: ` + fmt.Sprint(engine.Libraries()),
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	cmdUtil.SetupTransportFlags(ServeCmd, "")

	// add flags
	key := "library"
	ServeCmd.PersistentFlags().StringP(key, "l", sink.LibraryName, cmdUtil.WrapString(fmt.Sprintf("The rendering library to load (%q reads the name from %s)", engine.EnvironmentLibrary, engine.LibraryEnvVar)))

	key = "host"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0", cmdUtil.WrapString("The host to listen on (tcp, ws)"))

	key = "port"
	ServeCmd.PersistentFlags().IntP(key, "p", common.DefaultPort, cmdUtil.WrapString("The port to listen on (tcp, ws)"))

	key = "verbose"
	ServeCmd.PersistentFlags().BoolP(key, "v", false, cmdUtil.WrapString("Log every message and forward informational engine messages (implies --log-level debug)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Serve Prometheus metrics on this address (e.g. :9100), empty disables the endpoint"))

	key = "jpeg-quality"
	ServeCmd.PersistentFlags().Int(key, compression.DefaultJPEGQuality, cmdUtil.WrapString("The quality (1-100) of JPEG compressed color channels"))

	key = "disable-compression"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Always send frame channels uncompressed"))

	key = "max-handle"
	ServeCmd.PersistentFlags().Uint64(key, 0, cmdUtil.WrapString("The largest object handle a client may register (0 selects the default of 16777216)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	serveCmdConfig.Library = viper.GetString("library")
	serveCmdConfig.Transport = cmdUtil.GetTransportConfig()
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.JPEGQuality = viper.GetInt("jpeg-quality")
	serveCmdConfig.DisableCompression = viper.GetBool("disable-compression")
	serveCmdConfig.MaxObjectHandle = viper.GetUint64("max-handle")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Verbose = viper.GetBool("verbose")

	if q := serveCmdConfig.JPEGQuality; q < 1 || q > 100 {
		return fmt.Errorf("invalid jpeg quality %d (expected 1-100)", q)
	}

	// the endpoint flag overrides host and port
	if serveCmdConfig.Transport.Endpoint == "" {
		switch serveCmdConfig.Transport.Type {
		case "unix":
			serveCmdConfig.Transport.Endpoint = DefaultSocketPath
		default:
			serveCmdConfig.Transport.Endpoint = cmdUtil.JoinHostPort(viper.GetString("host"), viper.GetInt("port"))
		}
	}

	return common.InitLoggers(serveCmdConfig.EffectiveLogLevel())
}

// run starts the render server and blocks until it fails or a signal arrives
func run(_ *cobra.Command, _ []string) error {
	t, err := cmdUtil.GetServerTransport(serveCmdConfig.Transport.Type)
	if err != nil {
		return err
	}

	serv, err := server.NewRPCServer(*serveCmdConfig, t)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serv.Serve(ctx)
}
