package probe

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dRender/cmd/util"
	"github.com/ValentinKolb/dRender/lib/engine"
	"github.com/ValentinKolb/dRender/lib/registry"
	"github.com/ValentinKolb/dRender/rpc/client"
	"github.com/ValentinKolb/dRender/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	rpcClient *client.Client
	device    registry.Handle

	// ProbeCommands connects to a server and inspects its library
	ProbeCommands = &cobra.Command{
		Use:                "probe",
		Short:              "Inspect a running render server",
		Long:               `Connect to a render server, create a device and print the negotiated compression and the object subtypes the library supports.`,
		PersistentPreRunE:  setupClient,
		PersistentPostRunE: closeClient,
		RunE:               runInfo,
	}
)

// objectTypes are the creatable object types listed by probe
var objectTypes = []engine.DataType{
	engine.TypeCamera, engine.TypeFrame, engine.TypeGeometry, engine.TypeGroup, engine.TypeInstance,
	engine.TypeLight, engine.TypeMaterial, engine.TypeRenderer, engine.TypeSurface, engine.TypeSampler,
	engine.TypeSpatialField, engine.TypeVolume, engine.TypeWorld,
}

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	util.SetupTransportFlags(ProbeCommands, fmt.Sprintf("localhost:%d", common.DefaultPort))

	key := "timeout"
	ProbeCommands.PersistentFlags().Int64(key, 10, util.WrapString("The time in seconds to wait for a reply"))

	key = "device-type"
	ProbeCommands.PersistentFlags().String(key, "default", util.WrapString("The device type to create"))

	key = "disable-compression"
	ProbeCommands.PersistentFlags().Bool(key, false, util.WrapString("Announce no codec support, frames are sent raw"))

	// Add subcommands
	ProbeCommands.AddCommand(perfTestCmd)
}

// GetClientConfig reads the client configuration from viper
func GetClientConfig() common.ClientConfig {
	return common.ClientConfig{
		Transport:          util.GetTransportConfig(),
		TimeoutSecond:      viper.GetInt64("timeout"),
		DisableCompression: viper.GetBool("disable-compression"),
	}
}

// setupClient connects and creates the device all subcommands work on
func setupClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	if err := common.InitLoggers("warn"); err != nil {
		return err
	}

	t, err := util.GetClientTransport(viper.GetString("transport"))
	if err != nil {
		return err
	}

	if rpcClient, err = client.NewClient(GetClientConfig(), t); err != nil {
		return err
	}

	if device, err = rpcClient.NewDevice(viper.GetString("device-type")); err != nil {
		_ = rpcClient.Close()
		return fmt.Errorf("creating device: %w", err)
	}
	return nil
}

func closeClient(_ *cobra.Command, _ []string) error {
	if rpcClient == nil {
		return nil
	}
	return rpcClient.Close()
}

func runInfo(_ *cobra.Command, _ []string) error {
	config := GetClientConfig()
	fmt.Println(config.String())

	fmt.Printf("Device:               %d (%s)\n", device, viper.GetString("device-type"))
	fmt.Printf("Server compression:   %s\n", rpcClient.ServerFeatures())

	if v, ok, err := rpcClient.GetProperty(device, device, "version", engine.TypeInt32, engine.Wait); err != nil {
		return err
	} else if ok {
		fmt.Printf("Device version:       %d\n", int32(binary.LittleEndian.Uint32(v)))
	}

	if ext, ok, err := rpcClient.GetStringListProperty(device, device, "extension", engine.Wait); err != nil {
		return err
	} else if ok {
		fmt.Printf("Extensions:           %v\n", ext)
	}

	fmt.Println()
	fmt.Println("Subtypes:")
	for _, t := range objectTypes {
		subtypes, err := rpcClient.GetObjectSubtypes(device, t)
		if err != nil {
			return fmt.Errorf("listing %s subtypes: %w", t, err)
		}
		fmt.Printf("  %-22s: %v\n", t, subtypes)
	}
	return nil
}
