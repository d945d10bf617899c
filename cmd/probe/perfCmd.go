package probe

import (
	"encoding/binary"
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dRender/cmd/util"
	"github.com/ValentinKolb/dRender/lib/engine"
	"github.com/ValentinKolb/dRender/lib/registry"
	"github.com/ValentinKolb/dRender/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for render servers",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfWidth   = 1920
	perfHeight  = 1080
	perfThreads = 4
	perfSkip    = make([]string, 0)

	// nextHandle is the next object handle used by the benchmarks
	nextHandle atomic.Uint64
)

const firstPerfHandle = 1 << 16

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. new-object,render)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 4, util.WrapString("Number of goroutines sending requests"))
	key = "width"
	perfTestCmd.Flags().Int(key, 1920, util.WrapString("Width of the rendered frames"))
	key = "height"
	perfTestCmd.Flags().Int(key, 1080, util.WrapString("Height of the rendered frames"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfWidth = viper.GetInt("width")
	perfHeight = viper.GetInt("height")
	perfThreads = viper.GetInt("threads")
	if s := viper.GetString("skip"); s != "" {
		perfSkip = strings.Split(s, ",")
	}

	if perfWidth <= 0 || perfHeight <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", perfWidth, perfHeight)
	}
	nextHandle.Store(firstPerfHandle)
	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for render servers")

	// Print configuration
	config := GetClientConfig()
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Threads: %d\n", perfThreads)
	fmt.Printf("Frame:   %dx%d\n", perfWidth, perfHeight)
	fmt.Println()

	fmt.Println("starting tests...")

	results := make(map[string]testing.BenchmarkResult)

	results["new-object"] = testing.Benchmark(func(b *testing.B) {
		if shouldSkip("new-object") {
			return
		}
		b.SetParallelism(perfThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				if err := rpcClient.NewObject(device, handle(), engine.TypeGeometry, "sphere"); err != nil {
					log.Printf("(new-object) - error creating object: %v\n", err)
				}
			}
		})
	})
	printResult("new-object", results["new-object"])

	results["set-param"] = testing.Benchmark(func(b *testing.B) {
		if shouldSkip("set-param") {
			return
		}
		obj := handle()
		if err := rpcClient.NewObject(device, obj, engine.TypeGeometry, "sphere"); err != nil {
			b.Fatalf("creating object: %v", err)
		}
		radius := binary.LittleEndian.AppendUint32(nil, math.Float32bits(0.5))

		b.SetParallelism(perfThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				if err := rpcClient.SetParam(device, obj, "radius", engine.TypeFloat32, radius); err != nil {
					log.Printf("(set-param) - error setting parameter: %v\n", err)
				}
			}
		})
	})
	printResult("set-param", results["set-param"])

	results["get-property"] = testing.Benchmark(func(b *testing.B) {
		if shouldSkip("get-property") {
			return
		}
		b.SetParallelism(perfThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				if _, _, err := rpcClient.GetProperty(device, device, "version", engine.TypeInt32, engine.Wait); err != nil {
					log.Printf("(get-property) - error reading property: %v\n", err)
				}
			}
		})
	})
	printResult("get-property", results["get-property"])

	var (
		latencies []time.Duration
		sizes     = NewSizeHistogram()
	)
	results["render"] = testing.Benchmark(func(b *testing.B) {
		if shouldSkip("render") {
			return
		}
		frame, err := newFrame()
		if err != nil {
			b.Fatalf("creating frame: %v", err)
		}
		// testing.Benchmark calls this function repeatedly with growing b.N
		latencies = latencies[:0]
		sizes = NewSizeHistogram()
		b.ResetTimer()

		// frames are rendered one after another, the server blocks until each is done
		for i := 0; i < b.N; i++ {
			start := time.Now()
			f, err := rpcClient.RenderFrame(device, frame)
			if err != nil {
				log.Printf("(render) - error rendering frame: %v\n", err)
				continue
			}
			latencies = append(latencies, time.Since(start))
			if f.Color != nil {
				sizes.Add(len(f.Color.Data))
			}
			if f.Depth != nil {
				sizes.Add(len(f.Depth.Data))
			}
		}
	})
	printResult("render", results["render"])
	if stats := NewFrameStats(latencies); stats.Frames > 0 {
		fmt.Printf("%-20slatency min %s, max %s, mean %s, stddev %s\n", "", stats.Min, stats.Max, stats.Mean, stats.StdDev)
	}
	if sizes.Count() > 0 {
		fmt.Printf("%-20schannel avg %s, p50 ~%s, p99 ~%s\n", "",
			common.FormatBytes(uint64(sizes.Average())),
			common.FormatBytes(uint64(sizes.Percentile(50))),
			common.FormatBytes(uint64(sizes.Percentile(99))))
	}

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, config); err != nil {
			return fmt.Errorf("error writing CSV: %w", err)
		}
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func handle() registry.Handle {
	return registry.Handle(nextHandle.Add(1))
}

// newFrame creates a committed frame with sRGB color and float depth channels
func newFrame() (registry.Handle, error) {
	frame := handle()
	if err := rpcClient.NewObject(device, frame, engine.TypeFrame, ""); err != nil {
		return 0, err
	}

	u32 := func(v ...uint32) []byte {
		b := make([]byte, 0, 4*len(v))
		for _, x := range v {
			b = binary.LittleEndian.AppendUint32(b, x)
		}
		return b
	}

	for _, p := range []struct {
		name  string
		typ   engine.DataType
		value []byte
	}{
		{"size", engine.TypeUint32Vec2, u32(uint32(perfWidth), uint32(perfHeight))},
		{engine.ChannelColor, engine.TypeDataType, u32(uint32(engine.TypeUfixed8RGBASRGB))},
		{engine.ChannelDepth, engine.TypeDataType, u32(uint32(engine.TypeFloat32))},
	} {
		if err := rpcClient.SetParam(device, frame, p.name, p.typ, p.value); err != nil {
			return 0, err
		}
	}
	return frame, rpcClient.CommitParams(device, frame)
}

func shouldSkip(test string) bool {
	return slices.Contains(perfSkip, test)
}

func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"test", "transport", "threads", "width", "height", "ns_per_op", "ops_per_sec"}); err != nil {
		return err
	}

	for _, test := range []string{"new-object", "set-param", "get-property", "render"} {
		result, ok := results[test]
		if !ok || result.NsPerOp() == 0 {
			continue
		}
		nsPerOp := math.Max(float64(result.NsPerOp()), 1)
		if err := writer.Write([]string{
			test,
			config.Transport.Type,
			strconv.Itoa(perfThreads),
			strconv.Itoa(perfWidth),
			strconv.Itoa(perfHeight),
			strconv.FormatFloat(nsPerOp, 'f', 0, 64),
			strconv.FormatFloat(1e9/nsPerOp, 'f', 2, 64),
		}); err != nil {
			return err
		}
	}
	return writer.Error()
}
