package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/gopacket"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	ethercap "github.com/packetcap/go-ethercap"
	"github.com/packetcap/go-ethercap/ethernet"
	"github.com/packetcap/go-ethercap/format"
	"github.com/packetcap/go-ethercap/internal/config"
	logging "github.com/packetcap/go-ethercap/internal/log"
	"github.com/packetcap/go-ethercap/pcapfile"
)

// savefiles advertise the largest frame any bpf buffer can hold
const snaplen = 262144

var (
	configFile string
	debug      bool
)

func main() {
	os.Exit(execute())
}

// execute runs the root command and returns the process exit status.
func execute() int {
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

var rootCmd = &cobra.Command{
	Use:   "ethercap",
	Short: "Capture Ethernet frames from a BSD packet filter device and print them",
	Long: `Capture Ethernet frames from the given interface through a /dev/bpf device,
print a summary of each frame and optionally save them to a pcap file.
Stop with Ctrl-C; the capture ends once the read in progress returns.
A second Ctrl-C quits at once.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		v := config.New()
		if err := config.BindFlags(v, cmd.Flags()); err != nil {
			log.Fatal(err)
		}
		cfg, err := config.Load(v, configFile)
		if err != nil {
			log.Fatal(err)
		}
		if debug {
			cfg.Log.Level = "debug"
		}
		closer, err := logging.Init(log.StandardLogger(), cfg.Log)
		if err != nil {
			log.Fatal(err)
		}

		ctx, stop := signalContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		err = capture(ctx, cfg, cmd.OutOrStdout())
		stop()
		if err != nil {
			log.Fatal(err)
		}
		_ = closer.Close()
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "optional YAML configuration file")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "print lots of debugging messages, same as --log-level=debug")
	rootCmd.Flags().StringP("interface", "i", "", "interface from which to capture, required")
	rootCmd.Flags().StringP("output", "o", "", "also save captured frames to this pcap file")
	rootCmd.Flags().String("device-path", ethercap.DefaultDevicePath, "pattern of the packet filter device nodes, with one %d")
	rootCmd.Flags().Int("max-devices", ethercap.DefaultMaxDevices, "number of device nodes to try before giving up")
	rootCmd.Flags().Bool("promiscuous", false, "put the interface in promiscuous mode")
	rootCmd.Flags().BoolP("quiet", "q", false, "do not print frames, only save and count them")
	rootCmd.Flags().Int("payload-bytes", 64, "payload bytes to hex dump per frame, 0 for all")
	rootCmd.Flags().String("log-level", "info", "log level: trace, debug, info, warn, error")
	rootCmd.Flags().String("log-file", "", "also write logs to this file, rotated by size")
}

// notifyContext is replaced in tests.
var notifyContext = signal.NotifyContext

// signalContext is cancelled by the first of sigs. The registration is then
// dropped, so a second signal gets the default behaviour and ends the process
// even while a read is still blocked on an idle interface.
func signalContext(parent context.Context, sigs ...os.Signal) (context.Context, context.CancelFunc) {
	ctx, stop := notifyContext(parent, sigs...)
	release := context.AfterFunc(ctx, func() {
		stop()
		log.Info("stopping, waiting for the current read to return; interrupt again to quit now")
	})
	return ctx, func() {
		release()
		stop()
	}
}

// capture runs one loop until ctx is cancelled and reports what it saw.
func capture(ctx context.Context, cfg *config.Config, out io.Writer) error {
	var savefile *pcapfile.Writer
	if cfg.Output != "" {
		w, err := pcapfile.Create(cfg.Output, snaplen)
		if err != nil {
			return err
		}
		defer func() {
			if err := w.Close(); err != nil {
				log.WithError(err).Errorf("failed to close %s", cfg.Output)
			}
		}()
		savefile = w
		log.Infof("saving frames to %s", cfg.Output)
	}

	printer := format.NewPrinter(out)
	printer.MaxPayload = cfg.Dump.PayloadBytes

	onFrame := func(f *ethernet.Frame, ci gopacket.CaptureInfo) {
		if !cfg.Quiet {
			if err := printer.Print(f, ci); err != nil {
				log.WithError(err).Warn("failed to print frame")
			}
		}
		if savefile != nil {
			if err := savefile.WritePacket(ci, f.Raw); err != nil {
				log.WithError(err).Warn("failed to save frame")
			}
		}
	}
	onError := func(err error, raw []byte) {
		if errors.Is(err, ethercap.ErrCorruptBatch) {
			log.WithError(err).WithField("dropped", len(raw)).Warn("abandoned the rest of a batch")
			return
		}
		log.WithError(err).WithField("bytes", len(raw)).Debug("skipped record")
	}

	loop := ethercap.NewLoop(cfg.Capture())
	log.WithField("iface", cfg.Interface).Info("capturing")
	err := loop.Run(ctx, onFrame, onError)
	stats := loop.Stats()
	log.WithFields(log.Fields{
		"batches":         stats.Batches,
		"records":         stats.Records,
		"frames":          stats.Frames,
		"decode_errors":   stats.DecodeErrors,
		"corrupt_batches": stats.CorruptBatches,
	}).Info("capture finished")
	return err
}
