// Command lockstepdemo is a runnable, two-peer demonstration of the
// rollback controller: a top-down arena of colliding players, driven
// either by an in-process loopback pair (no flags) or by a real TCP
// connection to a second instance (--listen / --connect), rendered
// through a raylib window in the style of a retro console emulator's UI.
package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type opts struct {
	listenAddr string
	connectTo  string
	peerID     string
	remoteID   string
	seed       uint32
	scale      int
	verbose    bool
	showFPS    bool

	maxRollback  int
	inputDelay   int
	maxPredict   int
	syncInterval int
	frameRate    int
}

func main() {
	o := &opts{}

	root := &cobra.Command{
		Use:   "lockstepdemo",
		Short: "Rollback netcode demo arena",
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.peerID == "" {
				o.peerID = uuid.NewString()
			}

			return run(o)
		},
	}

	flags := root.Flags()
	flags.StringVar(&o.listenAddr, "listen", "", "listen address for an inbound peer connection (host mode)")
	flags.StringVar(&o.connectTo, "connect", "", "address of a peer to dial (join mode)")
	flags.StringVar(&o.peerID, "peer", "", "this session's peer id (defaults to a random uuid)")
	flags.StringVar(&o.remoteID, "remote-peer", "", "the remote peer's id, required with --listen/--connect")
	flags.Uint32Var(&o.seed, "seed", 42, "deterministic PRNG seed, must match on both sides")
	flags.IntVar(&o.scale, "scale", 1, "window pixel scale")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "verbose logging")
	flags.BoolVar(&o.showFPS, "fps", true, "show the fps/ping overlay")
	flags.IntVar(&o.maxRollback, "max-rollback", 8, "max frames the controller will ever resimulate")
	flags.IntVar(&o.inputDelay, "input-delay", 2, "frames of local input delay")
	flags.IntVar(&o.maxPredict, "max-prediction", 8, "max frames ahead of the current frame a received input may be and still be applied")
	flags.IntVar(&o.syncInterval, "sync-interval", 60, "frames between desync-detection checksum broadcasts, 0 disables")
	flags.IntVar(&o.frameRate, "frame-rate", 60, "simulation tick rate")

	if err := root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func configureLogging(verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)

	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	return log
}
