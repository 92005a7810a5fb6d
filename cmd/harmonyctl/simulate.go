package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"harmony/internal/clock"
	"harmony/internal/harmony"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the pulse simulator headless and print bus events",
	Long: `Load an event, connect the simulated data plane and print every bus event
as one JSON envelope per line. By default simulated time runs on a virtual
clock and the command returns immediately; --realtime runs on the wall clock.

Examples:
  # Ten simulated seconds of the first event
  harmonyctl simulate --duration 10s

  # Only director commands, reproducible, on a poor network
  harmonyctl simulate --event event-001 --kind director.command --seed 7 --network poor`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

var (
	simEvent    string
	simDuration time.Duration
	simNetwork  string
	simSeed     int64
	simKinds    []string
	simRealtime bool
)

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().StringVar(&simEvent, "event", "", "event id (default is the first event)")
	simulateCmd.Flags().DurationVar(&simDuration, "duration", 10*time.Second, "simulated time to run after connecting")
	simulateCmd.Flags().StringVar(&simNetwork, "network", "good", "network condition: good or poor")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 0, "random seed (0 seeds from the clock)")
	simulateCmd.Flags().StringSliceVar(&simKinds, "kind", nil, "event kinds to print (default all)")
	simulateCmd.Flags().BoolVar(&simRealtime, "realtime", false, "run on the wall clock instead of a virtual clock")
}

// printer writes events as JSON lines; it stops at the first write error.
type printer struct {
	out io.Writer
	err error
}

func (p *printer) handle(e harmony.Event) {
	if p.err != nil {
		return
	}
	data, err := harmony.MarshalEvent(e)
	if err != nil {
		p.err = err
		return
	}
	if _, err := fmt.Fprintf(p.out, "%s\n", data); err != nil {
		p.err = err
	}
}

func parseKinds(names []string) ([]harmony.Kind, error) {
	if len(names) == 0 {
		return harmony.Kinds, nil
	}
	kinds := make([]harmony.Kind, 0, len(names))
	for _, n := range names {
		k := harmony.Kind(n)
		if !k.Valid() {
			return nil, fmt.Errorf("unknown event kind %q", n)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if simDuration <= 0 {
		return fmt.Errorf("duration must be positive")
	}
	kinds, err := parseKinds(simKinds)
	if err != nil {
		return err
	}
	network, err := harmony.ParseNetworkCondition(simNetwork)
	if err != nil {
		return err
	}
	repo, err := loadCatalog()
	if err != nil {
		return err
	}
	event, err := resolveEvent(repo, simEvent)
	if err != nil {
		return err
	}

	log := commandLogger(cmd)
	bus := harmony.NewBus(log, nil)
	p := &printer{out: cmd.OutOrStdout()}
	for _, k := range kinds {
		bus.Subscribe(k, p.handle)
	}
	seen := make(map[harmony.Kind]int)
	bus.SubscribeAll(func(e harmony.Event) { seen[e.Kind()]++ })

	cfg := harmony.Config{Seed: simSeed}
	start := func(sched clock.Scheduler) *harmony.Service {
		svc := harmony.NewService(bus, sched, cfg, log, nil)
		svc.SetNetworkCondition(network)
		svc.LoadEvent(string(event.ID), event.Feeds)
		svc.Connect()
		return svc
	}

	var counts map[harmony.Kind]int
	if simRealtime {
		loop := clock.NewLoop(0)
		var svc *harmony.Service
		loop.Do(func() { svc = start(loop) })

		select {
		case <-time.After(harmony.DefaultConnectDelay + simDuration):
		case <-cmd.Context().Done():
		}
		loop.Do(func() {
			svc.Disconnect()
			counts = seen
		})
		loop.Close()
	} else {
		v := clock.NewVirtual(time.Now().UTC())
		svc := start(v)
		v.Advance(harmony.DefaultConnectDelay + simDuration)
		svc.Disconnect()
		counts = seen
	}
	if p.err != nil {
		return p.err
	}

	errOut := cmd.ErrOrStderr()
	fmt.Fprintf(errOut, "simulated %s of %s:", simDuration, event.ID)
	for _, k := range harmony.Kinds {
		fmt.Fprintf(errOut, " %s=%d", k, counts[k])
	}
	fmt.Fprintln(errOut)
	return nil
}
