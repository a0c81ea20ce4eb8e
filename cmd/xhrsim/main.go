// xhrsim runs a single transfer-lifecycle scenario and prints the event
// trace to stdout, one "type_readyState_status" line per event.
// Usage: go run ./cmd/xhrsim -outcome timeout -profile legacy-ie
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/tdewey/xhrsim/internal/engine"
	"github.com/tdewey/xhrsim/internal/model"
	"github.com/tdewey/xhrsim/internal/xhr"
)

func main() {
	mode := flag.String("mode", model.ModeAsync, "transfer mode: async or sync")
	registration := flag.String("register", model.RegistrationListener, "handler registration style: listener or keyword")
	profile := flag.String("profile", "", "quirk profile: default or legacy-ie")
	outcome := flag.String("outcome", model.OutcomeSuccess, "outcome kind: success, server-error, network-error, timeout, abort or sync-timeout")
	ticks := flag.Int("ticks", -1, "number of transport progress ticks (-1 for the default)")
	status := flag.Int("status", 0, "HTTP status code reported on completion (0 for the outcome's default)")
	timeoutMS := flag.Int("timeout", 0, "transfer deadline in milliseconds (0 for the outcome's default)")
	verbose := flag.Bool("v", false, "log internal warnings to stderr")
	flag.Parse()

	run := &model.Run{
		ID:           model.NewID(),
		Mode:         *mode,
		Registration: *registration,
		Profile:      *profile,
		Outcome:      *outcome,
		CreatedAt:    time.Now().UTC(),
	}
	if *ticks >= 0 {
		run.ProgressTicks = ticks
	}
	if *status > 0 {
		run.StatusCode = status
	}
	if *timeoutMS > 0 {
		run.TimeoutMS = timeoutMS
	}

	sc, err := engine.ScenarioFromRun(run)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if *verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	res, err := sc.Run(logger, func(ev xhr.Event) {
		fmt.Printf("%s_%d_%d\n", ev.Type, ev.ReadyState, ev.Status)
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
	if res.Rejected != nil {
		fmt.Fprintln(os.Stderr, "send rejected:", res.Rejected)
		os.Exit(1)
	}

	fmt.Printf("terminal=%s status=%d\n", res.Terminal, res.Status)
}
