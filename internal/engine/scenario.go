package engine

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tdewey/xhrsim/internal/model"
	"github.com/tdewey/xhrsim/internal/transport"
	"github.com/tdewey/xhrsim/internal/xhr"
)

// Scenario defaults. The timing values only shape the simulated
// transfer; the event order they produce is fully deterministic.
const (
	defaultProgressTicks = 2
	defaultTickInterval  = 2 * time.Millisecond
	defaultTimeout       = 25 * time.Millisecond

	// abortStall keeps the scripted response far enough out that an
	// immediate Abort always wins the race.
	abortStall = 300 * time.Millisecond

	// stallMultiple sizes the timeout scenario's stall relative to the
	// deadline.
	stallMultiple = 20
)

// Scenario is a fully resolved description of one lifecycle execution.
type Scenario struct {
	Mode          string
	Registration  string
	Profile       xhr.Profile
	Outcome       string
	ProgressTicks int
	StatusCode    int
	Timeout       time.Duration
	TickInterval  time.Duration
}

// Result summarizes a finished scenario.
type Result struct {
	// Terminal is the terminal event that fired; empty when Send was
	// rejected before any transfer began.
	Terminal xhr.EventType
	// Status is the final HTTP status of the request.
	Status int
	// Rejected holds the invalid-state error for scenarios whose point
	// is the synchronous rejection path.
	Rejected error
}

// ScenarioFromRun resolves a run record into a Scenario, applying
// defaults and validating the enumerations.
func ScenarioFromRun(r *model.Run) (Scenario, error) {
	sc := Scenario{
		Mode:          r.Mode,
		Registration:  r.Registration,
		Outcome:       r.Outcome,
		ProgressTicks: defaultProgressTicks,
		TickInterval:  defaultTickInterval,
	}

	if sc.Mode == "" {
		sc.Mode = model.ModeAsync
	}
	if sc.Registration == "" {
		sc.Registration = model.RegistrationListener
	}
	if sc.Outcome == "" {
		sc.Outcome = model.OutcomeSuccess
	}
	if !model.ValidMode(sc.Mode) {
		return Scenario{}, fmt.Errorf("unknown mode %q", r.Mode)
	}
	if !model.ValidRegistration(sc.Registration) {
		return Scenario{}, fmt.Errorf("unknown registration style %q", r.Registration)
	}
	if !model.ValidOutcome(sc.Outcome) {
		return Scenario{}, fmt.Errorf("unknown outcome kind %q", r.Outcome)
	}

	profile, err := xhr.ParseProfile(r.Profile)
	if err != nil {
		return Scenario{}, err
	}
	sc.Profile = profile

	sc.StatusCode = http.StatusOK
	if sc.Outcome == model.OutcomeServerError {
		sc.StatusCode = http.StatusInternalServerError
	}
	if r.StatusCode != nil {
		sc.StatusCode = *r.StatusCode
	}
	if r.ProgressTicks != nil && *r.ProgressTicks >= 0 {
		sc.ProgressTicks = *r.ProgressTicks
	}

	switch sc.Outcome {
	case model.OutcomeTimeout:
		sc.Timeout = defaultTimeout
	case model.OutcomeSyncTimeout:
		// The whole point is a timeout on a synchronous request.
		sc.Mode = model.ModeSync
		sc.Timeout = defaultTimeout
	}
	if r.TimeoutMS != nil && *r.TimeoutMS > 0 {
		sc.Timeout = time.Duration(*r.TimeoutMS) * time.Millisecond
	}

	return sc, nil
}

// target is the fixture address the scenario's script registers under.
func (sc Scenario) target() string {
	return "/sim/" + sc.Outcome
}

// script builds the simulated server behavior for the scenario.
func (sc Scenario) script() transport.Script {
	switch sc.Outcome {
	case model.OutcomeNetworkError:
		return transport.Script{Fail: true, TickInterval: sc.TickInterval}
	case model.OutcomeTimeout:
		return transport.Script{
			Status:       sc.StatusCode,
			Stall:        sc.Timeout * stallMultiple,
			TickInterval: sc.TickInterval,
		}
	case model.OutcomeAbort:
		return transport.Script{
			Status:       sc.StatusCode,
			Stall:        abortStall,
			TickInterval: sc.TickInterval,
		}
	default:
		return transport.Script{
			Status:        sc.StatusCode,
			ProgressTicks: sc.ProgressTicks,
			TickInterval:  sc.TickInterval,
		}
	}
}

// Run executes the scenario against a scripted transport, invoking
// observe for every event the request fires, in dispatch order.
func (sc Scenario) Run(logger *slog.Logger, observe func(xhr.Event)) (Result, error) {
	tr := transport.NewScripted()
	target := sc.target()
	tr.Handle(target, sc.script())

	req := xhr.New(tr, xhr.Options{Profile: sc.Profile, Logger: logger})

	var res Result
	done := make(chan struct{}, 1)
	record := func(ev xhr.Event) {
		observe(ev)
		if ev.Type.Terminal() {
			res.Terminal = ev.Type
		}
		if ev.Type == xhr.EventLoadEnd {
			done <- struct{}{}
		}
	}

	for _, et := range xhr.EventTypes() {
		if sc.Registration == model.RegistrationKeyword {
			req.SetHandler(et, record)
		} else {
			req.AddEventListener(et, xhr.NewListener(record))
		}
	}

	req.Open(http.MethodGet, target, sc.Mode == model.ModeAsync)
	if sc.Timeout > 0 {
		if err := req.SetTimeout(sc.Timeout); err != nil {
			return Result{}, fmt.Errorf("set timeout: %w", err)
		}
	}

	if err := req.Send(nil); err != nil {
		res.Rejected = err
		return res, nil
	}
	if sc.Outcome == model.OutcomeAbort {
		req.Abort()
	}

	select {
	case <-done:
	case <-time.After(runDeadline):
		return Result{}, fmt.Errorf("scenario %s/%s did not finish within %v", sc.Mode, sc.Outcome, runDeadline)
	}

	res.Status = req.Status()
	return res, nil
}
