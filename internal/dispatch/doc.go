// Package dispatch transmits command frames to scan unit controllers.
//
// A Request is an ordered list of entries, each naming a source adapter, a
// destination controller, an interface, a command byte and how many times to
// send it. The Engine encodes each entry with the protocol package and hands
// the payload to a Transmitter (the raw socket sender in production).
//
//	┌───────────────────────────────────────────────────────┐
//	│                  Engine (engine.go)                   │
//	│  ┌──────────────────────────────────────────────┐     │
//	│  │  Run Pipeline                                │     │
//	│  │  1. Validate requests, reject if busy        │     │
//	│  │  2. Requests: sequential, or errgroup fan-out│     │
//	│  │  3. Entries: in order, delay between frames  │     │
//	│  │  4. Check cancellation at frame boundaries   │     │
//	│  │  5. Tally per-entry results into Outcome     │     │
//	│  │  6. onComplete(success, outcome, err)        │     │
//	│  └──────────────────────────────────────────────┘     │
//	└───────────────────────────────────────────────────────┘
//
// A failed frame marks its entry failed and skips that entry's remaining
// repetitions; the rest of the batch carries on unless Options.StopOnError
// is set. Partial delivery is a normal outcome, so transmission failures are
// reported in the Outcome tally rather than as the run's error.
//
// # Thread Safety
//
// Engine is safe for concurrent use. At most one run is active at a time.
//
// # Usage
//
//	engine := dispatch.NewEngine(sender, dispatch.Options{Parallel: true}, log)
//	run, err := engine.SendBatchAsync(ctx, requests,
//	    func(cur, total int) { ... },
//	    func(ok bool, out *dispatch.Outcome, err error) { ... },
//	)
//	// later: engine.Cancel()
package dispatch
