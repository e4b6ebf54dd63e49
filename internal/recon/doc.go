// Package recon provides the TCP connect reconnaissance engine of reconengine.
//
// Given a user-supplied target, the engine validates and resolves it, builds
// the ordered list of ports to probe, opens one timed TCP connection per port
// in bounded concurrent batches, classifies each outcome from socket-level
// signals and returns a deterministic report.
//
// # Components
//
//   - Resolver: dotted-quad IPv4 literals are used as-is; hostnames go through
//     exactly one forward lookup (HostLookup, either the system resolver or a
//     direct A query with miekg/dns).
//   - BuildPortSet / QuickPortSet: the reference port table, a validated and
//     deduplicated custom list, or the fixed liveness subset.
//   - Prober: one connect attempt, no retries, classified as open, closed,
//     filtered or error.
//   - Scheduler: batches of Config.BatchSize probes joined with an errgroup
//     before the next batch is dispatched.
//   - Report / LivenessResult: results in requested order plus summary counts.
//
// # Usage
//
//	engine, err := recon.New(recon.DefaultConfig(), recon.WithMetrics(metrics.GetGlobalMetrics()))
//	if err != nil {
//		return err
//	}
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	report, err := engine.FullScan(ctx, "scanme.example.org", []int{443, 80, 22})
//	if err != nil {
//		return err // errors.ClassOf(err) tells input, resolution and cancellation apart
//	}
//
// # Cancellation
//
// The caller's context is checked before every batch and after every batch
// barrier. Probes share that context, so a cancellation also cuts in-flight
// connects short. A cancelled scan yields an error with code CANCELED and no
// partial report.
package recon
