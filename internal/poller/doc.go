// Package poller provides the polling engine behind every telemetry widget.
//
// This package is internal to the console. Each widget owns one [Task], an
// independently scheduled loop that either fetches on a timer (pull mode) or
// receives values from a shared upstream poll (push mode).
//
// The main components are:
//
//   - [Task]: generic polling loop with at most one fetch in flight
//   - [History]: bounded FIFO of derived values for time-series display
//   - [Clock]: ticker source, [SystemClock] in production and
//     [ManualClock] in tests
//   - [Update]: the view of a task handed to its [Sink]
//
// Tasks never propagate failures. A failed fetch moves the task into
// [StateError] and keeps the previous value for display; the next tick
// retries.
package poller
