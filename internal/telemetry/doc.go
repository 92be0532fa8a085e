// Package telemetry reads sensor values, latency probes, camera names and
// logs from the robot's HTTP API.
//
// [Client] implements [Fetcher], the interface every polling widget fetches
// through. Responses are capped at 1MB and each request carries its own
// timeout.
package telemetry
