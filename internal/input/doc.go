// Package input turns raw key reports into press and release edges.
//
// Sources ([EvdevSource], [GPIOSource], or any other [Source]) report raw
// key state, including auto-repeat. A [Tracker] filters those reports down
// to exactly one Pressed and one Released edge per physical transition of
// each registered key.
package input
