// Package command turns key edges into robot commands.
//
// A [Dispatcher] owns a set of [Binding]s. Each binding names an action,
// the keys that trigger it, and the effects to run on press and (for
// holdable actions) release. Commands are delivered through a [Transport]:
// [HTTPTransport] talks to the robot's REST API directly, [MQTTTransport]
// publishes to a broker for a robot-side bridge.
//
// Drive actions scale by the shared [SpeedScale], which moves between
// [MinSpeed] and [MaxSpeed] in single steps.
package command
