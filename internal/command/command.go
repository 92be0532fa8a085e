package command

import (
	"context"
	"fmt"
	"strings"
)

// Kind identifies a command's control domain and action.
type Kind string

const (
	KindDrive     Kind = "drive"
	KindDriveStop Kind = "drive_stop"
	KindArmServo  Kind = "arm_servo"
	KindArmHome   Kind = "arm_home"
	KindArmPreset Kind = "arm_preset"
	KindPowerOff  Kind = "power_off"
	KindReboot    Kind = "reboot"
)

// Servo names an arm joint as the robot API spells it.
type Servo string

const (
	Shoulder Servo = "SHOULDER"
	Elbow    Servo = "ELBOW"
	WristUD  Servo = "WRISTUD"
	WristLR  Servo = "WRISTLR"
	Claw     Servo = "CLAW"
)

// Servos lists every arm joint.
var Servos = []Servo{Shoulder, Elbow, WristUD, WristLR, Claw}

// ParseServo accepts a servo name in any case.
func ParseServo(s string) (Servo, error) {
	upper := Servo(strings.ToUpper(strings.TrimSpace(s)))
	for _, v := range Servos {
		if v == upper {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown servo %q", s)
}

// MaxDriveSpeed bounds each wheel speed in a drive command.
const MaxDriveSpeed = 1000

// Command is one request to the robot. Only the fields relevant to Kind
// are set.
type Command struct {
	Kind      Kind
	Left      int
	Right     int
	Servo     Servo
	Direction bool
	Preset    string
}

// Drive returns a drive command with both speeds clamped to
// [-MaxDriveSpeed, MaxDriveSpeed].
func Drive(left, right int) Command {
	return Command{Kind: KindDrive, Left: clampSpeed(left), Right: clampSpeed(right)}
}

// DriveStop stops both wheels.
func DriveStop() Command { return Command{Kind: KindDriveStop} }

// MoveServo nudges one arm joint in the given direction.
func MoveServo(s Servo, direction bool) Command {
	return Command{Kind: KindArmServo, Servo: s, Direction: direction}
}

// HomeArm returns the arm to its home pose.
func HomeArm() Command { return Command{Kind: KindArmHome} }

// HomeArmToPreset moves the arm to a named preset pose.
func HomeArmToPreset(preset string) Command {
	return Command{Kind: KindArmPreset, Preset: preset}
}

// PowerOff shuts the robot down.
func PowerOff() Command { return Command{Kind: KindPowerOff} }

// Reboot restarts the robot.
func Reboot() Command { return Command{Kind: KindReboot} }

// Send issues the command through t.
func (c Command) Send(ctx context.Context, t Transport) error {
	switch c.Kind {
	case KindDrive:
		return t.Drive(ctx, c.Left, c.Right)
	case KindDriveStop:
		return t.DriveStop(ctx)
	case KindArmServo:
		return t.MoveArmServo(ctx, c.Servo, c.Direction)
	case KindArmHome:
		return t.HomeArm(ctx)
	case KindArmPreset:
		return t.HomeArmToPreset(ctx, c.Preset)
	case KindPowerOff:
		return t.PowerOff(ctx)
	case KindReboot:
		return t.Reboot(ctx)
	default:
		return fmt.Errorf("unknown command kind %q", c.Kind)
	}
}

func (c Command) String() string {
	switch c.Kind {
	case KindDrive:
		return fmt.Sprintf("drive(%d,%d)", c.Left, c.Right)
	case KindArmServo:
		return fmt.Sprintf("arm_servo(%s,%t)", c.Servo, c.Direction)
	case KindArmPreset:
		return fmt.Sprintf("arm_preset(%s)", c.Preset)
	default:
		return string(c.Kind)
	}
}

func clampSpeed(v int) int {
	switch {
	case v > MaxDriveSpeed:
		return MaxDriveSpeed
	case v < -MaxDriveSpeed:
		return -MaxDriveSpeed
	default:
		return v
	}
}
