package command

// Action names used by DefaultBindings.
const (
	ActionDriveForward  = "drive-forward"
	ActionDriveLeft     = "drive-left"
	ActionDriveBackward = "drive-backward"
	ActionDriveRight    = "drive-right"
	ActionSpeedUp       = "speed-up"
	ActionSpeedDown     = "speed-down"
	ActionShoulderUp    = "shoulder-up"
	ActionShoulderDown  = "shoulder-down"
	ActionElbowUp       = "elbow-up"
	ActionElbowDown     = "elbow-down"
	ActionWristUp       = "wrist-up"
	ActionWristDown     = "wrist-down"
	ActionWristLeft     = "wrist-left"
	ActionWristRight    = "wrist-right"
	ActionClawOpen      = "claw-open"
	ActionClawClose     = "claw-close"
	ActionArmHome       = "arm-home"
	ActionArmHomeDrive  = "arm-home-drive"
)

// DrivePreset is the arm pose that tucks the arm away for driving.
const DrivePreset = "drive"

// DefaultBindings returns the standard keyboard layout. Drive actions read
// scale when pressed and stop the whole drive domain on release, so
// releasing any drive key stops the robot even if another is still held.
func DefaultBindings(scale *SpeedScale) []Binding {
	drive := func(action, desc string, l, r int, keys ...string) Binding {
		return Binding{
			Action:      action,
			Description: desc,
			Keys:        keys,
			Holdable:    true,
			OnStart: func() (Command, bool) {
				n := scale.Get()
				return Drive(l*n*DriveCoefficient, r*n*DriveCoefficient), true
			},
			OnStop: func() (Command, bool) { return DriveStop(), true },
		}
	}
	servo := func(action, desc string, s Servo, dir bool, key string) Binding {
		return Binding{
			Action:      action,
			Description: desc,
			Keys:        []string{key},
			OnStart:     func() (Command, bool) { return MoveServo(s, dir), true },
		}
	}

	return []Binding{
		drive(ActionDriveForward, "Drive forward", 1, 1, "KeyW", "ArrowUp"),
		drive(ActionDriveLeft, "Turn left", -1, 1, "KeyA", "ArrowLeft"),
		drive(ActionDriveBackward, "Drive backward", -1, -1, "KeyS", "ArrowDown"),
		drive(ActionDriveRight, "Turn right", 1, -1, "KeyD", "ArrowRight"),
		{
			Action:      ActionSpeedUp,
			Description: "Increase speed",
			Keys:        []string{"Equal"},
			OnStart:     func() (Command, bool) { scale.Increment(); return Command{}, false },
		},
		{
			Action:      ActionSpeedDown,
			Description: "Decrease speed",
			Keys:        []string{"Minus"},
			OnStart:     func() (Command, bool) { scale.Decrement(); return Command{}, false },
		},
		servo(ActionShoulderUp, "Shoulder up", Shoulder, true, "Numpad1"),
		servo(ActionShoulderDown, "Shoulder down", Shoulder, false, "Numpad4"),
		servo(ActionElbowUp, "Elbow up", Elbow, false, "Numpad2"),
		servo(ActionElbowDown, "Elbow down", Elbow, true, "Numpad5"),
		servo(ActionWristUp, "Wrist up", WristUD, false, "Numpad3"),
		servo(ActionWristDown, "Wrist down", WristUD, true, "Numpad6"),
		servo(ActionWristLeft, "Wrist left", WristLR, true, "Numpad7"),
		servo(ActionWristRight, "Wrist right", WristLR, false, "Numpad8"),
		servo(ActionClawOpen, "Open claw", Claw, true, "NumpadAdd"),
		servo(ActionClawClose, "Close claw", Claw, false, "NumpadSubtract"),
		{
			Action:      ActionArmHome,
			Description: "Home arm",
			Keys:        []string{"Numpad0"},
			OnStart:     func() (Command, bool) { return HomeArm(), true },
		},
		{
			Action:      ActionArmHomeDrive,
			Description: "Move arm to drive pose",
			Keys:        []string{"NumpadDecimal"},
			OnStart:     func() (Command, bool) { return HomeArmToPreset(DrivePreset), true },
		},
	}
}
