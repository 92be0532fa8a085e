// Package mockrobot simulates a SIGHTS robot's HTTP API for local
// development and tests: it accepts drive, arm and power commands and
// serves synthetic telemetry that reacts to them.
package mockrobot

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"
)

// servo limits mirror a typical hobby servo
const (
	servoMin   = 0
	servoMax   = 180
	servoStep  = 5
	servoHome  = 90
	maxLogSize = 200
)

var servoNames = []string{"SHOULDER", "ELBOW", "WRISTUD", "WRISTLR", "CLAW"}

var presets = map[string]map[string]int{
	"drive": {"SHOULDER": 20, "ELBOW": 160, "WRISTUD": 90, "WRISTLR": 90, "CLAW": 0},
}

// Robot is the simulated robot state.
type Robot struct {
	logger  *slog.Logger
	latency time.Duration
	started time.Time

	mu       sync.Mutex
	left     int
	right    int
	servos   map[string]int
	cpu      float64
	logLines []string
	power    string
	commands int
}

// New returns a robot at rest with its arm homed. latency delays every
// response to mimic a wireless link.
func New(latency time.Duration, logger *slog.Logger) *Robot {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Robot{
		logger:  logger,
		latency: latency,
		started: time.Now(),
		servos:  make(map[string]int, len(servoNames)),
		cpu:     15,
	}
	r.homeLocked()
	r.logLocked("robot booted")
	return r
}

// Drive returns the current wheel speeds.
func (r *Robot) Drive() (left, right int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.left, r.right
}

// Servo returns a joint position.
func (r *Robot) Servo(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.servos[name]
}

// Power returns the last power action received, or "".
func (r *Robot) Power() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.power
}

// Commands returns how many commands were accepted.
func (r *Robot) Commands() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commands
}

// Handler returns the robot's HTTP API.
func (r *Robot) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/drive/{$}", r.handleDrive)
	mux.HandleFunc("POST /api/drive/stop", r.handleDriveStop)
	mux.HandleFunc("POST /api/arm/servo/{name}", r.handleServo)
	mux.HandleFunc("POST /api/arm/home", r.handleHome)
	mux.HandleFunc("POST /api/arm/preset/{preset}", r.handlePreset)
	mux.HandleFunc("POST /api/poweroff", r.handlePower("poweroff"))
	mux.HandleFunc("POST /api/reboot", r.handlePower("reboot"))

	mux.HandleFunc("GET /api/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/sensor/list/{$}", r.handleSensorList)
	mux.HandleFunc("GET /api/sensor/{id}", r.handleSensor)
	mux.HandleFunc("GET /api/camera/{$}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, []string{"front", "arm"})
	})
	mux.HandleFunc("GET /api/logs", r.handleLogs)

	if r.latency <= 0 {
		return mux
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		jitter := time.Duration(rand.Int63n(int64(r.latency)/2 + 1))
		time.Sleep(r.latency + jitter)
		mux.ServeHTTP(w, req)
	})
}

func (r *Robot) handleDrive(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Speed []int `json:"speed"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || len(body.Speed) != 2 {
		http.Error(w, "expected {\"speed\": [left, right]}", http.StatusBadRequest)
		return
	}

	r.mu.Lock()
	r.left, r.right = body.Speed[0], body.Speed[1]
	r.acceptLocked(fmt.Sprintf("drive %d %d", r.left, r.right))
	r.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (r *Robot) handleDriveStop(w http.ResponseWriter, _ *http.Request) {
	r.mu.Lock()
	r.left, r.right = 0, 0
	r.acceptLocked("drive stop")
	r.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (r *Robot) handleServo(w http.ResponseWriter, req *http.Request) {
	name := req.PathValue("name")
	var body struct {
		Direction *bool `json:"direction"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Direction == nil {
		http.Error(w, "expected {\"direction\": bool}", http.StatusBadRequest)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	pos, ok := r.servos[name]
	if !ok {
		http.Error(w, "unknown servo "+name, http.StatusNotFound)
		return
	}
	if *body.Direction {
		pos += servoStep
	} else {
		pos -= servoStep
	}
	r.servos[name] = max(servoMin, min(servoMax, pos))
	r.acceptLocked(fmt.Sprintf("servo %s -> %d", name, r.servos[name]))
	w.WriteHeader(http.StatusNoContent)
}

func (r *Robot) handleHome(w http.ResponseWriter, _ *http.Request) {
	r.mu.Lock()
	r.homeLocked()
	r.acceptLocked("arm home")
	r.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (r *Robot) handlePreset(w http.ResponseWriter, req *http.Request) {
	name := req.PathValue("preset")
	pose, ok := presets[name]
	if !ok {
		http.Error(w, "unknown preset "+name, http.StatusNotFound)
		return
	}

	r.mu.Lock()
	for servo, pos := range pose {
		r.servos[servo] = pos
	}
	r.acceptLocked("arm preset " + name)
	r.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (r *Robot) handlePower(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		r.mu.Lock()
		r.power = action
		r.left, r.right = 0, 0
		r.acceptLocked(action + " requested")
		r.mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}
}

func (r *Robot) handleSensorList(w http.ResponseWriter, _ *http.Request) {
	list := map[string]any{
		"system_info": map[string]any{"type": "system", "period": 1},
		"motors":      map[string]any{"type": "motor_current", "period": 1},
		"arm":         map[string]any{"type": "servo_positions", "period": 1},
	}
	for i := 1; i <= 3; i++ {
		list[fmt.Sprintf("battery_cell_%d", i)] = map[string]any{"type": "voltage", "period": 5}
	}
	writeJSON(w, list)
}

func (r *Robot) handleSensor(w http.ResponseWriter, req *http.Request) {
	reading, ok := r.reading(req.PathValue("id"))
	if !ok {
		http.Error(w, "unknown sensor", http.StatusNotFound)
		return
	}
	writeJSON(w, reading)
}

// reading synthesizes one sensor reading from the current state.
func (r *Robot) reading(id string) (map[string]any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case id == "system_info":
		// random walk, pulled up while driving
		load := float64(abs(r.left)+abs(r.right)) / 100
		r.cpu += rand.Float64()*6 - 3 + (10+load-r.cpu)*0.1
		r.cpu = math.Max(1, math.Min(100, r.cpu))
		return map[string]any{
			"cpu_percent":    math.Round(r.cpu*10) / 10,
			"memory":         41.5,
			"disk_usage":     63.2,
			"temperature":    math.Round((40+r.cpu/5)*10) / 10,
			"uptime_seconds": math.Floor(time.Since(r.started).Seconds()),
		}, true

	case id == "motors":
		return map[string]any{
			"left":  map[string]any{"speed": r.left, "current": motorCurrent(r.left)},
			"right": map[string]any{"speed": r.right, "current": motorCurrent(r.right)},
		}, true

	case id == "arm":
		out := make(map[string]any, len(r.servos))
		for k, v := range r.servos {
			out[strings.ToLower(k)] = v
		}
		return out, true

	case strings.HasPrefix(id, "battery_cell_"):
		var n int
		if _, err := fmt.Sscanf(id, "battery_cell_%d", &n); err != nil || n < 1 || n > 3 {
			return nil, false
		}
		drain := time.Since(r.started).Hours() * 0.05
		return map[string]any{"voltage": math.Round((4.15-drain-float64(n)*0.01)*100) / 100}, true
	}
	return nil, false
}

func (r *Robot) handleLogs(w http.ResponseWriter, _ *http.Request) {
	r.mu.Lock()
	text := strings.Join(r.logLines, "\n")
	r.mu.Unlock()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(text))
}

func (r *Robot) homeLocked() {
	for _, name := range servoNames {
		r.servos[name] = servoHome
	}
}

func (r *Robot) acceptLocked(msg string) {
	r.commands++
	r.logLocked(msg)
	r.logger.Info("command", "command", msg)
}

func (r *Robot) logLocked(msg string) {
	r.logLines = append(r.logLines, time.Now().Format("15:04:05")+" "+msg)
	if len(r.logLines) > maxLogSize {
		r.logLines = r.logLines[len(r.logLines)-maxLogSize:]
	}
}

func motorCurrent(speed int) float64 {
	return math.Round(float64(abs(speed))/1000*2.5*100) / 100
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
