package model

// Shared DTOs exchanged between the UI layer, the HTTP server and the engine.
// ghodss/yaml round-trips through json, so json tags cover both encodings.

// Geometry of the cylindrical furnace, meters.
type Geometry struct {
	Height float64 `json:"height"`
	Radius float64 `json:"radius"`
}

// MeshSpec selects a named preset or an explicit resolution. When Preset is
// empty, NR/NZ are used as given.
type MeshSpec struct {
	Preset string `json:"preset,omitempty"`
	NR     int    `json:"nr,omitempty"`
	NZ     int    `json:"nz,omitempty"`
}

// Position of a torch in absolute meters.
type Position struct {
	R float64 `json:"r"`
	Z float64 `json:"z"`
}

// Torch as submitted by the caller. Power in kW, Sigma in meters.
type Torch struct {
	Position   Position `json:"position"`
	PowerKW    float64  `json:"power"`
	Efficiency float64  `json:"efficiency"`
	Sigma      float64  `json:"sigma"`
}

type MaterialRef struct {
	Name string `json:"name"`
}

// SolverSpec holds the run controls. Times in seconds.
type SolverSpec struct {
	TotalTime      float64 `json:"total_time"`
	CFLFactor      float64 `json:"cfl_factor"`
	OutputInterval float64 `json:"output_interval"`
	MaxStep        float64 `json:"max_step,omitempty"` // optional dt ceiling hint
}

// Boundary temperatures in Kelvin.
type Boundary struct {
	InitialTemperature float64 `json:"initial_temperature"`
	AmbientTemperature float64 `json:"ambient_temperature"`
}

// SimulationConfig is the full description of one run. Validated once at
// submit time, never mutated afterwards.
type SimulationConfig struct {
	Geometry   Geometry    `json:"geometry"`
	Mesh       MeshSpec    `json:"mesh"`
	Torches    []Torch     `json:"torches"`
	Material   MaterialRef `json:"material"`
	Simulation SolverSpec  `json:"simulation"`
	Boundary   Boundary    `json:"boundary"`
}

// RunState is the engine state machine. Idle -> Running -> one of the three
// terminal states; there is no resumption.
type RunState string

const (
	StateIdle      RunState = "idle"
	StateRunning   RunState = "running"
	StateCompleted RunState = "completed"
	StateCancelled RunState = "cancelled"
	StateFailed    RunState = "failed"
)

// Terminal reports whether the state admits no further transitions.
func (s RunState) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// Progress as polled by the UI. EstimatedRemaining is wall-clock seconds.
type Progress struct {
	Percent            float64 `json:"percent"`
	CurrentTime        float64 `json:"current_time"`
	EstimatedRemaining float64 `json:"estimated_remaining"`
}

// Snapshot is one captured temperature field. Grid is row-major with the
// axial index as row and the radial index as column; values in Kelvin.
type Snapshot struct {
	Time float64     `json:"time"`
	Grid [][]float64 `json:"grid"`
}

// ResultMetadata describes how the snapshots were produced.
type ResultMetadata struct {
	Material       string   `json:"material"`
	Torches        []Torch  `json:"torches"`
	Geometry       Geometry `json:"geometry"`
	MinTemperature float64  `json:"min_temperature"`
	MaxTemperature float64  `json:"max_temperature"`
	NR             int      `json:"nr"`
	NZ             int      `json:"nz"`
	StepsCompleted int      `json:"steps_completed"`
}

// SimulationResult is the terminal output of a run. Snapshots are retained
// on failure and cancellation so the caller can inspect the partial series.
type SimulationResult struct {
	State     RunState       `json:"state"`
	Snapshots []Snapshot     `json:"snapshots"`
	Metadata  ResultMetadata `json:"metadata"`
	Failure   string         `json:"failure,omitempty"`
}

// Msg is the websocket frame exchanged with the UI.
type Msg struct {
	Type    string `json:"type"`
	RunID   string `json:"run_id,omitempty"`
	Content string `json:"content,omitempty"`
}
