// Package risk implements the Risk Engine (spec §4.7): a weighted additive
// scorer over login-context signals, classified into four levels.
//
// Grounded on the teacher's role-weight map idiom (a flat map of named
// signals to float weights, summed and clamped) generalized from
// authorization weighting to login-risk weighting.
package risk

// Weights are the spec §4.7 default signal weights.
type Weights struct {
	NewIP             float64
	MissingDeviceFP   float64
	RecentFailureRate float64
}

// DefaultWeights matches spec §4.7's named defaults.
func DefaultWeights() Weights {
	return Weights{
		NewIP:             0.3,
		MissingDeviceFP:   0.2,
		RecentFailureRate: 0.4,
	}
}

// Level is the spec §4.7 four-bucket classification.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Context carries the signals the engine scores.
type Context struct {
	IPKnownToUser       bool
	DeviceFingerprint   string
	RecentFailureCount  int // failures within the evaluation window
}

// Signal is one scored contributor to the total, for the breakdown output.
type Signal struct {
	Name   string
	Weight float64
	Fired  bool
}

// Assessment is the spec §4.7 output: score, level, breakdown,
// recommendations.
type Assessment struct {
	Score           float64
	Level           Level
	Signals         []Signal
	Recommendations []string
}

// Engine computes risk assessments from a fixed weight table.
type Engine struct {
	weights Weights
}

func NewEngine(weights Weights) *Engine {
	return &Engine{weights: weights}
}

// Assess scores a login context, spec §4.7.
func (e *Engine) Assess(ctx Context) Assessment {
	signals := []Signal{
		{Name: "new_ip", Weight: e.weights.NewIP, Fired: !ctx.IPKnownToUser},
		{Name: "missing_device_fingerprint", Weight: e.weights.MissingDeviceFP, Fired: ctx.DeviceFingerprint == ""},
		{Name: "recent_failure_excess", Weight: e.weights.RecentFailureRate, Fired: ctx.RecentFailureCount > 3},
	}

	score := 0.0
	for _, s := range signals {
		if s.Fired {
			score += s.Weight
		}
	}
	if score > 1.0 {
		score = 1.0
	}

	level := classify(score)

	var recs []string
	switch level {
	case LevelMedium:
		recs = append(recs, "monitor session closely")
	case LevelHigh:
		recs = append(recs, "require MFA")
	case LevelCritical:
		recs = append(recs, "require MFA", "deny login")
	}

	return Assessment{Score: score, Level: level, Signals: signals, Recommendations: recs}
}

func classify(score float64) Level {
	switch {
	case score >= 0.8:
		return LevelCritical
	case score >= 0.6:
		return LevelHigh
	case score >= 0.3:
		return LevelMedium
	default:
		return LevelLow
	}
}
