package risk_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ssocore/platform/internal/risk"
)

func TestAssess_KnownContextIsLowRisk(t *testing.T) {
	e := risk.NewEngine(risk.DefaultWeights())
	a := e.Assess(risk.Context{IPKnownToUser: true, DeviceFingerprint: "fp-1", RecentFailureCount: 0})
	assert.Equal(t, risk.LevelLow, a.Level)
	assert.Zero(t, a.Score)
}

func TestAssess_AllSignalsFireIsCritical(t *testing.T) {
	e := risk.NewEngine(risk.DefaultWeights())
	a := e.Assess(risk.Context{IPKnownToUser: false, DeviceFingerprint: "", RecentFailureCount: 10})
	assert.Equal(t, risk.LevelCritical, a.Level)
	assert.InDelta(t, 0.9, a.Score, 0.001)
	assert.Contains(t, a.Recommendations, "deny login")
}

func TestAssess_NewIPAloneIsMedium(t *testing.T) {
	e := risk.NewEngine(risk.DefaultWeights())
	a := e.Assess(risk.Context{IPKnownToUser: false, DeviceFingerprint: "fp-1", RecentFailureCount: 0})
	assert.Equal(t, risk.LevelMedium, a.Level)
}
