package orchestrator

// Phase identifies where startup currently stands. Phases advance strictly
// forward; failed is absorbing until Reinitialize.
type Phase string

const (
	PhaseIdle                 Phase = "idle"
	PhaseLoadingConfig        Phase = "loading-config"
	PhaseValidatingConfig     Phase = "validating-config"
	PhaseInitializingServices Phase = "initializing-services"
	PhaseTestingConnections   Phase = "testing-connections"
	PhaseFinalizing           Phase = "finalizing"
	PhaseReady                Phase = "ready"
	PhaseFailed               Phase = "failed"
)

// Terminal reports whether the phase ends a startup attempt.
func (p Phase) Terminal() bool {
	return p == PhaseReady || p == PhaseFailed
}
