package judgment

// Role identifies one member of the ensemble.
type Role string

const (
	RoleProposer Role = "proposer"
	RoleRebuttal Role = "rebuttal"
	RoleArbiter  Role = "arbiter"
)

type claim struct {
	Regulation string   `json:"regulation"`
	Why        string   `json:"why"`
	Citations  []string `json:"citations"`
}

type proposal struct {
	Signals   []string `json:"signals"`
	Claims    []claim  `json:"claims"`
	Citations []string `json:"citations"`
}

type rebuttal struct {
	CounterPoints  []string `json:"counter_points"`
	MissingSignals []string `json:"missing_signals"`
	Citations      []string `json:"citations"`
}

type ruling struct {
	Signals    []string `json:"signals"`
	Notes      string   `json:"notes"`
	Confidence *float64 `json:"confidence"`
}
