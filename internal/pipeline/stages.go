package pipeline

// Stage is a state of one artifact's pipeline.
type Stage string

const (
	StageReceived         Stage = "received"
	StageSignalsExtracted Stage = "signals_extracted"
	StageRetrieved        Stage = "retrieved"
	StageJudged           Stage = "judged"
	StageRuled            Stage = "ruled"
	StageReceipted        Stage = "receipted"
	StageDone             Stage = "done"
	StageFailed           Stage = "failed"
)

// Graph node names. Each node moves the artifact into the matching stage.
const (
	nodeExtract  = "extract"
	nodeRetrieve = "retrieve"
	nodeJudge    = "judge"
	nodeRule     = "rule"
	nodeReceipt  = "receipt"
)

// State bag keys.
const (
	KeyArtifact = "artifact"
	KeySignals  = "signals"
	KeyChunks   = "chunks"
	KeyJudgment = "judgment"
	KeyVerdict  = "verdict"
	KeyDecision = "decision"
	KeyReceipt  = "receipt"
)
