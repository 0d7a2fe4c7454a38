package model

// TokenUsage is one cost-accounting record for LLM invocations.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	Requests         int `json:"requests"`
}

// Add accumulates another usage record into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
	u.Requests += other.Requests
}

// StageStatus tags the variant of a StageResult.
type StageStatus int

const (
	// StageValidated means the guardrail accepted the output.
	StageValidated StageStatus = iota
	// StageRejected means every attempt was rejected by the guardrail.
	StageRejected
	// StageFailed means the analysis capability itself failed (transport,
	// credentials) after its own retries.
	StageFailed
)

// StageResult is the outcome of one analysis stage. Exactly one of Payload,
// Reason, or Err is meaningful, selected by Status.
type StageResult struct {
	Stage    string
	Status   StageStatus
	Payload  string // validated raw output (JSON text)
	Reason   string // last guardrail rejection reason
	Err      error  // terminal capability error
	Attempts int
	Usage    TokenUsage
}

func Validated(stage, payload string, attempts int, usage TokenUsage) StageResult {
	return StageResult{Stage: stage, Status: StageValidated, Payload: payload, Attempts: attempts, Usage: usage}
}

func Rejected(stage, reason string, attempts int, usage TokenUsage) StageResult {
	return StageResult{Stage: stage, Status: StageRejected, Reason: reason, Attempts: attempts, Usage: usage}
}

func Failed(stage string, err error, attempts int, usage TokenUsage) StageResult {
	return StageResult{Stage: stage, Status: StageFailed, Err: err, Attempts: attempts, Usage: usage}
}
