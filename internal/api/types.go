package api

// InfillRequest asks the server to resolve every mask marker in a query.
// Decoding knobs default to a single greedy beam.
type InfillRequest struct {
	Query       string `json:"query"`
	UseTaskMask bool   `json:"use_task_mask,omitempty"`

	Strategy          string  `json:"strategy,omitempty"`
	NumBeams          int     `json:"num_beams,omitempty"`
	LengthPenalty     float64 `json:"length_penalty,omitempty"`
	NoRepeatNgramSize int     `json:"no_repeat_ngram_size,omitempty"`
	MinTgtLength      int     `json:"min_tgt_length,omitempty"`
	Temperature       float64 `json:"temperature,omitempty"`
	TopK              int     `json:"top_k,omitempty"`
	Seed              int64   `json:"seed,omitempty"`
}

// InfillResponse carries the resolved candidates, best ranked first.
type InfillResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Query   string   `json:"query"`
	Outputs []string `json:"outputs"`
}

// ScoreRequest asks for conditional log-probabilities of each choice as a
// continuation of the query.
type ScoreRequest struct {
	Query            string   `json:"query"`
	Choices          []string `json:"choices"`
	UnifiedMultitask bool     `json:"unified_multitask,omitempty"`
}

// ScoreResponse reports per-choice scores and the best choice index. Ties
// resolve to the lowest index.
type ScoreResponse struct {
	ID      string    `json:"id"`
	Object  string    `json:"object"`
	Created int64     `json:"created"`
	Scores  []float64 `json:"scores"`
	Best    int       `json:"best"`
}

// ResponseError is the error payload wrapped under "error" in failures.
type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}
