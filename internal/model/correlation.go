package model

// SignalCoOccurrence marks two tools that both found results for the same target.
const SignalCoOccurrence = "co_occurrence"

// Correlation is a coarse cross-tool signal. It says the pair is worth
// cross-referencing manually, not that the findings describe the same identity.
type Correlation struct {
	ToolA       string `json:"toolA"`
	ToolB       string `json:"toolB"`
	Signal      string `json:"signal"`
	CountA      int    `json:"countA"`
	CountB      int    `json:"countB"`
	Description string `json:"description"`
}
