package model

// Severity tiers for scored lines
type Severity string

const (
	SeverityNormal   Severity = "normal"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// Default tier boundaries on the robust Z-score
const (
	DefaultModerateZ = 2.5
	DefaultSevereZ   = 3.5
)

// Tiers holds the Z-score boundaries that separate severity levels
type Tiers struct {
	Moderate float64 `json:"moderate" yaml:"moderate"`
	Severe   float64 `json:"severe" yaml:"severe"`
}

// DefaultTiers returns the standard 2.5 / 3.5 boundaries
func DefaultTiers() Tiers {
	return Tiers{Moderate: DefaultModerateZ, Severe: DefaultSevereZ}
}

// Classify maps a Z-score onto a severity tier
func (t Tiers) Classify(z float64) Severity {
	switch {
	case z >= t.Severe:
		return SeveritySevere
	case z >= t.Moderate:
		return SeverityModerate
	default:
		return SeverityNormal
	}
}

// ScoredLine is the result of scoring a single input line
type ScoredLine struct {
	LineNo int     `json:"line_no"`
	Line   string  `json:"line"`
	NLL    float64 `json:"nll"`
	Z      float64 `json:"z"`
}

// ContributionKind tells unigram terms apart from bigram terms
type ContributionKind string

const (
	KindUnigram ContributionKind = "unigram"
	KindBigram  ContributionKind = "bigram"
)

// Contribution is a single -ln(p) term of a line's NLL
type Contribution struct {
	Label       string           `json:"label"`
	Kind        ContributionKind `json:"kind"`
	Probability float64          `json:"probability"`
	Value       float64          `json:"value"`
}

// Explanation is the full breakdown of a line's score
type Explanation struct {
	Line          string         `json:"line"`
	Tokens        []string       `json:"tokens"`
	NLL           float64        `json:"nll"`
	Z             float64        `json:"z"`
	Severity      Severity       `json:"severity"`
	Contributions []Contribution `json:"contributions"`
}
