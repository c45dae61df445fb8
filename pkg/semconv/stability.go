package semconv

// Stability is the maturity a registry entry declares. Only StabilityStable
// counts as stable; every other declared level is a candidate for advice.
// An entry that declares nothing has no stability opinion at all.
type Stability string

const (
	StabilityStable           Stability = "stable"
	StabilityDevelopment      Stability = "development"
	StabilityAlpha            Stability = "alpha"
	StabilityBeta             Stability = "beta"
	StabilityReleaseCandidate Stability = "release_candidate"
	StabilityDeprecated       Stability = "deprecated"
)

func (s Stability) String() string { return string(s) }
