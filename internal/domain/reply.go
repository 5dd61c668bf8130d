package domain

// Provenance identifies which strategy produced a reply.
type Provenance string

const (
	ProvenanceAPI       Provenance = "api"
	ProvenanceAssistant Provenance = "assistant"
	ProvenanceCanned    Provenance = "canned"
)

// ReplyCandidate is a reply string plus where it came from. Exactly one is
// chosen per conversation turn and it is never persisted.
type ReplyCandidate struct {
	Text   string
	Source Provenance
}

// Query is the input to the reply source chain.
type Query struct {
	Text     string
	ImageURL string // optional
}
