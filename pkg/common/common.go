package common

import (
	"encoding/json"
	"time"
)

// Profile is the payload returned by the enrichment provider for one person.
// Only the identity fields are read by this core; everything else is carried
// opaquely in Raw and stored on the node as serialized data.
type Profile struct {
	ProfileURL       string `json:"profile_url"`
	PublicIdentifier string `json:"public_identifier"`
	ProfileID        int64  `json:"profile_id"`
	FullName         string `json:"full_name"`

	// Raw holds the full provider payload. Last write wins at whole-payload
	// granularity: a re-ingested partial payload fully replaces the prior one.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// Person is a node in the persisted graph, keyed by its canonical key.
// Score is the normalized 0-100 clout score; RawRank is the unnormalized
// rank value from the last scorer run. The two live on different scales
// and are never conflated.
type Person struct {
	Key         string          `json:"key"`
	DisplayName string          `json:"display_name"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Score       int             `json:"score"`
	RawRank     float64         `json:"raw_rank"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Edge is a directed CONNECTED_TO relationship between two canonical keys.
// At most one edge per ordered (From, To) pair is meaningful for scoring;
// re-ingestion reinforces the existing edge instead of duplicating it.
type Edge struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Source    string    `json:"source,omitempty"`
	Weight    float64   `json:"weight,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
}

// Connection is one entry in an ingestion batch: a raw identifier as
// harvested, optionally already resolved to a profile payload. When Profile
// is nil the orchestrator asks the enrichment collaborator for it.
type Connection struct {
	RawID   string   `json:"raw_id"`
	Profile *Profile `json:"profile,omitempty"`
}

// IngestBatch is one ingestion request: an uploader and the connections
// harvested from their network. Batches are ephemeral; they are consumed
// fully and never persisted as their own entity.
type IngestBatch struct {
	UploaderRawID   string       `json:"uploader_raw_id"`
	UploaderProfile *Profile     `json:"uploader_profile,omitempty"`
	Connections     []Connection `json:"connections"`
}

// ConnectionFailure itemizes one connection that could not be processed.
type ConnectionFailure struct {
	RawID string `json:"raw_id"`
	Error string `json:"error"`
}

// BatchReport is the structured outcome of one ingestion batch. A batch is
// never atomic: the report distinguishes full success, partial success with
// itemized failures, and total failure.
type BatchReport struct {
	UploaderKey string              `json:"uploader_key"`
	Succeeded   []string            `json:"succeeded"`
	Failed      []ConnectionFailure `json:"failed"`
	// Unstable lists canonical keys that were synthesized because the payload
	// carried no stable identity; those nodes can never be deduplicated.
	Unstable       []string `json:"unstable,omitempty"`
	SucceededCount int      `json:"succeeded_count"`
	FailedCount    int      `json:"failed_count"`
}
