// Package identity derives canonical node keys from heterogeneous profile
// payloads so the same real-world person always maps to the same graph node.
package identity

import (
	"fmt"
	"regexp"
	"strings"

	"cloutgraph/pkg/common"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Source records which payload field produced a canonical key.
type Source string

const (
	SourceProfileURL  Source = "profile_url"
	SourcePublicID    Source = "public_identifier"
	SourceNumericID   Source = "numeric_id"
	SourceSynthesized Source = "synthesized"
)

// Resolution is the outcome of resolving one profile payload.
type Resolution struct {
	Key    string
	Source Source
}

// Stable reports whether the key can deduplicate future ingestions of the
// same person.
func (r Resolution) Stable() bool {
	return r.Source != SourceSynthesized
}

// The profile slug sits between the /in/ path prefix and the next slash,
// query, fragment or end of string. The segment must be non-empty.
var profileURLPattern = regexp.MustCompile(`(?i)/in/([^/?#]+)(?:[/?#]|$)`)

// Resolve derives a canonical key from a profile payload. Resolution order:
// profile URL segment, public identifier, provider numeric id. Keys are
// lower-cased because the URL segment is case-insensitive in the source
// system. When no identity field is present a random key is synthesized and
// common.ErrNoStableIdentity is returned alongside it; the caller decides
// whether to proceed with a node that can never be deduplicated.
func Resolve(p common.Profile) (Resolution, error) {
	if slug := slugFromURL(p.ProfileURL); slug != "" {
		return Resolution{Key: slug, Source: SourceProfileURL}, nil
	}

	if id := strings.TrimSpace(p.PublicIdentifier); id != "" {
		return Resolution{Key: strings.ToLower(id), Source: SourcePublicID}, nil
	}

	if p.ProfileID != 0 {
		return Resolution{Key: fmt.Sprintf("li:%d", p.ProfileID), Source: SourceNumericID}, nil
	}

	key, err := gonanoid.New()
	if err != nil {
		return Resolution{}, fmt.Errorf("failed to synthesize key: %w", err)
	}
	res := Resolution{Key: strings.ToLower(key), Source: SourceSynthesized}
	return res, common.ErrNoStableIdentity
}

func slugFromURL(url string) string {
	m := profileURLPattern.FindStringSubmatch(strings.TrimSpace(url))
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}
