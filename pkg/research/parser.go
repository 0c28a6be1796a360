package research

import (
	"encoding/json"
	"regexp"
	"strings"
)

// RawCandidate is the wire shape one chunk query is expected to return
// (§4.5 step 1 schema).
type RawCandidate struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	SourceURL   string `json:"source_url"`
	Deadline    string `json:"deadline"`
	Funding     string `json:"funding"`
	Eligibility string `json:"eligibility"`
	SourceName  string `json:"source_name"`
}

// fencedJSON strips a ```json ... ``` or ``` ... ``` markdown fence, since
// LLMs asked for "only JSON" still occasionally wrap it.
var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\[.*\\])\\s*```")

// arrayBounds finds the first '[' through the last ']' in text, used by
// the tolerant fallback parse.
var arrayBounds = regexp.MustCompile(`(?s)\[.*\]`)

// ParseCandidates implements the §4.5 step 2 "strict JSON parse, with a
// tolerant regex-based fallback parse if strict parsing fails" contract.
// It returns the parsed candidates and whether the tolerant path was used;
// the Research Agent's runChunk discards that flag.
func ParseCandidates(raw string) ([]RawCandidate, bool, error) {
	trimmed := strings.TrimSpace(raw)

	var strict []RawCandidate
	if err := json.Unmarshal([]byte(trimmed), &strict); err == nil {
		return strict, false, nil
	}

	if m := fencedJSON.FindStringSubmatch(trimmed); m != nil {
		var fenced []RawCandidate
		if err := json.Unmarshal([]byte(m[1]), &fenced); err == nil {
			return fenced, true, nil
		}
	}

	if m := arrayBounds.FindString(trimmed); m != "" {
		var tolerant []RawCandidate
		if err := json.Unmarshal([]byte(m), &tolerant); err == nil {
			return tolerant, true, nil
		}
	}

	return nil, true, errUnparseable
}

type parseError struct{ msg string }

func (e *parseError) Error() string { return e.msg }

var errUnparseable = &parseError{msg: "chunk response did not contain a parseable candidate array"}
