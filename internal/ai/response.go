package ai

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	minEntryScore = 0
	maxEntryScore = 100
)

// ParseRanking validates a raw reasoning response against the ranking contract.
// The body must be a JSON list of {index, score, reason} entries, optionally
// inside a markdown code fence. A single bad entry, including one that repeats
// a key, rejects the whole response.
func ParseRanking(raw string, candidateCount int) ([]Entry, error) {
	cleaned := ExtractJSON(raw)
	if cleaned == "" {
		return nil, malformed(raw, "empty body")
	}
	if !gjson.Valid(cleaned) {
		return nil, malformed(raw, "body is not valid JSON")
	}

	list := gjson.Parse(cleaned)
	if !list.IsArray() {
		return nil, malformed(raw, "top-level shape is not a list of entries")
	}

	items := list.Array()
	entries := make([]Entry, 0, len(items))
	seen := make(map[int]struct{}, len(items))

	for pos, item := range items {
		if !item.IsObject() {
			return nil, malformed(raw, "entry %d is not an object", pos)
		}
		if key, ok := repeatedKey(item); ok {
			return nil, malformed(raw, "entry %d: key %q appears more than once", pos, key)
		}

		index, problem := parseIndex(item.Get("index"), candidateCount)
		if problem != "" {
			return nil, malformed(raw, "entry %d: %s", pos, problem)
		}
		if _, dup := seen[index]; dup {
			return nil, malformed(raw, "entry %d: duplicate index %d", pos, index)
		}
		seen[index] = struct{}{}

		score, problem := parseScore(item.Get("score"))
		if problem != "" {
			return nil, malformed(raw, "entry %d: %s", pos, problem)
		}

		reason := item.Get("reason")
		if reason.Type != gjson.String {
			return nil, malformed(raw, "entry %d: reason must be a string", pos)
		}

		entries = append(entries, Entry{
			Index:  index,
			Score:  score,
			Reason: strings.TrimSpace(reason.String()),
		})
	}

	return entries, nil
}

// repeatedKey reports the first key that occurs twice in obj. Decoders disagree
// on which duplicate wins, so such entries have no single meaning.
func repeatedKey(obj gjson.Result) (string, bool) {
	seen := make(map[string]struct{})
	var dup string
	found := false
	obj.ForEach(func(key, _ gjson.Result) bool {
		k := key.String()
		if _, ok := seen[k]; ok {
			dup, found = k, true
			return false
		}
		seen[k] = struct{}{}
		return true
	})
	return dup, found
}

func parseIndex(v gjson.Result, candidateCount int) (int, string) {
	if v.Type != gjson.Number {
		return 0, "index must be an integer"
	}
	index, err := strconv.Atoi(v.Raw)
	if err != nil {
		return 0, "index must be an integer"
	}
	if index < 0 || index >= candidateCount {
		return 0, "index " + v.Raw + " out of range [0, " + strconv.Itoa(candidateCount) + ")"
	}
	return index, ""
}

func parseScore(v gjson.Result) (int, string) {
	if v.Type != gjson.Number {
		return 0, "score must be a number"
	}
	f := v.Float()
	if math.IsNaN(f) || f < minEntryScore || f > maxEntryScore {
		return 0, "score " + v.Raw + " out of range [0, 100]"
	}
	return int(math.Round(f)), ""
}

// ExtractJSON strips surrounding whitespace and a markdown code fence.
func ExtractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
