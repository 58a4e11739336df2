package remediation

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

const maxQueries = 3

var errNoRoadmap = errors.New("plan has no roadmap steps")

// decodePlan accepts either a plan object or an array whose first element
// is a plan object, optionally wrapped in a markdown code fence, and
// returns the normalized plan.
func decodePlan(text string) (plan, error) {
	body := bytes.TrimSpace([]byte(stripFences(text)))
	if len(body) == 0 {
		return plan{}, errors.New("empty plan payload")
	}

	var p plan
	switch body[0] {
	case '{':
		if err := json.Unmarshal(body, &p); err != nil {
			return plan{}, fmt.Errorf("decoding plan object: %w", err)
		}
	case '[':
		var list []plan
		if err := json.Unmarshal(body, &list); err != nil {
			return plan{}, fmt.Errorf("decoding plan list: %w", err)
		}
		if len(list) == 0 {
			return plan{}, errors.New("plan list is empty")
		}
		p = list[0]
	default:
		return plan{}, fmt.Errorf("plan payload starts with %q", body[0])
	}

	p.Roadmap = compact(p.Roadmap, 0)
	p.SearchQueries = compact(p.SearchQueries, maxQueries)
	if len(p.Roadmap) == 0 {
		return plan{}, errNoRoadmap
	}
	return p, nil
}

// stripFences removes a surrounding ```json ... ``` block if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

func compact(in []string, limit int) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
