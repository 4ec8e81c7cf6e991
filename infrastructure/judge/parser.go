package judge

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/verdictlabs/verdict/internal/domain"
)

// Confidence assigned by each parse strategy when the response does not
// state its own. Later strategies are less trustworthy.
const (
	confidenceStructured = 0.9
	confidencePattern    = 0.7
	confidenceFallback   = 0.3
)

// Parser converts raw judge-model output into a normalized Judgment using
// ordered fallback strategies. Parse never fails: a response with no
// usable number still yields a zero-score, zero-confidence Judgment
// flagged unparsed, because evaluation pipelines must not break merely
// because a judge model answered informally.
//
// Strategies, first success wins:
//  1. structured: JSON object (markdown fences stripped) with a score field
//  2. pattern: "Score: N/10", "score N out of 100", bare "Score: N"
//  3. numeric fallback: first standalone number in a plausible range
//  4. unparsed: score 0, confidence 0, metadata unparsed=true
type Parser struct {
	// defaultScale, when positive, overrides the magnitude heuristic for
	// scores without an explicit denominator. A judge task that prompts
	// for 0-100 grades sets this to 100 so "score: 5" is not misread as
	// 5 out of 10.
	defaultScale float64
}

// ParserOption customizes a Parser.
type ParserOption func(*Parser)

// WithDefaultScale fixes the denominator assumed for scores that do not
// carry one. Zero keeps the magnitude heuristic.
func WithDefaultScale(scale float64) ParserOption {
	return func(p *Parser) {
		if scale > 0 {
			p.defaultScale = scale
		}
	}
}

// NewParser creates a Parser.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// structuredResponse is the JSON shape judge prompts ask for.
type structuredResponse struct {
	Score      *float64 `json:"score"`
	Reasoning  string   `json:"reasoning"`
	Confidence *float64 `json:"confidence"`
}

var (
	// scorePattern matches "Score: 8/10", "score = 7", "scored 95 out of
	// 100"; group 1 is the value, group 2 the optional denominator.
	scorePattern = regexp.MustCompile(`(?i)\bscore[sd]?\b[^0-9.\-]*?(\d+(?:\.\d+)?)\s*(?:(?:/|out\s+of)\s*(\d+(?:\.\d+)?))?`)

	// ratioPattern matches a bare "8/10" or "95 out of 100" without the
	// word score nearby.
	ratioPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:/|out\s+of)\s*(\d+(?:\.\d+)?)`)

	// reasoningPattern extracts an explicit "Reasoning: ..." clause.
	reasoningPattern = regexp.MustCompile(`(?i)\breasoning\s*[:=]\s*(.+)`)

	// numberPattern finds standalone numbers for the fallback strategy.
	numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// Parse converts raw provider text into a Judgment. It is deterministic:
// the same input always yields the same Judgment.
func (p *Parser) Parse(raw string) domain.Judgment {
	if j, ok := p.parseStructured(raw); ok {
		return j
	}
	if j, ok := p.parsePattern(raw); ok {
		return j
	}
	if j, ok := p.parseFirstNumber(raw); ok {
		return j
	}

	return domain.Judgment{
		Score:       0,
		Confidence:  0,
		Reasoning:   strings.TrimSpace(raw),
		RawResponse: raw,
		Metadata: map[string]any{
			"strategy": "none",
			"unparsed": true,
		},
	}
}

// parseStructured attempts strategy 1: a JSON object carrying a score.
func (p *Parser) parseStructured(raw string) (domain.Judgment, bool) {
	jsonStr := extractJSON(raw)
	if jsonStr == "" {
		return domain.Judgment{}, false
	}

	var resp structuredResponse
	if err := json.Unmarshal([]byte(jsonStr), &resp); err != nil || resp.Score == nil {
		return domain.Judgment{}, false
	}

	confidence := confidenceStructured
	if resp.Confidence != nil {
		confidence = clamp01(*resp.Confidence)
	}

	return domain.Judgment{
		Score:       p.normalize(*resp.Score, 0),
		Reasoning:   strings.TrimSpace(resp.Reasoning),
		Confidence:  confidence,
		RawResponse: raw,
		Metadata:    map[string]any{"strategy": "structured"},
	}, true
}

// parsePattern attempts strategy 2: textual score declarations.
func (p *Parser) parsePattern(raw string) (domain.Judgment, bool) {
	match := scorePattern.FindStringSubmatch(raw)
	if match == nil {
		match = ratioPattern.FindStringSubmatch(raw)
	}
	if match == nil {
		return domain.Judgment{}, false
	}

	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return domain.Judgment{}, false
	}

	var denom float64
	if match[2] != "" {
		denom, err = strconv.ParseFloat(match[2], 64)
		if err != nil || denom <= 0 {
			denom = 0
		}
	}

	return domain.Judgment{
		Score:       p.normalize(value, denom),
		Reasoning:   extractReasoning(raw),
		Confidence:  confidencePattern,
		RawResponse: raw,
		Metadata:    map[string]any{"strategy": "pattern"},
	}, true
}

// parseFirstNumber attempts strategy 3: the first standalone number in a
// plausible scoring range, trusted at a visibly degraded confidence.
func (p *Parser) parseFirstNumber(raw string) (domain.Judgment, bool) {
	for _, candidate := range numberPattern.FindAllString(raw, -1) {
		value, err := strconv.ParseFloat(candidate, 64)
		if err != nil || value < 0 || value > 100 {
			continue
		}

		return domain.Judgment{
			Score:       p.normalize(value, 0),
			Reasoning:   strings.TrimSpace(raw),
			Confidence:  confidenceFallback,
			RawResponse: raw,
			Metadata:    map[string]any{"strategy": "numeric_fallback"},
		}, true
	}
	return domain.Judgment{}, false
}

// normalize maps an observed score onto [0, 1]. An explicit denominator
// wins; otherwise the configured default scale applies; otherwise the
// magnitude heuristic: values already in [0, 1] pass through, values up
// to 10 are read on a ten scale, larger values on a hundred scale.
func (p *Parser) normalize(score, denom float64) float64 {
	switch {
	case denom > 0:
		return clamp01(score / denom)
	case p.defaultScale > 0:
		return clamp01(score / p.defaultScale)
	case score >= 0 && score <= 1:
		return score
	case score <= 10:
		return clamp01(score / 10)
	default:
		return clamp01(score / 100)
	}
}

// extractReasoning prefers an explicit "Reasoning:" clause and otherwise
// uses the whole response.
func extractReasoning(raw string) string {
	if match := reasoningPattern.FindStringSubmatch(raw); match != nil {
		return strings.TrimSpace(match[1])
	}
	return strings.TrimSpace(raw)
}

// extractJSON pulls a JSON object out of a response that may wrap it in
// markdown code fences or surrounding prose. Returns "" when no balanced
// object is present.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	// Fenced ```json blocks first.
	if idx := strings.Index(response, "```json"); idx != -1 {
		rest := response[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end != -1 {
			return strings.TrimSpace(rest[:end])
		}
	}

	// Generic fences whose body looks like JSON.
	if idx := strings.Index(response, "```"); idx != -1 {
		rest := response[idx+3:]
		if nl := strings.Index(rest, "\n"); nl != -1 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end != -1 {
			candidate := strings.TrimSpace(rest[:end])
			if strings.HasPrefix(candidate, "{") {
				return candidate
			}
		}
	}

	// Otherwise scan for the first balanced object, respecting strings
	// and escapes.
	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		ch := response[i]

		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch ch {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}

	return ""
}

// clamp01 restricts v to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
