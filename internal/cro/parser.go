package cro

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/oraclewalid/discoveo/common/llm"
	"github.com/oraclewalid/discoveo/internal/model"
)

// maxRawPrefix bounds how much model output a ParseError keeps.
const maxRawPrefix = 500

// ReportFields is the model-authored part of a CRO report.
type ReportFields struct {
	ExecutiveSummary    string
	FunnelAnalysis      model.FunnelAnalysis
	QualitativeInsights model.QualitativeInsights
	Recommendations     []model.CroRecommendation
}

// ParseError is returned when the final model answer is not a usable report.
type ParseError struct {
	Field string // empty when the document itself could not be decoded
	Raw   string // prefix of the model output
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("failed to parse %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("failed to parse CRO report from LLM response: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ExtractJSON returns the first balanced {...} object embedded in raw.
// Braces inside JSON strings do not count toward nesting.
func ExtractJSON(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}

// ParseReport decodes the agent's final answer. It accepts a bare JSON
// object, one wrapped in a markdown fence, or one surrounded by prose.
func ParseReport(raw string) (*ReportFields, error) {
	doc, err := decodeObject(llm.StripCodeFence(raw))
	if err != nil {
		extracted, ok := ExtractJSON(raw)
		if !ok {
			return nil, &ParseError{Raw: rawPrefix(raw), Err: fmt.Errorf("no JSON object found in response")}
		}
		doc, err = decodeObject(extracted)
		if err != nil {
			return nil, &ParseError{Raw: rawPrefix(raw), Err: fmt.Errorf("parse extracted JSON: %w", err)}
		}
	}

	fields := &ReportFields{}
	if s, ok := doc["executive_summary"]; ok {
		// A non-string summary is treated as absent.
		_ = json.Unmarshal(s, &fields.ExecutiveSummary)
	}
	if err := decodeField(doc, "funnel_analysis", &fields.FunnelAnalysis); err != nil {
		return nil, &ParseError{Field: "funnel_analysis", Raw: rawPrefix(raw), Err: err}
	}
	if err := decodeField(doc, "qualitative_insights", &fields.QualitativeInsights); err != nil {
		return nil, &ParseError{Field: "qualitative_insights", Raw: rawPrefix(raw), Err: err}
	}
	if err := decodeField(doc, "recommendations", &fields.Recommendations); err != nil {
		return nil, &ParseError{Field: "recommendations", Raw: rawPrefix(raw), Err: err}
	}

	normalize(fields)
	return fields, nil
}

func decodeObject(s string) (map[string]json.RawMessage, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("response is not a JSON object")
	}
	return doc, nil
}

// decodeField leaves target untouched when key is missing or null.
func decodeField(doc map[string]json.RawMessage, key string, target any) error {
	raw, ok := doc[key]
	if !ok || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, target)
}

// normalize replaces nil slices so the report always serializes arrays.
func normalize(f *ReportFields) {
	if f.FunnelAnalysis.CriticalDropOffs == nil {
		f.FunnelAnalysis.CriticalDropOffs = []model.DropOff{}
	}
	for i := range f.FunnelAnalysis.CriticalDropOffs {
		if f.FunnelAnalysis.CriticalDropOffs[i].CorrelatedFeedback == nil {
			f.FunnelAnalysis.CriticalDropOffs[i].CorrelatedFeedback = []string{}
		}
	}
	if pc := f.FunnelAnalysis.PeriodComparison; pc != nil && pc.Changes == nil {
		pc.Changes = []model.MetricChange{}
	}

	if f.QualitativeInsights.ThemesWithData == nil {
		f.QualitativeInsights.ThemesWithData = []model.ThemeWithData{}
	}
	for i := range f.QualitativeInsights.ThemesWithData {
		t := &f.QualitativeInsights.ThemesWithData[i]
		if t.SupportingQuotes == nil {
			t.SupportingQuotes = []string{}
		}
		if t.RelatedMetrics == nil {
			t.RelatedMetrics = []string{}
		}
	}

	if f.Recommendations == nil {
		f.Recommendations = []model.CroRecommendation{}
	}
	for i := range f.Recommendations {
		if f.Recommendations[i].SupportingEvidence == nil {
			f.Recommendations[i].SupportingEvidence = []string{}
		}
	}
}

func rawPrefix(raw string) string {
	if utf8.RuneCountInString(raw) <= maxRawPrefix {
		return raw
	}
	runes := []rune(raw)
	return string(runes[:maxRawPrefix])
}
