package render

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Alias1177/YieldPredictor/internal/backend"
	"github.com/Alias1177/YieldPredictor/internal/forecast"
	"github.com/Alias1177/YieldPredictor/models"
)

// Format selects how a forecast is written out
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// ParseFormat accepts the format names case-insensitively; "md" is short for markdown
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, markdown, json or yaml)", s)
	}
}

type failure struct {
	Kind    string `json:"kind" yaml:"kind"`
	Message string `json:"message" yaml:"message"`
	Field   string `json:"field,omitempty" yaml:"field,omitempty"`
}

// document is the machine-readable view of a settled state
type document struct {
	Backend string                     `json:"backend" yaml:"backend"`
	Status  string                     `json:"status" yaml:"status"`
	Result  *models.PredictionResponse `json:"result,omitempty" yaml:"result,omitempty"`
	Error   *failure                   `json:"error,omitempty" yaml:"error,omitempty"`
}

func newDocument(s forecast.State) document {
	doc := document{Backend: s.Backend, Status: s.Status.String(), Result: s.Result}
	if s.Err != nil {
		doc.Error = &failure{Kind: s.Err.Kind.String(), Message: s.Err.Message, Field: s.Err.Field}
	}
	return doc
}

// Write renders the state in the given format
func Write(w io.Writer, f Format, s forecast.State) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(newDocument(s))
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(newDocument(s)); err != nil {
			return err
		}
		return enc.Close()
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(s))
		return err
	default:
		_, err := io.WriteString(w, Text(s))
		return err
	}
}

// Text is the plain terminal rendering
func Text(s forecast.State) string {
	var b strings.Builder
	switch s.Status {
	case forecast.StatusIdle:
		b.WriteString(fmt.Sprintf("Ready. Backend: %s\n", backend.Label(s.Backend)))
	case forecast.StatusPending:
		b.WriteString(fmt.Sprintf("Predicting with %s...\n", backend.Label(s.Backend)))
	case forecast.StatusFailed:
		b.WriteString(ErrorText(s.Err))
		b.WriteString("\n")
	case forecast.StatusSucceeded:
		r := s.Result
		b.WriteString(fmt.Sprintf("Predicted yield: %s %s\n", Yield(r.PredictedYield), r.Unit))
		b.WriteString(fmt.Sprintf("Confidence:      %s\n", Confidence(r.ConfidenceScore)))
		b.WriteString(fmt.Sprintf("Backend:         %s\n", backend.Label(s.Backend)))
		if len(r.Recommendations) > 0 {
			b.WriteString("\nRecommendations:\n")
			for i, rec := range r.Recommendations {
				b.WriteString(fmt.Sprintf("%d. %s\n", i+1, rec.Title))
				if rec.Description != "" {
					b.WriteString(fmt.Sprintf("   %s\n", rec.Description))
				}
			}
		}
	}
	return b.String()
}

// Markdown is the chat rendering, using Telegram's legacy Markdown
func Markdown(s forecast.State) string {
	var b strings.Builder
	switch s.Status {
	case forecast.StatusIdle:
		b.WriteString(fmt.Sprintf("*Backend:* %s\n", backend.Label(s.Backend)))
	case forecast.StatusPending:
		b.WriteString(fmt.Sprintf("⏳ Predicting with %s...", backend.Label(s.Backend)))
	case forecast.StatusFailed:
		b.WriteString(fmt.Sprintf("❌ *%s*\n%s", kindTitle(s.Err), escape(message(s.Err))))
	case forecast.StatusSucceeded:
		r := s.Result
		b.WriteString("*Yield Forecast*\n\n")
		b.WriteString(fmt.Sprintf("*Predicted Yield:* %s %s\n", Yield(r.PredictedYield), escape(r.Unit)))
		b.WriteString(fmt.Sprintf("*Confidence:* %s\n", Confidence(r.ConfidenceScore)))
		b.WriteString(fmt.Sprintf("*Backend:* %s\n", backend.Label(s.Backend)))
		if len(r.Recommendations) > 0 {
			b.WriteString("\n*Recommendations:*\n")
			for i, rec := range r.Recommendations {
				b.WriteString(fmt.Sprintf("%d. %s\n", i+1, bold(rec.Title)))
				if rec.Description != "" {
					b.WriteString(escape(rec.Description))
					b.WriteString("\n")
				}
			}
		}
	}
	return b.String()
}

// ErrorText is the one-line form of a failure, e.g. "Validation error (nitrogen): ..."
func ErrorText(err *models.PredictionError) string {
	title := kindTitle(err)
	if err != nil && err.Field != "" {
		title = fmt.Sprintf("%s (%s)", title, err.Field)
	}
	return fmt.Sprintf("%s: %s", title, message(err))
}

func kindTitle(err *models.PredictionError) string {
	if err == nil {
		return "Prediction failed"
	}
	switch err.Kind {
	case models.KindConfiguration:
		return "Configuration error"
	case models.KindNetwork:
		return "Network error"
	case models.KindValidation:
		return "Validation error"
	default:
		return "Prediction service error"
	}
}

func message(err *models.PredictionError) string {
	if err == nil || err.Message == "" {
		return "An unexpected error occurred."
	}
	return err.Message
}

// Yield formats with two decimals
func Yield(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// Confidence formats a 0..1 score as a whole percentage
func Confidence(v float64) string {
	return fmt.Sprintf("%d%%", int(math.Round(v*100)))
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escape(s string) string {
	return markdownEscaper.Replace(s)
}

// bold wraps s in a bold entity. Legacy Markdown has no escaping inside entities,
// so text with markup characters is escaped and left plain instead.
func bold(s string) string {
	if strings.ContainsAny(s, "_*`[") {
		return escape(s)
	}
	return "*" + s + "*"
}
