package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"github.com/mikey/email-classifier/internal/core"
	"github.com/mikey/email-classifier/internal/ports"
)

const previewRunes = 500

// CliFilter classifies emails from the command line and prints the results
type CliFilter struct {
	service    ports.Classifier
	out        io.Writer
	logger     *zap.Logger
	verbose    bool
	jsonOutput bool
}

// NewCliFilter creates a new CLI filter writing to out
func NewCliFilter(service ports.Classifier, out io.Writer, logger *zap.Logger, verbose, jsonOutput bool) *CliFilter {
	return &CliFilter{
		service:    service,
		out:        out,
		logger:     logger,
		verbose:    verbose,
		jsonOutput: jsonOutput,
	}
}

// ProcessEmail classifies an email and displays the result
func (f *CliFilter) ProcessEmail(ctx context.Context, email *ports.Email) (*core.ClassificationResult, error) {
	f.logger.Debug("Processing email", zap.String("sender", email.From), zap.Int("body_length", len(email.Body)))

	if f.verbose && !f.jsonOutput {
		fmt.Fprintf(f.out, "=== Email ===\n")
		if email.Subject != "" {
			fmt.Fprintf(f.out, "Subject: %s\n", email.Subject)
		}
		fmt.Fprintf(f.out, "Body length: %d characters\n\n%s\n\n", len([]rune(email.Body)), preview(email.Body))
	}

	start := time.Now()
	result, err := f.service.ClassifyEmail(ctx, email.Text())
	if err != nil {
		f.logger.Error("Failed to classify email", zap.Error(err))
		return nil, err
	}

	if f.jsonOutput {
		encoder := json.NewEncoder(f.out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			return nil, fmt.Errorf("failed to encode result: %w", err)
		}
		return result, nil
	}

	f.render(result, time.Since(start))
	return result, nil
}

func (f *CliFilter) render(result *core.ClassificationResult, elapsed time.Duration) {
	table := tablewriter.NewWriter(f.out)
	table.SetHeader([]string{"Field", "Value"})
	table.SetBorder(false)
	table.SetAutoWrapText(true)
	table.SetColWidth(80)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	table.Append([]string{"Category", categoryColor(result.Category)})
	table.Append([]string{"Confidence", strconv.FormatFloat(result.Confidence, 'f', 2, 64)})
	if result.Justification != nil {
		table.Append([]string{"Justification", *result.Justification})
	}
	if len(result.Highlights) > 0 {
		table.Append([]string{"Highlights", strings.Join(result.Highlights, "; ")})
	}
	table.Append([]string{"Suggested response", result.SuggestedResponse})
	if result.Usage != nil {
		table.Append([]string{"Tokens", fmt.Sprintf("%d prompt / %d completion / %d total",
			result.Usage.PromptTokens, result.Usage.CompletionTokens, result.Usage.TotalTokens)})
	}
	if f.verbose {
		table.Append([]string{"Processing time", elapsed.Round(time.Millisecond).String()})
	}
	table.Render()
}

func categoryColor(category core.Category) string {
	switch category {
	case core.CategoryProductive:
		return color.GreenString(string(category))
	case core.CategoryUnproductive:
		return color.YellowString(string(category))
	default:
		return string(category)
	}
}

func preview(body string) string {
	runes := []rune(body)
	if len(runes) <= previewRunes {
		return body
	}
	return string(runes[:previewRunes]) + "..."
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}
