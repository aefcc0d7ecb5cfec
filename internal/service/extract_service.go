package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/fieldpunch/api/internal/model"
)

// ErrEmptyTranscript rejects extraction of a blank transcript before any
// remote call is made.
var ErrEmptyTranscript = errors.New("transcript is empty")

// ExtractionClient defines the interface to the structured-extraction service
type ExtractionClient interface {
	GenerateStructured(ctx context.Context, prompt string, categories []string) (string, error)
	IsConfigured() bool
}

// ExtractService turns a finished voice transcript into the three structured
// item fields. Exactly one extraction is expected per draft at a time; the
// draft reconciler guards against concurrent calls, not this service.
type ExtractService struct {
	client     ExtractionClient
	categories []model.Category
}

// NewExtractService creates a new extract service with the Gemini client and
// the closed category set
func NewExtractService(extractionClient ExtractionClient, categories []model.Category) *ExtractService {
	return &ExtractService{
		client:     extractionClient,
		categories: categories,
	}
}

// Extract parses one voice command. It either returns fully populated fields
// or an error; it never returns partial fields. A category outside the
// configured set is accepted but flagged and logged, since the service may
// have legitimate reasons to deviate.
func (s *ExtractService) Extract(ctx context.Context, transcript string) (*model.ExtractedFields, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, ErrEmptyTranscript
	}

	// Use mock response if client is not configured
	if s.client == nil || !s.client.IsConfigured() {
		return s.extractMock(transcript), nil
	}

	prompt := s.buildPrompt(transcript)

	response, err := s.client.GenerateStructured(ctx, prompt, s.categoryNames())
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}

	fields, err := s.parseResponse(response)
	if err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}

	fields.CategoryRecognized = s.inCategorySet(fields.Category)
	if !fields.CategoryRecognized {
		log.Printf("Extraction returned unexpected category %q, accepting as-is", fields.Category)
	}

	return fields, nil
}

// Categories returns the closed category set supplied to the service.
func (s *ExtractService) Categories() []model.Category {
	return s.categories
}

func (s *ExtractService) categoryNames() []string {
	names := make([]string, len(s.categories))
	for i, c := range s.categories {
		names[i] = string(c)
	}
	return names
}

func (s *ExtractService) buildPrompt(transcript string) string {
	return fmt.Sprintf(`Parse the following voice command from a construction site manager.
Extract the room number or location, a description of the issue, and the responsible trade/category.
The command is: %q`, transcript)
}

func (s *ExtractService) parseResponse(response string) (*model.ExtractedFields, error) {
	response = extractJSON(response)

	var result struct {
		Room        string `json:"room"`
		Description string `json:"description"`
		Category    string `json:"category"`
	}

	if err := json.Unmarshal([]byte(response), &result); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}

	result.Room = strings.TrimSpace(result.Room)
	result.Description = strings.TrimSpace(result.Description)
	result.Category = strings.TrimSpace(result.Category)

	var missing []string
	if result.Room == "" {
		missing = append(missing, "room")
	}
	if result.Description == "" {
		missing = append(missing, "description")
	}
	if result.Category == "" {
		missing = append(missing, "category")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("response missing fields: %s", strings.Join(missing, ", "))
	}

	return &model.ExtractedFields{
		Room:        result.Room,
		Description: result.Description,
		Category:    model.Category(result.Category),
	}, nil
}

func (s *ExtractService) inCategorySet(category model.Category) bool {
	for _, c := range s.categories {
		if c == category {
			return true
		}
	}
	return false
}

// extractJSON attempts to extract JSON from a response that may contain extra text
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")

	if start != -1 && end != -1 && end > start {
		return s[start : end+1]
	}
	return s
}

var roomPattern = regexp.MustCompile(`(?i)\broom\s+([\w-]+)`)

// Mock implementation for development/testing: pulls a room token out of the
// transcript and defaults the category.
func (s *ExtractService) extractMock(transcript string) *model.ExtractedFields {
	room := "Unknown"
	description := transcript

	if m := roomPattern.FindStringSubmatch(transcript); m != nil {
		room = m[1]
	}

	category := model.Category("")
	if len(s.categories) > 0 {
		category = s.categories[0]
	}

	return &model.ExtractedFields{
		Room:               room,
		Description:        description,
		Category:           category,
		CategoryRecognized: true,
	}
}
