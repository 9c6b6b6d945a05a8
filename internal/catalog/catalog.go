// Package catalog provides the static discovery question catalog.
//
// The default catalog is compiled into the binary. A replacement catalog can
// be loaded from a YAML file at startup; either way the catalog is validated
// once and immutable afterwards.
package catalog

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/withinyouai/claritycore/internal/models"
)

// Catalog is an ordered, immutable list of discovery questions.
type Catalog struct {
	questions []models.DiscoveryQuestion
	byID      map[int]models.DiscoveryQuestion
}

// New builds a catalog from the given questions after validating them.
// IDs must run sequentially from 1 so that answer collection can rely on
// stable positional ordering.
func New(questions []models.DiscoveryQuestion) (*Catalog, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("catalog has no questions")
	}
	byID := make(map[int]models.DiscoveryQuestion, len(questions))
	for i, q := range questions {
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("invalid catalog: %w", err)
		}
		if q.ID != i+1 {
			return nil, fmt.Errorf("invalid catalog: question at position %d has id %d, want %d", i, q.ID, i+1)
		}
		byID[q.ID] = q
	}
	return &Catalog{questions: questions, byID: byID}, nil
}

// Default returns the compiled-in core discovery catalog.
func Default() *Catalog {
	c, err := New(coreDiscoveryQuestions)
	if err != nil {
		// The compiled-in catalog is covered by tests; reaching this is a build defect.
		panic(fmt.Sprintf("built-in catalog invalid: %v", err))
	}
	return c
}

// catalogFile is the YAML document shape for catalog overrides.
type catalogFile struct {
	Questions []models.DiscoveryQuestion `yaml:"questions"`
}

// Load reads a catalog override from a YAML file.
func Load(path string) (*Catalog, error) {
	slog.Debug("catalog.Load: reading catalog file", "path", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file %s: %w", path, err)
	}
	c, err := New(cf.Questions)
	if err != nil {
		return nil, err
	}
	slog.Info("catalog.Load: catalog loaded", "path", path, "questions", c.Len())
	return c, nil
}

// Questions returns the catalog in order. Callers must not mutate the slice.
func (c *Catalog) Questions() []models.DiscoveryQuestion {
	return c.questions
}

// Len returns the number of questions in the catalog.
func (c *Catalog) Len() int {
	return len(c.questions)
}

// ByID returns the question with the given id.
func (c *Catalog) ByID(id int) (models.DiscoveryQuestion, bool) {
	q, ok := c.byID[id]
	return q, ok
}

// At returns the question at the given zero-based step index.
func (c *Catalog) At(step int) (models.DiscoveryQuestion, bool) {
	if step < 0 || step >= len(c.questions) {
		return models.DiscoveryQuestion{}, false
	}
	return c.questions[step], true
}

// ByCategory returns all questions carrying the given category label.
func (c *Catalog) ByCategory(category string) []models.DiscoveryQuestion {
	var out []models.DiscoveryQuestion
	for _, q := range c.questions {
		if q.Category == category {
			out = append(out, q)
		}
	}
	return out
}
