// File: internal/generator/generator.go
package generator

import (
	"bytes"
	"context"
	"embed"
	stdjson "encoding/json"
	"fmt"
	"text/template"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/llmutil"
)

//go:embed prompts/answers.tmpl
var promptFS embed.FS

const (
	promptFile   = "prompts/answers.tmpl"
	systemPrompt = "You are an AI assistant tasked with filling out a Google Form."
)

// variations rotate across attempts so consecutive responses do not read
// like copies of each other.
var variations = []string{
	"Focus on practical aspects.",
	"Emphasize cost-consciousness.",
	"Be slightly more enthusiastic.",
	"Be slightly more critical/analytical.",
	"Consider the perspective of a newcomer to the topic.",
	"Consider the perspective of an experienced user.",
}

// Variation returns the persona hint for the zero-based attempt index.
func Variation(index int) string {
	if index < 0 {
		index = -index
	}
	return fmt.Sprintf("Persona Variation %d: %s", index+1, variations[index%len(variations)])
}

// Generator asks the answer model for one persona-consistent response set.
// It holds no per-attempt state.
type Generator struct {
	llm         schemas.LLMClient
	temperature float32
	tmpl        *template.Template
	logger      *zap.Logger
}

// New creates a Generator backed by llm.
func New(llm schemas.LLMClient, temperature float32, logger *zap.Logger) (*Generator, error) {
	tmpl, err := template.ParseFS(promptFS, promptFile)
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded prompt: %w", err)
	}
	return &Generator{
		llm:         llm,
		temperature: temperature,
		tmpl:        tmpl,
		logger:      logger.Named("generator"),
	}, nil
}

// WithLogger returns a copy of g that logs through logger.
func (g *Generator) WithLogger(logger *zap.Logger) *Generator {
	c := *g
	c.logger = logger.Named("generator")
	return &c
}

type promptData struct {
	Persona       string
	Variation     string
	Structure     string
	HasFileUpload bool
}

// BuildPrompt renders the request for one attempt.
func (g *Generator) BuildPrompt(questions []schemas.QuestionDescriptor, persona string, variationIndex int) (schemas.GenerationRequest, error) {
	compact, err := json.Marshal(questions)
	if err != nil {
		return schemas.GenerationRequest{}, fmt.Errorf("serialize form structure: %w", err)
	}
	// Options render through a custom marshaler that jsoniter will not indent,
	// so the whole document is re-indented in one pass.
	var structure bytes.Buffer
	if err := stdjson.Indent(&structure, compact, "", "  "); err != nil {
		return schemas.GenerationRequest{}, fmt.Errorf("indent form structure: %w", err)
	}
	data := promptData{
		Persona:   persona,
		Variation: Variation(variationIndex),
		Structure: structure.String(),
	}
	for _, q := range questions {
		if q.Type == schemas.QuestionFileUpload {
			data.HasFileUpload = true
		}
	}

	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, data); err != nil {
		return schemas.GenerationRequest{}, fmt.Errorf("render prompt: %w", err)
	}
	return schemas.GenerationRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   buf.String(),
		Options: schemas.GenerationOptions{
			Temperature:     g.temperature,
			ForceJSONFormat: true,
		},
	}, nil
}

// Generate returns the answers for one attempt, keyed by question identifier.
// Missing and unexpected keys are logged but tolerated; scale answers are
// repaired to numeric strings.
func (g *Generator) Generate(ctx context.Context, questions []schemas.QuestionDescriptor, persona string, variationIndex int) (schemas.AnswerMap, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: form structure is empty", schemas.ErrGeneration)
	}
	req, err := g.BuildPrompt(questions, persona, variationIndex)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", schemas.ErrGeneration, err)
	}

	g.logger.Info("Generating response",
		zap.Int("attempt", variationIndex+1),
		zap.String("persona", persona),
		zap.String("variation", Variation(variationIndex)))

	raw, err := g.llm.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", schemas.ErrGeneration, err)
	}
	obj, err := llmutil.ParseJSONObject(raw)
	if err != nil {
		g.logger.Warn("Could not decode model response", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", schemas.ErrGeneration, err)
	}

	answers := make(schemas.AnswerMap, len(obj))
	for k, v := range obj {
		answers[k] = schemas.NewAnswer(v)
	}

	missing, extra := DiffKeys(questions, answers)
	if len(missing) > 0 {
		g.logger.Warn("Model response missing answers", zap.Strings("identifiers", missing))
	}
	if len(extra) > 0 {
		g.logger.Warn("Model response included unexpected identifiers", zap.Strings("identifiers", extra))
	}
	for _, r := range RepairScaleAnswers(questions, answers) {
		g.logger.Warn("Non-numeric value for linear scale question",
			zap.String("identifier", r.Identifier),
			zap.String("answer", r.From),
			zap.String("converted_to", r.To))
	}

	g.logger.Debug("Generated answers", zap.Any("answers", answers))
	return answers, nil
}
