package extract

import (
	"context"
	"fmt"

	"tigrinya.news/pipeline/common/llm"
	"tigrinya.news/pipeline/common/logger"
	"tigrinya.news/pipeline/internal/model"
)

const maxEntityInputRunes = 30000

const entitySystemPrompt = `You analyze Tigrinya newspaper text and extract named entities.
Return people, locations and organizations as lists of names.
Keep every name exactly as written in Tigrinya. Do not translate or transliterate.
Return an empty list for a category with no entities.`

var entitySchema = llm.GenerateSchema[model.Entities]()

type EntityExtractor struct {
	client llm.Client
}

func NewEntityExtractor(client llm.Client) *EntityExtractor {
	return &EntityExtractor{client: client}
}

func (e *EntityExtractor) Extract(ctx context.Context, text string) (model.Entities, error) {
	var out model.Entities
	_, err := e.client.Chat(ctx, llm.Request{
		SystemPrompt: entitySystemPrompt,
		UserPrompt:   "Text:\n" + logger.Truncate(text, maxEntityInputRunes),
		SchemaName:   "named_entities",
		Schema:       entitySchema,
		MaxTokens:    2000,
		Temperature:  llm.Temp(0),
	}, &out)
	if err != nil {
		return model.Entities{}, fmt.Errorf("extracting entities: %w", err)
	}

	if out.People == nil {
		out.People = []string{}
	}
	if out.Locations == nil {
		out.Locations = []string{}
	}
	if out.Organizations == nil {
		out.Organizations = []string{}
	}
	return out, nil
}
