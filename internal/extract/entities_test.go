package extract_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"tigrinya.news/pipeline/common/llm"
	"tigrinya.news/pipeline/internal/extract"
	"tigrinya.news/pipeline/internal/model"
)

var _ = Describe("EntityExtractor", func() {
	It("returns the entities the model found", func() {
		client := &mockLLM{reply: func(llm.Request) (string, error) {
			return `{"people":["ኢሳይያስ"],"locations":["ኣስመራ","ምጽዋዕ"],"organizations":[]}`, nil
		}}

		entities, err := extract.NewEntityExtractor(client).Extract(context.Background(), "ጽሑፍ")
		Expect(err).NotTo(HaveOccurred())
		Expect(entities).To(Equal(model.Entities{
			People:        []string{"ኢሳይያስ"},
			Locations:     []string{"ኣስመራ", "ምጽዋዕ"},
			Organizations: []string{},
		}))
		Expect(client.requests[0].SchemaName).To(Equal("named_entities"))
		Expect(*client.requests[0].Temperature).To(BeZero())
	})

	It("fills missing categories with empty lists", func() {
		client := &mockLLM{reply: func(llm.Request) (string, error) { return `{}`, nil }}

		entities, err := extract.NewEntityExtractor(client).Extract(context.Background(), "ጽሑፍ")
		Expect(err).NotTo(HaveOccurred())
		Expect(entities.People).To(BeEmpty())
		Expect(entities.People).NotTo(BeNil())
	})

	It("truncates long input", func() {
		client := &mockLLM{reply: func(llm.Request) (string, error) { return `{}`, nil }}

		_, err := extract.NewEntityExtractor(client).Extract(context.Background(), strings.Repeat("ሀ", 40000))
		Expect(err).NotTo(HaveOccurred())
		Expect(len([]rune(client.requests[0].UserPrompt))).To(BeNumerically("<", 30100))
	})

	It("wraps model errors", func() {
		client := &mockLLM{reply: func(llm.Request) (string, error) { return "", errors.New("rate limited") }}

		_, err := extract.NewEntityExtractor(client).Extract(context.Background(), "ጽሑፍ")
		Expect(err).To(MatchError("extracting entities: rate limited"))
	})
})
