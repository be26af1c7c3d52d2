package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"tigrinya.news/pipeline/common/llm"
)

type capturedRequest struct {
	Path string
	Body map[string]any
}

// fakeAPI answers every request with the given status and body and records what it received.
func fakeAPI(status int, body string, captured *[]capturedRequest) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var decoded map[string]any
		_ = json.Unmarshal(raw, &decoded)
		if captured != nil {
			*captured = append(*captured, capturedRequest{Path: r.URL.Path, Body: decoded})
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
}

var _ = Describe("NewChatClient", func() {
	It("requires an API key", func() {
		_, err := llm.NewChatClient(llm.Config{Provider: llm.ProviderOpenAI})
		Expect(err).To(MatchError(ContainSubstring("API key")))
	})

	It("rejects unknown providers", func() {
		_, err := llm.NewChatClient(llm.Config{Provider: "gemini", APIKey: "k"})
		Expect(err).To(MatchError(ContainSubstring("unsupported")))
	})

	It("defaults to OpenAI", func() {
		c, err := llm.NewChatClient(llm.Config{APIKey: "k"})
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Model()).To(Equal("gpt-4o-mini"))
	})
})

var _ = Describe("OpenAI chat", func() {
	It("sends the conversation and returns the reply text", func() {
		var reqs []capturedRequest
		srv := fakeAPI(http.StatusOK, `{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "ኣስመራ ርእሰ ከተማ እያ።"}}],
			"usage": {"prompt_tokens": 11, "completion_tokens": 4, "total_tokens": 15}
		}`, &reqs)
		defer srv.Close()

		c, err := llm.NewChatClient(llm.Config{Provider: llm.ProviderOpenAI, APIKey: "k", BaseURL: srv.URL + "/"})
		Expect(err).NotTo(HaveOccurred())

		resp, err := c.Complete(context.Background(), llm.ChatRequest{
			Messages: []llm.Message{
				{Role: llm.RoleSystem, Content: "be brief"},
				{Role: llm.RoleUser, Content: "ርእሰ ከተማ ኤርትራ?"},
			},
			Temperature: llm.Temp(0.3),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Content).To(Equal("ኣስመራ ርእሰ ከተማ እያ።"))
		Expect(resp.FinishReason).To(Equal("stop"))
		Expect(resp.PromptTokens).To(Equal(11))

		Expect(reqs).To(HaveLen(1))
		Expect(reqs[0].Path).To(HaveSuffix("/chat/completions"))
		Expect(reqs[0].Body["messages"]).To(HaveLen(2))
		Expect(reqs[0].Body["temperature"]).To(BeNumerically("~", 0.3))
	})
})

var _ = Describe("Anthropic chat", func() {
	It("moves system messages out of the turn list", func() {
		var reqs []capturedRequest
		srv := fakeAPI(http.StatusOK, `{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-test",
			"content": [{"type": "text", "text": "ሰላም"}],
			"stop_reason": "end_turn", "stop_sequence": null,
			"usage": {"input_tokens": 3, "output_tokens": 2}
		}`, &reqs)
		defer srv.Close()

		c, err := llm.NewChatClient(llm.Config{Provider: llm.ProviderAnthropic, APIKey: "k", BaseURL: srv.URL + "/", Model: "claude-test"})
		Expect(err).NotTo(HaveOccurred())

		resp, err := c.Complete(context.Background(), llm.ChatRequest{
			Messages: []llm.Message{
				{Role: llm.RoleSystem, Content: "answer in Tigrinya"},
				{Role: llm.RoleUser, Content: "first"},
				{Role: llm.RoleUser, Content: "second"},
			},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Content).To(Equal("ሰላም"))
		Expect(resp.FinishReason).To(Equal("stop"))

		Expect(reqs).To(HaveLen(1))
		Expect(reqs[0].Path).To(HaveSuffix("/v1/messages"))
		Expect(reqs[0].Body["system"]).To(HaveLen(1))
		Expect(reqs[0].Body["messages"]).To(HaveLen(1))
	})
})

var _ = Describe("Structured client", func() {
	type entities struct {
		People []string `json:"people"`
	}

	It("decodes the JSON reply and attaches images as data URIs", func() {
		var reqs []capturedRequest
		srv := fakeAPI(http.StatusOK, `{
			"id": "chatcmpl-2", "object": "chat.completion", "created": 1, "model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "{\"people\":[\"ኢሳይያስ\"]}"}}],
			"usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}
		}`, &reqs)
		defer srv.Close()

		c, err := llm.New(llm.ClientConfig{APIKey: "k", BaseURL: srv.URL + "/"})
		Expect(err).NotTo(HaveOccurred())

		var out entities
		_, err = c.Chat(context.Background(), llm.Request{
			UserPrompt: "extract",
			Images:     []llm.Image{{MIMEType: "image/png", Data: []byte{1, 2, 3}}},
			SchemaName: "entities",
			Schema:     llm.GenerateSchema[entities](),
		}, &out)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.People).To(ConsistOf("ኢሳይያስ"))

		msgs := reqs[0].Body["messages"].([]any)
		Expect(msgs).To(HaveLen(1))
		parts := msgs[0].(map[string]any)["content"].([]any)
		Expect(parts).To(HaveLen(2))
		Expect(fmt.Sprint(parts[1])).To(ContainSubstring("data:image/png;base64,AQID"))
	})

	It("requires an API key", func() {
		_, err := llm.New(llm.ClientConfig{})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Embedder", func() {
	It("orders vectors by the returned index", func() {
		srv := fakeAPI(http.StatusOK, `{
			"object": "list", "model": "text-embedding-3-small",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0.3, 0.4]},
				{"object": "embedding", "index": 0, "embedding": [0.1, 0.2]}
			],
			"usage": {"prompt_tokens": 4, "total_tokens": 4}
		}`, nil)
		defer srv.Close()

		e, err := llm.NewEmbedder(llm.EmbedderConfig{APIKey: "k", BaseURL: srv.URL + "/", Dimensions: 2})
		Expect(err).NotTo(HaveOccurred())
		Expect(e.Dimensions()).To(Equal(2))

		vecs, err := e.Embed(context.Background(), []string{"ሓደ", "ክልተ"})
		Expect(err).NotTo(HaveOccurred())
		Expect(vecs).To(HaveLen(2))
		Expect(vecs[0]).To(HaveLen(2))
		Expect(vecs[0][0]).To(BeNumerically("~", 0.1, 1e-6))
		Expect(vecs[1][1]).To(BeNumerically("~", 0.4, 1e-6))
	})

	It("fails when the count does not match", func() {
		srv := fakeAPI(http.StatusOK, `{"object": "list", "model": "m", "data": [], "usage": {"prompt_tokens": 0, "total_tokens": 0}}`, nil)
		defer srv.Close()

		e, err := llm.NewEmbedder(llm.EmbedderConfig{APIKey: "k", BaseURL: srv.URL + "/"})
		Expect(err).NotTo(HaveOccurred())

		_, err = e.Embed(context.Background(), []string{"ሓደ"})
		Expect(err).To(MatchError(ContainSubstring("mismatch")))
	})

	It("skips the call for empty input", func() {
		e, err := llm.NewEmbedder(llm.EmbedderConfig{APIKey: "k", BaseURL: "http://127.0.0.1:1/"})
		Expect(err).NotTo(HaveOccurred())

		vecs, err := e.Embed(context.Background(), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(vecs).To(BeEmpty())
	})
})

var _ = Describe("IsRetryable", func() {
	ctx := context.Background()

	It("does not retry cancelled contexts", func() {
		Expect(llm.IsRetryable(ctx, context.Canceled)).To(BeFalse())
		Expect(llm.IsRetryable(ctx, fmt.Errorf("wrapped: %w", context.DeadlineExceeded))).To(BeFalse())
	})

	It("retries network errors", func() {
		Expect(llm.IsRetryable(ctx, errors.New("connection refused"))).To(BeTrue())
	})

	It("ignores nil", func() {
		Expect(llm.IsRetryable(ctx, nil)).To(BeFalse())
	})

	It("does not retry client errors from the API", func() {
		srv := fakeAPI(http.StatusBadRequest, `{"error": {"message": "bad", "type": "invalid_request_error", "code": "bad"}}`, nil)
		defer srv.Close()

		e, err := llm.NewEmbedder(llm.EmbedderConfig{APIKey: "k", BaseURL: srv.URL + "/"})
		Expect(err).NotTo(HaveOccurred())

		_, err = e.Embed(ctx, []string{"x"})
		Expect(err).To(HaveOccurred())
		Expect(llm.IsRetryable(ctx, err)).To(BeFalse())
	})
})
