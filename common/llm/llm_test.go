package llm_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/oraclewalid/discoveo/common/llm"
)

type dateRange struct {
	StartDate string `json:"start_date" jsonschema:"required"`
	EndDate   string `json:"end_date" jsonschema:"required"`
	Dimension string `json:"dimension,omitempty"`
}

var _ = Describe("ParseToolArguments", func() {
	It("decodes a JSON object into the target struct", func() {
		args, err := llm.ParseToolArguments[dateRange](`{"start_date":"20240101","end_date":"20240131"}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(args.StartDate).To(Equal("20240101"))
		Expect(args.EndDate).To(Equal("20240131"))
		Expect(args.Dimension).To(BeEmpty())
	})

	It("treats empty arguments as an empty object", func() {
		args, err := llm.ParseToolArguments[dateRange]("")
		Expect(err).NotTo(HaveOccurred())
		Expect(args).To(Equal(dateRange{}))
	})

	It("wraps decode errors", func() {
		_, err := llm.ParseToolArguments[dateRange](`{"start_date":`)
		Expect(err).To(MatchError(ContainSubstring("parse tool arguments")))
	})
})

var _ = Describe("AgentResponse", func() {
	DescribeTable("LastText",
		func(resp *llm.AgentResponse, expected string) {
			Expect(resp.LastText()).To(Equal(expected))
		},
		Entry("nil response", nil, ""),
		Entry("no text blocks", &llm.AgentResponse{}, ""),
		Entry("single block", &llm.AgentResponse{TextBlocks: []string{"only"}}, "only"),
		Entry("several blocks", &llm.AgentResponse{TextBlocks: []string{"thinking", "report"}}, "report"),
	)
})

var _ = Describe("NewAgentClient", func() {
	It("requires credentials before building any provider", func() {
		_, err := llm.NewAgentClient(context.Background(), llm.Config{Provider: llm.ProviderBedrock})
		Expect(errors.Is(err, llm.ErrMissingAPIKey)).To(BeTrue())
	})

	It("rejects unknown providers", func() {
		_, err := llm.NewAgentClient(context.Background(), llm.Config{Provider: "mystery", APIKey: "k"})
		Expect(err).To(MatchError("unsupported LLM provider: mystery"))
	})

	It("builds an anthropic client with the default model", func() {
		client, err := llm.NewAgentClient(context.Background(), llm.Config{Provider: llm.ProviderAnthropic, APIKey: "k"})
		Expect(err).NotTo(HaveOccurred())
		Expect(client.Model()).To(Equal("claude-sonnet-4-20250514"))
	})

	It("builds a bedrock client with the default model id", func() {
		client, err := llm.NewAgentClient(context.Background(), llm.Config{APIKey: "bedrock-token"})
		Expect(err).NotTo(HaveOccurred())
		Expect(client.Model()).To(Equal(llm.DefaultBedrockModel))
	})
})

var _ = Describe("IsRetryable", func() {
	ctx := context.Background()

	It("returns false for nil", func() {
		Expect(llm.IsRetryable(ctx, nil)).To(BeFalse())
	})

	It("does not retry cancellation", func() {
		Expect(llm.IsRetryable(ctx, fmt.Errorf("chat: %w", context.Canceled))).To(BeFalse())
		Expect(llm.IsRetryable(ctx, context.DeadlineExceeded)).To(BeFalse())
	})

	It("does not retry missing credentials", func() {
		Expect(llm.IsRetryable(ctx, llm.ErrMissingAPIKey)).To(BeFalse())
	})

	It("retries network errors", func() {
		Expect(llm.IsRetryable(ctx, errors.New("connection reset by peer"))).To(BeTrue())
	})
})

var _ = Describe("GenerateSchemaFrom", func() {
	It("reflects properties and required fields", func() {
		schema := llm.GenerateSchemaFrom(&dateRange{})
		Expect(schema).NotTo(BeNil())
		Expect(fmt.Sprintf("%v", schema)).NotTo(BeEmpty())
	})
})

var _ = Describe("CredentialError", func() {
	It("names the missing variable and matches ErrMissingAPIKey", func() {
		err := fmt.Errorf("build client: %w", &llm.CredentialError{Env: "AWS_BEARER_TOKEN_BEDROCK"})
		Expect(err.Error()).To(Equal("build client: AWS_BEARER_TOKEN_BEDROCK is not configured"))
		Expect(errors.Is(err, llm.ErrMissingAPIKey)).To(BeTrue())
		Expect(llm.IsRetryable(context.Background(), err)).To(BeFalse())
	})
})

var _ = DescribeTable("StripCodeFence",
	func(in, want string) {
		Expect(llm.StripCodeFence(in)).To(Equal(want))
	},
	Entry("json fence", "```json\n{\"a\":1}\n```", `{"a":1}`),
	Entry("bare fence", "```\n{}\n```  ", `{}`),
	Entry("no fence", `  {"b":2} `, `{"b":2}`),
)
