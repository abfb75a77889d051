package llm

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("convertAnthropicMessages", func() {
	It("separates system prompts from the conversation", func() {
		system, msgs := convertAnthropicMessages([]Message{
			{Role: "system", Content: "be precise"},
			{Role: "user", Content: "audit the funnel"},
		})
		Expect(system).To(HaveLen(1))
		Expect(system[0].Text).To(Equal("be precise"))
		Expect(msgs).To(HaveLen(1))
		Expect(msgs[0].Role).To(Equal(anthropic.MessageParamRoleUser))
	})

	It("folds consecutive tool results into one user message", func() {
		_, msgs := convertAnthropicMessages([]Message{
			{Role: "user", Content: "start"},
			{Role: "assistant", Content: "checking", ToolCalls: []ToolCall{
				{ID: "t1", Name: "get_survey_stats", Arguments: `{}`},
				{ID: "t2", Name: "get_feedback_themes", Arguments: ``},
			}},
			{Role: "tool", ToolCallID: "t1", Content: `{"total_responses":3}`},
			{Role: "tool", ToolCallID: "t2", Content: `{"error":"boom"}`, IsError: true},
		})

		Expect(msgs).To(HaveLen(3))

		assistant := msgs[1]
		Expect(assistant.Role).To(Equal(anthropic.MessageParamRoleAssistant))
		Expect(assistant.Content).To(HaveLen(3))
		Expect(assistant.Content[1].OfToolUse.ID).To(Equal("t1"))
		Expect(assistant.Content[2].OfToolUse.Input).To(Equal(json.RawMessage("{}")))

		results := msgs[2]
		Expect(results.Role).To(Equal(anthropic.MessageParamRoleUser))
		Expect(results.Content).To(HaveLen(2))
		Expect(results.Content[0].OfToolResult.ToolUseID).To(Equal("t1"))
		Expect(results.Content[1].OfToolResult.ToolUseID).To(Equal("t2"))
		Expect(results.Content[1].OfToolResult.IsError.Value).To(BeTrue())
	})
})

var _ = Describe("convertAnthropicTools", func() {
	It("splits the reflected schema into properties and required", func() {
		type args struct {
			Query string `json:"query" jsonschema:"required"`
			Limit int    `json:"limit,omitempty"`
		}
		tools := convertAnthropicTools([]Tool{{
			Name:        "search_survey_comments",
			Description: "search",
			Parameters:  GenerateSchemaFrom(&args{}),
		}})

		Expect(tools).To(HaveLen(1))
		schema := tools[0].OfTool.InputSchema
		Expect(schema.Required).To(ConsistOf("query"))
		Expect(schema.Properties).To(HaveKey("query"))
		Expect(schema.Properties).To(HaveKey("limit"))
	})

	It("emits an empty object schema for parameterless tools", func() {
		type noArgs struct{}
		tools := convertAnthropicTools([]Tool{{Name: "get_survey_stats", Parameters: GenerateSchemaFrom(&noArgs{})}})
		Expect(tools[0].OfTool.InputSchema.Properties).To(Equal(map[string]any{}))
	})
})

var _ = Describe("anthropicResponse", func() {
	It("keeps text blocks in order and normalizes tool calls", func() {
		var msg anthropic.Message
		Expect(json.Unmarshal([]byte(`{
			"id":"msg_1","type":"message","role":"assistant","model":"m",
			"stop_reason":"tool_use",
			"usage":{"input_tokens":12,"output_tokens":7},
			"content":[
				{"type":"text","text":"first"},
				{"type":"tool_use","id":"tu_1","name":"get_page_paths","input":{"start_date":"20240101"}},
				{"type":"text","text":"second"}
			]}`), &msg)).To(Succeed())

		resp := anthropicResponse(&msg)
		Expect(resp.TextBlocks).To(Equal([]string{"first", "second"}))
		Expect(resp.LastText()).To(Equal("second"))
		Expect(resp.FinishReason).To(Equal(FinishToolCalls))
		Expect(resp.PromptTokens).To(Equal(12))
		Expect(resp.CompletionTokens).To(Equal(7))
		Expect(resp.ToolCalls).To(HaveLen(1))
		Expect(resp.ToolCalls[0].Name).To(Equal("get_page_paths"))
		Expect(resp.ToolCalls[0].Arguments).To(MatchJSON(`{"start_date":"20240101"}`))
	})

	DescribeTable("mapStopReason",
		func(reason anthropic.StopReason, expected string) {
			Expect(mapStopReason(reason)).To(Equal(expected))
		},
		Entry("end_turn", anthropic.StopReasonEndTurn, FinishStop),
		Entry("missing defaults to end of turn", anthropic.StopReason(""), FinishStop),
		Entry("tool_use", anthropic.StopReasonToolUse, FinishToolCalls),
		Entry("max_tokens", anthropic.StopReasonMaxTokens, FinishLength),
		Entry("stop_sequence", anthropic.StopReasonStopSequence, FinishStop),
	)
})
