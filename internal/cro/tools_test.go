package cro_test

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/oraclewalid/discoveo/internal/analytics"
	"github.com/oraclewalid/discoveo/internal/cro"
	"github.com/oraclewalid/discoveo/internal/model"
)

func decode(out string) map[string]any {
	var v map[string]any
	ExpectWithOffset(1, json.Unmarshal([]byte(out), &v)).To(Succeed())
	return v
}

func decodeList(out string) []map[string]any {
	var v []map[string]any
	ExpectWithOffset(1, json.Unmarshal([]byte(out), &v)).To(Succeed())
	return v
}

func sampleFunnel() []analytics.FunnelStage {
	return []analytics.FunnelStage{
		{StageOrder: 1, Dimension: "ALL", FunnelStage: "Home", TotalUsers: 100, ConversionFromStartPct: f64(100)},
		{StageOrder: 2, Dimension: "ALL", FunnelStage: "PLP", TotalUsers: 80, PrevStageUsers: i64(100), UsersDropped: i64(20), DropoffPct: f64(20)},
		{StageOrder: 3, Dimension: "ALL", FunnelStage: "PDP", TotalUsers: 50, PrevStageUsers: i64(80), UsersDropped: i64(30), DropoffPct: f64(37.5)},
		{StageOrder: 4, Dimension: "ALL", FunnelStage: "Cart", TotalUsers: 50, PrevStageUsers: i64(50), UsersDropped: i64(0), DropoffPct: f64(0)},
	}
}

var _ = Describe("Tools", func() {
	var (
		ctx        context.Context
		funnel     *mockFunnel
		feedback   *mockFeedback
		dispatcher *cro.Dispatcher
	)

	BeforeEach(func() {
		ctx = context.Background()
		funnel = &mockFunnel{hasData: true}
		feedback = &mockFeedback{}
		dispatcher = cro.NewTools(funnel, feedback).ForRun(uuid.New(), uuid.New())
	})

	Describe("Definitions", func() {
		It("declares the eight tools in catalog order", func() {
			defs := cro.NewTools(funnel, feedback).Definitions()
			names := make([]string, len(defs))
			for i, d := range defs {
				names[i] = d.Name
				Expect(d.Description).NotTo(BeEmpty())
				Expect(d.Parameters).NotTo(BeNil())
			}
			Expect(names).To(Equal([]string{
				"get_funnel_overview",
				"compare_periods",
				"get_page_paths",
				"get_drop_off_points",
				"search_survey_comments",
				"get_survey_by_period",
				"get_survey_stats",
				"get_feedback_themes",
			}))
		})

		It("marks required inputs in the schema", func() {
			defs := cro.NewTools(funnel, feedback).Definitions()
			data, err := json.Marshal(defs[1].Parameters)
			Expect(err).NotTo(HaveOccurred())

			var schema struct {
				Required []string `json:"required"`
			}
			Expect(json.Unmarshal(data, &schema)).To(Succeed())
			Expect(schema.Required).To(ConsistOf("period_a_start", "period_a_end", "period_b_start", "period_b_end"))
		})
	})

	Describe("Dispatch", func() {
		It("reports unknown tools as an error", func() {
			out := dispatcher.Dispatch(ctx, "unknown_tool", "{}")
			Expect(decode(out)).To(HaveKeyWithValue("error", "Unknown tool: unknown_tool"))
		})

		It("reports invalid JSON input", func() {
			out := dispatcher.Dispatch(ctx, "get_funnel_overview", "{not json")
			Expect(decode(out)["error"]).To(HavePrefix("Invalid tool input"))
		})

		It("names the first missing required field", func() {
			out := dispatcher.Dispatch(ctx, "get_funnel_overview", `{"start_date":"20240101"}`)
			Expect(decode(out)).To(HaveKeyWithValue("error", "Missing required field: end_date"))
		})

		It("treats empty input as an empty object", func() {
			out := dispatcher.Dispatch(ctx, "get_survey_stats", "")
			Expect(decode(out)).To(HaveKey("total_responses"))
		})

		It("turns a panicking tool into an error", func() {
			funnel.funnelFn = func(context.Context, analytics.Dimension, string, string) ([]analytics.FunnelStage, error) {
				panic("boom")
			}
			out := dispatcher.Dispatch(ctx, "get_funnel_overview", `{"start_date":"20240101","end_date":"20240131"}`)
			Expect(decode(out)).To(HaveKey("error"))
		})

		DescribeTable("rejects dates that are not YYYYMMDD",
			func(tool, input, message string) {
				called := false
				funnel.funnelFn = func(context.Context, analytics.Dimension, string, string) ([]analytics.FunnelStage, error) {
					called = true
					return sampleFunnel(), nil
				}
				funnel.pagePathsFn = func(context.Context, string, string) ([]analytics.PagePathStats, error) {
					called = true
					return nil, nil
				}

				out := dispatcher.Dispatch(ctx, tool, input)
				Expect(decode(out)).To(HaveKeyWithValue("error", message))
				Expect(called).To(BeFalse())
			},
			Entry("funnel overview start", "get_funnel_overview",
				`{"start_date":"2024-01-01","end_date":"2024-01-31"}`,
				`Invalid start_date format (expected YYYYMMDD): "2024-01-01"`),
			Entry("funnel overview end", "get_funnel_overview",
				`{"start_date":"20240101","end_date":"20240231"}`,
				`Invalid end_date format (expected YYYYMMDD): "20240231"`),
			Entry("compare periods", "compare_periods",
				`{"period_a_start":"20240101","period_a_end":"20240131","period_b_start":"2024-02-01","period_b_end":"20240229"}`,
				`Invalid period_b_start format (expected YYYYMMDD): "2024-02-01"`),
			Entry("page paths", "get_page_paths",
				`{"start_date":"20240101","end_date":"31/01/2024"}`,
				`Invalid end_date format (expected YYYYMMDD): "31/01/2024"`),
			Entry("drop-off points", "get_drop_off_points",
				`{"start_date":"2024-01-01","end_date":"2024-01-31"}`,
				`Invalid start_date format (expected YYYYMMDD): "2024-01-01"`),
		)

		It("wraps downstream failures", func() {
			funnel.funnelFn = func(context.Context, analytics.Dimension, string, string) ([]analytics.FunnelStage, error) {
				return nil, analytics.ErrNoData
			}
			out := dispatcher.Dispatch(ctx, "get_funnel_overview", `{"start_date":"20240101","end_date":"20240131"}`)
			Expect(decode(out)).To(HaveKeyWithValue("error", analytics.ErrNoData.Error()))
		})
	})

	Describe("get_funnel_overview", func() {
		It("passes the dates and falls back to the all dimension", func() {
			var gotDim analytics.Dimension
			var gotStart, gotEnd string
			funnel.funnelFn = func(_ context.Context, dim analytics.Dimension, start, end string) ([]analytics.FunnelStage, error) {
				gotDim, gotStart, gotEnd = dim, start, end
				return sampleFunnel(), nil
			}

			out := dispatcher.Dispatch(ctx, "get_funnel_overview", `{"start_date":"20240101","end_date":"20240331","dimension":"galaxy"}`)
			stages := decodeList(out)
			Expect(stages).To(HaveLen(4))
			Expect(stages[2]).To(HaveKeyWithValue("funnel_stage", "PDP"))
			Expect(stages[2]).To(HaveKeyWithValue("dropoff_pct", 37.5))
			Expect(gotDim).To(Equal(analytics.DimensionAll))
			Expect(gotStart).To(Equal("20240101"))
			Expect(gotEnd).To(Equal("20240331"))
		})

		It("forwards a known dimension", func() {
			var gotDim analytics.Dimension
			funnel.funnelFn = func(_ context.Context, dim analytics.Dimension, _, _ string) ([]analytics.FunnelStage, error) {
				gotDim = dim
				return []analytics.FunnelStage{}, nil
			}
			dispatcher.Dispatch(ctx, "get_funnel_overview", `{"start_date":"20240101","end_date":"20240331","dimension":"device_category"}`)
			Expect(gotDim).To(Equal(analytics.DimensionDeviceCategory))
		})
	})

	Describe("compare_periods", func() {
		It("returns identical funnels for identical periods", func() {
			funnel.funnelFn = func(context.Context, analytics.Dimension, string, string) ([]analytics.FunnelStage, error) {
				return sampleFunnel(), nil
			}
			out := dispatcher.Dispatch(ctx, "compare_periods",
				`{"period_a_start":"20240101","period_a_end":"20240131","period_b_start":"20240101","period_b_end":"20240131"}`)

			var result struct {
				PeriodA struct {
					Start  string            `json:"start"`
					End    string            `json:"end"`
					Funnel []json.RawMessage `json:"funnel"`
				} `json:"period_a"`
				PeriodB struct {
					Start  string            `json:"start"`
					End    string            `json:"end"`
					Funnel []json.RawMessage `json:"funnel"`
				} `json:"period_b"`
			}
			Expect(json.Unmarshal([]byte(out), &result)).To(Succeed())
			Expect(result.PeriodA.Start).To(Equal("20240101"))
			Expect(result.PeriodB.End).To(Equal("20240131"))
			Expect(result.PeriodA.Funnel).To(HaveLen(4))
			Expect(result.PeriodA.Funnel).To(Equal(result.PeriodB.Funnel))
		})

		It("requires all four dates", func() {
			out := dispatcher.Dispatch(ctx, "compare_periods", `{"period_a_start":"20240101","period_a_end":"20240131","period_b_end":"20240131"}`)
			Expect(decode(out)).To(HaveKeyWithValue("error", "Missing required field: period_b_start"))
		})
	})

	Describe("get_drop_off_points", func() {
		It("keeps positive drop-offs sorted by severity", func() {
			var gotDim analytics.Dimension
			funnel.funnelFn = func(_ context.Context, dim analytics.Dimension, _, _ string) ([]analytics.FunnelStage, error) {
				gotDim = dim
				return sampleFunnel(), nil
			}
			out := dispatcher.Dispatch(ctx, "get_drop_off_points", `{"start_date":"20240101","end_date":"20240131"}`)
			drops := decodeList(out)
			Expect(drops).To(HaveLen(2))
			Expect(drops[0]).To(HaveKeyWithValue("funnel_stage", "PDP"))
			Expect(drops[1]).To(HaveKeyWithValue("funnel_stage", "PLP"))
			Expect(gotDim).To(Equal(analytics.DimensionAll))
		})

		It("keeps funnel order between equal drop-offs", func() {
			funnel.funnelFn = func(context.Context, analytics.Dimension, string, string) ([]analytics.FunnelStage, error) {
				return []analytics.FunnelStage{
					{StageOrder: 1, Dimension: "ALL", FunnelStage: "Home", TotalUsers: 100},
					{StageOrder: 2, Dimension: "ALL", FunnelStage: "PLP", TotalUsers: 80, DropoffPct: f64(20)},
					{StageOrder: 3, Dimension: "ALL", FunnelStage: "PDP", TotalUsers: 40, DropoffPct: f64(50)},
					{StageOrder: 4, Dimension: "ALL", FunnelStage: "Cart", TotalUsers: 40, DropoffPct: f64(0)},
					{StageOrder: 5, Dimension: "ALL", FunnelStage: "Checkout", TotalUsers: 32, DropoffPct: f64(20)},
				}, nil
			}
			out := dispatcher.Dispatch(ctx, "get_drop_off_points", `{"start_date":"20240101","end_date":"20240131"}`)
			drops := decodeList(out)
			Expect(drops).To(HaveLen(3))
			Expect(drops[0]).To(HaveKeyWithValue("funnel_stage", "PDP"))
			Expect(drops[1]).To(HaveKeyWithValue("funnel_stage", "PLP"))
			Expect(drops[2]).To(HaveKeyWithValue("funnel_stage", "Checkout"))
		})

		It("returns an empty array when nothing drops", func() {
			out := dispatcher.Dispatch(ctx, "get_drop_off_points", `{"start_date":"20240101","end_date":"20240131"}`)
			Expect(out).To(Equal("[]"))
		})
	})

	Describe("get_page_paths", func() {
		It("returns page stats", func() {
			funnel.pagePathsFn = func(context.Context, string, string) ([]analytics.PagePathStats, error) {
				return []analytics.PagePathStats{{PagePath: "/checkout", TotalPageviews: 10, TotalUsers: 4}}, nil
			}
			out := dispatcher.Dispatch(ctx, "get_page_paths", `{"start_date":"20240101","end_date":"20240131"}`)
			Expect(decodeList(out)[0]).To(HaveKeyWithValue("page_path", "/checkout"))
		})
	})

	Describe("search_survey_comments", func() {
		It("applies defaults and simplifies hits", func() {
			var gotLimit int
			var gotMin float64
			date := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)
			feedback.searchFn = func(_ context.Context, query string, limit int, minSimilarity float64) ([]model.SimilarComment, error) {
				gotLimit, gotMin = limit, minSimilarity
				return []model.SimilarComment{{
					Response: model.SurveyResponse{
						Comment: str("shipping is too expensive"),
						Rating:  f64(2),
						Date:    &date,
						Country: str("France"),
						Device:  str("mobile"),
					},
					Similarity: 0.82,
				}}, nil
			}

			out := dispatcher.Dispatch(ctx, "search_survey_comments", `{"query":"shipping cost"}`)
			hits := decodeList(out)
			Expect(gotLimit).To(Equal(10))
			Expect(gotMin).To(Equal(0.3))
			Expect(hits).To(HaveLen(1))
			Expect(hits[0]).To(HaveKeyWithValue("comment", "shipping is too expensive"))
			Expect(hits[0]).To(HaveKeyWithValue("similarity", 0.82))
			Expect(hits[0]).To(HaveKeyWithValue("date", "2024-03-05"))
			Expect(hits[0]).To(HaveKeyWithValue("url", BeNil()))
			Expect(hits[0]).NotTo(HaveKey("embedding"))
		})

		It("honors an explicit zero similarity threshold", func() {
			gotMin := -1.0
			feedback.searchFn = func(_ context.Context, _ string, _ int, minSimilarity float64) ([]model.SimilarComment, error) {
				gotMin = minSimilarity
				return nil, nil
			}
			dispatcher.Dispatch(ctx, "search_survey_comments", `{"query":"x","min_similarity":0}`)
			Expect(gotMin).To(Equal(0.0))
		})

		It("requires a query", func() {
			out := dispatcher.Dispatch(ctx, "search_survey_comments", `{"query":"  "}`)
			Expect(decode(out)).To(HaveKeyWithValue("error", "Missing required field: query"))
		})

		It("reports missing survey data", func() {
			d := cro.NewTools(funnel, nil).ForRun(uuid.New(), uuid.New())
			out := d.Dispatch(ctx, "search_survey_comments", `{"query":"x"}`)
			Expect(decode(out)).To(HaveKey("error"))
		})
	})

	Describe("get_survey_by_period", func() {
		It("covers whole days", func() {
			var gotStart, gotEnd time.Time
			var gotLimit int
			feedback.periodFn = func(_ context.Context, start, end time.Time, limit int) ([]model.SurveyComment, error) {
				gotStart, gotEnd, gotLimit = start, end, limit
				return []model.SurveyComment{{Comment: "slow", Rating: f64(1)}}, nil
			}

			out := dispatcher.Dispatch(ctx, "get_survey_by_period", `{"start_date":"2024-01-01","end_date":"2024-01-31"}`)
			Expect(decodeList(out)[0]).To(HaveKeyWithValue("comment", "slow"))
			Expect(gotStart).To(BeTemporally("==", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
			Expect(gotEnd).To(BeTemporally("==", time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)))
			Expect(gotLimit).To(Equal(50))
		})

		DescribeTable("rejects malformed dates",
			func(input, prefix string) {
				out := dispatcher.Dispatch(ctx, "get_survey_by_period", input)
				Expect(decode(out)["error"]).To(HavePrefix(prefix))
			},
			Entry("start", `{"start_date":"20240101","end_date":"2024-01-31"}`, "Invalid start_date format (expected YYYY-MM-DD)"),
			Entry("end", `{"start_date":"2024-01-01","end_date":"31/01/2024"}`, "Invalid end_date format (expected YYYY-MM-DD)"),
		)
	})

	Describe("get_feedback_themes", func() {
		It("explains when no analysis exists", func() {
			out := dispatcher.Dispatch(ctx, "get_feedback_themes", "{}")
			Expect(decode(out)).To(HaveKeyWithValue("message",
				"No feedback analysis available. Survey comments have not been analyzed yet."))
		})

		It("returns the latest analysis", func() {
			feedback.analysis = &model.FeedbackAnalysis{
				CreatedAt: time.Date(2024, 2, 1, 9, 5, 0, 0, time.UTC),
				Narrative: "Users want cheaper shipping.",
				Analysis: model.StructuredAnalysis{
					Themes:             []model.Theme{{Name: "Shipping", Sentiment: "negative"}},
					SentimentBreakdown: model.SentimentBreakdown{PositivePct: 20, NegativePct: 70, NeutralPct: 10},
				},
			}

			out := decode(dispatcher.Dispatch(ctx, "get_feedback_themes", "{}"))
			Expect(out).To(HaveKeyWithValue("narrative", "Users want cheaper shipping."))
			Expect(out).To(HaveKeyWithValue("created_at", "2024-02-01 09:05"))
			Expect(out["themes"]).To(HaveLen(1))
			Expect(out).To(HaveKey("sentiment_breakdown"))
		})

		It("reports lookup failures", func() {
			feedback.latestErr = errors.New("connection refused")
			out := dispatcher.Dispatch(ctx, "get_feedback_themes", "{}")
			Expect(decode(out)).To(HaveKeyWithValue("error", "connection refused"))
		})
	})
})
