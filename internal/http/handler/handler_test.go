package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/oraclewalid/discoveo/common/llm"
	"github.com/oraclewalid/discoveo/internal/analytics"
	"github.com/oraclewalid/discoveo/internal/cro"
	"github.com/oraclewalid/discoveo/internal/http/handler"
	"github.com/oraclewalid/discoveo/internal/model"
	"github.com/oraclewalid/discoveo/internal/qualitative"
	"github.com/oraclewalid/discoveo/internal/service"
)

func serve(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func serveWithHeader(router *gin.Engine, path, key, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set(key, value)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var resp map[string]any
	Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
	return resp
}

var _ = Describe("CroHandler", func() {
	var (
		router    *gin.Engine
		svc       *mockReportService
		projectID uuid.UUID
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		svc = &mockReportService{}
		projectID = uuid.New()

		h := handler.NewCroHandler(svc)
		router.POST("/projects/:project_id/cro/report", h.Generate)
		router.POST("/projects/:project_id/cro/report/jobs", h.Enqueue)
		router.GET("/projects/:project_id/cro/reports", h.List)
		router.GET("/projects/:project_id/cro/reports/:report_id", h.Get)
	})

	reportPath := func() string { return fmt.Sprintf("/projects/%s/cro/report", projectID) }

	It("returns the generated report", func() {
		svc.generateFn = func(_ context.Context, pid uuid.UUID) (*model.CroReport, error) {
			return &model.CroReport{ID: uuid.New(), ProjectID: pid, ExecutiveSummary: "Checkout leaks users"}, nil
		}

		w := serve(router, http.MethodPost, reportPath(), nil)

		Expect(w.Code).To(Equal(http.StatusOK))
		resp := decode(w)
		Expect(resp["executive_summary"]).To(Equal("Checkout leaks users"))
		Expect(resp["project_id"]).To(Equal(projectID.String()))
	})

	It("rejects malformed project ids", func() {
		w := serve(router, http.MethodPost, "/projects/not-a-uuid/cro/report", nil)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(decode(w)["error"]).To(Equal("invalid project_id"))
	})

	DescribeTable("maps generation failures",
		func(err error, status int) {
			svc.generateFn = func(context.Context, uuid.UUID) (*model.CroReport, error) { return nil, err }
			w := serve(router, http.MethodPost, reportPath(), nil)
			Expect(w.Code).To(Equal(status))
			Expect(decode(w)).To(HaveKey("error"))
		},
		Entry("unknown project", service.ErrProjectNotFound, http.StatusNotFound),
		Entry("no GA4 connector", service.ErrNoGA4Connector, http.StatusNotFound),
		Entry("no data", &cro.RunError{Kind: cro.KindPrecondition, Err: analytics.ErrNoData}, http.StatusPreconditionFailed),
		Entry("no credential", &cro.RunError{Kind: cro.KindPrecondition, Err: &llm.CredentialError{Env: "AWS_BEARER_TOKEN_BEDROCK"}}, http.StatusServiceUnavailable),
		Entry("unparseable answer", &cro.RunError{Kind: cro.KindTerminal, Err: &cro.ParseError{Err: errors.New("no JSON object")}}, http.StatusBadGateway),
		Entry("provider failure", &cro.RunError{Kind: cro.KindTerminal, Err: errors.New("cro agent turn 1: boom")}, http.StatusBadGateway),
		Entry("anything else", errors.New("db down"), http.StatusInternalServerError),
	)

	It("hides internal error details", func() {
		svc.generateFn = func(context.Context, uuid.UUID) (*model.CroReport, error) {
			return nil, errors.New("pq: password authentication failed")
		}
		w := serve(router, http.MethodPost, reportPath(), nil)
		Expect(decode(w)["error"]).To(Equal("internal server error"))
	})

	It("accepts report jobs with a string run id", func() {
		connectorID := uuid.New()
		svc.enqueueFn = func(_ context.Context, pid uuid.UUID) (*service.ReportJob, error) {
			return &service.ReportJob{RunID: 1234567890123456789, ProjectID: pid, ConnectorID: connectorID}, nil
		}

		w := serve(router, http.MethodPost, reportPath()+"/jobs", nil)

		Expect(w.Code).To(Equal(http.StatusAccepted))
		resp := decode(w)
		Expect(resp["run_id"]).To(Equal("1234567890123456789"))
		Expect(resp["status"]).To(Equal("queued"))
		Expect(resp["connector_id"]).To(Equal(connectorID.String()))
	})

	It("lists reports as an empty array when there are none", func() {
		svc.listFn = func(context.Context, uuid.UUID) ([]model.CroReport, error) { return nil, nil }

		w := serve(router, http.MethodGet, fmt.Sprintf("/projects/%s/cro/reports", projectID), nil)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(MatchJSON(`{"reports":[],"count":0}`))
	})

	It("returns 404 for reports of another project", func() {
		svc.getFn = func(context.Context, uuid.UUID, uuid.UUID) (*model.CroReport, error) {
			return nil, service.ErrReportNotFound
		}
		w := serve(router, http.MethodGet, fmt.Sprintf("/projects/%s/cro/reports/%s", projectID, uuid.New()), nil)
		Expect(w.Code).To(Equal(http.StatusNotFound))
	})
})

var _ = Describe("AnalyticsHandler", func() {
	var (
		router *gin.Engine
		svc    *mockAnalyticsService
		base   string
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		svc = &mockAnalyticsService{}
		base = fmt.Sprintf("/projects/%s/connectors/ga4/%s", uuid.New(), uuid.New())

		h := handler.NewAnalyticsHandler(svc)
		group := router.Group("/projects/:project_id/connectors/ga4/:connector_id")
		group.GET("/funnel", h.Funnel)
		group.GET("/scroll-depth", h.ScrollDepth)
		group.GET("/page-paths", h.PagePaths)
		group.GET("/debug/events", h.DebugEvents)
	})

	It("passes the dimension and date window through", func() {
		w := serve(router, http.MethodGet, base+"/funnel?dimension=Country&start_date=20240101&end_date=20240131", nil)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(svc.gotDimension).To(Equal(analytics.DimensionCountry))
		Expect(svc.gotStart).To(Equal("20240101"))
		Expect(svc.gotEnd).To(Equal("20240131"))

		var stages []map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &stages)).To(Succeed())
		Expect(stages[0]["funnel_stage"]).To(Equal("Home"))
	})

	It("defaults to the all dimension", func() {
		w := serve(router, http.MethodGet, base+"/scroll-depth", nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(svc.gotDimension).To(Equal(analytics.DimensionAll))
	})

	It("rejects unknown dimensions", func() {
		w := serve(router, http.MethodGet, base+"/funnel?dimension=planet", nil)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("rejects dates that are not YYYYMMDD", func() {
		w := serve(router, http.MethodGet, base+"/funnel?start_date=2024-01-01", nil)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(decode(w)["error"]).To(Equal("start_date must be YYYYMMDD"))
	})

	It("answers 412 when the connector has no dataset", func() {
		svc.err = analytics.ErrNoPageData
		w := serve(router, http.MethodGet, base+"/page-paths", nil)
		Expect(w.Code).To(Equal(http.StatusPreconditionFailed))
		Expect(decode(w)["error"]).To(ContainSubstring("page path"))
	})

	It("answers 404 for connectors of another project", func() {
		svc.err = service.ErrConnectorNotFound
		w := serve(router, http.MethodGet, base+"/debug/events", nil)
		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("answers 400 for non GA4 connectors", func() {
		svc.err = service.ErrNotGA4Connector
		w := serve(router, http.MethodGet, base+"/debug/events", nil)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})
})

var _ = Describe("QualitativeHandler", func() {
	var (
		router *gin.Engine
		svc    *mockQualitativeService
		base   string
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		svc = &mockQualitativeService{}
		base = fmt.Sprintf("/projects/%s/qualitative", uuid.New())

		h := handler.NewQualitativeHandler(svc)
		group := router.Group("/projects/:project_id/qualitative")
		group.GET("/stats", h.Stats)
		group.GET("/embeddings/status", h.EmbeddingStatus)
		group.POST("/embeddings", h.EnqueueEmbeddings)
		group.POST("/comments/search", h.SearchComments)
		group.POST("/feedback", h.AnalyzeFeedback)
	})

	It("returns survey stats", func() {
		w := serve(router, http.MethodGet, base+"/stats", nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(decode(w)["total_responses"]).To(BeNumerically("==", 12))
	})

	It("returns embedding status", func() {
		w := serve(router, http.MethodGet, base+"/embeddings/status", nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(decode(w)["pending"]).To(BeNumerically("==", 2))
	})

	It("queues embedding backfills", func() {
		svc.enqueueFn = func(context.Context, uuid.UUID) (int64, error) { return 42, nil }
		w := serve(router, http.MethodPost, base+"/embeddings", nil)
		Expect(w.Code).To(Equal(http.StatusAccepted))
		Expect(w.Body.String()).To(MatchJSON(`{"job_id":"42","status":"queued"}`))
	})

	It("answers 503 when the queue is not configured", func() {
		svc.enqueueFn = func(context.Context, uuid.UUID) (int64, error) { return 0, service.ErrQueueDisabled }
		w := serve(router, http.MethodPost, base+"/embeddings", nil)
		Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
	})

	Describe("SearchComments", func() {
		It("flattens the matches", func() {
			var got service.SearchQuery
			svc.searchFn = func(_ context.Context, _ uuid.UUID, q service.SearchQuery) ([]model.SimilarComment, error) {
				got = q
				comment := "checkout is slow"
				return []model.SimilarComment{{Response: model.SurveyResponse{Comment: &comment}, Similarity: 0.82}}, nil
			}

			body, _ := json.Marshal(map[string]any{"query": "slow checkout", "limit": 5})
			w := serve(router, http.MethodPost, base+"/comments/search", body)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(got.Query).To(Equal("slow checkout"))
			Expect(got.Limit).To(HaveValue(Equal(5)))
			Expect(got.MinSimilarity).To(BeNil())

			resp := decode(w)
			Expect(resp["query"]).To(Equal("slow checkout"))
			results := resp["results"].([]any)
			Expect(results).To(HaveLen(1))
			Expect(results[0].(map[string]any)["comment"]).To(Equal("checkout is slow"))
			Expect(results[0].(map[string]any)["similarity"]).To(BeNumerically("~", 0.82))
		})

		It("requires a query", func() {
			w := serve(router, http.MethodPost, base+"/comments/search", []byte(`{}`))
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("answers 503 without an embedding provider", func() {
			svc.searchFn = func(context.Context, uuid.UUID, service.SearchQuery) ([]model.SimilarComment, error) {
				return nil, qualitative.ErrNoEmbedder
			}
			w := serve(router, http.MethodPost, base+"/comments/search", []byte(`{"query":"x"}`))
			Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
		})
	})

	Describe("AnalyzeFeedback", func() {
		It("forwards force", func() {
			var gotForce bool
			svc.analyzeFn = func(_ context.Context, pid uuid.UUID, force bool) (*model.FeedbackAnalysis, error) {
				gotForce = force
				return &model.FeedbackAnalysis{ProjectID: pid, Narrative: "Users want faster delivery"}, nil
			}

			w := serve(router, http.MethodPost, base+"/feedback?force=true", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(gotForce).To(BeTrue())
			Expect(decode(w)["narrative"]).To(Equal("Users want faster delivery"))
		})

		It("rejects a malformed force flag", func() {
			w := serve(router, http.MethodPost, base+"/feedback?force=maybe", nil)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("answers 412 with too few comments", func() {
			svc.analyzeFn = func(context.Context, uuid.UUID, bool) (*model.FeedbackAnalysis, error) {
				return nil, qualitative.ErrNotEnoughComments
			}
			w := serve(router, http.MethodPost, base+"/feedback", nil)
			Expect(w.Code).To(Equal(http.StatusPreconditionFailed))
			Expect(decode(w)["error"]).To(Equal("Not enough comments for analysis (minimum 5 required)"))
		})
	})
})
