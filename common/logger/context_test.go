package logger_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/oraclewalid/discoveo/common/logger"
)

var _ = Describe("WithLogFields", func() {
	It("returns empty fields for a bare context", func() {
		Expect(logger.GetLogFields(context.Background())).To(Equal(logger.LogFields{}))
	})

	It("merges newer values over older ones", func() {
		ctx := logger.WithLogFields(context.Background(), logger.LogFields{
			ProjectID: logger.Ptr("p-1"),
			Component: "discoveo.http",
		})
		ctx = logger.WithLogFields(ctx, logger.LogFields{
			RunID:     logger.Ptr(int64(42)),
			Component: "discoveo.cro.agent",
		})

		fields := logger.GetLogFields(ctx)
		Expect(*fields.ProjectID).To(Equal("p-1"))
		Expect(*fields.RunID).To(Equal(int64(42)))
		Expect(fields.Component).To(Equal("discoveo.cro.agent"))
	})

	It("does not clear fields with empty values", func() {
		ctx := logger.WithLogFields(context.Background(), logger.LogFields{Tool: logger.Ptr("get_page_paths")})
		ctx = logger.WithLogFields(ctx, logger.LogFields{})
		Expect(*logger.GetLogFields(ctx).Tool).To(Equal("get_page_paths"))
	})
})

var _ = Describe("TraceHandler", func() {
	It("adds context fields to every record", func() {
		var buf bytes.Buffer
		log := slog.New(logger.NewTraceHandler(slog.NewTextHandler(&buf, nil)))

		ctx := logger.WithLogFields(context.Background(), logger.LogFields{
			ConnectorID: logger.Ptr("c-9"),
			TaskType:    logger.Ptr("cro_report"),
		})
		log.InfoContext(ctx, "hello")

		out := buf.String()
		Expect(out).To(ContainSubstring("connector_id=c-9"))
		Expect(out).To(ContainSubstring("task_type=cro_report"))
		Expect(out).NotTo(ContainSubstring("trace_id"))
	})
})

var _ = Describe("Truncate", func() {
	DescribeTable("truncates long strings",
		func(in string, max int, expected string) {
			Expect(logger.Truncate(in, max)).To(Equal(expected))
		},
		Entry("short string unchanged", "abc", 5, "abc"),
		Entry("exact length unchanged", "abcde", 5, "abcde"),
		Entry("long string cut", strings.Repeat("x", 8), 5, "xxxxx..."),
	)
})
