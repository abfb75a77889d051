package worker_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"github.com/oraclewalid/discoveo/common/llm"
	"github.com/oraclewalid/discoveo/internal/analytics"
	"github.com/oraclewalid/discoveo/internal/cro"
	"github.com/oraclewalid/discoveo/internal/model"
	"github.com/oraclewalid/discoveo/internal/qualitative"
	"github.com/oraclewalid/discoveo/internal/queue"
	"github.com/oraclewalid/discoveo/internal/store"
	"github.com/oraclewalid/discoveo/internal/worker"
)

func message(id string, attempt int) queue.Message {
	connectorID := uuid.New()
	return queue.Message{
		ID:          id,
		TaskType:    queue.TaskTypeCroReport,
		ProjectID:   uuid.New(),
		ConnectorID: &connectorID,
		RunID:       99,
		Attempt:     attempt,
	}
}

var _ = Describe("Worker", func() {
	var (
		ctx      context.Context
		consumer *mockConsumer
	)

	BeforeEach(func() {
		ctx = context.Background()
		consumer = &mockConsumer{}
	})

	newWorker := func(fn queue.MessageProcessor) *worker.Worker {
		return worker.New(consumer, fn, worker.Config{MaxAttempts: 3})
	}

	It("acknowledges processed messages", func() {
		w := newWorker(func(context.Context, queue.Message) error { return nil })
		w.Handle(ctx, message("1-0", 1))
		Expect(consumer.acked).To(ConsistOf("1-0"))
		Expect(consumer.requeued).To(BeEmpty())
	})

	It("requeues transient failures while attempts remain", func() {
		w := newWorker(func(context.Context, queue.Message) error { return errors.New("connection reset") })
		w.Handle(ctx, message("1-0", 1))
		Expect(consumer.requeued).To(ConsistOf("1-0"))
		Expect(consumer.dlq).To(BeEmpty())
	})

	It("sends transient failures to the DLQ after the last attempt", func() {
		w := newWorker(func(context.Context, queue.Message) error { return errors.New("connection reset") })
		w.Handle(ctx, message("1-0", 3))
		Expect(consumer.requeued).To(BeEmpty())
		Expect(consumer.dlq).To(HaveKeyWithValue("1-0", "connection reset"))
	})

	It("sends permanent failures to the DLQ right away", func() {
		w := newWorker(func(context.Context, queue.Message) error {
			return fmt.Errorf("generating cro report: %w", analytics.ErrNoData)
		})
		w.Handle(ctx, message("1-0", 1))
		Expect(consumer.requeued).To(BeEmpty())
		Expect(consumer.dlq).To(HaveKey("1-0"))
	})

	It("recovers from panics", func() {
		w := newWorker(func(context.Context, queue.Message) error { panic("boom") })
		Expect(func() { w.Handle(ctx, message("1-0", 1)) }).NotTo(Panic())
		Expect(consumer.requeued).To(ConsistOf("1-0"))
	})

	It("drains batches until stopped", func() {
		consumer.batches = [][]queue.Message{{message("1-0", 1), message("2-0", 1)}}
		processed := make(chan string, 2)
		w := newWorker(func(_ context.Context, msg queue.Message) error {
			processed <- msg.ID
			return nil
		})

		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- w.Run(runCtx) }()

		Eventually(processed).Should(Receive(Equal("1-0")))
		Eventually(processed).Should(Receive(Equal("2-0")))
		cancel()
		Eventually(done).Should(Receive(MatchError(context.Canceled)))
	})
})

var _ = Describe("Retryable", func() {
	ctx := context.Background()

	DescribeTable("classifies failures",
		func(err error, expected bool) {
			Expect(worker.Retryable(ctx, err)).To(Equal(expected))
		},
		Entry("nil", nil, false),
		Entry("network error", errors.New("dial tcp: i/o timeout"), true),
		Entry("no data", fmt.Errorf("x: %w", analytics.ErrNoData), false),
		Entry("not found", fmt.Errorf("x: %w", store.ErrNotFound), false),
		Entry("too few comments", qualitative.ErrNotEnoughComments, false),
		Entry("missing credential", &cro.RunError{Kind: cro.KindPrecondition, Err: &llm.CredentialError{Env: "X"}}, false),
		Entry("unparseable report", &cro.RunError{Kind: cro.KindTerminal, Err: &cro.ParseError{Err: errors.New("bad")}}, false),
		Entry("cancelled", context.Canceled, false),
		Entry("disabled task", worker.ErrTaskDisabled, false),
	)
})

var _ = Describe("Processor", func() {
	var (
		ctx      context.Context
		progress *recordingProgress
	)

	BeforeEach(func() {
		ctx = context.Background()
		progress = &recordingProgress{}
	})

	It("runs cro reports under the queued run id", func() {
		var gotRun int64
		reports := &mockReports{generateFn: func(_ context.Context, _, _ uuid.UUID, runID int64) (*model.CroReport, error) {
			gotRun = runID
			return &model.CroReport{ID: uuid.New()}, nil
		}}
		p := worker.NewProcessor(reports, nil, nil, progress)

		Expect(p.Process(ctx, message("1-0", 1))).To(Succeed())
		Expect(gotRun).To(Equal(int64(99)))
		Expect(progress.events).To(BeEmpty())
	})

	It("publishes a failure event when a run is rejected up front", func() {
		reports := &mockReports{generateFn: func(context.Context, uuid.UUID, uuid.UUID, int64) (*model.CroReport, error) {
			return nil, &cro.RunError{Kind: cro.KindPrecondition, Err: analytics.ErrNoData}
		}}
		p := worker.NewProcessor(reports, nil, nil, progress)

		msg := message("1-0", 1)
		err := p.Process(ctx, msg)
		Expect(errors.Is(err, analytics.ErrNoData)).To(BeTrue())
		Expect(progress.events).To(HaveLen(1))
		Expect(progress.events[0].Type).To(Equal(cro.EventRunFailed))
		Expect(progress.events[0].RunID).To(Equal(int64(99)))
		Expect(progress.events[0].ProjectID).To(Equal(msg.ProjectID))
	})

	It("rejects a cro report without a connector as permanent", func() {
		called := false
		reports := &mockReports{generateFn: func(context.Context, uuid.UUID, uuid.UUID, int64) (*model.CroReport, error) {
			called = true
			return &model.CroReport{ID: uuid.New()}, nil
		}}
		p := worker.NewProcessor(reports, nil, nil, progress)

		msg := message("1-0", 1)
		msg.ConnectorID = nil
		var err error
		Expect(func() { err = p.Process(ctx, msg) }).NotTo(Panic())
		Expect(err).To(MatchError(worker.ErrInvalidTask))
		Expect(worker.Retryable(ctx, err)).To(BeFalse())
		Expect(called).To(BeFalse())
	})

	It("runs embedding backfills", func() {
		p := worker.NewProcessor(nil, &mockBackfiller{result: &qualitative.BackfillResult{Total: 3, Completed: 3}}, nil, nil)
		Expect(p.Process(ctx, queue.Message{TaskType: queue.TaskTypeSurveyEmbedding, ProjectID: uuid.New()})).To(Succeed())
	})

	It("forwards the force flag to feedback analysis", func() {
		analyzer := &mockAnalyzer{}
		p := worker.NewProcessor(nil, nil, analyzer, nil)
		Expect(p.Process(ctx, queue.Message{TaskType: queue.TaskTypeFeedbackAnalysis, ProjectID: uuid.New(), Force: true})).To(Succeed())
		Expect(analyzer.gotForce).To(BeTrue())
	})

	It("rejects tasks without a configured dependency", func() {
		p := worker.NewProcessor(nil, nil, nil, nil)
		err := p.Process(ctx, queue.Message{TaskType: queue.TaskTypeSurveyEmbedding, ProjectID: uuid.New()})
		Expect(err).To(MatchError(worker.ErrTaskDisabled))
	})
})

var _ = Describe("Reclaimer", func() {
	It("hands stale pending messages to the handler", func() {
		ctx := context.Background()
		mr := miniredis.RunT(GinkgoT())
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		DeferCleanup(client.Close)

		cfg := queue.ConsumerConfig{Stream: "tasks", Group: "workers", Consumer: "dead", Block: -1, BatchSize: 10}
		dead, err := queue.NewRedisConsumer(client, cfg)
		Expect(err).NotTo(HaveOccurred())
		cfg.Consumer = "alive"
		alive, err := queue.NewRedisConsumer(client, cfg)
		Expect(err).NotTo(HaveOccurred())

		projectID := uuid.New()
		producer := queue.NewRedisProducer(client, "tasks", nil)
		Expect(producer.Enqueue(ctx, queue.Task{TaskType: queue.TaskTypeSurveyEmbedding, ProjectID: projectID})).To(Succeed())

		read, err := dead.Read(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(read).To(HaveLen(1))

		var handled []queue.Message
		reclaimer := worker.NewReclaimer(worker.ReclaimerConfig{BatchSize: 10}, alive, func(_ context.Context, msg queue.Message) {
			handled = append(handled, msg)
		})
		Expect(reclaimer.ReclaimOnce(ctx)).To(Succeed())

		Expect(handled).To(HaveLen(1))
		Expect(handled[0].ProjectID).To(Equal(projectID))
	})
})
