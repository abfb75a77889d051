package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/oraclewalid/discoveo/common/id"
	"github.com/oraclewalid/discoveo/common/logger"
	"github.com/oraclewalid/discoveo/core/config"
	"github.com/oraclewalid/discoveo/core/db"
	"github.com/oraclewalid/discoveo/internal/app"
	"github.com/oraclewalid/discoveo/internal/cro"
	"github.com/oraclewalid/discoveo/internal/model"
)

var (
	connectorFlag string
	outputFlag    string
	compactFlag   bool
)

func main() {
	root := &cobra.Command{
		Use:   "audit <project-id>",
		Short: "Run one CRO audit and print the report as JSON",
		Long: `Runs the CRO agent against a project's GA4 dataset and survey data,
the same way the server does, and prints the resulting report.
Progress goes to stderr, the report to stdout (or --output).`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         runAudit,
	}
	root.Flags().StringVar(&connectorFlag, "connector", "", "GA4 connector id (default: the project's first GA4 connector)")
	root.Flags().StringVarP(&outputFlag, "output", "o", "", "write the report to this file instead of stdout")
	root.Flags().BoolVar(&compactFlag, "compact", false, "print the report without indentation")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runAudit(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	projectID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid project id %q: %w", args[0], err)
	}

	cfg, err := config.Load(config.ServiceTypeAudit)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.Setup(cfg)

	// Node 3 so run ids never collide with the server or the worker
	if err := id.Init(3); err != nil {
		return fmt.Errorf("initializing id generator: %w", err)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()

	components, err := app.Build(ctx, cfg, database, nil, cro.WithProgress(stderrProgress{}))
	if err != nil {
		return err
	}

	connectorID, err := resolveConnector(ctx, components, projectID)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Auditing project %s (connector %s)\n---\n", projectID, connectorID)

	report, err := components.Agent.GenerateReport(ctx, projectID, connectorID)
	if err != nil {
		return fmt.Errorf("audit failed: %w", err)
	}

	return writeReport(report)
}

func resolveConnector(ctx context.Context, c *app.Components, projectID uuid.UUID) (uuid.UUID, error) {
	if connectorFlag != "" {
		connectorID, err := uuid.Parse(connectorFlag)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid connector id %q: %w", connectorFlag, err)
		}
		return connectorID, nil
	}

	connector, err := c.Stores.Connectors().FirstByType(ctx, projectID, model.ConnectorTypeGA4)
	if err != nil {
		return uuid.Nil, fmt.Errorf("finding GA4 connector: %w", err)
	}
	return connector.ID, nil
}

func writeReport(report *model.CroReport) error {
	var data []byte
	var err error
	if compactFlag {
		data, err = json.Marshal(report)
	} else {
		data, err = json.MarshalIndent(report, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	data = append(data, '\n')

	if outputFlag == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(outputFlag, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Report written to %s\n", outputFlag)
	return nil
}

// stderrProgress prints run progress for the terminal.
type stderrProgress struct{}

func (stderrProgress) Report(_ context.Context, e cro.ProgressEvent) {
	switch e.Type {
	case cro.EventRunStarted:
		fmt.Fprintf(os.Stderr, "run %d started\n", e.RunID)
	case cro.EventToolExecuted:
		fmt.Fprintf(os.Stderr, "  turn %d: %s\n", e.Turn, e.Tool)
	case cro.EventTurnCompleted:
		fmt.Fprintf(os.Stderr, "turn %d done (%d tool calls)\n", e.Turn, e.ToolCalls)
	case cro.EventRunCompleted:
		fmt.Fprintf(os.Stderr, "run %d completed\n", e.RunID)
	case cro.EventRunFailed:
		fmt.Fprintf(os.Stderr, "run %d failed: %s\n", e.RunID, e.Error)
	}
}
