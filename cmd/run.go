package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/salescout/discovery/internal/app"
	"github.com/salescout/discovery/internal/config"
	"github.com/salescout/discovery/internal/discovery"
	"github.com/salescout/discovery/internal/pipeline"
)

func newRunCmd() *cobra.Command {
	var (
		projectID string
		userID    string
	)
	cmd := &cobra.Command{
		Use:   "run [request text]",
		Short: "Run one discovery pipeline from the command line",
		Long: `Runs the discovery pipeline once for the given request text and
prints each progress event as a JSON line. With the in-memory database a
throwaway project is seeded automatically, which makes this command useful
for smoke-testing prompts and scraper behavior.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, projectID, userID, strings.Join(args, " "))
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "target project id (required with a real database)")
	cmd.Flags().StringVar(&userID, "user", "", "acting user id")
	return cmd
}

func runOnce(cmd *cobra.Command, projectFlag, userFlag, text string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize service: %w", err)
	}
	defer application.Close()

	var pid uuid.UUID
	switch {
	case projectFlag != "":
		pid, err = uuid.Parse(projectFlag)
		if err != nil {
			return fmt.Errorf("invalid project id: %w", err)
		}
	case application.Memory != nil:
		seeded := application.Memory.PutProject(discovery.Project{
			Name:              "scratch",
			TargetProductName: text,
		})
		pid = seeded.ID
	default:
		return fmt.Errorf("--project is required when db.provider is not memory")
	}

	uid := uuid.Nil
	if userFlag != "" {
		uid, err = uuid.Parse(userFlag)
		if err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}
	}

	bridge := pipeline.NewStreamBridge()
	application.Orchestrator.Start(ctx, bridge, pid, uid, text)

	enc := json.NewEncoder(os.Stdout)
	for evt := range bridge.Events() {
		if err := enc.Encode(evt); err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
	}
	return nil
}
