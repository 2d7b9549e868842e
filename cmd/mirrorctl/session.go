package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mfateev/temporal-mirror-agent/internal/cli"
	"github.com/mfateev/temporal-mirror-agent/internal/models"
	"github.com/mfateev/temporal-mirror-agent/internal/session"
)

var (
	startAPIKey string
	startWatch  bool
	statusJSON  bool
	noMarkdown  bool
	watchInline bool
)

var startCmd = &cobra.Command{
	Use:   "start <task>",
	Short: "Start a task session",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctl, _, err := newController()
		if err != nil {
			return err
		}
		defer ctl.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		task := strings.Join(args, " ")
		id, err := ctl.Start(ctx, task, session.StartOptions{APIKey: startAPIKey})
		if errors.Is(err, session.ErrAlreadyRunning) {
			return fmt.Errorf("%w: cancel it first with `mirrorctl cancel`", err)
		}
		if err != nil {
			return err
		}
		fmt.Println(render(successStyle, "Started session "+id))
		fmt.Println(render(labelStyle, "Hands off the mouse once the start signal sounds."))

		if !startWatch {
			return nil
		}
		return cli.Watch(ctx, ctl, watchConfig(true))
	},
}

var pauseCmd = controlCommand("pause", "Pause the running session", func(ctl *controller, ctx context.Context) (models.State, error) {
	return ctl.Pause(ctx)
})

var resumeCmd = controlCommand("resume", "Resume a paused session", func(ctl *controller, ctx context.Context) (models.State, error) {
	return ctl.Resume(ctx)
})

var cancelCmd = controlCommand("cancel", "Cancel the live session", func(ctl *controller, ctx context.Context) (models.State, error) {
	return ctl.Cancel(ctx)
})

func controlCommand(use, short string, fn func(*controller, context.Context) (models.State, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, _, err := newController()
			if err != nil {
				return err
			}
			defer ctl.Close()

			state, err := fn(ctl, cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("%s %s\n", render(labelStyle, "Session:"), render(valueStyle, string(state)))
			return nil
		},
	}
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of the current or most recent session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctl, _, err := newController()
		if err != nil {
			return err
		}
		defer ctl.Close()

		status, err := ctl.Status(cmd.Context())
		if err != nil {
			return err
		}
		if statusJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(status)
		}
		r := cli.NewRenderer(0, colorDisabled(), true)
		fmt.Print(r.RenderStatus(status))
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the session live (p pause, r resume, c cancel, q quit)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctl, _, err := newController()
		if err != nil {
			return err
		}
		defer ctl.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return cli.Watch(ctx, ctl, watchConfig(false))
	},
}

var transcriptCmd = &cobra.Command{
	Use:   "transcript",
	Short: "Print the session conversation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctl, _, err := newController()
		if err != nil {
			return err
		}
		defer ctl.Close()

		messages, err := ctl.Conversation(cmd.Context())
		if err != nil {
			return err
		}
		cli.PrintTranscript(os.Stdout, messages, colorDisabled(), noMarkdown || !cli.IsTerminal(os.Stdout))
		return nil
	},
}

func init() {
	startCmd.Flags().StringVar(&startAPIKey, "api-key", "", "Anthropic API key to store before starting")
	startCmd.Flags().BoolVarP(&startWatch, "watch", "w", false, "Watch the session after starting")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the status as JSON")
	transcriptCmd.Flags().BoolVar(&noMarkdown, "no-markdown", false, "Print model text without markdown rendering")
	watchCmd.Flags().BoolVar(&watchInline, "inline", false, "Do not use the alternate screen")
}

func watchConfig(exitOnEnd bool) cli.Config {
	return cli.Config{
		NoColor:    colorDisabled(),
		NoMarkdown: noMarkdown,
		Inline:     watchInline,
		ExitOnEnd:  exitOnEnd,
	}
}

func colorDisabled() bool {
	return noColor || !cli.IsTerminal(os.Stdout)
}
