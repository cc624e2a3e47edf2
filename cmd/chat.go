package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Saijash84/CalMate/internal/assistant"
	"github.com/Saijash84/CalMate/internal/nlu"
)

// maxChatHistory bounds the turns replayed to the assistant.
const maxChatHistory = 20

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func newChatCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant in the terminal",
		Long: `Start an interactive session against the configured booking store and
calendar provider. Type a request such as "book a 30 minute sync tomorrow at
10am" and press Enter.

Type /reset to forget the conversation and exit (or Ctrl+D) to quit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := buildApp(ctx, cfg, slog.Default())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if sessionID == "" {
				sessionID = uuid.NewString()
			}

			homeDir, _ := os.UserHomeDir()
			rl, err := readline.NewEx(&readline.Config{
				Prompt:            bold("you> "),
				HistoryFile:       filepath.Join(homeDir, ".calmate-history"),
				InterruptPrompt:   "^C",
				EOFPrompt:         "exit",
				HistorySearchFold: true,
				UniqueEditLine:    true,

				Stdin:  readline.NewCancelableStdin(os.Stdin),
				Stdout: os.Stdout,
				Stderr: os.Stderr,
			})
			if err != nil {
				return fmt.Errorf("failed to initialize readline: %w", err)
			}
			defer rl.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, bold("calmate"), "- type 'help' to see what I can do, 'exit' to quit.")
			fmt.Fprintf(out, "Session ID: %s\n", sessionID)
			if a.sc.Assistant().Simulated() {
				fmt.Fprintln(out, yellow(assistant.SimulationWarning))
			}
			fmt.Fprintln(out)

			return runChatLoop(ctx, rl, out, a.sc.Assistant(), sessionID)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID to resume (default: a new session)")

	return cmd
}

// lineReader is the part of readline the chat loop needs.
type lineReader interface {
	Readline() (string, error)
}

// runChatLoop feeds each line to the assistant until EOF or an exit command.
func runChatLoop(ctx context.Context, rl lineReader, out io.Writer, asst *assistant.Assistant, sessionID string) error {
	var history []nlu.Message

	for {
		input, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(input) == 0 {
				fmt.Fprintln(out, "Goodbye!")
				return nil
			}
			continue
		} else if errors.Is(err, io.EOF) {
			fmt.Fprintln(out, "Goodbye!")
			return nil
		} else if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		switch input {
		case "":
			continue
		case "exit", "quit", "q":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case "/reset":
			history = nil
			if err := asst.ForgetSession(ctx, sessionID); err != nil {
				fmt.Fprintln(out, red("Error:"), err)
				continue
			}
			fmt.Fprintln(out, gray("Conversation cleared."))
			continue
		}

		resp := asst.Handle(ctx, assistant.Request{
			SessionID: sessionID,
			Message:   input,
			History:   history,
		})
		printResponse(out, resp)

		history = append(history,
			nlu.Message{Role: nlu.RoleUser, Content: input},
			nlu.Message{Role: nlu.RoleAssistant, Content: resp.Response},
		)
		if len(history) > maxChatHistory {
			history = history[len(history)-maxChatHistory:]
		}
	}
}

func printResponse(out io.Writer, resp assistant.Response) {
	var text string
	switch resp.Operation {
	case assistant.OpSuccess:
		text = green(resp.Response)
	case assistant.OpWarning, assistant.OpConflict, assistant.OpBusy:
		text = yellow(resp.Response)
	case assistant.OpError, assistant.OpNotFound:
		text = red(resp.Response)
	case assistant.OpClarify:
		text = cyan(resp.Response)
	default:
		text = resp.Response
	}
	fmt.Fprintln(out, text)
	if resp.Details != "" {
		fmt.Fprintln(out, gray(resp.Details))
	}
	fmt.Fprintln(out)
}
