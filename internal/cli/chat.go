package cli

import (
	"bufio"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/harun/websurfer/pkg/agent"
	"github.com/harun/websurfer/pkg/transcript"
	"github.com/spf13/cobra"
)

var chatSession string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Read messages from stdin, one per line, and keep the conversation
between turns. Type "exit" or "quit" to leave. With --session the
conversation is saved under the data directory and resumed next time.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatSession, "session", "", "save and resume the conversation under this name")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{withCache: true, withSurfer: true})
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var (
		history []agent.Message
		store   *transcript.Store
	)
	if chatSession != "" {
		store, err = transcript.New(filepath.Join(a.cfg.DataDir, "transcripts"))
		if err != nil {
			return err
		}
		history, err = store.Load(ctx, chatSession)
		if err != nil {
			return fmt.Errorf("failed to resume session: %w", err)
		}
		if len(history) > 0 {
			fmt.Fprintf(out, "Resumed %s (%d messages)\n", chatSession, len(history))
		}
	}

	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			fmt.Fprint(out, "> ")
			continue
		case "exit", "quit":
			return nil
		}

		history = append(history, agent.Message{Role: agent.RoleUser, Content: line})
		reply, err := a.surfer.GenerateReply(ctx, history)
		if err != nil {
			a.logger.Error().Err(err).Msg("Turn failed")
			fmt.Fprintf(out, "error: %v\n> ", err)
			history = history[:len(history)-1]
			continue
		}
		turn := history[len(history)-1:]
		if reply != nil {
			history = append(history, *reply)
			turn = history[len(history)-2:]
		}
		if store != nil {
			if err := store.Append(ctx, chatSession, turn...); err != nil {
				a.logger.Warn().Err(err).Msg("Failed to save transcript")
			}
		}
		fmt.Fprintf(out, "%s\n> ", replyText(reply))
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return nil
}
