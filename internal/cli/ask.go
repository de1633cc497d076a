package cli

import (
	"fmt"
	"strings"

	"github.com/harun/websurfer/pkg/agent"
	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <prompt>",
	Short: "Run a single turn and print the reply",
	Long: `Send one message to the surfer. The planner may use a single browser
tool before the reply is printed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{withCache: true, withSurfer: true})
	if err != nil {
		return err
	}
	defer a.close()

	prompt := strings.Join(args, " ")
	reply, err := a.surfer.GenerateReply(ctx, []agent.Message{
		{Role: agent.RoleUser, Content: prompt},
	})
	if err != nil {
		return fmt.Errorf("turn failed: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), replyText(reply))
	return nil
}

func replyText(reply *agent.Message) string {
	if reply == nil {
		return "(no reply)"
	}
	return reply.Content
}
