package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/petal-labs/petalpilot/core"
)

// NewChatCmd creates the "chat" command, an interactive conversation loop.
func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive assistant session",
		RunE:  runChat,
	}
	cmd.Flags().String("config", "", "Path to config file")
	cmd.Flags().String("persona", "", "Persona id to adopt")
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	personaID, _ := cmd.Flags().GetString("persona")
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")

	a, err := buildApp(cmd.Context(), configPath, verbose)
	if err != nil {
		return err
	}
	defer a.close(cmd.Context())

	agentCtx := &core.AgentContext{
		Personas:      a.cfg.Personas,
		ActivePersona: personaID,
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "petalpilot ready. Type a request, or \"exit\" to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		reply := a.agent.HandleMessage(cmd.Context(), line, agentCtx)
		fmt.Fprintln(out, reply.Text)

		now := time.Now()
		agentCtx.History = append(agentCtx.History,
			core.ChatMessage{Role: "user", Content: line, At: now},
			core.ChatMessage{Role: "assistant", Content: reply.Text, At: now},
		)
		if a.store != nil {
			_ = a.store.AppendIntent(cmd.Context(), reply.Intent)
		}
	}
	if err := scanner.Err(); err != nil {
		return exitError(exitRuntime, "reading input: %v", err)
	}
	return nil
}
