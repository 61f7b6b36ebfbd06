package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/crystaldolphin/chatkeeper/internal/config"
	"github.com/crystaldolphin/chatkeeper/internal/conversation"
	"github.com/crystaldolphin/chatkeeper/internal/dependency"
	"github.com/crystaldolphin/chatkeeper/internal/schema"
	"github.com/crystaldolphin/chatkeeper/internal/shared/cmdutils"
	"github.com/crystaldolphin/chatkeeper/internal/shared/llmutils"
)

const chatSystemPrompt = "You are a helpful assistant. Keep answers short. " +
	"Earlier parts of the conversation may appear as summaries."

var chatMessage string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with bounded, summarized history",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "Send a single message and exit")
}

var exitCommands = map[string]bool{
	"exit":  true,
	"quit":  true,
	"/exit": true,
	"/quit": true,
	":q":    true,
}

// chatSession couples one live conversation with the provider that answers it.
type chatSession struct {
	container *dependency.Container
	conv      *conversation.Conversation
}

func runChat(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := dependency.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer container.Close()

	s := &chatSession{container: container, conv: container.Conversations().Create()}

	if chatMessage != "" {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		fmt.Fprintf(os.Stderr, "  ↳ thinking...\n")
		reply, err := s.send(ctx, chatMessage)
		if err != nil {
			return err
		}
		cmdutils.PrintResponse(reply)
		return nil
	}

	return s.runInteractive(ctx, cancel)
}

// runInteractive reads lines from stdin until an exit command or EOF, then
// archives the conversation.
func (s *chatSession) runInteractive(ctx context.Context, cancel context.CancelFunc) error {
	fmt.Printf("%s Interactive mode (type 'exit' or Ctrl+C to quit, /help for commands)\n\n", logo)

	listenForSignals(cancel)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")

		if !scanner.Scan() || ctx.Err() != nil {
			fmt.Println("\nGoodbye!")
			return s.end()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if exitCommands[strings.ToLower(line)] {
			fmt.Println("Goodbye!")
			return s.end()
		}

		if strings.HasPrefix(line, "/") {
			s.handleSlash(line)
			continue
		}

		fmt.Fprintf(os.Stderr, "  ↳ thinking...\n")
		reply, err := s.send(ctx, line)
		if err != nil {
			fmt.Printf("  ✗ %v\n\n", err)
			continue
		}
		cmdutils.PrintResponse(reply)
	}
}

// send records the user turn, asks the model with the visible history and
// records the reply. A failed summary is reported but does not stop the turn.
func (s *chatSession) send(ctx context.Context, text string) (string, error) {
	if err := s.record(ctx, conversation.SpeakerUser, text); err != nil {
		return "", err
	}

	cfg := s.container.Config()
	opts := schema.NewChatOptions(s.container.Model(), cfg.Model.MaxTokens, cfg.Model.Temperature)
	resp, err := s.container.Provider().Chat(ctx, historyMessages(chatSystemPrompt, s.conv.VisibleHistory()), nil, opts)
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}

	reply := llmutils.StripThink(resp.Text())
	if reply == "" {
		reply = "(no response)"
	}
	if err := s.record(ctx, conversation.SpeakerAssistant, reply); err != nil {
		return "", err
	}
	return reply, nil
}

// record reports a skipped summary and returns only errors that kept the
// turn out of the history.
func (s *chatSession) record(ctx context.Context, speaker conversation.Speaker, text string) error {
	_, err := s.conv.Record(ctx, speaker, text)
	var serr *conversation.SummarizationError
	if errors.As(err, &serr) {
		fmt.Fprintf(os.Stderr, "  ↳ summary of %d turns skipped: %v\n", serr.Turns, serr.Err)
		return nil
	}
	return err
}

func (s *chatSession) handleSlash(line string) {
	switch strings.ToLower(strings.Fields(line)[0]) {
	case "/stats":
		st := s.conv.Stats()
		cmdutils.PrintTable(os.Stdout, [][2]string{
			{"Turns", strconv.Itoa(st.Turns)},
			{"Exchanges", strconv.Itoa(st.Exchanges)},
			{"Characters", strconv.Itoa(st.Characters)},
			{"Words", strconv.Itoa(st.Words)},
			{"Summary turns", strconv.Itoa(st.SummaryTurns)},
			{"Summaries made", strconv.Itoa(st.Summaries)},
			{"Est. tokens", strconv.Itoa(st.EstimatedTokens)},
		})
		fmt.Println()
	case "/history":
		turns := s.conv.VisibleHistory()
		if len(turns) == 0 {
			fmt.Println("  (empty)")
		}
		for _, t := range turns {
			fmt.Printf("  [%s] %s: %s\n", t.Timestamp.Format("15:04:05"), t.Speaker, llmutils.Truncate(t.Text, 120))
		}
		fmt.Println()
	case "/clear":
		s.conv.Clear()
		fmt.Println("  ✓ History cleared")
		fmt.Println()
	default:
		fmt.Println("  Commands: /stats, /history, /clear, /exit")
		fmt.Println()
	}
}

// end archives the conversation when it has any turns.
func (s *chatSession) end() error {
	if s.conv.Len() == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	snap, err := s.container.Conversations().End(ctx, s.conv.ID())
	if err != nil {
		return err
	}
	fmt.Printf("✓ Archived conversation %s (%d turns)\n", snap.ID, len(snap.Turns))
	return nil
}

// historyMessages maps the visible history to chat messages. Summary turns
// travel as system messages.
func historyMessages(system string, turns []conversation.Turn) schema.Messages {
	msgs := schema.NewMessages(schema.NewSystemMessage(system))
	for _, t := range turns {
		switch t.Speaker {
		case conversation.SpeakerUser:
			msgs.AddUser(t.Text)
		case conversation.SpeakerAssistant:
			msgs.AddAssistant(t.Text)
		case conversation.SpeakerSystemSummary:
			msgs.AddSystem(t.Text)
		}
	}
	return msgs
}

// listenForSignals cancels ctx on SIGINT or SIGTERM. The REPL notices on its
// next read and archives before exiting.
func listenForSignals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		fmt.Printf("\nReceived %s, shutting down...\n", sig)
		cancel()
		os.Stdin.Close()
	}()
}
