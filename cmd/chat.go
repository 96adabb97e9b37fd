package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"llamabridge/model"
)

var (
	chatModel    string
	chatSystem   string
	chatMarkdown bool
	chatCopy     bool
	chatWidth    int
)

var chatCmd = &cobra.Command{
	Use:   "chat [prompt...]",
	Short: "Stream a reply from a local model",
	Long: `Send a prompt to the Ollama daemon and print the reply as it streams.

The prompt is taken from the arguments, or from stdin when it is piped.

Examples:
  llamabridge chat "Why is the sky blue?"
  llamabridge chat -m mistral:7b --system "Answer in French." "Hello"
  git diff | llamabridge chat -m qwen2.5-coder "Review this diff"
  llamabridge chat --markdown --copy "Write a haiku about Go"`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVarP(&chatModel, "model", "m", "", "Model to chat with (default from settings)")
	chatCmd.Flags().StringVarP(&chatSystem, "system", "s", "", "System prompt")
	chatCmd.Flags().BoolVar(&chatMarkdown, "markdown", false, "Render the finished reply as markdown")
	chatCmd.Flags().BoolVar(&chatCopy, "copy", false, "Copy the reply to the clipboard")
	chatCmd.Flags().IntVar(&chatWidth, "width", defaultRenderWidth, "Wrap width for --markdown")
}

func runChat(cmd *cobra.Command, args []string) error {
	prompt, err := readPrompt(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	modelName := chatModel
	if modelName == "" {
		modelName = cfg.Model()
	}

	facade, err := newFacade(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	if isTerminal(out) {
		fmt.Fprintln(out, assistantStyle(out).Render(modelName+" ›"))
	}

	reply, err := streamReply(ctx, out, !chatMarkdown, func(sink model.Sink) error {
		return facade.Chat(ctx, model.NewChatRequest(modelName, buildTurns(chatSystem, prompt)), sink)
	})

	if chatMarkdown && reply != "" {
		fmt.Fprint(out, renderMarkdown(reply, chatWidth))
	} else if reply != "" && !strings.HasSuffix(reply, "\n") {
		fmt.Fprintln(out)
	}
	if err != nil {
		return err
	}

	if chatCopy {
		if err := clipboard.WriteAll(reply); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), dimStyle(cmd.ErrOrStderr()).Render("Could not copy to clipboard: "+err.Error()))
		} else {
			fmt.Fprintln(cmd.ErrOrStderr(), dimStyle(cmd.ErrOrStderr()).Render("Copied to clipboard."))
		}
	}
	return nil
}

// streamReply runs chat with a channel-backed sink and a reader goroutine.
// When echo is set each fragment is written to out as it arrives. It returns
// everything received, even when chat fails part way.
func streamReply(ctx context.Context, out io.Writer, echo bool, chat func(model.Sink) error) (string, error) {
	readerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan model.Notification)
	done := make(chan struct{})
	var reply strings.Builder
	var writeErr error

	go func() {
		defer close(done)
		for n := range ch {
			reply.WriteString(n.Message)
			if !echo || writeErr != nil {
				continue
			}
			if _, err := io.WriteString(out, n.Message); err != nil {
				writeErr = err
				// Stop accepting so the chat aborts instead of writing into
				// a closed pipe.
				cancel()
			}
		}
	}()

	err := chat(model.NewChannelSink(readerCtx, ch))
	close(ch)
	<-done

	if writeErr != nil && errors.Is(err, model.ErrSinkClosed) {
		err = fmt.Errorf("%w (output: %v)", err, writeErr)
	}
	return reply.String(), err
}

// readPrompt joins args, or reads stdin when no args are given and stdin is
// not a terminal.
func readPrompt(args []string, in io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if f, ok := in.(*os.File); ok && isTerminal(f) {
		return "", errors.New("no prompt given")
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt from stdin: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", errors.New("no prompt given")
	}
	return prompt, nil
}

func buildTurns(system, prompt string) []model.Turn {
	var turns []model.Turn
	if system != "" {
		turns = append(turns, model.Turn{Role: model.RoleSystem, Content: system})
	}
	return append(turns, model.Turn{Role: model.RoleUser, Content: prompt})
}
