package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/raphaelgruber/seriesbot-go/internal/models"
)

// turnTimeout bounds one full turn from the UI's perspective; the
// pipeline has its own tighter per-call timeouts.
const turnTimeout = 2 * time.Minute

// Theme holds the color scheme for the chat display.
type Theme struct {
	User    lipgloss.Color
	Bot     lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
	Spinner lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	User:    lipgloss.Color("#5FAFD7"), // light blue
	Bot:     lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
	Spinner: lipgloss.Color("#D7AF5F"), // amber
}

func (t Theme) userStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.User).Bold(true)
}

func (t Theme) botStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Bot).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// turnFn runs one conversation turn and is the seam between the UI and
// either the local pipeline or a remote server.
type turnFn func(ctx context.Context, message, sessionID string) (models.ChatResponse, error)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive chat session with the series assistant.

Runs the full pipeline locally by default, which needs TVDB_API_KEY and
a configured LLM provider. With --server it talks to a running seriesbot
server over WebSocket instead.

When stdin is not a terminal, messages are read line by line and replies
printed without the interactive UI, so the command works in pipes.

Examples:
  seriesbot chat
  seriesbot chat --server http://localhost:8487
  echo "find Breaking Bad" | seriesbot chat`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	interactive := term.IsTerminal(int(os.Stdin.Fd()))

	if serverURL != "" && interactive {
		// Remote interactive sessions use the WebSocket stream so the
		// connection and session survive the whole conversation.
		stream, err := getClient().OpenStream(ctx)
		if err != nil {
			return fmt.Errorf("connect to server: %w", err)
		}
		defer stream.Close()
		return runChatUI(func(_ context.Context, message, _ string) (models.ChatResponse, error) {
			return stream.Chat(message)
		})
	}

	var turn turnFn
	if serverURL != "" {
		c := getClient()
		turn = func(ctx context.Context, message, sessionID string) (models.ChatResponse, error) {
			return c.Chat(ctx, message, sessionID)
		}
	} else {
		b, err := getBot(ctx)
		if err != nil {
			return err
		}
		turn = b.HandleMessage
	}

	if !interactive {
		return runChatPipe(ctx, turn)
	}
	return runChatUI(turn)
}

// runChatPipe reads messages line by line from stdin. One session spans
// all lines.
func runChatPipe(ctx context.Context, turn turnFn) error {
	var sessionID string
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}

		turnCtx, cancel := context.WithTimeout(ctx, turnTimeout)
		resp, err := turn(turnCtx, message, sessionID)
		cancel()
		if err != nil {
			return fmt.Errorf("chat turn: %w", err)
		}
		sessionID = resp.SessionID
		fmt.Println(resp.Message)
	}
	return scanner.Err()
}

// replyMsg carries a completed turn back into the UI loop.
type replyMsg struct {
	resp models.ChatResponse
	err  error
}

// chatModel is the bubbletea model for the interactive session.
type chatModel struct {
	turn       turnFn
	input      textinput.Model
	spinner    spinner.Model
	theme      Theme
	transcript []string
	sessionID  string
	waiting    bool
	quitting   bool
}

func newChatModel(turn turnFn) chatModel {
	ti := textinput.New()
	ti.Placeholder = "Ask about a TV series..."

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	return chatModel{
		turn:    turn,
		input:   ti,
		spinner: sp,
		theme:   defaultTheme,
		transcript: []string{
			defaultTheme.hintStyle().Render("Chat about TV series. Ctrl+C or 'quit' to leave."),
		},
	}
}

// Init returns the initial command.
func (m chatModel) Init() tea.Cmd {
	return m.input.Focus()
}

// Update handles messages and returns the updated model.
func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			if m.waiting {
				return m, nil
			}
			message := strings.TrimSpace(m.input.Value())
			if message == "" {
				return m, nil
			}
			if message == "quit" || message == "exit" {
				m.quitting = true
				return m, tea.Quit
			}

			m.transcript = append(m.transcript, m.theme.userStyle().Render("you> ")+message)
			m.input.Reset()
			m.waiting = true
			return m, tea.Batch(m.sendTurn(message), m.spinner.Tick)
		}

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case replyMsg:
		m.waiting = false
		if msg.err != nil {
			m.transcript = append(m.transcript,
				m.theme.errorStyle().Render(fmt.Sprintf("error: %v", msg.err)))
			return m, nil
		}
		m.sessionID = msg.resp.SessionID
		m.transcript = append(m.transcript, m.theme.botStyle().Render("bot> ")+msg.resp.Message)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the transcript and input line.
func (m chatModel) View() tea.View {
	var sb strings.Builder
	for _, line := range m.transcript {
		sb.WriteString(line)
		sb.WriteString("\n\n")
	}

	if m.quitting {
		sb.WriteString(m.theme.hintStyle().Render("Bye!"))
		sb.WriteString("\n")
	} else if m.waiting {
		sb.WriteString(m.spinner.View())
		sb.WriteString(m.theme.hintStyle().Render(" thinking..."))
		sb.WriteString("\n")
	} else {
		sb.WriteString(m.input.View())
		sb.WriteString("\n")
	}
	return tea.NewView(sb.String())
}

// sendTurn runs the turn in a command so Update never blocks on network.
func (m chatModel) sendTurn(message string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
		defer cancel()

		resp, err := m.turn(ctx, message, m.sessionID)
		return replyMsg{resp: resp, err: err}
	}
}

// runChatUI runs the interactive chat program until the user quits.
func runChatUI(turn turnFn) error {
	p := tea.NewProgram(newChatModel(turn))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat UI error: %w", err)
	}
	return nil
}
