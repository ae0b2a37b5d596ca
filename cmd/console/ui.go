package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/storyweave/gamemaster/internal/handlers"
	"github.com/storyweave/gamemaster/pkg/engine"
)

const narratorName = "Game Master"

var (
	chatPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	metaPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	metaLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(1, 2)

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			MarginBottom(1)

	modalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("205")).
				Bold(true)
)

type chatResponseMsg struct {
	resp *handlers.CommandResponse
	err  error
}

type storiesLoadedMsg struct {
	stories []string
	err     error
}

type sessionCreatedMsg struct {
	session *handlers.SessionResponse
	err     error
}

type progressTickMsg time.Time

// ConsoleUI is the bubbletea model for the interactive console.
type ConsoleUI struct {
	config *ConsoleConfig
	client *http.Client

	session *handlers.SessionResponse
	status  engine.Status

	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	chatLog      []string

	ready   bool
	width   int
	height  int
	err     error
	loading bool

	showStoryModal bool
	stories        []string
	selectedStory  int
	loadingStories bool

	showQuitModal bool
	progressTick  int
}

func NewConsoleUI(cfg *ConsoleConfig, client *http.Client) *ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = "Speak, or type /help for commands..."
	ta.Prompt = ":: "
	ta.CharLimit = 1000
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	return &ConsoleUI{
		config:         cfg,
		client:         client,
		textarea:       ta,
		showStoryModal: true,
		loadingStories: true,
	}
}

func (ui *ConsoleUI) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, ui.loadStories())
}

func (ui *ConsoleUI) loadStories() tea.Cmd {
	return func() tea.Msg {
		stories, err := listStories(ui.client, ui.config.APIBaseURL)
		return storiesLoadedMsg{stories: stories, err: err}
	}
}

func (ui *ConsoleUI) startSession(storyName string) tea.Cmd {
	return func() tea.Msg {
		session, err := createSession(ui.client, ui.config.APIBaseURL, storyName)
		return sessionCreatedMsg{session: session, err: err}
	}
}

func (ui *ConsoleUI) submitCommand(input string) tea.Cmd {
	return func() tea.Msg {
		resp, err := sendCommand(ui.client, ui.config.APIBaseURL, ui.session.ID, input)
		return chatResponseMsg{resp: resp, err: err}
	}
}

func progressTicker() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return progressTickMsg(t)
	})
}

func (ui *ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		ui.width = msg.Width
		ui.height = msg.Height
		ui.layout()

	case tea.KeyMsg:
		if ui.showQuitModal {
			switch msg.String() {
			case "y", "Y", "enter":
				return ui, tea.Quit
			case "n", "N", "esc":
				ui.showQuitModal = false
			}
			return ui, nil
		}

		if ui.showStoryModal {
			return ui.updateStoryModal(msg)
		}

		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			ui.showQuitModal = true
			return ui, nil
		case tea.KeyEnter:
			input := strings.TrimSpace(ui.textarea.Value())
			if input == "" || ui.loading {
				return ui, nil
			}
			ui.textarea.Reset()
			ui.appendChat(userStyle.Render("You: ") + input)
			ui.loading = true
			ui.err = nil
			return ui, tea.Batch(ui.submitCommand(input), progressTicker())
		}

	case storiesLoadedMsg:
		ui.loadingStories = false
		if msg.err != nil {
			ui.err = msg.err
			return ui, nil
		}
		ui.stories = msg.stories
		if len(ui.stories) == 0 {
			ui.err = fmt.Errorf("no stories available on the server")
		}

	case sessionCreatedMsg:
		ui.loadingStories = false
		if msg.err != nil {
			ui.err = msg.err
			ui.showStoryModal = true
			return ui, nil
		}
		ui.session = msg.session
		ui.status = msg.session.Status
		ui.showStoryModal = false
		ui.appendChat(narratorStyle.Render(narratorName+": ") +
			fmt.Sprintf("Story %q is ready. Type /start to begin.", ui.status.Story))
		ui.refreshMeta()

	case chatResponseMsg:
		ui.loading = false
		if msg.err != nil {
			ui.err = msg.err
			ui.appendChat(errorStyle.Render("Error: " + msg.err.Error()))
			return ui, nil
		}
		ui.status = msg.resp.Status
		ui.appendChat(ui.formatNarratorResponse(msg.resp.Output))
		ui.refreshMeta()

	case progressTickMsg:
		if ui.loading {
			ui.progressTick++
			ui.refreshChat()
			return ui, progressTicker()
		}
		ui.progressTick = 0
		ui.refreshChat()
	}

	var taCmd, vpCmd tea.Cmd
	ui.textarea, taCmd = ui.textarea.Update(msg)
	ui.chatViewport, vpCmd = ui.chatViewport.Update(msg)
	cmds = append(cmds, taCmd, vpCmd)

	return ui, tea.Batch(cmds...)
}

func (ui *ConsoleUI) updateStoryModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc", "q":
		return ui, tea.Quit
	case "up", "k":
		if ui.selectedStory > 0 {
			ui.selectedStory--
		}
	case "down", "j":
		if ui.selectedStory < len(ui.stories)-1 {
			ui.selectedStory++
		}
	case "enter":
		if ui.loadingStories || len(ui.stories) == 0 {
			return ui, nil
		}
		name := ui.stories[ui.selectedStory]
		ui.loadingStories = true
		return ui, ui.startSession(name)
	}
	return ui, nil
}

func (ui *ConsoleUI) layout() {
	if ui.width == 0 || ui.height == 0 {
		return
	}

	chatWidth := int(float64(ui.width)*0.75) - 4
	metaWidth := ui.width - chatWidth - 8
	panelHeight := ui.height - 8

	if !ui.ready {
		ui.chatViewport = viewport.New(chatWidth, panelHeight)
		ui.metaViewport = viewport.New(metaWidth, panelHeight)
		ui.ready = true
	} else {
		ui.chatViewport.Width = chatWidth
		ui.chatViewport.Height = panelHeight
		ui.metaViewport.Width = metaWidth
		ui.metaViewport.Height = panelHeight
	}

	ui.textarea.SetWidth(ui.width - 6)
	ui.refreshChat()
	ui.refreshMeta()
}

func (ui *ConsoleUI) appendChat(line string) {
	ui.chatLog = append(ui.chatLog, line)
	ui.refreshChat()
}

func (ui *ConsoleUI) refreshChat() {
	if !ui.ready {
		return
	}
	var b strings.Builder
	for _, line := range ui.chatLog {
		b.WriteString(line)
		b.WriteString("\n\n")
	}
	if ui.loading {
		b.WriteString(loadingStyle.Render(ui.renderProgressBar()))
		b.WriteString("\n")
	}
	ui.chatViewport.SetContent(b.String())
	ui.chatViewport.GotoBottom()
}

func (ui *ConsoleUI) refreshMeta() {
	if !ui.ready {
		return
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Session") + "\n\n")
	if ui.session == nil {
		b.WriteString(metaLabelStyle.Render("No active session.") + "\n")
	} else {
		b.WriteString(metaLabelStyle.Render("Story: ") + ui.status.Story + "\n")
		b.WriteString(metaLabelStyle.Render("Phase: ") + string(ui.status.Phase) + "\n")
		b.WriteString(metaLabelStyle.Render("Energy: ") + fmt.Sprintf("%.0f", ui.status.Energy) + "\n")
		if ui.status.Phase == engine.PhaseRunning {
			b.WriteString(metaLabelStyle.Render("Time: ") + ui.status.Time.Format("2006-01-02 15:04") + "\n")
		}
		if len(ui.status.PendingTasks) > 0 {
			b.WriteString("\n" + titleStyle.Render("Tasks") + "\n")
			for i, task := range ui.status.PendingTasks {
				wrapped := wordwrap.String(fmt.Sprintf("%d. %s", i+1, task.String()), ui.metaViewport.Width)
				b.WriteString(wrapped + "\n")
			}
		}
	}
	b.WriteString("\n" + metaLabelStyle.Render("/help for commands\nEsc to quit"))
	ui.metaViewport.SetContent(b.String())
}

func (ui *ConsoleUI) formatNarratorResponse(text string) string {
	width := ui.chatViewport.Width
	if width <= 0 {
		width = 80
	}
	wrapped := wordwrap.String(text, width-2)
	return narratorStyle.Render(narratorName+": ") + wrapped
}

func (ui *ConsoleUI) renderProgressBar() string {
	const frames = 40
	pos := ui.progressTick % frames
	var b strings.Builder
	b.WriteString("Weaving the story ")
	for i := 0; i < frames; i++ {
		if i == pos {
			b.WriteString("●")
		} else {
			b.WriteString("·")
		}
	}
	return b.String()
}

func (ui *ConsoleUI) View() string {
	if !ui.ready {
		return "Initializing..."
	}

	if ui.showQuitModal {
		modal := modalStyle.Render(
			modalTitleStyle.Render("Leave the story?") + "\n" +
				modalItemStyle.Render("y - quit    n - keep playing"))
		return lipgloss.Place(ui.width, ui.height, lipgloss.Center, lipgloss.Center, modal)
	}

	if ui.showStoryModal {
		return ui.storyModalView()
	}

	chatPanel := chatPanelStyle.Render(ui.chatViewport.View())
	metaPanel := metaPanelStyle.Render(ui.metaViewport.View())
	panels := lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)

	footer := ui.textarea.View()
	if ui.err != nil {
		footer = errorStyle.Render(ui.err.Error()) + "\n" + footer
	}

	return lipgloss.JoinVertical(lipgloss.Left, panels, footer)
}

func (ui *ConsoleUI) storyModalView() string {
	var b strings.Builder
	b.WriteString(modalTitleStyle.Render("Choose a story") + "\n")

	switch {
	case ui.loadingStories:
		b.WriteString(loadingStyle.Render("Loading stories..."))
	case ui.err != nil:
		b.WriteString(errorStyle.Render(ui.err.Error()))
	default:
		for i, name := range ui.stories {
			if i == ui.selectedStory {
				b.WriteString(modalSelectedItemStyle.Render("> "+name) + "\n")
			} else {
				b.WriteString(modalItemStyle.Render("  "+name) + "\n")
			}
		}
		b.WriteString("\n" + metaLabelStyle.Render("↑/↓ select, enter confirm, q quit"))
	}

	modal := modalStyle.Render(b.String())
	return lipgloss.Place(ui.width, ui.height, lipgloss.Center, lipgloss.Center, modal)
}
