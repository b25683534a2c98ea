package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	glam "github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/asynkron/architerm/internal/core/measure"
	runtimepkg "github.com/asynkron/architerm/internal/core/runtime"
	"github.com/asynkron/architerm/internal/core/transcript"
)

// contentPadding is the number of blank columns kept on each side of the
// transcript inside its border.
const contentPadding = 1

// Session is the connection the viewer talks to. *runtime.Runtime
// satisfies it.
type Session interface {
	SubmitMessage(text string)
	Outputs() <-chan runtimepkg.RuntimeEvent
}

// Options configures a viewer.
type Options struct {
	ServerURL string
	// ScrollThreshold is how many rows from the end still count as the
	// bottom of the transcript.
	ScrollThreshold int
	// Cell is the pixel size of one terminal cell, if known.
	Cell     measure.Cell
	Renderer *lipgloss.Renderer
	Logger   runtimepkg.Logger
}

type eventMsg struct{ evt runtimepkg.RuntimeEvent }
type errMsg struct{ err error }

type model struct {
	session Session
	outputs <-chan runtimepkg.RuntimeEvent
	cancel  context.CancelFunc
	logger  runtimepkg.Logger

	// Transcript state
	store            *transcript.Store
	lines            []string
	ranges           []lineRange
	laidOut          bool
	highlighted      []bool
	scrolledToBottom bool
	threshold        int

	// Measurement
	container *measure.Node[measure.Box]
	glyph     *measure.Node[measure.Glyph]
	measurer  *measure.Measurer
	cell      measure.Cell

	// UI
	vp       viewport.Model
	help     viewport.Model
	ti       textinput.Model
	spin     spinner.Model
	glam     *glam.TermRenderer
	styles   styles
	width    int
	height   int
	ready    bool
	showHelp bool

	// Connection
	serverURL  string
	connected  bool
	status     string
	statusKind runtimepkg.StatusLevel
	closed     bool
}

// NewModel builds a viewer bound to session. cancel, when set, is called as
// the viewer quits.
func NewModel(session Session, cancel context.CancelFunc, opts Options) tea.Model {
	return newModel(session, cancel, opts)
}

func newModel(session Session, cancel context.CancelFunc, opts Options) *model {
	if opts.Renderer == nil {
		opts.Renderer = lipgloss.DefaultRenderer()
	}
	if opts.Logger == nil {
		opts.Logger = &runtimepkg.NoOpLogger{}
	}
	if opts.ScrollThreshold < 1 {
		opts.ScrollThreshold = 1
	}

	ti := textinput.New()
	ti.Placeholder = "Say something… (Enter to send, F1 for help)"
	ti.Prompt = "> "
	ti.Focus()

	vp := viewport.New(0, 0)
	vp.Style = lipgloss.NewStyle().Padding(0, contentPadding)
	vp.MouseWheelEnabled = true
	vp.KeyMap = viewport.KeyMap{
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		Up:           key.NewBinding(key.WithKeys("up")),
		Down:         key.NewBinding(key.WithKeys("down")),
	}
	help := viewport.New(0, 0)
	help.KeyMap = vp.KeyMap

	st := newStyles(opts.Renderer)
	sp := spinner.New()
	sp.Style = st.spinner

	m := &model{
		session:   session,
		outputs:   session.Outputs(),
		cancel:    cancel,
		logger:    opts.Logger,
		store:     transcript.NewStore(),
		threshold: opts.ScrollThreshold,
		container: measure.NewNode(measure.Box{}),
		glyph:     measure.NewNode(measure.Glyph{}),
		cell:      opts.Cell,
		vp:        vp,
		help:      help,
		ti:        ti,
		spin:      sp,
		styles:    st,
		serverURL: opts.ServerURL,
		status:    "Connecting…",
	}
	m.measurer = measure.NewMeasurer(m.container, m.glyph)
	m.measurer.OnChange(func(metrics measure.Metrics) {
		m.laidOut = false
		m.logger.Debug(context.Background(), "viewport measured",
			runtimepkg.Field("char_width", metrics.CharWidth),
			runtimepkg.Field("aspect_ratio", metrics.CharAspectRatio))
	})
	return m
}

func waitForEvent(ch <-chan runtimepkg.RuntimeEvent) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return errMsg{fmt.Errorf("connection closed")}
		}
		return eventMsg{evt: evt}
	}
}

// recalcLayout recomputes component sizes from the terminal size and feeds
// the new geometry to the measurer.
func (m *model) recalcLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	inner := m.width - 2
	if inner < 1 {
		inner = 1
	}
	m.ti.Width = inner - lipgloss.Width(m.ti.Prompt) - 1
	// Viewport box border (2), status line (1), input box (3).
	vpH := m.height - 6
	if vpH < 3 {
		vpH = 3
	}
	m.vp.Width = inner
	m.vp.Height = vpH
	m.help.Width = inner
	m.help.Height = vpH

	box, glyph := measure.TerminalGeometry(inner, contentPadding, m.cell)
	m.glyph.Resize(glyph)
	m.container.Resize(box)
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.outputs), textinput.Blink, m.spin.Tick)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		follow := m.scrolledToBottom || !m.ready
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		m.ready = true
		m.refresh(follow)
		if m.showHelp {
			m.renderHelp()
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quit()
			return m, tea.Quit
		case tea.KeyF1:
			m.showHelp = !m.showHelp
			if m.showHelp {
				m.renderHelp()
			}
			return m, nil
		case tea.KeyEnter:
			text := m.ti.Value()
			m.session.SubmitMessage(text)
			m.store.AppendUser(text)
			m.laidOut = false
			m.ti.Reset()
			m.refresh(true)
			return m, nil
		}

	case spinner.TickMsg:
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case eventMsg:
		m.handleEvent(msg.evt)
		return m, waitForEvent(m.outputs)

	case errMsg:
		m.closed = true
		m.connected = false
		m.status = msg.err.Error() + ". Press Esc to quit."
		m.statusKind = runtimepkg.StatusLevelError
		return m, nil
	}

	m.ti, cmd = m.ti.Update(msg)
	cmds = append(cmds, cmd)
	if m.showHelp {
		m.help, cmd = m.help.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)
	}

	offset := m.vp.YOffset
	m.vp, cmd = m.vp.Update(msg)
	cmds = append(cmds, cmd)
	if m.vp.YOffset != offset {
		m.syncScroll()
	}
	return m, tea.Batch(cmds...)
}

func (m *model) handleEvent(evt runtimepkg.RuntimeEvent) {
	switch evt.Type {
	case runtimepkg.EventTypeMessage:
		before := m.store.Len()
		m.store.AppendServer(evt.Chat)
		if m.store.Len() != before {
			m.laidOut = false
			m.refresh(true)
		}
	case runtimepkg.EventTypeConnected:
		m.connected = true
		m.status = evt.Message
		m.statusKind = runtimepkg.StatusLevelInfo
	case runtimepkg.EventTypeDisconnected:
		m.connected = false
		m.status = evt.Message
		m.statusKind = runtimepkg.StatusLevelWarn
	case runtimepkg.EventTypeStatus, runtimepkg.EventTypeError:
		m.status = evt.Message
		m.statusKind = evt.Level
	}
}

func (m *model) quit() {
	m.measurer.Stop()
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *model) View() string {
	if !m.ready {
		return "Initializing…"
	}
	body := m.vp.View()
	if m.showHelp {
		body = m.help.View()
	}
	top := m.styles.border.Render(body)
	bottom := m.styles.border.Render(m.ti.View())
	return top + "\n" + m.statusLine() + "\n" + bottom
}

func (m *model) statusLine() string {
	style := m.styles.status
	switch m.statusKind {
	case runtimepkg.StatusLevelWarn:
		style = m.styles.warn
	case runtimepkg.StatusLevelError:
		style = m.styles.failure
	}

	prefix := "● "
	if !m.connected && !m.closed {
		prefix = m.spin.View() + " "
	}
	line := prefix + style.Render(m.status) +
		m.styles.status.Render(fmt.Sprintf(" · %d cols", m.measurer.Metrics().CharWidth))
	return lipgloss.NewStyle().MaxWidth(m.width).Render(line)
}

// Run launches the Bubble Tea viewer against a new runtime built from
// options. Returns a POSIX-style exit code.
func Run(ctx context.Context, options runtimepkg.RuntimeOptions, opts Options, stderr io.Writer) int {
	if stderr == nil {
		stderr = io.Discard
	}

	// Prevent OSC background color queries from contaminating stdin by
	// explicitly setting color profile and background for lipgloss/termenv.
	lipgloss.SetColorProfile(termenv.TrueColor)
	lipgloss.SetHasDarkBackground(true)

	agent, err := runtimepkg.NewRuntime(options)
	if err != nil {
		fmt.Fprintln(stderr, "failed to create runtime:", err)
		return 1
	}

	if terminal, err := measure.ProbeTerminal(int(os.Stdout.Fd())); err == nil {
		opts.Cell = terminal.Cell
	}
	opts.ServerURL = options.ServerURL
	opts.Renderer = lipgloss.DefaultRenderer()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := agent.Run(runCtx); err != nil && runCtx.Err() == nil {
			opts.logger().Error(runCtx, "runtime stopped", err)
		}
	}()

	p := tea.NewProgram(newModel(agent, cancel, opts),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, err = p.Run()
	cancel()

	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
	}

	if err != nil && ctx.Err() == nil {
		fmt.Fprintln(stderr, "tui error:", err)
		return 1
	}
	return 0
}

func (o Options) logger() runtimepkg.Logger {
	if o.Logger == nil {
		return &runtimepkg.NoOpLogger{}
	}
	return o.Logger
}
