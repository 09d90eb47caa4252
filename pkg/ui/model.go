package ui

import (
	"context"
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/checktree/pkg/model"
	"github.com/vanderheijden86/checktree/pkg/nodeid"
	"github.com/vanderheijden86/checktree/pkg/session"
	"github.com/vanderheijden86/checktree/pkg/state"
)

// copyToClipboard is replaced in tests.
var copyToClipboard = clipboard.WriteAll

// LoadedMsg carries the outcome of a lazy child fetch back to the event loop.
type LoadedMsg struct {
	Result session.LoadResult
}

// Options configures a Model.
type Options struct {
	Title    string
	Theme    Theme
	Keys     KeyMap
	Recorder *state.Recorder // Persists checked/expanded/selected; optional
	Worker   *BackgroundWorker

	// Reload reads the tree again for the reload key when there is no
	// worker. Optional.
	Reload func() (model.Tree, error)

	// Context bounds lazy fetches. Defaults to context.Background.
	Context context.Context
}

// Model is the bubbletea model of the tree view. All tree mutations go
// through the controller on the bubbletea event loop; fetches run as
// commands and come back as LoadedMsg.
type Model struct {
	ctrl  *session.Controller
	tree  TreeModel
	theme Theme
	keys  KeyMap
	title string

	help     help.Model
	spinner  spinner.Model
	helpView viewport.Model
	showHelp bool
	picker   *NodePickerModel // Open finder, or nil

	recorder *state.Recorder
	worker   *BackgroundWorker
	reload   func() (model.Tree, error)
	ctx      context.Context

	pending   int // Fetches in flight
	status    string
	statusErr bool

	width  int
	height int
}

// NewModel creates the tree view over ctrl.
func NewModel(ctrl *session.Controller, opts Options) Model {
	if opts.Theme.Renderer == nil {
		opts.Theme = DefaultTheme(lipgloss.DefaultRenderer())
	}
	if opts.Keys.Quit.Keys() == nil {
		opts.Keys = DefaultKeyMap()
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Title == "" {
		opts.Title = "checktree"
	}

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = opts.Theme.Renderer.NewStyle().Foreground(opts.Theme.Highlight)

	h := help.New()
	h.Styles.ShortKey = opts.Theme.Renderer.NewStyle().Foreground(opts.Theme.Secondary)
	h.Styles.ShortDesc = opts.Theme.Renderer.NewStyle().Foreground(opts.Theme.Muted)

	return Model{
		ctrl:     ctrl,
		tree:     NewTreeModel(ctrl, opts.Theme),
		theme:    opts.Theme,
		keys:     opts.Keys,
		title:    opts.Title,
		help:     h,
		spinner:  sp,
		helpView: viewport.New(0, 0),
		recorder: opts.Recorder,
		worker:   opts.Worker,
		reload:   opts.Reload,
		ctx:      opts.Context,
	}
}

// Controller returns the controller the model drives.
func (m Model) Controller() *session.Controller {
	return m.ctrl
}

// Status returns the status line message and whether it is an error.
func (m Model) Status() (string, bool) {
	return m.status, m.statusErr
}

// Pending returns the number of fetches in flight.
func (m Model) Pending() int {
	return m.pending
}

func (m Model) Init() tea.Cmd {
	return nil
}

// loadCmd runs req off the event loop.
func loadCmd(ctx context.Context, req *session.LoadRequest) tea.Cmd {
	return func() tea.Msg {
		return LoadedMsg{Result: req.Run(ctx)}
	}
}

func reloadCmd(fn func() (model.Tree, error)) tea.Cmd {
	return func() tea.Msg {
		t, err := fn()
		if err != nil {
			return ReloadErrorMsg{Err: err, Recoverable: true}
		}
		return TreeReloadedMsg{Tree: t}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.tree.SetSize(msg.Width, max(msg.Height-2, 1))
		m.helpView.Width = max(msg.Width-4, 10)
		m.helpView.Height = max(msg.Height-4, 3)
		if m.showHelp {
			m.helpView.SetContent(RenderHelp(m.ctrl.HierarchicalCheck(), m.helpView.Width))
		}
		return m, nil

	case tea.KeyMsg:
		if m.showHelp {
			return m.updateHelp(msg)
		}
		if m.picker != nil {
			p, cmd, done := m.picker.Update(msg)
			m.picker = &p
			if done {
				m.picker = nil
			}
			return m, cmd
		}
		return m.handleKey(msg)

	case JumpToNodeMsg:
		cmd, ok := m.reveal(msg.NodeID)
		if !ok {
			m.setError("cannot show " + msg.NodeID)
		}
		m.tree.Refresh()
		m.flush()
		return m, cmd

	case LoadedMsg:
		m.pending = max(m.pending-1, 0)
		m.ctrl.Resolve(msg.Result)
		if msg.Result.Err != nil {
			m.setError(fmt.Sprintf("load failed: %v", msg.Result.Err))
		}
		m.tree.Refresh()
		m.flush()
		return m, nil

	case spinner.TickMsg:
		if m.pending == 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TreeReloadedMsg:
		m.ctrl.Replace(msg.Tree)
		if m.recorder != nil {
			m.recorder.File.Apply(m.ctrl)
		}
		m.tree.Refresh()
		m.flush()
		m.setStatus("reloaded")
		return m, nil

	case ReloadErrorMsg:
		m.setError(fmt.Sprintf("reload failed: %v", msg.Err))
		return m, nil
	}
	return m, nil
}

func (m Model) updateHelp(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Help), msg.String() == "esc", msg.String() == "q":
		m.showHelp = false
		return m, nil
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.helpView, cmd = m.helpView.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status, m.statusErr = "", false
	focused := m.ctrl.Focused()
	var cmd tea.Cmd

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.flush()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		m.ctrl.FocusPrevious()
	case key.Matches(msg, m.keys.Down):
		m.ctrl.FocusNext()
	case key.Matches(msg, m.keys.Top):
		m.ctrl.FocusFirst()
	case key.Matches(msg, m.keys.Bottom):
		m.ctrl.FocusLast()
	case key.Matches(msg, m.keys.PageUp):
		m.tree.FocusRow(m.tree.FocusIndex() - m.tree.PageSize())
	case key.Matches(msg, m.keys.PageDown):
		m.tree.FocusRow(m.tree.FocusIndex() + m.tree.PageSize())

	case key.Matches(msg, m.keys.Right):
		cmd = m.expand(focused)
	case key.Matches(msg, m.keys.Left):
		n := m.ctrl.Node(focused)
		if n != nil && n.St().Expanded {
			m.ctrl.Collapse(focused)
		} else {
			m.ctrl.FocusParent()
		}

	case key.Matches(msg, m.keys.ExpandAll):
		m.ctrl.ExpandAll()
	case key.Matches(msg, m.keys.CollapseAll):
		m.ctrl.CollapseAll()

	case key.Matches(msg, m.keys.Check):
		m.ctrl.ToggleChecked(focused)
	case key.Matches(msg, m.keys.Select):
		m.ctrl.ToggleSelected(focused)

	case key.Matches(msg, m.keys.Find):
		p := NewNodePicker(m.ctrl.Tree(), m.theme)
		p.SetWidth(m.width)
		m.picker = &p
		return m, nil

	case key.Matches(msg, m.keys.Copy):
		m.copyFocused()
	case key.Matches(msg, m.keys.Reload):
		cmd = m.requestReload()

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		m.helpView.SetContent(RenderHelp(m.ctrl.HierarchicalCheck(), m.helpView.Width))
		m.helpView.GotoTop()
		return m, nil

	default:
		return m, nil
	}

	m.tree.Refresh()
	m.flush()
	return m, cmd
}

// expand opens the focused node, or moves into its first child when it is
// already open. A fetch is started for unloaded lazy nodes.
func (m *Model) expand(id string) tea.Cmd {
	n := m.ctrl.Node(id)
	if n == nil {
		return nil
	}
	if n.St().Expanded {
		if n.HasChildren() {
			m.ctrl.Focus(nodeid.Child(id, 0))
		}
		return nil
	}
	needsFetch := n.NeedsFetch()
	req := m.ctrl.Expand(id)
	if req == nil {
		if needsFetch {
			m.setError("no loader configured")
		}
		return nil
	}
	return m.startLoad(req)
}

// startLoad runs req off the loop and starts the spinner for the first
// pending load.
func (m *Model) startLoad(req *session.LoadRequest) tea.Cmd {
	m.pending++
	cmds := []tea.Cmd{loadCmd(m.ctx, req)}
	if m.pending == 1 {
		cmds = append(cmds, m.spinner.Tick)
	}
	return tea.Batch(cmds...)
}

// reveal expands the ancestors of id and focuses it. It fails when an
// ancestor cannot be expanded. Ancestors of a loaded node normally have their
// children already; any fetch an expand does start is returned as a command.
func (m *Model) reveal(id string) (tea.Cmd, bool) {
	if m.ctrl.Node(id) == nil {
		return nil, false
	}
	var ancestors []string
	for p := nodeid.Parent(id); p != ""; p = nodeid.Parent(p) {
		ancestors = append([]string{p}, ancestors...)
	}
	var cmds []tea.Cmd
	for _, a := range ancestors {
		if m.ctrl.Node(a).St().Expanded {
			continue
		}
		if req := m.ctrl.Expand(a); req != nil {
			cmds = append(cmds, m.startLoad(req))
		}
	}
	ok := m.ctrl.Focus(id)
	if len(cmds) == 0 {
		return nil, ok
	}
	return tea.Batch(cmds...), ok
}

func (m *Model) copyFocused() {
	n := m.ctrl.FocusedNode()
	if n == nil {
		return
	}
	text := n.Key
	if text == "" {
		text = n.ID
	}
	if err := copyToClipboard(text); err != nil {
		m.setError(fmt.Sprintf("copy failed: %v", err))
		return
	}
	m.setStatus("copied " + text)
}

func (m *Model) requestReload() tea.Cmd {
	switch {
	case m.worker != nil:
		m.worker.ResetHash()
		m.worker.TriggerRefresh()
		m.setStatus("reloading…")
	case m.reload != nil:
		m.setStatus("reloading…")
		return reloadCmd(m.reload)
	default:
		m.setError("nothing to reload")
	}
	return nil
}

func (m *Model) flush() {
	if m.recorder == nil || !m.recorder.Dirty() {
		return
	}
	if err := m.recorder.Flush(); err != nil {
		m.setError(fmt.Sprintf("save state: %v", err))
	}
}

func (m *Model) setStatus(s string) {
	m.status, m.statusErr = s, false
}

func (m *Model) setError(s string) {
	m.status, m.statusErr = s, true
}

func (m Model) View() string {
	if m.showHelp {
		return renderHelpFrame(m.helpView.View(), m.theme, m.width)
	}
	if m.picker != nil {
		return lipgloss.JoinVertical(lipgloss.Left, m.picker.View(), m.renderFooter())
	}
	spin := ""
	if m.pending > 0 {
		spin = m.spinner.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.tree.View(spin),
		m.renderFooter(),
	)
}

func (m Model) renderFooter() string {
	r := m.theme.Renderer
	titleStyle := r.NewStyle().Foreground(lipgloss.Color("#282A36")).Background(m.theme.Primary).Bold(true).Padding(0, 1)
	statsStyle := r.NewStyle().Foreground(m.theme.Subtext).Padding(0, 1)

	checked, partial := 0, 0
	for _, n := range m.ctrl.Visible() {
		switch n.St().Checked {
		case model.Checked:
			checked++
		case model.Partial:
			partial++
		}
	}
	stats := fmt.Sprintf("%d/%d checked", checked, m.tree.RowCount())
	if partial > 0 {
		stats += fmt.Sprintf(" · %d partial", partial)
	}
	if sel := m.ctrl.Selected(); len(sel) > 0 {
		stats += fmt.Sprintf(" · %d selected", len(sel))
	}
	if m.pending > 0 {
		stats += fmt.Sprintf(" · %s loading %d", m.spinner.View(), m.pending)
	}

	status := titleStyle.Render(m.title) + statsStyle.Render(stats)
	if m.status != "" {
		st := r.NewStyle().Foreground(m.theme.Highlight)
		if m.statusErr {
			st = r.NewStyle().Foreground(m.theme.Error)
		}
		status += st.Render(m.status)
	}
	return status + "\n" + m.help.ShortHelpView(m.keys.ShortHelp())
}
