package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/paulmach/orb"

	"github.com/matzehuels/graphpatch/internal/config"
	"github.com/matzehuels/graphpatch/pkg/errors"
	"github.com/matzehuels/graphpatch/pkg/patch"
	"github.com/matzehuels/graphpatch/pkg/session"
	"github.com/matzehuels/graphpatch/pkg/snap"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

const (
	logLines   = 6
	tableRows  = 8
	promptText = "> "
)

// runEditTUI opens a workspace and runs the interactive editor until quit.
func (c *CLI) runEditTUI(ctx context.Context, cfg *config.Config, flags workspaceFlags) error {
	preview := &previewState{}
	ws, closeFn, err := c.openWorkspace(ctx, cfg, flags, preview)
	if err != nil {
		return err
	}
	defer closeFn()

	// The alternate screen owns the terminal while the editor runs.
	c.Logger.SetOutput(io.Discard)
	defer c.Logger.SetOutput(c.logOut)

	m := newEditModel(ctx, &editor{ws: ws}, preview)
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

// =============================================================================
// previewState - text rendering of the controller's transient previews
// =============================================================================

// previewState records what a map would currently show.
type previewState struct {
	marker  *orb.Point
	segment orb.LineString
	pending *orb.Point
}

func (p *previewState) ShowMarker(pt orb.Point) {
	p.marker = &pt
}

func (p *previewState) HighlightSegment(a, b orb.Point) {
	p.segment = orb.LineString{a, b}
}

func (p *previewState) ShowPendingStart(pt orb.Point) {
	p.pending = &pt
}

func (p *previewState) ClearPreview() {
	p.marker, p.segment, p.pending = nil, nil, nil
}

func (p *previewState) String() string {
	var parts []string
	if p.pending != nil {
		parts = append(parts, "start "+formatLatLng(p.pending.Lat(), p.pending.Lon()))
	}
	if p.marker != nil {
		parts = append(parts, "marker "+formatLatLng(p.marker.Lat(), p.marker.Lon()))
	}
	if p.segment != nil {
		parts = append(parts, "segment highlighted")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "  ")
}

var _ session.Renderer = (*previewState)(nil)

// =============================================================================
// editModel - interactive editor
// =============================================================================

// saveDoneMsg reports the result of an asynchronous save.
type saveDoneMsg struct {
	nodes, edges int
	err          error
}

// editModel is the bubbletea model for the interactive editor. Commands are
// typed at a prompt; tab toggles the mode and ctrl+z undoes.
type editModel struct {
	ctx     context.Context
	editor  *editor
	preview *previewState

	input  []rune
	log    []string
	saving bool
}

func newEditModel(ctx context.Context, e *editor, preview *previewState) editModel {
	m := editModel{ctx: ctx, editor: e, preview: preview}
	m.push(statsLine(e.ws.Stats))
	m.push(listDimStyle.Render("type help for commands"))
	return m
}

func (m *editModel) push(line string) {
	m.log = append(m.log, strings.Split(line, "\n")...)
	if len(m.log) > logLines {
		m.log = m.log[len(m.log)-logLines:]
	}
}

func (m editModel) Init() tea.Cmd {
	return nil
}

func (m editModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(string(m.input))
			m.input = m.input[:0]
			return m.run(line)
		case tea.KeyBackspace:
			if len(m.input) > 0 {
				m.input = m.input[:len(m.input)-1]
			}
		case tea.KeyTab:
			next := session.ModeAddEdge
			if m.editor.ws.Session.Mode() == session.ModeAddEdge {
				next = session.ModeAddNode
			}
			res, err := m.editor.setMode(next)
			m.record(res, err)
		case tea.KeyCtrlZ:
			res, err := m.editor.exec(m.ctx, "undo")
			m.record(res, err)
		case tea.KeySpace:
			m.input = append(m.input, ' ')
		case tea.KeyRunes:
			m.input = append(m.input, msg.Runes...)
		}
	case saveDoneMsg:
		m.saving = false
		if msg.err != nil {
			m.push(styleIconError.Render(iconError) + " " + errors.UserMessage(msg.err))
		} else {
			m.push(fmt.Sprintf("%s Saved %d nodes, %d edges", styleIconSuccess.Render(iconSuccess), msg.nodes, msg.edges))
		}
	}
	return m, nil
}

// run executes one prompt line. Saving runs in the background on a snapshot
// of the payload so the editor stays responsive.
func (m editModel) run(line string) (tea.Model, tea.Cmd) {
	if line == "" {
		return m, nil
	}
	m.push(listDimStyle.Render(promptText + line))

	if strings.EqualFold(line, "save") {
		if m.saving {
			m.push(StyleWarning.Render("save already in progress"))
			return m, nil
		}
		ws := m.editor.ws
		if ws.Overrides == nil {
			m.push(styleIconError.Render(iconError) + " no override store configured")
			return m, nil
		}
		m.saving = true
		payload := ws.Store.Payload()
		ctx := m.ctx
		return m, func() tea.Msg {
			err := ws.Overrides.Save(ctx, payload)
			return saveDoneMsg{nodes: len(payload.Nodes.Features), edges: len(payload.Edges.Features), err: err}
		}
	}

	res, err := m.editor.exec(m.ctx, line)
	m.record(res, err)
	if res.quit {
		return m, tea.Quit
	}
	return m, nil
}

func (m *editModel) record(res editResult, err error) {
	if err != nil {
		m.push(styleIconError.Render(iconError) + " " + errors.UserMessage(err))
		return
	}
	if res.output != "" {
		m.push(res.output)
	}
}

func (m editModel) View() string {
	var b strings.Builder
	ws := m.editor.ws
	ctrl := ws.Session

	b.WriteString(StyleTitle.Render("graphpatch edit"))
	b.WriteString("  ")
	b.WriteString(listSelectedStyle.Render(string(ctrl.Mode())))
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  tolerance %gm", ctrl.Tolerance())))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("tab toggle mode  ctrl+z undo  esc quit"))
	b.WriteString("\n\n")

	b.WriteString(listNormalStyle.Render(fmt.Sprintf("patch: %d nodes, %d edges, next id %d",
		ws.Store.NodeCount(), ws.Store.EdgeCount(), ws.Store.NextID())))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("preview: " + m.preview.String()))
	b.WriteString("\n")

	if rows := patchRows(ws.Store.Nodes(), ws.Store.Edges(), tableRows); len(rows) > 0 {
		b.WriteString(patchTable(rows))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	for _, line := range m.log {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if m.saving {
		b.WriteString(listDimStyle.Render("saving..."))
		b.WriteString("\n")
	}
	b.WriteString(listSelectedStyle.Render(promptText))
	b.WriteString(string(m.input))
	b.WriteString(listDimStyle.Render("█"))

	return b.String()
}

// =============================================================================
// Helpers
// =============================================================================

// patchRows lists edges, then nodes, newest first within each kind, at most
// limit rows.
func patchRows(nodes []patch.Node, edges []patch.Edge, limit int) [][]string {
	rows := make([][]string, 0, limit)
	for i := len(edges) - 1; i >= 0 && len(rows) < limit; i-- {
		e := edges[i]
		rows = append(rows, []string{"edge", e.U.String() + "-" + e.V.String(), e.Highway, fmt.Sprintf("%.1fm", e.Length)})
	}
	for i := len(nodes) - 1; i >= 0 && len(rows) < limit; i-- {
		n := nodes[i]
		snapped := string(n.Properties.SnapType)
		if n.Properties.SnapType == snap.KindNode {
			snapped += " " + n.Properties.SnappedTo.String()
		}
		rows = append(rows, []string{"node", fmt.Sprint(n.ID), snapped, formatLatLng(n.Lat, n.Lng)})
	}
	return rows
}

func patchTable(rows [][]string) string {
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Kind", "ID", "Snap", "Detail").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if col == 0 {
				return listDimStyle
			}
			return listNormalStyle
		})
	return t.Render()
}
