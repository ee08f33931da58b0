package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/graphpatch/internal/config"
	"github.com/matzehuels/graphpatch/pkg/errors"
	"github.com/matzehuels/graphpatch/pkg/pipeline"
	"github.com/matzehuels/graphpatch/pkg/render"
	"github.com/matzehuels/graphpatch/pkg/session"
)

// editHelp lists the editor commands. It is shown by "help" and in the
// command's long description.
const editHelp = `Commands:
  node                 switch to add-node mode
  edge                 switch to add-edge mode
  mode <add_node|add_edge>
  click <lat> <lng>    click at a geographic position
  undo                 cancel the edge start or remove the last node/edge
  clear                remove all manual nodes and edges
  status               show mode, pending start and patch sizes
  export [file]        write the override payload as JSON (stdout if no file);
                       .dot and .svg files get a Graphviz diagram instead
  save                 persist the overrides
  quit                 leave the editor`

// editCommand creates the edit command.
func (c *CLI) editCommand() *cobra.Command {
	var (
		flags  workspaceFlags
		script string
	)

	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Add nodes and edges interactively or from a script",
		Long: `Open an editing session on the configured base graph.

Without --script an interactive editor starts. With --script, commands are
read one per line from the file ("-" for stdin); blank lines and lines
starting with # are ignored.

` + editHelp,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if script != "" {
				return c.runEditScript(cmd.Context(), cmd.OutOrStdout(), cfg, flags, script)
			}
			return c.runEditTUI(cmd.Context(), cfg, flags)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&script, "script", "", "run editor commands from a file instead of interactively")

	return cmd
}

// runEditScript executes a command file against a fresh workspace.
func (c *CLI) runEditScript(ctx context.Context, w io.Writer, cfg *config.Config, flags workspaceFlags, path string) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open script: %w", err)
		}
		defer f.Close()
		r = f
	}

	ws, closeFn, err := c.openWorkspace(ctx, cfg, flags, nil)
	if err != nil {
		return err
	}
	defer closeFn()

	fmt.Fprintln(w, statsLine(ws.Stats))
	return runScript(ctx, &editor{ws: ws}, r, w)
}

// runScript executes commands line by line. It stops at the first command
// error or at "quit"; controller outcomes such as "no target" are reported
// but do not stop the script.
func runScript(ctx context.Context, e *editor, r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		res, err := e.exec(ctx, line)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if res.output != "" {
			fmt.Fprintln(w, res.output)
		}
		if res.quit {
			return nil
		}
	}
	return sc.Err()
}

// =============================================================================
// Editor - command interpreter shared by script and TUI modes
// =============================================================================

// editor parses textual commands and applies them to a workspace.
type editor struct {
	ws *pipeline.Workspace
}

// editResult is what one command produced.
type editResult struct {
	output   string
	feedback *session.Feedback
	quit     bool
}

// exec runs a single command line.
func (e *editor) exec(ctx context.Context, line string) (editResult, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return editResult{}, nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	ctrl := e.ws.Session

	switch name {
	case "node", "edge":
		mode := session.ModeAddNode
		if name == "edge" {
			mode = session.ModeAddEdge
		}
		return e.setMode(mode)
	case "mode":
		if len(args) != 1 {
			return editResult{}, usageError("mode <add_node|add_edge>")
		}
		mode, err := session.ParseMode(args[0])
		if err != nil {
			return editResult{}, err
		}
		return e.setMode(mode)
	case "click":
		lat, lng, err := parseLatLng(args)
		if err != nil {
			return editResult{}, err
		}
		return feedbackResult(ctrl.Click(lat, lng)), nil
	case "undo":
		return feedbackResult(ctrl.Undo()), nil
	case "clear":
		return feedbackResult(ctrl.Clear()), nil
	case "status":
		return editResult{output: e.status()}, nil
	case "export":
		return e.export(ctx, args)
	case "save":
		if err := e.ws.Save(ctx); err != nil {
			return editResult{}, fmt.Errorf("save overrides: %w", err)
		}
		return editResult{output: fmt.Sprintf("%s Saved %d nodes, %d edges",
			styleIconSuccess.Render(iconSuccess), e.ws.Store.NodeCount(), e.ws.Store.EdgeCount())}, nil
	case "help", "?":
		return editResult{output: editHelp}, nil
	case "quit", "exit", "q":
		return editResult{quit: true}, nil
	}
	return editResult{}, errors.New(errors.ErrCodeInvalidInput, "unknown command %q (try help)", name)
}

func (e *editor) setMode(m session.Mode) (editResult, error) {
	if err := e.ws.Session.SetMode(m); err != nil {
		return editResult{}, err
	}
	return editResult{output: fmt.Sprintf("%s Mode: %s", styleIconInfo.Render(iconInfo), m)}, nil
}

// status summarizes the session on one line.
func (e *editor) status() string {
	ctrl := e.ws.Session
	store := e.ws.Store
	s := fmt.Sprintf("mode=%s nodes=%d edges=%d next_id=%d tolerance=%gm",
		ctrl.Mode(), store.NodeCount(), store.EdgeCount(), store.NextID(), ctrl.Tolerance())
	if p, ok := ctrl.Pending(); ok {
		s += fmt.Sprintf(" pending=%s@%s", p.ID, formatLatLng(p.Location.Lat(), p.Location.Lon()))
	}
	return s
}

// export writes the current payload as indented JSON, or a Graphviz
// diagram of it when the file ends in .dot or .svg.
func (e *editor) export(ctx context.Context, args []string) (editResult, error) {
	if len(args) > 1 {
		return editResult{}, usageError("export [file]")
	}
	var (
		data []byte
		err  error
	)
	switch {
	case len(args) == 1 && strings.EqualFold(filepath.Ext(args[0]), ".dot"):
		data = []byte(render.ToDOT(e.ws.Store.Nodes(), e.ws.Store.Edges()))
	case len(args) == 1 && strings.EqualFold(filepath.Ext(args[0]), ".svg"):
		data, err = render.RenderSVG(ctx, render.ToDOT(e.ws.Store.Nodes(), e.ws.Store.Edges()))
		if err != nil {
			return editResult{}, errors.Wrap(errors.ErrCodeInternal, err, "render diagram")
		}
	default:
		data, err = json.MarshalIndent(e.ws.Store.Payload(), "", "  ")
		if err != nil {
			return editResult{}, errors.Wrap(errors.ErrCodeInternal, err, "encode payload")
		}
	}
	if len(args) == 0 {
		return editResult{output: string(data)}, nil
	}
	if err := errors.ValidatePath(args[0]); err != nil {
		return editResult{}, err
	}
	if err := os.WriteFile(args[0], data, 0o644); err != nil {
		return editResult{}, fmt.Errorf("write %s: %w", args[0], err)
	}
	return editResult{output: fmt.Sprintf("%s Exported to %s", styleIconSuccess.Render(iconSuccess), args[0])}, nil
}

func feedbackResult(fb session.Feedback) editResult {
	return editResult{output: feedbackLine(fb), feedback: &fb}
}

// parseLatLng reads "<lat> <lng>"; a comma between them is accepted.
func parseLatLng(args []string) (lat, lng float64, err error) {
	joined := strings.ReplaceAll(strings.Join(args, " "), ",", " ")
	parts := strings.Fields(joined)
	if len(parts) != 2 {
		return 0, 0, usageError("click <lat> <lng>")
	}
	if lat, err = strconv.ParseFloat(parts[0], 64); err != nil {
		return 0, 0, errors.New(errors.ErrCodeInvalidInput, "invalid latitude %q", parts[0])
	}
	if lng, err = strconv.ParseFloat(parts[1], 64); err != nil {
		return 0, 0, errors.New(errors.ErrCodeInvalidInput, "invalid longitude %q", parts[1])
	}
	if err := errors.ValidateCoordinate(lat, lng); err != nil {
		return 0, 0, err
	}
	return lat, lng, nil
}

func usageError(usage string) error {
	return errors.New(errors.ErrCodeInvalidInput, "usage: %s", usage)
}
