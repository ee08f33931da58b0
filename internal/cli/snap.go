package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/graphpatch/pkg/geo"
	"github.com/matzehuels/graphpatch/pkg/pipeline"
	"github.com/matzehuels/graphpatch/pkg/snap"
)

// snapCommand creates the snap command, which resolves one point without
// changing anything.
func (c *CLI) snapCommand() *cobra.Command {
	var flags workspaceFlags

	cmd := &cobra.Command{
		Use:   "snap <lat> <lng>",
		Short: "Show where a point would snap on the base graph",
		Long: `Resolve a geographic point against the base graph and saved overrides.

Two results are printed: where a new node would be placed (nearest node,
otherwise nearest point on an edge) and which existing node an edge endpoint
would attach to.`,
		Example: `  graphpatch snap 48.1372 11.5756
  graphpatch snap 48.1372 11.5756 --tolerance 15
  graphpatch snap -- -33.8688 151.2093`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, lng, err := parseLatLng(args)
			if err != nil {
				return err
			}
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			ws, closeFn, err := c.openWorkspace(cmd.Context(), cfg, flags, nil)
			if err != nil {
				return err
			}
			defer closeFn()
			return c.runSnap(cmd.Context(), ws, lat, lng)
		},
	}

	flags.register(cmd)

	return cmd
}

// runSnap prints both resolutions for one point.
func (c *CLI) runSnap(ctx context.Context, ws *pipeline.Workspace, lat, lng float64) error {
	prog := newProgress(c.Logger)
	tol := ws.Session.Tolerance()
	q := ws.Index.Projector().Project(geo.Point(lat, lng))

	res, found := ws.Resolver.ResolveForNewNode(q, tol)
	ref, foundRef := ws.Resolver.ResolveNearestExistingNode(q, tol)
	prog.done("resolved point", "lat", lat, "lng", lng, "tolerance", tol)

	if ctx.Err() != nil {
		return ctx.Err()
	}

	printInfo("Query %s", formatLatLng(lat, lng))
	printNewline()

	fmt.Println(StyleTitle.Render("New node"))
	if !found {
		printWarning("No node or edge within %gm", tol)
	} else {
		printSnapResult(res)
	}
	printNewline()

	fmt.Println(StyleTitle.Render("Edge endpoint"))
	if !foundRef {
		printWarning("No node within %gm", tol)
	} else {
		printKeyValue("node", ref.ID.String())
		printKeyValue("origin", string(ref.Origin))
		printKeyValue("location", formatLatLng(ref.Location.Lat(), ref.Location.Lon()))
		printKeyValue("distance", fmt.Sprintf("%.2fm", ref.Distance))
	}
	printNewline()
	printNextStep("Edit", "graphpatch edit")
	return nil
}

func printSnapResult(res snap.Result) {
	printKeyValue("kind", string(res.Kind))
	if res.Kind == snap.KindNode {
		printKeyValue("node", res.NodeID.String())
	}
	if res.Edge != nil {
		printKeyValue("edge", fmt.Sprintf("%s-%s key %d", res.Edge.U, res.Edge.V, res.Edge.Key))
		printKeyValue("segment", fmt.Sprintf("feature %d segment %d", res.Edge.FeatureIndex, res.Edge.SegmentIndex))
		printKeyValue("t", fmt.Sprintf("%.4f", res.T))
	}
	printKeyValue("location", formatLatLng(res.Location.Lat(), res.Location.Lon()))
	printKeyValue("distance", fmt.Sprintf("%.2fm", res.Distance))
}
