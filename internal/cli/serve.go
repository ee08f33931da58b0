package cli

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/matzehuels/graphpatch/pkg/errors"
	"github.com/matzehuels/graphpatch/pkg/graph"
	"github.com/matzehuels/graphpatch/pkg/overrides"
	"github.com/matzehuels/graphpatch/pkg/pipeline"
	"github.com/matzehuels/graphpatch/pkg/session"
)

const (
	maxRequestBytes = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		flags workspaceFlags
		addr  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an editing session and the override layers over HTTP",
		Long: `Serve one editing session over HTTP.

Routes:
  GET  /health              liveness and base graph size
  GET  /session             mode, pending start and patch sizes
  POST /session/mode        {"mode": "add_node" | "add_edge"}
  POST /session/click       {"lat": 48.137, "lng": 11.575}
  POST /session/undo
  POST /session/clear
  GET  /session/export      override payload {"nodes": ..., "edges": ...}
  POST /session/save        persist the payload to the override store
  GET  /overrides/{layer}   stored override layer ("nodes" or "edges")
  POST /overrides           replace both stored layers

Requests are applied one at a time in arrival order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			ws, closeFn, err := c.openWorkspace(cmd.Context(), cfg, flags, nil)
			if err != nil {
				return err
			}
			defer closeFn()

					printInfo("Listening on %s", addr)
			return c.runServer(cmd.Context(), addr, newSessionServer(ws, c.Logger))
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")

	return cmd
}

// runServer serves h until ctx is cancelled, then shuts down gracefully.
func (c *CLI) runServer(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	c.Logger.Info("server stopped")
	return nil
}

// =============================================================================
// sessionServer - HTTP front end for one workspace
// =============================================================================

// sessionServer serializes access to a workspace. The controller and store
// assume a single caller, so every session route holds mu.
type sessionServer struct {
	mu     sync.Mutex
	ws     *pipeline.Workspace
	logger *log.Logger
	router chi.Router
}

func newSessionServer(ws *pipeline.Workspace, logger *log.Logger) *sessionServer {
	s := &sessionServer{ws: ws, logger: logger, router: chi.NewRouter()}

	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)
	r.Route("/session", func(r chi.Router) {
		r.Get("/", s.handleState)
		r.Post("/mode", s.handleMode)
		r.Post("/click", s.handleClick)
		r.Post("/undo", s.handleUndo)
		r.Post("/clear", s.handleClear)
		r.Get("/export", s.handleExport)
		r.Post("/save", s.handleSave)
	})
	if ws.Overrides != nil {
		overrides.NewHandler(ws.Overrides, logger).Mount(r)
	}
	return s
}

func (s *sessionServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger attaches a request-scoped logger and logs each request at
// debug level.
func (s *sessionServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		l := s.logger.With("request_id", middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(withLogger(r.Context(), l)))
		l.Debug("request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "duration", time.Since(start))
	})
}

// =============================================================================
// Response shapes
// =============================================================================

type pendingJSON struct {
	ID  graph.NodeID `json:"id"`
	Lat float64      `json:"lat"`
	Lng float64      `json:"lng"`
}

type stateJSON struct {
	Mode      session.Mode `json:"mode"`
	Tolerance float64      `json:"tolerance"`
	Pending   *pendingJSON `json:"pending"`
	Nodes     int          `json:"nodes"`
	Edges     int          `json:"edges"`
	NextID    int64        `json:"next_id"`
}

type nodeJSON struct {
	ID           int64        `json:"id"`
	Lat          float64      `json:"lat"`
	Lng          float64      `json:"lng"`
	SnapType     string       `json:"snap_type"`
	SnapDistance float64      `json:"snap_distance"`
	SnappedTo    graph.NodeID `json:"snapped_to"`
}

type edgeJSON struct {
	U       graph.NodeID `json:"u"`
	V       graph.NodeID `json:"v"`
	OSMID   string       `json:"osmid"`
	Highway string       `json:"highway"`
	Length  float64      `json:"length"`
}

type feedbackJSON struct {
	Outcome session.Outcome `json:"outcome"`
	Message string          `json:"message"`
	OK      bool            `json:"ok"`
	Node    *nodeJSON       `json:"node,omitempty"`
	Edge    *edgeJSON       `json:"edge,omitempty"`
	State   stateJSON       `json:"state"`
}

// state snapshots the session. Callers hold mu.
func (s *sessionServer) state() stateJSON {
	ctrl := s.ws.Session
	st := stateJSON{
		Mode:      ctrl.Mode(),
		Tolerance: ctrl.Tolerance(),
		Nodes:     s.ws.Store.NodeCount(),
		Edges:     s.ws.Store.EdgeCount(),
		NextID:    s.ws.Store.NextID(),
	}
	if p, ok := ctrl.Pending(); ok {
		st.Pending = &pendingJSON{ID: p.ID, Lat: p.Location.Lat(), Lng: p.Location.Lon()}
	}
	return st
}

// feedback converts a controller result. Callers hold mu.
func (s *sessionServer) feedback(fb session.Feedback) feedbackJSON {
	out := feedbackJSON{Outcome: fb.Outcome, Message: fb.Message, OK: fb.OK(), State: s.state()}
	if n := fb.Node; n != nil {
		out.Node = &nodeJSON{
			ID:           n.ID,
			Lat:          n.Lat,
			Lng:          n.Lng,
			SnapType:     string(n.Properties.SnapType),
			SnapDistance: n.Properties.SnapDistance,
			SnappedTo:    n.Properties.SnappedTo,
		}
	}
	if e := fb.Edge; e != nil {
		out.Edge = &edgeJSON{U: e.U, V: e.V, OSMID: e.OSMID, Highway: e.Highway, Length: e.Length}
	}
	return out
}

// =============================================================================
// Handlers
// =============================================================================

func (s *sessionServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	overrides.WriteJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"source":   s.ws.Source.String(),
		"nodes":    s.ws.Stats.Nodes,
		"segments": s.ws.Stats.Segments,
	})
}

func (s *sessionServer) handleState(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	overrides.WriteJSON(w, http.StatusOK, s.state())
}

func (s *sessionServer) handleMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	mode, err := session.ParseMode(req.Mode)
	if err != nil {
		overrides.WriteError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ws.Session.SetMode(mode); err != nil {
		overrides.WriteError(w, http.StatusBadRequest, err)
		return
	}
	overrides.WriteJSON(w, http.StatusOK, s.state())
}

func (s *sessionServer) handleClick(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Lat == nil || req.Lng == nil {
		overrides.WriteError(w, http.StatusBadRequest, errors.New(errors.ErrCodeInvalidInput, "lat and lng are required"))
		return
	}
	if err := errors.ValidateCoordinate(*req.Lat, *req.Lng); err != nil {
		overrides.WriteError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fb := s.ws.Session.Click(*req.Lat, *req.Lng)
	overrides.WriteJSON(w, http.StatusOK, s.feedback(fb))
}

func (s *sessionServer) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	overrides.WriteJSON(w, http.StatusOK, s.feedback(s.ws.Session.Undo()))
}

func (s *sessionServer) handleClear(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	overrides.WriteJSON(w, http.StatusOK, s.feedback(s.ws.Session.Clear()))
}

func (s *sessionServer) handleExport(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	p := s.ws.Store.Payload()
	s.mu.Unlock()
	overrides.WriteJSON(w, http.StatusOK, p)
}

func (s *sessionServer) handleSave(w http.ResponseWriter, r *http.Request) {
	logger := loggerFromContext(r.Context())
	prog := newProgress(logger)

	s.mu.Lock()
	p := s.ws.Store.Payload()
	s.mu.Unlock()

	if s.ws.Overrides == nil {
		overrides.WriteError(w, http.StatusNotImplemented, errors.New(errors.ErrCodeUnsupported, "no override store configured"))
		return
	}
	if err := s.ws.Overrides.Save(r.Context(), p); err != nil {
		logger.Error("save overrides failed", "error", err)
		overrides.WriteError(w, saveStatus(err), err)
		return
	}
	prog.done("saved overrides", "nodes", len(p.Nodes.Features), "edges", len(p.Edges.Features))
	overrides.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "saved",
		"nodes":  len(p.Nodes.Features),
		"edges":  len(p.Edges.Features),
	})
}

// saveStatus maps persistence failures to gateway errors.
func saveStatus(err error) int {
	if errors.IsPersistence(err) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// decodeBody decodes a JSON request body, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(v); err != nil {
		overrides.WriteError(w, http.StatusBadRequest, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid request body"))
		return false
	}
	return true
}
