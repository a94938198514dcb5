// Package server implements the HTTP dispatcher described by the
// render RPC contract: a status GET and a render POST on "/", backed
// by a fixed-size worker pool that serializes render.Renderer calls.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/LingYi0110/HifiSamplerSharp/internal/flags"
	"github.com/LingYi0110/HifiSamplerSharp/internal/render"
	"github.com/LingYi0110/HifiSamplerSharp/internal/renderresult"
)

// requestFlags mirrors the JSON flags object in the render RPC body.
type requestFlags struct {
	G  int  `json:"g"`
	Hb int  `json:"Hb"`
	Hv int  `json:"Hv"`
	HG int  `json:"HG"`
	P  int  `json:"P"`
	T  int  `json:"t"`
	Ht int  `json:"Ht"`
	A  int  `json:"A"`

	Force    bool `json:"G"`
	LoopMode bool `json:"He"`
}

func (f requestFlags) toFlags() flags.Flags {
	return flags.Flags{
		G_: f.G, Hb: f.Hb, Hv: f.Hv, HG: f.HG, P: f.P, T: f.T, Ht: f.Ht, A: f.A,
		Force: f.Force, LoopMode: f.LoopMode,
	}
}

// requestBody is the JSON render RPC request body.
type requestBody struct {
	InputFile      string       `json:"inputFile"`
	OutputFile     string       `json:"outputFile"`
	PitchMidi      int          `json:"pitchMidi"`
	Velocity       float64      `json:"velocity"`
	Flags          requestFlags `json:"flags"`
	Offset         float64      `json:"offset"`
	Length         int          `json:"length"`
	Consonant      float64      `json:"consonant"`
	Cutoff         float64      `json:"cutoff"`
	Volume         float64      `json:"volume"`
	Modulation     float64      `json:"modulation"`
	Tempo          float64      `json:"tempo"`
	PitchBendCents []float64    `json:"pitchBendCents"`
}

func (b requestBody) toRenderRequest() render.Request {
	return render.Request{
		InputPath:      b.InputFile,
		OutputPath:     b.OutputFile,
		PitchMidi:      b.PitchMidi,
		Velocity:       b.Velocity,
		Flags:          b.Flags.toFlags(),
		OffsetMs:       b.Offset,
		LengthMs:       float64(b.Length),
		ConsonantMs:    b.Consonant,
		CutoffMs:       b.Cutoff,
		VolumePct:      b.Volume,
		Modulation:     b.Modulation,
		TempoBpm:       b.Tempo,
		PitchBendCents: b.PitchBendCents,
	}
}

// Server dispatches the render RPC over HTTP, serializing render calls
// through a fixed-size worker pool.
type Server struct {
	renderer *render.Renderer
	permits  chan struct{}
	ready    atomic.Bool
	log      *slog.Logger
}

// New constructs a Server backed by renderer, running at most
// maxWorkers renders concurrently.
func New(renderer *render.Renderer, maxWorkers int) *Server {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	s := &Server{
		renderer: renderer,
		permits:  make(chan struct{}, maxWorkers),
		log:      slog.Default(),
	}
	s.ready.Store(true)
	return s
}

// SetReady flips the status GET's response between "Server Ready" and
// "Server Initializing".
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Handler returns the "/" mux for this server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	return mux
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleStatus(w, r)
	case http.MethodPost:
		s.handleRender(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if s.ready.Load() {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "Server Ready")
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	fmt.Fprint(w, "Server Initializing")
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var body requestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeResult(w, renderresult.Result{
			StatusCode: 400,
			Message:    fmt.Sprintf("invalid request body: %v", err),
		})
		return
	}

	select {
	case s.permits <- struct{}{}:
	case <-r.Context().Done():
		writeResult(w, renderresult.FromError(fmt.Errorf("%w: waiting for a worker", renderresult.ErrAborted), ""))
		return
	}
	defer func() { <-s.permits }()

	start := time.Now()
	s.log.Info("render start", "input", body.InputFile, "output", body.OutputFile)

	req := body.toRenderRequest()
	err := s.renderer.Render(r.Context(), req)

	successMsg := fmt.Sprintf("Success: '%s' -> '%s'", stem(req.InputPath), req.OutputPath)
	result := renderresult.FromError(err, successMsg)

	if err != nil {
		s.log.Error("render failed", "input", body.InputFile, "error", err, "duration", time.Since(start))
	} else {
		s.log.Info("render done", "input", body.InputFile, "duration", time.Since(start))
	}

	writeResult(w, result)
}

func writeResult(w http.ResponseWriter, res renderresult.Result) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(res.StatusCode)
	fmt.Fprint(w, res.Message)
	if res.Traceback != "" {
		fmt.Fprint(w, "\n"+res.Traceback)
	}
}

func stem(path string) string {
	base := filepath.Base(path)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// Serve runs the HTTP server until ctx is cancelled.
func Serve(ctx context.Context, addr string, s *Server) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
