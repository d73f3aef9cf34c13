// Package web serves reconciliation reports over HTTP: the latest
// diagnosis as JSON, a live SSE stream backed by the report journal,
// and a small status page.
package web

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/acme/autocert"

	"github.com/vadiminshakov/reckon/internal/entity"
)

const reportPollInterval = 3 * time.Second

type reportReader interface {
	ReportsAfter(index uint64) ([]entity.DiagnosisRecord, error)
	CurrentIndex() uint64
}

// Server exposes HTTP endpoints for the diagnosis journal.
type Server struct {
	Addr  string
	Store reportReader
}

// NewServer creates a new web server instance.
func NewServer(addr string, store reportReader) *Server {
	return &Server{Addr: addr, Store: store}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/report", s.handleLatestReport)
	mux.HandleFunc("/report/stream", s.handleReportStream)
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWithAutoTLS runs an HTTPS server with automatic TLS certificates via ACME.
// It also starts an HTTP server on port 80 to handle ACME HTTP-01 challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(domains) == 0 {
		return fmt.Errorf("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	// HTTP server on port 80 for ACME challenges and HTTP->HTTPS redirects.
	httpSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	httpsSrv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
		TLSConfig:         tlsConfig,
	}

	// shutdown both servers when context is cancelled.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http (acme) server shutdown error: %v", err)
		}
		if err := httpsSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("https server shutdown error: %v", err)
		}
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http (acme) server error: %v", err)
		}
	}()

	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

// handleLatestReport returns the most recent diagnosis as JSON.
func (s *Server) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		http.Error(w, "report store not available", http.StatusServiceUnavailable)
		return
	}

	current := s.Store.CurrentIndex()
	if current == 0 {
		http.Error(w, "no reports yet", http.StatusNotFound)
		return
	}

	records, err := s.Store.ReportsAfter(current - 1)
	if err != nil || len(records) == 0 {
		http.Error(w, "failed to load report", http.StatusInternalServerError)
		if err != nil {
			log.Printf("latest report load: %v", err)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(records[len(records)-1].Diagnosis); err != nil {
		log.Printf("latest report encode: %v", err)
	}
}

func (s *Server) handleReportStream(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "report store not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// send a comment heartbeat every 20s so proxies keep connection
	heartbeat := time.NewTicker(20 * time.Second)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(reportPollInterval)
	defer pollTicker.Stop()

	lastIndex := parseLastEventID(r.Header.Get("Last-Event-ID"), r.URL.Query().Get("last_event_id"))
	sendReports := func() error {
		records, err := s.Store.ReportsAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			payload, err := json.Marshal(record.Diagnosis)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "id: %d\n", record.Index)
			fmt.Fprintf(w, "event: report\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastIndex = record.Index
		}
		return nil
	}

	if err := sendReports(); err != nil {
		http.Error(w, "failed to load reports", http.StatusInternalServerError)
		log.Printf("report stream initial load: %v", err)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendReports(); err != nil {
				log.Printf("report stream poll err: %v", err)
			}
		}
	}
}

// parseLastEventID extracts an SSE event ID from either the Last-Event-ID header or a query parameter.
// The header is preferred; the query parameter allows manual reconnects to resume from a known index.
func parseLastEventID(headerVal, queryVal string) uint64 {
	idStr := strings.TrimSpace(headerVal)
	if idStr == "" {
		idStr = strings.TrimSpace(queryVal)
	}
	if idStr == "" {
		return 0
	}

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		log.Printf("invalid last event id %q: %v", idStr, err)
		return 0
	}
	return id
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Reckon</title>
  <link href="https://fonts.googleapis.com/css2?family=Space+Mono:wght@400;700&display=swap" rel="stylesheet">
  <style>
    * { box-sizing:border-box; }
    body {
      margin:0;
      min-height:100vh;
      display:flex;
      align-items:center;
      justify-content:center;
      padding:2rem;
      background:#ffffff;
      color:#111111;
      font-family:'Space Mono','JetBrains Mono',monospace;
    }
    #app {
      width:min(900px, 96vw);
      background:#f6f6f6;
      border:3px solid #111;
      padding:2rem;
      box-shadow:12px 12px 0 rgba(0,0,0,.15);
      display:flex;
      flex-direction:column;
      gap:1.5rem;
    }
    header { display:flex; justify-content:space-between; align-items:center; }
    h1 { font-size:.9rem; text-transform:uppercase; letter-spacing:.2em; margin:0; }
    .status {
      font-size:.65rem;
      text-transform:uppercase;
      letter-spacing:.1em;
      border:2px solid #111;
      padding:.4rem .9rem;
      background:#fff;
    }
    .equity {
      border:3px solid #111;
      padding:1.2rem;
      background:#fff;
      box-shadow:6px 6px 0 rgba(0,0,0,.12);
    }
    .equity .label { font-size:.62rem; text-transform:uppercase; letter-spacing:.2em; color:#4d4d4d; }
    .equity .value { margin-top:.8rem; font-size:1.8rem; font-weight:700; }
    .verdict {
      border:2px solid #111;
      padding:1rem;
      background:#fff;
      font-size:.75rem;
      line-height:1.5;
    }
    .verdict.shared { border-color:#d7263d; }
    .pills { display:flex; flex-wrap:wrap; gap:.5rem; }
    .pill {
      font-size:.55rem;
      letter-spacing:.12em;
      text-transform:uppercase;
      padding:.35rem .7rem;
      border:2px solid #111;
      background:#fefefe;
    }
  </style>
</head>
<body>
  <div id="app">
    <header>
      <h1>reckon · equity reconciliation</h1>
      <div id="sse-status" class="status">Connecting…</div>
    </header>
    <div class="equity">
      <div class="label">Total equity</div>
      <div id="equity" class="value">—</div>
    </div>
    <div id="verdict" class="verdict">Waiting for a report…</div>
    <div id="pills" class="pills"></div>
  </div>
<script>
const statusEl = document.getElementById('sse-status');
const equityEl = document.getElementById('equity');
const verdictEl = document.getElementById('verdict');
const pillsEl = document.getElementById('pills');

function pill(text){
  const el = document.createElement('span');
  el.className = 'pill';
  el.textContent = text;
  return el;
}

function render(report){
  equityEl.textContent = report.total_equity;
  verdictEl.textContent = report.verdict.rationale;
  verdictEl.className = 'verdict' + (report.verdict.pools_are_shared ? ' shared' : '');
  pillsEl.replaceChildren(
    pill(report.venue),
    pill('spot ' + report.spot_subtotal),
    pill('derivatives ' + report.derivatives_subtotal),
    pill('funding ' + report.funding_subtotal),
    pill('positions ' + (report.open_positions ? report.open_positions.length : 0)),
    pill('fills ' + report.fill_count)
  );
}

function connectSSE(){
  const source = new EventSource('/report/stream');
  statusEl.textContent = 'Status: receiving data';
  source.addEventListener('report', (event) => {
    try{
      render(JSON.parse(event.data));
    }catch(err){
      console.error('report parse', err);
    }
  });
  source.addEventListener('error', () => {
    statusEl.textContent = 'Reconnecting…';
    source.close();
    setTimeout(connectSSE, 2000);
  });
}

connectSSE();
</script>
</body>
</html>`
