package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"pokedex/catalog/internal/catalog"
	"pokedex/catalog/internal/domain"
	"pokedex/catalog/internal/loader"

	log "github.com/sirupsen/logrus"
)

// Page is a window of entries returned to the UI.
type Page struct {
	Start   int            `json:"start"`
	Count   int            `json:"count"`
	Total   int            `json:"total"`
	Entries []domain.Entry `json:"entries"`
}

type Status struct {
	Size        int    `json:"size"`
	Cursor      int    `json:"cursor"`
	LoaderState string `json:"loader_state"`
}

// Server exposes the catalog to the UI over HTTP.
type Server struct {
	cache  *catalog.Cache
	index  *catalog.Index
	loader *loader.BatchLoader
	mux    *http.ServeMux
}

func New(cache *catalog.Cache, index *catalog.Index, batchLoader *loader.BatchLoader) *Server {
	s := &Server{
		cache:  cache,
		index:  index,
		loader: batchLoader,
		mux:    http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /api/v1/pokemon", s.handleWindow)
	s.mux.HandleFunc("POST /api/v1/pokemon/load-more", s.handleLoadMore)
	s.mux.HandleFunc("GET /api/v1/pokemon/search", s.handleSearch)
	s.mux.HandleFunc("GET /api/v1/pokemon/{name}", s.handleEntry)
	s.mux.HandleFunc("GET /api/v1/status", s.handleStatus)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	s.mux.ServeHTTP(w, r)
	log.Debugf("%s %s in %v", r.Method, r.URL.RequestURI(), time.Since(started))
}

// ListenAndServe serves until ctx is cancelled, then drains connections.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("🚀 HTTP API listening on %s", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		log.Info("🛑 Shutting down HTTP API...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	start, count, err := s.windowParams(r)
	if err != nil {
		fail(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	entries := s.cache.Window(start, count)
	ok(w, Page{Start: start, Count: len(entries), Total: s.cache.Size(), Entries: entries})
}

func (s *Server) handleLoadMore(w http.ResponseWriter, r *http.Request) {
	count, err := intParam(r, "count", s.loader.BatchSize())
	if err != nil || count <= 0 {
		fail(w, http.StatusBadRequest, "BAD_REQUEST", "count must be a positive integer")
		return
	}

	entries, err := s.loader.LoadNextBatch(r.Context(), count)
	switch {
	case errors.Is(err, domain.ErrBusy):
		fail(w, http.StatusConflict, "BUSY", "catalog is loading, try again shortly")
		return
	case errors.Is(err, domain.ErrDuplicateName), errors.Is(err, domain.ErrOutOfOrder):
		log.Errorf("❌ Catalog invariant violated during load: %v", err)
		fail(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	case err != nil:
		fail(w, http.StatusServiceUnavailable, "UNAVAILABLE", err.Error())
		return
	}

	ok(w, Page{Start: s.cache.Size() - len(entries), Count: len(entries), Total: s.cache.Size(), Entries: entries})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	matches := s.index.Search(r.URL.Query().Get("q"))

	start, err := intParam(r, "start", 0)
	if err != nil || start < 0 {
		fail(w, http.StatusBadRequest, "BAD_REQUEST", "start must be a non-negative integer")
		return
	}
	count, err := intParam(r, "count", len(matches))
	if err != nil || count < 0 {
		fail(w, http.StatusBadRequest, "BAD_REQUEST", "count must be a non-negative integer")
		return
	}

	lo := min(start, len(matches))
	hi := min(lo+count, len(matches))
	ok(w, Page{Start: lo, Count: hi - lo, Total: len(matches), Entries: matches[lo:hi]})
}

func (s *Server) handleEntry(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	entry, found := s.cache.FindByName(name)
	if !found {
		fail(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("pokemon %q is not in the catalog", name))
		return
	}
	ok(w, entry)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	ok(w, Status{
		Size:        s.cache.Size(),
		Cursor:      s.loader.Cursor(),
		LoaderState: s.loader.State().String(),
	})
}

func (s *Server) windowParams(r *http.Request) (int, int, error) {
	start, err := intParam(r, "start", 0)
	if err != nil || start < 0 {
		return 0, 0, fmt.Errorf("start must be a non-negative integer")
	}
	count, err := intParam(r, "count", s.loader.BatchSize())
	if err != nil || count <= 0 {
		return 0, 0, fmt.Errorf("count must be a positive integer")
	}
	return start, count, nil
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
