package api

import (
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"

	"golang.org/x/crypto/blake2b"

	"github.com/RobinCoderZhao/morning-news/internal/morningnews/bot"
	"github.com/RobinCoderZhao/morning-news/pkg/dailynews"
)

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, s.bot.Snapshot(s.now()))
	}
}

// imageETag is the quoted hex BLAKE2b-256 digest of the PNG.
func imageETag(png []byte) string {
	sum := blake2b.Sum256(png)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// previewImage returns today's image, preparing it at most once per day.
// Concurrent requests wait for the first one instead of fetching again.
// Failures are not cached.
func (s *Server) previewImage(ctx context.Context) ([]byte, string, error) {
	day := s.now().Format(dailynews.DateLayout)

	s.preview.Lock()
	defer s.preview.Unlock()
	if s.preview.day == day {
		return s.preview.png, s.preview.etag, nil
	}
	ed, err := s.bot.Prepare(ctx, false)
	if err != nil {
		return nil, "", err
	}
	s.preview.day = day
	s.preview.png = ed.PNG
	s.preview.etag = imageETag(ed.PNG)
	return s.preview.png, s.preview.etag, nil
}

func (s *Server) handleImage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		png, etag, err := s.previewImage(r.Context())
		if err != nil {
			s.logger.Error("preview render failed", "error", err)
			respondError(w, http.StatusBadGateway, err.Error())
			return
		}

		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "no-cache")
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(png)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(png)
	}
}

func (s *Server) handleConfigHelp() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.URL.Query().Get("origin")
		if origin == "" {
			respondError(w, http.StatusBadRequest, "origin is required")
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"origin": origin, "help": bot.ConfigHelp(origin)})
	}
}

type pushResult struct {
	Target string `json:"target"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handlePush() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.logger.Info("push requested", "subject", getSubject(r))
		report, err := s.bot.Push(r.Context())
		if errors.Is(err, bot.ErrNoTargets) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}

		results := make([]pushResult, 0, len(report.Results))
		for _, res := range report.Results {
			pr := pushResult{Target: res.Target.String(), OK: res.OK}
			if res.Err != nil {
				pr.Error = res.Err.Error()
			}
			results = append(results, pr)
		}
		body := map[string]interface{}{
			"sent":    report.Sent,
			"total":   report.Total,
			"results": results,
		}
		status := http.StatusOK
		if err != nil {
			body["error"] = err.Error()
			status = http.StatusBadGateway
		}
		respondJSON(w, status, body)
	}
}

func (s *Server) handleSendTest() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.logger.Info("test send requested", "subject", getSubject(r))
		out, err := s.bot.SendTest(r.Context())
		switch {
		case errors.Is(err, bot.ErrNoTargets):
			respondJSON(w, http.StatusConflict, map[string]string{"result": out, "error": err.Error()})
		case err != nil:
			respondJSON(w, http.StatusBadGateway, map[string]string{"result": out, "error": err.Error()})
		default:
			respondJSON(w, http.StatusOK, map[string]string{"result": out})
		}
	}
}
