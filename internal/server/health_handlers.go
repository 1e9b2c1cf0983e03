package server

import (
	"net/http"
	"time"
)

const apiVersion = "1.0.0"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"message":   "AccountForge API is running",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "AccountForge backend is working!",
		"version": apiVersion,
		"mode":    s.Config.Env,
	})
}
