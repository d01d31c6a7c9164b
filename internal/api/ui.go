package api

import (
	_ "embed"
	"net/http"
)

//go:embed ui.html
var uiHTML []byte

func (s *Server) handleUI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(uiHTML)
}
