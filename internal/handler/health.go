package handler

import "net/http"

// HandleHealth reports liveness. It touches no dependency, so a broken
// database still answers 200 here.
//
// HTTP: GET /health
func HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
