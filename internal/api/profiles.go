package api

import (
	"net/http"

	"github.com/tdewey/xhrsim/internal/xhr"
)

// profileInfo describes one quirk profile in the list response.
type profileInfo struct {
	Name    string `json:"name"`
	Default bool   `json:"default"`
}

func (s *Server) handleListProfiles(w http.ResponseWriter, _ *http.Request) {
	profiles := xhr.Profiles()
	out := make([]profileInfo, len(profiles))
	for i, p := range profiles {
		out[i] = profileInfo{
			Name:    string(p),
			Default: p == s.defaultProfile,
		}
	}
	s.writeJSON(w, http.StatusOK, out)
}
