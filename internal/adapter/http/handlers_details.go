package adapthttp

import (
	"fmt"
	"net/http"

	"sugar/internal/app"
	"sugar/internal/domain"
)

type detailsResponse struct {
	Timezone    string  `json:"timezone"`
	DateOfBirth *string `json:"dateOfBirth"`
	Weight      float64 `json:"weight"`
}

func toDetailsResponse(d *domain.UserDetails) detailsResponse {
	resp := detailsResponse{Timezone: d.Timezone, Weight: d.Weight}
	if d.DateOfBirth != nil {
		dob := d.DateOfBirth.Format(domain.DateLayout)
		resp.DateOfBirth = &dob
	}
	return resp
}

func (s *Server) handleGetDetails(w http.ResponseWriter, r *http.Request) {
	d, err := s.details.Get(r.Context(), callerFromContext(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if d == nil {
		s.fail(w, r, fmt.Errorf("%w: user details not set", domain.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, toDetailsResponse(d))
}

func (s *Server) handleSaveDetails(w http.ResponseWriter, r *http.Request) {
	var in app.DetailsInput
	if err := parseJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	d, err := s.details.Save(r.Context(), callerFromContext(r), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailsResponse(d))
}
