package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"canvastrmnl/display"
	"canvastrmnl/lms"
	"canvastrmnl/lms/example"
	"canvastrmnl/triage"
)

// Routes for local development, enabled with APP_ENV=development.

type devCourse struct {
	ID   *int64  `json:"id"`
	Name *string `json:"name"`
}

type devAssignment struct {
	ID          *int64  `json:"id"`
	CourseID    *int64  `json:"courseId"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	DueAt       *string `json:"dueAt"`
}

type devGenerateRequest struct {
	Courses     map[string]devCourse     `json:"courses"`
	Assignments map[string]devAssignment `json:"assignments"`
}

func (req devGenerateRequest) data() (lms.Data, bool) {
	if req.Courses == nil || req.Assignments == nil {
		return lms.Data{}, false
	}
	data := lms.NewData()
	for key, c := range req.Courses {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil || c.ID == nil || c.Name == nil || *c.ID != id {
			return lms.Data{}, false
		}
		data.Courses[id] = lms.Course{ID: *c.ID, Name: *c.Name}
	}
	for _, a := range req.Assignments {
		if a.ID == nil || a.CourseID == nil || a.Name == nil || a.Description == nil {
			return lms.Data{}, false
		}
		asg := lms.Assignment{
			ID:          *a.ID,
			CourseID:    *a.CourseID,
			Name:        *a.Name,
			Description: *a.Description,
		}
		if a.DueAt != nil {
			due, err := time.Parse(time.RFC3339, *a.DueAt)
			if err != nil {
				return lms.Data{}, false
			}
			asg.DueAt = &due
		}
		data.Assignments[asg.ID] = asg
	}
	return data, true
}

// devGenerateHandler renders posted data in every layout.
func (s *Server) devGenerateHandler(w http.ResponseWriter, r *http.Request) {
	log := s.reqLog(r)

	var req devGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	data, ok := req.data()
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	m, err := s.Renderer.RenderAll(data, s.Now(), time.UTC)
	if err != nil {
		log.Error("Failed to render screens: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, m, log)
}

// devLongPollHandler lets the preview page poll for server restarts.
func (s *Server) devLongPollHandler(w http.ResponseWriter, r *http.Request) {
	t := time.NewTimer(s.LongPoll)
	defer t.Stop()
	select {
	case <-t.C:
	case <-r.Context().Done():
	}
	w.WriteHeader(http.StatusNoContent)
}

// devPreviewHandler draws the example data as a PNG of the device screen.
func (s *Server) devPreviewHandler(w http.ResponseWriter, r *http.Request) {
	log := s.reqLog(r)

	layout := triage.Full
	if l := r.URL.Query().Get("layout"); l != "" {
		layout = triage.Layout(l)
	}
	if !layout.Valid() {
		text(w, http.StatusBadRequest, "Unknown layout.")
		return
	}

	now := s.Now()
	p := s.Renderer.Project(example.Data(now), layout, now, time.UTC)

	var buf bytes.Buffer
	if err := display.PreviewPNG(&buf, p); err != nil {
		log.Error("Failed to draw preview: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}
