package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/umputun/examdigest/pkg/classifier"
	"github.com/umputun/examdigest/pkg/delivery"
	"github.com/umputun/examdigest/pkg/domain"
	"github.com/umputun/examdigest/pkg/repository"
)

// fetchHandler triggers an immediate ingestion run
func (s *Server) fetchHandler(w http.ResponseWriter, r *http.Request) {
	result := s.fetcher.Run(r.Context())
	RenderJSON(w, r, http.StatusOK, result)
}

// classifyHandler triggers an immediate classification run. Query flags pick
// the mode: force, reprocess_errors or clean; default processes pending work.
func (s *Server) classifyHandler(w http.ResponseWriter, r *http.Request) {
	sel := classifier.Selection{
		Force:           r.URL.Query().Get("force") == "true",
		ReprocessErrors: r.URL.Query().Get("reprocess_errors") == "true",
		Clean:           r.URL.Query().Get("clean") == "true",
	}

	result, err := s.classifier.Run(r.Context(), sel)
	if err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}
	RenderJSON(w, r, http.StatusOK, result)
}

// digestHandler triggers an immediate digest delivery. With test_email the
// run targets a single subscriber and send failures surface to the caller.
func (s *Server) digestHandler(w http.ResponseWriter, r *http.Request) {
	opts := delivery.RunOptions{TestEmail: strings.TrimSpace(r.URL.Query().Get("test_email"))}

	result, err := s.dispatcher.Run(r.Context(), opts)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			RenderError(w, r, fmt.Errorf("subscriber not found"), http.StatusNotFound)
			return
		}
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}
	RenderJSON(w, r, http.StatusOK, result)
}

// subscribeRequest is the signup payload
type subscribeRequest struct {
	Email string   `json:"email"`
	Exams []string `json:"exams"`
}

// subscribeHandler creates or updates a subscription and sends the welcome
// email on first signup
func (s *Server) subscribeHandler(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RenderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Email) == "" || !strings.Contains(req.Email, "@") {
		RenderError(w, r, fmt.Errorf("valid email is required"), http.StatusBadRequest)
		return
	}
	exams := domain.UniqueTags(req.Exams)
	if len(exams) == 0 {
		RenderError(w, r, fmt.Errorf("at least one valid exam is required"), http.StatusBadRequest)
		return
	}

	sub, created, err := s.subscribers.Upsert(r.Context(), req.Email, exams)
	if err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}

	if created {
		// welcome failure doesn't undo the signup
		if err := s.dispatcher.SendWelcome(r.Context(), sub); err != nil {
			log.Printf("[WARN] welcome email failed for %s: %v", sub.Email, err)
		}
	}

	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	RenderJSON(w, r, code, map[string]interface{}{
		"email":   sub.Email,
		"exams":   sub.Exams,
		"created": created,
	})
}

// unsubscribeHandler deactivates a subscription. Accepts the email as a query
// parameter (the form used by email footer links) or a JSON body.
func (s *Server) unsubscribeHandler(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" && r.Method == http.MethodPost {
		var req struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			email = strings.TrimSpace(req.Email)
		}
	}
	if email == "" {
		RenderError(w, r, fmt.Errorf("email is required"), http.StatusBadRequest)
		return
	}

	if err := s.subscribers.Deactivate(r.Context(), email); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			RenderError(w, r, fmt.Errorf("subscriber not found"), http.StatusNotFound)
			return
		}
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}
	RenderJSON(w, r, http.StatusOK, map[string]string{"status": "unsubscribed", "email": email})
}

// examRequestPayload is the coverage request body
type examRequestPayload struct {
	Exam    string   `json:"exam"`
	Sources []string `json:"sources,omitempty"`
	Email   string   `json:"email,omitempty"`
}

// examRequestHandler records a request to cover a new exam. Intake only:
// the request is stored for review, nothing is scraped yet.
func (s *Server) examRequestHandler(w http.ResponseWriter, r *http.Request) {
	var req examRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RenderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Exam) == "" {
		RenderError(w, r, fmt.Errorf("exam name is required"), http.StatusBadRequest)
		return
	}

	entry := &domain.ExamRequest{
		Exam:    strings.TrimSpace(req.Exam),
		Sources: strings.Join(req.Sources, "\n"),
		Email:   strings.TrimSpace(req.Email),
	}
	if err := s.examRequests.Add(r.Context(), entry); err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}

	RenderJSON(w, r, http.StatusAccepted, map[string]string{
		"status": "received",
		"exam":   entry.Exam,
	})
}
