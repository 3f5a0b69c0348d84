package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	hostErrors "github.com/wakesentry/host/internal/errors"
	"github.com/wakesentry/host/internal/interval"
	"github.com/wakesentry/host/internal/keepawake"
	"github.com/wakesentry/host/internal/storage"
)

// PrefStore persists the default-interval preference.
type PrefStore interface {
	SetDefaultIntervalSecs(secs int) error
}

// StatusResponse is the JSON shape of /status and the /ws status stream.
type StatusResponse struct {
	Active        bool         `json:"active"`
	IntervalSecs  int          `json:"interval_secs"`
	IntervalLabel string       `json:"interval_label"`
	Deadline      *time.Time   `json:"deadline,omitempty"`
	RemainingSecs *int64       `json:"remaining_secs,omitempty"`
	Revision      int64        `json:"revision"`
	UpdatedAt     time.Time    `json:"updated_at"`
	LastError     string       `json:"last_error,omitempty"`
	Version       string       `json:"version,omitempty"`
	Power         *PowerStatus `json:"power,omitempty"`
}

// PowerStatus mirrors the host battery snapshot; nil fields were unreadable.
type PowerStatus struct {
	OnBattery      *bool `json:"on_battery,omitempty"`
	BatteryPercent *int  `json:"battery_percent,omitempty"`
	ExternalPower  *bool `json:"external_power,omitempty"`
}

// ScheduleRequest starts (or replaces) a keep-awake session.
type ScheduleRequest struct {
	RequestID    string `json:"request_id"`
	IntervalSecs int    `json:"interval_secs"`
}

// CancelRequest cancels the active session.
type CancelRequest struct {
	RequestID string `json:"request_id"`
}

// DefaultRequest updates the persisted default interval preference.
type DefaultRequest struct {
	RequestID    string `json:"request_id"`
	IntervalSecs int    `json:"interval_secs"`
}

// MutationResponse is the JSON shape of all mutation endpoint replies.
type MutationResponse struct {
	OK             bool       `json:"ok"`
	RequestID      string     `json:"request_id,omitempty"`
	Active         bool       `json:"active"`
	IntervalSecs   int        `json:"interval_secs"`
	Deadline       *time.Time `json:"deadline,omitempty"`
	StatusRevision int64      `json:"status_revision"`
	Error          string     `json:"error,omitempty"`
	ErrorCode      string     `json:"error_code,omitempty"`
}

func (s *Server) statusResponse(st keepawake.Status) StatusResponse {
	resp := StatusResponse{
		Active:        st.Active,
		IntervalSecs:  st.Interval.Seconds(),
		IntervalLabel: st.Interval.String(),
		Revision:      st.Revision,
		UpdatedAt:     st.UpdatedAt,
		LastError:     st.LastError,
		Version:       s.opts.Version,
	}
	if !st.Deadline.IsZero() {
		d := st.Deadline
		resp.Deadline = &d
		if remaining, ok := st.Remaining(s.now()); ok {
			secs := int64(remaining / time.Second)
			resp.RemainingSecs = &secs
		}
	}
	if s.opts.Power != nil {
		snap := s.opts.Power.Snapshot()
		if snap.OnBattery != nil || snap.BatteryPercent != nil || snap.ExternalPower != nil {
			resp.Power = &PowerStatus{
				OnBattery:      snap.OnBattery,
				BatteryPercent: snap.BatteryPercent,
				ExternalPower:  snap.ExternalPower,
			}
		}
	}
	return resp
}

func (s *Server) statusMessage(st keepawake.Status) ([]byte, error) {
	return json.Marshal(s.statusResponse(st))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.statusResponse(s.supervisor.Snapshot()))
}

// authorizeMutation applies the shared mutation gate: POST only, rate limit,
// bearer token. Returns false after writing the error response.
func (s *Server) authorizeMutation(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		writeMutationError(w, http.StatusMethodNotAllowed, hostErrors.CodeServerInvalidMessage, "method not allowed")
		return false
	}
	if !s.limiter.Allow() {
		writeMutationError(w, http.StatusTooManyRequests, hostErrors.CodeServerRateLimited, "too many requests")
		return false
	}
	if s.opts.RequireAuth {
		if s.opts.Validator == nil {
			writeMutationError(w, http.StatusInternalServerError, hostErrors.CodeInternal, "token validator unavailable")
			return false
		}
		token := extractBearerToken(r)
		if err := s.opts.Validator.Validate(token); err != nil {
			code, msg := hostErrors.ToCodeAndMessage(err)
			status := http.StatusUnauthorized
			writeMutationError(w, status, code, msg)
			return false
		}
	}
	return true
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeMutation(w, r) {
		return
	}

	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMutationError(w, http.StatusBadRequest, hostErrors.CodeServerInvalidMessage, "malformed request body")
		return
	}
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	iv, err := interval.FromSeconds(req.IntervalSecs)
	if err != nil {
		code, msg := hostErrors.ToCodeAndMessage(err)
		resp := MutationResponse{
			OK:        false,
			RequestID: requestID,
			Error:     msg,
			ErrorCode: code,
		}
		s.fillMutationState(&resp)
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	if err := s.supervisor.Schedule(iv, s.completionRecorder(requestID, iv)); err != nil {
		code, msg := hostErrors.ToCodeAndMessage(err)
		resp := MutationResponse{
			OK:        false,
			RequestID: requestID,
			Error:     msg,
			ErrorCode: code,
		}
		s.fillMutationState(&resp)
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}

	s.audit(&storage.WakeAuditEntry{
		Operation:    storage.AuditOpSchedule,
		RequestID:    requestID,
		Source:       "http",
		IntervalSecs: iv.Seconds(),
		At:           s.now(),
	})

	resp := MutationResponse{OK: true, RequestID: requestID}
	s.fillMutationState(&resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeMutation(w, r) {
		return
	}

	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMutationError(w, http.StatusBadRequest, hostErrors.CodeServerInvalidMessage, "malformed request body")
		return
	}
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	// Idempotent: cancelling an idle supervisor is a no-op and still
	// reports success. The completion audit record (if any) is written by
	// the completion callback attached at schedule time.
	s.supervisor.Cancel()

	resp := MutationResponse{OK: true, RequestID: requestID}
	s.fillMutationState(&resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDefault(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeMutation(w, r) {
		return
	}

	var req DefaultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMutationError(w, http.StatusBadRequest, hostErrors.CodeServerInvalidMessage, "malformed request body")
		return
	}
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	iv, err := interval.FromSeconds(req.IntervalSecs)
	if err != nil {
		code, msg := hostErrors.ToCodeAndMessage(err)
		resp := MutationResponse{
			OK:        false,
			RequestID: requestID,
			Error:     msg,
			ErrorCode: code,
		}
		s.fillMutationState(&resp)
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	if s.opts.Prefs != nil {
		if err := s.opts.Prefs.SetDefaultIntervalSecs(iv.Seconds()); err != nil {
			log.Printf("server: failed to persist default interval: %v", err)
			writeMutationError(w, http.StatusInternalServerError, hostErrors.CodeStorageSaveFailed, "failed to persist preference")
			return
		}
	}
	s.supervisor.SetDefaultInterval(iv)

	resp := MutationResponse{OK: true, RequestID: requestID}
	s.fillMutationState(&resp)
	writeJSON(w, http.StatusOK, resp)
}

// completionRecorder builds the completion callback for a scheduled session:
// it writes the terminal audit record for that session.
func (s *Server) completionRecorder(requestID string, iv interval.Interval) keepawake.CompleteFunc {
	return func(cancelled bool) {
		op := storage.AuditOpComplete
		detail := "natural"
		if cancelled {
			op = storage.AuditOpCancel
			detail = "cancelled"
		}
		s.audit(&storage.WakeAuditEntry{
			Operation:    op,
			RequestID:    requestID,
			Source:       "system",
			IntervalSecs: iv.Seconds(),
			Detail:       detail,
			At:           s.now(),
		})
	}
}

func (s *Server) audit(entry *storage.WakeAuditEntry) {
	if s.opts.Audit == nil {
		return
	}
	if err := s.opts.Audit.SaveAndPruneWakeAudit(entry, s.opts.AuditMaxRows); err != nil {
		log.Printf("server: failed to write audit record: %v", err)
	}
}

func (s *Server) fillMutationState(resp *MutationResponse) {
	st := s.supervisor.Snapshot()
	resp.Active = st.Active
	resp.IntervalSecs = st.Interval.Seconds()
	if !st.Deadline.IsZero() {
		d := st.Deadline
		resp.Deadline = &d
	}
	resp.StatusRevision = st.Revision
}

// extractBearerToken pulls the token from an Authorization: Bearer header.
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: failed to encode response: %v", err)
	}
}

func writeMutationError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, MutationResponse{
		OK:        false,
		Error:     message,
		ErrorCode: code,
	})
}
