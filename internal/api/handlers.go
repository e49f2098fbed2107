package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"coachplanner/internal/domain"
	"coachplanner/internal/export"
	"coachplanner/internal/models"
	"coachplanner/internal/notify"
	"coachplanner/internal/service"
)

type appointmentResponse struct {
	ID          int64     `json:"id"`
	CoachID     string    `json:"coach_id"`
	ClientID    string    `json:"client_id"`
	TrainingID  *int64    `json:"training_id,omitempty"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	StartHour   int       `json:"start_hour"`
	EndHour     int       `json:"end_hour"`
	ManageToken string    `json:"manage_token"`
	ManageURL   string    `json:"manage_url"`
	CreatedAt   time.Time `json:"created_at"`
}

type agendaEntryResponse struct {
	appointmentResponse
	ClientEmail  string `json:"client_email"`
	ClientName   string `json:"client_name"`
	TrainingName string `json:"training_name,omitempty"`
}

func (s *HTTPServer) appointmentDTO(a *models.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:          a.ID,
		CoachID:     a.CoachID,
		ClientID:    a.ClientID,
		TrainingID:  a.TrainingID,
		Date:        a.DateString(),
		Time:        a.TimeLabel(),
		StartHour:   a.StartHour,
		EndHour:     a.EndHour,
		ManageToken: a.ManageToken,
		ManageURL:   notify.ManageURL(s.baseURL, a.ManageToken),
		CreatedAt:   a.CreatedAt,
	}
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeDomainError(w, err)
		return
	}

	// Coaches are provisioned through the seed, never self-registered.
	profile, err := s.svc.Auth.Register(r.Context(), body.Email, body.Password, body.DisplayName, models.RoleClient)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"profile": profile})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeDomainError(w, err)
		return
	}

	session, err := s.svc.Auth.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, service.ErrTooManyAttempts) {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Auth.Logout(r.Context(), bearerToken(r)); err != nil {
		s.logger.Error().Err(err).Msg("logout failed")
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleCoaches(w http.ResponseWriter, r *http.Request) {
	coaches, err := s.svc.Directory.ListCoaches(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"coaches": coaches})
}

func (s *HTTPServer) handleTrainings(w http.ResponseWriter, r *http.Request) {
	options, err := s.svc.Directory.ListTrainingOptions(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trainings": options})
}

func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	coachID := strings.TrimSpace(r.PathValue("id"))
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if dateStr == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	date, err := service.ParseDate(dateStr, s.loc)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	slots, err := s.svc.Availability.ResolveAvailableSlots(r.Context(), coachID, date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"coach_id": coachID,
		"date":     dateStr,
		"slots":    slots,
	})
}

type bookRequest struct {
	CoachID    string `json:"coach_id"`
	Date       string `json:"date"`
	Hour       *int   `json:"hour"`
	Time       string `json:"time"`
	TrainingID *int64 `json:"training_id"`
}

func (b bookRequest) toModel(loc *time.Location) (models.BookingRequest, error) {
	date, err := service.ParseDate(strings.TrimSpace(b.Date), loc)
	if err != nil {
		return models.BookingRequest{}, err
	}
	hour, err := b.hour()
	if err != nil {
		return models.BookingRequest{}, err
	}
	return models.BookingRequest{
		CoachID:    strings.TrimSpace(b.CoachID),
		Date:       date,
		Hour:       hour,
		TrainingID: b.TrainingID,
	}, nil
}

func (b bookRequest) hour() (int, error) {
	if b.Hour != nil {
		return *b.Hour, nil
	}
	label := strings.TrimSpace(b.Time)
	if label == "" {
		return 0, domain.ValidationError("hour is required")
	}
	t, err := time.Parse("15:04", label)
	if err != nil || t.Minute() != 0 {
		return 0, domain.ValidationError("invalid time %q, expected HH:00", label)
	}
	return t.Hour(), nil
}

func (s *HTTPServer) handleBook(w http.ResponseWriter, r *http.Request) {
	var body bookRequest
	if err := decodeJSON(r, &body); err != nil {
		writeDomainError(w, err)
		return
	}
	req, err := body.toModel(s.loc)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result, err := s.svc.Booking.BookSlot(r.Context(), SessionFrom(r.Context()), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := map[string]any{
		"appointment":  s.appointmentDTO(result.Appointment),
		"notification": "queued",
	}
	if result.Degraded() {
		resp["notification"] = "degraded"
		resp["warning"] = domain.UserMessage(result.NotifyErr)
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *HTTPServer) handleClientAppointments(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())
	if err := requireRole(session, models.RoleClient); err != nil {
		writeDomainError(w, err)
		return
	}
	appts, err := s.svc.Booking.ClientAppointments(r.Context(), session)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, s.appointmentDTO(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": out})
}

// agendaRange reads from/to, defaulting to today and agendaRangeDays later.
func (s *HTTPServer) agendaRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	from := service.Today(s.now(), s.loc)
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		parsed, err := service.ParseDate(v, s.loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}
	to := from.AddDate(0, 0, agendaRangeDays)
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		parsed, err := service.ParseDate(v, s.loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed
	}
	return from, to, nil
}

func (s *HTTPServer) loadAgenda(r *http.Request) ([]*models.AgendaEntry, time.Time, time.Time, error) {
	from, to, err := s.agendaRange(r)
	if err != nil {
		return nil, from, to, err
	}
	entries, err := s.svc.Booking.CoachAgenda(r.Context(), SessionFrom(r.Context()), from, to)
	return entries, from, to, err
}

func (s *HTTPServer) handleAgenda(w http.ResponseWriter, r *http.Request) {
	entries, from, to, err := s.loadAgenda(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]agendaEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, agendaEntryResponse{
			appointmentResponse: s.appointmentDTO(&e.Appointment),
			ClientEmail:         e.ClientEmail,
			ClientName:          e.ClientName,
			TrainingName:        e.TrainingName,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"from":    from.Format(models.DateLayout),
		"to":      to.Format(models.DateLayout),
		"entries": out,
	})
}

func (s *HTTPServer) handleAgendaExport(w http.ResponseWriter, r *http.Request) {
	if s.svc.Exporter == nil {
		writeError(w, http.StatusNotImplemented, "export is disabled")
		return
	}
	entries, from, to, err := s.loadAgenda(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	buf, err := s.svc.Exporter.ExportCoachAgenda(entries, from, to)
	if err != nil {
		s.logger.Error().Err(err).Msg("agenda export failed")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	session := SessionFrom(r.Context())
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(session.UserID, from, to)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *HTTPServer) handleManage(w http.ResponseWriter, r *http.Request) {
	appt, err := s.svc.Booking.LookupByToken(r.Context(), strings.TrimSpace(r.PathValue("token")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointment": s.appointmentDTO(appt)})
}
