// Package devserver is a local implementation of the back-office
// notification API backed by SQLite. It serves the REST endpoints and the
// live feed the client talks to.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/nhle/labordesk/internal/model"
	"github.com/nhle/labordesk/internal/store"
)

// maxUploadSize bounds a multipart create request.
const maxUploadSize = 10 << 20

// dateLayouts are the accepted start_date/end_date formats.
var dateLayouts = []string{
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// Options configures a Server.
type Options struct {
	Store       store.Store
	Attachments AttachmentStore

	// Token, when set, is required as a bearer token on every API call.
	Token string

	// AllowedOrigins lists browser origins for CORS. Empty allows all.
	AllowedOrigins []string

	// Location interprets date filters that carry no offset. Defaults to
	// time.Local.
	Location *time.Location

	Logger *zap.Logger
}

// Server serves the notification API.
type Server struct {
	store       store.Store
	attachments AttachmentStore
	hub         *Hub
	token       string
	origins     []string
	loc         *time.Location
	log         *zap.Logger
	now         func() time.Time
}

// New creates a Server.
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	return &Server{
		store:       opts.Store,
		attachments: opts.Attachments,
		hub:         NewHub(log.Named("hub")),
		token:       opts.Token,
		origins:     opts.AllowedOrigins,
		loc:         loc,
		log:         log,
		now:         time.Now,
	}
}

// Hub returns the live feed hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the routed HTTP handler wrapped in CORS and request
// logging.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc(uploadsPrefix+"{name}", s.handleUpload).Methods(http.MethodGet)

	api := router.NewRoute().Subrouter()
	api.Use(s.requireToken)
	api.HandleFunc("/notifications", s.handleList).Methods(http.MethodGet)
	api.HandleFunc("/notifications", s.handleCreate).Methods(http.MethodPost)
	api.HandleFunc("/notifications/grouped", s.handleGrouped).Methods(http.MethodGet)
	api.HandleFunc("/notifications/with-attachment", s.handleCreateWithAttachment).Methods(http.MethodPost)
	api.HandleFunc("/notifications/{id:[0-9]+}", s.handleDelete).Methods(http.MethodDelete)
	api.HandleFunc("/notifications/{id:[0-9]+}/archive", s.handleArchive).Methods(http.MethodPost)
	api.HandleFunc("/notifications/{id:[0-9]+}/action", s.handleAction).Methods(http.MethodPost)
	api.HandleFunc("/ws/notifications", s.hub.ServeWS)

	router.Use(s.logRequests)

	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})

	return c.Handler(router)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully and disconnects live feed clients.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("dev server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.hub.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down dev server: %w", err)
	}
	return nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.NotificationFilter{
		Role: q.Get("user_role"),
		Now:  s.now(),
	}

	if v := q.Get("archived"); v != "" {
		archived, err := strconv.ParseBool(v)
		if err != nil {
			writeValidation(w, "query", "archived", "value is not a valid boolean")
			return
		}
		filter.Archived = archived
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{
		{"start_date", &filter.Start},
		{"end_date", &filter.End},
	} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := s.parseDate(v)
		if err != nil {
			writeValidation(w, "query", p.name, "invalid datetime format")
			return
		}
		*p.dst = &t
	}

	items, err := s.store.ListNotifications(r.Context(), filter)
	if err != nil {
		s.internalError(w, "listing notifications", err)
		return
	}
	if items == nil {
		items = []model.Notification{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGrouped(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeValidation(w, "query", "days", "value must be a positive integer")
			return
		}
		days = n
	}

	groups, err := s.store.GroupNotifications(r.Context(), s.now().AddDate(0, 0, -days))
	if err != nil {
		s.internalError(w, "grouping notifications", err)
		return
	}
	if groups == nil {
		groups = []model.GroupedNotification{}
	}
	writeJSON(w, http.StatusOK, groups)
}

// createPayload is the create body. It accepts the client's request plus
// fields other producers may set.
type createPayload struct {
	model.CreateRequest
	ActionRequired string     `json:"action_required,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

func (p createPayload) notification() model.Notification {
	return model.Notification{
		Message:        strings.TrimSpace(p.Message),
		Type:           p.Type,
		AllowedRoles:   p.AllowedRoles,
		Icon:           p.Icon,
		Color:          p.Color,
		Emoji:          p.Emoji,
		ScheduledAt:    p.ScheduledAt,
		ExpiresAt:      p.ExpiresAt,
		ActionRequired: p.ActionRequired,
	}
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var p createPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.create(w, r, p, "")
}

func (s *Server) handleCreateWithAttachment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	raw := r.FormValue("notification")
	if raw == "" {
		writeValidation(w, "body", "notification", "field required")
		return
	}
	var p createPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		writeValidation(w, "body", "notification", "invalid JSON")
		return
	}

	attachment := ""
	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		writeDetail(w, http.StatusBadRequest, "invalid file part")
		return
	default:
		defer file.Close()
		name := objectName(header.Filename)
		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if err := s.attachments.Save(r.Context(), name, file, header.Size, contentType); err != nil {
			s.internalError(w, "saving attachment", err)
			return
		}
		attachment = attachmentPath(name)
	}

	s.create(w, r, p, attachment)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request, p createPayload, attachment string) {
	n := p.notification()
	if n.Message == "" {
		writeValidation(w, "body", "message", "field required")
		return
	}
	n.Attachment = attachment
	n.CreatedAt = s.now()

	created, err := s.store.CreateNotification(r.Context(), n)
	if err != nil {
		s.internalError(w, "creating notification", err)
		return
	}

	s.log.Info("notification created",
		zap.Int64("id", created.ID),
		zap.String("type", string(created.Type)),
		zap.Bool("attachment", created.Attachment != ""),
	)
	// Lists hide scheduled items until they are due; the feed does too.
	if created.ScheduledAt == nil || !created.ScheduledAt.After(s.now()) {
		s.hub.Broadcast(*created)
	}
	writeJSON(w, http.StatusOK, created)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteNotification(r.Context(), id); err != nil {
		s.storeError(w, "deleting notification", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.ArchiveNotification(r.Context(), id); err != nil {
		s.storeError(w, "archiving notification", err)
		return
	}
	s.writeNotification(w, r, id)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	status := model.ActionStatus(r.URL.Query().Get("action_status"))
	if !status.Valid() {
		writeDetail(w, http.StatusBadRequest, "action_status must be confirmed or rejected")
		return
	}
	if err := s.store.SetActionStatus(r.Context(), id, status); err != nil {
		s.storeError(w, "setting action status", err)
		return
	}
	s.writeNotification(w, r, id)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	rc, err := s.attachments.Open(r.Context(), name)
	if errors.Is(err, ErrAttachmentNotFound) {
		writeDetail(w, http.StatusNotFound, "attachment not found")
		return
	}
	if err != nil {
		s.internalError(w, "opening attachment", err)
		return
	}
	defer rc.Close()

	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	if _, err := io.Copy(w, rc); err != nil {
		s.log.Warn("streaming attachment", zap.String("name", name), zap.Error(err))
	}
}

func (s *Server) writeNotification(w http.ResponseWriter, r *http.Request, id int64) {
	n, err := s.store.GetNotification(r.Context(), id)
	if err != nil {
		s.storeError(w, "reading notification", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) parseDate(v string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, v, s.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", v)
}

func (s *Server) storeError(w http.ResponseWriter, what string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "Notification not found")
		return
	}
	s.internalError(w, what, err)
}

func (s *Server) internalError(w http.ResponseWriter, what string, err error) {
	s.log.Error(what, zap.Error(err))
	writeDetail(w, http.StatusInternalServerError, "internal server error")
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeValidation(w, "path", "id", "value is not a valid integer")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail writes the string-shaped error body.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// validationEntry is one item of a list-shaped error body.
type validationEntry struct {
	Loc []string `json:"loc"`
	Msg string   `json:"msg"`
}

// writeValidation writes a 422 with a single list-shaped detail entry.
func writeValidation(w http.ResponseWriter, where, field, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string][]validationEntry{
		"detail": {{Loc: []string{where, field}, Msg: msg}},
	})
}
