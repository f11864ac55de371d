package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/labordesk/internal/model"
	"github.com/nhle/labordesk/internal/source"
)

// recorded captures the last request seen by the fake backend.
type recorded struct {
	method string
	path   string
	query  map[string][]string
	header http.Header
	body   []byte
}

func newTestAdapter(t *testing.T, r *mux.Router) (*Adapter, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	a, err := NewAdapter(Options{BaseURL: srv.URL, Token: "tok", Timeout: 5 * time.Second})
	require.NoError(t, err)
	return a, srv
}

func recordInto(rec *recorded, status int, reply interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.query = r.URL.Query()
		rec.header = r.Header.Clone()
		rec.body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if reply != nil {
			_ = json.NewEncoder(w).Encode(reply)
		}
	}
}

func TestListSendsOnlyPresentFilters(t *testing.T) {
	var rec recorded
	r := mux.NewRouter()
	r.HandleFunc("/notifications", recordInto(&rec, http.StatusOK, []model.Notification{
		{ID: 1, Message: "permit expires", Type: model.TypePermit},
	})).Methods(http.MethodGet)
	a, _ := newTestAdapter(t, r)

	archived := false
	items, err := a.List(context.Background(), model.ListFilter{
		Archived:  &archived,
		StartDate: "2026-03-01T00:00:00",
		UserRole:  "hr",
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(1), items[0].ID)

	assert.Equal(t, []string{"false"}, rec.query["archived"])
	assert.Equal(t, []string{"2026-03-01T00:00:00"}, rec.query["start_date"])
	assert.Equal(t, []string{"hr"}, rec.query["user_role"])
	assert.NotContains(t, rec.query, "end_date")
	assert.Equal(t, "Bearer tok", rec.header.Get("Authorization"))

	_, err = a.List(context.Background(), model.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, rec.query)
}

func TestListGrouped(t *testing.T) {
	var rec recorded
	r := mux.NewRouter()
	r.HandleFunc("/notifications/grouped", recordInto(&rec, http.StatusOK, []model.GroupedNotification{
		{Type: model.TypePassport, Count: 2, Messages: []string{"a", "b"}},
	})).Methods(http.MethodGet)
	a, _ := newTestAdapter(t, r)

	groups, err := a.ListGrouped(context.Background(), 14)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, 2, groups[0].Count)
	assert.Equal(t, []string{"14"}, rec.query["days"])
}

func TestCreateSendsJSON(t *testing.T) {
	var rec recorded
	r := mux.NewRouter()
	r.HandleFunc("/notifications", recordInto(&rec, http.StatusOK, model.Notification{
		ID: 7, Message: "hello", Emoji: "⚠️",
	})).Methods(http.MethodPost)
	a, _ := newTestAdapter(t, r)

	created, err := a.Create(context.Background(), model.CreateRequest{
		Message: "hello", Type: model.TypeGeneral, AllowedRoles: "admin,hr", Emoji: "⚠️",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), created.ID)
	assert.Equal(t, "application/json", rec.header.Get("Content-Type"))

	var sent map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.body, &sent))
	assert.Equal(t, "hello", sent["message"])
	assert.Equal(t, "admin,hr", sent["allowed_roles"])
	assert.Equal(t, "⚠️", sent["emoji"])
	assert.NotContains(t, sent, "icon")
}

func TestCreateWithAttachmentParts(t *testing.T) {
	var (
		notificationPart string
		fileName         string
		fileContent      string
		hasFile          bool
	)
	r := mux.NewRouter()
	r.HandleFunc("/notifications/with-attachment", func(w http.ResponseWriter, req *http.Request) {
		assert.NoError(t, req.ParseMultipartForm(1<<20))
		notificationPart = req.FormValue("notification")
		f, hdr, err := req.FormFile("file")
		if err == nil {
			hasFile = true
			fileName = hdr.Filename
			data, _ := io.ReadAll(f)
			fileContent = string(data)
			f.Close()
		}
		_ = json.NewEncoder(w).Encode(model.Notification{ID: 9, Attachment: "/uploads/x.pdf"})
	}).Methods(http.MethodPost)
	a, _ := newTestAdapter(t, r)

	sched := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	created, err := a.CreateWithAttachment(context.Background(), model.CreateRequest{
		Message: "contract", Type: model.TypeGeneral, ScheduledAt: &sched,
	}, &model.Upload{Name: "contract.pdf", Content: []byte("%PDF")})
	require.NoError(t, err)
	assert.Equal(t, "/uploads/x.pdf", created.Attachment)
	assert.True(t, hasFile)
	assert.Equal(t, "contract.pdf", fileName)
	assert.Equal(t, "%PDF", fileContent)

	var sent model.CreateRequest
	require.NoError(t, json.Unmarshal([]byte(notificationPart), &sent))
	assert.Equal(t, "contract", sent.Message)
	require.NotNil(t, sent.ScheduledAt)
	assert.True(t, sched.Equal(*sent.ScheduledAt))

	hasFile = false
	_, err = a.CreateWithAttachment(context.Background(), model.CreateRequest{Message: "no file"}, nil)
	require.NoError(t, err)
	assert.False(t, hasFile)
	assert.Contains(t, notificationPart, "no file")
}

func TestArchiveRemoveAndAction(t *testing.T) {
	var rec recorded
	r := mux.NewRouter()
	r.HandleFunc("/notifications/{id}/archive", recordInto(&rec, http.StatusOK, map[string]bool{"ok": true})).Methods(http.MethodPost)
	r.HandleFunc("/notifications/{id}/action", recordInto(&rec, http.StatusOK, nil)).Methods(http.MethodPost)
	r.HandleFunc("/notifications/{id}", recordInto(&rec, http.StatusNoContent, nil)).Methods(http.MethodDelete)
	a, _ := newTestAdapter(t, r)
	ctx := context.Background()

	require.NoError(t, a.Archive(ctx, 42))
	assert.Equal(t, "/notifications/42/archive", rec.path)
	assert.Empty(t, rec.body)

	require.NoError(t, a.Remove(ctx, 42))
	assert.Equal(t, http.MethodDelete, rec.method)
	assert.Equal(t, "/notifications/42", rec.path)

	require.NoError(t, a.SetActionStatus(ctx, 42, model.ActionConfirmed))
	assert.Equal(t, "/notifications/42/action", rec.path)
	assert.Equal(t, []string{"confirmed"}, rec.query["action_status"])

	rec = recorded{}
	err := a.SetActionStatus(ctx, 42, model.ActionPending)
	assert.ErrorIs(t, err, source.ErrInvalidActionStatus)
	assert.Empty(t, rec.path, "invalid status must not reach the server")
}

func TestErrorClassification(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/notifications/{id}/archive", func(w http.ResponseWriter, req *http.Request) {
		switch mux.Vars(req)["id"] {
		case "1":
			w.WriteHeader(http.StatusUnauthorized)
		case "2":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Notification not found"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"detail":[{"loc":["body"],"msg":"boom"}]}`))
		}
	})
	a, _ := newTestAdapter(t, r)
	ctx := context.Background()

	err := a.Archive(ctx, 1)
	assert.True(t, source.IsAuthError(err))

	err = a.Archive(ctx, 2)
	assert.True(t, source.IsNotFound(err))
	assert.Contains(t, err.Error(), "Notification not found")

	err = a.Archive(ctx, 3)
	var se *source.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Equal(t, "boom", se.Body)
}

func TestAttachmentURL(t *testing.T) {
	assert.Equal(t, "http://hr/uploads/a.pdf", AttachmentURL("http://hr", "/uploads/a.pdf"))
	assert.Equal(t, "http://hr/uploads/a.pdf", AttachmentURL("http://hr", "uploads/a.pdf"))
	assert.Equal(t, "https://cdn/x", AttachmentURL("http://hr", "https://cdn/x"))
	assert.Equal(t, "", AttachmentURL("http://hr", ""))
}

func TestLiveFeedSkipsBadFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	r := mux.NewRouter()
	r.HandleFunc("/ws/notifications", func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("null"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"ping"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"id":4,"message":""}`))
		_ = conn.WriteJSON(model.Notification{ID: 5, Message: "pushed"})
		// Wait for the client to hang up.
		_, _, _ = conn.ReadMessage()
	})
	_, srv := newTestAdapter(t, r)

	a, err := NewAdapter(Options{
		BaseURL: srv.URL,
		WSURL:   "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/notifications",
	})
	require.NoError(t, err)

	feed, err := a.OpenLiveFeed(context.Background())
	require.NoError(t, err)

	n, err := feed.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(5), n.ID)
	assert.Equal(t, "pushed", n.Message)

	require.NoError(t, feed.Close())
	_, err = feed.Next()
	assert.Error(t, err)
}

func TestListAcceptsZonelessTimestamps(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/notifications", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"id":1,"message":"Permit renewed","type":"permit",`+
			`"created_at":"2026-03-01T10:00:00","expires_at":"2026-04-01","read":false}]`)
	}).Methods(http.MethodGet)
	r.HandleFunc("/notifications/grouped", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"type":"permit","count":1,`+
			`"last_created":"2026-03-01T10:00:00.123456","messages":["Permit renewed"]}]`)
	}).Methods(http.MethodGet)
	a, _ := newTestAdapter(t, r)
	ctx := context.Background()

	items, err := a.List(ctx, model.ListFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local).Equal(items[0].CreatedAt))
	require.NotNil(t, items[0].ExpiresAt)
	assert.True(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.Local).Equal(*items[0].ExpiresAt))

	groups, err := a.ListGrouped(ctx, 7)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.True(t, time.Date(2026, 3, 1, 10, 0, 0, 123456000, time.Local).Equal(groups[0].LastCreated))
}
