package backend

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Endpoint paths of the notification API, relative to the base URL.
const (
	pathNotifications  = "/notifications"
	pathGrouped        = "/notifications/grouped"
	pathWithAttachment = "/notifications/with-attachment"
)

func pathNotification(id int64) string {
	return fmt.Sprintf("%s/%d", pathNotifications, id)
}

func pathArchive(id int64) string {
	return pathNotification(id) + "/archive"
}

func pathAction(id int64) string {
	return pathNotification(id) + "/action"
}

// ErrorResponse is the error body returned by the API. Validation errors
// carry a list of entries under detail; other errors carry a string.
type ErrorResponse struct {
	Detail json.RawMessage `json:"detail"`
	Error  string          `json:"error"`
}

// validationEntry is one item of a list-shaped detail.
type validationEntry struct {
	Loc []interface{} `json:"loc"`
	Msg string        `json:"msg"`
}

// String flattens the error body into one line.
func (e ErrorResponse) String() string {
	if len(e.Detail) > 0 {
		var s string
		if json.Unmarshal(e.Detail, &s) == nil {
			return s
		}
		var entries []validationEntry
		if json.Unmarshal(e.Detail, &entries) == nil {
			msgs := make([]string, 0, len(entries))
			for _, v := range entries {
				msgs = append(msgs, v.Msg)
			}
			return strings.Join(msgs, "; ")
		}
	}
	return e.Error
}
