package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nhle/labordesk/internal/model"
	"github.com/nhle/labordesk/internal/source"
)

// wsFeed is a single WebSocket connection to the live notification feed.
// Each text frame carries one JSON-encoded notification.
type wsFeed struct {
	conn      *websocket.Conn
	log       *zap.Logger
	closeOnce sync.Once
}

// dialFeed opens the live feed connection.
func dialFeed(
	ctx context.Context,
	wsURL string,
	token string,
	log *zap.Logger,
) (*wsFeed, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("dialing live feed %s: %w",
				wsURL, &source.AuthError{Message: "live feed rejected the token"})
		}
		if resp != nil {
			return nil, fmt.Errorf("dialing live feed %s (status %d): %w",
				wsURL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dialing live feed %s: %w", wsURL, err)
	}

	log.Info("live feed connected", zap.String("url", wsURL))
	return &wsFeed{conn: conn, log: log}, nil
}

// Next returns the next decodable notification. Frames that are not
// valid notifications, or carry no id or message, are skipped.
func (f *wsFeed) Next() (model.Notification, error) {
	for {
		_, data, err := f.conn.ReadMessage()
		if err != nil {
			return model.Notification{}, fmt.Errorf("reading live feed: %w", err)
		}

		var n model.Notification
		if err := json.Unmarshal(data, &n); err != nil {
			f.log.Debug("dropping undecodable live feed frame", zap.Error(err))
			continue
		}
		if n.ID == 0 || n.Message == "" {
			f.log.Debug("dropping live feed frame without a notification",
				zap.ByteString("frame", data))
			continue
		}
		return n, nil
	}
}

// Close sends a close frame on a best-effort basis and closes the socket.
func (f *wsFeed) Close() error {
	var err error
	f.closeOnce.Do(func() {
		_ = f.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		err = f.conn.Close()
	})
	return err
}
