package app

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/labordesk/internal/credential"
	"github.com/nhle/labordesk/internal/model"
	"github.com/nhle/labordesk/internal/source/backend"
)

// NewSession builds the backend adapter for cfg, loading the bearer token
// from the environment or the system keyring, and returns the options for
// the root model.
func NewSession(cfg *model.AppConfig, log *zap.Logger) (Options, error) {
	token, err := credential.Token()
	if err != nil {
		log.Warn("reading backend token failed, continuing without one", zap.Error(err))
		token = ""
	}

	adapter, err := backend.NewAdapter(backend.Options{
		BaseURL: cfg.Backend.BaseURL,
		WSURL:   cfg.Backend.WSURL,
		Token:   token,
		Timeout: time.Duration(cfg.Backend.TimeoutSec) * time.Second,
		Logger:  log.Named("backend"),
	})
	if err != nil {
		return Options{}, fmt.Errorf("creating backend adapter: %w", err)
	}

	return Options{
		Source:        adapter,
		Config:        cfg,
		Logger:        log,
		AttachmentURL: adapter.AttachmentURL,
	}, nil
}
