package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/labordesk/internal/devserver"
	"github.com/nhle/labordesk/internal/store"
)

var (
	devAddr    string
	devDB      string
	devToken   string
	devOrigins string
)

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run a local notification backend on SQLite",
	Long: `Serves the notification REST API and live feed from a local SQLite
database. Attachments go to devserver.upload_dir, or to MinIO when
devserver.minio.endpoint is set.`,
	Args: cobra.NoArgs,
	RunE: runDevserver,
}

func init() {
	devserverCmd.Flags().StringVar(&devAddr, "addr", "", "listen address (defaults to devserver.addr)")
	devserverCmd.Flags().StringVar(&devDB, "db", "", "SQLite path (defaults to devserver.db_path)")
	devserverCmd.Flags().StringVar(&devToken, "token", "", "require this bearer token")
	devserverCmd.Flags().StringVar(&devOrigins, "origins", "", "comma-separated CORS origins (default all)")
}

func runDevserver(cmd *cobra.Command, args []string) error {
	addr := devAddr
	if addr == "" {
		addr = cfg.DevServer.Addr
	}
	dbPath := devDB
	if dbPath == "" {
		dbPath = cfg.DevServer.DBPath
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}
	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signalContext()
	defer stop()

	files, err := attachmentStore(ctx)
	if err != nil {
		return err
	}

	var origins []string
	if devOrigins != "" {
		origins = strings.Split(devOrigins, ",")
	}

	srv := devserver.New(devserver.Options{
		Store:          st,
		Attachments:    files,
		Token:          devToken,
		AllowedOrigins: origins,
		Logger:         logger.Named("devserver"),
	})

	logger.Info("starting dev server",
		zap.String("addr", addr),
		zap.String("db", dbPath),
	)
	return srv.ListenAndServe(ctx, addr)
}

// attachmentStore picks MinIO when an endpoint is configured, otherwise the
// local upload directory.
func attachmentStore(ctx context.Context) (devserver.AttachmentStore, error) {
	mc := cfg.DevServer.MinIO
	if mc.Endpoint != "" {
		logger.Info("storing attachments in MinIO",
			zap.String("endpoint", mc.Endpoint),
			zap.String("bucket", mc.Bucket),
		)
		return devserver.NewMinIOAttachments(ctx, mc)
	}
	return devserver.NewLocalAttachments(cfg.DevServer.UploadDir)
}
