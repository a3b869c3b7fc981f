package cmd

import (
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rezonia/nfe-validator/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP API server for NF-e extraction and validation.

Endpoints:
  - POST /api/v1/extract         - Extract the invoice from an XML body
  - POST /api/v1/validate        - Extract and validate an XML body
  - POST /api/v1/validate/batch  - Validate multipart "files" (XML or ZIP)
  - POST /api/v1/verify          - Verify the XMLDSig signature
  - POST /api/v1/info            - Format, layout and access key breakdown
  - GET  /health                 - Health check

Examples:
  # Start server on default port
  nfe-validator serve

  # Start on custom port with narrative analysis
  nfe-validator serve --address :9090 --api-key <key>

  # Start in debug mode
  nfe-validator serve --debug --log-format console`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.String("address", ":8080", "Server listen address")
	flags.Bool("debug", false, "Enable debug mode")
	flags.Duration("read-timeout", 30*time.Second, "HTTP read timeout")
	flags.Duration("write-timeout", 2*time.Minute, "HTTP write timeout")
	flags.Int64("max-upload", 32<<20, "Maximum request body in bytes")
	flags.String("ca-file", "", "Extra trusted certificates for /verify (PEM bundle)")
	flags.Bool("skip-ocsp", false, "Skip OCSP revocation check in /verify")

	mustBind("server.address", flags.Lookup("address"))
	mustBind("server.debug", flags.Lookup("debug"))
	mustBind("server.read_timeout", flags.Lookup("read-timeout"))
	mustBind("server.write_timeout", flags.Lookup("write-timeout"))
	mustBind("server.max_upload_bytes", flags.Lookup("max-upload"))
}

func runServe(cmd *cobra.Command, args []string) error {
	verifier, err := newVerifier()
	if err != nil {
		return err
	}

	srv := server.NewServer(server.Config{
		Address:        cfg.Server.Address,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		Debug:          cfg.Server.Debug,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	},
		server.WithPipeline(newPipeline()),
		server.WithVerifier(verifier),
		server.WithLogger(log),
	)

	log.Info("starting server",
		zap.String("address", cfg.Server.Address),
		zap.Bool("narrative", cfg.LLM.Enabled()),
		zap.Int("workers", cfg.Batch.Workers),
	)

	if err := srv.Run(cmd.Context()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
