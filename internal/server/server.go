// Package server exposes the NF-e pipeline and signature verification over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rezonia/nfe-validator/internal/docid"
	"github.com/rezonia/nfe-validator/internal/processor"
	"github.com/rezonia/nfe-validator/internal/signature/trust"
	sigxml "github.com/rezonia/nfe-validator/internal/signature/xml"
)

// DefaultMaxUploadBytes caps request bodies when Config leaves it unset
const DefaultMaxUploadBytes = 32 << 20

// RequestIDHeader carries the per-request correlation id
const RequestIDHeader = "X-Request-ID"

// Config holds server configuration
type Config struct {
	Address        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	Debug          bool
	MaxUploadBytes int64
}

// Server represents the HTTP API server
type Server struct {
	config   Config
	router   *gin.Engine
	pipeline *processor.Pipeline
	verifier *sigxml.XMLVerifier
	logger   *zap.Logger
}

// Option configures the server
type Option func(*Server)

// WithPipeline sets the processing pipeline
func WithPipeline(p *processor.Pipeline) Option {
	return func(s *Server) {
		if p != nil {
			s.pipeline = p
		}
	}
}

// WithVerifier sets the signature verifier
func WithVerifier(v *sigxml.XMLVerifier) Option {
	return func(s *Server) {
		if v != nil {
			s.verifier = v
		}
	}
}

// WithLogger sets the logger used for request and error logs
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server. Without WithVerifier the verifier
// trusts the system certificate pool only.
func NewServer(config Config, opts ...Option) *Server {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config: config,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pipeline == nil {
		s.pipeline = processor.NewPipeline(processor.WithLogger(s.logger))
	}
	if s.verifier == nil {
		ts, err := trust.NewTrustStore()
		if err != nil {
			s.logger.Warn("trust store unavailable, using an empty pool", zap.Error(err))
			ts = trust.NewEmptyTrustStore()
		}
		s.verifier = sigxml.NewXMLVerifier(ts, sigxml.WithLogger(s.logger))
	}

	router := gin.New()
	router.MaxMultipartMemory = config.MaxUploadBytes
	router.Use(gin.Recovery())
	router.Use(requestLogger(s.logger))
	router.Use(limitBody(config.MaxUploadBytes))
	s.router = router

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/extract", s.handleExtract)
		v1.POST("/validate", s.handleValidate)
		v1.POST("/validate/batch", s.handleValidateBatch)
		v1.POST("/verify", s.handleVerify)
		v1.POST("/info", s.handleInfo)
	}
}

// Run serves until ctx is canceled, then drains in-flight requests
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("address", s.config.Address))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

func requestLogger(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)

		c.Next()

		fields := []zap.Field{
			zap.String("request_id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			l.Error("request", fields...)
		case status >= http.StatusBadRequest:
			l.Warn("request", fields...)
		default:
			l.Info("request", fields...)
		}
	}
}

func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// readBody returns the raw request body, writing the error response itself
// when the body is missing or too large.
func readBody(c *gin.Context) ([]byte, bool) {
	body, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return nil, false
	}

	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty request body"})
		return nil, false
	}
	return body, true
}

func failureStatus(err error) int {
	if errors.Is(err, processor.ErrUnsupportedFormat) {
		return http.StatusUnsupportedMediaType
	}
	return http.StatusUnprocessableEntity
}

func (s *Server) handleExtract(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	result := s.pipeline.ExtractXMLBytes(c.Request.Context(), body)
	if result.Error != nil {
		_ = c.Error(result.Error)
		c.JSON(failureStatus(result.Error), ErrorResponse{
			Error:    result.Error.Error(),
			Warnings: result.Warnings,
		})
		return
	}

	c.JSON(http.StatusOK, ExtractResponse{
		Invoice:  result.Invoice,
		Layout:   result.Layout,
		Warnings: result.Warnings,
	})
}

func (s *Server) handleValidate(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	result := s.pipeline.ProcessXMLBytes(c.Request.Context(), body)
	if result.Error != nil {
		_ = c.Error(result.Error)
		c.JSON(failureStatus(result.Error), ErrorResponse{
			Error:    result.Error.Error(),
			Warnings: result.Warnings,
		})
		return
	}

	c.JSON(http.StatusOK, ValidationResponse{
		Invoice:    result.Invoice,
		Layout:     result.Layout,
		Validation: result.Validation,
		Warnings:   result.Warnings,
	})
}

func (s *Server) handleValidateBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form with \"files\" expected"})
		return
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files uploaded"})
		return
	}

	var docs []processor.Document
	for _, h := range headers {
		expanded, err := uploadedDocuments(h)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unreadable upload", Details: err.Error()})
			return
		}
		docs = append(docs, expanded...)
	}
	if len(docs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no XML documents in upload"})
		return
	}

	results := s.pipeline.ProcessBatch(c.Request.Context(), docs)

	resp := BatchResponse{Total: len(results), Results: make([]BatchItem, len(results))}
	for i, r := range results {
		item := BatchItem{Name: r.Name, Validation: r.Validation, Warnings: r.Warnings}
		switch {
		case r.Error != nil:
			item.Error = r.Error.Error()
			resp.Failed++
		case r.Validation.Valid:
			resp.Valid++
		default:
			resp.Invalid++
		}
		resp.Results[i] = item
	}

	c.JSON(http.StatusOK, resp)
}

// uploadedDocuments opens one multipart file. ZIP archives are expanded
// into their XML entries, named "<archive>/<entry>".
func uploadedDocuments(h *multipart.FileHeader) ([]processor.Document, error) {
	f, err := h.Open()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", h.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", h.Filename, err)
	}

	if processor.DetectFormat(data) != processor.FormatZIP {
		return []processor.Document{{Name: h.Filename, Data: data}}, nil
	}

	entries, err := processor.ExpandArchive(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", h.Filename, err)
	}
	for i := range entries {
		entries[i].Name = h.Filename + "/" + entries[i].Name
	}
	return entries, nil
}

func (s *Server) handleInfo(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	format := processor.DetectFormat(body)
	resp := InfoResponse{
		Format: format.String(),
		Size:   len(body),
	}

	switch format {
	case processor.FormatZIP:
		entries, err := processor.ExpandArchive(body)
		if err != nil {
			resp.Warnings = append(resp.Warnings, err.Error())
		}
		resp.Entries = len(entries)

	case processor.FormatXML:
		result := s.pipeline.ExtractXMLBytes(c.Request.Context(), body)
		if result.Error != nil {
			resp.Warnings = append(resp.Warnings, result.Error.Error())
			break
		}
		resp.Layout = result.Layout
		if key, err := docid.ParseAccessKey(result.Invoice.AccessKey); err == nil {
			resp.AccessKey = &key
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleVerify(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	if processor.DetectFormat(body) != processor.FormatXML {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported file format for signature verification"})
		return
	}

	result, err := s.verifier.Verify(c.Request.Context(), body)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:    "signature verification failed",
			Details:  err.Error(),
			Warnings: result.Warnings,
		})
		return
	}

	if result.Valid {
		c.JSON(http.StatusOK, newVerifyResponse(result))
	} else {
		c.JSON(http.StatusUnprocessableEntity, newVerifyResponse(result))
	}
}
