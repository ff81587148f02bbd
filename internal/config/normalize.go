package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeBlobstore()
	c.normalizeEncoding()
	c.normalizeRender()
	c.normalizeRecognizer()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.BucketDir, err = expandPath(c.Paths.BucketDir); err != nil {
		return fmt.Errorf("paths.bucket_dir: %w", err)
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeBlobstore() {
	c.Blobstore.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Blobstore.PublicBaseURL), "/")
	if c.Blobstore.PublicBaseURL == "" {
		c.Blobstore.PublicBaseURL = strings.TrimRight(defaultPublicBaseURL, "/")
	}
}

func (c *Config) normalizeEncoding() {
	c.Encoding.Profile = strings.ToLower(strings.TrimSpace(c.Encoding.Profile))
	if c.Encoding.Profile == "" {
		c.Encoding.Profile = defaultEncodingProfile
	}
	c.Encoding.FFmpegBinary = strings.TrimSpace(c.Encoding.FFmpegBinary)
	if c.Encoding.FFmpegBinary == "" {
		c.Encoding.FFmpegBinary = defaultFFmpegBinary
	}
	if c.Encoding.TimeoutSeconds <= 0 {
		c.Encoding.TimeoutSeconds = defaultEncodingTimeoutSeconds
	}
}

func (c *Config) normalizeRender() {
	c.Render.Pgn2GifBinary = strings.TrimSpace(c.Render.Pgn2GifBinary)
	if c.Render.Pgn2GifBinary == "" {
		c.Render.Pgn2GifBinary = defaultPgn2GifBinary
	}
	if c.Render.TimeoutSeconds <= 0 {
		c.Render.TimeoutSeconds = defaultRenderTimeoutSeconds
	}
}

func (c *Config) normalizeRecognizer() {
	c.Recognizer.BaseURL = strings.TrimRight(strings.TrimSpace(c.Recognizer.BaseURL), "/")
	if c.Recognizer.TimeoutSeconds <= 0 {
		c.Recognizer.TimeoutSeconds = defaultRecognizerTimeout
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.InvocationTimeout <= 0 {
		c.Workflow.InvocationTimeout = defaultInvocationTimeout
	}
	if c.Workflow.StagingMaxAgeHours <= 0 {
		c.Workflow.StagingMaxAgeHours = defaultStagingMaxAgeHours
	}
	if c.Workflow.CleanupInterval <= 0 {
		c.Workflow.CleanupInterval = defaultCleanupIntervalSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
