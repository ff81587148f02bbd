package config

import (
	"fmt"
	"net/url"
	"strings"
)

var knownProfiles = map[string]struct{}{
	"compat":  {},
	"compact": {},
}

var knownLogFormats = map[string]struct{}{
	"text":    {},
	"console": {},
	"json":    {},
}

// Validate checks configuration values for consistency.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.BucketDir) == "" {
		return fmt.Errorf("paths.bucket_dir is required")
	}
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return fmt.Errorf("paths.staging_dir is required")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return fmt.Errorf("paths.log_dir is required")
	}
	if _, ok := knownProfiles[c.Encoding.Profile]; !ok {
		return fmt.Errorf("encoding.profile: unknown profile %q (expected compat or compact)", c.Encoding.Profile)
	}
	if _, ok := knownLogFormats[c.Logging.Format]; !ok {
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if c.Recognizer.BaseURL != "" {
		parsed, err := url.Parse(c.Recognizer.BaseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("recognizer.base_url: invalid URL %q", c.Recognizer.BaseURL)
		}
	}
	return nil
}
