package config

const (
	defaultBucketDir              = "~/.local/share/chessreel/bucket"
	defaultStagingDir             = "~/.local/share/chessreel/staging"
	defaultLogDir                 = "~/.local/share/chessreel/logs"
	defaultAPIBind                = "127.0.0.1:7512"
	defaultPublicBaseURL          = "http://127.0.0.1:7512/objects"
	defaultEncodingProfile        = "compat"
	defaultFFmpegBinary           = "ffmpeg"
	defaultEncodingTimeoutSeconds = 600
	defaultPgn2GifBinary          = "pgn2gif"
	defaultRenderTimeoutSeconds   = 120
	defaultRecognizerTimeout      = 300
	defaultInvocationTimeout      = 540
	defaultStagingMaxAgeHours     = 24
	defaultCleanupIntervalSeconds = 3600
	defaultLogFormat              = "text"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			BucketDir:  defaultBucketDir,
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Blobstore: Blobstore{
			PublicBaseURL: defaultPublicBaseURL,
		},
		Encoding: Encoding{
			Profile:        defaultEncodingProfile,
			FFmpegBinary:   defaultFFmpegBinary,
			TimeoutSeconds: defaultEncodingTimeoutSeconds,
		},
		Render: Render{
			Pgn2GifBinary:  defaultPgn2GifBinary,
			TimeoutSeconds: defaultRenderTimeoutSeconds,
		},
		Recognizer: Recognizer{
			TimeoutSeconds: defaultRecognizerTimeout,
		},
		Workflow: Workflow{
			InvocationTimeout:  defaultInvocationTimeout,
			StagingMaxAgeHours: defaultStagingMaxAgeHours,
			CleanupInterval:    defaultCleanupIntervalSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
