package config

import "time"

// PollInterval returns the delay between parse job status checks.
func (c ParserConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c ParserConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c ParserConfig) DownloadTimeout() time.Duration {
	return time.Duration(c.DownloadTimeoutSeconds) * time.Second
}

// Timeout is the nominal task lifetime; the registry sweep expires tasks at twice this age.
func (c TaskConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c TaskConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (c TaskConfig) RemovalGrace() time.Duration {
	return time.Duration(c.RemovalGraceSeconds) * time.Second
}

func (c TaskConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalMillis) * time.Millisecond
}

func (c TaskConfig) KeepAliveInterval() time.Duration {
	return time.Duration(c.KeepAliveIntervalMillis) * time.Millisecond
}

func (c TaskConfig) PostStageTimeout() time.Duration {
	return time.Duration(c.PostStageTimeoutSeconds) * time.Second
}

func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

func (c ServerConfig) StreamWriteTimeout() time.Duration {
	return time.Duration(c.StreamWriteTimeoutSeconds) * time.Second
}

// TokenLifetime is the validity of minted API tokens.
func (c AuthConfig) TokenLifetime() time.Duration {
	return time.Duration(c.TokenLifetimeMinutes) * time.Minute
}
