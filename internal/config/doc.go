// Package config handles configuration loading, parsing, and validation
// from environment variables and an optional config file. It provides
// type-safe access to server, parser, task lifecycle and payload settings
// while keeping configuration details separate from the streaming pipeline.
package config
