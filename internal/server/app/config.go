package app

import "time"

type Config struct {
	ListenAddr  string
	DBDriver    string
	DBPath      string
	CaptureRoot string
	Resolve     bool
	ResolverTTL time.Duration
	LogLevel    string
}
