package app

import "time"

type Config struct {
	PcapPath       string
	Format         string
	Resolve        bool
	ResolveTimeout time.Duration
	Prefilter      bool
	IgnoredHosts   []string
	ServerIP       string
	ServerPort     int
	UploadTimeout  time.Duration
	LogLevel       string
}
