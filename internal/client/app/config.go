package app

import "time"

type Config struct {
	Server  string
	ID      string
	IP      string
	Limit   int
	Timeout time.Duration
}
