package config

var (
	// Version 构建时通过 -ldflags 注入
	Version = "dev"
	// CommitHash 构建时通过 -ldflags 注入
	CommitHash = "n/a"
)
