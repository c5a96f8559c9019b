// Package config loads typed configuration structs from environment
// variables, with optional .env file support.
//
// Each struct type is parsed at most once per process and cached, so the
// secrets, twofa, and postgres packages can each call Load for their own
// Config without coordinating. Parsing is delegated to caarlos0/env using
// `env` and `envDefault` field tags; .env files are read with godotenv.
//
// # Usage
//
//	cfg, err := config.Load[postgres.Config]()
//	if err != nil { ... }
//
// Or for configuration the process cannot run without:
//
//	cfg := config.MustLoad[secrets.Config]()
package config
