// Package config loads typed configuration structs from environment
// variables, with optional .env file support for local development.
//
// Every package in this module that needs configuration declares its own
// Config struct with `env` tags and sensible `envDefault` values; callers pass
// a populated struct explicitly or let config.Load fill it from the
// environment. Parsed configurations are cached per type for the lifetime of
// the process.
package config
