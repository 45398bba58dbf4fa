//go:build tools
// +build tools

// Package tools pins the dev tooling this repo expects. Nothing here is a
// runtime dependency; install each tool with `go install`.
//
// mockgen regenerates the committed mocks in internal/mocks:
//
//	go install go.uber.org/mock/mockgen@v0.6.0
//	go generate ./internal/mocks
//
// air (https://github.com/air-verse/air) rebuilds on save during local dev:
//
//	go install github.com/air-verse/air@v1.63.0
package tools
