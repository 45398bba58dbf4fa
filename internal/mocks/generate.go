// Package mocks holds gomock-generated doubles for the core repository and
// storage interfaces. Regenerate after an interface change with:
//
//	go generate ./internal/mocks
package mocks

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_repository_mock.go github.com/NayerAli/v2-ocr-sub002/internal/core JobRepository
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=page_result_repository_mock.go github.com/NayerAli/v2-ocr-sub002/internal/core PageResultRepository
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=blob_store_mock.go github.com/NayerAli/v2-ocr-sub002/internal/core BlobStore
