// Package mocks provides gomock implementations of the internal/core repository interfaces.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	jobs := mocks.NewMockJobRepository(ctrl)
//	jobs.EXPECT().Create(gomock.Any(), gomock.Any()).Return(job, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_repository_mock.go github.com/target/review-harvester/internal/core JobRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=company_repository_mock.go github.com/target/review-harvester/internal/core CompanyRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=review_repository_mock.go github.com/target/review-harvester/internal/core ReviewRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=progress_store_mock.go github.com/target/review-harvester/internal/core ProgressStore
