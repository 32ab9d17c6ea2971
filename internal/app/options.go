package service

import (
	"github.com/okian/usercf/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of ingestion workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the rating queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many event ids are remembered. Zero or less means unbounded.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		s.dedupeSize = size
	}
}

// WithStore selects the rating store kind and, for badger, its directory.
func WithStore(kind, dir string) Option {
	return func(s *Service) {
		if kind != "" {
			s.storeKind = kind
			s.storeDir = dir
		}
	}
}

// WithDefaultKernel sets the kernel used when a request names none.
func WithDefaultKernel(kernel string) Option {
	return func(s *Service) {
		if kernel != "" {
			s.defaultKernel = kernel
		}
	}
}

// WithMaxSimilarUsers caps the k accepted by SimilarUsers.
func WithMaxSimilarUsers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxSimilarUsers = n
		}
	}
}

// WithSimilarityWorkers sets the per-request fan-out of the recommendation engine.
func WithSimilarityWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.similarityWorkers = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
