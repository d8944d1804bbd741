package config

import "time"

// NewEmbeddingForTest creates an Embedding config for testing purposes
func NewEmbeddingForTest(provider, geminiProject string, dimension int, timeout time.Duration) *Embedding {
	return &Embedding{
		provider:       provider,
		geminiProject:  geminiProject,
		geminiLocation: "us-central1",
		dimension:      dimension,
		timeout:        timeout,
	}
}

// NewSimilarityForTest creates a Similarity config for testing purposes
func NewSimilarityForTest(threshold float64, limit int) *Similarity {
	return &Similarity{threshold: threshold, limit: limit}
}

// NewRepositoryForTest creates a Repository config for testing purposes
func NewRepositoryForTest(backend, projectID, dsn string) *Repository {
	return &Repository{backend: backend, projectID: projectID, postgresDSN: dsn}
}

// NewAuthForTest creates an Auth config for testing purposes
func NewAuthForTest(jwksURL, hmacSecret, noAuthSub string) *Auth {
	return &Auth{jwksURL: jwksURL, hmacSecret: hmacSecret, noAuthSub: noAuthSub}
}

// NewLoggerForTest creates a Logger config for testing purposes
func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{level: level, format: format, output: output}
}
