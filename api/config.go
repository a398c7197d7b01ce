package api

import "github.com/loomery/weft/pkg/retrieval"

// Config holds the API server settings.
type Config struct {
	// ListenAddr is the address the server binds to (e.g. ":8090").
	ListenAddr string

	// RetrievalDefaults seeds each context request's options before query
	// parameter overrides apply.
	RetrievalDefaults retrieval.Options
}
