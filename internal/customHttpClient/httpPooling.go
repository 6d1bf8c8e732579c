package customHttpClient

import (
	"net/http"
	"sync"

	"github.com/akolanti/RagAPI/internal/config"
)

var customTransport = &http.Transport{
	MaxIdleConns:        config.MaxIdleConns,
	MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
	IdleConnTimeout:     config.IdleConnTimeout,
}

var (
	sharedClient *http.Client
	once         sync.Once
)

// GetPooledClient returns the shared outbound client. Connector calls to
// external APIs reuse its connection pool.
func GetPooledClient() *http.Client {
	once.Do(func() {
		sharedClient = &http.Client{
			Transport: customTransport,
			Timeout:   config.HTTPClientTimeout,
		}
	})
	return sharedClient
}
