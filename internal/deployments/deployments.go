// Package deployments reads the network id -> contract address table that
// tells clients where the message store lives on each network.
package deployments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
)

const fetchTimeout = 10 * time.Second

var ErrNotDeployed = errors.New("no deployment for network")

// Map is keyed by network id (the decimal chain id, e.g. "31337").
type Map map[string]common.Address

// Parse accepts YAML or JSON (JSON being a subset of YAML).
func Parse(data []byte) (Map, error) {
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse deployments: %w", err)
	}

	m := make(Map, len(raw))
	for network, address := range raw {
		network = strings.TrimSpace(network)
		if network == "" {
			return nil, errors.New("deployment with empty network id")
		}
		if !common.IsHexAddress(address) {
			return nil, fmt.Errorf("deployment %s: invalid address %q", network, address)
		}
		m[network] = common.HexToAddress(address)
	}
	return m, nil
}

func (m Map) Lookup(network string) (common.Address, error) {
	address, ok := m[network]
	if !ok || address == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w %s", ErrNotDeployed, network)
	}
	return address, nil
}

// Loader fetches a deployment map once and caches it. Concurrent callers
// share a single in-flight fetch; the cache lives until Invalidate.
type Loader struct {
	source string
	client *http.Client
	group  singleflight.Group

	mu     sync.RWMutex
	cached Map
}

// NewLoader reads from a local path, or over HTTP when source is a URL.
func NewLoader(source string, client *http.Client) *Loader {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	return &Loader{source: source, client: client}
}

func (l *Loader) Load(ctx context.Context) (Map, error) {
	l.mu.RLock()
	cached := l.cached
	l.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	// The fetch is shared, so it runs detached from any one caller's
	// cancellation and is bounded by fetchTimeout instead.
	results := l.group.DoChan(l.source, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()

		data, err := l.fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		m, err := Parse(data)
		if err != nil {
			return nil, err
		}

		l.mu.Lock()
		l.cached = m
		l.mu.Unlock()

		logrus.WithFields(logrus.Fields{
			"source":   l.source,
			"networks": len(m),
		}).Debug("Deployment map loaded")
		return m, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Map), nil
	}
}

// Invalidate drops the cached map so the next Load fetches again.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	l.cached = nil
	l.mu.Unlock()
}

func (l *Loader) fetch(ctx context.Context) ([]byte, error) {
	if !strings.HasPrefix(l.source, "http://") && !strings.HasPrefix(l.source, "https://") {
		data, err := os.ReadFile(l.source)
		if err != nil {
			return nil, fmt.Errorf("failed to read deployments file: %w", err)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.source, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build deployments request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch deployments: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch deployments: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read deployments response: %w", err)
	}
	return data, nil
}
