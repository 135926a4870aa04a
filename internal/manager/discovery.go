package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/vovakirdan/gamehub/internal/config"
)

// maxIndexSize bounds the static server index response.
const maxIndexSize = 1 << 20

// Discover fetches the static server index and registers the browser games
// it lists. Returns the number of games added. No-op without an index URL
// or a browser engine.
func (m *Manager) Discover(ctx context.Context) (int, error) {
	url := m.cfg.Browser.StaticServer.IndexURL
	if url == "" || m.engine == nil {
		return 0, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("manager: discover: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("manager: discover %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("manager: discover %s: status %d", url, resp.StatusCode)
	}

	var games []config.BrowserGame
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxIndexSize)).Decode(&games); err != nil {
		return 0, fmt.Errorf("manager: discover %s: decode index: %w", url, err)
	}

	added := m.registerBrowserGames(games)
	m.logger.Info("browser games discovered", "index", url, "listed", len(games), "added", added)
	return added, nil
}
