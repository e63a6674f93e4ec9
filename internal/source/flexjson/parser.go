package flexjson

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"tradecast/internal/source/flexquery"
)

// Report wire layouts, as saved from Flex queries.
type tradeReport struct {
	TradeConfirm []flexquery.TradeRow `json:"TradeConfirm"`
}

type portfolioReport struct {
	OpenPosition []flexquery.PositionRow `json:"OpenPosition"`
}

// loadLatestFile reads the lexicographically last file matching the
// pattern; report files carry a sortable date suffix, so last means
// newest.
func loadLatestFile(dir, pattern string, out any) (bool, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return false, err
	}
	if len(matches) == 0 {
		return false, nil
	}
	sort.Strings(matches)
	latest := matches[len(matches)-1]

	data, err := os.ReadFile(latest)
	if err != nil {
		return false, fmt.Errorf("read report %s: %w", latest, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("parse report %s: %w", latest, err)
	}
	return true, nil
}
