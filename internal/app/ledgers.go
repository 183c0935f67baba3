package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const (
	unknownChain        = "Unknown"
	missingShortcode    = "—"
	genericLedgerError  = "An unexpected error occurred while fetching ledgers."
	maxLedgerBodyBytes  = 8 << 20
	defaultRevalidation = time.Hour
	ledgerFetchTimeout  = 30 * time.Second
)

// LedgerRecord is a token as served by the ICPay API.
type LedgerRecord struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Symbol             string `json:"symbol"`
	Shortcode          string `json:"shortcode"`
	CanisterID         string `json:"canisterId"`
	Decimals           int    `json:"decimals"`
	Verified           bool   `json:"verified"`
	ChainName          string `json:"chainName"`
	ChainNameFromChain string `json:"chainNameFromChain"`
	ChainType          string `json:"chainType"`
}

// ChainGroup is the set of ledgers sharing a resolved chain name.
type ChainGroup struct {
	ChainType string
	Items     []LedgerRecord
}

// FetchError reports a non-successful upstream status.
type FetchError struct {
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to load ledgers (%d)", e.StatusCode)
}

// LedgerClient fetches ledgers from the API, reusing cached responses inside
// the revalidation window.
type LedgerClient struct {
	baseURL    string
	httpClient *http.Client
	cache      ResponseCache
	revalidate time.Duration
	logger     *zap.Logger
	now        func() time.Time
	maxBody    int64
	group      singleflight.Group
}

// NewLedgerClient builds a client for cfg.APIBaseURL. A nil cache disables reuse.
func NewLedgerClient(cfg Config, httpClient *http.Client, cache ResponseCache, logger *zap.Logger) *LedgerClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	revalidate := cfg.LedgerRevalidate
	if revalidate <= 0 {
		revalidate = defaultRevalidation
	}
	baseURL := cfg.APIBaseURL
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	return &LedgerClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		cache:      cache,
		revalidate: revalidate,
		logger:     logger,
		now:        time.Now,
		maxBody:    maxLedgerBodyBytes,
	}
}

// FetchLedgers returns the current ledger list. Exactly one upstream attempt is
// made on a cache miss; a non-2xx status yields a *FetchError.
//
// Concurrent misses share one upstream request. That request is detached from
// any single caller, so a caller giving up only ends its own wait.
func (c *LedgerClient) FetchLedgers(ctx context.Context) ([]LedgerRecord, error) {
	endpoint := c.baseURL + "/ledgers"

	if body, ok := c.cached(ctx, endpoint); ok {
		return c.decode(body), nil
	}

	ch := c.group.DoChan(endpoint, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerFetchTimeout)
		defer cancel()
		return c.fetch(fetchCtx, endpoint)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}

	body, ok := res.Val.([]byte)
	if !ok {
		return nil, fmt.Errorf("ledger fetch result type mismatch")
	}
	return c.decode(body), nil
}

func (c *LedgerClient) cached(ctx context.Context, key string) ([]byte, bool) {
	if c.cache == nil {
		return nil, false
	}
	resp, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("read ledger cache", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok || c.now().Sub(resp.FetchedAt) >= c.revalidate {
		return nil, false
	}
	return resp.Body, true
}

func (c *LedgerClient) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read ledgers body: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("ledgers response exceeds %d bytes", c.maxBody)
	}

	if c.cache != nil {
		entry := CachedResponse{Body: body, FetchedAt: c.now()}
		if err := c.cache.Put(ctx, endpoint, entry); err != nil {
			c.logger.Warn("write ledger cache", zap.String("key", endpoint), zap.Error(err))
		}
	}
	return body, nil
}

// decode treats a payload that is not a JSON array as an empty ledger list.
// Elements that fail to decode are skipped; the rest still render.
func (c *LedgerClient) decode(body []byte) []LedgerRecord {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		c.logger.Warn("decode ledgers", zap.Int("bytes", len(body)), zap.Error(err))
		return []LedgerRecord{}
	}

	records := make([]LedgerRecord, 0, len(raw))
	for i, elem := range raw {
		var r LedgerRecord
		if err := json.Unmarshal(elem, &r); err != nil {
			c.logger.Warn("skip ledger", zap.Int("index", i), zap.Error(err))
			continue
		}
		records = append(records, r)
	}
	return records
}

// chainKey resolves the display chain for a record, preferring the joined chain name.
func chainKey(r LedgerRecord) string {
	if r.ChainNameFromChain != "" {
		return r.ChainNameFromChain
	}
	if r.ChainName != "" {
		return r.ChainName
	}
	return unknownChain
}

// GroupByChain partitions records by resolved chain name. Each group takes the
// chain type of its first record and is ordered by symbol, then name, ignoring case.
func GroupByChain(records []LedgerRecord) map[string]*ChainGroup {
	groups := make(map[string]*ChainGroup)
	for _, r := range records {
		key := chainKey(r)
		group, ok := groups[key]
		if !ok {
			group = &ChainGroup{ChainType: r.ChainType}
			groups[key] = group
		}
		group.Items = append(group.Items, r)
	}

	col := collate.New(language.English)
	fold := cases.Fold()
	for _, g := range groups {
		sort.SliceStable(g.Items, func(i, j int) bool {
			a, b := g.Items[i], g.Items[j]
			if cmp := col.CompareString(fold.String(a.Symbol), fold.String(b.Symbol)); cmp != 0 {
				return cmp < 0
			}
			return col.CompareString(fold.String(a.Name), fold.String(b.Name)) < 0
		})
	}
	return groups
}

// SortedChainNames returns the group keys in collation order.
func SortedChainNames(groups map[string]*ChainGroup) []string {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	col := collate.New(language.English)
	sort.SliceStable(names, func(i, j int) bool {
		if cmp := col.CompareString(names[i], names[j]); cmp != 0 {
			return cmp < 0
		}
		return names[i] < names[j]
	})
	return names
}

// LedgerState is the terminal state of one ledger table render.
type LedgerState int

// Render outcomes: an error panel, the "no tokens" panel, or the grouped tables.
const (
	LedgerStateError LedgerState = iota + 1
	LedgerStateEmpty
	LedgerStateReady
)

// LedgerView is the template model for the ledger table.
type LedgerView struct {
	State    LedgerState
	Message  string
	Sections []LedgerSection
}

// Failed reports whether the fetch failed and the error panel should render.
func (v LedgerView) Failed() bool { return v.State == LedgerStateError }

// Empty reports whether the fetch succeeded with no ledgers.
func (v LedgerView) Empty() bool { return v.State == LedgerStateEmpty }

// LedgerSection is one chain's table.
type LedgerSection struct {
	ChainName string
	ChainType string
	Rows      []LedgerRow
}

// LedgerRow is a display-ready ledger; Shortcode already carries the placeholder.
type LedgerRow struct {
	ID         string
	Symbol     string
	Name       string
	Shortcode  string
	CanisterID string
	Decimals   int
	Verified   bool
}

// BuildLedgerView applies the render policy to a fetch outcome.
func BuildLedgerView(records []LedgerRecord, fetchErr error) LedgerView {
	if fetchErr != nil {
		msg := strings.TrimSpace(fetchErr.Error())
		if msg == "" {
			msg = genericLedgerError
		}
		return LedgerView{State: LedgerStateError, Message: msg}
	}
	if len(records) == 0 {
		return LedgerView{State: LedgerStateEmpty}
	}

	groups := GroupByChain(records)
	view := LedgerView{State: LedgerStateReady}
	for _, name := range SortedChainNames(groups) {
		group := groups[name]
		section := LedgerSection{
			ChainName: name,
			ChainType: strings.ToUpper(group.ChainType),
			Rows:      make([]LedgerRow, 0, len(group.Items)),
		}
		for _, r := range group.Items {
			shortcode := r.Shortcode
			if shortcode == "" {
				shortcode = missingShortcode
			}
			section.Rows = append(section.Rows, LedgerRow{
				ID:         r.ID,
				Symbol:     r.Symbol,
				Name:       r.Name,
				Shortcode:  shortcode,
				CanisterID: r.CanisterID,
				Decimals:   r.Decimals,
				Verified:   r.Verified,
			})
		}
		view.Sections = append(view.Sections, section)
	}
	return view
}
