package jsondraws

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"melpower/domain/empirical"
	"melpower/internal"
	apperrors "melpower/internal/errors"
	"melpower/ports"

	"github.com/tidwall/gjson"
)

// Document paths of each table inside a draws JSON document.
const (
	PathP1         = "p1"
	PathRegression = "p1_p2_regression_draws"
	PathEstimates  = "estimates"
	PathSigmaFit   = "sigma_fit_draws"
)

// Loader reads empirical tables from a JSON document on disk or behind an
// http(s) URL.
type Loader struct {
	source     string
	authToken  string
	httpClient *http.Client
	logger     *internal.Logger
}

var _ ports.EmpiricalSource = (*Loader)(nil)

type Option func(*Loader)

// WithBearerToken authenticates remote fetches.
func WithBearerToken(token string) Option {
	return func(l *Loader) { l.authToken = token }
}

func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) { l.httpClient = c }
}

func NewLoader(source string, logger *internal.Logger, opts ...Option) *Loader {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	l := &Loader{
		source:     source,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With("jsondraws"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loader) isRemote() bool {
	return strings.HasPrefix(l.source, "http://") || strings.HasPrefix(l.source, "https://")
}

// Load fetches the document and parses every table.
func (l *Loader) Load(ctx context.Context) (*empirical.Tables, error) {
	start := time.Now()
	body, err := l.fetch(ctx)
	if err != nil {
		return nil, apperrors.MissingData(l.source, err)
	}
	tables, err := Parse(body)
	if err != nil {
		return nil, apperrors.MissingData(l.source, err)
	}
	l.logger.Info("loaded empirical tables from %s in %s", l.source, time.Since(start))
	return tables, nil
}

func (l *Loader) fetch(ctx context.Context) ([]byte, error) {
	if !l.isRemote() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return os.ReadFile(l.source)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.source, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if l.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+l.authToken)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("draws endpoint returned status %d", resp.StatusCode)
	}
	return body, nil
}

// Parse builds validated tables from a draws document. Object-valued tables
// hold one array per column.
func Parse(body []byte) (*empirical.Tables, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("draws document is not valid JSON")
	}
	doc := gjson.ParseBytes(body)

	p1, err := floats(doc, PathP1)
	if err != nil {
		return nil, err
	}
	reg, err := columns(doc, PathRegression, "alpha", "beta", "sigma0", "sigma1")
	if err != nil {
		return nil, err
	}
	est, err := columns(doc, PathEstimates, "ed_25", "ed_75")
	if err != nil {
		return nil, err
	}
	sigma, err := columns(doc, PathSigmaFit, "a", "b")
	if err != nil {
		return nil, err
	}

	return empirical.NewTables(p1,
		empirical.RegressionDraws{Alpha: reg[0], Beta: reg[1], Sigma0: reg[2], Sigma1: reg[3]},
		empirical.Estimates{ED25: est[0], ED75: est[1]},
		empirical.SigmaFitDraws{A: sigma[0], B: sigma[1]},
	)
}

func columns(doc gjson.Result, table string, names ...string) ([][]float64, error) {
	if !doc.Get(table).IsObject() {
		return nil, fmt.Errorf("%s must be an object of column arrays", table)
	}
	out := make([][]float64, len(names))
	for i, name := range names {
		col, err := floats(doc, table+"."+name)
		if err != nil {
			return nil, err
		}
		out[i] = col
	}
	return out, nil
}

func floats(doc gjson.Result, path string) ([]float64, error) {
	res := doc.Get(path)
	if !res.Exists() {
		return nil, fmt.Errorf("%s not found", path)
	}
	if !res.IsArray() {
		return nil, fmt.Errorf("%s must be an array", path)
	}
	var out []float64
	var bad error
	res.ForEach(func(key, value gjson.Result) bool {
		if value.Type != gjson.Number {
			bad = fmt.Errorf("%s[%d] is not a number", path, key.Int())
			return false
		}
		out = append(out, value.Float())
		return true
	})
	if bad != nil {
		return nil, bad
	}
	return out, nil
}
