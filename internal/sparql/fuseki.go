package sparql

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxErrorBody = 1024

// FusekiOptions configures the HTTP gateway.
type FusekiOptions struct {
	Dataset  string
	User     string
	Password string
	Timeout  time.Duration
}

// Fuseki talks the SPARQL 1.1 protocol to an Apache Jena Fuseki dataset and
// uses its admin API for compaction.
type Fuseki struct {
	resolver Resolver
	opts     FusekiOptions
	client   *http.Client
}

// NewFuseki creates a gateway that resolves its endpoint through r before
// every request.
func NewFuseki(r Resolver, opts FusekiOptions) *Fuseki {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Fuseki{
		resolver: r,
		opts:     opts,
		client:   &http.Client{Timeout: opts.Timeout},
	}
}

// MultiStatement reports that Fuseki accepts ';'-separated update requests.
func (f *Fuseki) MultiStatement() bool { return true }

func (f *Fuseki) datasetURL(ctx context.Context) (string, error) {
	base, err := f.resolver.Resolve(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(f.opts.Dataset), nil
}

// Select runs a read query and decodes the JSON results.
func (f *Fuseki) Select(ctx context.Context, query string) (*Results, error) {
	endpoint, err := f.datasetURL(ctx)
	if err != nil {
		return nil, &StoreError{Op: "select", Err: err}
	}

	form := url.Values{"query": {query}}
	body, err := f.post(ctx, endpoint, form, "application/sparql-results+json")
	if err != nil {
		return nil, &StoreError{Op: "select", Statement: query, Err: err}
	}

	var res Results
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, &StoreError{Op: "select", Statement: query, Err: fmt.Errorf("decode results: %w", err)}
	}
	return &res, nil
}

// Update runs an update request.
func (f *Fuseki) Update(ctx context.Context, statement string) error {
	endpoint, err := f.datasetURL(ctx)
	if err != nil {
		return &StoreError{Op: "update", Statement: statement, Err: err}
	}

	form := url.Values{"update": {statement}}
	if _, err := f.post(ctx, endpoint, form, "*/*"); err != nil {
		return &StoreError{Op: "update", Statement: statement, Err: err}
	}
	return nil
}

// Compact asks the server to compact the dataset and delete the old
// generation of its storage.
func (f *Fuseki) Compact(ctx context.Context) error {
	base, err := f.resolver.Resolve(ctx)
	if err != nil {
		return &StoreError{Op: "compact", Err: err}
	}
	endpoint := strings.TrimRight(base, "/") + "/$/compact/" + url.PathEscape(f.opts.Dataset) + "?deleteOld=true"
	if _, err := f.post(ctx, endpoint, nil, "application/json"); err != nil {
		return &StoreError{Op: "compact", Err: err}
	}
	return nil
}

// Ping checks that the dataset answers a trivial query.
func (f *Fuseki) Ping(ctx context.Context) error {
	_, err := f.Select(ctx, "ASK { }")
	return err
}

func (f *Fuseki) post(ctx context.Context, endpoint string, form url.Values, accept string) ([]byte, error) {
	var reader io.Reader
	if form != nil {
		reader = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", accept)
	if f.opts.User != "" {
		req.SetBasicAuth(f.opts.User, f.opts.Password)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, &StatusError{Code: resp.StatusCode, Body: msg}
	}
	return body, nil
}
