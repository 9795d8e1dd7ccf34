package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go-hicp-pipeline/internal/config"
	"go-hicp-pipeline/internal/model"
)

const bodyExcerptLimit = 2000

// ------------------- Fetch stage -------------------

// FetchRaw pulls the configured HICP series from the statistics API and
// persists the untouched payload with provenance metadata. It returns the
// raw storage key.
func FetchRaw(ctx context.Context, cfg *config.Config, store ObjectStore) (string, error) {
	client := &http.Client{Timeout: cfg.HTTPTimeout}

	baseParams := map[string]string{"geo": cfg.Geo, "coicop": cfg.Coicop}

	payload, finalParams, err := tryFetchWithFallback(ctx, client, cfg, baseParams)
	if err != nil {
		return "", err
	}

	requested := make(map[string]string, len(baseParams)+1)
	for k, v := range baseParams {
		requested[k] = v
	}
	if cfg.Unit != "" {
		requested["unit"] = cfg.Unit
	}

	now := time.Now().UTC()
	wrapper := model.RawEnvelope{
		Meta: model.RawMeta{
			Dataset:         cfg.Dataset,
			Params:          finalParams,
			RequestedParams: requested,
			FetchedAtUTC:    now.Format(time.RFC3339),
			Source:          "Eurostat dissemination API",
			PipelineStage:   "bronze/raw",
		},
		Data: payload,
	}

	raw, err := json.Marshal(wrapper)
	if err != nil {
		return "", fmt.Errorf("failed to encode raw wrapper: %w", err)
	}

	key := fmt.Sprintf("%sts=%s.json", cfg.RawPrefix(), keyTimestamp(now))
	if err := store.Put(ctx, key, raw, "application/json"); err != nil {
		return "", err
	}

	fmt.Printf("✅ Uploaded raw HICP payload: %s\n", key)
	return key, nil
}

// tryFetchWithFallback tries with the unit filter first (if configured),
// then retries without it if the API rejects the request.
func tryFetchWithFallback(ctx context.Context, client *http.Client, cfg *config.Config, baseParams map[string]string) (json.RawMessage, map[string]string, error) {
	if cfg.Unit != "" {
		params := make(map[string]string, len(baseParams)+1)
		for k, v := range baseParams {
			params[k] = v
		}
		params["unit"] = cfg.Unit

		payload, err := fetchJSON(ctx, client, cfg, params)
		if err == nil {
			return payload, params, nil
		}
		fmt.Println("⚠️ Request failed with unit parameter. Retrying without 'unit'...")
		fmt.Println(firstLine(err.Error()))
	}

	params := make(map[string]string, len(baseParams))
	for k, v := range baseParams {
		params[k] = v
	}
	payload, err := fetchJSON(ctx, client, cfg, params)
	if err != nil {
		return nil, nil, err
	}
	return payload, params, nil
}

// fetchJSON issues one GET against the dataset endpoint. A non-2xx status
// yields a RemoteFetchError carrying a truncated body excerpt.
func fetchJSON(ctx context.Context, client *http.Client, cfg *config.Config, params map[string]string) (json.RawMessage, error) {
	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	reqURL := fmt.Sprintf("%s/%s?%s", cfg.BaseURL, cfg.Dataset, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	fmt.Printf("🌐 GET JSON: %s\n", reqURL)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to GET JSON: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt := string(body)
		if len(excerpt) > bodyExcerptLimit {
			excerpt = excerpt[:bodyExcerptLimit]
		}
		return nil, &RemoteFetchError{Status: resp.StatusCode, URL: reqURL, Body: excerpt}
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("failed to decode JSON from %s", reqURL)
	}
	return json.RawMessage(body), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
