// Copyright (c) 2026 EDITD
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	defaultRequestTimeout = 30 * time.Second

	shardStateStarted = "STARTED"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type httpClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// New returns a Client talking to the Elasticsearch node at host over HTTP.
// A host without a scheme is assumed to be plain HTTP.
func New(host string, logger *zap.Logger) Client {
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &httpClient{
		baseURL: strings.TrimSuffix(host, "/"),
		client:  &http.Client{Timeout: defaultRequestTimeout},
		logger:  logger,
	}
}

func (c *httpClient) do(
	ctx context.Context,
	method, endpoint string,
	body []byte,
	out interface{},
) error {
	url := c.baseURL + "/" + endpoint
	c.logger.Debug("elasticsearch request",
		zap.String("method", method),
		zap.String("url", url))

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return errors.Wrapf(err, "building %s %s request", method, endpoint)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s failed", method, endpoint)
	}
	defer resp.Body.Close()

	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "reading %s %s response", method, endpoint)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &statusError{method: method, endpoint: endpoint, code: resp.StatusCode, body: trim(data)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "decoding %s %s response", method, endpoint)
	}
	return nil
}

type statusError struct {
	method   string
	endpoint string
	code     int
	body     string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.method, e.endpoint, e.code, e.body)
}

func trim(data []byte) string {
	const max = 512
	s := string(data)
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}

type nodesStatsResponse struct {
	Nodes map[string]struct {
		Name       string            `json:"name"`
		Attributes map[string]string `json:"attributes"`
	} `json:"nodes"`
}

func (c *httpClient) FetchNodes(ctx context.Context, attrs map[string]string) ([]NodeRecord, error) {
	var resp nodesStatsResponse
	if err := c.do(ctx, http.MethodGet, "_nodes/stats/fs", nil, &resp); err != nil {
		return nil, err
	}

	var nodes []NodeRecord
	for id, node := range resp.Nodes {
		if !matchesAttrs(node.Attributes, attrs) {
			continue
		}
		nodes = append(nodes, NodeRecord{
			ID:         id,
			Name:       node.Name,
			Attributes: node.Attributes,
		})
	}
	return nodes, nil
}

type indexSettingsResponse map[string]struct {
	Settings struct {
		Index struct {
			Routing struct {
				Allocation struct {
					Require map[string]string `json:"require"`
				} `json:"allocation"`
			} `json:"routing"`
		} `json:"index"`
	} `json:"settings"`
}

type catShardRecord struct {
	Index string `json:"index"`
	Shard string `json:"shard"`
	State string `json:"state"`
	Store string `json:"store"`
	Node  string `json:"node"`
}

func (c *httpClient) FetchShards(
	ctx context.Context,
	attrs map[string]string,
	indexPattern string,
) ([]ShardRecord, error) {
	var pattern *regexp.Regexp
	if indexPattern != "" {
		var err error
		if pattern, err = regexp.Compile(indexPattern); err != nil {
			return nil, errors.Wrapf(err, "invalid index pattern %q", indexPattern)
		}
	}

	var settings indexSettingsResponse
	if err := c.do(ctx, http.MethodGet, "_settings", nil, &settings); err != nil {
		return nil, err
	}

	indices := make(map[string]struct{}, len(settings))
	for name, index := range settings {
		if !matchesAttrs(index.Settings.Index.Routing.Allocation.Require, attrs) {
			continue
		}
		if pattern != nil && !pattern.MatchString(name) {
			continue
		}
		indices[name] = struct{}{}
	}

	var catShards []catShardRecord
	if err := c.do(ctx, http.MethodGet, "_cat/shards?format=json&bytes=b", nil, &catShards); err != nil {
		return nil, err
	}

	var shards []ShardRecord
	for _, shard := range catShards {
		if _, ok := indices[shard.Index]; !ok {
			continue
		}
		// Shards that are unassigned or mid-relocation have no stable
		// placement and must not be considered.
		if shard.State != shardStateStarted || shard.Node == "" || shard.Store == "" {
			continue
		}
		position, err := strconv.Atoi(shard.Shard)
		if err != nil {
			return nil, errors.Wrapf(err, "unexpected shard number %q for index %s", shard.Shard, shard.Index)
		}
		size, err := strconv.ParseInt(shard.Store, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "unexpected store size %q for shard %s-%d", shard.Store, shard.Index, position)
		}
		shards = append(shards, ShardRecord{
			Index:     shard.Index,
			Shard:     position,
			Node:      shard.Node,
			SizeBytes: size,
		})
	}
	return shards, nil
}

type healthResponse struct {
	Status           string `json:"status"`
	RelocatingShards int    `json:"relocating_shards"`
}

func (c *httpClient) Health(ctx context.Context) (HealthStatus, error) {
	var resp healthResponse
	if err := c.do(ctx, http.MethodGet, "_cluster/health", nil, &resp); err != nil {
		return HealthStatus{}, err
	}
	return HealthStatus{
		Status:           resp.Status,
		RelocatingShards: resp.RelocatingShards,
	}, nil
}

type clusterSettingsResponse struct {
	Transient map[string]interface{} `json:"transient"`
}

func (c *httpClient) GetSetting(ctx context.Context, path, defaultValue string) (string, error) {
	var resp clusterSettingsResponse
	if err := c.do(ctx, http.MethodGet, "_cluster/settings?flat_settings=true", nil, &resp); err != nil {
		return "", err
	}
	value, ok := resp.Transient[path]
	if !ok {
		return defaultValue, nil
	}
	if s, ok := value.(string); ok {
		return s, nil
	}
	return fmt.Sprint(value), nil
}

func (c *httpClient) SetSetting(ctx context.Context, path, value string) error {
	// An empty value resets the setting to its default.
	var settingValue interface{}
	if value != "" {
		settingValue = value
	}
	body, err := json.Marshal(map[string]interface{}{
		"transient": map[string]interface{}{path: settingValue},
	})
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, "_cluster/settings", body, nil)
}

type rerouteCommand struct {
	Move MoveCommand `json:"move"`
}

func (c *httpClient) SubmitMoves(ctx context.Context, moves []MoveCommand) error {
	commands := make([]rerouteCommand, 0, len(moves))
	for _, move := range moves {
		commands = append(commands, rerouteCommand{Move: move})
	}
	body, err := json.Marshal(map[string]interface{}{"commands": commands})
	if err != nil {
		return err
	}
	err = c.do(ctx, http.MethodPost, "_cluster/reroute", body, nil)
	var serr *statusError
	if errors.As(err, &serr) && serr.code == http.StatusBadRequest {
		return errors.Wrap(ErrInvalidReroute, serr.body)
	}
	return err
}

func matchesAttrs(attrs, filter map[string]string) bool {
	for key, value := range filter {
		if attrs[key] != value {
			return false
		}
	}
	return true
}
