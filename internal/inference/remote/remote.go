// Package remote delegates inference to a model server speaking the
// TensorFlow Serving REST predict protocol.
package remote

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sargazo/sargazo-predictor/internal/errors"
	"github.com/sargazo/sargazo-predictor/internal/httpclient"
	"github.com/sargazo/sargazo-predictor/internal/inference"
	"github.com/sargazo/sargazo-predictor/internal/logger"
)

// GetLogger returns the remote backend logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("inference").Module("remote")
}

// Config selects the model server endpoint.
type Config struct {
	// URL is the full predict endpoint, e.g.
	// http://tf-serving:8501/v1/models/sargazo_lstm:predict
	URL     string
	Timeout time.Duration
}

// Model forwards Predict calls over HTTP. It is safe for concurrent use.
type Model struct {
	url    string
	client *httpclient.Client
	owned  bool
}

type predictRequest struct {
	Instances any `json:"instances"`
}

type predictResponse struct {
	Predictions any    `json:"predictions"`
	Error       string `json:"error,omitempty"`
}

// New creates a remote model. When client is nil a dedicated client is
// created and closed by Close.
func New(cfg Config, client *httpclient.Client) (*Model, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.Newf("remote model URL is empty").
			Component("inference.remote").
			Category(errors.CategoryConfiguration).
			Build()
	}
	m := &Model{url: cfg.URL, client: client}
	if client == nil {
		m.client = httpclient.New(&httpclient.Config{DefaultTimeout: cfg.Timeout})
		m.owned = true
	}
	GetLogger().Info("remote model configured", logger.String("url", cfg.URL))
	return m, nil
}

// Backend implements inference.Describer
func (m *Model) Backend() string { return inference.BackendRemote }

// Predict sends input as the "instances" list, its first dimension being the
// batch, and returns the "predictions" array as a tensor.
func (m *Model) Predict(ctx context.Context, input inference.Tensor) (inference.Tensor, error) {
	instances, err := nest(input)
	if err != nil {
		return inference.Tensor{}, err
	}

	var resp predictResponse
	if err := m.client.PostJSON(ctx, m.url, predictRequest{Instances: instances}, &resp); err != nil {
		return inference.Tensor{}, errors.New(fmt.Errorf("remote predict: %w", err)).
			Component("inference.remote").
			Category(errors.CategoryNetwork).
			Context("url", m.url).
			Build()
	}
	if resp.Error != "" {
		return inference.Tensor{}, fmt.Errorf("model server error: %s", resp.Error)
	}
	if resp.Predictions == nil {
		return inference.Tensor{}, fmt.Errorf("model server response has no predictions")
	}

	shape, data, err := flatten(resp.Predictions)
	if err != nil {
		return inference.Tensor{}, fmt.Errorf("decode predictions: %w", err)
	}
	return inference.Tensor{Shape: shape, Data: data}, nil
}

// Close releases pooled connections of a client created by New.
func (m *Model) Close() error {
	if m.owned {
		m.client.Close()
	}
	return nil
}

// nest converts a tensor into nested slices for JSON encoding.
func nest(t inference.Tensor) (any, error) {
	if len(t.Shape) == 0 {
		return nil, fmt.Errorf("tensor has no shape")
	}
	var build func(dims []int, data []float64) any
	build = func(dims []int, data []float64) any {
		if len(dims) == 1 {
			return data
		}
		stride := len(data) / max(dims[0], 1)
		out := make([]any, dims[0])
		for i := range out {
			out[i] = build(dims[1:], data[i*stride:(i+1)*stride])
		}
		return out
	}
	return build(t.Shape, t.Data), nil
}

// flatten walks nested JSON arrays of numbers and returns their shape and
// row-major data. Ragged arrays are rejected.
func flatten(v any) ([]int, []float64, error) {
	var shape []int
	var data []float64
	var walk func(v any, depth int) error
	walk = func(v any, depth int) error {
		switch x := v.(type) {
		case float64:
			if depth != len(shape) {
				return fmt.Errorf("ragged predictions at depth %d", depth)
			}
			data = append(data, x)
			return nil
		case []any:
			if depth == len(shape) {
				shape = append(shape, len(x))
			} else if depth > len(shape) || shape[depth] != len(x) {
				return fmt.Errorf("ragged predictions at depth %d", depth)
			}
			for _, item := range x {
				if err := walk(item, depth+1); err != nil {
					return err
				}
			}
			return nil
		default:
			return fmt.Errorf("unexpected %T in predictions", v)
		}
	}
	if err := walk(v, 0); err != nil {
		return nil, nil, err
	}
	return shape, data, nil
}
