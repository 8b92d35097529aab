// Package tflite runs TensorFlow Lite models through the tflite C API.
package tflite

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/tphakala/go-tflite"

	"github.com/sargazo/sargazo-predictor/internal/cpuspec"
	"github.com/sargazo/sargazo-predictor/internal/errors"
	"github.com/sargazo/sargazo-predictor/internal/inference"
	"github.com/sargazo/sargazo-predictor/internal/logger"
	"github.com/sargazo/sargazo-predictor/internal/modelconfig"
)

// GetLogger returns the tflite backend logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("inference").Module("tflite")
}

// Options configure interpreter creation.
type Options struct {
	// Threads is the interpreter thread count; 0 selects from the CPU.
	Threads int
}

// Model wraps a single interpreter. The interpreter is not reentrant, so
// Predict calls are serialised.
type Model struct {
	mu          sync.Mutex
	path        string
	model       *tflite.Model
	interpreter *tflite.Interpreter
	inputDims   []int
}

// Load reads a .tflite file and prepares an interpreter for it.
func Load(path string, opts Options) (*Model, error) {
	start := time.Now()

	if err := modelconfig.CheckExists(path, "model"); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator settings
	if err != nil {
		return nil, errors.New(err).
			Component("inference.tflite").
			Category(errors.CategoryFileIO).
			ModelContext(path, inference.BackendTFLite).
			Timing("model-file-read", time.Since(start)).
			Build()
	}

	model := tflite.NewModel(data)
	if model == nil {
		return nil, errors.Newf("cannot load TensorFlow Lite model").
			Component("inference.tflite").
			Category(errors.CategoryModelLoad).
			ModelContext(path, inference.BackendTFLite).
			Context("model_size_kb", len(data)/1024).
			Timing("model-init", time.Since(start)).
			Build()
	}

	threads := cpuspec.ThreadCount(opts.Threads)
	options := tflite.NewInterpreterOptions()
	options.SetNumThread(threads)
	options.SetErrorReporter(func(msg string, _ any) {
		GetLogger().Error("TFLite error", logger.String("message", msg))
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		model.Delete()
		return nil, errors.Newf("cannot create interpreter").
			Component("inference.tflite").
			Category(errors.CategoryModelInit).
			ModelContext(path, inference.BackendTFLite).
			Build()
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		model.Delete()
		return nil, errors.Newf("tensor allocation failed: %v", status).
			Component("inference.tflite").
			Category(errors.CategoryModelInit).
			ModelContext(path, inference.BackendTFLite).
			Context("status_code", status).
			Build()
	}

	m := &Model{
		path:        path,
		model:       model,
		interpreter: interpreter,
		inputDims:   tensorDims(interpreter.GetInputTensor(0)),
	}

	// tflite copies the flatbuffer; drop our copy
	runtime.GC()

	GetLogger().Info("model loaded",
		logger.String("path", path),
		logger.Int("threads", threads),
		logger.Any("input_shape", m.inputDims),
		logger.Duration("elapsed", time.Since(start)))
	return m, nil
}

// Backend implements inference.Describer
func (m *Model) Backend() string { return inference.BackendTFLite }

// Predict copies input into the first input tensor, invokes the interpreter
// and returns the first output tensor. The input tensor is resized when the
// caller's shape differs from the allocated one.
func (m *Model) Predict(ctx context.Context, input inference.Tensor) (inference.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return inference.Tensor{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.interpreter == nil {
		return inference.Tensor{}, fmt.Errorf("interpreter is closed")
	}

	if !slices.Equal(m.inputDims, input.Shape) {
		if err := m.resizeInput(input.Shape); err != nil {
			return inference.Tensor{}, err
		}
	}

	inputTensor := m.interpreter.GetInputTensor(0)
	if inputTensor == nil {
		return inference.Tensor{}, fmt.Errorf("cannot get input tensor")
	}
	buf := inputTensor.Float32s()
	if len(buf) != input.Len() {
		return inference.Tensor{}, fmt.Errorf("input tensor holds %d values, got %d", len(buf), input.Len())
	}
	for i, v := range input.Data {
		buf[i] = float32(v)
	}

	if status := m.interpreter.Invoke(); status != tflite.OK {
		return inference.Tensor{}, fmt.Errorf("tensor invoke failed: %v", status)
	}

	outputTensor := m.interpreter.GetOutputTensor(0)
	if outputTensor == nil {
		return inference.Tensor{}, fmt.Errorf("cannot get output tensor")
	}
	raw := outputTensor.Float32s()
	data := make([]float64, len(raw))
	for i, v := range raw {
		data[i] = float64(v)
	}
	return inference.Tensor{Shape: tensorDims(outputTensor), Data: data}, nil
}

func (m *Model) resizeInput(shape []int) error {
	dims := make([]int32, len(shape))
	for i, d := range shape {
		dims[i] = int32(d) //nolint:gosec // G115: dimensions are small and validated upstream
	}
	if status := m.interpreter.ResizeInputTensor(0, dims); status != tflite.OK {
		return fmt.Errorf("cannot resize input tensor to %v: %v", shape, status)
	}
	if status := m.interpreter.AllocateTensors(); status != tflite.OK {
		return fmt.Errorf("tensor allocation failed after resize: %v", status)
	}
	GetLogger().Debug("input tensor resized",
		logger.Any("from", m.inputDims),
		logger.Any("to", shape))
	m.inputDims = append([]int(nil), shape...)
	return nil
}

// Close releases the interpreter and model.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.interpreter != nil {
		m.interpreter.Delete()
		m.interpreter = nil
	}
	if m.model != nil {
		m.model.Delete()
		m.model = nil
	}
	return nil
}

func tensorDims(t *tflite.Tensor) []int {
	if t == nil {
		return nil
	}
	dims := make([]int, t.NumDims())
	for i := range dims {
		dims[i] = t.Dim(i)
	}
	return dims
}
