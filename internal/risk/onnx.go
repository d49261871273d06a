package risk

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXClassifier runs the exported fraud model through onnxruntime. Tensors
// are allocated once at load time and reused, so inference takes a lock.
type ONNXClassifier struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	meta         Metadata
}

// LoadONNXClassifier initializes the ONNX runtime, validates the metadata
// sidecar, and builds the inference session. Called once at process start.
func LoadONNXClassifier(modelPath, metadataPath string, logger *slog.Logger) (*ONNXClassifier, error) {
	if logger == nil {
		logger = slog.Default()
	}

	meta, err := LoadMetadata(metadataPath)
	if err != nil {
		return nil, err
	}
	if n := int64(len(FeatureColumns)); meta.InputShape[len(meta.InputShape)-1] != n {
		return nil, fmt.Errorf("model expects %d features, want %d", meta.InputShape[len(meta.InputShape)-1], n)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{meta.InputName}, []string{meta.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	logger.Info("classifier loaded", "model", modelPath, "columns", meta.Columns)

	return &ONNXClassifier{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		meta:         meta,
	}, nil
}

// PredictProba runs one inference and returns the positive-class probability
// as a plain float64 copied out of the runtime's buffers.
func (c *ONNXClassifier) PredictProba(_ context.Context, row []float32) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	copy(c.inputTensor.GetData(), row)

	if err := c.session.Run(); err != nil {
		return 0, fmt.Errorf("inference failed: %w", err)
	}

	// output is one row of class probabilities; class 1 (fraud) is last
	out := c.outputTensor.GetData()
	if len(out) == 0 {
		return 0, fmt.Errorf("empty inference output")
	}
	return float64(out[len(out)-1]), nil
}

func (c *ONNXClassifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inputTensor != nil {
		c.inputTensor.Destroy()
	}
	if c.outputTensor != nil {
		c.outputTensor.Destroy()
	}
	if c.session != nil {
		c.session.Destroy()
	}
	ort.DestroyEnvironment()
}
