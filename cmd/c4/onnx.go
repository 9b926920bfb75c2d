//go:build !noonnx

package main

// Include ONNX models support: it requires the onnxruntime shared library at run time.

import (
	_ "github.com/janpfeifer/connect4zero/internal/ai/onnx"
)
