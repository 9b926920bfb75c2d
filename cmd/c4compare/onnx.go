//go:build !noonnx

package main

import (
	_ "github.com/janpfeifer/connect4zero/internal/ai/onnx"
)
