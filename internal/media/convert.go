// Package media wraps the external ffmpeg utility used to normalize uploaded
// audio before transcription.
package media

import (
	"context"
	"fmt"
	"os/exec"
)

// Converter normalizes arbitrary audio files to mono 16kHz PCM WAV.
type Converter struct {
	ffmpegBin string
}

// NewConverter builds a converter using the given ffmpeg binary.
func NewConverter(ffmpegBin string) *Converter {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	return &Converter{ffmpegBin: ffmpegBin}
}

// Convert writes a normalized copy of inputPath and returns its path. On any
// failure the original path is returned together with the error: conversion
// is a best-effort step and the caller proceeds with the unconverted file.
func (c *Converter) Convert(ctx context.Context, inputPath string) (string, error) {
	outputPath := inputPath + ".wav"
	cmd := exec.CommandContext(ctx, c.ffmpegBin,
		"-y",
		"-i", inputPath,
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		outputPath,
	)
	if err := cmd.Run(); err != nil {
		return inputPath, fmt.Errorf("ffmpeg convert: %w", err)
	}
	return outputPath, nil
}
