// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// ProbeResult is what the metadata stage keeps from ffprobe.
type ProbeResult struct {
	Duration   float64
	Width      int
	Height     int
	VideoCodec string
	AudioCodec string
}

// Resolution is "WIDTHxHEIGHT", or empty when no video stream was found.
func (p ProbeResult) Resolution() string {
	if p.Width <= 0 || p.Height <= 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", p.Width, p.Height)
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
}

// Probe reads container duration and the first video stream's dimensions.
func (r *Runner) Probe(ctx context.Context, src string) (ProbeResult, error) {
	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_entries", "format=duration:stream=codec_type,codec_name,width,height,duration",
		src,
	}
	out, err := r.run(ctx, "probe", r.cfg.ProbeBin, args, r.cfg.MinTimeout, false)
	if err != nil {
		return ProbeResult{}, err
	}
	return parseProbe(out)
}

func parseProbe(out []byte) (ProbeResult, error) {
	var po probeOutput
	if err := json.Unmarshal(out, &po); err != nil {
		return ProbeResult{}, fmt.Errorf("probe: parse output: %w (%s)", err, truncate(string(out), 200))
	}

	var res ProbeResult
	res.Duration = parseSeconds(po.Format.Duration)
	for _, s := range po.Streams {
		switch s.CodecType {
		case "video":
			if res.VideoCodec != "" {
				continue
			}
			res.VideoCodec = s.CodecName
			res.Width, res.Height = s.Width, s.Height
			if res.Duration == 0 {
				res.Duration = parseSeconds(s.Duration)
			}
		case "audio":
			if res.AudioCodec == "" {
				res.AudioCodec = s.CodecName
			}
		}
	}
	if res.VideoCodec == "" && res.AudioCodec == "" {
		return res, fmt.Errorf("probe: no audio or video streams")
	}
	return res, nil
}

func parseSeconds(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
