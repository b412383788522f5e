package system

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

var traceExtensions = []string{".yaml", ".yml", ".toml", ".json"}

// FindLatestTrace returns the most recently modified trace file in dir.
func FindLatestTrace(dir string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() || !hasExt(f.Name(), traceExtensions) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no trace files found in %s", dir)
	}

	return latestFile, nil
}

func hasExt(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// GetVideoDuration asks ffprobe for the container duration in seconds.
func GetVideoDuration(path string) (float64, error) {
	cmd := exec.Command("ffprobe", "-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, err
	}

	var duration float64
	_, err = fmt.Sscanf(strings.TrimSpace(string(out)), "%f", &duration)
	if err != nil {
		return 0, err
	}

	return duration, nil
}

// HasFFmpeg reports whether an ffmpeg binary is on PATH.
func HasFFmpeg() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}

// GetBestEncoder picks a video codec for the container. For mp4 the
// hardware H.264 encoders are preferred:
// 1. MacOS (VideoToolbox)
// 2. NVIDIA (NVENC)
// 3. Software (libx264)
// webm always uses libvpx-vp9.
func GetBestEncoder(container string) string {
	if container == "webm" {
		return "libvpx-vp9"
	}

	out, err := exec.Command("ffmpeg", "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return "libx264"
	}
	for _, name := range []string{"h264_videotoolbox", "h264_nvenc"} {
		if strings.Contains(string(out), name) {
			return name
		}
	}

	return "libx264"
}

// DefaultQuality returns the quality knob for an encoder: bitrate in
// 100 kbit/s steps for VideoToolbox, CQ for NVENC, CRF otherwise.
func DefaultQuality(encoderName string) int {
	switch encoderName {
	case "h264_videotoolbox":
		return 75
	case "h264_nvenc":
		return 28
	case "libvpx-vp9":
		return 31
	default:
		return 23
	}
}
