package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/ivlev/simcapture/internal/config"
	"github.com/ivlev/simcapture/internal/engine"
	"github.com/ivlev/simcapture/internal/scene"
	"github.com/ivlev/simcapture/internal/system"
	"github.com/ivlev/simcapture/internal/video"
)

var version = "dev"

func main() {
	configPtr := flag.String("config", "", "Path to a YAML or TOML config file")
	inputPtr := flag.String("input", "", "Trace to replay (default: newest file in input/traces/)")
	scenePtr := flag.String("scene", "", "Scene config overriding the one embedded in the trace")
	outputPtr := flag.String("output", "", "Directory for exported artifacts")
	widthPtr := flag.Int("width", 0, "Capture width in physical pixels")
	heightPtr := flag.Int("height", 0, "Capture height in physical pixels")
	presetPtr := flag.String("preset", "", "Resolution preset: 16:9, 9:16, 4:5")
	fpsPtr := flag.Int("fps", 0, "Encoder frame rate")
	containerPtr := flag.String("container", "", "Video container: webm, mp4")
	encoderPtr := flag.String("encoder", "", "ffmpeg codec (default: auto-detect)")
	qualityPtr := flag.Int("quality", 0, "Quality (0 - auto; x264/vp9: CRF, VideoToolbox: bitrate = Q*100kbit/s)")
	noVideoPtr := flag.Bool("no-video", false, "Capture annotations only")
	samplingPtr := flag.String("sampling", "", "Frame sampling: render, interval")
	intervalPtr := flag.Int("interval", 0, "Sampling interval in ms for -sampling interval")
	formatsPtr := flag.String("formats", "", "Comma separated exports: video,coco,yolo,report,overlay,bundle")
	stridePtr := flag.Int("overlay-stride", 0, "Render every n-th frame into the overlay export")
	statsPtr := flag.Bool("stats", false, "Print a performance report and append to benchmark.log")
	logLevelPtr := flag.String("log-level", "", "debug, info, warn, error")
	directPtr := flag.Bool("direct", false, "Generate a camera path for the trace, save it and exit")
	directOutPtr := flag.String("direct-out", "", "Where -direct writes the trace (default: output dir)")

	flag.Parse()

	cfg, err := config.Load(*configPtr)
	if err != nil {
		log.Fatalf("[-] Config error: %v", err)
	}
	cfg.BuildVersion = version

	// explicit flags win over file and environment
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.InputPath = *inputPtr
		case "scene":
			cfg.ScenePath = *scenePtr
		case "output":
			cfg.OutputDir = *outputPtr
		case "width":
			cfg.Width = *widthPtr
		case "height":
			cfg.Height = *heightPtr
		case "fps":
			cfg.FPS = *fpsPtr
		case "container":
			cfg.Container = *containerPtr
		case "encoder":
			cfg.Encoder = *encoderPtr
		case "quality":
			cfg.Quality = *qualityPtr
		case "no-video":
			cfg.NoVideo = *noVideoPtr
		case "sampling":
			cfg.Sampling = *samplingPtr
		case "interval":
			cfg.IntervalMs = *intervalPtr
		case "formats":
			cfg.Formats = strings.Split(*formatsPtr, ",")
		case "overlay-stride":
			cfg.OverlayStride = *stridePtr
		case "stats":
			cfg.ShowStats = *statsPtr
		case "log-level":
			cfg.LogLevel = *logLevelPtr
		}
	})

	switch *presetPtr {
	case "16:9":
		cfg.Width, cfg.Height = 1280, 720
	case "9:16":
		cfg.Width, cfg.Height = 720, 1280
	case "4:5":
		cfg.Width, cfg.Height = 1080, 1350
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("[-] Config error: %v", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	for _, d := range []string{"input/traces", cfg.OutputDir} {
		os.MkdirAll(d, 0755)
	}

	if cfg.InputPath == "" {
		latest, err := system.FindLatestTrace("input/traces")
		if err != nil {
			log.Fatalf("[-] Error: %v. Put a trace into input/traces/", err)
		}
		cfg.InputPath = latest
		fmt.Printf("[*] Selected trace: %s\n", cfg.InputPath)
	}

	trace, err := scene.ReadTrace(cfg.InputPath)
	if err != nil {
		log.Fatalf("[-] Trace error: %v", err)
	}

	if *directPtr {
		path, err := engine.NewReplayProject(cfg, trace, video.NullEncoder{}).DirectCamera(*directOutPtr)
		if err != nil {
			log.Fatalf("[-] Director error: %v", err)
		}
		fmt.Printf("[+] Directed trace saved to %s\n", path)
		fmt.Printf("[*] To capture: simcapture -input %s\n", path)
		return
	}

	var enc video.Encoder = video.NullEncoder{}
	encoderName := ""
	if !cfg.NoVideo {
		if system.HasFFmpeg() {
			encoderName = cfg.Encoder
			if encoderName == "" {
				encoderName = system.GetBestEncoder(cfg.Container)
			}
			if encoderName == "h264_videotoolbox" || encoderName == "h264_nvenc" {
				fmt.Printf("[*] Hardware acceleration detected: %s\n", encoderName)
			}
			quality := cfg.Quality
			if quality == 0 {
				quality = system.DefaultQuality(encoderName)
			}
			enc = &video.FFmpegEncoder{
				EncoderName: encoderName,
				Quality:     quality,
				TempDir:     cfg.TempDir,
				Logger:      logger,
			}
		} else {
			fmt.Println("[!] ffmpeg not found, capturing annotations only")
			cfg.NoVideo = true
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	project := engine.NewReplayProject(cfg, trace, enc)
	project.Prober = system.GopsutilProber{Encoder: encoderName}
	project.Logger = logger

	summary, err := project.Run(ctx)
	if err != nil && summary == nil {
		log.Fatalf("[-] Replay error: %v", err)
	}
	if err != nil {
		fmt.Printf("[!] Replay interrupted: %v\n", err)
	}

	fmt.Printf("[+++] Done! %d frames, %d boxes, %d artifacts in %s\n",
		len(summary.Session.Frames), summary.Session.ObjectCount(), len(summary.Written), cfg.OutputDir)
}
