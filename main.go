package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"parley/coach"
	"parley/entitlement"
	"parley/identity"
	"parley/log"
	"parley/player"
	"parley/prefs"
	"parley/question"
	"parley/record"
	"parley/statusbus"
	"parley/stt"
	"parley/tts"

	"golang.org/x/term"
)

var version = "dev"

const defaultAPI = "https://api.parley.app"

var shutdownOnce sync.Once

func gracefulShutdown(answers int) {
	shutdownOnce.Do(func() {
		if answers > 0 {
			log.SessionEnd(answers)
		}
		log.Close()
	})
}

func main() {
	apiFlag := flag.String("api", defaultAPI, "Backend API base URL")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	questionsFlag := flag.String("questions", "", "Path to a custom question bank (TOML)")
	shuffleFlag := flag.Bool("shuffle", false, "Shuffle the question bank on startup")
	prefsFlag := flag.String("prefs", "", "Path to preferences file (default: OS config location)")
	logPathFlag := flag.String("logpath", "", "Log directory path (default: OS-specific location, use ./ for current dir)")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("parley %s\n", version)
		os.Exit(0)
	}

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	prefsPath := *prefsFlag
	if prefsPath == "" {
		prefsPath, err = prefs.DefaultPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: resolving preferences path: %v\n", err)
			os.Exit(1)
		}
	}
	store := prefs.Open(prefsPath)

	id, err := identity.Resolve(filepath.Dir(prefsPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: resolving identity: %v\n", err)
		os.Exit(1)
	}
	log.SessionStart(id.ID, id.Plan)

	bank := question.NewBank()
	if *questionsFlag != "" {
		bank, err = question.LoadBank(*questionsFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if *shuffleFlag {
		bank.Shuffle()
	}

	// Microphone is optional: without one the listen-only flow still
	// works, recording just reports unavailable.
	var capture record.CaptureDevice
	audioCtx, err := record.NewContext()
	if err != nil {
		log.Warnf("audio capture unavailable: %v", err)
	} else {
		defer audioCtx.Close()
		var dev *record.DeviceInfo
		if *setupFlag && *deviceFlag == "" {
			if dev, err = selectDevice(audioCtx); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			}
		} else if *deviceFlag != "" {
			devices, derr := audioCtx.Devices()
			if derr != nil {
				log.Warnf("enumerating devices: %v", derr)
			}
			for i := range devices {
				if devices[i].Name == *deviceFlag {
					dev = &devices[i]
					break
				}
			}
			if dev == nil {
				fmt.Fprintf(os.Stderr, "Warning: device %q not found, using system default\n", *deviceFlag)
			}
		}
		capture, err = audioCtx.NewCapture(dev, record.CaptureConfig{
			SampleRate: record.SampleRate,
			Channels:   record.Channels,
		})
		if err != nil {
			log.Warnf("opening capture device: %v", err)
			capture = nil
		}
	}

	bus := statusbus.New()
	usage := entitlement.NewClient(*apiFlag, id, bus)
	gate := entitlement.NewGate(usage, id.Pro(), bus)

	notify := func(ev player.Event) { sendToUI(playbackMsg{Event: ev}) }
	questionSes := player.NewSession(
		string(prefs.SourceQuestion),
		synthFetch(tts.NewClient(*apiFlag, string(prefs.SourceQuestion), bus)),
		player.NewDeviceOutput(),
		notify,
	)
	guidanceSes := player.NewSession(
		string(prefs.SourceGuidance),
		synthFetch(tts.NewClient(*apiFlag, string(prefs.SourceGuidance), bus)),
		player.NewDeviceOutput(),
		notify,
	)

	d := deps{
		id:          id,
		bank:        bank,
		store:       store,
		gate:        gate,
		usage:       usage,
		improver:    coach.NewClient(*apiFlag, bus),
		transcriber: stt.NewClient(*apiFlag, bus),
		capture:     capture,
		questionSes: questionSes,
		guidanceSes: guidanceSes,
		bus:         bus,
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: parley needs a terminal")
		os.Exit(1)
	}

	p := newProgram(d)
	finalModel, err := p.Run()
	questionSes.Dispose()
	guidanceSes.Dispose()

	answers := 0
	if fm, ok := finalModel.(model); ok {
		answers = fm.answers
	}
	gracefulShutdown(answers)

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// synthFetch bridges the TTS adapter and the decode step into the
// player's fetch seam.
func synthFetch(c *tts.Client) player.Fetch {
	return func(ctx context.Context, text, voice string) (player.Clip, error) {
		clip, err := c.Synthesize(ctx, text, voice)
		if err != nil {
			return nil, err
		}
		return player.DecodeClip(clip)
	}
}
