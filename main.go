package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"clinicletter/audio"
	"clinicletter/beep"
	"clinicletter/config"
	"clinicletter/delivery"
	"clinicletter/docserver"
	"clinicletter/doctor"
	"clinicletter/generation"
	"clinicletter/hotkey"
	"clinicletter/letter"
	"clinicletter/log"
	"clinicletter/review"
	"clinicletter/shutdown"
)

var version = "dev"

// holdThreshold separates a hotkey tap (toggle) from hold-to-dictate.
const holdThreshold = 350 * time.Millisecond

type options struct {
	sub      string
	logPath  string
	envPath  string
	device   string
	setup    bool
	fake     bool
	testWAV  string
	hotkey   bool
	showVers bool
}

func parseFlags(args []string) (options, error) {
	var o options
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		o.sub, args = args[0], args[1:]
	}
	fs := flag.NewFlagSet("clinicletter", flag.ContinueOnError)
	fs.StringVar(&o.logPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	fs.StringVar(&o.envPath, "env", "", "configuration env file (default: .env or $ENV_PATH)")
	fs.StringVar(&o.device, "device", "", "use the microphone whose name contains this text")
	fs.BoolVar(&o.setup, "setup", false, "choose the microphone interactively")
	fs.BoolVar(&o.fake, "fake", false, "offline demo: fake generation and delivery backends")
	fs.StringVar(&o.testWAV, "test", "", "headless mode: replay this 16kHz mono WAV and read commands from stdin")
	fs.BoolVar(&o.hotkey, "hotkey", true, "listen for the global dictation hotkey ("+hotkey.Combo+")")
	fs.BoolVar(&o.showVers, "version", false, "print version and exit")
	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintln(out, "Usage: clinicletter [review|serve|doctor] [flags]")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "  (none)  record a consultation, generate and review the letter")
		fmt.Fprintln(out, "  review  resume review of the letter in the slot file")
		fmt.Fprintln(out, "  serve   run the letter templating server")
		fmt.Fprintln(out, "  doctor  run system diagnostics")
		fmt.Fprintln(out)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	switch o.sub {
	case "", "review", "serve", "doctor":
	default:
		fs.Usage()
		return o, fmt.Errorf("unknown command %q", o.sub)
	}
	return o, nil
}

func run() int {
	o, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if o.showVers {
		fmt.Printf("clinicletter %s\n", version)
		return 0
	}

	logPath, err := log.ResolveDir(o.logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		return 1
	}
	log.SetDir(logPath)
	initCrashLog()
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	cfg, err := config.Load(o.envPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if o.device != "" {
		cfg.Device = o.device
	}
	if err := log.SetLevel(cfg.LogLevel); err != nil {
		log.Warnf("log level: %v", err)
	}

	ctx, cancel := shutdown.Context(context.Background())
	defer cancel()

	switch o.sub {
	case "serve":
		return runServe(ctx, cfg)
	case "doctor":
		return doctor.Run(ctx, os.Stdout, doctor.Standard(cfg, true))
	}

	mode := "live"
	switch {
	case o.testWAV != "":
		mode = "test"
	case o.fake:
		mode = "fake"
	}
	log.SessionStart(cfg.GenerationURL, cfg.DeliveryURL, mode)

	deps, closeDeps, err := buildDeps(cfg, o)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeDeps()

	if o.testWAV != "" {
		return runTest(ctx, cfg, deps, os.Stdin, os.Stdout)
	}
	return runInteractive(ctx, cfg, deps, o)
}

func initCrashLog() {
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
		return
	}
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	f, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(f, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(f, debug.CrashOptions{})
}

func buildDeps(cfg *config.AppConfig, o options) (appDeps, func(), error) {
	var d appDeps
	var err error

	if cfg.SlotFile != "" {
		d.slot, err = letter.OpenSlot(cfg.SlotFile)
		if err != nil {
			return d, nil, fmt.Errorf("opening slot file: %w", err)
		}
	} else {
		d.slot = letter.NewSlot()
	}

	if o.fake || o.testWAV != "" {
		d.client = demoGenerator(cfg)
		d.sender = &delivery.Fake{}
	} else {
		hook := generation.NewWebhook(cfg.GenerationURL, cfg.HTTPTimeout)
		go func() {
			if tls := hook.Warm(); tls > 0 {
				log.Infof("generation connection warmed, tls %dms", tls.Milliseconds())
			}
		}()
		d.client = hook
		d.sender = delivery.NewWebhook(cfg.DeliveryURL, cfg.HTTPTimeout)
	}

	if o.testWAV != "" {
		pcm, err := audio.LoadWAV(o.testWAV)
		if err != nil {
			return d, nil, fmt.Errorf("loading WAV: %w", err)
		}
		d.actx = audio.NewFakeContext(pcm, false)
		return d, func() {}, nil
	}
	if o.sub == "review" {
		// review never records
		d.actx = audio.NewFakeContext(nil, false)
		d.opener = review.SystemOpener{}
		return d, func() {}, nil
	}

	d.actx, err = audio.NewContext()
	if err != nil {
		return d, nil, fmt.Errorf("connecting to audio: %w", err)
	}
	if o.setup {
		d.device, err = audio.SelectDevice(d.actx)
	} else {
		d.device, err = audio.FindDevice(d.actx, cfg.Device)
	}
	if err != nil {
		d.actx.Close()
		return d, nil, err
	}
	d.opener = review.SystemOpener{}
	return d, d.actx.Close, nil
}

// demoGenerator answers like the generation workflow without a network.
func demoGenerator(cfg *config.AppConfig) *generation.Fake {
	name := cfg.Patient.Name
	if name == "" {
		name = "Patient"
	}
	f := generation.NewFake(&generation.Response{
		StatusCode: 200,
		Transcript: "Doctor: How has the back pain been since the injection? Patient: Much better, I can walk for half an hour now.",
		LetterHTML: "<p>Dear " + name + ",</p>\n" +
			"<p>Thank you for attending clinic today. I was pleased to hear that your back pain has improved considerably since the facet joint injection.</p>\n" +
			"<p>We agreed to continue with physiotherapy and to review you in three months. Please contact the office sooner if the pain returns.</p>\n" +
			"<p>Yours sincerely,</p>\n<p>" + cfg.Doctor.Name + "</p>",
	}, nil)
	f.Delay = 2 * time.Second
	return f
}

func runInteractive(ctx context.Context, cfg *config.AppConfig, deps appDeps, o options) int {
	sink := &tuiSink{}
	a := newApp(cfg, deps, sink)
	defer a.close()

	p := tea.NewProgram(newTUIModel(ctx, a), tea.WithAltScreen(), tea.WithContext(ctx))
	sink.p = p

	go a.watchHandoffs(ctx)
	if o.hotkey && o.sub != "review" {
		startHotkey(ctx, a)
	}
	if o.sub == "review" {
		go func() {
			if err := a.resume(); err != nil {
				sink.ProcessFailed(err)
			}
		}()
	}

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func startHotkey(ctx context.Context, a *app) {
	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		log.Warnf("hotkey register: %v", err)
		return
	}
	d := hotkey.NewDictation(ctx, hk, holdThreshold)
	a.hotkeyReset = d.Reset
	go func() {
		defer hk.Unregister()
		for ev := range d.Events() {
			log.Infof("hotkey_%s mode=%d", ev, d.Mode())
			switch ev {
			case hotkey.Start:
				a.start(ctx)
			case hotkey.Stop:
				a.stop(ctx)
			}
		}
	}()
}

func runTest(ctx context.Context, cfg *config.AppConfig, deps appDeps, in io.Reader, out io.Writer) int {
	beep.Disable()
	sink := newScriptSink(out)
	a := newApp(cfg, deps, sink)
	defer a.close()

	watchCtx, stop := context.WithCancel(ctx)
	defer stop()
	go a.watchHandoffs(watchCtx)

	if err := runScript(ctx, a, sink, in); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func runServe(ctx context.Context, cfg *config.AppConfig) int {
	srv := docserver.New(letterheadFrom(cfg), docserver.WithLogo(cfg.DocServer.LogoPath))
	fmt.Printf("clinicletter templating server on %s\n", cfg.DocServer.Addr)
	if err := srv.Run(ctx, cfg.DocServer.Addr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
