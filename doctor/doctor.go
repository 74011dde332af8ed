// Package doctor runs the interactive system diagnostics behind
// "clinicletter doctor".
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"clinicletter/audio"
	"clinicletter/capture"
	"clinicletter/clipboard"
	"clinicletter/config"
	"clinicletter/delivery"
	"clinicletter/generation"
	"clinicletter/hotkey"
	"clinicletter/render"
)

type Check struct {
	Name string
	// Run returns a short pass message or the failure.
	Run func(ctx context.Context) (string, error)
}

// Run executes checks in order and returns an exit code (0=all pass, 1=any fail).
func Run(ctx context.Context, w io.Writer, checks []Check) int {
	fmt.Fprintln(w, "clinicletter doctor - system diagnostics")
	fmt.Fprintln(w, "========================================")

	failed := 0
	for i, c := range checks {
		fmt.Fprintf(w, "\n[%d/%d] %s\n", i+1, len(checks), c.Name)
		if err := ctx.Err(); err != nil {
			fmt.Fprintf(w, "  SKIP: %v\n", err)
			failed++
			continue
		}
		msg, err := c.Run(ctx)
		if err != nil {
			fmt.Fprintf(w, "  FAIL: %v\n", err)
			failed++
			continue
		}
		fmt.Fprintf(w, "  PASS: %s\n", msg)
	}

	fmt.Fprintln(w)
	if failed > 0 {
		fmt.Fprintf(w, "%d of %d checks failed. See details above.\n", failed, len(checks))
		return 1
	}
	fmt.Fprintln(w, "All checks passed!")
	return 0
}

// Standard is the check list for a configured installation. Checks that
// need a person at the keyboard or microphone run only when interactive.
func Standard(cfg *config.AppConfig, interactive bool) []Check {
	checks := []Check{
		ProbeCheck("Generation webhook", generation.NewWebhook(cfg.GenerationURL, 10*time.Second)),
		ProbeCheck("Delivery webhook", delivery.NewWebhook(cfg.DeliveryURL, 10*time.Second)),
		RenderCheck(render.New(render.DefaultLetterhead)),
		ClipboardCheck(),
	}
	if interactive {
		checks = append(checks,
			HotkeyCheck(hotkey.New(), 10*time.Second),
			MicrophoneCheck(audio.NewContext, cfg.Device, 3*time.Second),
		)
	}
	return checks
}

type Prober interface {
	URL() string
	Probe(ctx context.Context) error
}

func ProbeCheck(name string, p Prober) Check {
	return Check{Name: name, Run: func(ctx context.Context) (string, error) {
		start := time.Now()
		if err := p.Probe(ctx); err != nil {
			return "", fmt.Errorf("%s unreachable: %w", p.URL(), err)
		}
		return fmt.Sprintf("%s answered in %dms", p.URL(), time.Since(start).Milliseconds()), nil
	}}
}

const sampleLetter = `<p>Dear Patient,</p>
<p>This is a diagnostics letter produced by <b>clinicletter doctor</b>.</p>
<ul><li>Rendering works</li><li>The artifact fits the preview budget</li></ul>`

func RenderCheck(r *render.Renderer) Check {
	return Check{Name: "Document renderer", Run: func(ctx context.Context) (string, error) {
		art, err := r.Render(ctx, render.Input{
			LetterID: "doctor",
			Markup:   sampleLetter,
			To:       render.Recipient{Name: "Test Patient"},
			Purpose:  "doctor",
		}, render.PreviewBudget)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("rendered %s (%.1f KB)", art.Filename, float64(art.Size())/1024), nil
	}}
}

func ClipboardCheck() Check {
	return Check{Name: "Clipboard", Run: func(ctx context.Context) (string, error) {
		if clipboard.Unsupported() {
			return "", errors.New("no clipboard utility found (install xclip, xsel or wl-clipboard)")
		}
		want := fmt.Sprintf("clinicletter-doctor-%d", time.Now().UnixNano())
		if err := clipboard.Copy(want); err != nil {
			return "", fmt.Errorf("copy: %w", err)
		}
		got, err := clipboard.Read()
		if err != nil {
			return "", fmt.Errorf("read back: %w", err)
		}
		if got != want {
			return "", fmt.Errorf("read back %q, want %q", got, want)
		}
		return "copy and read back verified", nil
	}}
}

func HotkeyCheck(hk hotkey.Hotkey, timeout time.Duration) Check {
	return Check{Name: "Hotkey detection", Run: func(ctx context.Context) (string, error) {
		if err := hk.Register(); err != nil {
			return "", fmt.Errorf("could not register hotkey: %w", err)
		}
		defer hk.Unregister()
		defer resetTerminal()

		fmt.Printf("  Press %s...\n", hotkey.Combo)
		select {
		case <-hk.Keydown():
		case <-time.After(timeout):
			return "", errors.New("timeout waiting for hotkey")
		case <-ctx.Done():
			return "", ctx.Err()
		}
		select {
		case <-hk.Keyup():
		case <-time.After(5 * time.Second):
		case <-ctx.Done():
		}
		return "hotkey detected", nil
	}}
}

// MicrophoneCheck records for d on the named device and reports what the
// capture session produced.
func MicrophoneCheck(open func() (audio.Context, error), device string, d time.Duration) Check {
	return Check{Name: "Microphone", Run: func(ctx context.Context) (string, error) {
		actx, err := open()
		if err != nil {
			return "", fmt.Errorf("cannot connect to audio: %w", err)
		}
		defer actx.Close()

		dev, err := audio.FindDevice(actx, device)
		if err != nil {
			return "", err
		}
		sess := capture.NewSession(actx, capture.WithDevice(dev))
		if err := sess.Start(ctx); err != nil {
			return "", err
		}
		fmt.Printf("  Recording for %s, say something...\n", d)
		select {
		case <-time.After(d):
		case <-ctx.Done():
			sess.Abort()
			return "", ctx.Err()
		}
		a, _ := sess.Stop()
		if a.Empty() {
			return "", errors.New("no audio captured")
		}
		return fmt.Sprintf("%.1fs recorded from %s, %.1f KB %s", a.Duration().Seconds(), a.Device,
			float64(len(a.Data))/1024, a.Format), nil
	}}
}
