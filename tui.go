package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	bprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"clinicletter/audio"
	"clinicletter/clipboard"
	"clinicletter/letter"
	"clinicletter/orchestrator"
	"clinicletter/progress"
	"clinicletter/review"
)

// TUI message types
type recordingStartMsg struct{ Device string }
type recordingStopMsg struct{}
type recordingTickMsg struct{ Seconds int }
type recordingErrorMsg struct{ Text string }
type progressMsg struct{ Snapshot progress.Snapshot }
type processedMsg struct{ Outcome orchestrator.Outcome }
type processFailedMsg struct{ Err error }
type reviewOpenMsg struct{ Record letter.Record }
type reviewStatusMsg struct{ Status review.Status }
type navigatedMsg struct{}
type savedMsg struct {
	Record letter.Record
	Err    error
}
type actionMsg struct {
	Text string
	Err  error
}

type screen int

const (
	screenCapture screen = iota
	screenProcessing
	screenReview
)

type tuiModel struct {
	app *app
	ctx context.Context

	screen        screen
	width, height int

	recording  bool
	elapsed    int
	deviceLine string
	notice     string
	noticeErr  bool

	snapshot progress.Snapshot
	bar      bprogress.Model

	record  letter.Record
	letter  viewport.Model
	editor  textarea.Model
	editing bool
	busy    bool
	sent    bool
	status  string
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("231")).Background(lipgloss.Color("25")).Padding(0, 1)
	recStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	idleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	letterStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238")).Padding(0, 1)
)

func newTUIModel(ctx context.Context, a *app) tuiModel {
	ed := textarea.New()
	ed.ShowLineNumbers = false
	ed.CharLimit = 0
	ed.MaxHeight = 0
	ed.Placeholder = "Letter text, one paragraph per line"

	m := tuiModel{
		app:    a,
		ctx:    ctx,
		bar:    bprogress.New(bprogress.WithDefaultGradient()),
		letter: viewport.New(80, 20),
		editor: ed,
	}
	if a != nil {
		m.deviceLine = deviceLineText(a.device)
	}
	return m
}

func deviceLineText(dev *audio.DeviceInfo) string {
	if dev == nil {
		return "mic: system default"
	}
	if audio.IsBluetooth(dev.Name) {
		return "mic: " + dev.Name + " (BT, reduced quality)"
	}
	return "mic: " + dev.Name
}

func (m tuiModel) Init() tea.Cmd {
	return nil
}

func (m *tuiModel) layout() {
	w := max(m.width-4, 20)
	h := max(m.height-9, 5)
	m.letter.Width = w
	m.letter.Height = h
	m.editor.SetWidth(w)
	m.editor.SetHeight(h)
	m.bar.Width = min(w, 60)
	m.refreshLetter()
}

func (m *tuiModel) refreshLetter() {
	text := m.record.PlainText()
	m.letter.SetContent(lipgloss.NewStyle().Width(m.letter.Width).Render(text))
}

func (m *tuiModel) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m.handleKey(msg)

	case recordingStartMsg:
		m.recording = true
		m.elapsed = 0
		m.deviceLine = "mic: " + msg.Device
		m.setNotice("", false)

	case recordingTickMsg:
		m.elapsed = msg.Seconds

	case recordingStopMsg:
		m.recording = false
		m.screen = screenProcessing
		m.snapshot = progress.Snapshot{}

	case recordingErrorMsg:
		m.recording = false
		m.setNotice(msg.Text, true)

	case progressMsg:
		m.snapshot = msg.Snapshot

	case processedMsg:
		m.setNotice(describeOutcome(msg.Outcome), msg.Outcome.Kind == orchestrator.Fallback)

	case processFailedMsg:
		m.screen = screenCapture
		if errors.Is(msg.Err, orchestrator.ErrNoAudio) {
			m.setNotice("No audio recorded. Please try again.", true)
		} else {
			m.setNotice(msg.Err.Error(), true)
		}

	case reviewOpenMsg:
		m.screen = screenReview
		m.record = msg.Record
		m.editing = false
		m.busy = false
		m.sent = msg.Record.Sent
		m.status = ""
		m.letter.GotoTop()
		m.refreshLetter()

	case reviewStatusMsg:
		m.status = msg.Status.Message
		switch msg.Status.State {
		case review.Previewing, review.Sending:
			m.busy = true
		case review.Sent:
			m.busy = false
			m.sent = true
		default:
			m.busy = false
		}
		if msg.Status.Err != nil {
			m.setNotice(msg.Status.Message, true)
		}

	case savedMsg:
		if msg.Err != nil {
			m.setNotice("Save failed: "+msg.Err.Error(), true)
			return m, nil
		}
		m.editing = false
		m.editor.Blur()
		m.record = msg.Record
		m.refreshLetter()
		m.setNotice("Letter saved", false)

	case actionMsg:
		m.busy = false
		if msg.Err != nil {
			m.setNotice(msg.Err.Error(), true)
		} else if msg.Text != "" {
			m.setNotice(msg.Text, false)
		}

	case navigatedMsg:
		m.screen = screenCapture
		m.record = letter.Record{}
		m.sent = false
		m.status = ""
		m.setNotice("Letter sent. Ready for the next consultation.", false)
	}

	var cmd tea.Cmd
	if m.screen == screenReview && !m.editing {
		m.letter, cmd = m.letter.Update(msg)
	}
	return m, cmd
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.screen {
	case screenCapture:
		switch msg.String() {
		case " ", "r":
			return m, m.do(func() (string, error) { return "", m.app.toggle(m.ctx) })
		case "q":
			return m, tea.Quit
		}
		return m, nil

	case screenReview:
		if m.editing {
			return m.handleEditorKey(msg)
		}
		if m.busy || m.sent {
			if msg.String() == "q" {
				return m, tea.Quit
			}
			var cmd tea.Cmd
			m.letter, cmd = m.letter.Update(msg)
			return m, cmd
		}
		switch msg.String() {
		case "e":
			w, err := m.app.review()
			if err != nil {
				m.setNotice(err.Error(), true)
				return m, nil
			}
			text, err := w.Edit()
			if err != nil {
				m.setNotice(err.Error(), true)
				return m, nil
			}
			m.editing = true
			m.editor.SetValue(text)
			return m, m.editor.Focus()
		case "p":
			m.busy = true
			return m, m.do(func() (string, error) {
				w, err := m.app.review()
				if err != nil {
					return "", err
				}
				path, err := w.Preview(m.ctx)
				if err != nil {
					return "", err
				}
				return "Preview: " + path, nil
			})
		case "s":
			m.busy = true
			return m, m.do(func() (string, error) { return "", m.app.send(m.ctx) })
		case "c":
			return m, m.do(func() (string, error) {
				if err := clipboard.CopyLetter(m.record); err != nil {
					return "", err
				}
				return "Letter copied to clipboard", nil
			})
		case "t":
			return m, m.do(func() (string, error) {
				if err := clipboard.CopyTranscript(m.record); err != nil {
					return "", err
				}
				return "Transcript copied to clipboard", nil
			})
		case "n":
			m.screen = screenCapture
			m.setNotice("", false)
			return m, nil
		case "q":
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.letter, cmd = m.letter.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m tuiModel) handleEditorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	w, err := m.app.review()
	if err != nil {
		m.editing = false
		m.setNotice(err.Error(), true)
		return m, nil
	}
	switch msg.String() {
	case "ctrl+s":
		return m, func() tea.Msg {
			rec, err := w.Save()
			return savedMsg{Record: rec, Err: err}
		}
	case "tab":
		return m, func() tea.Msg {
			if err := w.FocusLost(); err != nil {
				return savedMsg{Err: err}
			}
			rec, err := w.Record()
			return savedMsg{Record: rec, Err: err}
		}
	case "esc":
		text, err := w.Cancel()
		if err != nil {
			m.setNotice(err.Error(), true)
			return m, nil
		}
		m.editor.SetValue(text)
		m.setNotice("Changes discarded", false)
		return m, nil
	}
	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	if err := w.SetText(m.editor.Value()); err != nil {
		m.setNotice(err.Error(), true)
	}
	return m, cmd
}

func (m tuiModel) do(fn func() (string, error)) tea.Cmd {
	return func() tea.Msg {
		text, err := fn()
		return actionMsg{Text: text, Err: err}
	}
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var b strings.Builder
	title := "ClinicLetter"
	if m.record.Patient.Name != "" {
		title += " · " + m.record.Patient.Name
	}
	b.WriteString(titleStyle.Render(title) + "\n\n")

	var help []string
	switch m.screen {
	case screenCapture:
		if m.recording {
			b.WriteString(recStyle.Render(fmt.Sprintf("● REC %d:%02d", m.elapsed/60, m.elapsed%60)) + "\n")
			help = []string{"space", "stop and generate"}
		} else {
			b.WriteString(idleStyle.Render("○ Ready to dictate") + "\n")
			help = []string{"space", "record", "q", "quit"}
		}
		b.WriteString(dimStyle.Render(m.deviceLine) + "\n")

	case screenProcessing:
		label := m.snapshot.Label
		if label == "" {
			label = progress.DefaultStages[0].Label
		}
		b.WriteString(label + "\n\n")
		b.WriteString(m.bar.ViewAs(m.snapshot.Progress/100) + "\n")

	case screenReview:
		if m.editing {
			b.WriteString(m.editor.View() + "\n")
			help = []string{"ctrl+s", "save", "esc", "discard changes", "tab", "save and leave"}
		} else {
			b.WriteString(letterStyle.Render(m.letter.View()) + "\n")
			switch {
			case m.sent:
				b.WriteString(okStyle.Render("✓ Sent") + "\n")
			case m.busy:
				help = nil
			default:
				help = []string{"e", "edit", "p", "preview", "s", "send", "c", "copy letter", "t", "copy transcript", "n", "new recording"}
			}
		}
		if m.status != "" && !m.editing {
			b.WriteString(dimStyle.Render(m.status) + "\n")
		}
	}

	if m.notice != "" {
		style := okStyle
		if m.noticeErr {
			style = errStyle
		}
		b.WriteString("\n" + style.Render(m.notice) + "\n")
	}
	if len(help) > 0 {
		b.WriteString("\n" + renderHelp(help) + "\n")
	}
	b.WriteString(helpStyle.Render("clinicletter "+version) + "\n")
	return b.String()
}

// renderHelp formats key/description pairs.
func renderHelp(pairs []string) string {
	var parts []string
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, keyStyle.Render(pairs[i])+helpStyle.Render(" "+pairs[i+1]))
	}
	return strings.Join(parts, helpStyle.Render(" · "))
}

// tuiSink forwards pipeline events into the running program.
type tuiSink struct {
	p *tea.Program
}

func (s *tuiSink) send(msg tea.Msg) {
	if s.p != nil {
		s.p.Send(msg)
	}
}

func (s *tuiSink) RecordingStart(device string)     { s.send(recordingStartMsg{Device: device}) }
func (s *tuiSink) RecordingStop()                   { s.send(recordingStopMsg{}) }
func (s *tuiSink) RecordingTick(seconds int)        { s.send(recordingTickMsg{Seconds: seconds}) }
func (s *tuiSink) RecordingError(msg string)        { s.send(recordingErrorMsg{Text: msg}) }
func (s *tuiSink) Progress(snap progress.Snapshot)  { s.send(progressMsg{Snapshot: snap}) }
func (s *tuiSink) Processed(o orchestrator.Outcome) { s.send(processedMsg{Outcome: o}) }
func (s *tuiSink) ProcessFailed(err error)          { s.send(processFailedMsg{Err: err}) }
func (s *tuiSink) ReviewOpen(rec letter.Record)     { s.send(reviewOpenMsg{Record: rec}) }
func (s *tuiSink) ReviewStatus(st review.Status)    { s.send(reviewStatusMsg{Status: st}) }
func (s *tuiSink) Navigated()                       { s.send(navigatedMsg{}) }
