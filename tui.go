package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"parley/clipboard"
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
)

var voices = []string{"alloy", "verse", "sage", "coral", "ash"}

var (
	program   *tea.Program
	programMu sync.Mutex
)

// sendToUI forwards async results into the Bubble Tea loop. Safe to
// call before the program exists.
func sendToUI(msg tea.Msg) {
	programMu.Lock()
	p := program
	programMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// deps is everything the model drives. All fields are interfaces or
// session handles so the whole UI runs against fakes in tests.
type deps struct {
	id          identity.Identity
	bank        *question.Bank
	store       *prefs.Store
	gate        *entitlement.Gate
	usage       entitlement.Fetcher
	improver    coach.Improver
	transcriber stt.Transcriber
	capture     record.CaptureDevice
	questionSes *player.Session
	guidanceSes *player.Session
	bus         *statusbus.Bus
}

type model struct {
	deps deps

	width, height int

	snapshot entitlement.Snapshot
	paywall  bool

	recording    bool
	recStart     time.Time
	recDuration  time.Duration
	rec          *record.Session
	transcribing bool
	improving    bool

	typing   bool
	typed    string
	answer   string
	improved string
	copied   bool
	answers  int

	qState player.State
	gState player.State

	notice string

	debug     bool
	busEvents []statusbus.Event
	busCh     <-chan statusbus.Event
	busCancel func()
}

func newModel(d deps) model {
	m := model{deps: d, snapshot: entitlement.FailOpen()}
	if d.bus != nil {
		m.busEvents = d.bus.Recent()
		m.busCh, m.busCancel = d.bus.Subscribe()
	}
	return m
}

func newProgram(d deps) *tea.Program {
	p := tea.NewProgram(newModel(d), tea.WithAltScreen())
	programMu.Lock()
	program = p
	programMu.Unlock()
	return p
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.refreshUsageCmd()}
	if m.busCh != nil {
		cmds = append(cmds, watchBus(m.busCh))
	}
	if m.deps.store.Get(prefs.SourceQuestion).Autoplay {
		cmds = append(cmds, m.gatedPlay("play question", func() { m.playQuestion(true) }))
	}
	return tea.Batch(cmds...)
}

func watchBus(ch <-chan statusbus.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return statusEventMsg{Event: ev}
	}
}

func recordTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return recordTickMsg(t)
	})
}

func clearNoticeAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return clearNoticeMsg{}
	})
}

func (m *model) refreshUsageCmd() tea.Cmd {
	fetch := m.deps.usage
	return func() tea.Msg {
		return usageMsg{Snapshot: fetch.Fetch(context.Background())}
	}
}

// gatedPlay routes a synthesis-triggering play through the entitlement
// gate, so a blocked user never fires the billed TTS call. The fresh
// snapshot rides back as a usageMsg and opens the paywall when blocked.
func (m *model) gatedPlay(name string, play func()) tea.Cmd {
	gate := m.deps.gate
	return func() tea.Msg {
		res := gate.Guard(context.Background(), name, func(context.Context) error {
			play()
			return nil
		})
		return usageMsg{Snapshot: res.Snapshot}
	}
}

func (m *model) questionRequest() player.Request {
	p := m.deps.store.Get(prefs.SourceQuestion)
	return player.Request{Text: m.deps.bank.Current().Text, Voice: p.Voice, Speed: p.Speed}
}

func (m *model) guidanceRequest() player.Request {
	p := m.deps.store.Get(prefs.SourceGuidance)
	return player.Request{Text: m.improved, Voice: p.Voice, Speed: p.Speed}
}

func (m *model) playQuestion(force bool) {
	req := m.questionRequest()
	if force {
		m.deps.questionSes.ForceReload(context.Background(), req)
	} else {
		m.deps.questionSes.Toggle(context.Background(), req)
	}
}

func (m *model) cycleVoice(src prefs.Source) string {
	p := m.deps.store.Get(src)
	next := voices[0]
	for i, v := range voices {
		if v == p.Voice {
			next = voices[(i+1)%len(voices)]
			break
		}
	}
	p.Voice = next
	if err := m.deps.store.Set(src, p); err != nil {
		log.Warnf("saving preferences: %v", err)
	}
	return next
}

func (m *model) adjustSpeed(src prefs.Source, delta float64) float64 {
	p := m.deps.store.Get(src)
	p.Speed += delta
	if p.Speed < 0.5 {
		p.Speed = 0.5
	}
	if p.Speed > 2.0 {
		p.Speed = 2.0
	}
	if err := m.deps.store.Set(src, p); err != nil {
		log.Warnf("saving preferences: %v", err)
	}
	return p.Speed
}

func (m *model) startRecording() tea.Cmd {
	if m.deps.capture == nil {
		m.notice = "no microphone available"
		return clearNoticeAfter(3 * time.Second)
	}
	rec, err := record.NewSession()
	if err != nil {
		m.notice = fmt.Sprintf("recorder: %v", err)
		return clearNoticeAfter(3 * time.Second)
	}
	m.deps.capture.SetCallback(rec.Feed)
	if err := m.deps.capture.Start(); err != nil {
		m.deps.capture.ClearCallback()
		m.notice = fmt.Sprintf("microphone: %v", err)
		return clearNoticeAfter(3 * time.Second)
	}
	m.rec = rec
	m.recording = true
	m.recStart = time.Now()
	m.recDuration = 0
	m.answer, m.improved, m.copied = "", "", false
	return recordTick()
}

func (m *model) stopRecording() tea.Cmd {
	m.recording = false
	m.transcribing = true
	capture := m.deps.capture
	rec := m.rec
	m.rec = nil
	transcriber := m.deps.transcriber
	return func() tea.Msg {
		capture.ClearCallback()
		capture.Stop()
		flacData, err := rec.Close()
		if err != nil {
			return answerMsg{Err: err}
		}
		text, err := transcriber.Transcribe(context.Background(), flacData)
		if err != nil {
			return answerMsg{Err: err}
		}
		return answerMsg{Text: text}
	}
}

// improveCmd runs the metered action through the gate: blocked users
// never hit the endpoint, and the fresh snapshot rides back with the
// result.
func (m *model) improveCmd() tea.Cmd {
	gate := m.deps.gate
	improver := m.deps.improver
	q := m.deps.bank.Current().Text
	answer := m.answer
	return func() tea.Msg {
		var improved string
		res := gate.Guard(context.Background(), "improve", func(ctx context.Context) error {
			text, err := improver.Improve(ctx, q, answer)
			if err != nil {
				return err
			}
			improved = text
			return nil
		})
		return improvedMsg{Text: improved, Snapshot: res.Snapshot, Blocked: res.Blocked, Err: res.Err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case recordTickMsg:
		if !m.recording {
			return m, nil
		}
		m.recDuration = time.Since(m.recStart)
		return m, recordTick()

	case usageMsg:
		m.snapshot = msg.Snapshot
		if entitlement.Blocked(&m.snapshot) {
			m.paywall = true
		}
		return m, nil

	case answerMsg:
		m.transcribing = false
		if msg.Err != nil {
			m.notice = fmt.Sprintf("transcription failed: %v", msg.Err)
			return m, clearNoticeAfter(5 * time.Second)
		}
		if strings.TrimSpace(msg.Text) == "" {
			m.notice = "no speech detected"
			return m, clearNoticeAfter(3 * time.Second)
		}
		m.answer = msg.Text
		log.AnswerText(msg.Text)
		m.improving = true
		return m, m.improveCmd()

	case improvedMsg:
		m.improving = false
		m.snapshot = msg.Snapshot
		m.paywall = msg.Blocked
		if msg.Err != nil && !msg.Blocked {
			m.notice = fmt.Sprintf("improvement failed: %v", msg.Err)
			return m, clearNoticeAfter(5 * time.Second)
		}
		if msg.Text != "" {
			m.improved = msg.Text
			m.copied = false
			m.answers++
			if m.deps.store.Get(prefs.SourceGuidance).Autoplay {
				req := m.guidanceRequest()
				return m, m.gatedPlay("play guidance", func() {
					m.deps.guidanceSes.ForceReload(context.Background(), req)
				})
			}
		}
		return m, nil

	case playbackMsg:
		ev := msg.Event
		switch ev.Source {
		case string(prefs.SourceQuestion):
			m.qState = ev.State
		case string(prefs.SourceGuidance):
			m.gState = ev.State
		}
		if ev.Err != nil {
			if errors.Is(ev.Err, entitlement.ErrUpgradeRequired) {
				m.paywall = true
				return m, m.refreshUsageCmd()
			}
			m.notice = fmt.Sprintf("audio unavailable: %v", ev.Err)
			return m, clearNoticeAfter(5 * time.Second)
		}
		return m, nil

	case statusEventMsg:
		m.busEvents = append(m.busEvents, msg.Event)
		if len(m.busEvents) > 16 {
			m.busEvents = m.busEvents[len(m.busEvents)-16:]
		}
		return m, watchBus(m.busCh)

	case clearNoticeMsg:
		m.notice = ""
		return m, nil
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.typing {
		return m.handleTypingKey(msg)
	}
	switch msg.String() {
	case "ctrl+c":
		m.deps.questionSes.Dispose()
		m.deps.guidanceSes.Dispose()
		if m.busCancel != nil {
			m.busCancel()
		}
		return m, tea.Quit

	case "esc":
		m.paywall = false
		m.notice = ""
		return m, nil

	case "q":
		if m.qState == player.Idle {
			return m, m.gatedPlay("play question", func() { m.playQuestion(false) })
		}
		m.playQuestion(false)
		return m, nil

	case "g":
		if m.improved == "" {
			m.notice = "no improved answer yet"
			return m, clearNoticeAfter(3 * time.Second)
		}
		if m.gState == player.Idle {
			return m, m.gatedPlay("play guidance", func() {
				m.deps.guidanceSes.Toggle(context.Background(), m.guidanceRequest())
			})
		}
		m.deps.guidanceSes.Toggle(context.Background(), m.guidanceRequest())
		return m, nil

	case "r":
		if m.transcribing || m.improving {
			return m, nil
		}
		if m.recording {
			return m, m.stopRecording()
		}
		return m, m.startRecording()

	case "t":
		if m.recording || m.transcribing || m.improving {
			return m, nil
		}
		m.typing = true
		m.typed = ""
		m.answer, m.improved, m.copied = "", "", false
		return m, nil

	case "n", "s":
		if msg.String() == "s" {
			m.deps.bank.Shuffle()
		} else {
			m.deps.bank.Next()
		}
		m.answer, m.improved, m.copied = "", "", false
		m.deps.guidanceSes.Dispose()
		m.gState = player.Idle
		if m.deps.store.Get(prefs.SourceQuestion).Autoplay {
			return m, m.gatedPlay("play question", func() { m.playQuestion(true) })
		}
		m.deps.questionSes.Dispose()
		m.qState = player.Idle
		return m, nil

	case "v":
		voice := m.cycleVoice(prefs.SourceQuestion)
		if m.qState == player.Playing || m.qState == player.Loading {
			m.playQuestion(true)
		}
		m.notice = "question voice: " + voice
		return m, clearNoticeAfter(2 * time.Second)

	case "b":
		voice := m.cycleVoice(prefs.SourceGuidance)
		if m.improved != "" && (m.gState == player.Playing || m.gState == player.Loading) {
			m.deps.guidanceSes.ForceReload(context.Background(), m.guidanceRequest())
		}
		m.notice = "guidance voice: " + voice
		return m, clearNoticeAfter(2 * time.Second)

	case "+", "=":
		m.notice = fmt.Sprintf("question speed: %.2fx", m.adjustSpeed(prefs.SourceQuestion, 0.25))
		return m, clearNoticeAfter(2 * time.Second)

	case "-":
		m.notice = fmt.Sprintf("question speed: %.2fx", m.adjustSpeed(prefs.SourceQuestion, -0.25))
		return m, clearNoticeAfter(2 * time.Second)

	case ">":
		m.notice = fmt.Sprintf("guidance speed: %.2fx", m.adjustSpeed(prefs.SourceGuidance, 0.25))
		return m, clearNoticeAfter(2 * time.Second)

	case "<":
		m.notice = fmt.Sprintf("guidance speed: %.2fx", m.adjustSpeed(prefs.SourceGuidance, -0.25))
		return m, clearNoticeAfter(2 * time.Second)

	case "a":
		p := m.deps.store.Get(prefs.SourceQuestion)
		p.Autoplay = !p.Autoplay
		if err := m.deps.store.Set(prefs.SourceQuestion, p); err != nil {
			log.Warnf("saving preferences: %v", err)
		}
		m.notice = fmt.Sprintf("question autoplay: %v", p.Autoplay)
		return m, clearNoticeAfter(2 * time.Second)

	case "A":
		p := m.deps.store.Get(prefs.SourceGuidance)
		p.Autoplay = !p.Autoplay
		if err := m.deps.store.Set(prefs.SourceGuidance, p); err != nil {
			log.Warnf("saving preferences: %v", err)
		}
		m.notice = fmt.Sprintf("guidance autoplay: %v", p.Autoplay)
		return m, clearNoticeAfter(2 * time.Second)

	case "c":
		if m.improved == "" {
			return m, nil
		}
		if err := clipboard.Copy(m.improved); err != nil {
			m.notice = fmt.Sprintf("clipboard: %v", err)
			return m, clearNoticeAfter(3 * time.Second)
		}
		m.copied = true
		return m, nil

	case "u":
		return m, m.refreshUsageCmd()

	case "d":
		m.debug = !m.debug
		return m, nil
	}
	return m, nil
}

func (m model) handleTypingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.deps.questionSes.Dispose()
		m.deps.guidanceSes.Dispose()
		if m.busCancel != nil {
			m.busCancel()
		}
		return m, tea.Quit
	case tea.KeyEsc:
		m.typing = false
		m.typed = ""
		return m, nil
	case tea.KeyEnter:
		text := strings.TrimSpace(m.typed)
		m.typing = false
		m.typed = ""
		if text == "" {
			return m, nil
		}
		m.answer = text
		log.AnswerText(text)
		m.improving = true
		return m, m.improveCmd()
	case tea.KeyBackspace:
		if len(m.typed) > 0 {
			runes := []rune(m.typed)
			m.typed = string(runes[:len(runes)-1])
		}
		return m, nil
	case tea.KeySpace:
		m.typed += " "
		return m, nil
	case tea.KeyRunes:
		m.typed += string(msg.Runes)
		return m, nil
	}
	return m, nil
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	planStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	usageStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	questionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("229"))
	answerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	improvedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	audioStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	recStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	paywallStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(0, 2).
			Foreground(lipgloss.Color("231"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	debugStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

func stateIcon(s player.State) string {
	switch s {
	case player.Loading:
		return "…"
	case player.Playing:
		return "▶"
	case player.Ready:
		return "⏸"
	default:
		return "·"
	}
}

func (m model) audioLine(src prefs.Source, state player.State) string {
	p := m.deps.store.Get(src)
	auto := ""
	if p.Autoplay {
		auto = " auto"
	}
	return audioStyle.Render(fmt.Sprintf("%s %s  [%s %.2fx%s]", stateIcon(state), src, p.Voice, p.Speed, auto))
}

func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	wrapWidth := m.width - 4
	if wrapWidth < 20 {
		wrapWidth = 20
	}

	var b strings.Builder

	plan := "free"
	if m.deps.id.Pro() {
		plan = "pro"
	}
	header := titleStyle.Render("parley "+version) +
		"  " + planStyle.Render("["+plan+"]") +
		"  " + usageStyle.Render(entitlement.FormatRemaining(m.snapshot))
	b.WriteString(header + "\n\n")

	pos, total := m.deps.bank.Position()
	b.WriteString(usageStyle.Render(fmt.Sprintf("Question %d/%d", pos, total)) + "\n")
	for _, line := range wrapText(m.deps.bank.Current().Text, wrapWidth) {
		b.WriteString(questionStyle.Render(line) + "\n")
	}
	b.WriteString(m.audioLine(prefs.SourceQuestion, m.qState) + "\n\n")

	switch {
	case m.typing:
		b.WriteString(usageStyle.Render("Type your answer (enter to submit, esc to cancel)") + "\n")
		for _, line := range wrapText(m.typed+"▌", wrapWidth) {
			b.WriteString(answerStyle.Render(line) + "\n")
		}
		b.WriteString("\n")
	case m.recording:
		b.WriteString(recStyle.Render(fmt.Sprintf("● REC %.1fs", m.recDuration.Seconds())) + "\n\n")
	case m.transcribing:
		b.WriteString(noticeStyle.Render("transcribing...") + "\n\n")
	case m.improving:
		b.WriteString(noticeStyle.Render("improving answer...") + "\n\n")
	case m.answer != "":
		b.WriteString(usageStyle.Render("Your answer") + "\n")
		for _, line := range wrapText(m.answer, wrapWidth) {
			b.WriteString(answerStyle.Render(line) + "\n")
		}
		b.WriteString("\n")
	}

	if m.improved != "" {
		title := "Improved answer"
		if m.copied {
			title += "  [✓ copied]"
		}
		b.WriteString(usageStyle.Render(title) + "\n")
		for _, line := range wrapText(m.improved, wrapWidth) {
			b.WriteString(improvedStyle.Render(line) + "\n")
		}
		b.WriteString(m.audioLine(prefs.SourceGuidance, m.gState) + "\n\n")
	}

	if m.paywall {
		b.WriteString(paywallStyle.Render("Daily free limit reached.\nUpgrade to keep practicing today, or come back tomorrow.\n(esc to dismiss)") + "\n\n")
	}

	if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice) + "\n\n")
	}

	if m.debug {
		b.WriteString(debugStyle.Render("-- status --") + "\n")
		events := m.busEvents
		if len(events) > 8 {
			events = events[len(events)-8:]
		}
		for _, ev := range events {
			b.WriteString(debugStyle.Render(formatBusEvent(ev)) + "\n")
		}
		b.WriteString("\n")
	}

	help := "q question  r record  t type  g guidance  n next  s shuffle  v/b voice  +/- q speed  </> g speed  a/A autoplay  c copy  d debug  ctrl+c quit"
	b.WriteString(helpStyle.Render(help))

	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

func formatBusEvent(ev statusbus.Event) string {
	line := fmt.Sprintf("%s %-12s %s", ev.Time.Format("15:04:05"), ev.Source, ev.Detail)
	if ev.Status != 0 {
		line += fmt.Sprintf(" [%d]", ev.Status)
	}
	if ev.Elapsed > 0 {
		line += fmt.Sprintf(" %dms", ev.Elapsed.Milliseconds())
	}
	if ev.Err != "" {
		line += " err=" + ev.Err
	}
	return line
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	runes := []rune(text)
	var lines []string
	for len(runes) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if runes[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, string(runes[:splitAt]))
		runes = runes[splitAt:]
		for len(runes) > 0 && runes[0] == ' ' {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		lines = append(lines, string(runes))
	}
	return lines
}
