package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	defaultAnswerURL   = "https://medicine-ai.onrender.com/answer"
	defaultResultLimit = 10
	appTitle           = "Medicine AI Assistant"
	appSubtitle        = "Get info about medications and treatments"
	inputCharLimit     = 4000
	reviewBarWidth     = 20
	errorSnippetChars  = 240
)

// errorReplyText is the single user-facing failure message. Transport,
// protocol, and shape failures all collapse to it in the transcript; the
// internal failure kind only feeds the status line.
const errorReplyText = "Sorry, I encountered an error. Please try again."

type appConfig struct {
	answerURL     string
	resultLimit   int
	answerTimeout time.Duration
	altScreen     bool
}

// Wire contract with the answer service.

type answerRequest struct {
	Text  string `json:"text"`
	Limit int    `json:"limit"`
}

type rawMedicine struct {
	MedicineName    string `json:"medicine_name"`
	Composition     string `json:"composition"`
	Uses            string `json:"uses"`
	SideEffects     string `json:"sideeffects"`
	ImageURL        string `json:"image_url"`
	Manufacturer    string `json:"manufacturer"`
	ExcellentReview string `json:"excellent_review_percentage"`
	AverageReview   string `json:"average_review_percentage"`
	PoorReview      string `json:"poor_review_percentage"`
	Price           string `json:"price"`
	PackSizeLabel   string `json:"packsizelabel"`
	Type            string `json:"type"`
}

type answerResponse struct {
	GeminiAnswer *string       `json:"gemini_answer"`
	Data         []rawMedicine `json:"data"`
}

// medicineRecord is the normalized, immutable projection of one raw medicine
// object. All fields are plain strings; id is assigned at normalization time
// and is the disclosure key, so reordering the transcript can never misfile
// an expanded card.
type medicineRecord struct {
	id              string
	name            string
	composition     string
	uses            string
	sideEffects     string
	imageURL        string
	manufacturer    string
	excellentReview string
	averageReview   string
	poorReview      string
	price           string
	packSize        string
	category        string
}

func normalizeMedicine(raw rawMedicine) medicineRecord {
	return medicineRecord{
		id:              uuid.NewString(),
		name:            raw.MedicineName,
		composition:     raw.Composition,
		uses:            raw.Uses,
		sideEffects:     raw.SideEffects,
		imageURL:        raw.ImageURL,
		manufacturer:    raw.Manufacturer,
		excellentReview: raw.ExcellentReview,
		averageReview:   raw.AverageReview,
		poorReview:      raw.PoorReview,
		price:           raw.Price,
		packSize:        raw.PackSizeLabel,
		category:        raw.Type,
	}
}

// stripAnswerMarkup drops the literal emphasis markers the upstream model
// sprinkles into its answers and trims surrounding whitespace.
func stripAnswerMarkup(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "*", ""))
}

// reviewPercent parses a wire percentage string into a 0-100 integer.
// Unparseable values render as an empty bar rather than failing the card.
func reviewPercent(raw string) int {
	trimmed := strings.TrimSuffix(strings.TrimSpace(raw), "%")
	parsed, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0
	}
	return clampInt(parsed, 0, 100)
}

type failureKind int

const (
	failureTransport failureKind = iota
	failureProtocol
	failureShape
)

func (k failureKind) String() string {
	switch k {
	case failureTransport:
		return "transport"
	case failureProtocol:
		return "protocol"
	case failureShape:
		return "shape"
	default:
		return "unknown"
	}
}

// answerError tags a dispatch-boundary failure with its cause so tests can
// assert on the taxonomy while the transcript shows one fixed apology.
type answerError struct {
	kind failureKind
	err  error
}

func (e *answerError) Error() string {
	return fmt.Sprintf("%s failure: %v", e.kind, e.err)
}

func (e *answerError) Unwrap() error {
	return e.err
}

func classifyAnswerFailure(err error) (failureKind, bool) {
	var tagged *answerError
	if errors.As(err, &tagged) {
		return tagged.kind, true
	}
	return 0, false
}

type answerClient struct {
	endpoint string
	client   *http.Client
}

func newAnswerClient(endpoint string, timeout time.Duration) *answerClient {
	return &answerClient{
		endpoint: strings.TrimSpace(endpoint),
		client:   &http.Client{Timeout: timeout},
	}
}

// ask performs the single request/response cycle against the answer service.
// Exactly one attempt: no retry, no queuing. Top-level shape is validated
// before use; individual medicine objects normalize leniently.
func (c *answerClient) ask(text string, limit int) (string, []medicineRecord, error) {
	payload, err := json.Marshal(answerRequest{Text: text, Limit: limit})
	if err != nil {
		return "", nil, &answerError{kind: failureShape, err: err}
	}
	req, err := http.NewRequest(http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", nil, &answerError{kind: failureTransport, err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return "", nil, &answerError{kind: failureTransport, err: fmt.Errorf("answer request failed: %w", err)}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, &answerError{kind: failureTransport, err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, &answerError{
			kind: failureProtocol,
			err:  fmt.Errorf("answer service http %d: %s", resp.StatusCode, compactSingleLine(string(body), errorSnippetChars)),
		}
	}
	var parsed answerResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", nil, &answerError{kind: failureShape, err: errors.New("answer service returned non-json payload")}
	}
	if parsed.GeminiAnswer == nil {
		return "", nil, &answerError{kind: failureShape, err: errors.New("answer payload missing gemini_answer")}
	}
	records := make([]medicineRecord, 0, len(parsed.Data))
	for _, raw := range parsed.Data {
		records = append(records, normalizeMedicine(raw))
	}
	return stripAnswerMarkup(*parsed.GeminiAnswer), records, nil
}

type entryOrigin int

const (
	originUser entryOrigin = iota
	originBot
)

// transcriptEntry is one conversational turn. Entries are append-only and
// never mutated after creation; insertion order is display order.
type transcriptEntry struct {
	origin    entryOrigin
	text      string
	medicines []medicineRecord
}

// conversation owns the ordered transcript and the single-flight pending
// flag. pending stays true for the whole interval between a user turn and
// its bot turn; submissions arriving in that window are dropped upstream.
type conversation struct {
	entries []transcriptEntry
	pending bool
}

// appendUser appends a user turn. Blank input is a validation gate, not an
// error: the append is silently skipped and false is returned.
func (c *conversation) appendUser(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	c.entries = append(c.entries, transcriptEntry{origin: originUser, text: trimmed})
	return true
}

func (c *conversation) appendBot(text string, medicines []medicineRecord) {
	c.entries = append(c.entries, transcriptEntry{origin: originBot, text: text, medicines: medicines})
}

func (c *conversation) appendBotError() {
	c.appendBot(errorReplyText, nil)
}

func (c *conversation) setPending(pending bool) {
	c.pending = pending
}

func (c *conversation) counts() (userTurns, botTurns int) {
	for _, entry := range c.entries {
		if entry.origin == originUser {
			userTurns++
		} else {
			botTurns++
		}
	}
	return userTurns, botTurns
}

// recordIDs lists every medicine record identity currently in the
// transcript, in display order. Drives the card cursor.
func (c *conversation) recordIDs() []string {
	ids := make([]string, 0, 8)
	for _, entry := range c.entries {
		for _, record := range entry.medicines {
			ids = append(ids, record.id)
		}
	}
	return ids
}

// disclosureSet maps record identities to their expanded flag. Unseen
// identities read as collapsed; transcript appends never touch existing
// flags.
type disclosureSet map[string]bool

func (d disclosureSet) toggle(id string) {
	d[id] = !d[id]
}

func (d disclosureSet) expanded(id string) bool {
	return d[id]
}

type answerDoneMsg struct {
	answer    string
	medicines []medicineRecord
	err       error
}

type model struct {
	cfg    appConfig
	client *answerClient

	convo      conversation
	disclosure disclosureSet
	cardCursor int

	history   []string
	histIndex int

	statusLine  string
	quitConfirm bool

	width  int
	height int

	input      textinput.Model
	transcript viewport.Model
	spinner    spinner.Model

	theme uiTheme
}

type uiTheme struct {
	root         lipgloss.Style
	header       lipgloss.Style
	headerTitle  lipgloss.Style
	headerSub    lipgloss.Style
	panel        lipgloss.Style
	userBubble   lipgloss.Style
	botBubble    lipgloss.Style
	sectionTitle lipgloss.Style
	card         lipgloss.Style
	cardSelected lipgloss.Style
	cardTitle    lipgloss.Style
	cardLabel    lipgloss.Style
	cardTag      lipgloss.Style
	cardPrice    lipgloss.Style
	cardMuted    lipgloss.Style
	barExcellent lipgloss.Style
	barAverage   lipgloss.Style
	barPoor      lipgloss.Style
	barTrack     lipgloss.Style
	inputPanel   lipgloss.Style
	footer       lipgloss.Style
	status       lipgloss.Style
	errorStatus  lipgloss.Style
	helpText     lipgloss.Style
	promptFrame  lipgloss.Style
	promptPick   lipgloss.Style
}

func newTheme() uiTheme {
	bg := lipgloss.Color("#020617")
	panelBg := lipgloss.Color("#0f172a")
	bubbleBg := lipgloss.Color("#1e293b")
	border := lipgloss.Color("#334155")
	text := lipgloss.Color("#f1f5f9")
	muted := lipgloss.Color("#94a3b8")
	emerald := lipgloss.Color("#10b981")
	amber := lipgloss.Color("#f59e0b")
	red := lipgloss.Color("#ef4444")

	return uiTheme{
		root: lipgloss.NewStyle().
			Background(bg).
			Foreground(text).
			Padding(0, 1),
		header: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(0, 1),
		headerTitle: lipgloss.NewStyle().Foreground(text).Bold(true),
		headerSub:   lipgloss.NewStyle().Foreground(muted),
		panel: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(0, 1),
		userBubble: lipgloss.NewStyle().
			Background(bubbleBg).
			Foreground(text).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(0, 1),
		botBubble: lipgloss.NewStyle().
			Background(panelBg).
			Foreground(text).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(0, 1),
		sectionTitle: lipgloss.NewStyle().Foreground(muted).Bold(true),
		card: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(0, 1),
		cardSelected: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(emerald).
			Padding(0, 1),
		cardTitle:    lipgloss.NewStyle().Foreground(text).Bold(true),
		cardLabel:    lipgloss.NewStyle().Foreground(muted).Bold(true),
		cardTag:      lipgloss.NewStyle().Background(bubbleBg).Foreground(muted).Padding(0, 1),
		cardPrice:    lipgloss.NewStyle().Foreground(muted).Bold(true),
		cardMuted:    lipgloss.NewStyle().Foreground(muted),
		barExcellent: lipgloss.NewStyle().Foreground(emerald),
		barAverage:   lipgloss.NewStyle().Foreground(amber),
		barPoor:      lipgloss.NewStyle().Foreground(red),
		barTrack:     lipgloss.NewStyle().Foreground(border),
		inputPanel: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(0, 1),
		footer: lipgloss.NewStyle().
			Background(panelBg).
			Foreground(muted).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(0, 1),
		status:      lipgloss.NewStyle().Foreground(emerald).Bold(true),
		errorStatus: lipgloss.NewStyle().Foreground(red).Bold(true),
		helpText:    lipgloss.NewStyle().Foreground(muted),
		promptFrame: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(red).
			Padding(1, 2),
		promptPick: lipgloss.NewStyle().Foreground(emerald).Bold(true),
	}
}

func newModel(cfg appConfig) model {
	input := textinput.New()
	input.Prompt = "❯ "
	input.Placeholder = "Ask about medicines, conditions, or treatments..."
	input.CharLimit = inputCharLimit
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#94a3b8"))

	transcript := viewport.New(0, 0)
	transcript.MouseWheelEnabled = true
	transcript.MouseWheelDelta = 4

	return model{
		cfg:        cfg,
		client:     newAnswerClient(cfg.answerURL, cfg.answerTimeout),
		disclosure: disclosureSet{},
		cardCursor: -1,
		history:    []string{},
		statusLine: "ready",
		input:      input,
		transcript: transcript,
		spinner:    sp,
		theme:      newTheme(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink)
}

// askCmd issues the single network request for one submission. The returned
// answerDoneMsg is the only way pending clears, so every exit path (success,
// http error, transport error, parse error) funnels through one place.
func (m model) askCmd(query string) tea.Cmd {
	client := m.client
	limit := m.cfg.resultLimit
	return func() tea.Msg {
		answer, medicines, err := client.ask(query, limit)
		return answerDoneMsg{answer: answer, medicines: medicines, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case answerDoneMsg:
		m.convo.setPending(false)
		if msg.err != nil {
			m.convo.appendBotError()
			if kind, ok := classifyAnswerFailure(msg.err); ok {
				m.statusLine = fmt.Sprintf("answer failed (%s)", kind)
			} else {
				m.statusLine = "answer failed"
			}
		} else {
			m.convo.appendBot(msg.answer, msg.medicines)
			m.statusLine = fmt.Sprintf("answer received · %d medicine(s)", len(msg.medicines))
		}
		m.clampCardCursor()
		m.syncTranscript(true)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.syncTranscript(false)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
		if m.convo.pending {
			m.syncTranscript(false)
		}
	case tea.MouseMsg:
		if m.quitConfirm {
			break
		}
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		cmds = append(cmds, cmd)
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.quitConfirm {
			switch msg.String() {
			case "y", "Y", "enter":
				return m, tea.Quit
			case "n", "N", "esc":
				m.quitConfirm = false
				m.input.Focus()
				m.statusLine = "quit canceled"
			}
			return m, tea.Batch(cmds...)
		}
		switch msg.String() {
		case "esc":
			m.quitConfirm = true
			m.input.Blur()
			return m, tea.Batch(cmds...)
		case "enter":
			// Single-flight guard: a second submission while one is
			// outstanding is dropped entirely, not queued.
			if m.convo.pending {
				m.statusLine = "still waiting on the current answer"
				return m, nil
			}
			raw := strings.TrimSpace(m.input.Value())
			if raw == "" {
				return m, nil
			}
			m.input.SetValue("")
			m.history = append(m.history, raw)
			m.histIndex = len(m.history)
			m.convo.appendUser(raw)
			m.convo.setPending(true)
			m.statusLine = "asking..."
			m.syncTranscript(true)
			return m, tea.Batch(append(cmds, m.askCmd(raw))...)
		case "up":
			if m.histIndex > 0 {
				m.histIndex--
				m.input.SetValue(m.history[m.histIndex])
				m.input.CursorEnd()
			}
			return m, tea.Batch(cmds...)
		case "down":
			if m.histIndex < len(m.history)-1 {
				m.histIndex++
				m.input.SetValue(m.history[m.histIndex])
				m.input.CursorEnd()
			} else {
				m.histIndex = len(m.history)
				m.input.SetValue("")
			}
			return m, tea.Batch(cmds...)
		case "pgup", "ctrl+u":
			m.transcript.LineUp(8)
			return m, tea.Batch(cmds...)
		case "pgdown", "ctrl+d":
			m.transcript.LineDown(8)
			return m, tea.Batch(cmds...)
		case "home":
			m.transcript.GotoTop()
			return m, tea.Batch(cmds...)
		case "end":
			m.transcript.GotoBottom()
			return m, tea.Batch(cmds...)
		case "ctrl+n":
			m.moveCardCursor(1)
			return m, tea.Batch(cmds...)
		case "ctrl+p":
			m.moveCardCursor(-1)
			return m, tea.Batch(cmds...)
		case "ctrl+e":
			m.toggleSelectedCard()
			return m, tea.Batch(cmds...)
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *model) moveCardCursor(delta int) {
	ids := m.convo.recordIDs()
	if len(ids) == 0 {
		m.statusLine = "no medicine cards yet"
		return
	}
	if m.cardCursor < 0 {
		if delta >= 0 {
			m.cardCursor = 0
		} else {
			m.cardCursor = len(ids) - 1
		}
	} else {
		m.cardCursor = (m.cardCursor + delta + len(ids)) % len(ids)
	}
	m.statusLine = fmt.Sprintf("card %d of %d selected", m.cardCursor+1, len(ids))
	m.syncTranscript(false)
}

func (m *model) toggleSelectedCard() {
	ids := m.convo.recordIDs()
	if m.cardCursor < 0 || m.cardCursor >= len(ids) {
		m.statusLine = "no card selected · Ctrl+N picks one"
		return
	}
	id := ids[m.cardCursor]
	m.disclosure.toggle(id)
	m.statusLine = ternary(m.disclosure.expanded(id), "card expanded", "card collapsed")
	m.syncTranscript(false)
}

func (m *model) clampCardCursor() {
	ids := m.convo.recordIDs()
	if len(ids) == 0 {
		m.cardCursor = -1
		return
	}
	if m.cardCursor >= len(ids) {
		m.cardCursor = len(ids) - 1
	}
}

func (m *model) resize() {
	contentWidth := maxInt(40, m.width-4)
	contentHeight := maxInt(8, m.height-12)
	m.transcript.Width = maxInt(24, contentWidth-2)
	m.transcript.Height = maxInt(5, contentHeight-1)
	m.input.Width = maxInt(20, contentWidth-6)
}

// syncTranscript re-derives the viewport content from the current state.
// forceBottom pins to the newest entry after an append; otherwise the scroll
// position is preserved unless the view was already at the bottom.
func (m *model) syncTranscript(forceBottom bool) {
	prevYOffset := m.transcript.YOffset
	prevAtBottom := m.transcript.AtBottom()

	m.transcript.SetContent(m.renderTranscript())
	if forceBottom || prevAtBottom {
		m.transcript.GotoBottom()
	} else {
		m.transcript.SetYOffset(prevYOffset)
	}
}

// renderTranscript projects (transcript, disclosure, selection, pending)
// into the displayable text. Pure derivation: no state is mutated here.
func (m *model) renderTranscript() string {
	width := maxInt(24, m.transcript.Width)
	if len(m.convo.entries) == 0 && !m.convo.pending {
		return m.theme.helpText.Render("Ask about medicines, conditions, or treatments to get started.")
	}

	bubbleWidth := maxInt(20, width*4/5)
	blocks := make([]string, 0, len(m.convo.entries)+1)
	cardIndex := 0
	for _, entry := range m.convo.entries {
		switch entry.origin {
		case originUser:
			bubble := m.theme.userBubble.Render(wrapText(entry.text, bubbleWidth-4))
			blocks = append(blocks, lipgloss.PlaceHorizontal(width, lipgloss.Right, bubble))
		case originBot:
			var b strings.Builder
			b.WriteString(wrapText(entry.text, bubbleWidth-4))
			if len(entry.medicines) > 0 {
				b.WriteString("\n\n")
				b.WriteString(m.theme.sectionTitle.Render("Suggested Medicines"))
				for _, record := range entry.medicines {
					selected := cardIndex == m.cardCursor
					b.WriteString("\n")
					b.WriteString(m.renderMedicineCard(record, m.disclosure.expanded(record.id), selected, bubbleWidth-4))
					cardIndex++
				}
			}
			blocks = append(blocks, m.theme.botBubble.Render(b.String()))
		}
	}
	if m.convo.pending {
		// Transient typing indicator; not a transcript entry, discarded on
		// the next projection once pending clears.
		blocks = append(blocks, m.theme.botBubble.Render(m.spinner.View()+" thinking..."))
	}
	return strings.Join(blocks, "\n\n")
}

func (m *model) renderMedicineCard(record medicineRecord, expanded bool, selected bool, width int) string {
	inner := maxInt(18, width-4)
	marker := ternary(expanded, "▾", "▸")

	var b strings.Builder
	b.WriteString(m.theme.cardTitle.Render(marker + " " + record.name))
	if strings.TrimSpace(record.uses) != "" {
		b.WriteString("\n")
		b.WriteString(wrapText(record.uses, inner))
	}
	b.WriteString("\n")
	b.WriteString(m.theme.cardTag.Render(nullCoalesce(record.category, "n/a")))
	b.WriteString(m.theme.cardMuted.Render(" · "))
	b.WriteString(m.theme.cardPrice.Render("₹" + record.price))

	if expanded {
		if strings.TrimSpace(record.imageURL) != "" {
			b.WriteString("\n\n")
			b.WriteString(m.theme.cardLabel.Render("Image"))
			b.WriteString("\n")
			b.WriteString(truncate(record.imageURL, inner))
		}
		b.WriteString("\n\n")
		b.WriteString(m.theme.cardLabel.Render("Composition"))
		b.WriteString("\n")
		b.WriteString(wrapText(nullCoalesce(record.composition, "n/a"), inner))
		b.WriteString("\n\n")
		b.WriteString(m.theme.cardLabel.Render("Side Effects"))
		b.WriteString("\n")
		b.WriteString(wrapText(nullCoalesce(record.sideEffects, "n/a"), inner))
		b.WriteString("\n\n")
		b.WriteString(m.theme.cardLabel.Render("Manufacturer"))
		b.WriteString(" ")
		b.WriteString(nullCoalesce(record.manufacturer, "n/a"))
		b.WriteString("\n")
		b.WriteString(m.theme.cardLabel.Render("Pack Size"))
		b.WriteString("    ")
		b.WriteString(nullCoalesce(record.packSize, "n/a"))
		b.WriteString("\n\n")
		b.WriteString(m.theme.cardLabel.Render("Customer Reviews"))
		b.WriteString("\n")
		b.WriteString(m.renderReviewBar("Excellent", record.excellentReview, m.theme.barExcellent))
		b.WriteString("\n")
		b.WriteString(m.renderReviewBar("Average", record.averageReview, m.theme.barAverage))
		b.WriteString("\n")
		b.WriteString(m.renderReviewBar("Poor", record.poorReview, m.theme.barPoor))
	}

	frame := m.theme.card
	if selected {
		frame = m.theme.cardSelected
	}
	return frame.Width(width).Render(b.String())
}

// renderReviewBar draws one proportional bar from a raw 0-100 wire value.
// The three percentages are independent and are not expected to sum to 100.
func (m *model) renderReviewBar(label string, raw string, fill lipgloss.Style) string {
	value := reviewPercent(raw)
	filled := reviewBarWidth * value / 100
	bar := fill.Render(strings.Repeat("█", filled)) +
		m.theme.barTrack.Render(strings.Repeat("░", reviewBarWidth-filled))
	return fmt.Sprintf("%-9s %s %3d%%", label, bar, value)
}

func (m *model) renderHeader() string {
	contentWidth := maxInt(40, m.width-4)
	title := m.theme.headerTitle.Render(appTitle)
	sub := m.theme.headerSub.Render(appSubtitle)
	return m.theme.header.Width(contentWidth).Render(title + "\n" + sub)
}

func (m *model) renderContent() string {
	contentWidth := maxInt(40, m.width-4)
	contentHeight := maxInt(8, m.height-12)
	return m.theme.panel.Width(contentWidth).Height(contentHeight).Render(m.transcript.View())
}

func (m *model) renderInput() string {
	contentWidth := maxInt(40, m.width-4)
	inputView := m.input.View()
	if m.convo.pending {
		inputView = m.spinner.View() + " waiting for answer... " + inputView
	}
	return m.theme.inputPanel.Width(contentWidth).Render(inputView)
}

func (m *model) renderFooter() string {
	contentWidth := maxInt(40, m.width-4)
	statusStyle := m.theme.status
	if strings.Contains(strings.ToLower(m.statusLine), "failed") {
		statusStyle = m.theme.errorStatus
	}
	line := statusStyle.Render(compactSingleLine(m.statusLine, 180))
	hints := m.theme.helpText.Render("Keys: Enter send · Up/Down history · PgUp/PgDn scroll · Ctrl+N/Ctrl+P select card · Ctrl+E expand · Esc quit prompt · Ctrl+C quit")
	return m.theme.footer.Width(contentWidth).Render(line + "\n" + hints)
}

func (m *model) renderQuitPrompt() string {
	canvasWidth := maxInt(40, m.width-4)
	canvasHeight := maxInt(12, m.height-4)
	promptWidth := clampInt(canvasWidth/2, 34, 60)

	title := m.theme.errorStatus.Render("Leave the chat?")
	sub := m.theme.helpText.Render("The transcript is not persisted and will be lost.")
	pick := m.theme.promptPick.Render("[Y / Enter] Quit") + "    " + m.theme.helpText.Render("[N / Esc] Return")
	panel := m.theme.promptFrame.Width(promptWidth).Render(title + "\n" + sub + "\n\n" + pick)
	return lipgloss.Place(
		canvasWidth,
		canvasHeight,
		lipgloss.Center,
		lipgloss.Center,
		panel,
		lipgloss.WithWhitespaceBackground(lipgloss.Color("#020617")),
	)
}

func (m model) View() string {
	out := lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderHeader(),
		m.renderContent(),
		m.renderInput(),
		m.renderFooter(),
	)
	if m.quitConfirm {
		out = m.renderQuitPrompt()
	}
	return m.theme.root.Render(out)
}

func parseFlags() appConfig {
	// Optional .env next to the working directory; missing files are fine.
	_ = godotenv.Load()

	cfg := appConfig{}
	flag.StringVar(&cfg.answerURL, "answer-url", envOr("MEDICHAT_ANSWER_URL", defaultAnswerURL), "Answer service endpoint")
	flag.IntVar(&cfg.resultLimit, "result-limit", envOrInt("MEDICHAT_RESULT_LIMIT", defaultResultLimit), "Medicine records requested per question")
	timeoutSeconds := envOrInt("MEDICHAT_ANSWER_TIMEOUT", 0)
	flag.IntVar(&timeoutSeconds, "answer-timeout", timeoutSeconds, "Answer request timeout seconds (0 lets the transport decide)")
	flag.BoolVar(&cfg.altScreen, "alt-screen", envOrBool("MEDICHAT_ALT_SCREEN", true), "Use alternate screen buffer")
	flag.Parse()

	cfg.answerURL = strings.TrimSpace(cfg.answerURL)
	if cfg.answerURL == "" {
		cfg.answerURL = defaultAnswerURL
	}
	cfg.resultLimit = clampInt(cfg.resultLimit, 1, 50)
	cfg.answerTimeout = time.Duration(clampInt(timeoutSeconds, 0, 600)) * time.Second
	return cfg
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if value == "" {
		return fallback
	}
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func wrapText(text string, width int) string {
	if width <= 0 {
		return text
	}
	lines := strings.Split(text, "\n")
	wrapped := make([]string, 0, len(lines))
	for _, line := range lines {
		words := strings.Fields(line)
		if len(words) == 0 {
			wrapped = append(wrapped, "")
			continue
		}
		current := words[0]
		for _, word := range words[1:] {
			if len(current)+1+len(word) <= width {
				current += " " + word
				continue
			}
			wrapped = append(wrapped, current)
			current = word
		}
		wrapped = append(wrapped, current)
	}
	return strings.Join(wrapped, "\n")
}

func truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(text) <= limit {
		return text
	}
	if limit <= 3 {
		return text[:limit]
	}
	return text[:limit-3] + "..."
}

func compactSingleLine(text string, limit int) string {
	compact := strings.Join(strings.Fields(text), " ")
	return truncate(compact, limit)
}

func nullCoalesce(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func ternary[T any](condition bool, whenTrue T, whenFalse T) T {
	if condition {
		return whenTrue
	}
	return whenFalse
}

func main() {
	cfg := parseFlags()
	p := tea.NewProgram(newModel(cfg), tea.WithMouseCellMotion())
	if cfg.altScreen {
		p = tea.NewProgram(newModel(cfg), tea.WithAltScreen(), tea.WithMouseCellMotion())
	}
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "medichat fatal error: %v\n", err)
		os.Exit(1)
	}
}
