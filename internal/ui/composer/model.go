package composer

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/labordesk/internal/compose"
	"github.com/nhle/labordesk/internal/model"
	"github.com/nhle/labordesk/internal/source"
	"github.com/nhle/labordesk/internal/theme"
)

// CreatedMsg is dispatched when the server accepted a new notification.
type CreatedMsg struct {
	Notification model.Notification
}

// CancelMsg is dispatched when the user cancels the form.
type CancelMsg struct{}

// submittedMsg carries the outcome of the network call back to the form.
type submittedMsg struct {
	n   *model.Notification
	err error
}

const (
	decoNone  = "none"
	decoIcon  = "icon"
	decoEmoji = "emoji"
)

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	message  string
	typ      string
	roles    []string
	deco     string
	icon     string
	emoji    string
	color    string
	file     string
	schedule string
}

// Model is the Bubble Tea model for the notification composer.
type Model struct {
	form     *huh.Form
	fb       *formBindings
	composer *compose.Composer
	src      source.NotificationSource
	roles    []string
	width    int
	height   int
}

// New creates a composer form that submits through src.
func New(src source.NotificationSource, opts compose.Options, roles []string, width, height int) Model {
	return Model{
		fb:       &formBindings{},
		composer: compose.NewComposer(opts),
		src:      src,
		roles:    roles,
		width:    width,
		height:   height,
	}
}

// Start clears the form and focuses the first field.
func (m *Model) Start() tea.Cmd {
	*m.fb = formBindings{typ: string(model.TypeGeneral), deco: decoNone}
	m.composer.Err = nil
	m.form = m.buildForm()
	return m.form.Init()
}

// Submitting reports whether a submission is in flight.
func (m Model) Submitting() bool {
	return m.composer.State == compose.Submitting
}

// Update handles messages for the composer.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(submittedMsg); ok {
		m.composer.Finish(msg.err)
		if msg.err != nil {
			// Back to editing with the user's input intact.
			m.form = m.buildForm()
			return m, m.form.Init()
		}
		n := *msg.n
		m.form = nil
		return m, func() tea.Msg { return CreatedMsg{Notification: n} }
	}

	if m.form == nil || m.Submitting() {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		return m, m.handleSubmit()
	case huh.StateAborted:
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// Draft converts the form values into a compose.Draft. The decoration
// selector decides which of icon or emoji survives.
func (m Model) Draft() compose.Draft {
	d := compose.NewDraft()
	d.Message = m.fb.message
	if m.fb.typ != "" {
		d.Type = model.NotificationType(m.fb.typ)
	}
	d.Roles = append([]string(nil), m.fb.roles...)
	switch m.fb.deco {
	case decoIcon:
		d.SelectIcon(m.fb.icon)
	case decoEmoji:
		d.SelectEmoji(m.fb.emoji)
	}
	d.Color = strings.TrimSpace(m.fb.color)
	d.FilePath = strings.TrimSpace(m.fb.file)
	d.ScheduledAt = strings.TrimSpace(m.fb.schedule)
	return d
}

func (m *Model) handleSubmit() tea.Cmd {
	m.composer.Draft = m.Draft()
	if err := m.composer.Begin(); err != nil {
		m.form = m.buildForm()
		return m.form.Init()
	}

	src, draft, opts := m.src, m.composer.Draft, m.composer.Options()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		n, err := compose.Submit(ctx, src, draft, opts)
		return submittedMsg{n: n, err: err}
	}
}

// View renders the composer.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render("New Notification")
	switch {
	case m.Submitting():
		content += "\n" + theme.HelpStyle.Render("Sending...")
	case m.form != nil:
		content += "\n" + m.form.View()
	}
	if err := m.composer.Err; err != nil {
		content += "\n" + theme.ToastErrorStyle.Render("✗ "+err.Error())
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	fb := m.fb
	roleOpts := make([]huh.Option[string], len(m.roles))
	for i, r := range m.roles {
		roleOpts[i] = huh.NewOption(r, r)
	}
	iconOpts := make([]huh.Option[string], len(compose.Icons))
	for i, ic := range compose.Icons {
		iconOpts[i] = huh.NewOption(ic, ic)
	}
	emojiOpts := make([]huh.Option[string], len(compose.Emojis))
	for i, e := range compose.Emojis {
		emojiOpts[i] = huh.NewOption(e, e)
	}

	core := []huh.Field{
		huh.NewText().
			Title("Message").
			Placeholder("What should people know?").
			Value(&m.fb.message).
			Validate(validateRequired("Message")),
		huh.NewSelect[string]().
			Title("Type").
			Options(
				huh.NewOption("General", string(model.TypeGeneral)),
				huh.NewOption("Permit", string(model.TypePermit)),
				huh.NewOption("Passport", string(model.TypePassport)),
			).
			Value(&m.fb.typ),
	}
	if len(roleOpts) > 0 {
		core = append(core, huh.NewMultiSelect[string]().
			Title("Target roles").
			Options(roleOpts...).
			Value(&m.fb.roles))
	}

	return huh.NewForm(
		huh.NewGroup(core...),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Decoration").
				Options(
					huh.NewOption("None", decoNone),
					huh.NewOption("Icon", decoIcon),
					huh.NewOption("Emoji", decoEmoji),
				).
				Value(&m.fb.deco),
		),
		huh.NewGroup(
			huh.NewSelect[string]().Title("Icon").Options(iconOpts...).Value(&m.fb.icon),
		).WithHideFunc(func() bool { return fb.deco != decoIcon }),
		huh.NewGroup(
			huh.NewSelect[string]().Title("Emoji").Options(emojiOpts...).Value(&m.fb.emoji),
		).WithHideFunc(func() bool { return fb.deco != decoEmoji }),
		huh.NewGroup(
			huh.NewInput().
				Title("Color").
				Placeholder("#e53935 (optional)").
				Value(&m.fb.color).
				Validate(validateOptionalColor),
			huh.NewInput().
				Title("Attachment").
				Placeholder("path to a file (optional)").
				Value(&m.fb.file).
				Validate(validateOptionalFile),
			huh.NewInput().
				Title("Schedule").
				Placeholder("YYYY-MM-DD HH:MM (optional)").
				Value(&m.fb.schedule),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateOptionalColor(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if !strings.HasPrefix(s, "#") || (len(s) != 4 && len(s) != 7) {
		return fmt.Errorf("use a hex color like #e53935")
	}
	return nil
}

func validateOptionalFile(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	info, err := os.Stat(s)
	if err != nil {
		return fmt.Errorf("cannot read %s", s)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", s)
	}
	return nil
}
