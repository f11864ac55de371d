// Package compose builds and submits new notifications from user input.
package compose

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nhle/labordesk/internal/model"
	"github.com/nhle/labordesk/internal/source"
)

// ErrEmptyMessage is returned when a draft has no message text.
var ErrEmptyMessage = errors.New("message is required")

// ErrNoTarget is returned when targets are required and none are set.
var ErrNoTarget = errors.New("select at least one target role")

// Icons lists the named icons a draft may select.
var Icons = []string{"info", "assignment", "description", "alert"}

// Emojis lists the quick-pick emoji offered by the composer.
var Emojis = []string{"⚠️", "📄", "🛂", "✅", "📅", "🔔"}

// scheduleLayouts are the accepted input formats for ScheduledAt, tried in
// order. Inputs without a zone are read as local time.
var scheduleLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Options controls validation and routing.
type Options struct {
	// RequireTarget rejects drafts without target roles.
	RequireTarget bool

	// LegacyMultipartRouting sends every draft with a schedule or any
	// decoration field through the multipart endpoint, even without a file.
	LegacyMultipartRouting bool
}

// Draft is the editable state of a notification being composed.
type Draft struct {
	Message     string
	Type        model.NotificationType
	Roles       []string
	Icon        string
	Emoji       string
	Color       string
	FilePath    string
	ScheduledAt string
}

// NewDraft returns an empty draft of type general.
func NewDraft() Draft {
	return Draft{Type: model.TypeGeneral}
}

// SelectIcon sets the icon and clears the emoji.
func (d *Draft) SelectIcon(name string) {
	d.Icon = name
	if name != "" {
		d.Emoji = ""
	}
}

// SelectEmoji sets the emoji and clears the icon.
func (d *Draft) SelectEmoji(glyph string) {
	d.Emoji = glyph
	if glyph != "" {
		d.Icon = ""
	}
}

// Decoration returns the draft's visual override.
func (d Draft) Decoration() (model.Decoration, error) {
	return model.NewDecoration(strings.TrimSpace(d.Icon), strings.TrimSpace(d.Emoji), strings.TrimSpace(d.Color))
}

// Validate checks the draft without touching the network.
func (d Draft) Validate(opts Options) error {
	if strings.TrimSpace(d.Message) == "" {
		return ErrEmptyMessage
	}
	if opts.RequireTarget && len(d.roles()) == 0 {
		return ErrNoTarget
	}
	if _, err := d.Decoration(); err != nil {
		return err
	}
	if _, err := d.schedule(); err != nil {
		return err
	}
	return nil
}

// Request converts a valid draft into a create request.
func (d Draft) Request() (model.CreateRequest, error) {
	deco, err := d.Decoration()
	if err != nil {
		return model.CreateRequest{}, err
	}
	sched, err := d.schedule()
	if err != nil {
		return model.CreateRequest{}, err
	}

	typ := d.Type
	if typ == "" {
		typ = model.TypeGeneral
	}
	req := model.CreateRequest{
		Message:      strings.TrimSpace(d.Message),
		Type:         typ,
		AllowedRoles: strings.Join(d.roles(), ","),
		ScheduledAt:  sched,
	}
	deco.Apply(&req)
	return req, nil
}

// NeedsMultipart reports whether the draft must use the multipart
// endpoint under opts.
func (d Draft) NeedsMultipart(opts Options) bool {
	if strings.TrimSpace(d.FilePath) != "" {
		return true
	}
	if !opts.LegacyMultipartRouting {
		return false
	}
	return strings.TrimSpace(d.ScheduledAt) != "" ||
		d.Icon != "" || d.Emoji != "" || d.Color != ""
}

func (d Draft) roles() []string {
	var out []string
	for _, r := range d.Roles {
		out = append(out, model.SplitRoles(r)...)
	}
	return out
}

func (d Draft) schedule() (*time.Time, error) {
	s := strings.TrimSpace(d.ScheduledAt)
	if s == "" {
		return nil, nil
	}
	for _, layout := range scheduleLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid schedule %q: use YYYY-MM-DD HH:MM", s)
}

// upload reads the attached file, if any.
func (d Draft) upload() (*model.Upload, error) {
	path := strings.TrimSpace(d.FilePath)
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading attachment: %w", err)
	}
	return &model.Upload{Name: filepath.Base(path), Content: data}, nil
}

// Submit validates the draft and sends it through the matching create
// endpoint.
func Submit(
	ctx context.Context,
	src source.NotificationSource,
	d Draft,
	opts Options,
) (*model.Notification, error) {
	if err := d.Validate(opts); err != nil {
		return nil, err
	}
	req, err := d.Request()
	if err != nil {
		return nil, err
	}

	if !d.NeedsMultipart(opts) {
		return src.Create(ctx, req)
	}
	file, err := d.upload()
	if err != nil {
		return nil, err
	}
	return src.CreateWithAttachment(ctx, req, file)
}

// State is the composer's submission state.
type State int

const (
	Editing State = iota
	Submitting
)

// Composer tracks a draft through Editing and Submitting. A successful
// submit resets the draft. A failed one returns to Editing with the error
// kept and the draft intact.
type Composer struct {
	Draft Draft
	State State
	Err   error

	opts Options
}

// NewComposer returns a composer with an empty draft.
func NewComposer(opts Options) *Composer {
	return &Composer{Draft: NewDraft(), opts: opts}
}

// Options returns the composer's validation and routing options.
func (c *Composer) Options() Options {
	return c.opts
}

// Begin moves to Submitting. It fails when a submission is already in
// flight or the draft is invalid.
func (c *Composer) Begin() error {
	if c.State == Submitting {
		return errors.New("already submitting")
	}
	if err := c.Draft.Validate(c.opts); err != nil {
		c.Err = err
		return err
	}
	c.State = Submitting
	c.Err = nil
	return nil
}

// Finish records the outcome of a submission started with Begin.
func (c *Composer) Finish(err error) {
	c.State = Editing
	c.Err = err
	if err == nil {
		c.Draft = NewDraft()
	}
}

// Submit runs Begin, the network call and Finish in one step.
func (c *Composer) Submit(ctx context.Context, src source.NotificationSource) (*model.Notification, error) {
	if err := c.Begin(); err != nil {
		return nil, err
	}
	n, err := Submit(ctx, src, c.Draft, c.opts)
	c.Finish(err)
	return n, err
}
