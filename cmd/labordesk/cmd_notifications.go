package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/nhle/labordesk/internal/app"
	"github.com/nhle/labordesk/internal/compose"
	"github.com/nhle/labordesk/internal/feed"
	"github.com/nhle/labordesk/internal/model"
	"github.com/nhle/labordesk/internal/source"
	"github.com/nhle/labordesk/internal/theme"
	"github.com/nhle/labordesk/internal/ui/feedlist"
)

// requestTimeout bounds a single CLI request.
const requestTimeout = 30 * time.Second

var (
	listArchived bool
	listWindow   string
	listFrom     string
	listTo       string
	listRole     string

	groupedDays int

	sendDraft    = compose.NewDraft()
	sendType     string
	sendRoles    string
	sendLegacy   bool
	sendRequired bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the notification list",
	Example: `  labordesk list --window today
  labordesk list --archived --role hr
  labordesk list --window custom --from 2026-03-01T00:00:00 --to 2026-03-08T00:00:00`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var groupedCmd = &cobra.Command{
	Use:   "grouped",
	Short: "Print notifications grouped by type",
	Args:  cobra.NoArgs,
	RunE:  runGrouped,
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Create a notification",
	Example: `  labordesk send --message "Permit for Ana expires soon" --type permit --roles hr --emoji ⚠️
  labordesk send --message "Signed contract" --file contract.pdf`,
	Args: cobra.NoArgs,
	RunE: runSend,
}

var archiveCmd = &cobra.Command{
	Use:   "archive ID",
	Short: "Archive a notification",
	Args:  cobra.ExactArgs(1),
	RunE:  runMutation(feedlist.ActionArchive),
}

var deleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a notification",
	Args:  cobra.ExactArgs(1),
	RunE:  runMutation(feedlist.ActionDelete),
}

var actionCmd = &cobra.Command{
	Use:       "action ID confirmed|rejected",
	Short:     "Confirm or reject an action-required notification",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"confirmed", "rejected"},
	RunE:      runAction,
}

func init() {
	listCmd.Flags().BoolVar(&listArchived, "archived", false, "show archived notifications")
	listCmd.Flags().StringVar(&listWindow, "window", "all", "date window: today, week, month, all or custom")
	listCmd.Flags().StringVar(&listFrom, "from", "", "custom window start (2006-01-02T15:04:05)")
	listCmd.Flags().StringVar(&listTo, "to", "", "custom window end, exclusive")
	listCmd.Flags().StringVar(&listRole, "role", "", "viewer role (defaults to backend.role)")

	groupedCmd.Flags().IntVar(&groupedDays, "days", 0, "days to summarise (defaults to feed.grouped_days)")

	f := sendCmd.Flags()
	f.StringVarP(&sendDraft.Message, "message", "m", "", "notification text")
	f.StringVar(&sendType, "type", string(model.TypeGeneral), "notification type")
	f.StringVar(&sendRoles, "roles", "", "comma-separated target roles")
	f.StringVar(&sendDraft.Icon, "icon", "", "icon name: "+strings.Join(compose.Icons, ", "))
	f.StringVar(&sendDraft.Emoji, "emoji", "", "emoji glyph, replaces the icon")
	f.StringVar(&sendDraft.Color, "color", "", "accent color, e.g. #ff9900")
	f.StringVar(&sendDraft.FilePath, "file", "", "file to attach")
	f.StringVar(&sendDraft.ScheduledAt, "schedule", "", "deliver at (2006-01-02T15:04)")
	f.BoolVar(&sendLegacy, "legacy-multipart", false, "route decorated drafts through the attachment endpoint")
	f.BoolVar(&sendRequired, "require-target", false, "fail when no target role is given")
	sendCmd.MarkFlagsMutuallyExclusive("icon", "emoji")
	_ = sendCmd.MarkFlagRequired("message")
}

// newSource builds the backend adapter from the loaded config.
func newSource() (source.NotificationSource, error) {
	opts, err := app.NewSession(cfg, logger)
	if err != nil {
		return nil, err
	}
	return opts.Source, nil
}

func runList(cmd *cobra.Command, args []string) error {
	kind, err := feed.ParseWindowKind(listWindow)
	if err != nil {
		return err
	}
	role := listRole
	if role == "" {
		role = cfg.Backend.Role
	}

	filter, err := feed.Window(kind, time.Now(), listFrom, listTo)
	if err != nil {
		return err
	}
	filter.UserRole = role
	if listArchived {
		archived := true
		filter.Archived = &archived
	}

	src, err := newSource()
	if err != nil {
		return err
	}
	s := feed.New(src, role, logger)

	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()
	items, err := s.Refresh(ctx, filter)
	if err != nil {
		return err
	}

	if len(items) == 0 {
		fmt.Fprintln(os.Stdout, theme.DimmedStyle.Render("No notifications."))
		return nil
	}
	fmt.Fprintln(os.Stdout, renderTable(items))
	return nil
}

// renderTable lays out notifications newest first.
func renderTable(items []model.Notification) string {
	rows := make([][]string, len(items))
	for i, n := range items {
		glyph := feedlist.ResolveIcon(n)
		status := ""
		switch {
		case n.NeedsAction():
			status = "action: " + n.ActionRequired
		case n.ActionStatus != "":
			status = string(n.ActionStatus)
		}
		if n.Attachment != "" {
			status = strings.TrimSpace(status + " 📎")
		}
		rows[i] = []string{
			strconv.FormatInt(n.ID, 10),
			glyph.Symbol,
			string(n.Type),
			n.Message,
			n.CreatedAt.Local().Format("2006-01-02 15:04"),
			status,
		}
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
		Headers("ID", "", "TYPE", "MESSAGE", "CREATED", "STATUS").
		Rows(rows...).
		Render()
}

func runGrouped(cmd *cobra.Command, args []string) error {
	days := groupedDays
	if days <= 0 {
		days = cfg.Feed.GroupedDays
	}

	src, err := newSource()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()
	groups, err := feed.New(src, cfg.Backend.Role, logger).LoadGrouped(ctx, days)
	if err != nil {
		return err
	}

	if len(groups) == 0 {
		fmt.Fprintf(os.Stdout, "No notifications in the last %d days.\n", days)
		return nil
	}
	for _, g := range groups {
		fmt.Fprintf(os.Stdout, "%s %s\n",
			theme.TypeLabelStyle(string(g.Type)).Render(g.Key()),
			theme.DimmedStyle.Render(fmt.Sprintf("(%d, last %s)", g.Count, g.LastCreated.Local().Format("2006-01-02 15:04"))),
		)
		for _, msg := range g.Messages {
			fmt.Fprintf(os.Stdout, "  - %s\n", msg)
		}
	}
	return nil
}

func runSend(cmd *cobra.Command, args []string) error {
	d := sendDraft
	d.Type = model.NotificationType(sendType)
	d.Roles = model.SplitRoles(sendRoles)

	opts := compose.Options{
		RequireTarget:          cfg.Feed.RequireTarget || sendRequired,
		LegacyMultipartRouting: cfg.Feed.LegacyMultipartRouting || sendLegacy,
	}

	src, err := newSource()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()
	n, err := compose.Submit(ctx, src, d, opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Created notification %d\n", n.ID)
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid notification id %q", s)
	}
	return id, nil
}

// runMutation returns a RunE that applies action to the id argument.
func runMutation(action feedlist.Action) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return mutate(action, id)
	}
}

func runAction(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	switch model.ActionStatus(args[1]) {
	case model.ActionConfirmed:
		return mutate(feedlist.ActionConfirm, id)
	case model.ActionRejected:
		return mutate(feedlist.ActionReject, id)
	}
	return source.ErrInvalidActionStatus
}

// mutate runs the same store mutation the list view uses.
func mutate(action feedlist.Action, id int64) error {
	src, err := newSource()
	if err != nil {
		return err
	}
	s := feed.New(src, cfg.Backend.Role, logger)

	done, _ := feedlist.Mutate(s, action, id)().(feedlist.ActionDoneMsg)
	if done.Err != nil {
		return done.Err
	}
	fmt.Fprintf(os.Stdout, "Notification %d: %s done\n", id, action)
	return nil
}
