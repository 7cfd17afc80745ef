package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/example/muster/internal/core/policy"
	"github.com/example/muster/internal/ctxutil"
	"github.com/example/muster/internal/ports/primary"
	"github.com/example/muster/internal/ports/secondary"
)

// Inbound event types.
const (
	EventReactionAdd    = "reaction_add"
	EventReactionRemove = "reaction_remove"
	EventMessage        = "message"
)

// CommandTimeLayout is the accepted scheduled-time format for commands.
const CommandTimeLayout = "2006-01-02 15:04"

const maxLineSize = 1 << 20

// Event is one inbound line.
type Event struct {
	Type       string `json:"type"`
	ChannelRef string `json:"channel,omitempty"`
	PostRef    string `json:"post,omitempty"`
	MemberID   string `json:"member,omitempty"`
	Symbol     string `json:"symbol,omitempty"`
	// Causation is "user", "system" or "unknown"; empty means unknown.
	Causation string `json:"causation,omitempty"`
	// Roles, when present, is the member's role set delivered with the event.
	Roles []string `json:"roles,omitempty"`
	Text  string   `json:"text,omitempty"`
	// Self marks events produced by this application's own account.
	Self bool `json:"self,omitempty"`
}

// GatewayConfig holds gateway settings.
type GatewayConfig struct {
	EventChannelID string
	CommandPrefix  string
	Location       *time.Location
}

// Gateway routes inbound events to the attendance and operation services.
type Gateway struct {
	attendance primary.AttendanceService
	operations primary.OperationService
	policy     *policy.Policy
	transport  secondary.Transport
	cfg        GatewayConfig
	logger     *slog.Logger
}

// NewGateway creates a Gateway. Replies and channel-guard removals go
// straight to transport.
func NewGateway(
	attendance primary.AttendanceService,
	operations primary.OperationService,
	pol *policy.Policy,
	transport secondary.Transport,
	cfg GatewayConfig,
	logger *slog.Logger,
) *Gateway {
	if cfg.CommandPrefix == "" {
		cfg.CommandPrefix = "!"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Gateway{
		attendance: attendance,
		operations: operations,
		policy:     pol,
		transport:  transport,
		cfg:        cfg,
		logger:     logger.With("component", "gateway"),
	}
}

// Run reads events from r until EOF or ctx is cancelled. Malformed lines
// and handler errors are logged and skipped.
func (g *Gateway) Run(ctx context.Context, r io.Reader) error {
	lines := make(chan []byte)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("failed to read events: %w", err)
					}
				default:
				}
				return nil
			}
			g.handleLine(ctx, line)
		}
	}
}

func (g *Gateway) handleLine(ctx context.Context, line []byte) {
	if len(strings.TrimSpace(string(line))) == 0 {
		return
	}
	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil {
		g.logger.Warn("malformed event line", "error", err)
		return
	}
	if err := g.Handle(ctx, ev); err != nil {
		g.logger.Error("event handling failed", "type", ev.Type, "member_id", ev.MemberID, "error", err)
	}
}

// Handle processes one inbound event.
func (g *Gateway) Handle(ctx context.Context, ev Event) error {
	if ev.Self {
		return nil
	}
	ctx = ctxutil.WithActorID(ctx, ev.MemberID)

	switch ev.Type {
	case EventReactionAdd:
		return g.handleReaction(ctx, ev, primary.DirectionClaim)
	case EventReactionRemove:
		return g.handleReaction(ctx, ev, primary.DirectionWithdraw)
	case EventMessage:
		return g.handleMessage(ctx, ev)
	default:
		g.logger.Debug("unknown event type", "type", ev.Type)
		return nil
	}
}

func (g *Gateway) handleReaction(ctx context.Context, ev Event, direction primary.Direction) error {
	signal := primary.ReactionSignal{
		PostRef:     ev.PostRef,
		MemberID:    ev.MemberID,
		Symbol:      ev.Symbol,
		Direction:   direction,
		Causation:   parseCausation(ev.Causation),
		MemberRoles: ev.Roles,
	}
	if _, err := g.attendance.HandleSignal(ctx, signal); err != nil {
		return fmt.Errorf("failed to handle reaction: %w", err)
	}
	return nil
}

func parseCausation(s string) primary.Causation {
	switch primary.Causation(s) {
	case primary.CausationUser:
		return primary.CausationUser
	case primary.CausationSystem:
		return primary.CausationSystem
	default:
		return primary.CausationUnknown
	}
}

func (g *Gateway) handleMessage(ctx context.Context, ev Event) error {
	text := strings.TrimSpace(ev.Text)
	if strings.HasPrefix(text, g.cfg.CommandPrefix) {
		g.removeMessage(ctx, ev)
		reply := g.runCommand(ctx, ev, strings.TrimPrefix(text, g.cfg.CommandPrefix))
		if reply == "" {
			return nil
		}
		if err := g.transport.SendDirectNotice(ctx, ev.MemberID, reply); err != nil {
			return fmt.Errorf("failed to send command reply: %w", err)
		}
		return nil
	}

	if g.cfg.EventChannelID != "" && ev.ChannelRef == g.cfg.EventChannelID {
		g.removeMessage(ctx, ev)
	}
	return nil
}

func (g *Gateway) removeMessage(ctx context.Context, ev Event) {
	if ev.PostRef == "" {
		return
	}
	if err := g.transport.RemovePost(ctx, ev.ChannelRef, ev.PostRef); err != nil {
		g.logger.Warn("transport failure", "effect", OpRemovePost, "post_ref", ev.PostRef, "error", err)
	}
}

// runCommand executes a command line without its prefix and returns the
// reply text. Unknown commands get no reply.
func (g *Gateway) runCommand(ctx context.Context, ev Event, line string) string {
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(name) {
	case "event":
		return g.cmdEvent(ctx, ev, rest)
	case "edit":
		return g.cmdEdit(ctx, ev, rest)
	case "delete":
		return g.cmdDelete(ctx, ev, rest)
	case "roles":
		return g.cmdRoles()
	default:
		g.logger.Debug("unknown command", "command", name)
		return ""
	}
}

func (g *Gateway) cmdEvent(ctx context.Context, ev Event, args string) string {
	usage := fmt.Sprintf("Usage: `%sevent <title> | <description> | <YYYY-MM-DD HH:MM>`", g.cfg.CommandPrefix)

	parts := strings.Split(args, "|")
	var title, description, when string
	switch len(parts) {
	case 2:
		title, when = parts[0], parts[1]
	case 3:
		title, description, when = parts[0], parts[1], parts[2]
	default:
		return usage
	}

	at, err := g.parseTime(when)
	if err != nil {
		return "❌ " + err.Error() + "\n" + usage
	}

	resp, err := g.operations.CreateOperation(ctx, primary.CreateOperationRequest{
		IssuerID:    ev.MemberID,
		IssuerRoles: ev.Roles,
		ChannelRef:  g.eventChannel(ev),
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		ScheduledAt: at,
	})
	if err != nil {
		return g.commandError("create", err)
	}
	return fmt.Sprintf("✓ Created operation %s: %s", resp.OperationID, resp.Operation.Title)
}

func (g *Gateway) cmdEdit(ctx context.Context, ev Event, args string) string {
	usage := fmt.Sprintf("Usage: `%sedit <operation-id> <title|description|time> <value>`", g.cfg.CommandPrefix)

	fields := strings.SplitN(args, " ", 3)
	if len(fields) < 3 {
		return usage
	}
	opID := strings.ToUpper(fields[0])
	value := strings.TrimSpace(fields[2])

	req := primary.EditOperationRequest{OperationID: opID, IssuerID: ev.MemberID, IssuerRoles: ev.Roles}
	switch strings.ToLower(fields[1]) {
	case "title":
		req.Title = &value
	case "description":
		req.Description = &value
	case "time":
		at, err := g.parseTime(value)
		if err != nil {
			return "❌ " + err.Error() + "\n" + usage
		}
		req.ScheduledAt = &at
	default:
		return usage
	}

	if _, err := g.operations.EditOperation(ctx, req); err != nil {
		return g.commandError("edit", err)
	}
	return fmt.Sprintf("✓ Operation %s updated", opID)
}

func (g *Gateway) cmdDelete(ctx context.Context, ev Event, args string) string {
	opID := strings.ToUpper(strings.TrimSpace(args))
	if opID == "" || strings.Contains(opID, " ") {
		return fmt.Sprintf("Usage: `%sdelete <operation-id>`", g.cfg.CommandPrefix)
	}

	err := g.operations.DeleteOperation(ctx, primary.DeleteOperationRequest{
		OperationID: opID,
		IssuerID:    ev.MemberID,
		IssuerRoles: ev.Roles,
	})
	if err != nil {
		return g.commandError("delete", err)
	}
	return fmt.Sprintf("✓ Operation %s deleted", opID)
}

func (g *Gateway) cmdRoles() string {
	var b strings.Builder
	b.WriteString("Signup categories:")
	for _, c := range g.policy.OrderedCategories() {
		who := "anyone"
		if c.Restricted() {
			who = strings.Join(c.Roles, ", ")
		}
		fmt.Fprintf(&b, "\n%s %s: %s", c.Symbol, c.Label, who)
	}
	return b.String()
}

func (g *Gateway) parseTime(s string) (time.Time, error) {
	at, err := time.ParseInLocation(CommandTimeLayout, strings.TrimSpace(s), g.cfg.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("could not read %q as a date and time", strings.TrimSpace(s))
	}
	return at, nil
}

func (g *Gateway) eventChannel(ev Event) string {
	if g.cfg.EventChannelID != "" {
		return g.cfg.EventChannelID
	}
	return ev.ChannelRef
}

func (g *Gateway) commandError(action string, err error) string {
	switch {
	case errors.Is(err, primary.ErrPermissionDenied):
		return "❌ You are not allowed to " + action + " this operation."
	case errors.Is(err, primary.ErrInvalidCommand):
		return "❌ " + strings.TrimPrefix(err.Error(), primary.ErrInvalidCommand.Error()+": ")
	case errors.Is(err, secondary.ErrNotFound):
		return "❌ Operation not found."
	case errors.Is(err, secondary.ErrDuplicatePost):
		return "❌ That post already carries an operation."
	default:
		g.logger.Error("command failed", "action", action, "error", err)
		return "❌ Something went wrong. Please try again."
	}
}
