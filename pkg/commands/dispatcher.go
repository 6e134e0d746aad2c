package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/permissions/pkg/observability"
	"github.com/platinummonkey/permissions/pkg/permissions"
)

// ErrUnknownCommand is returned for a command name no handler is registered for
var ErrUnknownCommand = errors.New("unknown command")

const (
	reloadedText     = "Reloaded config"
	reloadFailedText = "Failed to reload config"
)

// Settings controls how console replies are displayed
type Settings struct {
	HideAllPlayerSuccessMessages bool
	SendMessagesAsNotification   bool
	TextSize                     float64
	DisplayTime                  float64
}

// DefaultSettings returns the display settings used before any config is loaded
func DefaultSettings() Settings {
	return Settings{TextSize: 1.5, DisplayTime: 3.0}
}

// ReloadFunc re-reads configuration and returns the new display settings
type ReloadFunc func(ctx context.Context) (Settings, error)

type kind int

const (
	kindMutation kind = iota
	kindListing
	kindReload
)

type command struct {
	name    string
	kind    kind
	success string
	run     func(ctx context.Context, args []string) (string, error)
}

// Dispatcher parses command bodies and runs them against a permissions.Service
type Dispatcher struct {
	svc      *permissions.Service
	settings atomic.Pointer[Settings]
	reload   ReloadFunc
	commands map[string]*command

	logger  logrus.FieldLogger
	metrics *observability.Metrics
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithSettings sets the initial display settings
func WithSettings(settings Settings) Option {
	return func(d *Dispatcher) {
		d.SetSettings(settings)
	}
}

// WithReloader sets the function run by Permissions.Reload
func WithReloader(reload ReloadFunc) Option {
	return func(d *Dispatcher) {
		d.reload = reload
	}
}

// WithLogger sets the logger
func WithLogger(logger logrus.FieldLogger) Option {
	return func(d *Dispatcher) {
		d.logger = observability.OrDiscard(logger)
	}
}

// WithMetrics counts executed commands
func WithMetrics(metrics *observability.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = metrics
	}
}

// NewDispatcher creates a Dispatcher with every Permissions.* command registered
func NewDispatcher(svc *permissions.Service, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		svc:      svc,
		commands: make(map[string]*command),
		logger:   observability.OrDiscard(nil),
	}
	d.SetSettings(DefaultSettings())
	for _, opt := range opts {
		opt(d)
	}
	d.register()
	return d
}

// SetSettings replaces the display settings
func (d *Dispatcher) SetSettings(settings Settings) {
	d.settings.Store(&settings)
}

// Settings returns the current display settings
func (d *Dispatcher) Settings() Settings {
	return *d.settings.Load()
}

// Names returns the registered command names in order
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.commands))
	for _, c := range d.commands {
		names = append(names, c.name)
	}
	sort.Strings(names)
	return names
}

func (d *Dispatcher) add(c *command) {
	d.commands[strings.ToLower(c.name)] = c
}

func (d *Dispatcher) lookup(tokens []string) (*command, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: empty command", ErrUnknownCommand)
	}
	c, ok := d.commands[strings.ToLower(tokens[0])]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, tokens[0])
	}
	return c, nil
}

func (d *Dispatcher) run(ctx context.Context, transport string, c *command, args []string) (string, error) {
	text, err := c.run(ctx, args)
	d.metrics.CommandExecuted(c.name, transport, err)

	entry := d.logger.WithFields(logrus.Fields{
		"command":   c.name,
		"transport": transport,
	})
	if err != nil {
		var syntax *SyntaxError
		if errors.As(err, &syntax) {
			entry.WithError(err).Debug("Rejected command")
		} else {
			entry.WithError(err).Warn("Command failed")
		}
	} else {
		entry.Debug("Command executed")
	}
	return text, err
}

// ExecuteRcon runs a command body and returns the reply text
func (d *Dispatcher) ExecuteRcon(ctx context.Context, body string) string {
	tokens := Parse(body)
	c, err := d.lookup(tokens)
	if err != nil {
		return err.Error()
	}

	text, err := d.run(ctx, "rcon", c, tokens[1:])
	if err != nil {
		return err.Error()
	}
	switch c.kind {
	case kindListing:
		return text
	case kindReload:
		return reloadedText
	default:
		return c.success
	}
}

// ExecuteConsole runs a command body on behalf of an in-game admin and
// delivers the reply to sender through out. It returns the command's error.
func (d *Dispatcher) ExecuteConsole(ctx context.Context, out Messenger, sender, body string) error {
	tokens := Parse(body)
	c, err := d.lookup(tokens)
	if err != nil {
		out.SendServerMessage(sender, ColorRed, err.Error())
		return err
	}

	text, err := d.run(ctx, "console", c, tokens[1:])
	switch c.kind {
	case kindListing:
		if err != nil {
			out.SendServerMessage(sender, ColorRed, err.Error())
		} else {
			out.SendServerMessage(sender, ColorWhite, text)
		}
	case kindReload:
		if err != nil {
			out.SendServerMessage(sender, ColorRed, reloadFailedText)
		} else {
			out.SendServerMessage(sender, ColorGreen, reloadedText)
		}
	default:
		d.reply(out, sender, err, c.success)
	}
	return err
}

// ExecuteChat handles a chat message. The only chat command is /groups.
func (d *Dispatcher) ExecuteChat(ctx context.Context, out Messenger, sender, message string) error {
	tokens := Parse(message)
	if len(tokens) == 0 || !strings.EqualFold(tokens[0], "/groups") {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, message)
	}

	text, err := d.svc.PlayerGroupsString(ctx, sender, true)
	d.metrics.CommandExecuted("/groups", "chat", err)
	if err != nil {
		d.logger.WithError(err).WithField("identity", sender).Error("Failed to render groups")
		return err
	}
	out.SendChatMessage(sender, ChatSender, text)
	return nil
}

// reply routes a mutation result: failures in red, successes in green unless
// hidden, as notifications when configured
func (d *Dispatcher) reply(out Messenger, recipient string, err error, success string) {
	s := d.Settings()
	switch {
	case err != nil && s.SendMessagesAsNotification:
		out.SendNotification(recipient, ColorRed, s.TextSize, s.DisplayTime, err.Error())
	case err != nil:
		out.SendServerMessage(recipient, ColorRed, err.Error())
	case s.HideAllPlayerSuccessMessages:
	case s.SendMessagesAsNotification:
		out.SendNotification(recipient, ColorGreen, s.TextSize, s.DisplayTime, success)
	default:
		out.SendServerMessage(recipient, ColorGreen, success)
	}
}
