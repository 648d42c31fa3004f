package radio

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Usage is shown for empty or unrecognized commands.
const Usage = "usage: genradio <start|stop|restart|status|set|drop|remove|clearall>"

// HandleCommand dispatches one operator command. The returned string
// is the operator-facing report; errors are surfaced, never fatal.
func (c *Controller) HandleCommand(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return Usage, nil
	}
	switch args[0] {
	case "start":
		if err := c.Start(ctx); err != nil {
			return "", err
		}
		return fmt.Sprintf("started on port %d", c.settings.Port), nil
	case "stop":
		if err := c.Stop(); err != nil {
			return "", err
		}
		return "stopped", nil
	case "restart":
		if err := c.Restart(ctx); err != nil {
			return "", err
		}
		return fmt.Sprintf("restarted on port %d", c.settings.Port), nil
	case "status":
		return c.Status(), nil
	case "set":
		return c.handleSet(args[1:])
	case "drop":
		s, err := c.Drop()
		if err != nil {
			return "", err
		}
		if s == nil {
			return "", nil
		}
		return fmt.Sprintf("dropped source %s", s.ID), nil
	case "remove":
		s, err := c.Remove()
		if err != nil {
			return "", err
		}
		if s == nil {
			return "", nil
		}
		return fmt.Sprintf("removed source %s", s.ID), nil
	case "clearall":
		if err := c.ClearAll(); err != nil {
			return "", err
		}
		return "cleared all sources", nil
	default:
		return Usage, nil
	}
}

func (c *Controller) handleSet(args []string) (string, error) {
	if len(args) != 2 {
		return "usage: genradio set <port|verbose> <value>", nil
	}
	key := strings.ToLower(strings.TrimSpace(args[0]))
	value := strings.TrimSpace(args[1])
	switch key {
	case "port":
		port, err := strconv.Atoi(value)
		if err != nil || port < 1 || port > 65535 {
			return "", fmt.Errorf("radio: invalid port %q", value)
		}
		c.settings.Port = port
		return fmt.Sprintf("port=%d (takes effect on next start)", port), nil
	case "verbose":
		verbose, err := strconv.ParseBool(value)
		if err != nil {
			return "", fmt.Errorf("radio: invalid verbose %q", value)
		}
		c.settings.Verbose = verbose
		return fmt.Sprintf("verbose=%t", verbose), nil
	default:
		return "", fmt.Errorf("radio: unknown setting %q", key)
	}
}
