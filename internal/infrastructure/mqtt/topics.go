package mqtt

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"

	"github.com/nerrad567/gray-logic-knxip/internal/knx"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "knxip"

// Topics builds the topic tree under one prefix.
//
//	topics := mqtt.NewTopics("knxip")
//	topics.Telegram(ga) // "knxip/telegram/1%2F2%2F3"
type Topics struct {
	Prefix string
}

// NewTopics returns a builder for prefix, trimming stray slashes.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

func (t Topics) root() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// Telegram returns the topic for telegrams addressed to ga.
func (t Topics) Telegram(ga knx.GroupAddress) string {
	return fmt.Sprintf("%s/telegram/%s", t.root(), ga.URLEncode())
}

// AllTelegrams matches every telegram topic.
func (t Topics) AllTelegrams() string {
	return t.root() + "/telegram/+"
}

// Gateway returns the topic for a discovered gateway's control endpoint.
//
// Example: knxip/gateway/192.168.1.10:3671
func (t Topics) Gateway(addr netip.AddrPort) string {
	return fmt.Sprintf("%s/gateway/%s", t.root(), addr)
}

// Health returns the session health topic.
func (t Topics) Health() string {
	return t.root() + "/health"
}

// Status returns the online/offline topic, which also carries the LWT.
func (t Topics) Status() string {
	return t.root() + "/status"
}

// Command returns the command topic for ga.
func (t Topics) Command(ga knx.GroupAddress) string {
	return fmt.Sprintf("%s/command/%s", t.root(), ga.URLEncode())
}

// AllCommands matches every command topic.
func (t Topics) AllCommands() string {
	return t.root() + "/command/#"
}

// ParseCommand extracts the group address from a command topic.
//
// Both the escaped form ("knxip/command/1%2F2%2F3") and the unescaped
// multi-level form ("knxip/command/1/2/3") are accepted.
func (t Topics) ParseCommand(topic string) (knx.GroupAddress, error) {
	prefix := t.root() + "/command/"
	rest, ok := strings.CutPrefix(topic, prefix)
	if !ok || rest == "" {
		return 0, fmt.Errorf("%w: topic %q is not under %s", ErrInvalidCommand, topic, prefix)
	}
	unescaped, err := url.PathUnescape(rest)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	ga, err := knx.ParseGroupAddress(unescaped)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	return ga, nil
}
