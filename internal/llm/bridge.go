package llm

import (
	"fmt"
	"strings"

	"github.com/levitate-os/recipe/internal/rerr"
)

// Bridge runs the configured provider CLI once per call, guarded by a
// circuit breaker so a recipe that calls llm_extract in a loop stops
// hammering a provider that keeps failing.
type Bridge struct {
	settings *Settings
	breaker  *CircuitBreaker
}

// NewBridge resolves llm.toml with the named profile and returns a
// bridge for its default_provider. profile may be "".
func NewBridge(profile string) (*Bridge, error) {
	s, err := LoadSettings(profile)
	if err != nil {
		return nil, err
	}
	return NewBridgeWithSettings(s), nil
}

// NewBridgeWithSettings wraps already-resolved settings, used by tests
// that point the provider binaries at stub scripts.
func NewBridgeWithSettings(s *Settings) *Bridge {
	return &Bridge{
		settings: s,
		breaker:  NewCircuitBreaker(string(s.DefaultProvider)),
	}
}

// Provider returns the provider this bridge spawns.
func (b *Bridge) Provider() ProviderID {
	return b.settings.DefaultProvider
}

// Run pipes prompt on stdin to the configured provider CLI and returns
// its final text, stripped of a single outer fenced-code wrapper.
func (b *Bridge) Run(prompt string) (string, error) {
	if !b.breaker.Allow() {
		return "", rerr.New(rerr.LlmError, fmt.Sprintf("provider %s circuit breaker is open after repeated failures", b.settings.DefaultProvider))
	}

	var inv *invocation
	switch b.settings.DefaultProvider {
	case ProviderCodex:
		built, err := buildCodex(b.settings)
		if err != nil {
			return "", err
		}
		inv = built
	default:
		inv = buildClaude(b.settings)
	}
	if inv.cleanup != nil {
		defer inv.cleanup()
	}

	res, err := runCall(inv.argv, call{
		stdin:          []byte(prompt),
		timeout:        b.settings.Timeout,
		maxInputBytes:  b.settings.MaxInputBytes,
		maxOutputBytes: b.settings.MaxOutputBytes,
		env:            inv.env,
		tee:            inv.tee,
	})
	if err != nil {
		b.breaker.RecordFailure()
		return "", rerr.Wrap(rerr.LlmError, "running "+string(b.settings.DefaultProvider), err)
	}

	text, err := inv.finalize(res)
	if err != nil {
		b.breaker.RecordFailure()
		return "", err
	}
	b.breaker.RecordSuccess()

	return stripOuterCodeFence(text), nil
}

// stripOuterCodeFence removes one outer ``` wrapper (with an optional
// language tag on the opening line) from s. Anything not shaped as a
// single complete fence comes back merely trimmed.
func stripOuterCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	nl := strings.Index(trimmed, "\n")
	if nl < 0 {
		return trimmed
	}
	body := strings.TrimRight(trimmed[nl+1:], " \t")
	body = strings.TrimRight(body, "\n")
	if !strings.HasSuffix(body, "```") {
		return trimmed
	}
	body = strings.TrimRight(strings.TrimSuffix(body, "```"), "\n")
	return strings.TrimSpace(body)
}
