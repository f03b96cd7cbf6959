// Package helpers is the registry of acquire/build/install/util/llm
// primitives a recipe's hooks call, bound to the scripting runtime as
// Starlark builtins. Adapted from an action-object model (package
// manager actions and version resolvers) to Starlark builtins closing
// over one execctx.Context per lifecycle call.
package helpers

import (
	"net"
	"net/http"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/levitate-os/recipe/internal/execctx"
	"github.com/levitate-os/recipe/internal/llm"
	"github.com/levitate-os/recipe/internal/log"
	"github.com/levitate-os/recipe/internal/userconfig"
	"go.starlark.net/starlark"
)

// Registry binds the helper family to one in-flight lifecycle call: the
// ambient execution context, the logger, the tools-prefix bin dir
// prepended to PATH for shell/run calls, and the collaborators acquire
// and llm helpers need (HTTP client, GitHub client, optional LLM bridge).
type Registry struct {
	Ctx      *execctx.Context
	Logger   log.Logger
	ToolsBin string // builddeps resolver's tools_prefix/bin, "" if no build-deps
	HTTP     *http.Client
	GitHub   *github.Client
	LLM      *llm.Bridge // nil when disabled or unconfigured; llm_* helpers fail with a clear error
}

// New constructs a Registry for one lifecycle call. GitHub/LLM
// collaborators may be nil; the corresponding helpers fail with a clear
// error rather than panicking.
func New(ctx *execctx.Context, logger log.Logger, toolsBin string) *Registry {
	if logger == nil {
		logger = log.NewNoop()
	}
	userCfg, err := userconfig.Load()
	if err != nil {
		userCfg = userconfig.DefaultConfig()
	}
	var bridge *llm.Bridge
	if userCfg.LLMEnabled() {
		if b, err := llm.NewBridge(llm.DefaultProfile()); err == nil {
			bridge = b
		} else {
			logger.Debug("LLM bridge unavailable", "error", err)
		}
	}
	return &Registry{
		Ctx:      ctx,
		Logger:   logger,
		ToolsBin: toolsBin,
		HTTP:     newHTTPClient(),
		GitHub:   github.NewClient(nil),
		LLM:      bridge,
	}
}

// newHTTPClient builds a hardened client for acquire-family network
// calls: no transparent decompression (a recipe verifies the bytes it
// downloaded), bounded redirects, and per-phase timeouts.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Minute,
		Transport: &http.Transport{
			DisableCompression: true,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if req.URL.Scheme != "https" && req.URL.Scheme != "http" {
				return http.ErrUseLastResponse
			}
			if len(via) >= 5 {
				return http.ErrNoLocation
			}
			return nil
		},
	}
}

// Build returns the full builtin set, ready to pass to
// recipescript.Compile alongside the scope constants.
func (r *Registry) Build() starlark.StringDict {
	out := starlark.StringDict{}
	for name, fn := range r.acquireBuiltins() {
		out[name] = fn
	}
	for name, fn := range r.buildBuiltins() {
		out[name] = fn
	}
	for name, fn := range r.installBuiltins() {
		out[name] = fn
	}
	for name, fn := range r.utilBuiltins() {
		out[name] = fn
	}
	for name, fn := range r.llmBuiltins() {
		out[name] = fn
	}
	return out
}

func builtin(name string, fn func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)) starlark.Value {
	return starlark.NewBuiltin(name, fn)
}
