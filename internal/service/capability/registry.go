package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/riteshshukladev/MCP-Agent-for-X/internal/model/chat"
)

var (
	ErrUnknownCapability = errors.New("unknown capability")
	ErrInvalidArguments  = errors.New("invalid arguments")
	ErrDuplicate         = errors.New("capability already registered")
	ErrNameEmpty         = errors.New("capability name is empty")
	ErrUnknownKind       = errors.New("unknown capability kind")
	ErrNilHandler        = errors.New("capability handler is nil")
)

// Kind separates the capability namespaces.
type Kind string

const (
	KindAction   Kind = "action"
	KindResource Kind = "resource"
	KindPrompt   Kind = "prompt"
)

func (k Kind) valid() bool {
	switch k {
	case KindAction, KindResource, KindPrompt:
		return true
	}
	return false
}

// Argument declares one string input of a capability.
type Argument struct {
	Name        string
	Description string
	Required    bool
}

// ResourceContent is one item of a resource read.
type ResourceContent struct {
	URI      string
	MimeType string
	Text     string
}

// Response is the outcome of an invocation. Exactly one of Text, Contents or
// Messages is used, depending on the kind. A non-empty Failure marks the error
// variant; it is reported to the caller as an application error, not a
// protocol error.
type Response struct {
	Text     string
	Contents []ResourceContent
	Messages []chat.Message
	Failure  string
}

// Failed reports whether the response is the error variant.
func (r Response) Failed() bool {
	return r.Failure != ""
}

// Failure builds an error-variant response.
func Failure(format string, args ...any) Response {
	return Response{Failure: fmt.Sprintf(format, args...)}
}

// Handler runs a capability with its validated arguments. A returned error is
// an internal fault; expected failures belong in Response.Failure.
type Handler func(ctx context.Context, args map[string]string) (Response, error)

// Descriptor is a registered capability.
type Descriptor struct {
	Name        string
	Kind        Kind
	Title       string
	Description string
	URI         string
	MimeType    string
	Arguments   []Argument
	Handler     Handler
}

// InputSchema renders Arguments as a JSON object schema with string properties.
func (d Descriptor) InputSchema() json.RawMessage {
	type property struct {
		Type        string `json:"type"`
		Description string `json:"description,omitempty"`
	}
	schema := struct {
		Type       string              `json:"type"`
		Properties map[string]property `json:"properties"`
		Required   []string            `json:"required,omitempty"`
	}{
		Type:       "object",
		Properties: make(map[string]property, len(d.Arguments)),
	}
	for _, arg := range d.Arguments {
		schema.Properties[arg.Name] = property{Type: "string", Description: arg.Description}
		if arg.Required {
			schema.Required = append(schema.Required, arg.Name)
		}
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return raw
}

type key struct {
	kind Kind
	name string
}

// Registry holds capabilities keyed by kind and name.
type Registry struct {
	mu    sync.RWMutex
	byKey map[key]Descriptor
	order []key
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byKey: make(map[key]Descriptor)}
}

// Register adds d. The same name may exist under different kinds.
func (r *Registry) Register(d Descriptor) error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrNameEmpty
	}
	if !d.Kind.valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, d.Kind)
	}
	if d.Handler == nil {
		return fmt.Errorf("%w: %s", ErrNilHandler, d.Name)
	}

	k := key{kind: d.Kind, name: d.Name}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byKey[k]; exists {
		return fmt.Errorf("%w: %s %s", ErrDuplicate, d.Kind, d.Name)
	}
	d.Arguments = append([]Argument(nil), d.Arguments...)
	r.byKey[k] = d
	r.order = append(r.order, k)
	return nil
}

// MustRegister is Register for static wiring; it panics on error.
func (r *Registry) MustRegister(d Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Lookup returns the descriptor for kind and name.
func (r *Registry) Lookup(kind Kind, name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byKey[key{kind: kind, name: name}]
	return d, ok
}

// ResourceByURI finds a resource by its URI.
func (r *Registry) ResourceByURI(uri string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, k := range r.order {
		if d := r.byKey[k]; k.kind == KindResource && d.URI == uri {
			return d, true
		}
	}
	return Descriptor{}, false
}

// List returns the capabilities of kind in registration order.
func (r *Registry) List(kind Kind) []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, k := range r.order {
		if k.kind == kind {
			out = append(out, r.byKey[k])
		}
	}
	return out
}

// Invoke validates raw against the declared arguments and runs the handler.
func (r *Registry) Invoke(ctx context.Context, kind Kind, name string, raw json.RawMessage) (Response, error) {
	d, ok := r.Lookup(kind, name)
	if !ok {
		return Response{}, fmt.Errorf("%w: %s %q", ErrUnknownCapability, kind, name)
	}

	args, err := parseArguments(d.Arguments, raw)
	if err != nil {
		return Response{}, fmt.Errorf("%s: %w", name, err)
	}

	return d.Handler(ctx, args)
}

func parseArguments(declared []Argument, raw json.RawMessage) (map[string]string, error) {
	values := map[string]any{}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed != "" && trimmed != "null" {
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		}
	}

	args := make(map[string]string, len(declared))
	for _, arg := range declared {
		value, present := values[arg.Name]
		if !present || value == nil {
			if arg.Required {
				return nil, fmt.Errorf("%w: missing required argument %q", ErrInvalidArguments, arg.Name)
			}
			continue
		}

		str, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: argument %q must be a string", ErrInvalidArguments, arg.Name)
		}
		if arg.Required && strings.TrimSpace(str) == "" {
			return nil, fmt.Errorf("%w: argument %q is empty", ErrInvalidArguments, arg.Name)
		}
		args[arg.Name] = str
	}
	return args, nil
}
