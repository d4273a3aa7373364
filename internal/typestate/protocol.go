package typestate

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/codegraph-dev/codegraph/internal/errs"
	"github.com/codegraph-dev/codegraph/internal/model"
)

//go:embed protocol-schema.json
var protocolSchemaBytes []byte

var protocolSchemaLoader = gojsonschema.NewBytesLoader(protocolSchemaBytes)

// protocolDoc is the YAML/JSON wire schema of the "Protocol definition
// file", deserialized before being validated into a model.Protocol.
type protocolDoc struct {
	Protocol string `yaml:"protocol"`
	InitialState string `yaml:"initial_state"`
	FinalStates []string `yaml:"final_states"`
	Transitions []transitionDoc `yaml:"transitions"`
	Preconditions map[string]preconditionDoc `yaml:"preconditions"`
}

type transitionDoc struct {
	From string `yaml:"from"`
	Action string `yaml:"action"`
	To string `yaml:"to"`
}

type preconditionDoc struct {
	Requires string `yaml:"requires"`
}

// ParseProtocolYAML parses and validates a protocol definition in two
// passes: a gojsonschema structural pass (required fields present,
// correct types and shapes) followed by a semantic pass
// (validateSemantics) for the cross-reference rules a JSON schema
// cannot express: every state in transitions must participate,
// initial and final states must appear as transition endpoints, final
// states must be reachable from the initial state, and precondition
// actions/states must be declared.
func ParseProtocolYAML(data []byte) (model.Protocol, error) {
	var raw map[string]any

	if err := yaml.Unmarshal(data, &raw); err != nil {
		return model.Protocol{}, errs.New(errs.CategoryConfiguration, "typestate.parse_protocol",
			fmt.Errorf("%w: %s", errs.ErrUnparsableProtocol, err))
	}

	if err := validateSchema(raw); err != nil {
		return model.Protocol{}, err
	}

	var doc protocolDoc

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return model.Protocol{}, errs.New(errs.CategoryConfiguration, "typestate.parse_protocol",
			fmt.Errorf("%w: %s", errs.ErrUnparsableProtocol, err))
	}

	return buildProtocol(doc)
}

// validateSchema checks raw against protocol-schema.json: required
// top-level fields, transition entries shaped as {from, action, to},
// and precondition entries shaped as {requires}. It reports every
// violation gojsonschema finds, not just the first.
func validateSchema(raw map[string]any) error {
	result, err := gojsonschema.Validate(protocolSchemaLoader, gojsonschema.NewGoLoader(raw))
	if err != nil {
		return errs.New(errs.CategoryConfiguration, "typestate.validate_schema",
			fmt.Errorf("%w: %s", errs.ErrUnparsableProtocol, err))
	}

	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", verr.Field(), verr.Description()))
	}

	return errs.New(errs.CategoryConfiguration, "typestate.validate_schema",
		fmt.Errorf("%w: %s", errs.ErrUnparsableProtocol, strings.Join(msgs, "; ")))
}

func buildProtocol(doc protocolDoc) (model.Protocol, error) {
	proto := model.Protocol{
		Name: doc.Protocol,
		InitialState: doc.InitialState,
		FinalStates: append([]string(nil), doc.FinalStates...),
		Preconditions: make(map[string]string, len(doc.Preconditions)),
	}

	for _, td := range doc.Transitions {
		proto.Transitions = append(proto.Transitions, model.Transition{From: td.From, Action: td.Action, To: td.To})
	}

	for action, pc := range doc.Preconditions {
		proto.Preconditions[action] = pc.Requires
	}

	if err := validateSemantics(proto); err != nil {
		return model.Protocol{}, err
	}

	return proto, nil
}

// validateSemantics implements the validation rules.
func validateSemantics(proto model.Protocol) error {
	declaredStates := make(map[string]bool)
	declaredActions := make(map[string]bool)

	for _, tr := range proto.Transitions {
		declaredStates[tr.From] = true
		declaredStates[tr.To] = true
		declaredActions[tr.Action] = true
	}

	if !declaredStates[proto.InitialState] {
		return configErr("initial state %q does not appear in any transition", proto.InitialState)
	}

	for _, fs := range proto.FinalStates {
		if !declaredStates[fs] {
			return configErr("final state %q does not appear in any transition", fs)
		}
	}

	reachable := map[string]bool{proto.InitialState: true}

	// Transitive closure over declared transitions; the transition list
	// is small (protocol definitions, not runtime data), so a fixed-
	// point loop over all transitions is simpler than building an
	// adjacency index for a one-shot validation.
	for changed := true; changed; {
		changed = false

		for _, tr := range proto.Transitions {
			if reachable[tr.From] && !reachable[tr.To] {
				reachable[tr.To] = true
				changed = true
			}
		}
	}

	for _, fs := range proto.FinalStates {
		if !reachable[fs] {
			return configErr("final state %q is unreachable from initial state %q", fs, proto.InitialState)
		}
	}

	for action, requires := range proto.Preconditions {
		if !declaredActions[action] {
			return configErr("precondition references undeclared action %q", action)
		}

		if !declaredStates[requires] {
			return configErr("precondition for action %q requires undeclared state %q", action, requires)
		}
	}

	return nil
}

func configErr(format string, args ...any) error {
	return errs.New(errs.CategoryConfiguration, "typestate.validate_protocol", fmt.Errorf(format, args...))
}

// transitionIndex speeds up repeated Verifier.Step calls against the
// same protocol by pre-indexing transitions by (from, action).
type transitionIndex map[string]map[string]string

func indexTransitions(proto model.Protocol) transitionIndex {
	idx := make(transitionIndex, len(proto.Transitions))

	for _, tr := range proto.Transitions {
		byAction, ok := idx[tr.From]
		if !ok {
			byAction = make(map[string]string)
			idx[tr.From] = byAction
		}

		byAction[tr.Action] = tr.To
	}

	return idx
}

// Violation is one diagnostic raised by the Verifier: an action that
// wasn't enabled in the resource's current state, or a resource that
// left the tracked scope in a non-final state.
type Violation struct {
	Resource string
	State string
	Action string
	Reason string
}

// Verifier replays action sequences against a declared Protocol per
// resource, flagging transitions the protocol doesn't accept and
// resources that end outside a final state (the typestate
// protocol verifier).
type Verifier struct {
	protocol model.Protocol
	index transitionIndex
	states map[string]string // resource -> current state
}

// NewVerifier creates a Verifier for proto. Each tracked resource
// starts in proto.InitialState.
func NewVerifier(proto model.Protocol) *Verifier {
	return &Verifier{protocol: proto, index: indexTransitions(proto), states: make(map[string]string)}
}

// Step applies action to resource, returning a Violation if the action
// is not enabled in the resource's current state or its precondition
// is unmet. On success the resource's tracked state advances.
func (v *Verifier) Step(resource, action string) *Violation {
	current, tracked := v.states[resource]
	if !tracked {
		current = v.protocol.InitialState
	}

	if required, hasPrecondition := v.protocol.Preconditions[action]; hasPrecondition && required != current {
		return &Violation{
			Resource: resource, State: current, Action: action,
			Reason: fmt.Sprintf("action %q requires state %q, resource is in %q", action, required, current),
		}
	}

	next, ok := v.index[current][action]
	if !ok {
		return &Violation{
			Resource: resource, State: current, Action: action,
			Reason: fmt.Sprintf("action %q is not enabled in state %q", action, current),
		}
	}

	v.states[resource] = next

	return nil
}

// Finish checks that resource ended in a final state, returning a
// Violation if not. A resource never stepped is considered to still be
// in the initial state.
func (v *Verifier) Finish(resource string) *Violation {
	current, tracked := v.states[resource]
	if !tracked {
		current = v.protocol.InitialState
	}

	for _, fs := range v.protocol.FinalStates {
		if fs == current {
			return nil
		}
	}

	return &Violation{
		Resource: resource, State: current,
		Reason: fmt.Sprintf("resource left the function in non-final state %q", current),
	}
}

// CurrentState returns resource's tracked state.
func (v *Verifier) CurrentState(resource string) string {
	if state, ok := v.states[resource]; ok {
		return state
	}

	return v.protocol.InitialState
}
