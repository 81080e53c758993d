package relation

import (
	"fmt"

	"github.com/canonical/hpct-slurm-client-operator/pkg/facts"
	"github.com/canonical/hpct-slurm-client-operator/pkg/log"
	"github.com/canonical/hpct-slurm-client-operator/pkg/types"
)

// Handler translates relation lifecycle events into fact store updates. One
// handler exists per relation type. Handlers never talk to the daemons: they
// only record facts; the reconciler that runs immediately after dispatch turns
// those facts into daemon actions.
type Handler interface {
	OnJoined(ev types.Event, bag Bag) error
	OnChanged(ev types.Event, bag Bag) error
	OnDeparted(ev types.Event) error
}

// Registry dispatches events to the handler registered for their relation.
type Registry struct {
	handlers map[types.RelationName]Handler
	bags     Bags
}

// NewRegistry wires the four production handlers over a fact store.
func NewRegistry(store facts.Store, bags Bags) *Registry {
	return &Registry{
		bags: bags,
		handlers: map[types.RelationName]Handler{
			types.RelationAuthMunge:       &AuthMungeHandler{store: store},
			types.RelationController:      &ControllerHandler{store: store},
			types.RelationHostIntegration: &HostIntegrationHandler{store: store},
			types.RelationCompute:         &ComputeHandler{store: store},
		},
	}
}

// Dispatch routes one event to its handler. Unknown relations are logged and
// ignored; the administrator may relate arbitrary things to a unit.
func (r *Registry) Dispatch(ev types.Event) error {
	h, ok := r.handlers[ev.Relation]
	if !ok {
		logger := log.WithRelation(string(ev.Relation))
		logger.Warn().Msg("event for unknown relation ignored")
		return nil
	}
	switch ev.Kind {
	case types.EventJoined, types.EventChanged:
		bag, err := r.bags.Inbound(ev.Scope())
		if err != nil {
			return fmt.Errorf("load inbound bag for %s: %w", ev.Scope(), err)
		}
		if ev.Kind == types.EventJoined {
			return h.OnJoined(ev, bag)
		}
		return h.OnChanged(ev, bag)
	case types.EventDeparted:
		return h.OnDeparted(ev)
	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
}

// AuthMungeHandler consumes the cluster munge key from the secret provider.
type AuthMungeHandler struct {
	store facts.Store
}

func (h *AuthMungeHandler) OnJoined(ev types.Event, bag Bag) error {
	return h.OnChanged(ev, bag)
}

func (h *AuthMungeHandler) OnChanged(ev types.Event, bag Bag) error {
	secret, ok := bag.Read(types.KeySecretValue)
	if !ok || secret == "" {
		// The provider joins before the key material is ready; stay waiting.
		logger := log.WithRelation(string(ev.Relation))
		logger.Debug().Msg("munge key not ready")
		return nil
	}
	return h.store.Put(ev.Scope(), types.KeySecretValue, secret)
}

func (h *AuthMungeHandler) OnDeparted(ev types.Event) error {
	return h.store.Clear(ev.Scope())
}

// ControllerHandler consumes slurmctld connection facts. Fields arrive
// piecemeal: each present field is recorded individually so a partial bag
// never blocks the facts that did arrive.
type ControllerHandler struct {
	store facts.Store
}

var controllerKeys = []string{
	types.KeyControllerAddress,
	types.KeyControllerPort,
	types.KeyClusterName,
	types.KeyPartitionName,
}

func (h *ControllerHandler) OnJoined(ev types.Event, bag Bag) error {
	return h.OnChanged(ev, bag)
}

func (h *ControllerHandler) OnChanged(ev types.Event, bag Bag) error {
	for _, key := range controllerKeys {
		v, ok := bag.Read(key)
		if !ok || v == "" {
			continue
		}
		if err := h.store.Put(ev.Scope(), key, v); err != nil {
			return err
		}
	}
	return nil
}

func (h *ControllerHandler) OnDeparted(ev types.Event) error {
	return h.store.Clear(ev.Scope())
}

// HostIntegrationHandler consumes local unit identity from the principal.
type HostIntegrationHandler struct {
	store facts.Store
}

func (h *HostIntegrationHandler) OnJoined(ev types.Event, bag Bag) error {
	return h.OnChanged(ev, bag)
}

func (h *HostIntegrationHandler) OnChanged(ev types.Event, bag Bag) error {
	for _, key := range []string{types.KeyHostHostname, types.KeyHostAddress} {
		v, ok := bag.Read(key)
		if !ok || v == "" {
			continue
		}
		if err := h.store.Put(ev.Scope(), key, v); err != nil {
			return err
		}
	}
	return nil
}

func (h *HostIntegrationHandler) OnDeparted(ev types.Event) error {
	// Derived outbound facts depend on host identity; clearing the scope makes
	// the next reconciliation recompute them from the probe instead.
	return h.store.Clear(ev.Scope())
}

// ComputeHandler is a pure publisher. It records only that a peer is present;
// the reconciler's publish step writes the unit facts into the outbound bag.
type ComputeHandler struct {
	store facts.Store
}

func (h *ComputeHandler) OnJoined(ev types.Event, bag Bag) error {
	return h.store.Put(ev.Scope(), types.KeyPeerJoined, "true")
}

func (h *ComputeHandler) OnChanged(ev types.Event, bag Bag) error {
	return h.store.Put(ev.Scope(), types.KeyPeerJoined, "true")
}

func (h *ComputeHandler) OnDeparted(ev types.Event) error {
	return h.store.Clear(ev.Scope())
}
