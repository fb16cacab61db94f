// Package agent defines the capability set every mDNS protocol
// participant implements and the callback contract it uses to talk back
// to the engine that multiplexes it.
package agent

import (
	"time"

	"github.com/mdnsd/mdnsd/internal/mdns/domain"
)

// Agent is a named, long-running protocol participant held uniformly in
// the engine's registry. Concrete agents (address responder, resource
// renewer, host-name resolver, instance subscriber, instance publisher)
// implement this interface; no inheritance hierarchy is required.
//
// All methods run on the engine's single task-runner context. An agent
// must never block and must never call back into the Host from a
// different goroutine.
type Agent interface {
	// Name is the agent's unique registry key, typically the full DNS
	// name it owns.
	Name() string

	// Start is called once when the agent is registered, or immediately
	// if the engine is already started.
	Start()

	// Wake is called when a previously scheduled WakeAt deadline elapses.
	Wake()

	// ReceiveQuestion is called once per inbound question, for every
	// question in every inbound message, regardless of section.
	ReceiveQuestion(q domain.Question)

	// ReceiveResource is called once per inbound resource record, tagged
	// with the section it arrived in (answer, authority, or additional),
	// or with SectionExpired when the renewer detects a tracked record's
	// TTL has lapsed.
	ReceiveResource(r *domain.Resource, section domain.ResourceSection)

	// EndOfMessage is called once after all questions and resources in an
	// inbound message have been delivered.
	EndOfMessage()

	// Quit is called to ask the agent to wind down; a well-behaved agent
	// sends any goodbye records it owes and then calls Host.RemoveAgent
	// with its own name.
	Quit()
}

// Host is the callback contract agents use to interact with the engine
// and, through it, the network. Agents never touch the transceiver
// directly.
type Host interface {
	// WakeAt schedules a call to the agent's Wake method at time t.
	WakeAt(agentName string, t time.Time)

	// SendQuestion enqueues a question for transmission no later than t.
	SendQuestion(q domain.Question, t time.Time)

	// SendResource enqueues a resource for transmission, in the given
	// section, no later than t. Section SectionExpired is handled
	// specially: the resource fans out to every agent's ReceiveResource
	// immediately and is never transmitted. r is shared by reference: the
	// same pointer may already be queued from an earlier call, in which
	// case only one copy is ever sent, and rewriting r.TTL (e.g. to the
	// tombstone sentinel) is visible to every pending queue entry.
	SendResource(r *domain.Resource, section domain.ResourceSection, t time.Time)

	// SendAddresses enqueues the shared address placeholder in the given
	// section no later than t; the transceiver substitutes concrete
	// A/AAAA records per outbound interface.
	SendAddresses(section domain.ResourceSection, t time.Time)

	// Renew hands a freshly received resource to the renewer for TTL
	// tracking.
	Renew(r *domain.Resource)

	// RemoveAgent removes the named agent from the registry. Safe to call
	// from within the agent's own callback.
	RemoveAgent(name string)

	// TellAgentToQuit asks the named agent to quit.
	TellAgentToQuit(name string)
}
