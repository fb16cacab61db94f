// Package engine implements the mDNS engine core: the single-threaded
// cooperative dispatcher that owns the agent registry, the three
// scheduling priority queues, outbound message aggregation, wake-up
// scheduling, and inbound fan-out to every registered agent.
package engine

import (
	"net"
	"time"

	"github.com/mdnsd/mdnsd/internal/dns/common/clock"
	"github.com/mdnsd/mdnsd/internal/dns/common/log"
	"github.com/mdnsd/mdnsd/internal/mdns/agent"
	"github.com/mdnsd/mdnsd/internal/mdns/domain"
	"github.com/mdnsd/mdnsd/internal/mdns/gateways/transport"
	"github.com/mdnsd/mdnsd/internal/mdns/publisher"
	"github.com/mdnsd/mdnsd/internal/mdns/renewer"
	"github.com/mdnsd/mdnsd/internal/mdns/resolver"
	"github.com/mdnsd/mdnsd/internal/mdns/responder"
	"github.com/mdnsd/mdnsd/internal/mdns/subscriber"
)

// AggregationWindow is the look-ahead used when draining outbound queues
// so that records due within it share one packet.
const AggregationWindow = 100 * time.Millisecond

// v4MulticastAddr is the fixed target address engine hands the
// transceiver; the transceiver substitutes the V6 multicast address on
// interfaces that only joined that group.
var v4MulticastAddr = &net.UDPAddr{IP: net.IPv4(224, 0, 0, 251), Port: 5353}

// Engine is the mDNS agent/scheduler core. Its lifecycle, verbosity,
// discovery and publication methods are safe to call from any goroutine:
// they are staged as closures onto the single task-runner channel and
// executed there, honoring the "no locks protect engine state" rule.
// EnableInterface and the agent.Host methods (WakeAt, SendQuestion,
// SendResource, SendAddresses, Renew, RemoveAgent, TellAgentToQuit) are
// not staged; they act on the caller's goroutine and are called by agents
// from within the task-runner context.
type Engine struct {
	transceiver transport.Transceiver
	clock       clock.Clock
	logger      log.Logger

	hostFullName         string
	addressPlaceholder   domain.Resource
	addressPlaceholderV6 domain.Resource

	started bool
	verbose bool

	agents    map[string]agent.Agent
	order     []string // stable registration order, for EndOfMessage/fan-out iteration
	renewer   *renewer.Renewer
	responder *responder.AddressResponder

	queues *queues

	tasks chan func()
	quit  chan struct{}
}

// New constructs an Engine. Call Start to install the always-on agents
// and begin multicast I/O.
func New(tr transport.Transceiver, clk clock.Clock, logger log.Logger) *Engine {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	e := &Engine{
		transceiver: tr,
		clock:       clk,
		logger:      logger,
		agents:      make(map[string]agent.Agent),
		queues:      newQueues(),
		tasks:       make(chan func()),
		quit:        make(chan struct{}),
	}
	go e.runTaskLoop()
	return e
}

// run schedules fn on the task-runner goroutine and blocks until it has
// run, giving callers from arbitrary goroutines a synchronous call that
// still only ever touches engine state from the single task context.
func (e *Engine) run(fn func()) {
	done := make(chan struct{})
	select {
	case e.tasks <- func() { fn(); close(done) }:
		<-done
	case <-e.quit:
	}
}

func (e *Engine) runTaskLoop() {
	for {
		select {
		case fn := <-e.tasks:
			fn()
		case <-e.quit:
			return
		}
	}
}

// EnableInterface forwards to the transceiver.
func (e *Engine) EnableInterface(name string, family transport.Family) {
	e.transceiver.EnableInterface(name, family)
}

// SetVerbose toggles structured logging of inbound/outbound messages.
func (e *Engine) SetVerbose(v bool) {
	e.run(func() { e.verbose = v })
}

// Start computes the local host's full name, constructs the shared
// A/AAAA address placeholders, installs the address responder and
// resource renewer, and starts the transceiver. Returns whether the
// transceiver started.
func (e *Engine) Start(host string) bool {
	var started bool
	e.run(func() {
		if e.started {
			started = true
			return
		}
		e.hostFullName = domain.LocalHostFullName(host)
		e.addressPlaceholder = domain.Resource{
			Name:       e.hostFullName,
			Type:       domain.RRTypeA,
			Class:      domain.RRClassIN,
			CacheFlush: true,
			TTL:        120,
			Payload:    domain.AddressPayload{},
		}
		e.addressPlaceholderV6 = domain.Resource{
			Name:       e.hostFullName,
			Type:       domain.RRTypeAAAA,
			Class:      domain.RRClassIN,
			CacheFlush: true,
			TTL:        120,
			Payload:    domain.AAAAPayload{},
		}

		rn, err := renewer.New(e, e.clock, 4096)
		if err != nil {
			e.logger.Error(map[string]any{"error": err.Error()}, "failed to construct resource renewer")
			started = false
			return
		}
		e.renewer = rn
		e.registerLocked(rn)

		resp := responder.New(e, e.clock, e.hostFullName)
		e.responder = resp
		e.registerLocked(resp)

		started = e.transceiver.Start(e.hostFullName, e.handleInbound)
		e.started = started
	})
	return started
}

// Stop stops the transceiver and marks the engine not-started. Queued
// entries remain but will not be sent until Start is called again.
func (e *Engine) Stop() {
	e.run(func() {
		if !e.started {
			return
		}
		e.transceiver.Stop()
		e.started = false
	})
}

// Close permanently shuts down the engine's task-runner goroutine. Not
// part of the public surface spec.md describes; provided so embedders
// can release the goroutine on process exit.
func (e *Engine) Close() {
	e.Stop()
	close(e.quit)
}

// registerAgent adds a on the task-runner context and calls its Start
// immediately, whether or not the engine is running.
func (e *Engine) registerAgent(a agent.Agent) {
	e.run(func() { e.registerLocked(a) })
}

func (e *Engine) registerLocked(a agent.Agent) {
	if _, exists := e.agents[a.Name()]; exists {
		return
	}
	e.agents[a.Name()] = a
	e.order = append(e.order, a.Name())
	a.Start()
	e.assemble()
	e.rescheduleTimer()
}

// handleInbound is passed to the transceiver as the inbound callback. It
// always runs on the task-runner goroutine (the transceiver's own
// read-loop goroutine enqueues this closure rather than calling engine
// state directly), preserving the single-threaded-cooperative property.
func (e *Engine) handleInbound(msg *domain.Message, source *net.UDPAddr, interfaceIndex int) {
	select {
	case e.tasks <- func() { e.deliverInbound(msg, source, interfaceIndex) }:
	case <-e.quit:
	}
}

func (e *Engine) deliverInbound(msg *domain.Message, source *net.UDPAddr, interfaceIndex int) {
	if e.verbose {
		e.logger.Info(map[string]any{
			"source":      source.String(),
			"interface":   interfaceIndex,
			"questions":   len(msg.Questions),
			"answers":     len(msg.Answers),
			"authorities": len(msg.Authorities),
			"additionals": len(msg.Additionals),
		}, "inbound mdns message")
	}

	for _, q := range msg.Questions {
		for _, name := range e.order {
			e.agents[name].ReceiveQuestion(q)
		}
	}

	deliverSection := func(resources []domain.Resource, section domain.ResourceSection) {
		for i := range resources {
			r := &resources[i]
			if e.renewer != nil {
				e.renewer.ReceiveResource(r, section)
			}
			for _, name := range e.order {
				if name == renewer.Name {
					continue
				}
				e.agents[name].ReceiveResource(r, section)
			}
		}
	}
	deliverSection(msg.Answers, domain.SectionAnswer)
	deliverSection(msg.Authorities, domain.SectionAuthority)
	deliverSection(msg.Additionals, domain.SectionAdditional)

	if e.renewer != nil {
		e.renewer.EndOfMessage()
	}
	for _, name := range e.order {
		if name == renewer.Name {
			continue
		}
		e.agents[name].EndOfMessage()
	}

	e.assemble()
	e.rescheduleTimer()
}

// --- agent.Host implementation ---

func (e *Engine) WakeAt(agentName string, t time.Time) {
	e.queues.pushWake(wakeEntry{time: t, agentName: agentName})
}

func (e *Engine) SendQuestion(q domain.Question, t time.Time) {
	e.queues.pushQuestion(questionEntry{time: t, question: q})
}

func (e *Engine) SendResource(r *domain.Resource, section domain.ResourceSection, t time.Time) {
	if section == domain.SectionExpired {
		for _, name := range e.order {
			e.agents[name].ReceiveResource(r, domain.SectionExpired)
		}
		return
	}
	e.queues.pushResource(resourceEntry{time: t, resource: r, section: section})
}

// SendAddresses enqueues the shared A and AAAA host-address placeholders.
// The transceiver expands each into a concrete address at send time,
// dropping whichever family an interface has none of.
func (e *Engine) SendAddresses(section domain.ResourceSection, t time.Time) {
	e.queues.pushResource(resourceEntry{time: t, resource: &e.addressPlaceholder, section: section})
	e.queues.pushResource(resourceEntry{time: t, resource: &e.addressPlaceholderV6, section: section})
}

func (e *Engine) Renew(r *domain.Resource) {
	if e.renewer != nil {
		e.renewer.Renew(r)
	}
}

func (e *Engine) RemoveAgent(name string) {
	if _, ok := e.agents[name]; !ok {
		return
	}
	delete(e.agents, name)
	for i, n := range e.order {
		if n == name {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

func (e *Engine) TellAgentToQuit(name string) {
	if a, ok := e.agents[name]; ok {
		a.Quit()
	}
	e.assemble()
	e.rescheduleTimer()
}

var _ agent.Host = (*Engine)(nil)

// --- outbound assembly ---

// assemble drains the question and resource queues up to
// now+AggregationWindow, builds one outbound message honoring the
// pointer-identity de-duplication and tombstone-skip invariants, and
// hands it to the transceiver if non-empty.
func (e *Engine) assemble() {
	now := e.clock.Now()
	deadline := now.Add(AggregationWindow)

	questions := e.queues.drainQuestionsUpTo(deadline)
	resources := e.queues.drainResourcesUpTo(deadline)

	msg := &domain.Message{}
	for _, qe := range questions {
		msg.Questions = append(msg.Questions, qe.question)
	}

	seen := make(map[*domain.Resource]bool, len(resources))
	for _, re := range resources {
		if re.resource.IsTombstone() {
			continue
		}
		if seen[re.resource] {
			continue
		}
		if re.section == domain.SectionExpired {
			// Invariant violation: Expired entries must never reach the
			// queue. Drop it rather than serialize garbage.
			continue
		}
		seen[re.resource] = true
		slice := msg.SectionSlice(re.section)
		if slice == nil {
			continue
		}
		*slice = append(*slice, re.resource.Copy())
	}

	if msg.IsEmpty() {
		return
	}

	msg.UpdateCounts()
	if len(msg.Questions) == 0 {
		msg.Header.SetQuery(false)
		msg.Header.SetAuthoritative(true)
	}

	if e.verbose {
		e.logger.Info(map[string]any{
			"questions":   len(msg.Questions),
			"answers":     len(msg.Answers),
			"authorities": len(msg.Authorities),
			"additionals": len(msg.Additionals),
		}, "outbound mdns message")
	}

	e.transceiver.SendMessage(msg, v4MulticastAddr, 0)

	for _, re := range resources {
		if re.resource.IsGoodbye() {
			re.resource.TTL = domain.TombstoneTTL
		}
	}
}

// rescheduleTimer recomputes the next wake time across all three
// scheduling queues and arms a timer for it, unless one already armed is
// due at or before that time. Timers already armed for a later time are
// never cancelled: each one drains whatever is due when it actually
// fires, so a redundant firing is a harmless no-op, and the post-task
// queue only needs bookkeeping of which timestamps are still pending.
func (e *Engine) rescheduleTimer() {
	when, ok := e.queues.nextTime()
	if !ok {
		return
	}
	if e.queues.hasArmedTimerAtOrBefore(when) {
		return
	}
	e.queues.armTimer(when)

	delay := when.Sub(e.clock.Now())
	if delay < 0 {
		delay = 0
	}
	time.AfterFunc(delay, func() {
		select {
		case e.tasks <- func() { e.fireTimer(when) }:
		case <-e.quit:
		}
	})
}

func (e *Engine) fireTimer(when time.Time) {
	e.queues.dropArmedTimersAtOrBefore(when)

	now := e.clock.Now()
	for _, we := range e.queues.drainWakeUpTo(now) {
		if a, ok := e.agents[we.agentName]; ok {
			a.Wake()
		}
	}

	e.assemble()
	e.rescheduleTimer()
}

// --- discovery API ---

// ResolveHostName installs a host-name resolver keyed by "<host>.local.".
// callback is invoked exactly once, with host as given and the first
// resolved address or a not-found result at deadline.
func (e *Engine) ResolveHostName(host string, deadline time.Time, callback resolver.Callback) {
	fullName := domain.LocalHostFullName(host)
	e.registerAgent(resolver.New(e, e.clock, fullName, deadline, func(_ string, addr net.IP, found bool) {
		callback(host, addr, found)
	}))
}

// SubscribeToService installs an instance subscriber for service,
// reporting discovery/change/loss events to callback.
func (e *Engine) SubscribeToService(service string, callback subscriber.Callback) {
	fullName := domain.LocalServiceFullName(service)
	e.registerAgent(subscriber.New(e, e.clock, fullName, callback))
}

// UnsubscribeToService asks the subscriber for service to quit. Its name
// is derived deterministically from the service's full name, so this
// needs no separate bookkeeping of which agent serves which call.
func (e *Engine) UnsubscribeToService(service string) {
	fullName := domain.LocalServiceFullName(service)
	e.run(func() { e.tellAgentToQuitLocked("subscribe:" + fullName) })
}

// PublishServiceInstance installs an instance publisher announcing
// instance of service at port, with txt as its TXT record strings.
func (e *Engine) PublishServiceInstance(service, instance string, port uint16, txt []string) {
	serviceFullName := domain.LocalServiceFullName(service)
	instanceFullName := domain.LocalInstanceFullName(instance, service)
	txtStrings := make([][]byte, len(txt))
	for i, s := range txt {
		txtStrings[i] = []byte(s)
	}
	e.registerAgent(publisher.New(e, e.clock, serviceFullName, instanceFullName, e.hostFullName, port, txtStrings))
}

// UnpublishServiceInstance asks the publisher for instance/service to
// quit, which sends a goodbye and removes it.
func (e *Engine) UnpublishServiceInstance(instance, service string) {
	instanceFullName := domain.LocalInstanceFullName(instance, service)
	e.run(func() { e.tellAgentToQuitLocked("publish:" + instanceFullName) })
}

// tellAgentToQuitLocked runs on the task-runner context. It flushes the
// outbound queues immediately afterward so a goodbye a quitting agent
// enqueues is sent without waiting for the next inbound message or timer
// firing to trigger assembly.
func (e *Engine) tellAgentToQuitLocked(name string) {
	if a, ok := e.agents[name]; ok {
		a.Quit()
	}
	e.assemble()
	e.rescheduleTimer()
}
