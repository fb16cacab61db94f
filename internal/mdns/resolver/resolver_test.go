package resolver

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdnsd/mdnsd/internal/dns/common/clock"
	"github.com/mdnsd/mdnsd/internal/mdns/domain"
)

type fakeHost struct {
	questions []domain.Question
	wakes     []time.Time
	removed   []string
}

func (h *fakeHost) WakeAt(agentName string, t time.Time) { h.wakes = append(h.wakes, t) }
func (h *fakeHost) SendQuestion(q domain.Question, t time.Time) {
	h.questions = append(h.questions, q)
}
func (h *fakeHost) SendResource(*domain.Resource, domain.ResourceSection, time.Time) {}
func (h *fakeHost) SendAddresses(domain.ResourceSection, time.Time)                  {}
func (h *fakeHost) Renew(*domain.Resource)                                          {}
func (h *fakeHost) RemoveAgent(name string)                                         { h.removed = append(h.removed, name) }
func (h *fakeHost) TellAgentToQuit(string)                                          {}

func TestResolver_StartAsksBothFamilies(t *testing.T) {
	host := &fakeHost{}
	mock := &clock.MockClock{CurrentTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := New(host, mock, "beta.local.", mock.CurrentTime.Add(2*time.Second), func(string, net.IP, bool) {})

	r.Start()

	require.Len(t, host.questions, 2)
	assert.Equal(t, domain.RRTypeA, host.questions[0].Type)
	assert.Equal(t, domain.RRTypeAAAA, host.questions[1].Type)
	require.Len(t, host.wakes, 1)
}

func TestResolver_ReceiveResource_ResolvesOnFirstAddress(t *testing.T) {
	host := &fakeHost{}
	mock := &clock.MockClock{CurrentTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	var gotHost string
	var gotAddr net.IP
	var gotFound bool
	cb := func(host string, addr net.IP, found bool) {
		gotHost, gotAddr, gotFound = host, addr, found
	}
	r := New(host, mock, "beta.local.", mock.CurrentTime.Add(2*time.Second), cb)
	r.Start()

	addr := net.ParseIP("192.0.2.5")
	res, err := domain.NewResource("beta.local.", domain.RRTypeA, domain.RRClassIN, false, 120,
		domain.AddressPayload{Addr: addr})
	require.NoError(t, err)

	r.ReceiveResource(&res, domain.SectionAnswer)

	assert.Equal(t, "beta.local.", gotHost)
	assert.True(t, gotAddr.Equal(addr))
	assert.True(t, gotFound)
	assert.Contains(t, host.removed, r.Name())
}

func TestResolver_Wake_NotFoundAfterDeadline(t *testing.T) {
	host := &fakeHost{}
	mock := &clock.MockClock{CurrentTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	var called bool
	var gotFound bool
	cb := func(string, net.IP, bool) { called = true; gotFound = false }
	r := New(host, mock, "beta.local.", mock.CurrentTime.Add(2*time.Second), cb)
	r.Start()

	r.Wake()

	assert.True(t, called)
	assert.False(t, gotFound)
	assert.Contains(t, host.removed, r.Name())
}

func TestResolver_IgnoresUnrelatedResource(t *testing.T) {
	host := &fakeHost{}
	mock := &clock.MockClock{CurrentTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	called := false
	r := New(host, mock, "beta.local.", mock.CurrentTime.Add(2*time.Second), func(string, net.IP, bool) { called = true })
	r.Start()

	res, err := domain.NewResource("gamma.local.", domain.RRTypeA, domain.RRClassIN, false, 120,
		domain.AddressPayload{Addr: net.ParseIP("192.0.2.9")})
	require.NoError(t, err)
	r.ReceiveResource(&res, domain.SectionAnswer)

	assert.False(t, called)
}

func TestResolver_Wake_AfterResolutionIsNoop(t *testing.T) {
	host := &fakeHost{}
	mock := &clock.MockClock{CurrentTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	calls := 0
	r := New(host, mock, "beta.local.", mock.CurrentTime.Add(2*time.Second), func(string, net.IP, bool) { calls++ })
	r.Start()

	res, err := domain.NewResource("beta.local.", domain.RRTypeA, domain.RRClassIN, false, 120,
		domain.AddressPayload{Addr: net.ParseIP("192.0.2.5")})
	require.NoError(t, err)
	r.ReceiveResource(&res, domain.SectionAnswer)
	r.Wake()

	assert.Equal(t, 1, calls)
}
