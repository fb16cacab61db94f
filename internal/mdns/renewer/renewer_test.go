package renewer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdnsd/mdnsd/internal/dns/common/clock"
	"github.com/mdnsd/mdnsd/internal/mdns/domain"
)

type fakeHost struct {
	wakes     []time.Time
	questions []domain.Question
	expired   []*domain.Resource
}

func (h *fakeHost) WakeAt(agentName string, t time.Time) { h.wakes = append(h.wakes, t) }
func (h *fakeHost) SendQuestion(q domain.Question, t time.Time) {
	h.questions = append(h.questions, q)
}
func (h *fakeHost) SendResource(r *domain.Resource, section domain.ResourceSection, t time.Time) {
	if section == domain.SectionExpired {
		h.expired = append(h.expired, r)
	}
}
func (h *fakeHost) SendAddresses(domain.ResourceSection, time.Time) {}
func (h *fakeHost) Renew(*domain.Resource)                          {}
func (h *fakeHost) RemoveAgent(string)                              {}
func (h *fakeHost) TellAgentToQuit(string)                          {}

func newResource(t *testing.T, ttl uint32) *domain.Resource {
	r, err := domain.NewResource("alpha.local.", domain.RRTypePTR, domain.RRClassIN, false, ttl,
		domain.PTRPayload{NamePayload: domain.NamePayload{Name: "beta.local."}})
	require.NoError(t, err)
	return &r
}

func TestRenewer_SchedulesRequeriesAndExpiry(t *testing.T) {
	host := &fakeHost{}
	mock := &clock.MockClock{CurrentTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	rn, err := New(host, mock, 64)
	require.NoError(t, err)

	res := newResource(t, 10)
	rn.Renew(res)

	assert.Len(t, host.wakes, 5, "expected 4 requery wakes + 1 expire wake")
}

func TestRenewer_RequeryFiresQuestion(t *testing.T) {
	host := &fakeHost{}
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock := &clock.MockClock{CurrentTime: start}
	rn, err := New(host, mock, 64)
	require.NoError(t, err)

	res := newResource(t, 10)
	rn.Renew(res)

	mock.CurrentTime = start.Add(8 * time.Second)
	rn.Wake()

	require.Len(t, host.questions, 1, "expected 1 requery question at 80%% of TTL")
	assert.Equal(t, "alpha.local.", host.questions[0].Name)
}

func TestRenewer_ExpiresWithoutRefresh(t *testing.T) {
	host := &fakeHost{}
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock := &clock.MockClock{CurrentTime: start}
	rn, err := New(host, mock, 64)
	require.NoError(t, err)

	res := newResource(t, 10)
	rn.Renew(res)

	mock.CurrentTime = start.Add(10 * time.Second)
	rn.Wake()

	assert.Len(t, host.expired, 1, "expected exactly one expiration")
}

func TestRenewer_ReceiveResourceResetsTTL(t *testing.T) {
	host := &fakeHost{}
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock := &clock.MockClock{CurrentTime: start}
	rn, err := New(host, mock, 64)
	require.NoError(t, err)

	res := newResource(t, 10)
	rn.Renew(res)

	mock.CurrentTime = start.Add(9 * time.Second)
	refreshed := newResource(t, 10)
	rn.ReceiveResource(refreshed, domain.SectionAnswer)

	// The original generation's expire action (due at start+10s) must now
	// be stale, superseded by the refresh's own new schedule.
	mock.CurrentTime = start.Add(10 * time.Second)
	rn.Wake()
	assert.Empty(t, host.expired, "refresh should have superseded the original schedule")
}

func TestRenewer_ReceiveResource_UntrackedIsIgnored(t *testing.T) {
	host := &fakeHost{}
	mock := &clock.MockClock{CurrentTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	rn, err := New(host, mock, 64)
	require.NoError(t, err)

	res := newResource(t, 10)
	rn.ReceiveResource(res, domain.SectionAnswer)

	assert.Empty(t, host.wakes, "expected no tracking to start from ReceiveResource alone")
}

func TestRenewer_ReceiveResource_IgnoresExpiredSection(t *testing.T) {
	host := &fakeHost{}
	mock := &clock.MockClock{CurrentTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	rn, err := New(host, mock, 64)
	require.NoError(t, err)
	res := newResource(t, 10)
	rn.Renew(res)
	host.wakes = nil

	rn.ReceiveResource(res, domain.SectionExpired)
	assert.Empty(t, host.wakes, "expected Expired-section resources not to re-track")
}
