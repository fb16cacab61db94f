package engine

import (
	"container/heap"
	"time"

	"github.com/mdnsd/mdnsd/internal/mdns/domain"
)

// wakeEntry schedules a call to agentName's Wake method at time.
type wakeEntry struct {
	time      time.Time
	agentName string
}

// questionEntry schedules a question for transmission no later than time.
type questionEntry struct {
	time     time.Time
	question domain.Question
}

// resourceEntry schedules a resource for transmission, in section, no
// later than time. resource is a shared pointer: rewriting its TTL (the
// tombstone cancellation, or the goodbye-sent rewrite) is visible to
// every entry referencing it.
type resourceEntry struct {
	time     time.Time
	resource *domain.Resource
	section  domain.ResourceSection
}

// wakeHeap is a min-heap on time, implementing container/heap.Interface.
type wakeHeap []wakeEntry

func (h wakeHeap) Len() int            { return len(h) }
func (h wakeHeap) Less(i, j int) bool  { return h[i].time.Before(h[j].time) }
func (h wakeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *wakeHeap) Push(x any)         { *h = append(*h, x.(wakeEntry)) }
func (h *wakeHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

type questionHeap []questionEntry

func (h questionHeap) Len() int           { return len(h) }
func (h questionHeap) Less(i, j int) bool { return h[i].time.Before(h[j].time) }
func (h questionHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *questionHeap) Push(x any)        { *h = append(*h, x.(questionEntry)) }
func (h *questionHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

type resourceHeap []resourceEntry

func (h resourceHeap) Len() int           { return len(h) }
func (h resourceHeap) Less(i, j int) bool { return h[i].time.Before(h[j].time) }
func (h resourceHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *resourceHeap) Push(x any)        { *h = append(*h, x.(resourceEntry)) }
func (h *resourceHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// postTaskHeap is a min-heap of timestamps at which the engine has
// already armed a timer, used to avoid arming redundant timers. It is a
// plain heap of time.Time rather than a set: duplicate timestamps are
// harmless since dropArmedTimersAtOrBefore drains everything at or before the fired
// time in one pass.
type postTaskHeap []time.Time

func (h postTaskHeap) Len() int           { return len(h) }
func (h postTaskHeap) Less(i, j int) bool { return h[i].Before(h[j]) }
func (h postTaskHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *postTaskHeap) Push(x any)        { *h = append(*h, x.(time.Time)) }
func (h *postTaskHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// queues bundles the three scheduling priority queues and the
// post-task timer-dedup heap that back the engine core.
type queues struct {
	wake      wakeHeap
	question  questionHeap
	resource  resourceHeap
	postTasks postTaskHeap
}

func newQueues() *queues {
	return &queues{}
}

func (q *queues) pushWake(e wakeEntry) { heap.Push(&q.wake, e) }

func (q *queues) pushQuestion(e questionEntry) { heap.Push(&q.question, e) }

func (q *queues) pushResource(e resourceEntry) { heap.Push(&q.resource, e) }

// nextTime returns the earliest time across all three scheduling queues
// and whether any queue is non-empty.
func (q *queues) nextTime() (time.Time, bool) {
	var best time.Time
	found := false
	consider := func(t time.Time) {
		if !found || t.Before(best) {
			best = t
			found = true
		}
	}
	if len(q.wake) > 0 {
		consider(q.wake[0].time)
	}
	if len(q.question) > 0 {
		consider(q.question[0].time)
	}
	if len(q.resource) > 0 {
		consider(q.resource[0].time)
	}
	return best, found
}

// hasArmedTimerAtOrBefore reports whether post_task_queue already holds a
// timestamp at or before when, per the timer-redundancy-avoidance
// invariant.
func (q *queues) hasArmedTimerAtOrBefore(when time.Time) bool {
	for _, t := range q.postTasks {
		if !t.After(when) {
			return true
		}
	}
	return false
}

func (q *queues) armTimer(when time.Time) {
	heap.Push(&q.postTasks, when)
}

// dropArmedTimersAtOrBefore removes every post_task_queue entry at or
// before when, called when that timer fires so a later-arming timer can
// still be installed.
func (q *queues) dropArmedTimersAtOrBefore(when time.Time) {
	var kept postTaskHeap
	for _, t := range q.postTasks {
		if t.After(when) {
			kept = append(kept, t)
		}
	}
	q.postTasks = kept
	heap.Init(&q.postTasks)
}

// drainWakeUpTo pops and returns every wake entry with time <= now.
func (q *queues) drainWakeUpTo(now time.Time) []wakeEntry {
	var out []wakeEntry
	for len(q.wake) > 0 && !q.wake[0].time.After(now) {
		out = append(out, heap.Pop(&q.wake).(wakeEntry))
	}
	return out
}

// drainQuestionsUpTo pops and returns every question entry with time <= deadline.
func (q *queues) drainQuestionsUpTo(deadline time.Time) []questionEntry {
	var out []questionEntry
	for len(q.question) > 0 && !q.question[0].time.After(deadline) {
		out = append(out, heap.Pop(&q.question).(questionEntry))
	}
	return out
}

// drainResourcesUpTo pops and returns every resource entry with time <= deadline.
func (q *queues) drainResourcesUpTo(deadline time.Time) []resourceEntry {
	var out []resourceEntry
	for len(q.resource) > 0 && !q.resource[0].time.After(deadline) {
		out = append(out, heap.Pop(&q.resource).(resourceEntry))
	}
	return out
}
