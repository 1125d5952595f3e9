package ratelimit

import (
	"container/heap"
	"context"
	"time"
)

// job is one scheduled request as tracked by the dispatcher.
type job struct {
	ctx     context.Context
	req     Request
	result  chan outcome // buffered 1; written exactly once
	seq     uint64
	readyAt time.Time
	queued  time.Time
	retries int
	index   int
}

type outcome struct {
	value any
	err   error
}

func (j *job) finish(value any, err error) {
	j.result <- outcome{value: value, err: err}
}

// jobQueue orders jobs by readyAt, then by arrival sequence.
// New arrivals are ready immediately, so among them the order is FIFO.
// A retry is keyed by its retry-at time and sorts behind anything ready earlier.
type jobQueue []*job

func (q jobQueue) Len() int { return len(q) }

func (q jobQueue) Less(i, j int) bool {
	if !q[i].readyAt.Equal(q[j].readyAt) {
		return q[i].readyAt.Before(q[j].readyAt)
	}
	return q[i].seq < q[j].seq
}

func (q jobQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *jobQueue) Push(x any) {
	j := x.(*job)
	j.index = len(*q)
	*q = append(*q, j)
}

func (q *jobQueue) Pop() any {
	old := *q
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	j.index = -1
	*q = old[:n-1]
	return j
}

func (q *jobQueue) push(j *job) { heap.Push(q, j) }

func (q *jobQueue) pop() *job { return heap.Pop(q).(*job) }

func (q jobQueue) peek() *job {
	if len(q) == 0 {
		return nil
	}
	return q[0]
}
