package lavakit

import (
	"math/rand"

	"github.com/emirpasic/gods/lists/arraylist"
)

// queue is a Player's ordered sequence of QueueItem (Track | TrackPartial),
// grounded on the teacher's use of emirpasic/gods' arraylist for
// Player.Queue. Not safe for concurrent use; callers hold Player.mu.
type queue struct {
	list *arraylist.List
}

func newQueue() *queue {
	return &queue{list: arraylist.New()}
}

func (q *queue) Len() int {
	return q.list.Size()
}

func (q *queue) Get(i int) (QueueItem, bool) {
	v, ok := q.list.Get(i)
	if !ok {
		return nil, false
	}
	return v.(QueueItem), true
}

func (q *queue) Set(i int, item QueueItem) {
	q.list.Set(i, item)
}

func (q *queue) Append(items ...QueueItem) {
	for _, it := range items {
		q.list.Add(it)
	}
}

// Remove deletes the element at i. Panics if i is out of range; callers
// must bounds-check first (spec.md's Player operations always do).
func (q *queue) Remove(i int) {
	q.list.Remove(i)
}

func (q *queue) Clear() {
	q.list.Clear()
}

// Values returns a snapshot slice of queue contents.
func (q *queue) Values() []QueueItem {
	raw := q.list.Values()
	out := make([]QueueItem, len(raw))
	for i, v := range raw {
		out[i] = v.(QueueItem)
	}
	return out
}

// Shuffle performs a Fisher-Yates shuffle in place using the list's Swap.
func (q *queue) Shuffle() {
	n := q.list.Size()
	for i := n - 1; i > 0; i-- {
		j := rand.Intn(i + 1)
		q.list.Swap(i, j)
	}
}

// ShuffleFrom Fisher-Yates shuffles only the tail starting at index start,
// leaving earlier entries (history, the current item) untouched.
func (q *queue) ShuffleFrom(start int) {
	n := q.list.Size()
	if start < 0 {
		start = 0
	}
	for i := n - 1; i > start; i-- {
		j := start + rand.Intn(i-start+1)
		q.list.Swap(i, j)
	}
}

// retainOnly clears the queue down to just the item at keepIndex (if
// valid), which becomes index 0. Used by Player.Clear(stop=false).
func (q *queue) retainOnly(keepIndex int) {
	item, ok := q.Get(keepIndex)
	q.Clear()
	if ok {
		q.Append(item)
	}
}
