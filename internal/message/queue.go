package message

import "sync"

// Sender publishes messages onto a Queue. Send never waits on the consumer.
type Sender interface {
	Send(m *Message)
}

// Queue is an unbounded multi-producer, single-consumer queue. Producers are
// started with Go; once Seal has been called and every producer has returned,
// the channel from Messages is closed after the last buffered message.
type Queue struct {
	in   chan *Message
	out  chan *Message
	wg   sync.WaitGroup
	once sync.Once
}

// NewQueue starts the queue's pump goroutine.
func NewQueue() *Queue {
	q := &Queue{
		in:  make(chan *Message),
		out: make(chan *Message),
	}
	go q.pump()
	return q
}

// Go runs fn on its own goroutine as a producer for this queue.
// Go must not be called after Seal.
func (q *Queue) Go(fn func(Sender)) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		fn(queueSender{q: q})
	}()
}

// Seal declares that no more producers will be added. The output closes once
// all running producers finish.
func (q *Queue) Seal() {
	q.once.Do(func() {
		go func() {
			q.wg.Wait()
			close(q.in)
		}()
	})
}

// Messages returns the consumer side of the queue.
func (q *Queue) Messages() <-chan *Message {
	return q.out
}

// pump moves messages from in to out, buffering without bound so producers
// only ever wait for the pump itself.
func (q *Queue) pump() {
	defer close(q.out)

	var buf []*Message
	in := q.in
	for in != nil || len(buf) > 0 {
		var out chan *Message
		var head *Message
		if len(buf) > 0 {
			out = q.out
			head = buf[0]
		}

		select {
		case m, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			buf = append(buf, m)
		case out <- head:
			buf[0] = nil
			buf = buf[1:]
		}
	}
}

type queueSender struct {
	q *Queue
}

func (s queueSender) Send(m *Message) {
	s.q.in <- m
}
