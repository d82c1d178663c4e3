package jobs

import (
	"sync"

	"livesync/internal/model"
)

// Hub 将任务事件分发给订阅者
type Hub struct {
	subscribers map[int]chan Event
	next        int
	closed      bool
	mutex       sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[int]chan Event)}
}

// Subscribe 订阅任务事件，返回的函数用于取消订阅。
// 取消订阅只是停止接收，不影响任务本身。
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	ch := make(chan Event, buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.next
	h.next++
	h.subscribers[id] = ch

	return ch, func() {
		h.mutex.Lock()
		defer h.mutex.Unlock()
		if _, ok := h.subscribers[id]; ok {
			delete(h.subscribers, id)
			close(ch)
		}
	}
}

// Close 关闭所有订阅，之后的订阅立即得到已关闭的通道
func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.closed = true
	for id, ch := range h.subscribers {
		delete(h.subscribers, id)
		close(ch)
	}
}

// publish 不阻塞发送，订阅者缓冲区满时丢弃该事件
func (h *Hub) publish(e Event) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for _, ch := range h.subscribers {
		select {
		case ch <- e:
		default:
		}
	}
}

func (h *Hub) OnJobStart(job *model.Job) {}

func (h *Hub) OnJobProgress(job *model.Job) {
	h.publish(snapshot(EventProgress, job))
}

func (h *Hub) OnJobComplete(job *model.Job) {
	h.publish(snapshot(EventCompleted, job))
}

func (h *Hub) OnJobError(job *model.Job, err error) {
	h.publish(snapshot(EventError, job))
}
