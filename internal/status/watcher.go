package status

import (
	"sync"

	"github.com/Zacy-Sokach/PolyWrite/internal/models"
)

// DefaultWatchBuffer 观察者通道的缓冲大小
const DefaultWatchBuffer = 16

// Watcher 把一个模型的状态订阅转换为有序通道，便于界面在事件循环中消费。
// 缓冲满时推送方会阻塞等待，保证不丢失也不乱序。
type Watcher struct {
	id      models.ID
	initial models.Status
	updates chan models.Status
	done    chan struct{}
	stop    func()
	once    sync.Once
}

// Watch 订阅 id 的状态
func Watch(store *Store, id models.ID) *Watcher {
	w := &Watcher{
		id:      id,
		updates: make(chan models.Status, DefaultWatchBuffer),
		done:    make(chan struct{}),
	}
	w.initial, w.stop = store.Subscribe(id, func(st models.Status) {
		select {
		case w.updates <- st:
		case <-w.done:
		}
	})
	return w
}

// ID 返回观察的模型
func (w *Watcher) ID() models.ID {
	return w.id
}

// Initial 返回订阅时刻的状态
func (w *Watcher) Initial() models.Status {
	return w.initial
}

// Updates 返回后续状态通道，该通道不会被关闭，请同时监听 Done
func (w *Watcher) Updates() <-chan models.Status {
	return w.updates
}

// Done 在 Close 之后关闭
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Next 阻塞等待下一次状态，Close 之后返回 false
func (w *Watcher) Next() (models.Status, bool) {
	select {
	case st := <-w.updates:
		return st, true
	case <-w.done:
		return models.Status{}, false
	}
}

// Close 取消订阅
func (w *Watcher) Close() {
	w.once.Do(func() {
		close(w.done)
		w.stop()
	})
}
