// Пакет locker — шардированная таблица блокировок по PID.
//
// Мутации одной записи media сериализуются: read-modify-write выполняется
// под эксклюзивной секцией её PID. Коллизии между разными PID редки,
// поэтому вместо мьютекса на каждый PID используется фиксированный набор
// шардов, выбираемых по FNV-1a хэшу. Глобальная блокировка между записями
// отсутствует.
package locker

import (
	"hash/fnv"
	"sync"
)

// defaultShards — количество шардов таблицы блокировок.
const defaultShards = 64

// Locker — шардированная таблица блокировок, ключ — PID.
type Locker struct {
	shards []sync.Mutex
}

// New создаёт таблицу блокировок с числом шардов по умолчанию.
func New() *Locker {
	return NewWithShards(defaultShards)
}

// NewWithShards создаёт таблицу с указанным числом шардов.
// shards <= 0 приводится к значению по умолчанию.
func NewWithShards(shards int) *Locker {
	if shards <= 0 {
		shards = defaultShards
	}
	return &Locker{shards: make([]sync.Mutex, shards)}
}

// Lock захватывает эксклюзивную секцию для pid.
func (l *Locker) Lock(pid string) {
	l.shards[l.shard(pid)].Lock()
}

// Unlock освобождает эксклюзивную секцию для pid.
func (l *Locker) Unlock(pid string) {
	l.shards[l.shard(pid)].Unlock()
}

// WithLock выполняет fn под эксклюзивной секцией pid.
func (l *Locker) WithLock(pid string, fn func() error) error {
	l.Lock(pid)
	defer l.Unlock(pid)
	return fn()
}

// shard возвращает индекс шарда для pid (FNV-1a).
func (l *Locker) shard(pid string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(pid))
	return int(h.Sum32() % uint32(len(l.shards)))
}
