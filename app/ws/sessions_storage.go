package ws

import (
	"sort"
	"sync"
)

type SessionStorage interface {
	AddSession(id string, obj *Session)

	GetSession(id string) *Session
	GetSessionsCount() int64

	ForEach(action func(id string, session *Session))

	RMSession(id string) *Session
	RMSessions(callback func(id string, session *Session))
}

type sessionDB struct {
	sync.RWMutex
	data map[string]*Session
}

func newSessionStorage() SessionStorage {
	return &sessionDB{data: map[string]*Session{}}
}

func (storage *sessionDB) AddSession(id string, obj *Session) {
	storage.Lock()
	defer storage.Unlock()

	storage.data[id] = obj
}

func (storage *sessionDB) GetSession(id string) *Session {
	storage.RLock()
	defer storage.RUnlock()
	return storage.data[id]
}

func (storage *sessionDB) GetSessionsCount() int64 {
	storage.RLock()
	defer storage.RUnlock()
	return int64(len(storage.data))
}

func (storage *sessionDB) RMSession(id string) *Session {
	storage.Lock()
	defer storage.Unlock()
	session, ok := storage.data[id]
	if !ok {
		return nil
	}

	delete(storage.data, id)
	return session
}

func (storage *sessionDB) RMSessions(callback func(id string, session *Session)) {
	storage.Lock()
	removed := storage.data
	storage.data = map[string]*Session{}
	storage.Unlock()

	for id, session := range removed {
		callback(id, session)
	}
}

// ForEach visits sessions ordered by connection time.
func (storage *sessionDB) ForEach(action func(id string, session *Session)) {
	storage.RLock()
	list := make([]*Session, 0, len(storage.data))
	for _, session := range storage.data {
		list = append(list, session)
	}
	storage.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].info.ConnectedAt.Before(list[j].info.ConnectedAt)
	})
	for _, session := range list {
		action(session.info.ID, session)
	}
}
