package writelock

import "sync"

// Locker serializes catalog and upload-tree mutations.
//
// LockAll is exclusive against everything. LockAlbum is exclusive per album
// but lets different albums proceed in parallel. The zero value is not
// usable; call New.
type Locker struct {
	global sync.RWMutex

	mu     sync.Mutex
	albums map[string]*albumLock
}

type albumLock struct {
	mu   sync.Mutex
	refs int
}

// New returns an unlocked Locker.
func New() *Locker {
	return &Locker{albums: make(map[string]*albumLock)}
}

// LockAll blocks until no other holder remains and returns the release
// function. Used for whole-tree passes such as reconciliation.
func (l *Locker) LockAll() (unlock func()) {
	l.global.Lock()
	return l.global.Unlock
}

// LockAlbum blocks until album is free and no LockAll is held.
func (l *Locker) LockAlbum(album string) (unlock func()) {
	l.global.RLock()

	l.mu.Lock()
	al, ok := l.albums[album]
	if !ok {
		al = &albumLock{}
		l.albums[album] = al
	}
	al.refs++
	l.mu.Unlock()

	al.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			al.mu.Unlock()

			l.mu.Lock()
			al.refs--
			if al.refs == 0 {
				delete(l.albums, album)
			}
			l.mu.Unlock()

			l.global.RUnlock()
		})
	}
}

// held reports the number of albums with a holder or waiter.
func (l *Locker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.albums)
}
