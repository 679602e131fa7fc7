package session

import "sync"

const LoginPath = "/login"

// PublicPaths are reachable without a session.
var PublicPaths = []string{LoginPath, "/register", "/forgot-password"}

// IsPublicPath reports whether path needs no session.
func IsPublicPath(path string) bool {
	for _, p := range PublicPaths {
		if p == path {
			return true
		}
	}
	return false
}

// Navigator is the client's current view location. The manager uses it to
// send the user to the login view when a session cannot be recovered.
type Navigator interface {
	CurrentPath() string
	Navigate(path string)
}

// PathNavigator records the current path and reports navigations to an
// optional callback. It is the Navigator used by non-graphical clients.
type PathNavigator struct {
	mu     sync.Mutex
	path   string
	onMove func(path string)
}

func NewPathNavigator(start string, onMove func(path string)) *PathNavigator {
	return &PathNavigator{path: start, onMove: onMove}
}

func (n *PathNavigator) CurrentPath() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.path
}

func (n *PathNavigator) Navigate(path string) {
	n.mu.Lock()
	n.path = path
	onMove := n.onMove
	n.mu.Unlock()
	if onMove != nil {
		onMove(path)
	}
}
