package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathNavigator(t *testing.T) {
	t.Parallel()

	var moves []string
	nav := NewPathNavigator("/tickets", func(p string) { moves = append(moves, p) })
	nav.Navigate(LoginPath)

	assert.Equal(t, LoginPath, nav.CurrentPath())
	assert.Equal(t, []string{LoginPath}, moves)
}

func TestIsPublicPath(t *testing.T) {
	t.Parallel()

	assert.True(t, IsPublicPath("/login"))
	assert.True(t, IsPublicPath("/forgot-password"))
	assert.False(t, IsPublicPath("/tickets"))
}
