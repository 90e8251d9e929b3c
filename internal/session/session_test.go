package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSession(t *testing.T) {
	s := New("")
	assert.Equal(t, "", s.Token())

	s.Set("abc")
	assert.Equal(t, "abc", s.Token())

	var seen []string
	s.OnLogout(func() { seen = append(seen, "store:"+s.Token()) })
	s.OnLogout(func() { seen = append(seen, "second") })

	s.Logout()
	assert.Equal(t, "", s.Token())
	assert.Equal(t, []string{"store:", "second"}, seen)
}
