// 包 session：持有远端签发的 bearer 凭据；登出时通知已注册的失效回调
package session

import "sync"

type Session struct {
	mu       sync.RWMutex
	token    string
	onLogout []func()
}

func New(token string) *Session { return &Session{token: token} }

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// OnLogout：注册失效回调（如清空数据缓存）
func (s *Session) OnLogout(fn func()) {
	s.mu.Lock()
	s.onLogout = append(s.onLogout, fn)
	s.mu.Unlock()
}

// Logout：清除凭据并依次执行回调；回调在锁外执行，可安全回读 Token
func (s *Session) Logout() {
	s.mu.Lock()
	s.token = ""
	hooks := append([]func(){}, s.onLogout...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}
