package transport

import (
	"math/rand"
	"net/http"
)

var baseHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.5",
	"DNT":                       "1",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
}

// IdentityPool hands out request headers with a user agent picked at random
// from an immutable list.
type IdentityPool struct {
	userAgents []string
}

func NewIdentityPool(userAgents []string) *IdentityPool {
	agents := make([]string, 0, len(userAgents))
	for _, ua := range userAgents {
		if ua != "" {
			agents = append(agents, ua)
		}
	}
	return &IdentityPool{userAgents: agents}
}

// Headers returns a fresh header set for one request.
func (p *IdentityPool) Headers() http.Header {
	h := make(http.Header, len(baseHeaders)+1)
	for k, v := range baseHeaders {
		h.Set(k, v)
	}
	if ua := p.UserAgent(); ua != "" {
		h.Set("User-Agent", ua)
	}
	return h
}

func (p *IdentityPool) UserAgent() string {
	if p == nil || len(p.userAgents) == 0 {
		return ""
	}
	return p.userAgents[rand.Intn(len(p.userAgents))]
}
