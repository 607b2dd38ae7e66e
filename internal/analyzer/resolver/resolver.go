package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

var ErrNoAddress = errors.New("没有可用的 IPv4 地址")

type lookupFunc func(ctx context.Context, network, host string) ([]net.IP, error)

type cacheEntry struct {
	ip        string
	err       error
	timestamp time.Time
}

// DNSResolver 提供带缓存的正向解析，失败结果同样缓存，避免重复等待超时。
type DNSResolver struct {
	cache   map[string]cacheEntry
	cacheMu sync.RWMutex
	lookup  lookupFunc
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
}

func NewDNSResolver(ttl, timeout time.Duration) *DNSResolver {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	r := &net.Resolver{PreferGo: true}
	return &DNSResolver{
		cache:   make(map[string]cacheEntry),
		lookup:  r.LookupIP,
		ttl:     ttl,
		timeout: timeout,
		now:     time.Now,
	}
}

// LookupIPv4 返回域名的第一个 IPv4 地址。
func (r *DNSResolver) LookupIPv4(host string) (string, error) {
	now := r.now()

	r.cacheMu.RLock()
	if e, ok := r.cache[host]; ok && now.Sub(e.timestamp) < r.ttl {
		r.cacheMu.RUnlock()
		return e.ip, e.err
	}
	r.cacheMu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	var ip string
	ips, err := r.lookup(ctx, "ip4", host)
	if err != nil {
		err = fmt.Errorf("解析 %s 失败：%w", host, err)
	} else if len(ips) == 0 {
		err = fmt.Errorf("解析 %s 失败：%w", host, ErrNoAddress)
	} else {
		ip = ips[0].String()
	}

	r.cacheMu.Lock()
	r.cache[host] = cacheEntry{ip: ip, err: err, timestamp: now}
	r.cacheMu.Unlock()

	return ip, err
}

// StartCleanup 周期性清理过期缓存，ctx 结束时退出。供常驻进程（server）使用。
func (r *DNSResolver) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Purge(r.now())
			}
		}
	}()
}

func (r *DNSResolver) Purge(now time.Time) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	for host, e := range r.cache {
		if now.Sub(e.timestamp) > r.ttl {
			delete(r.cache, host)
		}
	}
}

func (r *DNSResolver) cached() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}
