// Package resolver maps signaling addresses to human readable labels for
// the reports.
package resolver

import (
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/sszokoly/avaya/internal/util"
	"github.com/valyala/fastjson"
)

// Resolver holds ip to label mappings. Unknown addresses resolve to
// themselves.
type Resolver struct {
	mu     sync.RWMutex
	labels map[string]string
}

// New creates an empty Resolver.
func New() *Resolver {
	return &Resolver{labels: make(map[string]string)}
}

// Set maps ip to label.
func (r *Resolver) Set(ip, label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.labels[ip] = label
}

// Label returns the label of ip, or ip itself.
func (r *Resolver) Label(ip string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if label, ok := r.labels[ip]; ok {
		return label
	}
	return ip
}

// Len is the number of known addresses.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.labels)
}

// LoadInterfaces labels every local IPv4 address with its interface name.
func (r *Resolver) LoadInterfaces() error {
	ifaces, err := net.Interfaces()
	if err != nil {
		return fmt.Errorf("list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			util.LogDebug("skip interface", util.Field{Key: "name", Value: iface.Name}, util.Field{Key: "error", Value: err.Error()})
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok || ipnet.IP.To4() == nil {
				continue
			}
			r.Set(ipnet.IP.String(), iface.Name)
		}
	}
	return nil
}

// LoadFile overlays labels from a JSON object file: {"10.0.0.1": "A1"}.
func (r *Resolver) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read labels: %w", err)
	}
	return r.LoadJSON(data)
}

// LoadJSON overlays labels from a JSON object.
func (r *Resolver) LoadJSON(data []byte) error {
	var p fastjson.Parser
	v, err := p.ParseBytes(data)
	if err != nil {
		return fmt.Errorf("parse labels: %w", err)
	}
	obj, err := v.Object()
	if err != nil {
		return fmt.Errorf("labels must be a JSON object: %w", err)
	}

	var visitErr error
	obj.Visit(func(key []byte, val *fastjson.Value) {
		if visitErr != nil {
			return
		}
		label, err := val.StringBytes()
		if err != nil {
			visitErr = fmt.Errorf("label of %s is not a string", key)
			return
		}
		r.Set(string(key), string(label))
	})
	return visitErr
}
