// Package podinfo reads the pod identity the orchestrator injects into
// the environment. Values are recomputed per call and never cached, so
// /info always reflects the live environment; anything absent degrades
// to an "unknown" placeholder rather than an error.
package podinfo

import (
	"net"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/podpulse/podpulse/internal/version"
)

const (
	envPodName   = "HOSTNAME"
	envNamespace = "POD_NAMESPACE"
	envNodeName  = "NODE_NAME"
	envPodIP     = "POD_IP"

	unknownPod  = "unknown-pod"
	unknownNode = "unknown-node"
	unknown     = "unknown"
)

type Snapshot struct {
	PodName   string    `json:"pod_name"`
	Namespace string    `json:"namespace"`
	NodeName  string    `json:"node_name"`
	PodIP     string    `json:"pod_ip"`
	Hostname  string    `json:"hostname"`
	Version   string    `json:"version"`
	Time      time.Time `json:"time"`
}

// Gather returns a point-in-time identity snapshot.
// Name returns just the pod name, env first with a hostname fallback.
// Unlike Gather it never touches the resolver, so it is safe on the
// probe hot path where responses must return promptly.
func Name() string {
	if v := os.Getenv(envPodName); v != "" {
		return v
	}
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return unknownPod
}

func Gather() Snapshot {
	hostname := unknown
	if h, err := os.Hostname(); err == nil && h != "" {
		hostname = h
	}
	return Snapshot{
		PodName:   envOr(envPodName, unknownPod),
		Namespace: envOr(envNamespace, "default"),
		NodeName:  envOr(envNodeName, unknownNode),
		PodIP:     podIP(hostname),
		Hostname:  hostname,
		Version:   version.Get().Version,
		Time:      time.Now().UTC(),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func podIP(hostname string) string {
	if ip := os.Getenv(envPodIP); ip != "" {
		return ip
	}
	if hostname == unknown {
		return unknown
	}
	addrs, err := net.LookupIP(hostname)
	if err != nil {
		return unknown
	}
	for _, a := range addrs {
		if v4 := a.To4(); v4 != nil {
			return v4.String()
		}
	}
	if len(addrs) > 0 {
		return addrs[0].String()
	}
	return unknown
}

// EnvVar is one environment entry for /info, value masked when the
// name suggests a credential.
type EnvVar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

const maskedValue = "********"

// maxEnvValue keeps pathological env values from bloating responses.
const maxEnvValue = 100

// Environ returns the process environment sorted by name, with values
// of SECRET/PASSWORD/TOKEN/KEY variables masked.
func Environ() []EnvVar {
	raw := os.Environ()
	out := make([]EnvVar, 0, len(raw))
	for _, kv := range raw {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if sensitive(name) {
			value = maskedValue
		} else if len(value) > maxEnvValue {
			value = value[:maxEnvValue]
		}
		out = append(out, EnvVar{Name: name, Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func sensitive(name string) bool {
	u := strings.ToUpper(name)
	for _, marker := range []string{"SECRET", "PASSWORD", "TOKEN", "KEY"} {
		if strings.Contains(u, marker) {
			return true
		}
	}
	return false
}
