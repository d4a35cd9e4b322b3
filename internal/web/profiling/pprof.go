// Package profiling mounts the runtime profiler and a runtime stats endpoint.
//
// Profiles expose goroutine stacks and heap contents; mount them only behind
// authentication.
package profiling

import (
	"net/http"
	"net/http/pprof"
	"runtime"

	"github.com/go-chi/chi/v5"

	"github.com/dragonbytelabs/dz/internal/web/response"
)

// Prefix is where Mount places the profiler
const Prefix = "/_/debug/pprof"

var named = []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"}

// Mount registers the pprof handlers under Prefix on r. Block and mutex
// sampling are switched on as a side effect.
func Mount(r chi.Router) {
	runtime.SetBlockProfileRate(1)
	runtime.SetMutexProfileFraction(1)

	r.Route(Prefix, func(r chi.Router) {
		r.Get("/", pprof.Index)
		r.Get("/cmdline", pprof.Cmdline)
		r.Get("/profile", pprof.Profile)
		r.Get("/symbol", pprof.Symbol)
		r.Post("/symbol", pprof.Symbol)
		r.Get("/trace", pprof.Trace)
		for _, name := range named {
			r.Handle("/"+name, pprof.Handler(name))
		}
	})
}

// Stats is a snapshot of the Go runtime
type Stats struct {
	Goroutines int    `json:"goroutines"`
	NumCPU     int    `json:"num_cpu"`
	GoVersion  string `json:"go_version"`
	Memory     Memory `json:"memory"`
}

// Memory holds the MemStats fields worth watching, in bytes
type Memory struct {
	Alloc      uint64 `json:"alloc"`
	TotalAlloc uint64 `json:"total_alloc"`
	Sys        uint64 `json:"sys"`
	HeapInuse  uint64 `json:"heap_inuse"`
	NumGC      uint32 `json:"num_gc"`
}

func ReadStats() Stats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return Stats{
		Goroutines: runtime.NumGoroutine(),
		NumCPU:     runtime.NumCPU(),
		GoVersion:  runtime.Version(),
		Memory: Memory{
			Alloc:      m.Alloc,
			TotalAlloc: m.TotalAlloc,
			Sys:        m.Sys,
			HeapInuse:  m.HeapInuse,
			NumGC:      m.NumGC,
		},
	}
}

// StatsHandler serves ReadStats as JSON
func StatsHandler(w http.ResponseWriter, r *http.Request) {
	response.OK(w, ReadStats())
}
