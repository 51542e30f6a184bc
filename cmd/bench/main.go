// Command bench runs a synthetic workload against a managed cache and
// exposes optional pprof/Prometheus endpoints.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IvanBrykalov/adaptivecache/cache"
	"github.com/IvanBrykalov/adaptivecache/manager"
	pmet "github.com/IvanBrykalov/adaptivecache/metrics/prom"
)

func main() {
	// ---- Flags ----
	var (
		maxEntries = flag.Int("entries", 100_000, "cache entry limit (0 = adaptive)")
		ttl        = flag.Duration("ttl", time.Minute, "default entry TTL")

		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		readPct  = flag.Int("reads", 80, "read percentage [0..100]")

		keys = flag.Int("keys", 1_000_000, "keyspace size")
		seed = flag.Int64("seed", time.Now().UnixNano(), "random seed")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
	)
	flag.Parse()

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", *pprofAddr)
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	// ---- Manager + cache under test ----
	m := manager.New(manager.DefaultConfig(), manager.Options{
		Metrics: pmet.NewManager(nil, "bench"),
	})
	if err := m.Start(); err != nil {
		log.Fatal(err)
	}
	defer m.Shutdown()

	c, err := manager.CreateCache(m, "bench", cache.Options[string, []byte]{
		MaxEntries: *maxEntries,
		DefaultTTL: *ttl,
		Metrics:    pmet.New(nil, "bench", "bench"),
	})
	if err != nil {
		log.Fatal(err)
	}

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			log.Printf("metrics: serving at %s", *metricsAddr)
			log.Println(http.ListenAndServe(*metricsAddr, mux))
		}()
	}

	// ---- Workload ----
	log.Printf("bench: %d workers, %s, %d%% reads, keyspace %d",
		*workers, *duration, *readPct, *keys)

	var ops atomic.Int64
	stop := time.Now().Add(*duration)
	payload := []byte("v")

	var wg sync.WaitGroup
	wg.Add(*workers)
	for w := 0; w < *workers; w++ {
		go func(id int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(*seed + int64(id)*7919))
			for time.Now().Before(stop) {
				k := "k:" + strconv.Itoa(r.Intn(*keys))
				if r.Intn(100) < *readPct {
					c.Get(k)
				} else {
					c.Set(k, payload)
				}
				ops.Add(1)
			}
		}(w)
	}
	wg.Wait()

	s := c.Stats()
	fmt.Printf("ops=%d (%.0f/s) size=%d hits=%d misses=%d hitRate=%.3f evictions=%d\n",
		ops.Load(), float64(ops.Load())/duration.Seconds(),
		s.Size, s.Hits, s.Misses, s.HitRate, s.Evictions)
}
