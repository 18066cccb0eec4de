// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// collectived is a tiny HTTP harness over pkg/collective: it declares one
// PUSH_PULL, one ALLTOALL, and one ALLGATHER context at startup and
// exposes endpoints that drive each operation end to end against the
// configured PS/reducer/compressor collaborators, so you can curl it to
// watch a collective operation complete without wiring a multi-rank
// cluster.
//
// Usage:
//
//	go run ./cmd/collectived -http :8090 -ps mock
//	curl -X POST "localhost:8090/push_pull?bytes=4096"
//	curl -X POST "localhost:8090/allgather?bytes=256"
//	curl localhost:8090/healthz
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"distcomm/internal/collab/compressor"
	"distcomm/internal/collab/psclient"
	"distcomm/internal/collab/reducer"
	"distcomm/internal/config"
	"distcomm/internal/dispatch"
	"distcomm/internal/keycodec"
	"distcomm/internal/telemetry"
	"distcomm/pkg/collective"
)

func main() {
	rank := flag.Int("rank", 0, "this process's rank")
	numWorker := flag.Int("num_worker", 1, "NUM_WORKER")
	numServer := flag.Int("num_server", 1, "NUM_SERVER")
	psAdapter := flag.String("ps", "mock", "PSClient adapter: mock, redis, kafka")
	redisAddr := flag.String("redis_addr", "", "Redis address for -ps=redis; empty uses an in-process fake")
	kafkaTopic := flag.String("kafka_topic", "distcomm-ps", "Kafka topic for -ps=kafka")
	keyHashFn := flag.String("key_hash_fn", "built_in", "KEY_HASH_FN: djb2, djb2-colocate, sdbm, naive, built_in, mixed")
	partitionBytes := flag.Int64("partition_bytes", 4096000, "PARTITION_BYTES")
	metricsAddr := flag.String("metrics_addr", "", "if non-empty, expose Prometheus /metrics on this address")
	addr := flag.String("http", ":8090", "HTTP listen address")
	flag.Parse()

	opts := config.FromEnv()
	opts.NumWorker = *numWorker
	opts.NumServer = *numServer
	opts.KeyHashFn = keycodec.HashFn(*keyHashFn)
	opts.PartitionBytes = *partitionBytes

	telemetry.Enable(telemetry.Config{Enabled: *metricsAddr != "", MetricsAddr: *metricsAddr})

	ps, err := psclient.Build(*psAdapter, psclient.Options{RedisAddr: *redisAddr, KafkaTopic: *kafkaTopic})
	if err != nil {
		log.Fatalf("build ps client: %v", err)
	}

	rt, st := collective.New(opts, *rank, collective.Collaborators{
		PS:         ps,
		Reducer:    reducer.NewMock(),
		Compressor: compressor.RunLength{},
	})
	if st != nil {
		log.Fatalf("new runtime: %v", st)
	}
	if st := rt.Init(); st != nil {
		log.Fatalf("init runtime: %v", st)
	}
	defer rt.Shutdown()

	if _, st := rt.Declare("demo-push-pull", collective.PushPull, -1, -1); st != nil {
		log.Fatalf("declare push_pull context: %v", st)
	}
	if _, st := rt.Declare("demo-alltoall", collective.Alltoall, -1, -1); st != nil {
		log.Fatalf("declare alltoall context: %v", st)
	}
	if _, st := rt.DeclareAllgather("demo-allgather", -1); st != nil {
		log.Fatalf("declare allgather context: %v", st)
	}

	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": rt.IsInitialized(), "time": time.Now().UTC()})
	})

	http.HandleFunc("/push_pull", func(w http.ResponseWriter, r *http.Request) {
		n := intQuery(r, "bytes", 4096)
		data := make([]byte, n)
		handle, st := rt.PushPull("demo-push-pull", data, 0, dispatch.DeviceCPU)
		if st != nil {
			http.Error(w, st.Error(), http.StatusBadRequest)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if st := handle.Wait(ctx); st != nil {
			http.Error(w, st.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"op": "push_pull", "bytes": n, "done": true})
	})

	http.HandleFunc("/alltoall", func(w http.ResponseWriter, r *http.Request) {
		n := intQuery(r, "bytes", 256)
		sendData := [][]byte{make([]byte, n)} // single-peer demo: only ourselves
		recvSizes := []int64{int64(n)}
		handle, st := rt.Alltoall("demo-alltoall", sendData, recvSizes, 0)
		if st != nil {
			http.Error(w, st.Error(), http.StatusBadRequest)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if st := handle.Wait(ctx); st != nil {
			http.Error(w, st.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"op": "alltoall", "received_bytes": len(handle.Recv(*rank))})
	})

	http.HandleFunc("/allgather", func(w http.ResponseWriter, r *http.Request) {
		n := intQuery(r, "bytes", 256)
		handle, st := rt.Allgather("demo-allgather", make([]byte, n), 0)
		if st != nil {
			http.Error(w, st.Error(), http.StatusBadRequest)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if st := handle.Wait(ctx); st != nil {
			http.Error(w, st.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"op": "allgather", "bytes": n})
	})

	server := &http.Server{Addr: *addr, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Printf("collectived listening on %s (rank %d, ps=%s)", *addr, *rank, *psAdapter)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(ctx)
}

func intQuery(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
