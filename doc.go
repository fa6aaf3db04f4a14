// Package waffledb provides an embedded time-series database engine: a
// single-process library that ingests tagged numeric samples, organizes
// them in per-metric columnar chunks on local disk, recovers in-flight
// writes from a write-ahead log after a crash, and serves range scans and
// aggregations (sum/avg/min/max/count) with optional equality tag filters.
//
// # Basic usage
//
// Open a database with default configuration:
//
//	db, err := waffledb.Open("mydb", waffledb.DefaultConfig("mydb"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
// Write data points:
//
//	err := db.Write(waffledb.Point{
//	    Metric:    "temperature",
//	    Tags:      map[string]string{"room": "kitchen"},
//	    Value:     21.5,
//	    Timestamp: time.Now().UnixNano(),
//	})
//
// Query data:
//
//	points := db.Query("temperature", start, end, map[string]string{"room": "kitchen"})
//	avg := db.Avg("temperature", start, end, nil)
//
// Or use the minimal textual grammar:
//
//	result, err := db.RunQuery("SELECT avg(temperature) FROM temperature")
//
// # Storage layout
//
// Writes are WAL-appended for durability, then handed to a lock-free
// ingress queue. A background flusher drains the queue every
// FlushInterval, appends rows into each metric's active chunk, and seals
// a chunk to disk once it reaches ChunkCapacity. Queries fan out over the
// active chunk and every sealed chunk for a metric, pruning by time range
// before scanning.
//
// Chunk storage is pluggable: the default persists one file per sealed
// chunk on local disk, an S3 storage backend can take its place, and
// optional decorators add snappy compression or at-rest AES-256-GCM
// encryption.
package waffledb
