// A stand-in for the REST ingestion gateway, for local runs of restpub
// without a real broker. It accepts Basic-authenticated produce
// requests, saves each record to an SQLite database, assigns a
// partition and offset, and replies with the gateway's "offsets"
// response shape.
// It exposes the following endpoints:
// POST /topics/{topic}/records - Accept a batch of records for a topic
// GET  /topics/{topic}/total   - Get the number of records stored for a topic
// POST /shutdown               - Gracefully shut down the server

package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	// Routing proposal extension to go stdlib in go 1.22
	// See: https://github.com/golang/go/issues/61410
	"github.com/jba/muxpatterns"
)

func main() {

	slog.Info("restgw-mock start")
	defer slog.Info("restgw-mock exited")

	// Parse command line arguments
	dbURL := flag.String("db", "file:restgw-mock.db?vacuum=1", "URL connection to the SQLite database")
	httpAddress := flag.String("http-address", ":8082", "Host and port to start the gateway on, defaults to ':8082'")
	username := flag.String("username", "admin", "Basic auth username clients must present")
	password := flag.String("password", "admin", "Basic auth password clients must present")
	partitions := flag.Int("partitions", 3, "Number of partitions per topic")
	flag.Parse()

	ctx := context.Background()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Open the SQLite database
	db, err := sql.Open("sqlite3", *dbURL)
	if err != nil {
		slog.Error("open db", slog.Any("error", err), slog.String("url", *dbURL))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("db open ok")

	// Migrate the database
	err = MigrateDB(ctx, db)
	if err != nil {
		slog.Error("migrating db", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("db migrated ok")

	err = TruncateDB(ctx, db)
	if err != nil {
		slog.Error("truncate db", slog.Any("error", err))
		os.Exit(1)
	}

	// Set up a channel to receive signals
	done := make(chan os.Signal, 1)

	gw := Gateway{Db: db, Username: *username, Password: *password, Partitions: *partitions, done: done}
	mux := muxpatterns.NewServeMux()
	mux.HandleFunc("POST /topics/{topic}/records", func(w http.ResponseWriter, r *http.Request) {
		gw.ProduceRecords(w, r, ctx, mux.PathValue(r, "topic"))
	})
	mux.HandleFunc("GET /topics/{topic}/total", func(w http.ResponseWriter, r *http.Request) {
		gw.TopicTotal(w, r, ctx, mux.PathValue(r, "topic"))
	})
	mux.HandleFunc("POST /shutdown", func(w http.ResponseWriter, r *http.Request) {
		gw.done <- syscall.SIGTERM
		slog.Info("shutdown from API call")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("shutting down"))
	})

	slog.Info("gateway starting", slog.Any("address", *httpAddress))
	server := &http.Server{
		Addr:    *httpAddress,
		Handler: mux,
	}
	go server.ListenAndServe()

	// Exit on these signals
	signals := []os.Signal{syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT}
	signal.Notify(done, signals...)
	go func() {
		sig := <-done
		slog.Info("got signal", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Info("failed http server shutdown", slog.Any("error", err))
		}
	}()

	// Wait for a signal to exit
	<-done
}

// Record mirrors one element of the produce request envelope.
type Record struct {
	Value string `json:"value"`
}

type RecordEnvelope struct {
	Records []Record `json:"records"`
}

type OffsetEntry struct {
	Partition int64 `json:"partition"`
	Offset    int64 `json:"offset"`
}

type ProduceResponse struct {
	Offsets []OffsetEntry `json:"offsets"`
}

type Gateway struct {
	Db         *sql.DB
	Username   string
	Password   string
	Partitions int
	done       chan os.Signal
}

func MigrateDB(ctx context.Context, db *sql.DB) error {

	// Create the records table if not exists
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			topic TEXT NOT NULL,
			partition_id INTEGER NOT NULL,
			record_offset INTEGER NOT NULL,
			value TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func TruncateDB(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `DELETE FROM records`)
	return err
}

// AppendRecord stores one record, assigning it the topic's next
// partition round-robin and the next offset within that partition.
func AppendRecord(ctx context.Context, db *sql.DB, topic string, partitions int, value string) (OffsetEntry, error) {
	entry := OffsetEntry{}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return entry, err
	}

	var total int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE topic = ?`, topic).Scan(&total); err != nil {
		tx.Rollback()
		return entry, err
	}
	entry.Partition = total % int64(partitions)

	var nextOffset sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(record_offset) + 1 FROM records WHERE topic = ? AND partition_id = ?`,
		topic, entry.Partition).Scan(&nextOffset); err != nil {
		tx.Rollback()
		return entry, err
	}
	if nextOffset.Valid {
		entry.Offset = nextOffset.Int64
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO records (id, topic, partition_id, record_offset, value) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), topic, entry.Partition, entry.Offset, value)
	if err != nil {
		tx.Rollback()
		return entry, err
	}

	return entry, tx.Commit()
}

func TopicCount(ctx context.Context, db *sql.DB, topic string) (int64, error) {
	var total int64
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE topic = ?`, topic).Scan(&total)
	return total, err
}

func (gw Gateway) authorized(r *http.Request) bool {
	user, pass, ok := r.BasicAuth()
	return ok && user == gw.Username && pass == gw.Password
}

// ProduceRecords handles POST requests to append records to a topic.
// The request body is the {"records":[{"value":...}]} envelope; the
// response is the {"offsets":[...]} shape with one entry per record.
func (gw Gateway) ProduceRecords(w http.ResponseWriter, r *http.Request, ctx context.Context, topic string) {
	if !gw.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="restgw-mock"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(r.Body)
	defer r.Body.Close()

	if err != nil {
		slog.Error("Error reading request body", slog.Any("error", err))
		http.Error(w, "Error reading request body", http.StatusInternalServerError)
		return
	}

	var envelope RecordEnvelope
	err = json.Unmarshal(body, &envelope)
	if err != nil {
		slog.Error("Error unmarshalling request body", slog.Any("error", err))
		http.Error(w, "Error unmarshalling request body", http.StatusBadRequest)
		return
	}
	if len(envelope.Records) == 0 {
		http.Error(w, "No records in request", http.StatusBadRequest)
		return
	}

	response := ProduceResponse{Offsets: make([]OffsetEntry, 0, len(envelope.Records))}
	for _, rec := range envelope.Records {
		entry, err := AppendRecord(ctx, gw.Db, topic, gw.Partitions, rec.Value)
		if err != nil {
			slog.Error("Error appending record", slog.Any("error", err), slog.String("topic", topic))
			http.Error(w, "Error appending record", http.StatusInternalServerError)
			return
		}
		response.Offsets = append(response.Offsets, entry)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// TopicTotal reports how many records a topic holds.
func (gw Gateway) TopicTotal(w http.ResponseWriter, r *http.Request, ctx context.Context, topic string) {
	if !gw.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="restgw-mock"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	total, err := TopicCount(ctx, gw.Db, topic)
	if err != nil {
		slog.Error("Error counting records", slog.Any("error", err), slog.String("topic", topic))
		http.Error(w, "Error counting records", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{"total": total})
}
