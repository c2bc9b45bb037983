package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"markme-server-go/models"
)

const (
	rosterKey              = "markme:classes"     // Hash: className -> JSON student list
	attendancePrefix       = "markme:attendance:" // Hash prefix: markme:attendance:{class} -> date -> JSON students
	attendanceSavedChannel = "markme:attendance-saved"
	defaultRedisOpTimeout  = 2 * time.Second
)

// RedisMirror copies persisted rosters and attendance into Redis for read-only consumers
// (dashboards, other services). The JSON documents stay the source of truth; mirror failures
// are logged and never reach the store's callers.
type RedisMirror struct {
	Client  *redis.Client
	Ctx     context.Context // Base context
	Timeout time.Duration
}

// NewRedisMirror creates a new RedisMirror instance
func NewRedisMirror(client *redis.Client) *RedisMirror {
	return &RedisMirror{
		Client:  client,
		Ctx:     context.Background(),
		Timeout: defaultRedisOpTimeout,
	}
}

// Helper to generate the per-class attendance hash key
func getAttendanceKey(className string) string {
	return attendancePrefix + className
}

// MirrorRoster replaces the roster hash with the given classes
func (m *RedisMirror) MirrorRoster(classes []models.ClassInfo) {
	ctx, cancel := context.WithTimeout(m.Ctx, m.Timeout)
	defer cancel()

	fields := make(map[string]interface{}, len(classes))
	for _, c := range classes {
		data, err := json.Marshal(c.Students)
		if err != nil {
			log.Printf("Error encoding roster of class %s for Redis: %v", c.ClassName, err)
			return
		}
		fields[c.ClassName] = data
	}

	pipe := m.Client.TxPipeline()
	pipe.Del(ctx, rosterKey)
	if len(fields) > 0 {
		pipe.HSet(ctx, rosterKey, fields)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("Error mirroring class roster to Redis: %v", err)
	}
}

// MirrorAttendance stores the record under its class hash and announces it on the pub/sub channel
func (m *RedisMirror) MirrorAttendance(record models.ClassAttendance) {
	ctx, cancel := context.WithTimeout(m.Ctx, m.Timeout)
	defer cancel()

	students, err := json.Marshal(record.Students)
	if err != nil {
		log.Printf("Error encoding attendance of %s on %s for Redis: %v", record.ClassName, record.Date, err)
		return
	}
	payload, err := json.Marshal(record)
	if err != nil {
		log.Printf("Error encoding attendance of %s on %s for Redis: %v", record.ClassName, record.Date, err)
		return
	}

	pipe := m.Client.Pipeline()
	pipe.HSet(ctx, getAttendanceKey(record.ClassName), record.Date.Key(), students)
	pipe.Publish(ctx, attendanceSavedChannel, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("Error mirroring attendance of %s on %s to Redis: %v", record.ClassName, record.Date, err)
	}
}

// InitializeRedisClient creates a Redis client and checks the connection
func InitializeRedisClient(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), defaultRedisOpTimeout)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("could not connect to Redis at %s: %w", addr, err)
	}

	log.Printf("Successfully connected to Redis %s DB %d", addr, db)
	return rdb, nil
}
