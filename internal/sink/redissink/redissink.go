// Package redissink republishes datafeed packets over Redis pub/sub, with an
// optional per-device list backup for replay. It is the default --
// but not the only possible -- subscriber wired onto the session loop's
// datafeed bus in cmd/acquire.
package redissink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/openbench/acquire-core/internal/device"
	"github.com/openbench/acquire-core/pkg/datafeed"
)

// Sink publishes one JSON envelope per datafeed packet.
type Sink struct {
	client     *redis.Client
	channel    string
	backupList string
	log        *logrus.Logger
}

// envelope is the wire-visible shape of a published packet. Payload holds
// whichever concrete datafeed type the packet is (Header, Logic, Analog,
// ...); json.Marshal follows the interface value down to its concrete type
// on its own, so no per-type switch is needed to serialize it.
type envelope struct {
	DeviceID string    `json:"device_id"`
	Driver   string    `json:"driver"`
	Type     string    `json:"type"`
	Time     time.Time `json:"time"`
	Payload  any       `json:"payload,omitempty"`
}

// New dials Redis and verifies connectivity with a PING.
func New(addr, password, channel string, db, poolSize int, backupList string, log *logrus.Logger) (*Sink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redissink: connect to redis: %w", err)
	}

	log.Info("redissink: connected to redis")

	return &Sink{
		client:     client,
		channel:    channel,
		backupList: backupList,
		log:        log,
	}, nil
}

// Publish serializes packet and publishes it to the configured channel. It
// is intended to be wired as a session.DatafeedFunc (possibly wrapped to
// swallow its error, since subscribers cannot themselves fail a loop
// iteration).
func (s *Sink) Publish(ctx context.Context, inst *device.Instance, packet any) error {
	p, ok := packet.(datafeed.Packet)
	if !ok {
		return fmt.Errorf("redissink: packet is not a datafeed.Packet: %T", packet)
	}

	env := envelope{
		DeviceID: inst.ID.String(),
		Driver:   inst.Driver,
		Type:     datafeed.TypeOf(p).String(),
		Time:     time.Now().UTC(),
		Payload:  p,
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("redissink: marshal packet: %w", err)
	}

	if err := s.client.Publish(ctx, s.channel, body).Err(); err != nil {
		return fmt.Errorf("redissink: publish: %w", err)
	}

	if s.backupList != "" {
		key := fmt.Sprintf("%s:%s", s.backupList, inst.ID.String())
		if err := s.client.LPush(ctx, key, body).Err(); err != nil {
			s.log.WithError(err).Warn("redissink: list backup failed")
		} else {
			s.client.LTrim(ctx, key, 0, 999)
		}
	}

	return nil
}

// AsDatafeedFunc adapts Publish to session.DatafeedFunc, logging (rather
// than propagating) publish errors so one bad packet doesn't stop the loop
// from dispatching to other subscribers.
func (s *Sink) AsDatafeedFunc() func(inst *device.Instance, packet any) {
	return func(inst *device.Instance, packet any) {
		if err := s.Publish(context.Background(), inst, packet); err != nil {
			s.log.WithError(err).Error("redissink: publish failed")
		}
	}
}

// Close releases the underlying Redis connection pool.
func (s *Sink) Close() error {
	return s.client.Close()
}
