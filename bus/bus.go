// Package bus implements a minimal cFS-style software bus: synchronous
// publish/subscribe of CCSDS-flavored packets between flight software
// components inside one process.
package bus

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// TopicTelemetry carries the per-step spacecraft telemetry packets.
const TopicTelemetry = "TELEMETRY"

// Packet type field values.
const (
	TypeTelemetry = 0
	TypeCommand   = 1
)

// APIDTelemetry is the application ID of the housekeeping telemetry stream.
const APIDTelemetry = 100

// Packet is a CCSDS-flavored space packet. Header fields follow the space
// packet primary header; the payload is a flat key/value map rather than an
// opaque octet string, and the checksum is the first 8 hex characters of an
// MD5 over the header fields and the canonical payload encoding.
type Packet struct {
	Version       int
	Type          int
	SecHdrFlag    int
	APID          int
	SequenceFlags int
	SequenceCount int
	DataLength    int
	Timestamp     float64
	Data          map[string]any
	Checksum      string
}

// canonicalData renders the payload map as "k=v;" pairs in sorted key order,
// so the checksum does not depend on map iteration order.
func canonicalData(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%v;", k, data[k])
	}
	return b.String()
}

func checksumOf(apid, pktType int, timestamp float64, canonical string) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%d%d%v%s", apid, pktType, timestamp, canonical)))
	return hex.EncodeToString(sum[:])[:8]
}

// ChecksumValid recomputes the packet checksum from its current fields and
// reports whether it matches the stored one.
func (p Packet) ChecksumValid() bool {
	return p.Checksum == checksumOf(p.APID, p.Type, p.Timestamp, canonicalData(p.Data))
}

// Handler receives packets published on a subscribed topic.
type Handler func(Packet)

// Message is one entry in the bus traffic log.
type Message struct {
	Topic  string
	Packet Packet
}

type subscriber struct {
	id int
	fn Handler
}

// Bus routes packets from publishers to topic subscribers synchronously and
// keeps a log of everything published. Safe for concurrent use.
type Bus struct {
	mu      sync.RWMutex
	subs    map[string][]subscriber
	log     []Message
	counter int
	nextSub int
}

// New constructs an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]subscriber)}
}

// Subscribe registers fn for packets published on topic. It returns an
// unsubscribe function.
func (b *Bus) Subscribe(topic string, fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextSub
	b.nextSub++
	b.subs[topic] = append(b.subs[topic], subscriber{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[topic]
		for i, s := range list {
			if s.id == id {
				b.subs[topic] = append(list[:i], list[i+1:]...)
				return
			}
		}
	}
}

// Publish logs the packet and delivers it to every subscriber of topic, in
// subscription order, on the caller's goroutine.
func (b *Bus) Publish(topic string, pkt Packet) {
	b.mu.Lock()
	b.log = append(b.log, Message{Topic: topic, Packet: pkt})
	handlers := make([]Handler, len(b.subs[topic]))
	for i, s := range b.subs[topic] {
		handlers[i] = s.fn
	}
	b.mu.Unlock()

	// Dispatch outside the lock so handlers may publish or subscribe.
	for _, fn := range handlers {
		fn(pkt)
	}
}

// CreatePacket assembles a packet with the next sequence count and a
// checksum over its fields.
func (b *Bus) CreatePacket(apid, pktType int, data map[string]any, timestamp float64) Packet {
	b.mu.Lock()
	seq := b.counter
	b.counter++
	b.mu.Unlock()

	canonical := canonicalData(data)
	return Packet{
		Version:       0,
		Type:          pktType,
		SecHdrFlag:    1,
		APID:          apid,
		SequenceFlags: 3,
		SequenceCount: seq,
		DataLength:    len(canonical),
		Timestamp:     timestamp,
		Data:          data,
		Checksum:      checksumOf(apid, pktType, timestamp, canonical),
	}
}

// Published returns how many packets have been published so far.
func (b *Bus) Published() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.log)
}

// Log returns a snapshot of the traffic log.
func (b *Bus) Log() []Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Message, len(b.log))
	copy(out, b.log)
	return out
}
