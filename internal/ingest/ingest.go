// Package ingest subscribes to a NATS subject carrying telegram triplets
// and feeds parsed flight records into storage. It is the live
// counterpart of the batch importer: one triplet per message instead of
// one spreadsheet per run.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"telegram_parser/internal/flightplan"
	"telegram_parser/internal/telegram"
)

// FlightSink receives parsed records. *storage.DB satisfies it.
type FlightSink interface {
	StoreFlights(ctx context.Context, recs []*telegram.FlightRecord) error
}

// Config holds the NATS connection settings.
type Config struct {
	URL     string // e.g. nats.DefaultURL
	Subject string // subject carrying triplet JSON
	Queue   string // queue group; empty means plain subscribe
}

// DefaultConfig returns the conventional local setup.
func DefaultConfig() Config {
	return Config{
		URL:     nats.DefaultURL,
		Subject: "telegrams.raw",
		Queue:   "telegram-parser",
	}
}

// Ack is the reply sent for request-style messages.
type Ack struct {
	SID   string `json:"sid,omitempty"`
	Error string `json:"error,omitempty"`
}

// Subscriber consumes triplet messages and stores the parsed records.
type Subscriber struct {
	parser *flightplan.Parser
	sink   FlightSink
	cfg    Config
	logger *slog.Logger
}

// New builds a Subscriber. It does not connect; Run does.
func New(parser *flightplan.Parser, sink FlightSink, cfg Config, logger *slog.Logger) *Subscriber {
	return &Subscriber{parser: parser, sink: sink, cfg: cfg, logger: logger}
}

// Run connects, subscribes and blocks until ctx is cancelled, then drains
// the subscription so in-flight messages finish.
func (s *Subscriber) Run(ctx context.Context) error {
	nc, err := nats.Connect(s.cfg.URL,
		nats.Name("telegram-parser"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return fmt.Errorf("connect %s: %w", s.cfg.URL, err)
	}
	defer nc.Close()

	handler := func(msg *nats.Msg) {
		s.handle(ctx, msg)
	}

	var sub *nats.Subscription
	if s.cfg.Queue != "" {
		sub, err = nc.QueueSubscribe(s.cfg.Subject, s.cfg.Queue, handler)
	} else {
		sub, err = nc.Subscribe(s.cfg.Subject, handler)
	}
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.cfg.Subject, err)
	}

	s.logger.Info("ingest listening", "url", s.cfg.URL, "subject", s.cfg.Subject, "queue", s.cfg.Queue)

	<-ctx.Done()

	if err := sub.Drain(); err != nil {
		return fmt.Errorf("drain: %w", err)
	}
	return nil
}

func (s *Subscriber) handle(ctx context.Context, msg *nats.Msg) {
	rec, err := s.Process(ctx, msg.Data)
	if err != nil {
		s.logger.Warn("message skipped", "subject", msg.Subject, "reason", err)
		s.reply(msg, Ack{Error: err.Error()})
		return
	}

	s.logger.Debug("flight stored", "sid", rec.SID, "region", rec.RegionName)
	s.reply(msg, Ack{SID: rec.SID})
}

// Process parses one triplet payload and stores the record. Split out
// from the NATS handler so it can be exercised without a broker.
func (s *Subscriber) Process(ctx context.Context, payload []byte) (*telegram.FlightRecord, error) {
	var t telegram.Triplet
	if err := json.Unmarshal(payload, &t); err != nil {
		return nil, fmt.Errorf("decode triplet: %w", err)
	}

	rec, err := s.parser.Parse(t.Center, t.SHR, t.DEP, t.ARR)
	if err != nil {
		return nil, err
	}

	if err := s.sink.StoreFlights(ctx, []*telegram.FlightRecord{rec}); err != nil {
		return nil, fmt.Errorf("store %s: %w", rec.SID, err)
	}
	return rec, nil
}

func (s *Subscriber) reply(msg *nats.Msg, ack Ack) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(ack)
	if err != nil {
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("ack failed", "subject", msg.Subject, "err", err)
	}
}
