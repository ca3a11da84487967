package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/annel0/gunpowder/internal/eventbus"
)

const timeFormat = "2006-01-02T15:04:05Z"

func main() {
	var (
		serverURL  = flag.String("server", nats.DefaultURL, "NATS server URL")
		stream     = flag.String("stream", eventbus.DefaultStream, "JetStream stream")
		command    = flag.String("cmd", "tail", "Command: tail, stats, types")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated)")
		worldID    = flag.String("world", "", "World ID filter")
		since      = flag.Duration("since", time.Hour, "Time duration since now (e.g., 1h, 30m)")
		limit      = flag.Int("limit", 100, "Maximum number of events")
		follow     = flag.Bool("follow", false, "Follow new events (like tail -f)")
	)
	flag.Parse()

	nc, err := nats.Connect(*serverURL, nats.Name("gunpowder-event-cli"))
	if err != nil {
		log.Fatalf("❌ Failed to connect to NATS: %v", err)
	}
	defer nc.Close()

	js, err := nc.JetStream()
	if err != nil {
		log.Fatalf("❌ JetStream unavailable: %v", err)
	}

	opts := TailOptions{
		Stream:     *stream,
		EventTypes: parseStringList(*eventTypes),
		WorldID:    *worldID,
		Since:      *since,
		Limit:      *limit,
		Follow:     *follow,
	}

	switch *command {
	case "tail":
		if err := tailEvents(js, opts); err != nil {
			log.Fatalf("❌ Tail failed: %v", err)
		}
	case "stats":
		if err := showStats(js, *stream); err != nil {
			log.Fatalf("❌ Stats failed: %v", err)
		}
	case "types":
		if err := showTypes(js, opts); err != nil {
			log.Fatalf("❌ Types failed: %v", err)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", *command)
		flag.Usage()
		os.Exit(2)
	}
}

// TailOptions — параметры чтения стрима.
type TailOptions struct {
	Stream     string
	EventTypes []string
	WorldID    string
	Since      time.Duration
	Limit      int
	Follow     bool
}

func (o TailOptions) subject() string {
	if len(o.EventTypes) == 1 {
		return eventbus.Subject(o.EventTypes[0])
	}
	return eventbus.Subject("*")
}

func (o TailOptions) match(ev *eventbus.Envelope) bool {
	if o.WorldID != "" && ev.Tenant != o.WorldID {
		return false
	}
	if len(o.EventTypes) == 0 {
		return true
	}
	for _, t := range o.EventTypes {
		if t == ev.EventType {
			return true
		}
	}
	return false
}

// readEvents читает события стрима начиная с now-Since и вызывает fn для
// каждого подходящего. Без Follow останавливается на конце стрима.
func readEvents(js nats.JetStreamContext, o TailOptions, fn func(*eventbus.Envelope) bool) error {
	sub, err := js.SubscribeSync(o.subject(),
		nats.BindStream(o.Stream),
		nats.OrderedConsumer(),
		nats.StartTime(time.Now().Add(-o.Since)),
	)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	for ctx.Err() == nil {
		wait := 2 * time.Second
		if o.Follow {
			wait = 500 * time.Millisecond
		}
		msg, err := sub.NextMsg(wait)
		if errors.Is(err, nats.ErrTimeout) {
			if o.Follow {
				continue
			}
			return nil
		}
		if err != nil {
			return err
		}

		var ev eventbus.Envelope
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			continue
		}
		if o.match(&ev) && !fn(&ev) {
			return nil
		}
	}
	return nil
}

func tailEvents(js nats.JetStreamContext, o TailOptions) error {
	fmt.Printf("📡 Streaming events from %s (since %v)...\n", o.Stream, o.Since)
	fmt.Println(strings.Repeat("-", 100))

	count := 0
	err := readEvents(js, o, func(ev *eventbus.Envelope) bool {
		count++
		fmt.Printf("[%s] %-18s world=%-10s %s %s\n",
			ev.Timestamp.Format(timeFormat), ev.EventType, ev.Tenant, ev.Metadata["cell"], string(ev.Payload))
		return o.Follow || count < o.Limit
	})
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("📊 Total events: %d\n", count)
	return err
}

func showStats(js nats.JetStreamContext, stream string) error {
	info, err := js.StreamInfo(stream)
	if err != nil {
		return fmt.Errorf("stream info: %w", err)
	}

	fmt.Printf("📊 Stream %s\n", info.Config.Name)
	fmt.Printf("   Subjects:  %s\n", strings.Join(info.Config.Subjects, ", "))
	fmt.Printf("   Messages:  %d\n", info.State.Msgs)
	fmt.Printf("   Bytes:     %d\n", info.State.Bytes)
	fmt.Printf("   Consumers: %d\n", info.State.Consumers)
	fmt.Printf("   First:     %s\n", info.State.FirstTime.Format(timeFormat))
	fmt.Printf("   Last:      %s\n", info.State.LastTime.Format(timeFormat))
	fmt.Printf("   Retention: %v\n", info.Config.MaxAge)
	return nil
}

func showTypes(js nats.JetStreamContext, o TailOptions) error {
	o.Follow = false
	counts := make(map[string]int)
	if err := readEvents(js, o, func(ev *eventbus.Envelope) bool {
		counts[ev.EventType]++
		return true
	}); err != nil {
		return err
	}

	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)

	fmt.Printf("📋 Event types since %v:\n", o.Since)
	for _, t := range types {
		fmt.Printf("   %-20s %d\n", t, counts[t])
	}
	return nil
}

func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
