package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mohammed-shakir/f1-stats-cache/internal/core/config"
	"github.com/mohammed-shakir/f1-stats-cache/internal/invalidation"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to a TOML config file (defaults to $F1_CONFIG)")
	op := flag.String("op", invalidation.OpRaceCompleted, "race_completed|season_completed|correction")
	season := flag.String("season", "", "four digit season")
	round := flag.String("round", "", "round number (required for race_completed)")
	seq := flag.Uint64("seq", 0, "ordering value; defaults to the event timestamp")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}

	ev := invalidation.Event{
		Version: 1,
		Op:      *op,
		Season:  *season,
		Round:   *round,
		TS:      time.Now().UTC(),
		Seq:     *seq,
		Source:  "f1invalidate",
	}
	if err := ev.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid event: %v\n", err)
		return 2
	}

	pub, err := invalidation.NewPublisher(config.SplitCSV(cfg.Invalidation.Brokers), cfg.Invalidation.Topic)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer func() { _ = pub.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	part, off, err := pub.Publish(ctx, ev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	fmt.Printf("published %s season=%s round=%s to %s (partition %d, offset %d); %d keys affected\n",
		ev.Op, ev.Season, ev.Round, cfg.Invalidation.Topic, part, off, len(ev.Keys()))
	return 0
}
