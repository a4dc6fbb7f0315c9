package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/yanun0323/errors"

	"ledger/internal/calc"
	"ledger/internal/journal"
	"ledger/internal/schema"
	"ledger/pkg/uds"
)

func main() {
	dir := flag.String("dir", "journal", "Journal directory")
	prefix := flag.String("prefix", "", "Journal file prefix (default: journal)")
	fromSeq := flag.Uint64("from-seq", 0, "Skip records with a lower sequence")
	types := flag.String("types", "", "Comma separated event types to keep (default: all)")
	speed := flag.Float64("speed", 0, "Playback speed (1=real-time, 0=no pacing)")
	noChecksum := flag.Bool("no-checksum", false, "Disable checksum validation")
	maxPayload := flag.Int("max-payload", 0, "Max payload size in bytes (0=unlimited)")
	decode := flag.Bool("decode", false, "Decode notification payloads")
	listen := flag.String("listen", "", "Listen on a socket for forwarded records instead of reading -dir")
	flag.Parse()

	filter, err := parseTypes(*types)
	if err != nil {
		log.Fatalf("invalid -types: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := &printer{out: os.Stdout, decode: *decode, types: filter}
	if *listen != "" {
		opts := journal.ReaderOptions{DisableChecksum: *noChecksum, MaxPayloadSize: *maxPayload}
		if err := runListen(ctx, *listen, opts, p); err != nil {
			log.Fatalf("listen failed: %v", err)
		}
		return
	}

	replay, err := journal.NewReplay(journal.ReplayConfig{
		Dir:             *dir,
		FilePrefix:      *prefix,
		FromSeq:         *fromSeq,
		Types:           filter,
		Speed:           *speed,
		DisableChecksum: *noChecksum,
		MaxPayloadSize:  *maxPayload,
	})
	if err != nil {
		log.Fatalf("replay init failed: %v", err)
	}
	if err := replay.Run(ctx, p.print); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("replay run failed: %v", err)
	}
}

// runListen prints records forwarded by bankd until ctx is done.
func runListen(ctx context.Context, path string, opts journal.ReaderOptions, p *printer) error {
	srv, err := uds.NewServer(path)
	if err != nil {
		return err
	}
	if err := srv.Listen(); err != nil {
		return err
	}
	log.Printf("listening on %s", srv.Path())
	return srv.Serve(ctx, func(ctx context.Context, conn *net.UnixConn) {
		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		defer stop()
		reader := journal.NewReader(conn, opts)
		for {
			rec, err := reader.Next()
			if err != nil {
				if !errors.Is(err, io.EOF) && ctx.Err() == nil {
					log.Printf("forwarded stream closed: %v", err)
				}
				return
			}
			if p.types != nil && !p.types[uint16(rec.Header.Type)] {
				continue
			}
			if err := p.print(rec); err != nil {
				log.Printf("print: %v", err)
			}
		}
	})
}

func parseTypes(s string) (map[uint16]bool, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	out := make(map[uint16]bool)
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		t, ok := lookupType(name)
		if !ok {
			return nil, fmt.Errorf("unknown event type %q", name)
		}
		out[uint16(t)] = true
	}
	return out, nil
}

func lookupType(name string) (schema.EventType, bool) {
	for t := schema.EventBankInitialized; t <= schema.MaxEventType; t++ {
		if strings.EqualFold(t.String(), name) {
			return t, true
		}
	}
	return schema.EventUnknown, false
}

type printer struct {
	mu     sync.Mutex
	out    io.Writer
	decode bool
	types  map[uint16]bool
	index  int
}

func (p *printer) print(rec journal.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.index++
	h := rec.Header
	fmt.Fprintf(p.out, "%06d seq=%d type=%s src=%d slot=%d ts_event=%d ts_recv=%d len=%d\n",
		p.index, h.Seq, h.Type, h.Source, h.TraceID, h.TsEvent, h.TsRecv, len(rec.Payload))
	if !p.decode {
		return nil
	}
	n, err := rec.Notification()
	if err != nil {
		fmt.Fprintf(p.out, "  decode failed: %v\n", err)
		return nil
	}
	fmt.Fprintf(p.out, "  %s\n", describe(n))
	return nil
}

func describe(n schema.Notification) string {
	amt := calc.FormatUnits
	switch n.Type {
	case schema.EventBankInitialized:
		return fmt.Sprintf("admin=%s reserve=%s", n.Actor, amt(n.BankBalance))
	case schema.EventUserCreated, schema.EventUserDeleted:
		return fmt.Sprintf("owner=%s users=%d", n.Actor, n.TotalUsers)
	case schema.EventDeposit, schema.EventWithdraw:
		return fmt.Sprintf("owner=%s amount=%s balance=%s", n.Actor, amt(n.Amount), amt(n.Balance))
	case schema.EventBalanceChecked:
		return fmt.Sprintf("owner=%s balance=%s staked=%s lent=%s", n.Actor, amt(n.Balance), amt(n.StakedBalance), amt(n.LentBalance))
	case schema.EventStake, schema.EventUnstake:
		return fmt.Sprintf("owner=%s amount=%s reward=%s staked=%s", n.Actor, amt(n.Amount), amt(n.Reward), amt(n.StakedBalance))
	case schema.EventBorrow:
		return fmt.Sprintf("owner=%s amount=%s collateral=%s", n.Actor, amt(n.Amount), amt(n.Collateral))
	case schema.EventRepay:
		return fmt.Sprintf("owner=%s principal=%s interest=%s total=%s", n.Actor, amt(n.Amount), amt(n.Interest), amt(n.Total))
	case schema.EventTransfer:
		return fmt.Sprintf("from=%s to=%s amount=%s balance=%s", n.Actor, n.Counterparty, amt(n.Amount), amt(n.Balance))
	case schema.EventBankStatusChanged:
		return fmt.Sprintf("admin=%s operational=%t", n.Actor, n.IsOperational)
	case schema.EventBankFundsAdded:
		return fmt.Sprintf("admin=%s amount=%s bank=%s", n.Actor, amt(n.Amount), amt(n.BankBalance))
	default:
		return fmt.Sprintf("%+v", n)
	}
}
