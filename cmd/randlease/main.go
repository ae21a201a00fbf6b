package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Snawoot/randlease/allocator"
	"github.com/Snawoot/randlease/hosts"
	"github.com/Snawoot/randlease/iprange"
	"github.com/Snawoot/randlease/lease"
	"github.com/Snawoot/randlease/permutation"
)

const (
	ProgName = "randlease"
)

var (
	home, _ = os.UserHomeDir()
	version = "undefined"

	showVersion = flag.Bool("version", false, "show program version and exit")
	rangeSpec   = flag.String("range", "", "comma-separated address ranges (\"start-end\" or a single address)")
	dbPath      = flag.String("db-path", filepath.Join(home, ".randlease"), "lease database directory")
	leaseTTL    = flag.Duration("ttl", 4*time.Hour, "lease lifetime")
	reserveSpec = flag.String("reserve", "", "host reservations (\"client=addr[,client=addr...]\")")
	shuffle     = flag.Bool("shuffle", false, "print every address of the ranges in random order and exit")
	clientID    = flag.String("client", "", "ensure a lease for this client identifier")
	hostname    = flag.String("hostname", "", "hostname to record with the lease")
	clients     = flag.Int("clients", 0, "ensure leases for this many generated demo clients")
	releaseID   = flag.String("release", "", "release the lease of this client identifier and exit")
)

func parseRanges(spec string) ([]iprange.Range, error) {
	if spec == "" {
		return nil, fmt.Errorf("no address ranges specified")
	}
	var res []iprange.Range
	for _, part := range strings.Split(spec, ",") {
		r, err := iprange.Parse(part)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, nil
}

func run() int {
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return 0
	}

	ranges, err := parseRanges(*rangeSpec)
	if err != nil {
		log.Fatalf("can't parse address ranges: %v", err)
	}

	if *shuffle {
		for _, r := range ranges {
			p := permutation.New(r)
			for {
				addr, done := p.Next()
				fmt.Println(addr)
				if done {
					break
				}
			}
		}
		return 0
	}

	reserved, err := hosts.Parse(*reserveSpec)
	if err != nil {
		log.Fatalf("can't parse host reservations: %v", err)
	}

	alloc, err := allocator.New(ranges...)
	if err != nil {
		log.Fatalf("can't create allocator: %v", err)
	}

	ensureDir(*dbPath)
	mgr, err := lease.New(*dbPath, alloc, reserved)
	if err != nil {
		log.Fatalf("can't open lease database: %v", err)
	}
	defer mgr.Close()

	switch {
	case *releaseID != "":
		if err := mgr.Release(*releaseID); err != nil {
			log.Fatalf("can't release lease: %v", err)
		}
	case *clientID != "":
		addr, err := mgr.EnsureLease(*clientID, *hostname, *leaseTTL)
		if err != nil {
			log.Fatalf("can't lease address: %v", err)
		}
		fmt.Println(addr)
	case *clients > 0:
		for i := 0; i < *clients; i++ {
			id := uuid.NewString()
			addr, err := mgr.EnsureLease(id, "", *leaseTTL)
			if err != nil {
				log.Fatalf("can't lease address for client %s: %v", id, err)
			}
			fmt.Printf("%s\t%s\n", id, addr)
		}
	default:
		log.Fatalf("nothing to do: specify -shuffle, -client, -clients or -release")
	}

	return 0
}

func ensureDir(path string) {
	if err := os.MkdirAll(path, 0700); err != nil {
		log.Fatalf("failed to create database directory: %v", err)
	}
}

func main() {
	log.Default().SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	log.Default().SetPrefix(strings.ToUpper(ProgName) + ": ")
	log.SetOutput(os.Stderr)
	os.Exit(run())
}
