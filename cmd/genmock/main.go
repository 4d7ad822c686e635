// Command genmock builds a synthetic sounding archive, and optionally a
// matching climatology, for demos and local testing. Output is reproducible
// for a given seed and reference time.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -archive bufkit/archive.db \
//	  -sites kmso,kgpi,kbzn \
//	  -ref 2017-09-02T12:00:00Z \
//	  -days 3 \
//	  -climo-url postgres://climo@localhost/climo
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/couchcryptid/sounding-graphs/internal/adapter/postgres"
	"github.com/couchcryptid/sounding-graphs/internal/adapter/sqlite"
	"github.com/couchcryptid/sounding-graphs/internal/climo"
	"github.com/couchcryptid/sounding-graphs/internal/domain"
	"github.com/couchcryptid/sounding-graphs/internal/sounding"
)

// knownSites seeds names and station numbers for familiar IDs.
var knownSites = map[string]domain.Site{
	"kmso": {ID: "kmso", StationNum: 727730, Name: "Missoula", State: "MT", TimeZone: "America/Denver"},
	"kgpi": {ID: "kgpi", StationNum: 727790, Name: "Kalispell", State: "MT", TimeZone: "America/Denver"},
	"kbzn": {ID: "kbzn", StationNum: 726797, Name: "Bozeman", State: "MT", TimeZone: "America/Denver"},
	"kboi": {ID: "kboi", StationNum: 726810, Name: "Boise", State: "ID", TimeZone: "America/Boise"},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	archivePath := flag.String("archive", "bufkit/archive.db", "path of the archive to create or extend")
	siteList := flag.String("sites", "kmso,kgpi", "comma separated site IDs")
	refStr := flag.String("ref", "2017-09-02T12:00:00Z", "reference time (RFC 3339)")
	days := flag.Int("days", 3, "days of model cycles before the reference time")
	seed := flag.Uint64("seed", 1, "random seed")
	climoURL := flag.String("climo-url", "", "PostgreSQL URL to seed climatology (optional)")
	flag.Parse()

	ref, err := time.Parse(time.RFC3339, *refStr)
	if err != nil {
		return fmt.Errorf("invalid -ref: %w", err)
	}
	if *days < 0 {
		return errors.New("-days must not be negative")
	}
	sites := parseSites(*siteList)
	if len(sites) == 0 {
		return errors.New("-sites is empty")
	}

	ctx := context.Background()
	arc, err := sqlite.Open(*archivePath)
	if err != nil {
		return err
	}
	defer arc.Close()

	rng := rand.New(rand.NewPCG(*seed, *seed))
	start := ref.Add(-time.Duration(*days) * 24 * time.Hour)
	runs := 0
	for _, site := range sites {
		if err := arc.AddSite(ctx, site); err != nil {
			return err
		}
		for _, model := range domain.Models() {
			for _, init := range cycles(model, start, ref) {
				var buf bytes.Buffer
				if err := sounding.Encode(&buf, generateRun(site, model, init, rng)); err != nil {
					return fmt.Errorf("encode %s/%s %s: %w", site.ID, model, init, err)
				}
				if err := arc.AddRun(ctx, site.ID, model, buf.String()); err != nil {
					return err
				}
				runs++
			}
		}
		log.Printf("%s: archived", site.ID)
	}
	log.Printf("wrote %d runs for %d sites to %s", runs, len(sites), arc.Path())

	if *climoURL == "" {
		return nil
	}
	return seedClimo(ctx, *climoURL, sites, start, ref)
}

func parseSites(list string) []domain.Site {
	var sites []domain.Site
	for _, id := range strings.Split(list, ",") {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" {
			continue
		}
		site, ok := knownSites[id]
		if !ok {
			site = domain.Site{ID: id}
		}
		sites = append(sites, site)
	}
	return sites
}

func seedClimo(ctx context.Context, url string, sites []domain.Site, start, ref time.Time) error {
	db, err := postgres.Open(ctx, postgres.DefaultConfig(url))
	if err != nil {
		return err
	}
	defer db.Close()

	store := postgres.NewClimoStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	// Cover the longest horizon past the reference time.
	end := ref.Add(domain.GFS.Horizon())
	rows := 0
	for _, site := range sites {
		for _, model := range domain.Models() {
			for t := start.UTC().Truncate(time.Hour); !t.After(end); t = t.Add(time.Hour) {
				if err := store.Upsert(ctx, site.ID, model.String(), climo.ElementHDW, climo.KeyFor(t), hdwDeciles(t)); err != nil {
					return err
				}
				rows++
			}
		}
	}
	log.Printf("seeded %d climatology rows", rows)
	return nil
}
