package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"hextactics.gg/internal/persistence/archive"
	"hextactics.gg/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "live":
			liveCmd(os.Args[2:])
			return
		case "archive":
			archiveCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints archived match ids with their meta, newest last.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	entries, err := os.ReadDir(filepath.Join(*dataDir, "archives"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	var metas []archive.MatchArchiveMeta
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		meta, err := archive.ReadMeta(*dataDir, e.Name())
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", e.Name(), err)
			continue
		}
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].CreatedAt < metas[j].CreatedAt })
	for _, m := range metas {
		printJSON(m)
	}
}

// archiveCmd dumps one archive: header only by default, every state with -states.
func archiveCmd(args []string) {
	fs := flag.NewFlagSet("archive", flag.ExitOnError)
	path := fs.String("path", "", "path to history.snap.zst")
	dataDir := fs.String("data", "./data", "runtime data directory")
	matchID := fs.String("match", "", "match id (alternative to -path)")
	states := fs.Bool("states", false, "print every recorded state")
	_ = fs.Parse(args)

	p := *path
	if p == "" && *matchID != "" {
		p = filepath.Join(*dataDir, "archives", *matchID, "history.snap.zst")
	}
	if p == "" {
		fmt.Fprintln(os.Stderr, "missing -path or -match")
		os.Exit(2)
	}

	if !*states {
		h, err := snapshot.ReadHeader(p)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read header:", err)
			os.Exit(1)
		}
		printJSON(h)
		return
	}
	a, err := snapshot.ReadArchive(p)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read archive:", err)
		os.Exit(1)
	}
	printJSON(a)
}
