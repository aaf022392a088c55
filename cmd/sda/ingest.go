package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/santoshnarayanan/sda/internal/corpus"
	ingestuc "github.com/santoshnarayanan/sda/internal/usecase/ingest"
)

type ingestOptions struct {
	dir        string
	zip        string
	chat       string
	collection string
	recreate   bool
	owner      string
	session    string
	tags       map[string]string
	sequential bool
	jsonOut    bool
}

func newIngestCmd(g *globalOptions) *cobra.Command {
	o := &ingestOptions{}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index a directory, a zip archive or a chat log",
		Example: `  sda ingest --dir ./docs --collection sda_dev_documentation
  sda ingest --zip project.zip --collection acme_api --recreate
  sda ingest --chat session.jsonl --session s1 --collection chats --owner alice`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context(), g, "cli")
			if err != nil {
				return err
			}
			defer a.Close()

			src, err := o.source(a.cfg.Ingest.MaxFileBytes)
			if err != nil {
				return err
			}
			if c, ok := src.(interface{ Close() error }); ok {
				defer func() { _ = c.Close() }()
			}

			report, err := a.ingest.Ingest(cmd.Context(), src, o.request())
			printReport(cmd.OutOrStdout(), report, o.jsonOut)
			if err != nil {
				a.logger.Error("Ingestion stopped", zap.Error(err))
				return err
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.dir, "dir", "", "directory to index recursively")
	f.StringVar(&o.zip, "zip", "", "zip archive to index")
	f.StringVar(&o.chat, "chat", "", "JSONL chat log to index, one {role, content} turn per line")
	f.StringVarP(&o.collection, "collection", "c", "", "target collection")
	f.BoolVar(&o.recreate, "recreate", false, "drop and recreate the collection first")
	f.StringVar(&o.owner, "owner", "", "owner tag")
	f.StringVar(&o.session, "session", "", "session id (chat logs)")
	f.StringToStringVar(&o.tags, "tag", nil, "extra payload tag, key=value (repeatable)")
	f.BoolVar(&o.sequential, "sequential-ids", false, "number points in enumeration order instead of content ids")
	f.BoolVar(&o.jsonOut, "json", false, "print the report as JSON")

	_ = cmd.MarkFlagRequired("collection")
	cmd.MarkFlagsOneRequired("dir", "zip", "chat")
	cmd.MarkFlagsMutuallyExclusive("dir", "zip", "chat")
	return cmd
}

// fileSource is a chat source that owns its open file.
type fileSource struct {
	corpus.Chat
	f *os.File
}

func (s fileSource) Close() error { return s.f.Close() }

func (o *ingestOptions) source(maxBytes int64) (corpus.Source, error) {
	switch {
	case o.dir != "":
		return corpus.Dir{Root: o.dir, MaxBytes: maxBytes}, nil
	case o.zip != "":
		data, err := os.ReadFile(filepath.Clean(o.zip))
		if err != nil {
			return nil, fmt.Errorf("read archive: %w", err)
		}
		return corpus.Zip{Data: data, MaxBytes: maxBytes}, nil
	case o.chat != "":
		f, err := os.Open(filepath.Clean(o.chat))
		if err != nil {
			return nil, fmt.Errorf("open chat log: %w", err)
		}
		return fileSource{Chat: corpus.Chat{R: f, Session: o.sessionID()}, f: f}, nil
	}
	return nil, fmt.Errorf("one of --dir, --zip or --chat is required")
}

func (o *ingestOptions) request() ingestuc.Request {
	req := ingestuc.Request{
		Collection: o.collection,
		Recreate:   o.recreate,
		Tags:       o.tags,
		Owner:      o.owner,
		Session:    o.sessionID(),
	}
	if o.sequential {
		req.IDMode = ingestuc.IDSequential
	}
	return req
}

// sessionID defaults to the chat log's file name without extension.
func (o *ingestOptions) sessionID() string {
	if o.session != "" || o.chat == "" {
		return o.session
	}
	name := filepath.Base(o.chat)
	return name[:len(name)-len(filepath.Ext(name))]
}

type reportJSON struct {
	FilesSeen     int        `json:"files_seen"`
	FilesIndexed  int        `json:"files_indexed"`
	ChunksIndexed int        `json:"chunks_indexed"`
	Skipped       []skipJSON `json:"skipped"`
}

type skipJSON struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

func printReport(w io.Writer, r ingestuc.Report, asJSON bool) {
	if asJSON {
		out := reportJSON{
			FilesSeen:     r.FilesSeen,
			FilesIndexed:  r.FilesIndexed,
			ChunksIndexed: r.ChunksIndexed,
			Skipped:       make([]skipJSON, 0, len(r.Skipped)),
		}
		for _, s := range r.Skipped {
			out.Skipped = append(out.Skipped, skipJSON(s))
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
		return
	}

	fmt.Fprintf(w, "files seen:     %d\n", r.FilesSeen)
	fmt.Fprintf(w, "files indexed:  %d\n", r.FilesIndexed)
	fmt.Fprintf(w, "chunks indexed: %d\n", r.ChunksIndexed)
	if len(r.Skipped) > 0 {
		fmt.Fprintf(w, "skipped:        %d\n", len(r.Skipped))
		for _, s := range r.Skipped {
			fmt.Fprintf(w, "  %s: %s\n", s.Source, s.Reason)
		}
	}
}
